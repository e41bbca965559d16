package usecase

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/junhyuk-dev/fortune-rag/internal/core/domain"
	"github.com/junhyuk-dev/fortune-rag/internal/core/ports"
)

// FollowupMarker prefixes the follow-up-questions frame emitted just before
// the terminal event.
const FollowupMarker = "||FOLLOWUP||"

var missingPayloadMessages = map[string]string{
	"ko": "차트 정보가 아직 준비되지 않았습니다. 출생 정보를 다시 확인한 뒤 시도해 주세요.",
	"en": "Your chart data is not ready yet. Please check your birth information and try again.",
}

var streamErrorMessages = map[string]string{
	"ko": "답변을 생성하는 중 문제가 발생했습니다. 잠시 후 다시 시도해 주세요.",
	"en": "Something went wrong while generating your reading. Please try again shortly.",
}

// ConductorOptions tunes one streaming turn.
type ConductorOptions struct {
	ChunkSize      int
	Temperature    float32
	MaxTokens      int
	SajuMaxTokens  int
	AstroMaxTokens int
	RequirePayload bool
	HistoryWindow  int
}

// ConductorHooks receive per-turn telemetry. Nil fields are skipped; every
// hook must be cheap and non-blocking.
type ConductorHooks struct {
	OnChunks   func(mode string, chunks int)
	OnAddendum func(category string)
	OnCrisis   func(severity string)
}

// Conductor runs one streaming turn end to end: session lookup, crisis gate,
// prompt composition, LLM streaming, post-processing and re-chunked emission.
// The emit callback receives transport payloads; framing stays in the adapter.
type Conductor struct {
	chat     ports.ChatModel
	cache    ports.SessionCache
	store    ports.ConversationStore
	composer *Composer
	tarot    *TarotValidator
	modelFor func(sessionID string) string
	opts     ConductorOptions
	hooks    ConductorHooks
	logger   *slog.Logger
	now      func() time.Time
}

func NewConductor(chat ports.ChatModel, cache ports.SessionCache, store ports.ConversationStore, composer *Composer, tarot *TarotValidator, modelFor func(string) string, opts ConductorOptions, logger *slog.Logger) *Conductor {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 120
	}
	if opts.Temperature == 0 {
		opts.Temperature = 0.75
	}
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = historyWindowSize
	}
	if modelFor == nil {
		modelFor = func(string) string { return "" }
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Conductor{
		chat:     chat,
		cache:    cache,
		store:    store,
		composer: composer,
		tarot:    tarot,
		modelFor: modelFor,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
	}
}

// SetHooks installs telemetry callbacks. Call before the first StreamTurn.
func (c *Conductor) SetHooks(hooks ConductorHooks) {
	c.hooks = hooks
}

// StreamTurn produces the processed response for one turn. Errors that have a
// user-facing rendering are emitted as content frames and return nil; only
// transport failures propagate.
func (c *Conductor) StreamTurn(ctx context.Context, req domain.ReadingRequest, emit func(chunk string) error) error {
	crisis := DetectCrisis(req.Question)
	if crisis != domain.CrisisNone && c.hooks.OnCrisis != nil {
		c.hooks.OnCrisis(crisis.String())
	}
	if crisis == domain.CrisisHigh {
		c.logger.Warn("crisis short-circuit", slog.String("session_id", req.SessionID))
		chunks, err := c.emitChunked(CrisisSafetyMessage, emit)
		if err != nil {
			return err
		}
		c.chunksEmitted("crisis", chunks)
		c.persistTurn(ctx, req, CrisisSafetyMessage)
		return nil
	}

	session := c.lookupSession(req)
	if c.opts.RequirePayload && len(session.SajuPayload) == 0 && len(session.AstroPayload) == 0 {
		return emit(localized(missingPayloadMessages, req.Locale))
	}

	history := c.loadHistory(ctx, req.SessionID)

	if req.Mode == domain.ModeTarot && c.tarot != nil {
		return c.streamTarot(ctx, req, session, history, emit)
	}

	system := c.composer.SystemPrompt(ComposeInput{
		Request:  c.withSessionDefaults(req, session),
		Prefetch: session.Prefetch,
		Crisis:   crisis,
		History:  history,
	})
	messages := c.composer.Messages(system, history, req.Question)

	var builder strings.Builder
	err := c.chat.Stream(ctx, messages, c.chatOptions(req), func(delta string) error {
		builder.WriteString(delta)
		return ctx.Err()
	})
	if err != nil {
		c.logger.Error("llm stream failed", slog.String("session_id", req.SessionID), slog.String("error", err.Error()))
		return emit(localized(streamErrorMessages, req.Locale))
	}

	processed, addenda, err := postProcessReport(builder.String(), req.Locale, c.effectiveTheme(req, session), c.now())
	if err != nil {
		c.logger.Error("postprocess rejected completion", slog.String("session_id", req.SessionID), slog.String("error", err.Error()))
		return emit(localized(streamErrorMessages, req.Locale))
	}
	if c.hooks.OnAddendum != nil {
		for _, category := range addenda {
			c.hooks.OnAddendum(category)
		}
	}

	chunks, err := c.emitChunked(processed, emit)
	if err != nil {
		return err
	}
	c.chunksEmitted(string(req.Mode), chunks)
	if err := c.emitFollowups(req, session, emit); err != nil {
		return err
	}

	c.persistTurn(ctx, req, processed)
	return nil
}

// streamTarot runs the structured tarot path: one validated completion,
// re-emitted as JSON fragments.
func (c *Conductor) streamTarot(ctx context.Context, req domain.ReadingRequest, session *domain.Session, history []domain.ConversationMessage, emit func(string) error) error {
	merged := c.withSessionDefaults(req, session)
	system := c.composer.SystemPrompt(ComposeInput{
		Request:  merged,
		Prefetch: session.Prefetch,
		History:  history,
	})

	reading, err := c.tarot.Read(ctx, merged, system, historyWindow(history, c.composer.opts.SummaryAfter))
	if err != nil {
		c.logger.Error("tarot completion failed", slog.String("session_id", req.SessionID), slog.String("error", err.Error()))
		return emit(localized(streamErrorMessages, req.Locale))
	}

	raw, err := json.Marshal(reading)
	if err != nil {
		return emit(localized(streamErrorMessages, req.Locale))
	}
	chunks, err := c.emitChunked(string(raw), emit)
	if err != nil {
		return err
	}
	c.chunksEmitted(string(domain.ModeTarot), chunks)
	c.persistTurn(ctx, req, reading.Overall)
	return nil
}

// lookupSession falls back to a zero-cache session built from the request
// when the cached one is expired or was never initialized.
func (c *Conductor) lookupSession(req domain.ReadingRequest) *domain.Session {
	if session, state := c.cache.Get(req.SessionID); state == domain.SessionReady {
		return session
	}
	return &domain.Session{
		SessionID:    req.SessionID,
		SajuPayload:  req.SajuPayload,
		AstroPayload: req.AstroPayload,
		Theme:        req.Theme,
		Locale:       req.Locale,
		Prefetch:     domain.EmptyPrefetch(),
	}
}

func (c *Conductor) withSessionDefaults(req domain.ReadingRequest, session *domain.Session) domain.ReadingRequest {
	if len(req.SajuPayload) == 0 {
		req.SajuPayload = session.SajuPayload
	}
	if len(req.AstroPayload) == 0 {
		req.AstroPayload = session.AstroPayload
	}
	if req.Theme == "" {
		req.Theme = session.Theme
	}
	return req
}

func (c *Conductor) effectiveTheme(req domain.ReadingRequest, session *domain.Session) string {
	if req.Theme != "" {
		return req.Theme
	}
	return session.Theme
}

func (c *Conductor) chatOptions(req domain.ReadingRequest) ports.ChatOptions {
	maxTokens := c.opts.MaxTokens
	switch req.Mode {
	case domain.ModeSaju:
		if c.opts.SajuMaxTokens > 0 {
			maxTokens = c.opts.SajuMaxTokens
		}
	case domain.ModeAstro:
		if c.opts.AstroMaxTokens > 0 {
			maxTokens = c.opts.AstroMaxTokens
		}
	}
	return ports.ChatOptions{
		Model:       c.modelFor(req.SessionID),
		MaxTokens:   maxTokens,
		Temperature: c.opts.Temperature,
	}
}

func (c *Conductor) loadHistory(ctx context.Context, sessionID string) []domain.ConversationMessage {
	if c.store == nil {
		return nil
	}
	history, err := c.store.ListRecentMessages(ctx, sessionID, c.opts.HistoryWindow)
	if err != nil {
		c.logger.Warn("history unavailable", slog.String("session_id", sessionID), slog.String("error", err.Error()))
		return nil
	}
	return history
}

// persistTurn appends the user question and the final response. Persistence
// failures degrade; the response already reached the client.
func (c *Conductor) persistTurn(ctx context.Context, req domain.ReadingRequest, response string) {
	if c.store == nil {
		return
	}
	turn, err := c.store.NextUserTurn(ctx, req.SessionID)
	if err != nil {
		c.logger.Warn("turn counter unavailable", slog.String("session_id", req.SessionID), slog.String("error", err.Error()))
		return
	}
	now := c.now()
	pairs := []domain.ConversationMessage{
		{ID: uuid.NewString(), SessionID: req.SessionID, Role: "user", Content: req.Question, UserTurn: turn, CreatedAt: now},
		{ID: uuid.NewString(), SessionID: req.SessionID, Role: "assistant", Content: response, UserTurn: turn, CreatedAt: now},
	}
	for _, msg := range pairs {
		if err := c.store.AppendMessage(ctx, msg); err != nil {
			c.logger.Warn("message append failed", slog.String("session_id", req.SessionID), slog.String("error", err.Error()))
			return
		}
	}
}

// emitChunked re-emits processed text in rune chunks of the configured size
// and reports how many chunks went out.
func (c *Conductor) emitChunked(text string, emit func(string) error) (int, error) {
	runes := []rune(text)
	chunks := 0
	for start := 0; start < len(runes); start += c.opts.ChunkSize {
		end := start + c.opts.ChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		if err := emit(string(runes[start:end])); err != nil {
			return chunks, err
		}
		chunks++
	}
	return chunks, nil
}

func (c *Conductor) chunksEmitted(mode string, chunks int) {
	if c.hooks.OnChunks == nil {
		return
	}
	if mode == "" {
		mode = "hybrid"
	}
	c.hooks.OnChunks(mode, chunks)
}

func (c *Conductor) emitFollowups(req domain.ReadingRequest, session *domain.Session, emit func(string) error) error {
	questions := FollowupQuestions(c.effectiveTheme(req, session))
	raw, err := json.Marshal(questions)
	if err != nil {
		return nil
	}
	return emit(FollowupMarker + string(raw))
}

func localized(messages map[string]string, locale string) string {
	if msg, ok := messages[strings.ToLower(locale)]; ok {
		return msg
	}
	if strings.HasPrefix(strings.ToLower(locale), "en") {
		return messages["en"]
	}
	return messages["ko"]
}
