package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/junhyuk-dev/fortune-rag/internal/core/domain"
	"github.com/junhyuk-dev/fortune-rag/internal/core/ports"
)

// TarotOptions tunes the structured tarot call.
type TarotOptions struct {
	MaxTokens   int
	Temperature float32
}

// TarotValidator owns the structured tarot contract: parse the model's JSON,
// assert per-draw evidence shape, repair at most once, then fall back to the
// deterministic stub so the cardinality invariant always holds.
type TarotValidator struct {
	chat     ports.ChatModel
	modelFor func(sessionID string) string
	opts     TarotOptions
	logger   *slog.Logger

	// Repaired and FellBack expose the last-call outcome for metrics.
	onRepair   func(outcome string)
	onFallback func()
}

func NewTarotValidator(chat ports.ChatModel, modelFor func(string) string, opts TarotOptions, logger *slog.Logger) *TarotValidator {
	if opts.Temperature == 0 {
		opts.Temperature = 0.75
	}
	if modelFor == nil {
		modelFor = func(string) string { return "" }
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TarotValidator{chat: chat, modelFor: modelFor, opts: opts, logger: logger}
}

// SetHooks wires optional observers for repair and fallback outcomes.
func (v *TarotValidator) SetHooks(onRepair func(outcome string), onFallback func()) {
	v.onRepair = onRepair
	v.onFallback = onFallback
}

// Read runs the structured completion and returns a reading that always
// satisfies len(CardEvidence) == len(drawn).
func (v *TarotValidator) Read(ctx context.Context, req domain.ReadingRequest, system string, history []ports.ChatMessage) (domain.TarotReading, error) {
	messages := make([]ports.ChatMessage, 0, len(history)+2)
	messages = append(messages, ports.ChatMessage{Role: "system", Content: system + "\n\n" + tarotSchemaPrompt(req.DrawnCards)})
	messages = append(messages, history...)
	messages = append(messages, ports.ChatMessage{Role: "user", Content: req.Question})

	opts := ports.ChatOptions{
		Model:       v.modelFor(req.SessionID),
		MaxTokens:   v.opts.MaxTokens,
		Temperature: v.opts.Temperature,
		JSONMode:    true,
	}

	raw, err := v.chat.Complete(ctx, messages, opts)
	if err != nil {
		return v.fallback(req.DrawnCards), err
	}

	reading, violation := parseTarotReading(raw, req.DrawnCards)
	if violation == nil {
		return reading, nil
	}
	v.logger.Warn("tarot response violates contract",
		slog.String("session_id", req.SessionID),
		slog.String("violation", violation.Error()))

	repaired, err := v.repair(ctx, messages, opts, raw, req.DrawnCards)
	if err == nil {
		if v.onRepair != nil {
			v.onRepair("success")
		}
		return repaired, nil
	}
	if v.onRepair != nil {
		v.onRepair("failed")
	}
	v.logger.Warn("tarot repair failed, using deterministic stub",
		slog.String("session_id", req.SessionID),
		slog.String("error", err.Error()))

	if v.onFallback != nil {
		v.onFallback()
	}
	return v.fallback(req.DrawnCards), nil
}

// repair issues the single allowed repair call: original prompt plus the raw
// response plus the per-draw schema expectation.
func (v *TarotValidator) repair(ctx context.Context, messages []ports.ChatMessage, opts ports.ChatOptions, raw string, drawn []domain.DrawnCard) (domain.TarotReading, error) {
	repairMessages := append(append([]ports.ChatMessage{}, messages...),
		ports.ChatMessage{Role: "assistant", Content: raw},
		ports.ChatMessage{Role: "user", Content: tarotRepairPrompt(drawn)})

	fixed, err := v.chat.Complete(ctx, repairMessages, opts)
	if err != nil {
		return domain.TarotReading{}, err
	}
	reading, violation := parseTarotReading(fixed, drawn)
	if violation != nil {
		return domain.TarotReading{}, violation
	}
	return reading, nil
}

// parseTarotReading decodes and asserts the structured contract.
func parseTarotReading(raw string, drawn []domain.DrawnCard) (domain.TarotReading, error) {
	var reading domain.TarotReading
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &reading); err != nil {
		return domain.TarotReading{}, fmt.Errorf("decode: %w", err)
	}
	if len(reading.CardEvidence) != len(drawn) {
		return domain.TarotReading{}, fmt.Errorf("card_evidence has %d rows, %d cards drawn", len(reading.CardEvidence), len(drawn))
	}
	for i, row := range reading.CardEvidence {
		if row.CardID == "" || row.Orientation == "" || row.Domain == "" || row.Position == "" {
			return domain.TarotReading{}, fmt.Errorf("row %d missing required fields", i)
		}
		if n := sentenceCount(row.Evidence); n < 2 || n > 3 {
			return domain.TarotReading{}, fmt.Errorf("row %d evidence has %d sentences, want 2-3", i, n)
		}
	}
	return reading, nil
}

// fallback builds the deterministic per-card stub from the draw itself.
func (v *TarotValidator) fallback(drawn []domain.DrawnCard) domain.TarotReading {
	cards := make([]string, 0, len(drawn))
	evidence := make([]domain.CardEvidence, 0, len(drawn))
	advice := make([]string, 0, len(drawn))

	for _, card := range drawn {
		cards = append(cards, card.Name)
		symbolism := card.Symbolism
		if symbolism == "" {
			symbolism = "이 카드가 가진 고유한 상징"
		}
		orientationWord := "정방향"
		if card.Orientation == domain.OrientationReversed {
			orientationWord = "역방향"
		}
		evidence = append(evidence, domain.CardEvidence{
			CardID:      card.CardID,
			Orientation: card.Orientation,
			Domain:      "general",
			Position:    card.Position,
			Evidence: fmt.Sprintf("%s 자리에 %s으로 놓인 %s 카드입니다. %s이 지금 상황의 핵심을 비춥니다.",
				card.Position, orientationWord, card.Name, symbolism),
		})
		advice = append(advice, fmt.Sprintf("%s 카드가 가리키는 방향을 일상에서 작게 실험해 보세요.", card.Name))
	}

	return domain.TarotReading{
		Overall:      "카드들이 하나의 흐름을 이루고 있습니다. 각 카드의 자리와 방향을 함께 읽어 주세요.",
		Cards:        cards,
		CardEvidence: evidence,
		Advice:       advice,
	}
}

func tarotSchemaPrompt(drawn []domain.DrawnCard) string {
	var b strings.Builder
	b.WriteString("다음 JSON 스키마로만 응답합니다: {\"overall\": string, \"cards\": [string], \"card_evidence\": [{\"card_id\", \"orientation\", \"domain\", \"position\", \"evidence\"}], \"advice\": [string]}.\n")
	b.WriteString("card_evidence는 뽑힌 카드 수와 정확히 같은 길이여야 하고, 각 evidence는 2~3문장입니다.\n")
	b.WriteString("뽑힌 카드:\n")
	for _, card := range drawn {
		fmt.Fprintf(&b, "- card_id=%s name=%s orientation=%s position=%s\n",
			card.CardID, card.Name, card.Orientation, card.Position)
	}
	return b.String()
}

func tarotRepairPrompt(drawn []domain.DrawnCard) string {
	var b strings.Builder
	b.WriteString("방금 응답이 스키마를 지키지 않았습니다. 아래 카드마다 정확히 한 개의 card_evidence 행을 만들어 같은 스키마의 JSON으로만 다시 응답하세요.\n")
	for _, card := range drawn {
		fmt.Fprintf(&b, "- card_id=%s orientation=%s position=%s\n", card.CardID, card.Orientation, card.Position)
	}
	return b.String()
}

// sentenceCount counts terminal punctuation marks, treating a trailing
// fragment as one more sentence.
func sentenceCount(text string) int {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}
	count := 0
	terminal := false
	for _, r := range text {
		switch r {
		case '.', '!', '?':
			if !terminal {
				count++
			}
			terminal = true
		default:
			if !strings.ContainsRune(" \n\t\"')]}", r) {
				terminal = false
			}
		}
	}
	if !terminal {
		count++
	}
	return count
}
