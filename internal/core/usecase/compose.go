package usecase

import (
	"strings"
	"time"

	"github.com/junhyuk-dev/fortune-rag/internal/core/domain"
	"github.com/junhyuk-dev/fortune-rag/internal/core/ports"
)

// ComposerOptions tunes prompt assembly. SummaryAfter is the history length
// past which a topic-summary line is prepended to the rolling window.
type ComposerOptions struct {
	Advanced     bool
	SummaryAfter int
}

// Composer assembles the system prompt from named sections in a fixed order.
// Every section is a pure function of its inputs; sections without content
// are omitted.
type Composer struct {
	opts ComposerOptions
	now  func() time.Time
}

func NewComposer(opts ComposerOptions) *Composer {
	if opts.SummaryAfter <= 0 {
		opts.SummaryAfter = topicSummaryCutoff
	}
	return &Composer{opts: opts, now: time.Now}
}

// ComposeInput is everything one system prompt is built from.
type ComposeInput struct {
	Request  domain.ReadingRequest
	Prefetch domain.PrefetchResult
	Crisis   domain.CrisisLevel
	History  []domain.ConversationMessage
}

type promptSection struct {
	name    string
	content string
}

// SystemPrompt renders the sections that have content, in order, separated by
// blank lines.
func (c *Composer) SystemPrompt(in ComposeInput) string {
	req := in.Request
	sections := []promptSection{
		{"역할과 말투", personaStyleSection(req)},
		{"오늘 날짜와 시기 창", dateTimingSection(c.now(), req.Locale)},
		{"사주 정보", sajuDetailSection(req.SajuPayload)},
		{"점성 정보", astroDetailSection(req.AstroPayload)},
		{"심화 점성 분석", advancedAstroSection(in.Prefetch, c.opts.Advanced)},
		{"교차 분석 규칙", crossAnalysisSection(in.Prefetch)},
		{"참고 지식", ragEnrichmentSection(in.Prefetch)},
		{"상담 맥락", userContextSection(req.Persona)},
		{"경력 정보", cvSection(req)},
		{"생애 과업", lifespanSection(req.Persona.Age)},
		{"테마 융합 규칙", themeFusionSection(req.Theme)},
		{"적극적 상상 안내", activeImaginationSection(req.Question)},
		{"위기 맥락", crisisContextSection(in.Crisis)},
		{"상담적 접근", therapeuticSection(req.Question)},
		{"감정 추적", emotionTrackingSection(req.Question)},
		{"응답 구조 규칙", responseStructureSection(req)},
	}

	blocks := make([]string, 0, len(sections))
	for _, s := range sections {
		if s.content == "" {
			continue
		}
		blocks = append(blocks, "## "+s.name+"\n"+s.content)
	}
	return strings.Join(blocks, "\n\n")
}

// Messages builds the chat-completion message list: system, rolling history
// window, then the current user question.
func (c *Composer) Messages(system string, history []domain.ConversationMessage, question string) []ports.ChatMessage {
	msgs := make([]ports.ChatMessage, 0, len(history)+3)
	msgs = append(msgs, ports.ChatMessage{Role: "system", Content: system})
	msgs = append(msgs, historyWindow(history, c.opts.SummaryAfter)...)
	msgs = append(msgs, ports.ChatMessage{Role: "user", Content: question})
	return msgs
}
