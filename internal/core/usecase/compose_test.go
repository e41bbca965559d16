package usecase

import (
	"strings"
	"testing"
	"time"

	"github.com/junhyuk-dev/fortune-rag/internal/core/domain"
)

func composerAt(t time.Time, opts ComposerOptions) *Composer {
	c := NewComposer(opts)
	c.now = func() time.Time { return t }
	return c
}

func TestSystemPromptSectionOrderAndOmission(t *testing.T) {
	c := composerAt(fixedNow, ComposerOptions{})

	prompt := c.SystemPrompt(ComposeInput{
		Request: domain.ReadingRequest{
			SessionID:   "s1",
			Mode:        domain.ModeSaju,
			Theme:       "career",
			Locale:      "ko",
			Question:    "이직해도 될까요?",
			SajuPayload: sampleSajuPayload(),
		},
		Prefetch: domain.PrefetchResult{
			CrossAnalysis: "[일과 진로]\n핵심 테마: 재성과 토성",
			GraphNodes:    []string{"재성: 재성 해석"},
		},
	})

	wantInOrder := []string{
		"## 역할과 말투",
		"## 오늘 날짜와 시기 창",
		"## 사주 정보",
		"## 교차 분석 규칙",
		"## 참고 지식",
		"## 테마 융합 규칙",
		"## 응답 구조 규칙",
	}
	last := -1
	for _, header := range wantInOrder {
		idx := strings.Index(prompt, header)
		if idx < 0 {
			t.Fatalf("prompt missing %q:\n%s", header, prompt)
		}
		if idx < last {
			t.Fatalf("section %q out of order", header)
		}
		last = idx
	}

	// no astro payload, no persona, no crisis: those sections are omitted
	for _, header := range []string{"## 점성 정보", "## 상담 맥락", "## 위기 맥락", "## 경력 정보", "## 심화 점성 분석"} {
		if strings.Contains(prompt, header) {
			t.Fatalf("empty section %q should be omitted", header)
		}
	}

	if !strings.Contains(prompt, "2026년 3월 10일") {
		t.Fatalf("date section should pin the request date:\n%s", prompt)
	}
	if !strings.Contains(prompt, "정확히 1개의 후속 질문") {
		t.Fatal("hard rules missing follow-up rule")
	}
}

func TestSystemPromptConditionalSections(t *testing.T) {
	c := composerAt(fixedNow, ComposerOptions{Advanced: true})

	prompt := c.SystemPrompt(ComposeInput{
		Request: domain.ReadingRequest{
			Theme:    "career",
			Question: "요즘 너무 힘들고 불안해요. 이직이 맞을까요?",
			Persona: domain.UserPersona{
				SessionCount:    3,
				RecurringTopics: []string{"이직"},
				PersonalityType: "analytical",
				CVText:          "백엔드 엔지니어 5년차",
				Age:             31,
			},
		},
		Prefetch: domain.PrefetchResult{
			CrossGroups: []domain.Group{{Axis: domain.AxisCareer, AdvancedLink: "일과 진로 흐름에서 정관과 10하우스는 같은 방향입니다."}},
		},
		Crisis: domain.CrisisMedium,
	})

	for _, header := range []string{
		"## 심화 점성 분석",
		"## 상담 맥락",
		"## 경력 정보",
		"## 생애 과업",
		"## 위기 맥락",
		"## 상담적 접근",
		"## 감정 추적",
	} {
		if !strings.Contains(prompt, header) {
			t.Fatalf("prompt missing %q:\n%s", header, prompt)
		}
	}
	if !strings.Contains(prompt, "불안") {
		t.Fatal("emotion tracking should name the detected affect")
	}
	if !strings.Contains(prompt, "백엔드 엔지니어") {
		t.Fatal("career theme should include the CV text")
	}
}

func TestCVSectionOnlyForCareerTheme(t *testing.T) {
	req := domain.ReadingRequest{
		Theme:   "love",
		Persona: domain.UserPersona{CVText: "백엔드 엔지니어 5년차"},
	}
	if got := cvSection(req); got != "" {
		t.Fatalf("cv section should be empty outside career themes, got %q", got)
	}
}

func TestHistoryWindowTruncation(t *testing.T) {
	long := strings.Repeat("가", 1000)
	history := make([]domain.ConversationMessage, 0, 14)
	for i := 0; i < 14; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		history = append(history, domain.ConversationMessage{Role: role, Content: long})
	}

	msgs := historyWindow(history, 0)

	// 12 kept plus the topic-summary line
	var summary int
	for _, m := range msgs {
		if m.Role == "system" {
			summary++
		}
	}
	if len(msgs)-summary != historyWindowSize {
		t.Fatalf("window kept %d messages, want %d", len(msgs)-summary, historyWindowSize)
	}

	// older entries truncated to 300 runes (+ellipsis), recent 4 to 800
	conv := msgs[summary:]
	if got := len([]rune(conv[0].Content)); got > olderCharLimit+1 {
		t.Fatalf("older message length = %d", got)
	}
	recent := conv[len(conv)-1]
	if got := len([]rune(recent.Content)); got > recentCharLimit+1 || got <= olderCharLimit {
		t.Fatalf("recent message length = %d", got)
	}
}

func TestHistoryWindowTopicSummary(t *testing.T) {
	history := []domain.ConversationMessage{
		{Role: "user", Content: "요즘 이직 고민이 많아요"},
		{Role: "assistant", Content: "..."},
		{Role: "user", Content: "직장 내 관계도 어렵고요"},
		{Role: "assistant", Content: "..."},
		{Role: "user", Content: "연봉이랑 재물운도 궁금해요"},
		{Role: "assistant", Content: "..."},
		{Role: "user", Content: "결국 이직 시기가 문제예요"},
	}

	msgs := historyWindow(history, 0)
	if msgs[0].Role != "system" || !strings.HasPrefix(msgs[0].Content, "지난 대화 주제: ") {
		t.Fatalf("expected topic summary first, got %+v", msgs[0])
	}

	short := history[:4]
	if got := historyWindow(short, 0); got[0].Role == "system" {
		t.Fatal("short history must not carry a summary line")
	}
}

func TestHistoryWindowCustomSummaryCutoff(t *testing.T) {
	history := []domain.ConversationMessage{
		{Role: "user", Content: "이직을 해야 할까요"},
		{Role: "assistant", Content: "..."},
		{Role: "user", Content: "직장 분위기가 계속 나빠져요"},
	}

	if got := historyWindow(history, 2); got[0].Role != "system" {
		t.Fatal("cutoff 2 should prepend a summary for 3 messages")
	}
	if got := historyWindow(history, 6); got[0].Role == "system" {
		t.Fatal("cutoff 6 must not prepend a summary for 3 messages")
	}

	composer := NewComposer(ComposerOptions{SummaryAfter: 2})
	msgs := composer.Messages("system prompt", history, "요즘 흐름이 궁금해요")
	if msgs[1].Role != "system" || !strings.HasPrefix(msgs[1].Content, "지난 대화 주제: ") {
		t.Fatalf("composer should honour SummaryAfter, got %+v", msgs[1])
	}
}
