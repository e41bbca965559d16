package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/junhyuk-dev/fortune-rag/internal/core/domain"
)

func conductorForTest(chat *fakeChatModel, cache *fakeSessionCache, store *fakeConversationStore, opts ConductorOptions) *Conductor {
	composer := composerAt(fixedNow, ComposerOptions{})
	tarot := NewTarotValidator(chat, nil, TarotOptions{}, nil)
	c := NewConductor(chat, cache, store, composer, tarot, nil, opts, nil)
	c.now = func() time.Time { return fixedNow }
	return c
}

func readySession(cache *fakeSessionCache) *domain.Session {
	session := &domain.Session{
		SessionID:    "s1",
		SajuPayload:  sampleSajuPayload(),
		AstroPayload: sampleAstroPayload(),
		Theme:        "career",
		Locale:       "ko",
		Prefetch: domain.PrefetchResult{
			CrossAnalysis: "[일과 진로]\n핵심 테마: 정관과 10하우스",
			GraphNodes:    []string{"정관: 구조와 책임의 별"},
		},
	}
	cache.Put(session)
	return session
}

func collectChunks(t *testing.T, c *Conductor, req domain.ReadingRequest) []string {
	t.Helper()
	var chunks []string
	if err := c.StreamTurn(context.Background(), req, func(chunk string) error {
		chunks = append(chunks, chunk)
		return nil
	}); err != nil {
		t.Fatalf("StreamTurn: %v", err)
	}
	return chunks
}

func TestStreamTurnHappyPath(t *testing.T) {
	chat := &fakeChatModel{streamed: []string{
		"일간 갑목의 추진력과 태양 10하우스가 같은 방향입니다. ",
		"4월 둘째 주와 6월 첫째 주가 움직이기 좋고, 조급함은 주의하세요. ",
		"어느 쪽에 더 마음이 기우시나요?",
	}}
	cache := newFakeSessionCache()
	store := newFakeConversationStore()
	readySession(cache)

	c := conductorForTest(chat, cache, store, ConductorOptions{ChunkSize: 40})
	chunks := collectChunks(t, c, domain.ReadingRequest{
		SessionID: "s1", Mode: domain.ModeSaju, Theme: "career", Locale: "ko",
		Question: "이직 시기를 알고 싶어요",
	})

	if len(chunks) < 2 {
		t.Fatalf("expected re-chunked output, got %d chunks", len(chunks))
	}

	last := chunks[len(chunks)-1]
	if !strings.HasPrefix(last, FollowupMarker) {
		t.Fatalf("final frame must be the follow-up event, got %q", last)
	}

	full := strings.Join(chunks[:len(chunks)-1], "")
	if !strings.HasSuffix(full, "?") || strings.HasSuffix(full, "??") {
		t.Fatalf("processed text must end with one question mark: %q", full)
	}
	for _, chunk := range chunks[:len(chunks)-1] {
		if n := len([]rune(chunk)); n > 40 {
			t.Fatalf("chunk exceeds configured size: %d runes", n)
		}
	}

	// user turn and assistant turn persisted under the same turn counter
	if len(store.messages) != 2 {
		t.Fatalf("persisted %d messages, want 2", len(store.messages))
	}
	if store.messages[0].Role != "user" || store.messages[1].Role != "assistant" {
		t.Fatalf("unexpected roles %s/%s", store.messages[0].Role, store.messages[1].Role)
	}
	if store.messages[0].UserTurn != store.messages[1].UserTurn {
		t.Fatal("turn counter mismatch between user and assistant rows")
	}
}

func TestStreamTurnCrisisShortCircuit(t *testing.T) {
	chat := &fakeChatModel{streamed: []string{"should never be used"}}
	cache := newFakeSessionCache()
	store := newFakeConversationStore()
	readySession(cache)

	c := conductorForTest(chat, cache, store, ConductorOptions{ChunkSize: 2000})
	chunks := collectChunks(t, c, domain.ReadingRequest{
		SessionID: "s1", Question: "요즘 죽고 싶다는 생각만 들어요",
	})

	if len(chat.requests) != 0 {
		t.Fatal("no model call may be issued on a high-severity turn")
	}
	full := strings.Join(chunks, "")
	if full != CrisisSafetyMessage {
		t.Fatalf("expected the fixed safety message, got %q", full)
	}
	if !strings.Contains(full, "109") {
		t.Fatal("safety message must include the helpline")
	}
}

func TestStreamTurnZeroCacheFallback(t *testing.T) {
	chat := &fakeChatModel{streamed: []string{
		"일간과 태양 배치를 함께 보면 흐름이 무겁지 않습니다. 5월 둘째 주가 좋고 과로는 주의하세요. 어떤 부분이 제일 궁금하신가요?",
	}}
	c := conductorForTest(chat, newFakeSessionCache(), newFakeConversationStore(), ConductorOptions{ChunkSize: 2000})

	chunks := collectChunks(t, c, domain.ReadingRequest{
		SessionID: "unknown-session", Theme: "love", Locale: "ko",
		Question:    "궁합이 궁금해요",
		SajuPayload: sampleSajuPayload(),
	})
	if len(chunks) == 0 {
		t.Fatal("uncached session should still stream from request payloads")
	}
}

func TestStreamTurnMissingPayloadFrame(t *testing.T) {
	chat := &fakeChatModel{}
	c := conductorForTest(chat, newFakeSessionCache(), newFakeConversationStore(), ConductorOptions{RequirePayload: true})

	chunks := collectChunks(t, c, domain.ReadingRequest{
		SessionID: "s-none", Locale: "ko", Question: "올해 운세 알려주세요",
	})

	if len(chunks) != 1 || chunks[0] != missingPayloadMessages["ko"] {
		t.Fatalf("expected single localized error frame, got %v", chunks)
	}
	if len(chat.requests) != 0 {
		t.Fatal("missing payload must not reach the model")
	}
}

func TestStreamTurnLLMFailureEmitsErrorFrame(t *testing.T) {
	chat := &fakeChatModel{err: errors.New("stream reset")}
	cache := newFakeSessionCache()
	readySession(cache)

	c := conductorForTest(chat, cache, newFakeConversationStore(), ConductorOptions{})
	chunks := collectChunks(t, c, domain.ReadingRequest{
		SessionID: "s1", Locale: "ko", Question: "이번 달 흐름은요?",
	})

	if len(chunks) != 1 || chunks[0] != streamErrorMessages["ko"] {
		t.Fatalf("expected localized stream-error frame, got %v", chunks)
	}
}

func TestStreamTurnHooksReportChunksAndAddenda(t *testing.T) {
	chat := &fakeChatModel{streamed: []string{
		"좋은 흐름이 이어지고 있습니다. 너무 서두르지만 않으면 됩니다.",
	}}
	cache := newFakeSessionCache()
	readySession(cache)

	c := conductorForTest(chat, cache, newFakeConversationStore(), ConductorOptions{ChunkSize: 30})

	var (
		chunkModes []string
		chunkTotal int
		addenda    []string
	)
	c.SetHooks(ConductorHooks{
		OnChunks: func(mode string, chunks int) {
			chunkModes = append(chunkModes, mode)
			chunkTotal += chunks
		},
		OnAddendum: func(category string) { addenda = append(addenda, category) },
	})

	chunks := collectChunks(t, c, domain.ReadingRequest{
		SessionID: "s1", Mode: domain.ModeSaju, Theme: "career", Locale: "ko",
		Question: "다음 달 분위기가 궁금해요",
	})

	if len(chunkModes) != 1 || chunkModes[0] != "saju" {
		t.Fatalf("chunk hook modes = %v", chunkModes)
	}
	// every frame except the follow-up event counts
	if want := len(chunks) - 1; chunkTotal != want {
		t.Fatalf("chunk hook counted %d, emitted %d", chunkTotal, want)
	}

	// the completion cites neither chart, no timing window and no caution
	want := map[string]bool{"saju": true, "astro": true, "timing": true, "caution": true}
	if len(addenda) != len(want) {
		t.Fatalf("addendum categories = %v", addenda)
	}
	for _, category := range addenda {
		if !want[category] {
			t.Fatalf("unexpected addendum category %q in %v", category, addenda)
		}
	}
}

func TestStreamTurnHooksReportCrisis(t *testing.T) {
	chat := &fakeChatModel{}
	cache := newFakeSessionCache()
	readySession(cache)

	c := conductorForTest(chat, cache, newFakeConversationStore(), ConductorOptions{ChunkSize: 2000})

	var severities, modes []string
	c.SetHooks(ConductorHooks{
		OnChunks: func(mode string, _ int) { modes = append(modes, mode) },
		OnCrisis: func(severity string) { severities = append(severities, severity) },
	})

	collectChunks(t, c, domain.ReadingRequest{
		SessionID: "s1", Question: "요즘 죽고 싶다는 생각만 들어요",
	})

	if len(severities) != 1 || severities[0] != "high" {
		t.Fatalf("crisis hook severities = %v", severities)
	}
	if len(modes) != 1 || modes[0] != "crisis" {
		t.Fatalf("chunk hook modes = %v", modes)
	}
}

func TestStreamTurnTarotPath(t *testing.T) {
	chat := &fakeChatModel{responses: []string{validTarotJSON()}}
	cache := newFakeSessionCache()
	store := newFakeConversationStore()
	readySession(cache)

	c := conductorForTest(chat, cache, store, ConductorOptions{ChunkSize: 4000})
	chunks := collectChunks(t, c, domain.ReadingRequest{
		SessionID: "s1", Mode: domain.ModeTarot, Locale: "ko",
		Question:   "다시 잘될 수 있을까요?",
		DrawnCards: threeDraws(),
	})

	full := strings.Join(chunks, "")
	if !strings.Contains(full, `"card_evidence"`) {
		t.Fatalf("tarot turn should emit the structured JSON, got %q", full)
	}
	if len(store.messages) != 2 {
		t.Fatalf("tarot turn should persist, got %d messages", len(store.messages))
	}
}
