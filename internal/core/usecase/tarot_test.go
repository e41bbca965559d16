package usecase

import (
	"context"
	"testing"

	"github.com/junhyuk-dev/fortune-rag/internal/core/domain"
)

func threeDraws() []domain.DrawnCard {
	return []domain.DrawnCard{
		{CardID: "major_00", Name: "The Fool", Orientation: domain.OrientationUpright, Position: "past", Symbolism: "새로운 시작"},
		{CardID: "major_13", Name: "Death", Orientation: domain.OrientationReversed, Position: "present", Symbolism: "전환에 대한 저항"},
		{CardID: "cups_02", Name: "Two of Cups", Orientation: domain.OrientationUpright, Position: "future", Symbolism: "상호적인 연결"},
	}
}

func validTarotJSON() string {
	return `{
		"overall": "세 카드가 전환의 흐름을 보여줍니다.",
		"cards": ["The Fool", "Death", "Two of Cups"],
		"card_evidence": [
			{"card_id": "major_00", "orientation": "upright", "domain": "love", "position": "past", "evidence": "과거 자리의 바보 카드는 순수한 출발을 말합니다. 계산 없이 시작된 마음이었습니다."},
			{"card_id": "major_13", "orientation": "reversed", "domain": "love", "position": "present", "evidence": "역방향 죽음 카드는 끝내야 할 것을 붙잡고 있음을 보여줍니다. 지금의 정체는 그 저항에서 옵니다. 놓아야 다음이 옵니다."},
			{"card_id": "cups_02", "orientation": "upright", "domain": "love", "position": "future", "evidence": "컵 2번은 균형 잡힌 교류를 약속합니다. 서로를 향한 흐름이 회복됩니다."}
		],
		"advice": ["놓아주는 연습을 하세요."]
	}`
}

func shortTarotJSON() string {
	// only two evidence rows for three draws
	return `{
		"overall": "부분 응답",
		"cards": ["The Fool", "Death"],
		"card_evidence": [
			{"card_id": "major_00", "orientation": "upright", "domain": "love", "position": "past", "evidence": "첫 문장입니다. 두 번째 문장입니다."},
			{"card_id": "major_13", "orientation": "reversed", "domain": "love", "position": "present", "evidence": "첫 문장입니다. 두 번째 문장입니다."}
		],
		"advice": []
	}`
}

func TestTarotRepairAfterCardinalityViolation(t *testing.T) {
	chat := &fakeChatModel{responses: []string{shortTarotJSON(), validTarotJSON()}}
	v := NewTarotValidator(chat, nil, TarotOptions{}, nil)

	var repairOutcome string
	v.SetHooks(func(outcome string) { repairOutcome = outcome }, nil)

	reading, err := v.Read(context.Background(), domain.ReadingRequest{
		SessionID:  "s1",
		Mode:       domain.ModeTarot,
		Question:   "그 사람과 다시 잘될까요?",
		DrawnCards: threeDraws(),
	}, "system prompt", nil)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	if chat.calls != 2 {
		t.Fatalf("expected exactly one repair call, got %d total calls", chat.calls)
	}
	if repairOutcome != "success" {
		t.Fatalf("repair outcome = %q", repairOutcome)
	}
	if len(reading.CardEvidence) != 3 {
		t.Fatalf("card_evidence length = %d, want 3", len(reading.CardEvidence))
	}
	for i, row := range reading.CardEvidence {
		if row.CardID == "" || row.Orientation == "" || row.Domain == "" || row.Position == "" {
			t.Fatalf("row %d missing fields: %+v", i, row)
		}
		if n := sentenceCount(row.Evidence); n < 2 || n > 3 {
			t.Fatalf("row %d evidence sentence count = %d", i, n)
		}
	}

	// the repair prompt must enumerate the expected draws
	repairReq := chat.requests[1]
	last := repairReq[len(repairReq)-1].Content
	for _, id := range []string{"major_00", "major_13", "cups_02"} {
		if !containsAny(last, []string{id}) {
			t.Fatalf("repair prompt missing %s:\n%s", id, last)
		}
	}
}

func TestTarotFallbackAfterFailedRepair(t *testing.T) {
	chat := &fakeChatModel{responses: []string{shortTarotJSON(), "not json at all"}}
	v := NewTarotValidator(chat, nil, TarotOptions{}, nil)

	fellBack := false
	v.SetHooks(nil, func() { fellBack = true })

	reading, err := v.Read(context.Background(), domain.ReadingRequest{
		SessionID:  "s1",
		DrawnCards: threeDraws(),
	}, "system", nil)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	if chat.calls != 2 {
		t.Fatalf("fallback must not issue a second repair, calls = %d", chat.calls)
	}
	if !fellBack {
		t.Fatal("fallback hook not fired")
	}
	if len(reading.CardEvidence) != len(threeDraws()) {
		t.Fatalf("stub cardinality = %d", len(reading.CardEvidence))
	}
	for i, row := range reading.CardEvidence {
		if n := sentenceCount(row.Evidence); n < 2 || n > 3 {
			t.Fatalf("stub row %d sentence count = %d: %q", i, n, row.Evidence)
		}
	}
	// deterministic stub carries the drawn orientation and position through
	if reading.CardEvidence[1].Orientation != domain.OrientationReversed || reading.CardEvidence[1].Position != "present" {
		t.Fatalf("stub row lost draw fields: %+v", reading.CardEvidence[1])
	}
}

func TestTarotValidFirstTry(t *testing.T) {
	chat := &fakeChatModel{responses: []string{validTarotJSON()}}
	v := NewTarotValidator(chat, nil, TarotOptions{}, nil)

	reading, err := v.Read(context.Background(), domain.ReadingRequest{DrawnCards: threeDraws()}, "system", nil)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if chat.calls != 1 {
		t.Fatalf("valid response should not trigger repair, calls = %d", chat.calls)
	}
	if reading.Overall == "" || len(reading.Cards) != 3 {
		t.Fatalf("unexpected reading %+v", reading)
	}
}

func TestSentenceCount(t *testing.T) {
	cases := map[string]int{
		"":              0,
		"한 문장입니다.":      1,
		"하나. 둘.":        2,
		"하나. 둘. 셋!":     3,
		"마침표 없는 문장":     1,
		"하나... 말줄임표 포함.": 2,
	}
	for text, want := range cases {
		if got := sentenceCount(text); got != want {
			t.Fatalf("sentenceCount(%q) = %d, want %d", text, got, want)
		}
	}
}
