package usecase

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/junhyuk-dev/fortune-rag/internal/core/domain"
)

var cannedGreetings = []string{
	"안녕하세요", "안녕하십니까", "반갑습니다", "반가워요",
	"hello", "hi there", "greetings",
}

var (
	sajuCitationMarkers  = []string{"일간", "십신", "오행", "대운", "세운", "용신", "사주"}
	astroCitationMarkers = []string{"태양", "달", "상승", "하우스", "행성", "트랜짓", "점성"}
	cautionMarkers       = []string{"주의", "조심", "유의"}

	timingWindowRe = regexp.MustCompile(`[0-9]{1,2}월[^\n.?!]*주`)
	multiSpaceRe   = regexp.MustCompile(`[ \t]{2,}`)
	spaceBeforeRe  = regexp.MustCompile(`\s+([.,!?%])`)
	multiNewlineRe = regexp.MustCompile(`\n{3,}`)
)

// PostProcess runs the ordered pipeline over an accumulated completion:
// locale prefix, error gate, missing-requirements addendum, spacing
// normalization and the follow-up-question suffix. The returned text is what
// gets re-chunked onto the wire.
func PostProcess(text, locale, theme string, now time.Time) (string, error) {
	out, _, err := postProcessReport(text, locale, theme, now)
	return out, err
}

// postProcessReport additionally reports which addendum categories were
// injected, so callers can count them.
func postProcessReport(text, locale, theme string, now time.Time) (string, []string, error) {
	text = ensureLocalePrefix(text)

	if text == "" {
		return "", nil, domain.WrapError(domain.ErrInvalidInput, "postprocess", fmt.Errorf("empty completion"))
	}
	if strings.HasPrefix(text, "[ERROR]") {
		return "", nil, domain.WrapError(domain.ErrInvalidInput, "postprocess", fmt.Errorf("model error: %s", truncateRunes(text, 120)))
	}

	addendum, categories := missingRequirementsAddendum(text, theme, now)
	if addendum != "" {
		text = text + "\n\n" + addendum
	}

	text = normalizeSpacing(text)

	if isKorean(locale) {
		text = ensureSingleFollowupQuestion(text, theme)
	}
	return text, categories, nil
}

// ensureLocalePrefix trims the completion and strips a canned greeting from
// the start; responses never open with one.
func ensureLocalePrefix(text string) string {
	text = strings.TrimSpace(text)
	lower := strings.ToLower(text)
	for _, greeting := range cannedGreetings {
		if !strings.HasPrefix(lower, greeting) {
			continue
		}
		rest := text[len(greeting):]
		rest = strings.TrimLeft(rest, " ,.!~^ㅎ\n")
		return strings.TrimSpace(rest)
	}
	return text
}

// missingRequirementsAddendum inspects the text for the four required
// citation categories and builds an addendum covering whichever are absent,
// naming the covered categories.
func missingRequirementsAddendum(text, theme string, now time.Time) (string, []string) {
	missingSaju := !containsAny(text, sajuCitationMarkers)
	missingAstro := !containsAny(text, astroCitationMarkers)
	missingTiming := !timingWindowRe.MatchString(text)
	missingCaution := !containsAny(text, cautionMarkers)
	if !missingSaju && !missingAstro && !missingTiming && !missingCaution {
		return "", nil
	}

	var categories []string
	lines := []string{"덧붙이면,"}
	if missingSaju {
		categories = append(categories, "saju")
		lines = append(lines, "- 사주 관점에서는 일간의 힘과 현재 대운의 흐름이 이 주제의 바탕이 됩니다.")
	}
	if missingAstro {
		categories = append(categories, "astro")
		lines = append(lines, "- 점성 관점에서는 태양과 달의 배치, 관련 하우스의 행성 흐름을 함께 볼 필요가 있습니다.")
	}
	if missingTiming || missingCaution {
		if missingTiming {
			categories = append(categories, "timing")
		}
		if missingCaution {
			categories = append(categories, "caution")
		}
		lines = append(lines, timingWindowLines(now)...)
	}
	return strings.Join(lines, "\n"), categories
}

// timingWindowLines proposes two favourable month+week windows inside the
// next six months plus exactly one caution point.
func timingWindowLines(now time.Time) []string {
	weekNames := []string{"첫째 주", "둘째 주", "셋째 주", "넷째 주"}
	first := now.AddDate(0, 1, 0)
	second := now.AddDate(0, 3, 0)
	caution := now.AddDate(0, 5, 0)

	return []string{
		fmt.Sprintf("- 흐름이 좋은 시기: %d월 %s, %d월 %s",
			int(first.Month()), weekNames[1], int(second.Month()), weekNames[0]),
		fmt.Sprintf("- 주의할 점: %d월 %s 무렵에는 성급한 결정을 한 번 미루는 것이 좋습니다.",
			int(caution.Month()), weekNames[2]),
	}
}

// normalizeSpacing collapses runaway whitespace and detaches spaces glued to
// punctuation.
func normalizeSpacing(text string) string {
	text = multiSpaceRe.ReplaceAllString(text, " ")
	text = spaceBeforeRe.ReplaceAllString(text, "$1")
	text = multiNewlineRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// ensureSingleFollowupQuestion makes a Korean response end with exactly one
// question mark, appending a theme-matched follow-up when the model forgot
// one.
func ensureSingleFollowupQuestion(text, theme string) string {
	trimmed := strings.TrimRight(text, " \n")
	if strings.HasSuffix(trimmed, "?") {
		for strings.HasSuffix(trimmed, "??") {
			trimmed = strings.TrimSuffix(trimmed, "?")
		}
		return trimmed
	}
	return trimmed + "\n\n" + FollowupQuestions(theme)[0]
}

// FollowupQuestions returns the canned follow-up suggestions for a theme, in
// a fixed order. The first entry doubles as the appended suffix question.
func FollowupQuestions(theme string) []string {
	switch AxisForTheme(theme) {
	case domain.AxisRelationship:
		return []string{
			"지금 관계에서 가장 확인하고 싶은 마음은 어떤 것인가요?",
			"상대방과의 시작 시기가 더 궁금하신가요?",
		}
	case domain.AxisCareer:
		return []string{
			"지금 고민 중인 선택지를 조금 더 구체적으로 들려주시겠어요?",
			"이직과 잔류 중 어느 쪽 흐름이 더 궁금하신가요?",
		}
	case domain.AxisWealth:
		return []string{
			"지금 계획 중인 투자나 지출이 있다면 어떤 것인가요?",
			"수입 흐름과 지출 관리 중 어느 쪽이 더 궁금하신가요?",
		}
	case domain.AxisTiming:
		return []string{
			"그 결정을 언제까지 내려야 하는 상황인가요?",
		}
	default:
		return []string{
			"오늘 이야기 중 더 깊이 들어가 보고 싶은 부분은 어디인가요?",
		}
	}
}

func containsAny(text string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}

func isKorean(locale string) bool {
	l := strings.ToLower(locale)
	return l == "" || strings.HasPrefix(l, "ko")
}
