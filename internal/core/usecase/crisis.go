package usecase

import (
	"strings"

	"github.com/junhyuk-dev/fortune-rag/internal/core/domain"
)

// High-severity patterns short-circuit the turn entirely; medium patterns add
// a crisis-context section and continue.
var (
	crisisHighPatterns = []string{
		"자살", "죽고 싶", "죽고싶", "살기 싫", "살기싫", "자해",
		"목숨을 끊", "사라지고 싶", "kill myself", "suicide", "end my life",
	}
	crisisMediumPatterns = []string{
		"우울", "공황", "불안해서 잠", "무기력", "숨이 막", "살 이유",
		"hopeless", "panic attack", "depressed",
	}
)

// CrisisSafetyMessage is the fixed response for high-severity turns. It is
// emitted as-is, without any model call.
const CrisisSafetyMessage = "지금 많이 힘드신 것 같아 마음이 쓰입니다. " +
	"혼자 견디기 어려운 순간에는 전문가와 바로 이야기하는 것이 가장 중요합니다. " +
	"자살예방 상담전화 109 또는 1393(24시간)으로 연락해 주세요. " +
	"당신의 안전이 그 무엇보다 우선입니다. 지금 이 순간을 함께 넘길 수 있는 사람이 곁에 있다는 것을 기억해 주세요."

// DetectCrisis scans a user message for crisis language.
func DetectCrisis(text string) domain.CrisisLevel {
	t := strings.ToLower(text)
	for _, p := range crisisHighPatterns {
		if strings.Contains(t, p) {
			return domain.CrisisHigh
		}
	}
	for _, p := range crisisMediumPatterns {
		if strings.Contains(t, p) {
			return domain.CrisisMedium
		}
	}
	return domain.CrisisNone
}
