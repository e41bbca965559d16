package usecase

import (
	"fmt"
	"strings"
	"time"

	"github.com/junhyuk-dev/fortune-rag/internal/core/domain"
)

func personaStyleSection(req domain.ReadingRequest) string {
	lines := []string{
		"당신은 사주와 서양 점성을 함께 읽는 숙련된 상담가입니다.",
		"단정하지만 따뜻한 존댓말을 사용하고, 근거 없는 위로나 공포 조장은 하지 않습니다.",
	}
	if req.Mode == domain.ModeTarot {
		lines = append(lines, "이번 턴은 타로 리딩입니다. 뽑힌 카드만 근거로 사용합니다.")
	}
	return strings.Join(lines, "\n")
}

// dateTimingSection pins the model to the request date so timing windows stay
// inside the next six months.
func dateTimingSection(now time.Time, locale string) string {
	end := now.AddDate(0, 6, 0)
	if strings.HasPrefix(strings.ToLower(locale), "en") {
		return fmt.Sprintf("Today is %s. Timing advice must fall between now and %s.",
			now.Format("2006-01-02"), end.Format("2006-01"))
	}
	return fmt.Sprintf("오늘은 %d년 %d월 %d일입니다. 시기 조언은 지금부터 %d년 %d월 사이에서만 제시합니다.",
		now.Year(), int(now.Month()), now.Day(), end.Year(), int(end.Month()))
}

func sajuDetailSection(payload domain.ChartPayload) string {
	signals := ExtractSajuSignals(payload)
	if len(signals) == 0 {
		return ""
	}
	lines := make([]string, 0, len(signals))
	for _, s := range signals {
		lines = append(lines, "- "+s.Label+": "+s.Value)
	}
	return strings.Join(lines, "\n")
}

func astroDetailSection(payload domain.ChartPayload) string {
	signals := ExtractAstroSignals(payload)
	if len(signals) == 0 {
		return ""
	}
	lines := make([]string, 0, len(signals))
	for _, s := range signals {
		lines = append(lines, "- "+s.Label+": "+s.Value)
	}
	return strings.Join(lines, "\n")
}

func advancedAstroSection(prefetch domain.PrefetchResult, advanced bool) string {
	if !advanced {
		return ""
	}
	lines := make([]string, 0, 4)
	for _, g := range prefetch.CrossGroups {
		if g.AdvancedLink != "" {
			lines = append(lines, "- "+g.AdvancedLink)
		}
	}
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n")
}

func crossAnalysisSection(prefetch domain.PrefetchResult) string {
	if prefetch.CrossAnalysis == "" {
		return ""
	}
	return "아래 교차 분석 결과의 축과 근거를 해석의 뼈대로 사용합니다.\n" + prefetch.CrossAnalysis
}

func ragEnrichmentSection(prefetch domain.PrefetchResult) string {
	lines := make([]string, 0, len(prefetch.GraphNodes)+len(prefetch.CorpusQuotes))
	for _, node := range prefetch.GraphNodes {
		lines = append(lines, "- "+node)
	}
	for _, quote := range prefetch.CorpusQuotes {
		lines = append(lines, "- 인용: "+quote)
	}
	for _, k := range prefetch.DomainKnowledge {
		lines = append(lines, "- 지식: "+k)
	}
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n")
}

// personalityHints maps personality types onto counselling-style guidance.
var personalityHints = map[string]string{
	"analytical": "구조적이고 단계적인 설명을 선호합니다. 결론보다 근거를 먼저 제시하세요.",
	"intuitive":  "큰 그림과 의미 중심의 언어에 반응합니다. 상징과 흐름으로 설명하세요.",
	"pragmatic":  "실행 가능한 조언을 원합니다. 구체적 행동 항목을 포함하세요.",
	"emotional":  "감정을 먼저 인정받고 싶어 합니다. 공감 문장으로 시작 맥락을 잡으세요.",
}

func userContextSection(persona domain.UserPersona) string {
	lines := make([]string, 0, 3)
	if persona.SessionCount > 0 {
		lines = append(lines, fmt.Sprintf("- 지금까지 %d회 상담한 재방문 사용자입니다.", persona.SessionCount))
	}
	if len(persona.RecurringTopics) > 0 {
		lines = append(lines, "- 반복 주제: "+strings.Join(persona.RecurringTopics, ", "))
	}
	if hint, ok := personalityHints[strings.ToLower(persona.PersonalityType)]; ok {
		lines = append(lines, "- 상담 스타일: "+hint)
	}
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n")
}

// cvSection is included for career consultations only.
func cvSection(req domain.ReadingRequest) string {
	if req.Persona.CVText == "" {
		return ""
	}
	if AxisForTheme(req.Theme) != domain.AxisCareer {
		return ""
	}
	return "사용자 경력 요약:\n" + truncateRunes(req.Persona.CVText, 600)
}

// lifespanSection maps age bands onto the psychological task of that life
// stage.
func lifespanSection(age int) string {
	switch {
	case age <= 0:
		return ""
	case age < 20:
		return "10대 후반의 과업은 정체성 탐색입니다. 가능성을 넓히는 언어를 사용하세요."
	case age < 30:
		return "20대의 과업은 친밀감과 방향 설정입니다. 실험과 선택을 격려하세요."
	case age < 40:
		return "30대의 과업은 생산성과 뿌리내리기입니다. 축적과 균형을 강조하세요."
	case age < 55:
		return "40~50대의 과업은 생산성의 확장과 의미 재정렬입니다. 전환을 긍정적으로 다루세요."
	default:
		return "이 시기의 과업은 통합과 지혜입니다. 지나온 선택의 의미를 함께 정리하세요."
	}
}

func themeFusionSection(theme string) string {
	axis := AxisForTheme(theme)
	if axis == domain.AxisGeneral {
		return "주제가 넓으므로 가장 점수가 높은 축 하나를 골라 깊게 다룹니다."
	}
	return fmt.Sprintf("이번 상담의 주제 축은 '%s'입니다. 사주 근거와 점성 근거를 이 축 위에서 결합해 해석하고, 다른 주제로 벗어나지 않습니다.", axisTitle(axis))
}

var innerWorkMarkers = []string{"꿈에서", "꿈을 꿨", "내면", "무의식", "상징", "명상", "진짜 나"}

// activeImaginationSection is emitted only when the user's language signals
// deep inner work.
func activeImaginationSection(question string) string {
	q := strings.ToLower(question)
	for _, marker := range innerWorkMarkers {
		if strings.Contains(q, marker) {
			return "사용자가 내면 작업의 언어를 쓰고 있습니다. 하나의 이미지나 상징을 골라 머물러 보도록 부드럽게 초대하세요."
		}
	}
	return ""
}

func crisisContextSection(level domain.CrisisLevel) string {
	if level != domain.CrisisMedium {
		return ""
	}
	return "사용자 메시지에서 중간 수준의 정서적 고통 신호가 감지되었습니다. 해석보다 정서적 안정을 우선하고, 필요하면 전문 상담을 권유하세요."
}

var therapeuticMarkers = []string{"힘들", "지쳤", "지친다", "포기", "버티", "울었"}

func therapeuticSection(question string) string {
	for _, marker := range therapeuticMarkers {
		if strings.Contains(question, marker) {
			return "공감을 먼저 표현한 뒤 해석으로 넘어갑니다. 감정을 교정하려 하지 말고 있는 그대로 반영하세요."
		}
	}
	return ""
}

var emotionLabels = map[string][]string{
	"불안":  {"불안", "초조", "걱정"},
	"슬픔":  {"슬프", "우울", "눈물", "울었"},
	"분노":  {"화가", "짜증", "분노"},
	"외로움": {"외로", "혼자인"},
	"기대":  {"설레", "기대"},
}

func emotionTrackingSection(question string) string {
	detected := make([]string, 0, 2)
	for _, label := range []string{"불안", "슬픔", "분노", "외로움", "기대"} {
		for _, marker := range emotionLabels[label] {
			if strings.Contains(question, marker) {
				detected = append(detected, label)
				break
			}
		}
	}
	if len(detected) == 0 {
		return ""
	}
	return "감지된 정서: " + strings.Join(detected, ", ")
}

// responseStructureSection carries the hard output rules.
func responseStructureSection(req domain.ReadingRequest) string {
	rules := []string{
		"- 인사말로 시작하지 않습니다. 사용자가 이미 아는 차트 사실을 되풀이하지 않습니다.",
		"- 사주 근거(일간/십신/오행/대운·세운 중 1개 이상)와 점성 근거(태양·달·상승, 가능하면 행성+하우스 1개 이상)를 반드시 인용합니다.",
		"- 앞으로 6개월 안의 시기 창을 '몇 월 몇째 주' 형태로 2~3개 제시하고, 주의할 점을 정확히 1개 포함합니다.",
		"- 주어진 주제에서 벗어나지 않습니다.",
		"- 답변은 정확히 1개의 후속 질문으로 끝냅니다.",
	}
	if req.Mode == domain.ModeTarot {
		rules = append(rules, "- 타로 턴에서는 지정된 JSON 스키마로만 응답합니다.")
	}
	return strings.Join(rules, "\n")
}
