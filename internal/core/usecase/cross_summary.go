package usecase

import (
	"strings"

	"github.com/junhyuk-dev/fortune-rag/internal/core/domain"
)

var axisTitles = map[domain.Axis]string{
	domain.AxisGeneral:      "종합 흐름",
	domain.AxisRelationship: "관계와 연애",
	domain.AxisCareer:       "일과 진로",
	domain.AxisWealth:       "재물 흐름",
	domain.AxisHealth:       "건강 관리",
	domain.AxisEmotion:      "감정과 내면",
	domain.AxisLifePath:     "인생 방향",
	domain.AxisTiming:       "시기와 타이밍",
	domain.AxisIdentity:     "정체성",
}

// renderCrossSummary emits one block per group:
// axis title, core theme, rule keys, interpretation pointer, then the two
// evidence lines. Blocks are separated by a blank line.
func renderCrossSummary(groups []domain.Group) string {
	if len(groups) == 0 {
		return ""
	}

	blocks := make([]string, 0, len(groups))
	for _, g := range groups {
		lines := []string{
			"[" + axisTitle(g.Axis) + "]",
			"핵심 테마: " + coreTheme(g),
			"규칙 키: " + ruleKeys(g),
			"해석 포인트: " + interpretationPointer(g),
			"사주 근거: " + renderSlots(g.SajuEvidence),
			"점성 근거: " + renderSlots(g.AstroEvidence),
		}
		if g.AdvancedLink != "" {
			lines = append(lines, "심화 연결: "+g.AdvancedLink)
		}
		blocks = append(blocks, strings.Join(lines, "\n"))
	}
	return strings.Join(blocks, "\n\n")
}

func axisTitle(axis domain.Axis) string {
	if title, ok := axisTitles[axis]; ok {
		return title
	}
	return axisTitles[domain.AxisGeneral]
}

func coreTheme(g domain.Group) string {
	if len(g.Items) == 0 {
		return "-"
	}
	return truncateRunes(g.Items[0].Text, 120)
}

func ruleKeys(g domain.Group) string {
	seen := make(map[string]struct{}, len(g.Items))
	keys := make([]string, 0, len(g.Items))
	for _, item := range g.Items {
		key := item.Meta(domain.MetaFusionKey)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		return "-"
	}
	return strings.Join(keys, ", ")
}

func interpretationPointer(g domain.Group) string {
	if len(g.Items) > 1 {
		return truncateRunes(g.Items[1].Text, 120)
	}
	return coreTheme(g)
}

// renderSlots joins evidence slots with " ; ". A plain slot renders as
// id=<id>; a backfilled slot carries the node title when one is known.
func renderSlots(slots []domain.EvidenceSlot) string {
	parts := make([]string, 0, len(slots))
	for _, s := range slots {
		if s.Backfill && s.Title != "" {
			parts = append(parts, "title="+s.Title+" id="+s.ID)
			continue
		}
		parts = append(parts, "id="+s.ID)
	}
	return strings.Join(parts, " ; ")
}

func truncateRunes(s string, limit int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}
