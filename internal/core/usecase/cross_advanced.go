package usecase

import (
	"encoding/json"
	"fmt"

	"github.com/junhyuk-dev/fortune-rag/internal/core/domain"
)

// attachAdvancedLink synthesizes the advanced one-liner for a group from the
// strongest axis signals of each chart, attaches their evidence slots and
// mirrors the selected signals as JSON into the leading item's metadata.
func attachAdvancedLink(group *domain.Group, sajuSignals, astroSignals []domain.Signal) {
	saju := selectSignalsForAxis(sajuSignals, group.Axis, 2)
	astro := selectSignalsForAxis(astroSignals, group.Axis, 2)
	if len(saju) == 0 || len(astro) == 0 {
		return
	}

	group.AdvancedSignals = append(append([]domain.Signal{}, saju...), astro...)
	group.AdvancedLink = fmt.Sprintf("%s 흐름에서 %s와 %s는 같은 방향을 가리키는 심화 신호입니다.",
		axisTitle(group.Axis), describeSignals(saju), describeSignals(astro))

	for _, s := range group.AdvancedSignals {
		group.SajuEvidence = appendSignalSlot(group.SajuEvidence, s, saju)
		group.AstroEvidence = appendSignalSlot(group.AstroEvidence, s, astro)
	}

	if raw, err := json.Marshal(group.AdvancedSignals); err == nil && len(group.Items) > 0 {
		if group.Items[0].Metadata == nil {
			group.Items[0].Metadata = make(map[string]string, 1)
		}
		group.Items[0].Metadata["advanced_links_json"] = string(raw)
	}
}

func describeSignals(signals []domain.Signal) string {
	switch len(signals) {
	case 0:
		return ""
	case 1:
		return fmt.Sprintf("%s(%s)", signals[0].Label, signals[0].Value)
	default:
		return fmt.Sprintf("%s(%s)·%s(%s)",
			signals[0].Label, signals[0].Value, signals[1].Label, signals[1].Value)
	}
}

func appendSignalSlot(slots []domain.EvidenceSlot, s domain.Signal, side []domain.Signal) []domain.EvidenceSlot {
	belongs := false
	for _, candidate := range side {
		if candidate.Key == s.Key {
			belongs = true
			break
		}
	}
	if !belongs {
		return slots
	}
	for _, existing := range slots {
		if existing.SignalKey == s.Key {
			return slots
		}
	}
	return append(slots, domain.EvidenceSlot{
		ID:        s.Key,
		SignalKey: s.Key,
		Score:     s.Importance,
	})
}
