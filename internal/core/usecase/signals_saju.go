package usecase

import (
	"fmt"
	"sort"
	"strings"

	"github.com/junhyuk-dev/fortune-rag/internal/core/domain"
)

// tenGodTags maps ten-gods families onto interpretation axes.
var tenGodTags = map[string][]domain.Axis{
	"비견": {domain.AxisIdentity, domain.AxisRelationship},
	"겁재": {domain.AxisIdentity, domain.AxisWealth},
	"식신": {domain.AxisCareer, domain.AxisEmotion},
	"상관": {domain.AxisCareer, domain.AxisEmotion},
	"편재": {domain.AxisWealth},
	"정재": {domain.AxisWealth},
	"편관": {domain.AxisCareer, domain.AxisHealth},
	"정관": {domain.AxisCareer},
	"편인": {domain.AxisLifePath, domain.AxisIdentity},
	"정인": {domain.AxisLifePath, domain.AxisIdentity},
}

var relationTags = map[string][]domain.Axis{
	"합": {domain.AxisRelationship},
	"충": {domain.AxisTiming, domain.AxisEmotion},
	"형": {domain.AxisHealth, domain.AxisEmotion},
	"파": {domain.AxisRelationship},
	"해": {domain.AxisHealth},
}

// ExtractSajuSignals derives ranked signals from a pre-computed saju chart.
// Pure and total: malformed or missing keys degrade the output, never panic.
func ExtractSajuSignals(payload domain.ChartPayload) []domain.Signal {
	if len(payload) == 0 {
		return nil
	}

	signals := make([]domain.Signal, 0, 24)
	signals = append(signals, sajuDayMaster(payload)...)
	signals = append(signals, sajuYongsin(payload)...)
	signals = append(signals, sajuTenGods(payload)...)
	signals = append(signals, sajuHiddenStems(payload)...)
	signals = append(signals, sajuRelations(payload)...)
	signals = append(signals, sajuLuckCycles(payload)...)
	signals = append(signals, sajuSpecialStars(payload)...)
	return dedupeSignals(signals)
}

func sajuDayMaster(p domain.ChartPayload) []domain.Signal {
	stem := p.StringAt("day_master.stem")
	element := p.StringAt("day_master.element")
	if stem == "" && element == "" {
		return nil
	}

	out := make([]domain.Signal, 0, 2)
	label := stem
	if element != "" {
		label = strings.TrimSpace(stem + " " + element)
	}
	out = append(out, domain.Signal{
		Key:        "saju.day_master",
		Label:      "일간",
		Value:      label,
		Importance: 0.9,
		Tags:       []domain.Axis{domain.AxisIdentity, domain.AxisLifePath},
		RawPath:    "day_master",
	})

	if strength := p.StringAt("day_master.strength"); strength != "" {
		out = append(out, domain.Signal{
			Key:        "saju.day_master.strength",
			Label:      "일간 강약",
			Value:      strength,
			Importance: 0.8,
			Tags:       []domain.Axis{domain.AxisIdentity, domain.AxisHealth},
			RawPath:    "day_master.strength",
		})
	}
	return out
}

func sajuYongsin(p domain.ChartPayload) []domain.Signal {
	out := make([]domain.Signal, 0, 3)
	if primary := p.StringAt("yongsin.primary"); primary != "" {
		out = append(out, domain.Signal{
			Key:        "saju.yongsin.primary." + primary,
			Label:      "용신",
			Value:      primary,
			Importance: 0.85,
			Tags:       []domain.Axis{domain.AxisLifePath, domain.AxisTiming},
			RawPath:    "yongsin.primary",
		})
	}
	if secondary := p.StringAt("yongsin.secondary"); secondary != "" {
		out = append(out, domain.Signal{
			Key:        "saju.yongsin.secondary." + secondary,
			Label:      "희신",
			Value:      secondary,
			Importance: 0.6,
			Tags:       []domain.Axis{domain.AxisLifePath},
			RawPath:    "yongsin.secondary",
		})
	}
	if kibsin := p.StringAt("kibsin.primary"); kibsin != "" {
		out = append(out, domain.Signal{
			Key:        "saju.kibsin.primary." + kibsin,
			Label:      "기신",
			Value:      kibsin,
			Importance: 0.7,
			Tags:       []domain.Axis{domain.AxisHealth, domain.AxisTiming},
			RawPath:    "kibsin.primary",
		})
	}
	return out
}

func sajuTenGods(p domain.ChartPayload) []domain.Signal {
	dist := p.MapAt("ten_gods.distribution")
	if len(dist) == 0 {
		return nil
	}

	var total float64
	for name := range dist {
		total += domain.MapFloat(dist, name)
	}
	if total <= 0 {
		return nil
	}

	names := make([]string, 0, len(dist))
	for name := range dist {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]domain.Signal, 0, len(dist))
	for _, name := range names {
		count := domain.MapFloat(dist, name)
		if count <= 0 {
			continue
		}
		out = append(out, domain.Signal{
			Key:        "saju.sipsin." + name,
			Label:      name,
			Value:      fmt.Sprintf("%.0f개", count),
			Importance: domain.ClampImportance(count / total * 2),
			Tags:       tenGodTags[name],
			RawPath:    "ten_gods.distribution." + name,
		})
	}
	return out
}

func sajuHiddenStems(p domain.ChartPayload) []domain.Signal {
	pillars := []string{"year", "month", "day", "hour"}
	pillarNames := map[string]string{"year": "년주", "month": "월주", "day": "일주", "hour": "시주"}

	out := make([]domain.Signal, 0, 4)
	for _, pillar := range pillars {
		hidden := p.StringsAt("pillars." + pillar + ".hidden_stems")
		if len(hidden) == 0 {
			continue
		}
		out = append(out, domain.Signal{
			Key:        "saju.jijanggan." + pillar,
			Label:      pillarNames[pillar] + " 지장간",
			Value:      strings.Join(hidden, ","),
			Importance: 0.4,
			Tags:       []domain.Axis{domain.AxisIdentity},
			RawPath:    "pillars." + pillar + ".hidden_stems",
		})
	}
	return out
}

func sajuRelations(p domain.ChartPayload) []domain.Signal {
	out := make([]domain.Signal, 0, 6)
	for i, rel := range p.MapsAt("relations") {
		relType := domain.MapString(rel, "type")
		if relType == "" {
			continue
		}
		between := domain.MapString(rel, "between")
		if between == "" {
			if pair, ok := rel["between"].([]any); ok {
				parts := make([]string, 0, len(pair))
				for _, item := range pair {
					parts = append(parts, domain.FormatValue(item))
				}
				between = strings.Join(parts, "-")
			}
		}

		importance := 0.6
		if relType == "충" {
			importance = 0.7
		}
		out = append(out, domain.Signal{
			Key:        fmt.Sprintf("saju.relation.%s.%d", relType, i),
			Label:      relType,
			Value:      firstNonEmpty(between, domain.MapString(rel, "detail"), relType),
			Importance: importance,
			Tags:       relationTags[relType],
			RawPath:    fmt.Sprintf("relations.%d", i),
		})
	}
	return out
}

func sajuLuckCycles(p domain.ChartPayload) []domain.Signal {
	out := make([]domain.Signal, 0, 3)

	if stem := p.StringAt("daeun.current.stem"); stem != "" {
		value := stem + p.StringAt("daeun.current.branch")
		out = append(out, domain.Signal{
			Key:        "saju.daeun.current",
			Label:      "대운",
			Value:      value,
			Importance: 0.75,
			Tags:       []domain.Axis{domain.AxisTiming, domain.AxisLifePath},
			RawPath:    "daeun.current",
		})
	}
	if stem := p.StringAt("seun.current.stem"); stem != "" {
		value := stem + p.StringAt("seun.current.branch")
		out = append(out, domain.Signal{
			Key:        "saju.seun.current",
			Label:      "세운",
			Value:      value,
			Importance: 0.7,
			Tags:       []domain.Axis{domain.AxisTiming},
			RawPath:    "seun.current",
		})
	}
	if month := p.StringAt("wolun.current.branch"); month != "" {
		out = append(out, domain.Signal{
			Key:        "saju.wolun.current",
			Label:      "월운",
			Value:      month,
			Importance: 0.5,
			Tags:       []domain.Axis{domain.AxisTiming},
			RawPath:    "wolun.current",
		})
	}
	return out
}

func sajuSpecialStars(p domain.ChartPayload) []domain.Signal {
	stars := p.StringsAt("shinsal")
	out := make([]domain.Signal, 0, len(stars))
	for _, star := range stars {
		out = append(out, domain.Signal{
			Key:        "saju.shinsal." + star,
			Label:      "신살",
			Value:      star,
			Importance: 0.5,
			Tags:       []domain.Axis{domain.AxisEmotion},
			RawPath:    "shinsal",
		})
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
