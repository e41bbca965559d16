package usecase

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/junhyuk-dev/fortune-rag/internal/core/domain"
)

// houseTags maps natal houses onto interpretation axes.
var houseTags = map[int][]domain.Axis{
	1:  {domain.AxisIdentity},
	2:  {domain.AxisWealth},
	3:  {domain.AxisEmotion},
	4:  {domain.AxisEmotion, domain.AxisLifePath},
	5:  {domain.AxisRelationship},
	6:  {domain.AxisHealth, domain.AxisCareer},
	7:  {domain.AxisRelationship},
	8:  {domain.AxisWealth, domain.AxisEmotion},
	9:  {domain.AxisLifePath},
	10: {domain.AxisCareer},
	11: {domain.AxisRelationship, domain.AxisCareer},
	12: {domain.AxisEmotion, domain.AxisHealth},
}

var patternNames = map[string]string{
	"stellium":    "스텔리움",
	"t_square":    "T자형",
	"grand_trine": "그랜드 트라인",
}

// signElements covers both English and Korean sign spellings so the dominant
// element can be rebuilt from planet placements when the chart omits ratios.
var signElements = map[string]string{
	"aries": "fire", "leo": "fire", "sagittarius": "fire",
	"taurus": "earth", "virgo": "earth", "capricorn": "earth",
	"gemini": "air", "libra": "air", "aquarius": "air",
	"cancer": "water", "scorpio": "water", "pisces": "water",
	"양자리": "fire", "사자자리": "fire", "사수자리": "fire",
	"황소자리": "earth", "처녀자리": "earth", "염소자리": "earth",
	"쌍둥이자리": "air", "천칭자리": "air", "물병자리": "air",
	"게자리": "water", "전갈자리": "water", "물고기자리": "water",
}

var signModalities = map[string]string{
	"aries": "cardinal", "cancer": "cardinal", "libra": "cardinal", "capricorn": "cardinal",
	"taurus": "fixed", "leo": "fixed", "scorpio": "fixed", "aquarius": "fixed",
	"gemini": "mutable", "virgo": "mutable", "sagittarius": "mutable", "pisces": "mutable",
}

// ExtractAstroSignals derives ranked signals from a pre-computed natal chart.
// Same contract as the saju extractor: pure, total, deduplicated by key.
func ExtractAstroSignals(payload domain.ChartPayload) []domain.Signal {
	if len(payload) == 0 {
		return nil
	}

	signals := make([]domain.Signal, 0, 24)
	signals = append(signals, astroHouseEmphasis(payload)...)
	signals = append(signals, astroChartRuler(payload)...)
	signals = append(signals, astroAspectPatterns(payload)...)
	signals = append(signals, astroDominantBalance(payload)...)
	signals = append(signals, astroTransits(payload)...)
	signals = append(signals, astroProgressions(payload)...)
	return dedupeSignals(signals)
}

// astroHouseEmphasis emits the three most occupied houses. House counts come
// from houses.emphasis when present, otherwise they are rebuilt from the
// planets list.
func astroHouseEmphasis(p domain.ChartPayload) []domain.Signal {
	counts := make(map[int]float64, 12)
	if emphasis := p.MapAt("houses.emphasis"); len(emphasis) > 0 {
		for key := range emphasis {
			house, err := strconv.Atoi(key)
			if err != nil || house < 1 || house > 12 {
				continue
			}
			counts[house] = domain.MapFloat(emphasis, key)
		}
	} else {
		for _, planet := range p.MapsAt("planets") {
			house := int(domain.MapFloat(planet, "house"))
			if house >= 1 && house <= 12 {
				counts[house]++
			}
		}
	}
	if len(counts) == 0 {
		return nil
	}

	type houseCount struct {
		house int
		count float64
	}
	ranked := make([]houseCount, 0, len(counts))
	var total float64
	for house, count := range counts {
		if count <= 0 {
			continue
		}
		ranked = append(ranked, houseCount{house: house, count: count})
		total += count
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].house < ranked[j].house
	})
	if len(ranked) > 3 {
		ranked = ranked[:3]
	}

	out := make([]domain.Signal, 0, len(ranked))
	for _, hc := range ranked {
		importance := 0.5
		if total > 0 {
			importance = domain.ClampImportance(0.4 + hc.count/total)
		}
		out = append(out, domain.Signal{
			Key:        fmt.Sprintf("astro.house.%d", hc.house),
			Label:      fmt.Sprintf("%d하우스 강조", hc.house),
			Value:      fmt.Sprintf("행성 %.0f개", hc.count),
			Importance: importance,
			Tags:       houseTags[hc.house],
			RawPath:    "houses.emphasis",
		})
	}
	return out
}

func astroChartRuler(p domain.ChartPayload) []domain.Signal {
	planet := p.StringAt("chart_ruler.planet")
	if planet == "" {
		return nil
	}

	parts := make([]string, 0, 3)
	parts = append(parts, planet)
	if sign := p.StringAt("chart_ruler.sign"); sign != "" {
		parts = append(parts, sign)
	}
	house := int(p.FloatAt("chart_ruler.house"))
	if house >= 1 && house <= 12 {
		parts = append(parts, fmt.Sprintf("%d하우스", house))
	}

	tags := []domain.Axis{domain.AxisIdentity, domain.AxisLifePath}
	tags = append(tags, houseTags[house]...)
	return []domain.Signal{{
		Key:        "astro.chart_ruler",
		Label:      "차트 룰러",
		Value:      strings.Join(parts, " "),
		Importance: 0.85,
		Tags:       tags,
		RawPath:    "chart_ruler",
	}}
}

func astroAspectPatterns(p domain.ChartPayload) []domain.Signal {
	out := make([]domain.Signal, 0, 4)
	for i, pattern := range p.MapsAt("aspect_patterns") {
		kind := strings.ToLower(domain.MapString(pattern, "type"))
		name, known := patternNames[kind]
		if !known {
			continue
		}

		value := domain.MapString(pattern, "detail")
		if value == "" {
			if planets, ok := pattern["planets"].([]any); ok {
				parts := make([]string, 0, len(planets))
				for _, pl := range planets {
					parts = append(parts, domain.FormatValue(pl))
				}
				value = strings.Join(parts, "-")
			}
		}
		if value == "" {
			value = name
		}

		importance := 0.75
		if kind == "stellium" {
			importance = 0.8
		}
		out = append(out, domain.Signal{
			Key:        fmt.Sprintf("astro.pattern.%s.%d", kind, i),
			Label:      name,
			Value:      value,
			Importance: importance,
			Tags:       []domain.Axis{domain.AxisIdentity, domain.AxisEmotion},
			RawPath:    fmt.Sprintf("aspect_patterns.%d", i),
		})
	}
	return out
}

// astroDominantBalance reports the dominant element and modality. Explicit
// ratio maps win; otherwise both are recomputed from planet signs.
func astroDominantBalance(p domain.ChartPayload) []domain.Signal {
	elements := ratioMap(p, "elements")
	modalities := ratioMap(p, "modalities")
	if len(elements) == 0 || len(modalities) == 0 {
		for _, planet := range p.MapsAt("planets") {
			sign := strings.ToLower(domain.MapString(planet, "sign"))
			if len(elements) == 0 {
				if el, ok := signElements[sign]; ok {
					elements[el]++
				}
			}
			if len(modalities) == 0 {
				if mo, ok := signModalities[sign]; ok {
					modalities[mo]++
				}
			}
		}
	}

	out := make([]domain.Signal, 0, 2)
	if name, share := dominantEntry(elements); name != "" {
		out = append(out, domain.Signal{
			Key:        "astro.element.dominant",
			Label:      "우세 원소",
			Value:      name,
			Importance: domain.ClampImportance(0.4 + share),
			Tags:       []domain.Axis{domain.AxisIdentity, domain.AxisEmotion},
			RawPath:    "elements",
		})
	}
	if name, share := dominantEntry(modalities); name != "" {
		out = append(out, domain.Signal{
			Key:        "astro.modality.dominant",
			Label:      "우세 특질",
			Value:      name,
			Importance: domain.ClampImportance(0.35 + share),
			Tags:       []domain.Axis{domain.AxisIdentity},
			RawPath:    "modalities",
		})
	}
	return out
}

func astroTransits(p domain.ChartPayload) []domain.Signal {
	out := make([]domain.Signal, 0, 4)
	for i, tr := range p.MapsAt("transits") {
		planet := domain.MapString(tr, "planet")
		aspect := domain.MapString(tr, "aspect")
		natal := domain.MapString(tr, "natal")
		if planet == "" || aspect == "" {
			continue
		}

		value := planet + " " + aspect
		if natal != "" {
			value += " " + natal
		}
		out = append(out, domain.Signal{
			Key:        fmt.Sprintf("astro.transit.%s.%d", strings.ToLower(planet), i),
			Label:      "트랜짓",
			Value:      value,
			Importance: 0.7,
			Tags:       []domain.Axis{domain.AxisTiming},
			RawPath:    fmt.Sprintf("transits.%d", i),
		})
	}
	return out
}

func astroProgressions(p domain.ChartPayload) []domain.Signal {
	out := make([]domain.Signal, 0, 2)
	if sign := p.StringAt("progressions.moon.sign"); sign != "" {
		out = append(out, domain.Signal{
			Key:        "astro.progressed.moon",
			Label:      "진행 달",
			Value:      sign,
			Importance: 0.6,
			Tags:       []domain.Axis{domain.AxisEmotion, domain.AxisTiming},
			RawPath:    "progressions.moon",
		})
	}
	if theme := p.StringAt("solar_return.theme"); theme != "" {
		out = append(out, domain.Signal{
			Key:        "astro.solar_return",
			Label:      "솔라 리턴",
			Value:      theme,
			Importance: 0.55,
			Tags:       []domain.Axis{domain.AxisTiming, domain.AxisLifePath},
			RawPath:    "solar_return",
		})
	}
	return out
}

func ratioMap(p domain.ChartPayload, path string) map[string]float64 {
	raw := p.MapAt(path)
	out := make(map[string]float64, len(raw))
	for key := range raw {
		if v := domain.MapFloat(raw, key); v > 0 {
			out[strings.ToLower(key)] = v
		}
	}
	return out
}

func dominantEntry(ratios map[string]float64) (string, float64) {
	var (
		name  string
		best  float64
		total float64
	)
	for key, v := range ratios {
		total += v
		if v > best || (v == best && key < name) {
			name, best = key, v
		}
	}
	if name == "" || total <= 0 {
		return "", 0
	}
	return name, best / total
}
