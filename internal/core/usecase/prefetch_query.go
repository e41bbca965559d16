package usecase

import (
	"fmt"
	"sort"
	"strings"

	"github.com/junhyuk-dev/fortune-rag/internal/core/domain"
)

// BuildPrefetchQuery assembles the retrieval query from chart facts and theme
// keywords. Same payloads always yield the same string.
func BuildPrefetchQuery(in PrefetchInput, sajuSignals, astroSignals []domain.Signal) string {
	parts := make([]string, 0, 8)

	if theme := strings.TrimSpace(in.Theme); theme != "" {
		parts = append(parts, theme)
	}
	if axis := AxisForTheme(in.Theme); axis != domain.AxisGeneral {
		parts = append(parts, axisKeywords[axis][0])
	}

	for _, s := range sajuSignals {
		switch s.Key {
		case "saju.day_master", "saju.day_master.strength", "saju.daeun.current":
			parts = append(parts, s.Label+" "+s.Value)
		}
	}
	for _, s := range astroSignals {
		switch s.Key {
		case "astro.chart_ruler", "astro.element.dominant":
			parts = append(parts, s.Label+" "+s.Value)
		}
	}

	if len(parts) == 0 {
		parts = append(parts, "전반적인 흐름")
	}
	return strings.Join(parts, " ")
}

// SajuSeedRefs derives the reference tokens a fusion card's saju_refs list is
// matched against: ten-god tokens, element tokens and special stars. Sorted
// for determinism.
func SajuSeedRefs(payload domain.ChartPayload) []string {
	seen := make(map[string]struct{}, 8)

	if dist := payload.MapAt("ten_gods.distribution"); len(dist) > 0 {
		for name := range dist {
			if domain.MapFloat(dist, name) > 0 {
				seen["SIPSIN_"+name] = struct{}{}
			}
		}
	}
	if el := payload.StringAt("day_master.element"); el != "" {
		seen["EL_"+el] = struct{}{}
	}
	if el := payload.StringAt("yongsin.primary"); el != "" {
		seen["EL_"+el] = struct{}{}
	}
	for _, star := range payload.StringsAt("shinsal") {
		seen[star] = struct{}{}
	}

	return sortedKeys(seen)
}

// AstroSeedRefs derives the astro-side tokens: planet names, occupied houses
// as h<n>, and the chart ruler.
func AstroSeedRefs(payload domain.ChartPayload) []string {
	seen := make(map[string]struct{}, 12)

	for _, planet := range payload.MapsAt("planets") {
		if name := domain.MapString(planet, "name"); name != "" {
			seen[name] = struct{}{}
		}
		if house := int(domain.MapFloat(planet, "house")); house >= 1 && house <= 12 {
			seen[fmt.Sprintf("h%d", house)] = struct{}{}
		}
	}
	if ruler := payload.StringAt("chart_ruler.planet"); ruler != "" {
		seen[ruler] = struct{}{}
	}

	return sortedKeys(seen)
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
