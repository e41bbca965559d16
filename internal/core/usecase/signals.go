package usecase

import (
	"sort"
	"strings"

	"github.com/junhyuk-dev/fortune-rag/internal/core/domain"
)

// axisKeywords maps each axis to the query tokens that mark it. Used both for
// the cross-rank rule bonus and for theme resolution.
var axisKeywords = map[domain.Axis][]string{
	domain.AxisRelationship: {"love", "relationship", "partner", "marriage", "연애", "사랑", "결혼", "궁합"},
	domain.AxisCareer:       {"career", "job", "work", "promotion", "직업", "직장", "이직", "승진", "사업"},
	domain.AxisWealth:       {"money", "wealth", "finance", "investment", "재물", "돈", "투자", "재정"},
	domain.AxisHealth:       {"health", "body", "건강", "체력"},
	domain.AxisEmotion:      {"emotion", "feeling", "stress", "감정", "마음", "스트레스", "불안"},
	domain.AxisLifePath:     {"life", "path", "purpose", "인생", "삶", "방향", "사명"},
	domain.AxisTiming:       {"when", "timing", "time", "언제", "시기", "타이밍"},
	domain.AxisIdentity:     {"identity", "self", "personality", "정체성", "자아", "성격"},
}

// AxisForTheme resolves a request theme onto the axis vocabulary.
func AxisForTheme(theme string) domain.Axis {
	t := strings.ToLower(strings.TrimSpace(theme))
	if t == "" {
		return domain.AxisGeneral
	}
	if axis := domain.ParseAxis(t); axis != domain.AxisGeneral {
		return axis
	}
	// common aliases before keyword scan
	switch t {
	case "love":
		return domain.AxisRelationship
	case "money", "finance":
		return domain.AxisWealth
	}
	for axis, words := range axisKeywords {
		for _, w := range words {
			if t == w || strings.Contains(t, w) {
				return axis
			}
		}
	}
	return domain.AxisGeneral
}

// scoreForAxis ranks one signal against an axis:
// importance + 0.45 on any tag overlap + min(0.20, 0.06*overlap).
// The general axis ranks by raw importance.
func scoreForAxis(signal domain.Signal, axis domain.Axis) float64 {
	if axis == domain.AxisGeneral {
		return signal.Importance
	}
	overlap := signal.TagOverlap([]domain.Axis{axis})
	score := signal.Importance
	if overlap >= 1 {
		score += 0.45
	}
	bonus := 0.06 * float64(overlap)
	if bonus > 0.20 {
		bonus = 0.20
	}
	return score + bonus
}

// selectSignalsForAxis returns the top-limit signals by
// (axis score, importance, key) descending. Adding a signal that scores below
// the current k-th can never displace an incumbent.
func selectSignalsForAxis(signals []domain.Signal, axis domain.Axis, limit int) []domain.Signal {
	if limit <= 0 || len(signals) == 0 {
		return nil
	}

	type scored struct {
		signal domain.Signal
		score  float64
	}
	ranked := make([]scored, 0, len(signals))
	for _, s := range signals {
		ranked = append(ranked, scored{signal: s, score: scoreForAxis(s, axis)})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		if ranked[i].signal.Importance != ranked[j].signal.Importance {
			return ranked[i].signal.Importance > ranked[j].signal.Importance
		}
		return ranked[i].signal.Key > ranked[j].signal.Key
	})

	if limit > len(ranked) {
		limit = len(ranked)
	}
	out := make([]domain.Signal, 0, limit)
	for _, r := range ranked[:limit] {
		out = append(out, r.signal)
	}
	return out
}

// dedupeSignals keeps the first occurrence of each key, preserving order.
func dedupeSignals(signals []domain.Signal) []domain.Signal {
	seen := make(map[string]struct{}, len(signals))
	out := make([]domain.Signal, 0, len(signals))
	for _, s := range signals {
		if s.Key == "" || s.Label == "" || s.Value == "" {
			continue
		}
		if _, ok := seen[s.Key]; ok {
			continue
		}
		seen[s.Key] = struct{}{}
		s.Importance = domain.ClampImportance(s.Importance)
		out = append(out, s)
	}
	return out
}

func toTokenSet(s string) map[string]struct{} {
	tokens := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return false
		case r >= 0xAC00 && r <= 0xD7A3: // Hangul syllables
			return false
		default:
			return true
		}
	})
	out := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		out[t] = struct{}{}
	}
	return out
}
