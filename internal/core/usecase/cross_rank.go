package usecase

import (
	"sort"
	"strings"

	"github.com/junhyuk-dev/fortune-rag/internal/core/domain"
)

// rankCrossHits scores every hit as
// cross_score = score + 0.2*rule_match_bonus + 0.2*overlap_bonus
// and returns them sorted by that score descending. Ties break on raw score,
// then on id, so identical inputs always rank identically.
func rankCrossHits(hits []domain.SearchHit, q CrossQuery) []domain.SearchHit {
	queryTokens := toTokenSet(q.Query)
	queryLower := strings.ToLower(q.Query)
	sajuSeed := lowerSet(q.SajuSeed)
	astroSeed := lowerSet(q.AstroSeed)

	ranked := make([]domain.SearchHit, len(hits))
	copy(ranked, hits)
	for i := range ranked {
		hit := &ranked[i]
		hit.RuleMatchBonus = ruleMatchBonus(*hit, queryTokens, queryLower)
		hit.OverlapBonus = overlapBonus(*hit, sajuSeed, astroSeed)
		hit.CrossScore = hit.Score + 0.2*hit.RuleMatchBonus + 0.2*hit.OverlapBonus
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].CrossScore != ranked[j].CrossScore {
			return ranked[i].CrossScore > ranked[j].CrossScore
		}
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].ID < ranked[j].ID
	})
	return ranked
}

// ruleMatchBonus is 1 when the card's axis keyword set or fusion key shows up
// in the query, otherwise 0.
func ruleMatchBonus(hit domain.SearchHit, queryTokens map[string]struct{}, queryLower string) float64 {
	axis := domain.ParseAxis(hit.Meta(domain.MetaAxis))
	for _, keyword := range axisKeywords[axis] {
		if _, ok := queryTokens[keyword]; ok {
			return 1
		}
	}
	if key := strings.ToLower(hit.Meta(domain.MetaFusionKey)); key != "" {
		if _, ok := queryTokens[key]; ok {
			return 1
		}
		if strings.Contains(queryLower, key) {
			return 1
		}
	}
	return 0
}

// overlapBonus adds 0.5 per side whose card refs intersect the request seed,
// capped at 1. Matching is case-insensitive.
func overlapBonus(hit domain.SearchHit, sajuSeed, astroSeed map[string]struct{}) float64 {
	var bonus float64
	if refsIntersect(domain.RefList(hit.Metadata, domain.MetaSajuRefs), sajuSeed) {
		bonus += 0.5
	}
	if refsIntersect(domain.RefList(hit.Metadata, domain.MetaAstroRefs), astroSeed) {
		bonus += 0.5
	}
	return bonus
}

func refsIntersect(refs []string, seed map[string]struct{}) bool {
	if len(seed) == 0 {
		return false
	}
	for _, ref := range refs {
		if _, ok := seed[strings.ToLower(ref)]; ok {
			return true
		}
	}
	return false
}

func lowerSet(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			out[v] = struct{}{}
		}
	}
	return out
}
