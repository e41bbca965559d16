package usecase

import (
	"sort"
	"strconv"

	"github.com/junhyuk-dev/fortune-rag/internal/core/domain"
)

// groupCrossHits partitions ranked hits by their axis metadata, keeps each
// group sorted by cross score and returns the top maxGroups groups ordered by
// their leading item. Hits without an axis fall into the general group.
func groupCrossHits(ranked []domain.SearchHit, maxGroups int) []domain.Group {
	byAxis := make(map[domain.Axis][]domain.SearchHit)
	order := make([]domain.Axis, 0, 4)
	for _, hit := range ranked {
		axis := domain.ParseAxis(hit.Meta(domain.MetaAxis))
		if _, seen := byAxis[axis]; !seen {
			order = append(order, axis)
		}
		byAxis[axis] = append(byAxis[axis], hit)
	}

	groups := make([]domain.Group, 0, len(order))
	for _, axis := range order {
		groups = append(groups, domain.Group{Axis: axis, Items: byAxis[axis]})
	}
	// input is already cross-score sorted, so each group inherits that order;
	// groups themselves rank by their best item
	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].TopScore() != groups[j].TopScore() {
			return groups[i].TopScore() > groups[j].TopScore()
		}
		return groups[i].Axis < groups[j].Axis
	})

	if maxGroups > 0 && len(groups) > maxGroups {
		groups = groups[:maxGroups]
	}
	return groups
}

// slotsFromRefs collects evidence slots from the group items' ref lists in
// rank order, deduplicated by id.
func slotsFromRefs(items []domain.SearchHit, refKey string) []domain.EvidenceSlot {
	seen := make(map[string]struct{}, 4)
	out := make([]domain.EvidenceSlot, 0, 4)
	for _, item := range items {
		for _, ref := range domain.RefList(item.Metadata, refKey) {
			if _, dup := seen[ref]; dup {
				continue
			}
			seen[ref] = struct{}{}
			out = append(out, domain.EvidenceSlot{ID: ref, Score: item.CrossScore})
		}
	}
	return out
}

// padWithTombstones guarantees the two-slot minimum. Fabricated missing_* ids
// are the last resort after card refs and graph backfill both came up short.
func padWithTombstones(slots []domain.EvidenceSlot, side string) []domain.EvidenceSlot {
	for n := 1; len(slots) < 2; n++ {
		slots = append(slots, domain.EvidenceSlot{
			ID:       "missing_" + side + "_" + strconv.Itoa(n),
			Backfill: true,
		})
	}
	return slots
}
