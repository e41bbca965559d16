package usecase

import (
	"context"
	"log/slog"
	"strings"

	"github.com/junhyuk-dev/fortune-rag/internal/core/domain"
	"github.com/junhyuk-dev/fortune-rag/internal/core/ports"
)

// backfillFromGraph tops up short evidence sides with graph-node hits for the
// group's axis. The first pass asks for 8 nodes; if either side is still
// short it widens once to 16 before the caller resorts to tombstones.
func (c *CrossStore) backfillFromGraph(ctx context.Context, graph ports.VectorStore, group *domain.Group, queryVector []float32) {
	for _, limit := range []int{8, 16} {
		if len(group.SajuEvidence) >= 2 && len(group.AstroEvidence) >= 2 {
			return
		}

		where := map[string]string{}
		if group.Axis != domain.AxisGeneral {
			where[domain.MetaAxis] = string(group.Axis)
		}
		hits, err := graph.Search(ctx, queryVector, limit, 0, where)
		if err != nil {
			c.logger.Warn("evidence backfill search failed",
				slog.String("collection", graph.Collection()),
				slog.String("error", err.Error()))
			return
		}
		appendBackfillSlots(group, hits)
	}
}

func appendBackfillSlots(group *domain.Group, hits []domain.SearchHit) {
	sajuSeen := slotIDSet(group.SajuEvidence)
	astroSeen := slotIDSet(group.AstroEvidence)

	for _, hit := range hits {
		slot := domain.EvidenceSlot{
			Title:    hit.Meta("title"),
			ID:       hit.ID,
			Score:    hit.Score,
			Backfill: true,
		}
		switch classifyNodeSide(hit) {
		case "saju":
			if len(group.SajuEvidence) >= 2 {
				continue
			}
			if _, dup := sajuSeen[hit.ID]; dup {
				continue
			}
			sajuSeen[hit.ID] = struct{}{}
			group.SajuEvidence = append(group.SajuEvidence, slot)
		case "astro":
			if len(group.AstroEvidence) >= 2 {
				continue
			}
			if _, dup := astroSeen[hit.ID]; dup {
				continue
			}
			astroSeen[hit.ID] = struct{}{}
			group.AstroEvidence = append(group.AstroEvidence, slot)
		}
	}
}

// classifyNodeSide decides which evidence side a graph node belongs to, by
// metadata domain first and id prefix as fallback.
func classifyNodeSide(hit domain.SearchHit) string {
	switch strings.ToLower(hit.Meta(domain.MetaDomain)) {
	case "saju":
		return "saju"
	case "astro", "astrology":
		return "astro"
	}
	id := strings.ToLower(hit.ID)
	switch {
	case strings.HasPrefix(id, "saju"):
		return "saju"
	case strings.HasPrefix(id, "astro"):
		return "astro"
	}
	return ""
}

func slotIDSet(slots []domain.EvidenceSlot) map[string]struct{} {
	out := make(map[string]struct{}, len(slots))
	for _, s := range slots {
		out[s.ID] = struct{}{}
	}
	return out
}
