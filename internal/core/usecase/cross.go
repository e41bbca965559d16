package usecase

import (
	"context"
	"log/slog"

	"github.com/junhyuk-dev/fortune-rag/internal/core/domain"
	"github.com/junhyuk-dev/fortune-rag/internal/core/ports"
)

// CrossOptions tunes search and grouping of the cross-fusion collection.
type CrossOptions struct {
	TopK      int
	MinScore  float64
	MaxGroups int
	Advanced  bool
}

// CrossQuery is one retrieval request against the cross store. Seeds are
// reference tokens derived from the chart payloads and are matched against
// fusion-card ref lists during ranking.
type CrossQuery struct {
	Query        string
	SajuSeed     []string
	AstroSeed    []string
	SajuSignals  []domain.Signal
	AstroSignals []domain.Signal
}

// CrossStore searches pre-authored fusion cards, re-ranks them with axis and
// seed bonuses, groups them by axis and renders the cross-summary with the
// two-slot evidence guarantee per side.
type CrossStore struct {
	factory    ports.VectorStoreFactory
	embedder   ports.Embedder
	opts       CrossOptions
	logger     *slog.Logger
	onBackfill func(side string, slots int)
}

func NewCrossStore(factory ports.VectorStoreFactory, embedder ports.Embedder, opts CrossOptions, logger *slog.Logger) *CrossStore {
	if opts.TopK <= 0 {
		opts.TopK = 12
	}
	if opts.MinScore == 0 {
		opts.MinScore = 0.1
	}
	if opts.MaxGroups <= 0 {
		opts.MaxGroups = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CrossStore{
		factory:  factory,
		embedder: embedder,
		opts:     opts,
		logger:   logger,
	}
}

// SetBackfillHook installs a telemetry callback fired once per group side
// that gained backfilled slots. Call before the first Retrieve.
func (c *CrossStore) SetBackfillHook(hook func(side string, slots int)) {
	c.onBackfill = hook
}

// Retrieve runs search, rank, group, backfill and summary rendering. A store
// or embedding failure returns groups==nil and the error; callers degrade to
// an empty cross-analysis.
func (c *CrossStore) Retrieve(ctx context.Context, q CrossQuery) (string, []domain.Group, error) {
	store, err := c.factory.Store(domain.CrossCollection)
	if err != nil {
		return "", nil, domain.WrapError(domain.ErrTemporary, "cross store handle", err)
	}

	vector, err := c.embedder.EmbedQuery(ctx, q.Query)
	if err != nil {
		return "", nil, domain.WrapError(domain.ErrTemporary, "cross query embedding", err)
	}

	hits, err := store.Search(ctx, vector, c.opts.TopK, c.opts.MinScore,
		map[string]string{domain.MetaDomain: domain.CrossDomainTag})
	if err != nil {
		return "", nil, err
	}
	if len(hits) == 0 {
		return "", []domain.Group{}, nil
	}

	ranked := rankCrossHits(hits, q)
	groups := groupCrossHits(ranked, c.opts.MaxGroups)

	for i := range groups {
		c.fillEvidence(ctx, &groups[i], q.Query, vector)
		if c.opts.Advanced {
			attachAdvancedLink(&groups[i], q.SajuSignals, q.AstroSignals)
		}
	}

	return renderCrossSummary(groups), groups, nil
}

// fillEvidence populates both evidence sides of a group, backfilling from the
// graph-nodes collection when the card refs fall short of two slots.
func (c *CrossStore) fillEvidence(ctx context.Context, group *domain.Group, query string, queryVector []float32) {
	group.SajuEvidence = slotsFromRefs(group.Items, domain.MetaSajuRefs)
	group.AstroEvidence = slotsFromRefs(group.Items, domain.MetaAstroRefs)
	if len(group.SajuEvidence) >= 2 && len(group.AstroEvidence) >= 2 {
		return
	}

	sajuBefore, astroBefore := len(group.SajuEvidence), len(group.AstroEvidence)

	graph, err := c.factory.Store(domain.GraphNodesCollection)
	if err != nil {
		c.logger.Warn("evidence backfill unavailable", slog.String("error", err.Error()))
	} else {
		c.backfillFromGraph(ctx, graph, group, queryVector)
	}

	if c.onBackfill != nil {
		if gained := len(group.SajuEvidence) - sajuBefore; gained > 0 {
			c.onBackfill("saju", gained)
		}
		if gained := len(group.AstroEvidence) - astroBefore; gained > 0 {
			c.onBackfill("astro", gained)
		}
	}

	group.SajuEvidence = padWithTombstones(group.SajuEvidence, "saju")
	group.AstroEvidence = padWithTombstones(group.AstroEvidence, "astro")
}
