package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/junhyuk-dev/fortune-rag/internal/core/domain"
	"github.com/junhyuk-dev/fortune-rag/internal/core/ports"
)

// Optional knowledge collections consulted only when the leakage guard is off.
const (
	corpusCollection  = "counseling_corpus_v1"
	personaCollection = "persona_profiles_v1"
	domainCollection  = "domain_knowledge_v1"
)

const maxPrefetchWorkers = 8

// ManagerOptions tunes the prefetch fan-out.
type ManagerOptions struct {
	Workers       int
	WorkerTimeout time.Duration
	Budget        time.Duration
	LeakGuard     bool
	Trace         bool
}

// ManagerHooks receive retrieval telemetry. Nil fields are skipped; every
// hook must be cheap and non-blocking.
type ManagerHooks struct {
	OnPrefetch    func(outcome string, groups int, duration time.Duration)
	OnStoreSearch func(collection, status string)
	OnStoreSkip   func(store string)
}

// PrefetchInput is one prefetch request.
type PrefetchInput struct {
	SajuPayload  domain.ChartPayload
	AstroPayload domain.ChartPayload
	Theme        string
	Locale       string
}

// RAGManager fans retrieval work out onto a bounded worker pool and folds the
// partial results into one PrefetchResult. A failing worker degrades its own
// slice of the result and never fails the whole prefetch.
type RAGManager struct {
	cross    *CrossStore
	factory  ports.VectorStoreFactory
	embedder ports.Embedder
	opts     ManagerOptions
	hooks    ManagerHooks
	logger   *slog.Logger
}

func NewRAGManager(cross *CrossStore, factory ports.VectorStoreFactory, embedder ports.Embedder, opts ManagerOptions, logger *slog.Logger) *RAGManager {
	if opts.Workers <= 0 || opts.Workers > maxPrefetchWorkers {
		opts.Workers = maxPrefetchWorkers
	}
	if opts.WorkerTimeout <= 0 {
		opts.WorkerTimeout = 5 * time.Second
	}
	if opts.Budget <= 0 {
		opts.Budget = 8 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RAGManager{
		cross:    cross,
		factory:  factory,
		embedder: embedder,
		opts:     opts,
		logger:   logger,
	}
}

// SetHooks installs telemetry callbacks. Call before the first Prefetch.
func (m *RAGManager) SetHooks(hooks ManagerHooks) {
	m.hooks = hooks
}

// Prefetch derives the retrieval query from the chart payloads, runs all
// retrieval workers and assembles the result. It never returns an error;
// total retrieval failure yields an empty result with the time stamp set.
func (m *RAGManager) Prefetch(ctx context.Context, saju, astro domain.ChartPayload, theme, locale string) domain.PrefetchResult {
	started := time.Now()
	in := PrefetchInput{SajuPayload: saju, AstroPayload: astro, Theme: theme, Locale: locale}

	sajuSignals := ExtractSajuSignals(in.SajuPayload)
	astroSignals := ExtractAstroSignals(in.AstroPayload)
	query := BuildPrefetchQuery(in, sajuSignals, astroSignals)

	result := domain.EmptyPrefetch()
	var mu sync.Mutex

	tasks := []func(context.Context){
		func(ctx context.Context) {
			nodes := m.fetchGraphNodes(ctx, query)
			mu.Lock()
			result.GraphNodes = nodes
			mu.Unlock()
		},
		func(ctx context.Context) {
			summary, groups, err := m.cross.Retrieve(ctx, CrossQuery{
				Query:        query,
				SajuSeed:     SajuSeedRefs(in.SajuPayload),
				AstroSeed:    AstroSeedRefs(in.AstroPayload),
				SajuSignals:  sajuSignals,
				AstroSignals: astroSignals,
			})
			if err != nil {
				m.logger.Warn("cross retrieval degraded", slog.String("error", err.Error()))
				m.storeSearched(domain.CrossCollection, "error")
				return
			}
			m.trace("collection=" + domain.CrossCollection)
			m.storeSearched(domain.CrossCollection, "ok")
			mu.Lock()
			result.CrossAnalysis = summary
			result.CrossGroups = groups
			mu.Unlock()
		},
	}

	if m.opts.LeakGuard {
		m.trace("corpus_rag skipped")
		m.trace("persona_rag skipped")
		m.trace("domain_rag skipped")
		if m.hooks.OnStoreSkip != nil {
			m.hooks.OnStoreSkip("corpus_rag")
			m.hooks.OnStoreSkip("persona_rag")
			m.hooks.OnStoreSkip("domain_rag")
		}
	} else {
		tasks = append(tasks,
			func(ctx context.Context) {
				quotes := m.fetchTexts(ctx, corpusCollection, query, 4)
				mu.Lock()
				result.CorpusQuotes = quotes
				mu.Unlock()
			},
			func(ctx context.Context) {
				personaCtx := m.fetchPersonaContext(ctx, query)
				mu.Lock()
				result.PersonaContext = personaCtx
				mu.Unlock()
			},
			func(ctx context.Context) {
				knowledge := m.fetchTexts(ctx, domainCollection, query, 4)
				mu.Lock()
				result.DomainKnowledge = knowledge
				mu.Unlock()
			},
		)
	}

	// The budget bounds the whole fan-out; workers additionally carry their
	// own per-worker timeout.
	budgetCtx, cancel := context.WithTimeout(ctx, m.opts.Budget)
	defer cancel()
	m.runAll(budgetCtx, tasks)

	elapsed := time.Since(started)
	result.PrefetchTimeMS = elapsed.Milliseconds()
	if m.hooks.OnPrefetch != nil {
		outcome := "ok"
		if len(result.CrossGroups) == 0 {
			outcome = "empty"
		}
		m.hooks.OnPrefetch(outcome, len(result.CrossGroups), elapsed)
	}
	return result
}

// runAll executes tasks on at most opts.Workers goroutines, each bounded by
// the per-worker timeout, and waits for all of them.
func (m *RAGManager) runAll(ctx context.Context, tasks []func(context.Context)) {
	sem := make(chan struct{}, m.opts.Workers)
	var wg sync.WaitGroup
	for _, task := range tasks {
		wg.Add(1)
		sem <- struct{}{}
		go func(run func(context.Context)) {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if r := recover(); r != nil {
					m.logger.Error("prefetch worker panic", slog.Any("panic", r))
				}
			}()
			workerCtx, cancel := context.WithTimeout(ctx, m.opts.WorkerTimeout)
			defer cancel()
			run(workerCtx)
		}(task)
	}
	wg.Wait()
}

func (m *RAGManager) fetchGraphNodes(ctx context.Context, query string) []string {
	hits := m.search(ctx, domain.GraphNodesCollection, query, 8, nil)
	nodes := make([]string, 0, len(hits))
	for _, hit := range hits {
		if title := hit.Meta("title"); title != "" {
			nodes = append(nodes, title+": "+hit.Text)
			continue
		}
		nodes = append(nodes, hit.Text)
	}
	return nodes
}

func (m *RAGManager) fetchTexts(ctx context.Context, collection, query string, limit int) []string {
	hits := m.search(ctx, collection, query, limit, nil)
	texts := make([]string, 0, len(hits))
	for _, hit := range hits {
		texts = append(texts, hit.Text)
	}
	return texts
}

func (m *RAGManager) fetchPersonaContext(ctx context.Context, query string) map[string]string {
	hits := m.search(ctx, personaCollection, query, 4, nil)
	out := make(map[string]string, len(hits))
	for _, hit := range hits {
		out[hit.ID] = hit.Text
	}
	return out
}

func (m *RAGManager) search(ctx context.Context, collection, query string, limit int, where map[string]string) []domain.SearchHit {
	store, err := m.factory.Store(collection)
	if err != nil {
		m.logger.Warn("store unavailable", slog.String("collection", collection), slog.String("error", err.Error()))
		m.storeSearched(collection, "unavailable")
		return nil
	}
	vector, err := m.embedder.EmbedQuery(ctx, query)
	if err != nil {
		m.logger.Warn("query embedding failed", slog.String("collection", collection), slog.String("error", err.Error()))
		m.storeSearched(collection, "embed_error")
		return nil
	}
	hits, err := store.Search(ctx, vector, limit, 0, where)
	if err != nil {
		m.logger.Warn("search degraded", slog.String("collection", collection), slog.String("error", err.Error()))
		m.storeSearched(collection, "error")
		return nil
	}
	m.trace("collection=" + collection)
	m.storeSearched(collection, "ok")
	return hits
}

func (m *RAGManager) storeSearched(collection, status string) {
	if m.hooks.OnStoreSearch != nil {
		m.hooks.OnStoreSearch(collection, status)
	}
}

func (m *RAGManager) trace(line string) {
	if m.opts.Trace {
		m.logger.Info(line)
	}
}
