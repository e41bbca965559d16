package usecase

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/junhyuk-dev/fortune-rag/internal/core/domain"
)

func newManagerForTest(cross, graph *fakeStore, opts ManagerOptions, logBuf *bytes.Buffer) *RAGManager {
	logger := slog.Default()
	if logBuf != nil {
		logger = slog.New(slog.NewTextHandler(logBuf, nil))
	}
	factory := newFakeFactory(cross, graph)
	crossStore := NewCrossStore(factory, &fakeEmbedder{}, CrossOptions{}, logger)
	return NewRAGManager(crossStore, factory, &fakeEmbedder{}, opts, logger)
}

func prefetchStores() (*fakeStore, *fakeStore) {
	cross := &fakeStore{
		collection: domain.CrossCollection,
		hits: []domain.SearchHit{
			crossHit("card-1", 0.6, map[string]string{
				domain.MetaAxis:      "relationship",
				domain.MetaSajuRefs:  "SIPSIN_JAE,EL_목",
				domain.MetaAstroRefs: "Venus,h7",
			}),
		},
	}
	graph := &fakeStore{
		collection: domain.GraphNodesCollection,
		hits: []domain.SearchHit{
			{ID: "saju_jae", Text: "재성 해석 노드", Score: 0.5, Metadata: map[string]string{
				domain.MetaDomain: "saju", "title": "재성",
			}},
			{ID: "astro_venus", Text: "금성 해석 노드", Score: 0.4, Metadata: map[string]string{
				domain.MetaDomain: "astro", "title": "금성",
			}},
		},
	}
	return cross, graph
}

func TestPrefetchLeakGuardSuppressesOptionalStores(t *testing.T) {
	cross, graph := prefetchStores()
	var logBuf bytes.Buffer
	mgr := newManagerForTest(cross, graph, ManagerOptions{LeakGuard: true, Trace: true}, &logBuf)

	result := mgr.Prefetch(context.Background(), sampleSajuPayload(), sampleAstroPayload(), "love", "ko")

	logs := logBuf.String()
	for _, line := range []string{"corpus_rag skipped", "persona_rag skipped", "domain_rag skipped"} {
		if !strings.Contains(logs, line) {
			t.Fatalf("trace missing %q:\n%s", line, logs)
		}
	}

	if len(result.GraphNodes) == 0 && result.CrossAnalysis == "" {
		t.Fatal("guarded prefetch should still retrieve graph or cross results")
	}
	if len(result.CorpusQuotes) != 0 || len(result.PersonaContext) != 0 || len(result.DomainKnowledge) != 0 {
		t.Fatalf("policy fields must stay empty under the guard: %+v", result)
	}
	if result.CorpusQuotes == nil || result.PersonaContext == nil || result.DomainKnowledge == nil {
		t.Fatal("policy fields must be empty, not nil")
	}
	if result.PrefetchTimeMS < 0 {
		t.Fatalf("prefetch time = %d", result.PrefetchTimeMS)
	}
}

func TestPrefetchHooksReportOutcomeAndSkips(t *testing.T) {
	cross, graph := prefetchStores()
	mgr := newManagerForTest(cross, graph, ManagerOptions{LeakGuard: true}, nil)

	var (
		mu       sync.Mutex
		outcomes []string
		searches = map[string][]string{}
		skips    []string
	)
	mgr.SetHooks(ManagerHooks{
		OnPrefetch: func(outcome string, groups int, duration time.Duration) {
			mu.Lock()
			defer mu.Unlock()
			outcomes = append(outcomes, outcome)
			if groups == 0 {
				t.Errorf("outcome %q reported with zero groups", outcome)
			}
			if duration < 0 {
				t.Errorf("negative prefetch duration %v", duration)
			}
		},
		OnStoreSearch: func(collection, status string) {
			mu.Lock()
			defer mu.Unlock()
			searches[collection] = append(searches[collection], status)
		},
		OnStoreSkip: func(store string) {
			mu.Lock()
			defer mu.Unlock()
			skips = append(skips, store)
		},
	})

	mgr.Prefetch(context.Background(), sampleSajuPayload(), sampleAstroPayload(), "love", "ko")

	mu.Lock()
	defer mu.Unlock()
	if len(outcomes) != 1 || outcomes[0] != "ok" {
		t.Fatalf("prefetch outcomes = %v", outcomes)
	}
	for _, collection := range []string{domain.CrossCollection, domain.GraphNodesCollection} {
		if got := searches[collection]; len(got) == 0 || got[0] != "ok" {
			t.Fatalf("search hook for %s = %v", collection, got)
		}
	}
	if !reflect.DeepEqual(skips, []string{"corpus_rag", "persona_rag", "domain_rag"}) {
		t.Fatalf("skip hook = %v", skips)
	}
}

func TestPrefetchHooksReportDegradedSearch(t *testing.T) {
	cross, graph := prefetchStores()
	cross.err = errors.New("store down")
	mgr := newManagerForTest(cross, graph, ManagerOptions{LeakGuard: true}, nil)

	var (
		mu       sync.Mutex
		outcomes []string
		statuses []string
	)
	mgr.SetHooks(ManagerHooks{
		OnPrefetch: func(outcome string, _ int, _ time.Duration) {
			mu.Lock()
			defer mu.Unlock()
			outcomes = append(outcomes, outcome)
		},
		OnStoreSearch: func(collection, status string) {
			if collection != domain.CrossCollection {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			statuses = append(statuses, status)
		},
	})

	mgr.Prefetch(context.Background(), sampleSajuPayload(), nil, "career", "ko")

	mu.Lock()
	defer mu.Unlock()
	if len(outcomes) != 1 || outcomes[0] != "empty" {
		t.Fatalf("degraded prefetch outcome = %v", outcomes)
	}
	if len(statuses) != 1 || statuses[0] != "error" {
		t.Fatalf("cross search statuses = %v", statuses)
	}
}

// stallingEmbedder blocks until its context is cancelled.
type stallingEmbedder struct{}

func (stallingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (stallingEmbedder) EmbedQuery(ctx context.Context, _ string) ([]float32, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestPrefetchBudgetBoundsStalledWorkers(t *testing.T) {
	cross, graph := prefetchStores()
	factory := newFakeFactory(cross, graph)
	crossStore := NewCrossStore(factory, stallingEmbedder{}, CrossOptions{}, nil)
	mgr := NewRAGManager(crossStore, factory, stallingEmbedder{}, ManagerOptions{
		LeakGuard:     true,
		Budget:        50 * time.Millisecond,
		WorkerTimeout: time.Minute,
	}, nil)

	started := time.Now()
	result := mgr.Prefetch(context.Background(), sampleSajuPayload(), sampleAstroPayload(), "love", "ko")

	if elapsed := time.Since(started); elapsed > 2*time.Second {
		t.Fatalf("budget did not bound the fan-out, took %v", elapsed)
	}
	if result.CrossAnalysis != "" || len(result.GraphNodes) != 0 {
		t.Fatalf("stalled workers should degrade to empty, got %+v", result)
	}
}

func TestPrefetchDeterministicAcrossCalls(t *testing.T) {
	cross, graph := prefetchStores()
	mgr := newManagerForTest(cross, graph, ManagerOptions{LeakGuard: true}, nil)

	saju, astro := sampleSajuPayload(), sampleAstroPayload()
	first := mgr.Prefetch(context.Background(), saju, astro, "연애", "ko")
	second := mgr.Prefetch(context.Background(), saju, astro, "연애", "ko")

	if !reflect.DeepEqual(first.GraphNodes, second.GraphNodes) {
		t.Fatalf("graph nodes differ:\n%v\n%v", first.GraphNodes, second.GraphNodes)
	}
	if first.CrossAnalysis != second.CrossAnalysis {
		t.Fatal("cross analysis differs between identical calls")
	}
	if len(first.CrossGroups) != len(second.CrossGroups) {
		t.Fatal("group count differs")
	}
	for i := range first.CrossGroups {
		if first.CrossGroups[i].Axis != second.CrossGroups[i].Axis {
			t.Fatalf("group order differs at %d", i)
		}
	}
}

func TestPrefetchDegradesOnFailingWorker(t *testing.T) {
	cross, graph := prefetchStores()
	cross.err = errors.New("store down")
	mgr := newManagerForTest(cross, graph, ManagerOptions{LeakGuard: true}, nil)

	result := mgr.Prefetch(context.Background(), sampleSajuPayload(), nil, "career", "ko")

	if result.CrossAnalysis != "" || len(result.CrossGroups) != 0 {
		t.Fatalf("cross failure should degrade to empty, got %+v", result.CrossGroups)
	}
	if len(result.GraphNodes) == 0 {
		t.Fatal("graph worker should survive a failing cross worker")
	}
}

func TestSeedRefsDeterministic(t *testing.T) {
	saju := SajuSeedRefs(sampleSajuPayload())
	if len(saju) == 0 {
		t.Fatal("expected saju seed refs")
	}
	if !sortedStrings(saju) {
		t.Fatalf("saju seed not sorted: %v", saju)
	}
	found := false
	for _, ref := range saju {
		if ref == "SIPSIN_정재" {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing ten-god seed: %v", saju)
	}

	astro := AstroSeedRefs(sampleAstroPayload())
	if !sortedStrings(astro) {
		t.Fatalf("astro seed not sorted: %v", astro)
	}
	wantAny := map[string]bool{"Sun": true, "h10": true, "Saturn": true}
	hits := 0
	for _, ref := range astro {
		if wantAny[ref] {
			hits++
		}
	}
	if hits < 3 {
		t.Fatalf("astro seed missing expected tokens: %v", astro)
	}
}

func sortedStrings(values []string) bool {
	for i := 1; i < len(values); i++ {
		if values[i-1] > values[i] {
			return false
		}
	}
	return true
}
