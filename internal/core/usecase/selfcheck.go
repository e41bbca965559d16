package usecase

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/junhyuk-dev/fortune-rag/internal/core/domain"
	"github.com/junhyuk-dev/fortune-rag/internal/core/ports"
	"github.com/junhyuk-dev/fortune-rag/internal/observability/logging"
)

// Audit sample size per collection for the health ratios.
const healthSampleSize = 256

// defaultAuditQueries are the built-in quality probes, two or three per axis.
var defaultAuditQueries = []string{
	"연애운이 궁금해요",
	"지금 만나는 사람과 결혼해도 될까요",
	"새로운 인연은 언제 올까요",
	"이직해도 괜찮을까요",
	"승진 가능성이 있을까요",
	"사업을 시작해도 될까요",
	"재물운이 어떤가요",
	"투자 시기가 맞는지 봐주세요",
	"목돈이 들어올 흐름이 있나요",
	"건강에서 조심할 부분이 있을까요",
	"체력이 너무 떨어졌어요",
	"요즘 마음이 너무 불안해요",
	"감정 기복이 심한 이유가 뭘까요",
	"제 인생의 방향을 모르겠어요",
	"지금 길이 맞는 걸까요",
	"중요한 결정을 언제 하면 좋을까요",
	"올해 하반기 흐름이 궁금해요",
	"저는 어떤 사람인가요",
	"제 성격의 강점이 뭘까요",
	"전반적인 운세를 봐주세요",
}

// auditFile is the yaml layout of an external audit-query file.
type auditFile struct {
	Queries []string `yaml:"queries"`
}

// LoadAuditQueries reads audit queries from a yaml file, falling back to the
// built-in list when the file is absent or unusable.
func LoadAuditQueries(path string) []string {
	if path == "" {
		return defaultAuditQueries
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return defaultAuditQueries
	}
	var parsed auditFile
	if err := yaml.Unmarshal(raw, &parsed); err != nil || len(parsed.Queries) == 0 {
		return defaultAuditQueries
	}
	return parsed.Queries
}

// HealthRow is one collection's health report. Ratios are computed over a
// sampled slice of the collection, not a full scan.
type HealthRow struct {
	Collection            string
	Exists                bool
	Count                 int
	EmptyTextRatio        float64
	DomainMissingRatio    float64
	AxisMissingRatio      float64
	FusionKeyMissingRatio float64
}

// LeakReport is the outcome of the representative guarded prefetch.
type LeakReport struct {
	Passed   bool
	Problems []string
}

// QualityReport aggregates the audit-query metrics.
type QualityReport struct {
	Queries                      int
	AvgUniqueAxesAt12            float64
	CrossPresentRate             float64
	EvidenceRate                 float64
	Advanced                     bool
	AdvancedLinkRate             float64
	AdvancedEvidenceCompleteRate float64
}

// SelfCheck runs the offline health, leak and quality audits.
type SelfCheck struct {
	factory  ports.VectorStoreFactory
	embedder ports.Embedder
	advanced bool
	logger   *slog.Logger
}

func NewSelfCheck(factory ports.VectorStoreFactory, embedder ports.Embedder, advanced bool, logger *slog.Logger) *SelfCheck {
	if logger == nil {
		logger = slog.Default()
	}
	return &SelfCheck{factory: factory, embedder: embedder, advanced: advanced, logger: logger}
}

// Health reports existence, count and metadata ratios per required collection.
func (s *SelfCheck) Health(ctx context.Context) []HealthRow {
	rows := make([]HealthRow, 0, 2)
	for _, collection := range []string{domain.CrossCollection, domain.GraphNodesCollection} {
		rows = append(rows, s.healthRow(ctx, collection))
	}
	return rows
}

func (s *SelfCheck) healthRow(ctx context.Context, collection string) HealthRow {
	row := HealthRow{Collection: collection}

	store, err := s.factory.Store(collection)
	if err != nil {
		return row
	}
	count, err := store.Count(ctx)
	if err != nil {
		return row
	}
	row.Exists = true
	row.Count = count
	if count == 0 {
		return row
	}

	hits := s.sample(ctx, store)
	if len(hits) == 0 {
		return row
	}

	var emptyText, domainMissing, axisMissing, fusionKeyMissing int
	for _, hit := range hits {
		if strings.TrimSpace(hit.Text) == "" {
			emptyText++
		}
		if hit.Meta(domain.MetaDomain) == "" {
			domainMissing++
		}
		if hit.Meta(domain.MetaAxis) == "" {
			axisMissing++
		}
		if hit.Meta(domain.MetaFusionKey) == "" {
			fusionKeyMissing++
		}
	}

	n := float64(len(hits))
	row.EmptyTextRatio = float64(emptyText) / n
	row.DomainMissingRatio = float64(domainMissing) / n
	if collection == domain.CrossCollection {
		row.AxisMissingRatio = float64(axisMissing) / n
		row.FusionKeyMissingRatio = float64(fusionKeyMissing) / n
	}
	return row
}

// sample pulls a bounded slice of the collection through a generic probe
// query; good enough for ratio estimation without a scroll API.
func (s *SelfCheck) sample(ctx context.Context, store ports.VectorStore) []domain.SearchHit {
	vector, err := s.embedder.EmbedQuery(ctx, "전체 문서 점검")
	if err != nil {
		return nil
	}
	hits, err := store.Search(ctx, vector, healthSampleSize, -1, nil)
	if err != nil {
		return nil
	}
	return hits
}

// Leak runs one representative prefetch under the guard with tracing and
// verifies both the empty-field policy and the skip markers.
func (s *SelfCheck) Leak(ctx context.Context) LeakReport {
	var trace bytes.Buffer
	logger := logging.NewTraceLogger(&trace)

	cross := NewCrossStore(s.factory, s.embedder, CrossOptions{Advanced: s.advanced}, logger)
	manager := NewRAGManager(cross, s.factory, s.embedder, ManagerOptions{LeakGuard: true, Trace: true}, logger)

	result := manager.Prefetch(ctx, representativeSajuPayload(), representativeAstroPayload(), "love", "ko")

	report := LeakReport{Passed: true}
	fail := func(problem string) {
		report.Passed = false
		report.Problems = append(report.Problems, problem)
	}

	if len(result.CorpusQuotes) != 0 {
		fail("corpus_quotes not empty under guard")
	}
	if len(result.PersonaContext) != 0 {
		fail("persona_context not empty under guard")
	}
	if len(result.DomainKnowledge) != 0 {
		fail("domain_knowledge not empty under guard")
	}
	logs := trace.String()
	for _, line := range []string{"corpus_rag skipped", "persona_rag skipped", "domain_rag skipped"} {
		if !strings.Contains(logs, line) {
			fail("missing trace line: " + line)
		}
	}
	return report
}

// Quality runs the audit queries against the cross pipeline.
func (s *SelfCheck) Quality(ctx context.Context, queries []string) QualityReport {
	if len(queries) == 0 {
		queries = defaultAuditQueries
	}

	cross := NewCrossStore(s.factory, s.embedder, CrossOptions{Advanced: s.advanced}, s.logger)
	store, err := s.factory.Store(domain.CrossCollection)
	if err != nil {
		return QualityReport{Queries: len(queries), Advanced: s.advanced}
	}

	var (
		uniqueAxesTotal  int
		crossPresent     int
		evidencePresent  int
		advancedLinked   int
		advancedComplete int
	)

	for _, query := range queries {
		vector, err := s.embedder.EmbedQuery(ctx, query)
		if err != nil {
			continue
		}
		hits, err := store.Search(ctx, vector, 12, 0.1, map[string]string{domain.MetaDomain: domain.CrossDomainTag})
		if err == nil {
			axes := make(map[string]struct{}, 4)
			for _, hit := range hits {
				axes[string(domain.ParseAxis(hit.Meta(domain.MetaAxis)))] = struct{}{}
			}
			uniqueAxesTotal += len(axes)
		}

		summary, groups, err := cross.Retrieve(ctx, CrossQuery{Query: query})
		if err != nil {
			continue
		}
		if summary != "" {
			crossPresent++
		}
		if anyGroupWithRealEvidence(groups) {
			evidencePresent++
		}
		if s.advanced {
			linked, complete := advancedOutcome(groups)
			if linked {
				advancedLinked++
			}
			if complete {
				advancedComplete++
			}
		}
	}

	n := float64(len(queries))
	report := QualityReport{
		Queries:           len(queries),
		AvgUniqueAxesAt12: float64(uniqueAxesTotal) / n,
		CrossPresentRate:  float64(crossPresent) / n,
		EvidenceRate:      float64(evidencePresent) / n,
		Advanced:          s.advanced,
	}
	if s.advanced {
		report.AdvancedLinkRate = float64(advancedLinked) / n
		report.AdvancedEvidenceCompleteRate = float64(advancedComplete) / n
	}
	return report
}

// anyGroupWithRealEvidence reports whether at least one group carries a
// non-tombstone slot on each side.
func anyGroupWithRealEvidence(groups []domain.Group) bool {
	for _, g := range groups {
		if hasRealSlot(g.SajuEvidence) && hasRealSlot(g.AstroEvidence) {
			return true
		}
	}
	return false
}

func hasRealSlot(slots []domain.EvidenceSlot) bool {
	for _, s := range slots {
		if !strings.HasPrefix(s.ID, "missing_") {
			return true
		}
	}
	return false
}

func advancedOutcome(groups []domain.Group) (linked, complete bool) {
	for _, g := range groups {
		if g.AdvancedLink == "" {
			continue
		}
		linked = true
		if g.EvidenceComplete() {
			complete = true
		}
	}
	return linked, complete
}

// Representative payloads for the leak probe.
func representativeSajuPayload() domain.ChartPayload {
	return domain.ChartPayload{
		"day_master": map[string]any{"stem": "갑", "element": "목", "strength": "신강"},
		"ten_gods": map[string]any{
			"distribution": map[string]any{"정재": 2, "정관": 2},
		},
	}
}

func representativeAstroPayload() domain.ChartPayload {
	return domain.ChartPayload{
		"planets": []any{
			map[string]any{"name": "Sun", "sign": "Leo", "house": 7},
			map[string]any{"name": "Moon", "sign": "Cancer", "house": 4},
		},
	}
}

// RenderHealthTable formats health rows for the CLI.
func RenderHealthTable(rows []HealthRow) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-30s %-7s %-7s %-7s %-7s %-7s %-7s\n",
		"collection", "exists", "count", "empty", "no_dom", "no_axis", "no_key")
	for _, row := range rows {
		fmt.Fprintf(&b, "%-30s %-7t %-7d %-7.2f %-7.2f %-7.2f %-7.2f\n",
			row.Collection, row.Exists, row.Count,
			row.EmptyTextRatio, row.DomainMissingRatio, row.AxisMissingRatio, row.FusionKeyMissingRatio)
	}
	return b.String()
}
