package domain

import (
	"encoding/json"
	"strings"
)

// VectorRecord is one indexed document for a vector collection. Metadata
// values may be scalars or string lists; the store sanitizes on write, so a
// list value gains a *_json mirror entry for later recovery.
type VectorRecord struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Reserved metadata keys shared by all collections.
const (
	MetaDomain        = "domain"
	MetaAxis          = "axis"
	MetaTheme         = "theme"
	MetaFusionKey     = "fusion_key"
	MetaSajuRefs      = "saju_refs"
	MetaAstroRefs     = "astro_refs"
	MetaSajuRefsJSON  = "saju_refs_json"
	MetaAstroRefsJSON = "astro_refs_json"
)

// Collection and domain-tag constants of the cross-fusion index.
const (
	CrossCollection      = "saju_astro_cross_v1"
	GraphNodesCollection = "saju_astro_graph_nodes_v1"
	CrossDomainTag       = "saju_astro_cross"
)

// SearchHit is one vector search result. Score is cosine similarity in [-1,1],
// monotone with relevance. Cross-ranked hits additionally carry CrossScore and
// its bonus terms.
type SearchHit struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Score    float64           `json:"score"`
	Metadata map[string]string `json:"metadata,omitempty"`

	CrossScore     float64 `json:"cross_score,omitempty"`
	RuleMatchBonus float64 `json:"rule_match_bonus,omitempty"`
	OverlapBonus   float64 `json:"overlap_bonus,omitempty"`
}

// Meta reads a metadata value, tolerating a nil map.
func (h SearchHit) Meta(key string) string {
	if h.Metadata == nil {
		return ""
	}
	return h.Metadata[key]
}

// RefList recovers a reference list from sanitized metadata, preferring the
// *_json mirror over the comma-joined scalar.
func RefList(meta map[string]string, key string) []string {
	if meta == nil {
		return nil
	}
	if raw, ok := meta[key+"_json"]; ok && raw != "" {
		var out []string
		if err := json.Unmarshal([]byte(raw), &out); err == nil {
			return out
		}
	}
	raw := meta[key]
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// EvidenceSlot is a rendered reference that justifies a cross group on one side.
type EvidenceSlot struct {
	Title     string  `json:"title,omitempty"`
	ID        string  `json:"id"`
	Score     float64 `json:"score,omitempty"`
	SignalKey string  `json:"signal_key,omitempty"`
	Backfill  bool    `json:"backfill,omitempty"`
}

// Group is a set of cross hits sharing one axis, sorted by CrossScore desc.
type Group struct {
	Axis  Axis        `json:"axis"`
	Items []SearchHit `json:"items"`

	SajuEvidence  []EvidenceSlot `json:"saju_evidence"`
	AstroEvidence []EvidenceSlot `json:"astro_evidence"`

	// Advanced-mode extras.
	AdvancedLink    string   `json:"advanced_link,omitempty"`
	AdvancedSignals []Signal `json:"advanced_signals,omitempty"`
}

// EvidenceComplete reports whether both sides carry the two-slot minimum.
func (g Group) EvidenceComplete() bool {
	return len(g.SajuEvidence) >= 2 && len(g.AstroEvidence) >= 2
}

// TopScore returns the cross score of the leading item.
func (g Group) TopScore() float64 {
	if len(g.Items) == 0 {
		return 0
	}
	return g.Items[0].CrossScore
}

// PrefetchResult is the complete RAG output for one request. The three
// policy-empty fields stay empty whenever the leakage guard is active.
type PrefetchResult struct {
	GraphNodes     []string `json:"graph_nodes"`
	CrossAnalysis  string   `json:"cross_analysis"`
	CrossGroups    []Group  `json:"cross_groups"`
	PrefetchTimeMS int64    `json:"prefetch_time_ms"`

	CorpusQuotes    []string          `json:"corpus_quotes"`
	PersonaContext  map[string]string `json:"persona_context"`
	DomainKnowledge []string          `json:"domain_knowledge"`
}

// EmptyPrefetch returns a result with non-nil policy fields.
func EmptyPrefetch() PrefetchResult {
	return PrefetchResult{
		GraphNodes:      []string{},
		CrossGroups:     []Group{},
		CorpusQuotes:    []string{},
		PersonaContext:  map[string]string{},
		DomainKnowledge: []string{},
	}
}
