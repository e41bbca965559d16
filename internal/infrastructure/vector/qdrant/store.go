package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/junhyuk-dev/fortune-rag/internal/core/domain"
	"github.com/junhyuk-dev/fortune-rag/internal/infrastructure/resilience"
)

// pointNamespace makes point ids a pure function of the record id, so a
// re-upsert of the same id overwrites the previous point.
var pointNamespace = uuid.MustParse("b2f1c9a4-55e3-4c8e-9f10-3d9a7c1e6b42")

// Store is a per-collection handle to a qdrant deployment.
type Store struct {
	baseURL    string
	collection string
	httpClient *http.Client
	executor   *resilience.Executor

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

type Options struct {
	ResilienceExecutor *resilience.Executor
}

func NewStore(baseURL, collection string) *Store {
	return NewStoreWithOptions(baseURL, collection, Options{})
}

func NewStoreWithOptions(baseURL, collection string, options Options) *Store {
	return &Store{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		executor:   options.ResilienceExecutor,
	}
}

func (s *Store) Collection() string {
	return s.collection
}

func (s *Store) Count(ctx context.Context) (int, error) {
	url := fmt.Sprintf("%s/collections/%s/points/count", s.baseURL, s.collection)
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if err := s.postJSON(ctx, url, map[string]any{"exact": true}, &resp, "count"); err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

func (s *Store) HasData(ctx context.Context) (bool, error) {
	n, err := s.Count(ctx)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Upsert indexes records batch by batch. A batch is atomic; the whole call is
// not. Same record id overwrites.
func (s *Store) Upsert(ctx context.Context, records []domain.VectorRecord, vectors [][]float32, batchSize int) error {
	if len(records) == 0 {
		return nil
	}
	if len(records) != len(vectors) {
		return fmt.Errorf("records/vectors mismatch: %d != %d", len(records), len(vectors))
	}
	if batchSize <= 0 {
		batchSize = 64
	}

	if err := s.ensureCollection(ctx, len(vectors[0])); err != nil {
		return err
	}

	for start := 0; start < len(records); start += batchSize {
		end := start + batchSize
		if end > len(records) {
			end = len(records)
		}
		if err := s.upsertBatch(ctx, records[start:end], vectors[start:end]); err != nil {
			return err
		}
	}
	return nil
}

type point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

func (s *Store) upsertBatch(ctx context.Context, records []domain.VectorRecord, vectors [][]float32) error {
	points := make([]point, 0, len(records))
	for i, rec := range records {
		payload := map[string]any{
			"record_id": rec.ID,
			"text":      rec.Text,
		}
		for k, v := range sanitizeMetadata(rec.Metadata) {
			payload[k] = v
		}
		points = append(points, point{
			ID:      uuid.NewSHA1(pointNamespace, []byte(s.collection+"/"+rec.ID)).String(),
			Vector:  vectors[i],
			Payload: payload,
		})
	}

	url := fmt.Sprintf("%s/collections/%s/points?wait=true", s.baseURL, s.collection)
	return s.putJSON(ctx, url, map[string]any{"points": points}, nil, "upsert")
}

// sanitizeMetadata flattens metadata into scalars. String lists, including
// []any lists whose elements are all strings, are joined with commas and
// mirrored under <key>_json so read-back recovers the exact original list.
// Other non-scalars are JSON serialized under the mirror key only, or dropped
// when serialization fails.
func sanitizeMetadata(meta map[string]any) map[string]string {
	if len(meta) == 0 {
		return nil
	}
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		if strs, ok := stringList(v); ok {
			out[k] = strings.Join(strs, ",")
			if raw, err := json.Marshal(strs); err == nil {
				out[k+"_json"] = string(raw)
			}
			continue
		}
		switch t := v.(type) {
		case nil:
			continue
		case string:
			out[k] = t
		case bool:
			out[k] = fmt.Sprintf("%t", t)
		case int, int32, int64, float32, float64:
			out[k] = fmt.Sprintf("%v", t)
		default:
			raw, err := json.Marshal(t)
			if err != nil {
				continue
			}
			out[k+"_json"] = string(raw)
		}
	}
	return out
}

// stringList normalizes []string and all-string []any values; any other value
// reports false.
func stringList(v any) ([]string, bool) {
	switch t := v.(type) {
	case []string:
		return t, true
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

func (s *Store) Search(ctx context.Context, queryVector []float32, topK int, minScore float64, where map[string]string) ([]domain.SearchHit, error) {
	if topK <= 0 {
		topK = 10
	}

	reqBody := map[string]any{
		"vector":       queryVector,
		"limit":        topK,
		"with_payload": true,
	}
	if minScore > 0 {
		reqBody["score_threshold"] = minScore
	}
	if len(where) > 0 {
		must := make([]map[string]any, 0, len(where))
		for k, v := range where {
			must = append(must, map[string]any{
				"key":   k,
				"match": map[string]any{"value": v},
			})
		}
		reqBody["filter"] = map[string]any{"must": must}
	}

	url := fmt.Sprintf("%s/collections/%s/points/search", s.baseURL, s.collection)
	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := s.postJSON(ctx, url, reqBody, &searchResp, "search"); err != nil {
		return nil, err
	}

	out := make([]domain.SearchHit, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		if r.Score < minScore {
			continue
		}
		meta := make(map[string]string, len(r.Payload))
		var id, text string
		for k, v := range r.Payload {
			sv, ok := v.(string)
			if !ok {
				sv = fmt.Sprintf("%v", v)
			}
			switch k {
			case "record_id":
				id = sv
			case "text":
				text = sv
			default:
				meta[k] = sv
			}
		}
		out = append(out, domain.SearchHit{
			ID:       id,
			Text:     text,
			Score:    r.Score,
			Metadata: meta,
		})
	}
	return out, nil
}

// Reset drops and re-creates the collection.
func (s *Store) Reset(ctx context.Context) error {
	url := fmt.Sprintf("%s/collections/%s", s.baseURL, s.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("create delete request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant delete collection: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("qdrant delete collection status: %s", resp.Status)
	}

	s.ensureMu.Lock()
	size := s.ensuredVectorSize
	s.ensuredCollection = false
	s.ensureMu.Unlock()

	if size > 0 {
		return s.ensureCollection(ctx, size)
	}
	return nil
}

func (s *Store) ensureCollection(ctx context.Context, vectorSize int) error {
	s.ensureMu.Lock()
	if s.ensuredCollection && s.ensuredVectorSize == vectorSize {
		s.ensureMu.Unlock()
		return nil
	}
	s.ensureMu.Unlock()

	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}

	url := fmt.Sprintf("%s/collections/%s", s.baseURL, s.collection)
	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal create collection body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create collection request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant ensure collection request: %w", err)
	}
	defer resp.Body.Close()

	// 200/201 for create, 409 if already exists (depends on version/config).
	if resp.StatusCode == http.StatusConflict {
		s.markEnsured(vectorSize)
		return nil
	}
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if msg := strings.TrimSpace(string(raw)); msg != "" {
			return fmt.Errorf("qdrant ensure collection status: %s: %s", resp.Status, msg)
		}
		return fmt.Errorf("qdrant ensure collection status: %s", resp.Status)
	}
	s.markEnsured(vectorSize)
	return nil
}

func (s *Store) markEnsured(vectorSize int) {
	s.ensureMu.Lock()
	defer s.ensureMu.Unlock()
	s.ensuredCollection = true
	s.ensuredVectorSize = vectorSize
}

func (s *Store) postJSON(ctx context.Context, url string, body any, out any, operation string) error {
	return s.sendJSON(ctx, http.MethodPost, url, body, out, operation)
}

func (s *Store) putJSON(ctx context.Context, url string, body any, out any, operation string) error {
	return s.sendJSON(ctx, http.MethodPut, url, body, out, operation)
}

// sendJSON issues one request, optionally through the resilience executor so
// count/search/upsert retry transient failures and trip the breaker together.
func (s *Store) sendJSON(ctx context.Context, method, url string, body any, out any, operation string) error {
	call := func(ctx context.Context) error {
		return s.doJSON(ctx, method, url, body, out, operation)
	}
	if s.executor != nil {
		return s.executor.Execute(ctx, "qdrant."+operation, call, classifyQdrantError)
	}
	return call(ctx)
}

func (s *Store) doJSON(ctx context.Context, method, url string, body any, out any, operation string) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s body: %w", operation, err)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return domain.WrapError(domain.ErrTemporary, "qdrant "+operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		statusErr := fmt.Errorf("qdrant %s status: %s: %s", operation, resp.Status, strings.TrimSpace(string(msg)))
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return domain.WrapError(domain.ErrTemporary, "qdrant "+operation, statusErr)
		}
		return statusErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}
