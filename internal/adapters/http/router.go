package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/junhyuk-dev/fortune-rag/internal/core/domain"
	"github.com/junhyuk-dev/fortune-rag/internal/core/ports"
	"github.com/junhyuk-dev/fortune-rag/internal/observability/metrics"
)

type Router struct {
	initializer ports.ReadingInitializer
	streamer    ports.ReadingStreamer
	metrics     *metrics.ServerMetrics
	limiter     *RateLimiter
}

func NewRouter(initializer ports.ReadingInitializer, streamer ports.ReadingStreamer, m *metrics.ServerMetrics, limiter *RateLimiter) *Router {
	return &Router{
		initializer: initializer,
		streamer:    streamer,
		metrics:     m,
		limiter:     limiter,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/readings/init", rt.initReading)
	mux.HandleFunc("/v1/readings/", rt.streamReading)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.limiter != nil {
		handler = rt.limiter.middleware(handler)
	}
	if rt.metrics != nil {
		handler = rt.metrics.Middleware("api", handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) initReading(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req domain.ReadingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "session_id is required"})
		return
	}

	session, err := rt.initializer.Init(r.Context(), req)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"session_id":       session.SessionID,
		"state":            string(domain.SessionReady),
		"cross_groups":     len(session.Prefetch.CrossGroups),
		"prefetch_time_ms": session.Prefetch.PrefetchTimeMS,
	})
}

// streamReading handles POST /v1/readings/{session_id}/stream.
func (rt *Router) streamReading(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/v1/readings/")
	sessionID, ok := strings.CutSuffix(rest, "/stream")
	if !ok || sessionID == "" || strings.Contains(sessionID, "/") {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	var req domain.ReadingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	req.SessionID = sessionID
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})
		return
	}

	stream, err := newSSEWriter(w)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	streamErr := rt.streamer.StreamTurn(r.Context(), req, stream.Emit)
	if streamErr != nil && rt.metrics != nil {
		rt.metrics.RecordStreamError("api", "transport")
	}
	stream.Done()
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
