package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	prefetchTotal      *prometheus.CounterVec
	prefetchDuration   *prometheus.HistogramVec
	storeSearchTotal   *prometheus.CounterVec
	storeSkippedTotal  *prometheus.CounterVec
	crossGroupsEmitted *prometheus.HistogramVec
	backfillTotal      *prometheus.CounterVec

	streamChunksTotal *prometheus.CounterVec
	streamErrorsTotal *prometheus.CounterVec
	addendumTotal     *prometheus.CounterVec

	tarotRepairTotal   *prometheus.CounterVec
	tarotFallbackTotal *prometheus.CounterVec
	crisisTotal        *prometheus.CounterVec
}

func NewServerMetrics(service string) *ServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fortune",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fortune",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "fortune",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	prefetchTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fortune",
			Subsystem: "rag",
			Name:      "prefetch_total",
			Help:      "Total prefetch runs by outcome.",
		},
		[]string{"service", "outcome"},
	)
	prefetchDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fortune",
			Subsystem: "rag",
			Name:      "prefetch_duration_seconds",
			Help:      "Prefetch fan-out duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	storeSearchTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fortune",
			Subsystem: "rag",
			Name:      "store_search_total",
			Help:      "Total vector searches by collection and status.",
		},
		[]string{"service", "collection", "status"},
	)
	storeSkippedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fortune",
			Subsystem: "rag",
			Name:      "store_skipped_total",
			Help:      "Total store lookups suppressed by the leak guard.",
		},
		[]string{"service", "store"},
	)
	crossGroupsEmitted := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fortune",
			Subsystem: "rag",
			Name:      "cross_groups_emitted",
			Help:      "Distribution of cross groups per prefetch.",
			Buckets:   []float64{0, 1, 2, 3},
		},
		[]string{"service"},
	)
	backfillTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fortune",
			Subsystem: "rag",
			Name:      "evidence_backfill_total",
			Help:      "Total evidence slots filled from the graph collection.",
		},
		[]string{"service", "side"},
	)
	streamChunksTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fortune",
			Subsystem: "stream",
			Name:      "chunks_total",
			Help:      "Total SSE chunks emitted.",
		},
		[]string{"service", "mode"},
	)
	streamErrorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fortune",
			Subsystem: "stream",
			Name:      "errors_total",
			Help:      "Total streaming turns ended by an error frame.",
		},
		[]string{"service", "kind"},
	)
	addendumTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fortune",
			Subsystem: "stream",
			Name:      "addendum_total",
			Help:      "Total responses that needed a missing-requirements addendum.",
		},
		[]string{"service", "category"},
	)
	tarotRepairTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fortune",
			Subsystem: "tarot",
			Name:      "repair_total",
			Help:      "Total tarot repair passes by outcome.",
		},
		[]string{"service", "outcome"},
	)
	tarotFallbackTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fortune",
			Subsystem: "tarot",
			Name:      "fallback_total",
			Help:      "Total tarot responses completed from the deterministic stub.",
		},
		[]string{"service"},
	)
	crisisTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fortune",
			Subsystem: "safety",
			Name:      "crisis_total",
			Help:      "Total crisis detections by severity.",
		},
		[]string{"service", "severity"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		prefetchTotal,
		prefetchDuration,
		storeSearchTotal,
		storeSkippedTotal,
		crossGroupsEmitted,
		backfillTotal,
		streamChunksTotal,
		streamErrorsTotal,
		addendumTotal,
		tarotRepairTotal,
		tarotFallbackTotal,
		crisisTotal,
	)

	return &ServerMetrics{
		registry:           registry,
		requestTotal:       requestTotal,
		requestDuration:    requestDuration,
		requestInFlight:    requestInFlight,
		prefetchTotal:      prefetchTotal,
		prefetchDuration:   prefetchDuration,
		storeSearchTotal:   storeSearchTotal,
		storeSkippedTotal:  storeSkippedTotal,
		crossGroupsEmitted: crossGroupsEmitted,
		backfillTotal:      backfillTotal,
		streamChunksTotal:  streamChunksTotal,
		streamErrorsTotal:  streamErrorsTotal,
		addendumTotal:      addendumTotal,
		tarotRepairTotal:   tarotRepairTotal,
		tarotFallbackTotal: tarotFallbackTotal,
		crisisTotal:        crisisTotal,
	}
}

func (m *ServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *ServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/readings/"):
		return "/v1/readings/{session_id}"
	default:
		return path
	}
}

func (m *ServerMetrics) RecordPrefetch(service, outcome string, groups int, duration time.Duration) {
	m.prefetchTotal.WithLabelValues(service, outcome).Inc()
	m.prefetchDuration.WithLabelValues(service).Observe(duration.Seconds())
	m.crossGroupsEmitted.WithLabelValues(service).Observe(float64(groups))
}

func (m *ServerMetrics) RecordStoreSearch(service, collection, status string) {
	m.storeSearchTotal.WithLabelValues(service, collection, status).Inc()
}

func (m *ServerMetrics) RecordStoreSkipped(service, store string) {
	m.storeSkippedTotal.WithLabelValues(service, store).Inc()
}

func (m *ServerMetrics) RecordBackfill(service, side string, slots int) {
	if slots <= 0 {
		return
	}
	m.backfillTotal.WithLabelValues(service, side).Add(float64(slots))
}

func (m *ServerMetrics) RecordStreamChunks(service, mode string, chunks int) {
	if chunks <= 0 {
		return
	}
	m.streamChunksTotal.WithLabelValues(service, mode).Add(float64(chunks))
}

func (m *ServerMetrics) RecordStreamError(service, kind string) {
	if kind == "" {
		kind = "unknown"
	}
	m.streamErrorsTotal.WithLabelValues(service, kind).Inc()
}

func (m *ServerMetrics) RecordAddendum(service, category string) {
	m.addendumTotal.WithLabelValues(service, category).Inc()
}

func (m *ServerMetrics) RecordTarotRepair(service, outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.tarotRepairTotal.WithLabelValues(service, outcome).Inc()
}

func (m *ServerMetrics) RecordTarotFallback(service string) {
	m.tarotFallbackTotal.WithLabelValues(service).Inc()
}

func (m *ServerMetrics) RecordCrisis(service, severity string) {
	m.crisisTotal.WithLabelValues(service, severity).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}
