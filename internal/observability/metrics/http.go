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

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	ingestTotal              *prometheus.CounterVec
	ingestDuration           *prometheus.HistogramVec
	classificationConfidence *prometheus.HistogramVec
	dedupVerdictTotal        *prometheus.CounterVec
	duplicateBlockedTotal    *prometheus.CounterVec
	linksResolvedTotal       *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docpipe",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docpipe",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "docpipe",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	ingestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docpipe",
			Subsystem: "ingest",
			Name:      "documents_total",
			Help:      "Total ingested documents by classification decision.",
		},
		[]string{"service", "decision"},
	)
	ingestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docpipe",
			Subsystem: "ingest",
			Name:      "duration_seconds",
			Help:      "Ingestion pipeline duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	classificationConfidence := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docpipe",
			Subsystem: "classify",
			Name:      "confidence",
			Help:      "Distribution of top-candidate confidence per classification.",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		},
		[]string{"service", "type_code"},
	)
	dedupVerdictTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docpipe",
			Subsystem: "dedup",
			Name:      "verdicts_total",
			Help:      "Total dedup verdicts by tier.",
		},
		[]string{"service", "tier"},
	)
	duplicateBlockedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docpipe",
			Subsystem: "dedup",
			Name:      "blocked_total",
			Help:      "Total ingestions refused as duplicates.",
		},
		[]string{"service"},
	)
	linksResolvedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docpipe",
			Subsystem: "linking",
			Name:      "links_resolved_total",
			Help:      "Total links written at finalization by role.",
		},
		[]string{"service", "role"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		ingestTotal,
		ingestDuration,
		classificationConfidence,
		dedupVerdictTotal,
		duplicateBlockedTotal,
		linksResolvedTotal,
	)

	return &HTTPServerMetrics{
		registry:                 registry,
		requestTotal:             requestTotal,
		requestDuration:          requestDuration,
		requestInFlight:          requestInFlight,
		ingestTotal:              ingestTotal,
		ingestDuration:           ingestDuration,
		classificationConfidence: classificationConfidence,
		dedupVerdictTotal:        dedupVerdictTotal,
		duplicateBlockedTotal:    duplicateBlockedTotal,
		linksResolvedTotal:       linksResolvedTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
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
	case strings.HasPrefix(path, "/v1/documents/"):
		return "/v1/documents/{document_id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordIngest(service, decision string, duration time.Duration) {
	if decision == "" {
		decision = "unknown"
	}
	m.ingestTotal.WithLabelValues(service, decision).Inc()
	m.ingestDuration.WithLabelValues(service).Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) RecordClassification(service, typeCode string, confidence float64) {
	if typeCode == "" {
		typeCode = "none"
	}
	m.classificationConfidence.WithLabelValues(service, typeCode).Observe(confidence)
}

func (m *HTTPServerMetrics) RecordDedupVerdict(service, tier string) {
	if tier == "" {
		return
	}
	m.dedupVerdictTotal.WithLabelValues(service, tier).Inc()
}

func (m *HTTPServerMetrics) RecordDuplicateBlocked(service string) {
	m.duplicateBlockedTotal.WithLabelValues(service).Inc()
}

func (m *HTTPServerMetrics) RecordLinksResolved(service string, primary, derived int) {
	if primary > 0 {
		m.linksResolvedTotal.WithLabelValues(service, "primary").Add(float64(primary))
	}
	if derived > 0 {
		m.linksResolvedTotal.WithLabelValues(service, "derived").Add(float64(derived))
	}
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

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
