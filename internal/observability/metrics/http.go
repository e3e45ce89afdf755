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

// HTTPServerMetrics owns the API service registry: request-level metrics
// plus the generation pipeline observations.
type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	generationTotal    *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec
	retrievedSources   *prometheus.HistogramVec
	confidenceScore    *prometheus.HistogramVec
	groundingScore     *prometheus.HistogramVec
	warningsTotal      *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ucr",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ucr",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ucr",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	generationTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ucr",
			Subsystem: "generation",
			Name:      "requests_total",
			Help:      "Total generation requests by outcome.",
		},
		[]string{"service", "outcome"},
	)
	generationDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ucr",
			Subsystem: "generation",
			Name:      "duration_seconds",
			Help:      "End-to-end generation pipeline duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	retrievedSources := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ucr",
			Subsystem: "generation",
			Name:      "retrieved_sources",
			Help:      "Distribution of retrieved evidence chunks per request.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service"},
	)
	confidenceScore := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ucr",
			Subsystem: "generation",
			Name:      "confidence_score",
			Help:      "Distribution of retrieval confidence scores.",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		},
		[]string{"service"},
	)
	groundingScore := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ucr",
			Subsystem: "generation",
			Name:      "grounding_score",
			Help:      "Distribution of output grounding scores.",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		},
		[]string{"service"},
	)
	warningsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ucr",
			Subsystem: "generation",
			Name:      "warnings_total",
			Help:      "Total pipeline warnings attached to responses.",
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		generationTotal,
		generationDuration,
		retrievedSources,
		confidenceScore,
		groundingScore,
		warningsTotal,
	)

	return &HTTPServerMetrics{
		registry:           registry,
		requestTotal:       requestTotal,
		requestDuration:    requestDuration,
		requestInFlight:    requestInFlight,
		generationTotal:    generationTotal,
		generationDuration: generationDuration,
		retrievedSources:   retrievedSources,
		confidenceScore:    confidenceScore,
		groundingScore:     groundingScore,
		warningsTotal:      warningsTotal,
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

// RecordGeneration logs one completed pipeline run. Outcome is "ok",
// "rejected" or "degraded".
func (m *HTTPServerMetrics) RecordGeneration(service, outcome string, sourceCount, warningCount int, confidence, grounding float64, duration time.Duration) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.generationTotal.WithLabelValues(service, outcome).Inc()
	m.generationDuration.WithLabelValues(service).Observe(duration.Seconds())
	m.retrievedSources.WithLabelValues(service).Observe(float64(sourceCount))
	m.confidenceScore.WithLabelValues(service).Observe(confidence)
	m.groundingScore.WithLabelValues(service).Observe(grounding)
	if warningCount > 0 {
		m.warningsTotal.WithLabelValues(service).Add(float64(warningCount))
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
