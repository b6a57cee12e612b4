// Package metrics provides Prometheus metrics export for the suggestion service.
//
// All Record/Set methods are safe on a nil *PrometheusExporter, so components
// take an optional exporter and skip instrumentation when none is wired.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "eunoia"

// PrometheusExporter exports service metrics in Prometheus format.
type PrometheusExporter struct {
	registry *prometheus.Registry

	// API metrics
	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec

	// Retrieval metrics
	matchLatency  *prometheus.HistogramVec
	matchResults  *prometheus.HistogramVec
	corpusSize    prometheus.Gauge
	corpusReloads *prometheus.CounterVec

	// Embedding metrics
	embedLatency  *prometheus.HistogramVec
	embedRequests *prometheus.CounterVec

	// Cache metrics
	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	// LLM metrics
	llmTokensUsed *prometheus.CounterVec
	llmLatency    *prometheus.HistogramVec
	llmErrors     *prometheus.CounterVec
}

// Config configures the Prometheus exporter.
type Config struct {
	// Registry to use (if nil, creates a new one)
	Registry *prometheus.Registry

	// Buckets for latency histograms (in seconds)
	LatencyBuckets []float64

	// RegisterRuntime adds the Go runtime and process collectors.
	RegisterRuntime bool
}

// DefaultConfig returns default Prometheus configuration.
func DefaultConfig() Config {
	return Config{
		LatencyBuckets:  []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		RegisterRuntime: true,
	}
}

// NewPrometheusExporter creates a new Prometheus metrics exporter.
func NewPrometheusExporter(cfg Config) *PrometheusExporter {
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = DefaultConfig().LatencyBuckets
	}

	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	e := &PrometheusExporter{registry: registry}

	e.apiRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total number of API requests by endpoint and status",
		},
		[]string{"endpoint", "status"},
	)

	e.apiLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_latency_seconds",
			Help:      "API request latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"endpoint"},
	)

	e.matchLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "match_latency_seconds",
			Help:      "Similarity match latency in seconds, encoder call included",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"source"},
	)

	e.matchResults = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "match_results",
			Help:      "Number of matches returned per query",
			Buckets:   []float64{0, 1, 2, 3, 5, 10, 20, 50},
		},
		[]string{"source"},
	)

	e.corpusSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "corpus_records",
			Help:      "Number of records in the loaded corpus snapshot",
		},
	)

	e.corpusReloads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "corpus_reloads_total",
			Help:      "Total number of corpus reloads by status",
		},
		[]string{"status"},
	)

	e.embedLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "embedding",
			Name:      "latency_seconds",
			Help:      "Embedding request latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"model"},
	)

	e.embedRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "embedding",
			Name:      "requests_total",
			Help:      "Total number of embedding requests by status",
		},
		[]string{"model", "status"},
	)

	e.cacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	e.cacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	e.llmTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "tokens_total",
			Help:      "Total LLM tokens consumed",
		},
		[]string{"model", "token_type"},
	)

	e.llmLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "latency_seconds",
			Help:      "LLM request latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"operation"},
	)

	e.llmErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "errors_total",
			Help:      "Total number of failed LLM operations",
		},
		[]string{"operation", "error_type"},
	)

	registry.MustRegister(
		e.apiRequests,
		e.apiLatency,
		e.matchLatency,
		e.matchResults,
		e.corpusSize,
		e.corpusReloads,
		e.embedLatency,
		e.embedRequests,
		e.cacheHits,
		e.cacheMisses,
		e.llmTokensUsed,
		e.llmLatency,
		e.llmErrors,
	)

	if cfg.RegisterRuntime {
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	return e
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordRequest records an API request.
func (e *PrometheusExporter) RecordRequest(endpoint string, latency time.Duration, success bool) {
	if e == nil {
		return
	}
	e.apiRequests.WithLabelValues(endpoint, status(success)).Inc()
	e.apiLatency.WithLabelValues(endpoint).Observe(latency.Seconds())
}

// RecordMatch records a similarity match and the number of results it returned.
func (e *PrometheusExporter) RecordMatch(source string, latency time.Duration, results int) {
	if e == nil {
		return
	}
	e.matchLatency.WithLabelValues(source).Observe(latency.Seconds())
	e.matchResults.WithLabelValues(source).Observe(float64(results))
}

// SetCorpusSize sets the number of records in the current corpus snapshot.
func (e *PrometheusExporter) SetCorpusSize(n int) {
	if e == nil {
		return
	}
	e.corpusSize.Set(float64(n))
}

// RecordCorpusReload records a corpus reload attempt.
func (e *PrometheusExporter) RecordCorpusReload(success bool) {
	if e == nil {
		return
	}
	e.corpusReloads.WithLabelValues(status(success)).Inc()
}

// RecordEmbedding records an embedding request.
func (e *PrometheusExporter) RecordEmbedding(model string, latency time.Duration, success bool) {
	if e == nil {
		return
	}
	e.embedRequests.WithLabelValues(model, status(success)).Inc()
	e.embedLatency.WithLabelValues(model).Observe(latency.Seconds())
}

// RecordCacheHit records a cache hit.
func (e *PrometheusExporter) RecordCacheHit(cacheType string) {
	if e == nil {
		return
	}
	e.cacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss records a cache miss.
func (e *PrometheusExporter) RecordCacheMiss(cacheType string) {
	if e == nil {
		return
	}
	e.cacheMisses.WithLabelValues(cacheType).Inc()
}

// RecordLLMTokens records LLM token usage.
func (e *PrometheusExporter) RecordLLMTokens(model, tokenType string, count int) {
	if e == nil || count <= 0 {
		return
	}
	e.llmTokensUsed.WithLabelValues(model, tokenType).Add(float64(count))
}

// RecordLLMLatency records LLM operation latency.
func (e *PrometheusExporter) RecordLLMLatency(operation string, latency time.Duration) {
	if e == nil {
		return
	}
	e.llmLatency.WithLabelValues(operation).Observe(latency.Seconds())
}

// RecordLLMError records a failed LLM operation.
func (e *PrometheusExporter) RecordLLMError(operation, errorType string) {
	if e == nil {
		return
	}
	e.llmErrors.WithLabelValues(operation, errorType).Inc()
}

// Handler returns the HTTP handler for Prometheus metrics.
func (e *PrometheusExporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{Registry: e.registry})
}

// ServeHTTP implements http.Handler for the metrics endpoint.
func (e *PrometheusExporter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	e.Handler().ServeHTTP(w, r)
}

// GetRegistry returns the Prometheus registry.
func (e *PrometheusExporter) GetRegistry() *prometheus.Registry {
	return e.registry
}
