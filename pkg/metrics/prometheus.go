// Package metrics provides Prometheus metrics for the forecast engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Computation outcomes used as label values.
const (
	OutcomeOK             = "ok"
	OutcomeScopeEmpty     = "scope_empty"
	OutcomePeriodNotFound = "period_not_found"
	OutcomeError          = "error"
	OutcomeCached         = "cached"
)

// Manager manages all Prometheus metrics for the forecast engine.
type Manager struct {
	namespace      string
	subsystem      string
	latencyBuckets []float64
	registry       prometheus.Registerer

	// Engine
	computations   *prometheus.CounterVec
	computeLatency prometheus.Histogram
	dealsEvaluated prometheus.Counter
	scopeFailClose prometheus.Counter

	// Store
	storeFetchLatency *prometheus.HistogramVec
	storeErrors       *prometheus.CounterVec
	malformedFields   *prometheus.CounterVec
	rulesRejected     prometheus.Counter

	// Memo cache
	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter
	cacheSize   prometheus.Gauge

	// Rollup
	rollupRows prometheus.Counter
	rollupRuns *prometheus.CounterVec

	// Rollup job queue and workers
	queueSize          prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueEnqueueErrors *prometheus.CounterVec
	jobsProcessed      *prometheus.CounterVec
	jobLatency         prometheus.Histogram
	workersActive      prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorsByEndpoint    *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:      "verdict",
		subsystem:      "forecast",
		latencyBuckets: []float64{0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		registry:       prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // flat list of metric definitions
	auto := promauto.With(m.registry)

	m.computations = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "computations_total",
		Help:      "Forecast computations by outcome",
	}, []string{"outcome"})

	m.computeLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "compute_latency_milliseconds",
		Help:      "End-to-end forecast computation latency in milliseconds",
		Buckets:   m.latencyBuckets,
	})

	m.dealsEvaluated = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "deals_evaluated_total",
		Help:      "Deals classified and annotated after scope filtering",
	})

	m.scopeFailClose = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "scope_fail_closed_total",
		Help:      "Restricted callers whose resolved scope was empty",
	})

	m.storeFetchLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_fetch_latency_milliseconds",
		Help:      "Latency of read-only store fetches by source",
		Buckets:   m.latencyBuckets,
	}, []string{"source"})

	m.storeErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_errors_total",
		Help:      "Store fetch failures by source",
	}, []string{"source"})

	m.malformedFields = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "malformed_fields_total",
		Help:      "Deal fields coerced to their safe default",
	}, []string{"field"})

	m.rulesRejected = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "health_rules_rejected_total",
		Help:      "Health score rules dropped at the configuration boundary",
	})

	m.cacheHits = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cache_hits_total",
		Help:      "Memoised forecast reports served",
	})

	m.cacheMisses = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cache_misses_total",
		Help:      "Forecast reports computed because no memoised copy existed",
	})

	m.cacheSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cache_size",
		Help:      "Number of memoised forecast reports",
	})

	m.rollupRows = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rollup_rows_written_total",
		Help:      "Daily rollup rows upserted",
	})

	m.rollupRuns = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rollup_runs_total",
		Help:      "Daily rollup refresh runs by outcome",
	}, []string{"outcome"})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rollup_queue_size",
		Help:      "Rollup jobs waiting for a worker",
	})

	m.queueEnqueued = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rollup_jobs_enqueued_total",
		Help:      "Rollup jobs accepted by the queue",
	})

	m.queueEnqueueErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rollup_enqueue_errors_total",
		Help:      "Rollup jobs refused by the queue by reason",
	}, []string{"reason"})

	m.jobsProcessed = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rollup_jobs_processed_total",
		Help:      "Rollup jobs finished by outcome",
	}, []string{"outcome"})

	m.jobLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rollup_job_latency_milliseconds",
		Help:      "Rollup job processing latency in milliseconds",
		Buckets:   m.latencyBuckets,
	})

	m.workersActive = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rollup_workers_active",
		Help:      "Rollup workers currently running",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests by endpoint and method",
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   m.latencyBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByEndpoint = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "errors_by_endpoint_total",
		Help:      "Total number of errors by endpoint",
	}, []string{"endpoint", "method", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_memory_usage_bytes",
		Help:      "System memory usage in bytes",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_goroutine_count",
		Help:      "Number of goroutines",
	})
}

// RecordComputation counts a forecast computation with the given outcome.
func RecordComputation(outcome string) {
	globalManager.computations.WithLabelValues(outcome).Inc()
}

// RecordComputeLatency records end-to-end computation latency in milliseconds.
func RecordComputeLatency(latencyMs float64) {
	globalManager.computeLatency.Observe(latencyMs)
}

// RecordDealsEvaluated adds n to the evaluated deal counter.
func RecordDealsEvaluated(n int) {
	globalManager.dealsEvaluated.Add(float64(n))
}

// RecordScopeFailClosed counts a restricted caller with an empty scope.
func RecordScopeFailClosed() {
	globalManager.scopeFailClose.Inc()
}

// RecordStoreFetch records a store fetch latency for source.
func RecordStoreFetch(source string, latencyMs float64) {
	globalManager.storeFetchLatency.WithLabelValues(source).Observe(latencyMs)
}

// RecordStoreError counts a failed store fetch for source.
func RecordStoreError(source string) {
	globalManager.storeErrors.WithLabelValues(source).Inc()
}

// RecordMalformedField counts a deal field that was coerced to its default.
func RecordMalformedField(field string) {
	globalManager.malformedFields.WithLabelValues(field).Inc()
}

// RecordRuleRejected counts a health rule dropped by boundary validation.
func RecordRuleRejected() {
	globalManager.rulesRejected.Inc()
}

// RecordCacheHit increments the memo cache hit counter.
func RecordCacheHit() {
	globalManager.cacheHits.Inc()
}

// RecordCacheMiss increments the memo cache miss counter.
func RecordCacheMiss() {
	globalManager.cacheMisses.Inc()
}

// UpdateCacheSize sets the memo cache size gauge.
func UpdateCacheSize(size int64) {
	globalManager.cacheSize.Set(float64(size))
}

// RecordRollupRows adds n to the rollup rows counter.
func RecordRollupRows(n int) {
	globalManager.rollupRows.Add(float64(n))
}

// RecordRollupRun counts a rollup refresh run with the given outcome.
func RecordRollupRun(outcome string) {
	globalManager.rollupRuns.WithLabelValues(outcome).Inc()
}

// UpdateQueueSize sets the rollup queue depth.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// RecordQueueEnqueue counts an accepted rollup job.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueEnqueueError counts a refused rollup job.
func RecordQueueEnqueueError(reason string) {
	globalManager.queueEnqueueErrors.WithLabelValues(reason).Inc()
}

// RecordJobProcessed counts a finished rollup job.
func RecordJobProcessed(outcome string) {
	globalManager.jobsProcessed.WithLabelValues(outcome).Inc()
}

// RecordJobLatency records rollup job latency in milliseconds.
func RecordJobLatency(latencyMs float64) {
	globalManager.jobLatency.Observe(latencyMs)
}

// UpdateWorkersActive sets the running rollup worker gauge.
func UpdateWorkersActive(n int) {
	globalManager.workersActive.Set(float64(n))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
