// Package metrics provides Prometheus metrics for the slashboard service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the slashboard service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Ingestion
	submissionsReceived prometheus.Counter
	submissionsRejected *prometheus.CounterVec
	recordsUpserted     prometheus.Counter

	// Record store
	storeQueryLatency *prometheus.HistogramVec
	storeErrors       *prometheus.CounterVec
	recordsTotal      prometheus.Gauge

	// Leaderboard
	leaderboardBuilds   *prometheus.CounterVec
	leaderboardEntries  prometheus.Histogram
	leaderboardRenderMs prometheus.Histogram

	// Assets
	assetFetches     *prometheus.CounterVec
	assetFetchMs     *prometheus.HistogramVec
	assetCacheEvents *prometheus.CounterVec

	// Retention
	retentionChecks *prometheus.CounterVec
	retentionEpoch  prometheus.Gauge

	// Batch refresh
	refreshOutcomes *prometheus.CounterVec
	refreshDuration prometheus.Histogram

	// Queue and workers
	queueSize        prometheus.Gauge
	queueCapacity    prometheus.Gauge
	queueEnqueue     prometheus.Counter
	queueDequeue     prometheus.Counter
	queueErrors      *prometheus.CounterVec
	workerCount      prometheus.Gauge
	workerLatency    prometheus.Histogram
	workerErrorTotal prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByComponent *prometheus.CounterVec

	// System
	systemMemoryBytes prometheus.Gauge
	systemGoroutines  prometheus.Gauge
	systemGCPauseMs   prometheus.Gauge
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
		namespace:        "slashboard",
		subsystem:        "leaderboard",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}
	if !m.enabled {
		// Collectors stay usable but are never exported.
		m.registry = prometheus.NewRegistry()
	}

	m.initializeMetrics()

	return m
}

// Enabled reports whether the manager exports to its configured registry.
func (m *Manager) Enabled() bool { return m.enabled }

// RefreshInterval is how often sampled gauges should be updated.
func (m *Manager) RefreshInterval() time.Duration { return m.refreshInterval }

// RefreshInterval returns the global manager's gauge refresh interval.
func RefreshInterval() time.Duration { return globalManager.refreshInterval }

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) counter(n, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(n), Help: help, ConstLabels: m.customLabels,
	})
}

func (m *Manager) counterVec(n, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(n), Help: help, ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) gauge(n, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(n), Help: help, ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogram(n, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(n), Help: help, ConstLabels: m.customLabels,
		Buckets: m.histogramBuckets,
	})
}

func (m *Manager) histogramVec(n, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(n), Help: help, ConstLabels: m.customLabels,
		Buckets: m.histogramBuckets,
	}, labels)
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	m.submissionsReceived = m.counter("submissions_received_total", "Total number of challenge submissions received")
	m.submissionsRejected = m.counterVec("submissions_rejected_total", "Submissions rejected before reaching the store", "reason")
	m.recordsUpserted = m.counter("records_upserted_total", "Total number of successful record upserts")

	m.storeQueryLatency = m.histogramVec("store_query_latency_milliseconds", "Record store query latency in milliseconds", "operation")
	m.storeErrors = m.counterVec("store_errors_total", "Record store failures by operation", "operation")
	m.recordsTotal = m.gauge("records_total", "Number of challenge records currently stored")

	m.leaderboardBuilds = m.counterVec("builds_total", "Leaderboard builds by kind and outcome", "kind", "outcome")
	m.leaderboardEntries = m.histogram("entries", "Number of ranked entries per leaderboard build")
	m.leaderboardRenderMs = m.histogram("render_latency_milliseconds", "End-to-end leaderboard render latency in milliseconds")

	m.assetFetches = m.counterVec("asset_fetches_total", "Asset fetches by kind and result", "kind", "result")
	m.assetFetchMs = m.histogramVec("asset_fetch_latency_milliseconds", "Asset fetch latency in milliseconds", "kind")
	m.assetCacheEvents = m.counterVec("asset_cache_events_total", "Asset cache hits, misses and evictions", "event")

	m.retentionChecks = m.counterVec("retention_checks_total", "Retention checks by result", "result")
	m.retentionEpoch = m.gauge("retention_epoch", "Most recently cleaned retention epoch")

	m.refreshOutcomes = m.counterVec("refresh_outcomes_total", "Batch refresh task outcomes", "status")
	m.refreshDuration = m.histogram("refresh_duration_seconds", "Batch refresh run duration in seconds")

	m.queueSize = m.gauge("queue_size", "Current number of submissions waiting in the queue")
	m.queueCapacity = m.gauge("queue_capacity", "Submission queue capacity")
	m.queueEnqueue = m.counter("queue_enqueue_total", "Submissions enqueued")
	m.queueDequeue = m.counter("queue_dequeue_total", "Submissions dequeued")
	m.queueErrors = m.counterVec("queue_errors_total", "Enqueue failures by reason", "reason")
	m.workerCount = m.gauge("worker_count", "Number of ingest workers")
	m.workerLatency = m.histogram("worker_processing_latency_milliseconds", "Ingest worker processing latency in milliseconds")
	m.workerErrorTotal = m.counter("worker_errors_total", "Ingest worker failures")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Errors by component and type", "component", "error_type")

	m.systemMemoryBytes = m.gauge("system_memory_bytes", "Heap bytes allocated")
	m.systemGoroutines = m.gauge("system_goroutines", "Number of goroutines")
	m.systemGCPauseMs = m.gauge("system_gc_pause_milliseconds", "Average GC pause in milliseconds")
}

// Ingestion Metrics Functions.

// RecordSubmissionReceived increments the received submissions counter.
func RecordSubmissionReceived() {
	globalManager.submissionsReceived.Inc()
}

// RecordSubmissionRejected increments the rejected submissions counter.
func RecordSubmissionRejected(reason string) {
	globalManager.submissionsRejected.WithLabelValues(reason).Inc()
}

// RecordRecordUpserted increments the upsert counter.
func RecordRecordUpserted() {
	globalManager.recordsUpserted.Inc()
}

// Store Metrics Functions.

// RecordStoreQueryLatency records the latency of a store operation.
func RecordStoreQueryLatency(operation string, latencyMs float64) {
	globalManager.storeQueryLatency.WithLabelValues(operation).Observe(latencyMs)
}

// RecordStoreError increments the store error counter for an operation.
func RecordStoreError(operation string) {
	globalManager.storeErrors.WithLabelValues(operation).Inc()
}

// UpdateRecordsTotal sets the stored record count.
func UpdateRecordsTotal(count int) {
	globalManager.recordsTotal.Set(float64(count))
}

// Leaderboard Metrics Functions.

// RecordLeaderboardBuild counts a leaderboard build.
func RecordLeaderboardBuild(kind, outcome string) {
	globalManager.leaderboardBuilds.WithLabelValues(kind, outcome).Inc()
}

// RecordLeaderboardEntries observes how many entries a build ranked.
func RecordLeaderboardEntries(count int) {
	globalManager.leaderboardEntries.Observe(float64(count))
}

// RecordLeaderboardRenderLatency records render latency.
func RecordLeaderboardRenderLatency(latencyMs float64) {
	globalManager.leaderboardRenderMs.Observe(latencyMs)
}

// Asset Metrics Functions.

// RecordAssetFetch counts an asset fetch with its result (ok, fallback, error).
func RecordAssetFetch(kind, result string) {
	globalManager.assetFetches.WithLabelValues(kind, result).Inc()
}

// RecordAssetFetchLatency records asset fetch latency.
func RecordAssetFetchLatency(kind string, latencyMs float64) {
	globalManager.assetFetchMs.WithLabelValues(kind).Observe(latencyMs)
}

// RecordAssetCacheHit counts a cache hit.
func RecordAssetCacheHit() {
	globalManager.assetCacheEvents.WithLabelValues("hit").Inc()
}

// RecordAssetCacheMiss counts a cache miss.
func RecordAssetCacheMiss() {
	globalManager.assetCacheEvents.WithLabelValues("miss").Inc()
}

// RecordAssetCacheEviction counts an eviction.
func RecordAssetCacheEviction() {
	globalManager.assetCacheEvents.WithLabelValues("evict").Inc()
}

// Retention Metrics Functions.

// RecordRetentionCheck counts a retention check (fresh, purged, failed).
func RecordRetentionCheck(result string) {
	globalManager.retentionChecks.WithLabelValues(result).Inc()
}

// UpdateRetentionEpoch sets the last cleaned epoch.
func UpdateRetentionEpoch(epoch int64) {
	globalManager.retentionEpoch.Set(float64(epoch))
}

// Refresh Metrics Functions.

// RecordRefreshOutcome counts a refresh task outcome.
func RecordRefreshOutcome(status string) {
	globalManager.refreshOutcomes.WithLabelValues(status).Inc()
}

// RecordRefreshDuration records a refresh run duration.
func RecordRefreshDuration(d time.Duration) {
	globalManager.refreshDuration.Observe(d.Seconds())
}

// Queue Metrics Functions.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueue.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeue.Inc()
}

// RecordQueueEnqueueError counts an enqueue failure.
func RecordQueueEnqueueError(reason string) {
	globalManager.queueErrors.WithLabelValues(reason).Inc()
}

// Worker Metrics Functions.

// UpdateWorkerCount sets the number of ingest workers.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records ingest worker latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrorTotal.Inc()
}

// HTTP Metrics Functions.

// RecordHTTPRequest counts an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// System Metrics Functions.

// UpdateSystemMemoryUsage sets the allocated heap size.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryBytes.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine count.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutines.Set(float64(count))
}

// RecordSystemGCPauseTime sets the average GC pause.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseMs.Set(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
