// Package metrics provides Prometheus metrics for the medblog service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const defaultRefreshInterval = 10 * time.Second

// Manager owns every Prometheus collector exported by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Ranking and search
	rankRuns        prometheus.Counter
	rankDuration    prometheus.Histogram
	rankedArticles  prometheus.Histogram
	searchQueries   prometheus.Counter
	searchResults   prometheus.Histogram
	categoryFilters *prometheus.CounterVec

	// Content
	articlesTotal  prometheus.Gauge
	articleWrites  *prometheus.CounterVec
	viewsRecorded  prometheus.Counter
	viewsDuplicate prometheus.Counter

	// Feed cache
	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter
	cacheErrors prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorsByEndpoint    *prometheus.CounterVec
	errorsByComponent   *prometheus.CounterVec

	// View queue and workers
	queueSize               prometheus.Gauge
	queueCapacity           prometheus.Gauge
	queueEnqueueErrors      prometheus.Counter
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// Scheduler
	jobRuns   *prometheus.CounterVec
	jobErrors *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // registry without default Go collectors

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "medblog",
		subsystem:        "content",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		constLabels:      prometheus.Labels{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	sizeBuckets := prometheus.ExponentialBuckets(1, 2, 12)

	m.rankRuns = m.counter("rank_runs_total", "Number of ranking passes over the article collection")
	m.rankDuration = m.histogram("rank_duration_milliseconds", "Duration of a ranking pass in milliseconds", m.histogramBuckets)
	m.rankedArticles = m.histogram("ranked_articles", "Number of articles ranked per pass", sizeBuckets)
	m.searchQueries = m.counter("search_queries_total", "Number of search queries served")
	m.searchResults = m.histogram("search_results", "Number of matches per search query", sizeBuckets)
	m.categoryFilters = m.counterVec("category_filters_total", "Feed requests by category filter", "category")

	m.articlesTotal = m.gauge("articles_total", "Number of stored articles")
	m.articleWrites = m.counterVec("article_writes_total", "CMS writes by operation", "op")
	m.viewsRecorded = m.counter("views_recorded_total", "Article views applied to the store")
	m.viewsDuplicate = m.counter("views_duplicate_total", "Article views dropped as duplicates")

	m.cacheHits = m.counter("feed_cache_hits_total", "Feed cache hits")
	m.cacheMisses = m.counter("feed_cache_misses_total", "Feed cache misses")
	m.cacheErrors = m.counter("feed_cache_errors_total", "Feed cache backend errors")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:        "http_request_duration_milliseconds",
		Help:        "HTTP request duration in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status_code"})
	m.errorsByEndpoint = m.counterVec("errors_by_endpoint_total", "HTTP errors by endpoint", "endpoint", "method", "error_type")
	m.errorsByComponent = m.counterVec("errors_by_component_total", "Errors by component", "component", "error_type")

	m.queueSize = m.gauge("view_queue_size", "Current number of queued view events")
	m.queueCapacity = m.gauge("view_queue_capacity", "Capacity of the view queue")
	m.queueEnqueueErrors = m.counter("view_queue_enqueue_errors_total", "View events rejected by the queue")
	m.workerCount = m.gauge("view_worker_count", "Number of view workers")
	m.workerProcessingLatency = m.histogram("view_worker_latency_milliseconds", "View event processing latency in milliseconds", m.histogramBuckets)
	m.workerErrors = m.counter("view_worker_errors_total", "View events that failed to apply")

	m.jobRuns = m.counterVec("job_runs_total", "Scheduled job runs", "job")
	m.jobErrors = m.counterVec("job_errors_total", "Scheduled job failures", "job")

	m.systemMemoryUsage = m.gauge("system_memory_bytes", "Allocated heap bytes")
	m.systemGoroutineCount = m.gauge("system_goroutines", "Number of goroutines")
}

// Enabled reports whether recording is active.
func (m *Manager) Enabled() bool { return m.enabled }

func record(fn func(m *Manager)) {
	if globalManager == nil || !globalManager.enabled {
		return
	}
	fn(globalManager)
}

// RecordRank records one ranking pass.
func RecordRank(articles int, durationMs float64) {
	record(func(m *Manager) {
		m.rankRuns.Inc()
		m.rankDuration.Observe(durationMs)
		m.rankedArticles.Observe(float64(articles))
	})
}

// RecordSearch records one search query and its match count.
func RecordSearch(results int) {
	record(func(m *Manager) {
		m.searchQueries.Inc()
		m.searchResults.Observe(float64(results))
	})
}

// RecordCategoryFilter counts feed requests per category.
func RecordCategoryFilter(category string) {
	record(func(m *Manager) { m.categoryFilters.WithLabelValues(category).Inc() })
}

// UpdateArticlesTotal sets the stored-articles gauge.
func UpdateArticlesTotal(n int) {
	record(func(m *Manager) { m.articlesTotal.Set(float64(n)) })
}

// RecordArticleWrite counts a CMS write (create, update, delete).
func RecordArticleWrite(op string) {
	record(func(m *Manager) { m.articleWrites.WithLabelValues(op).Inc() })
}

// RecordViewApplied counts a view written to the store.
func RecordViewApplied() {
	record(func(m *Manager) { m.viewsRecorded.Inc() })
}

// RecordViewDuplicate counts a view dropped by dedupe.
func RecordViewDuplicate() {
	record(func(m *Manager) { m.viewsDuplicate.Inc() })
}

// RecordCacheHit counts a feed cache hit.
func RecordCacheHit() { record(func(m *Manager) { m.cacheHits.Inc() }) }

// RecordCacheMiss counts a feed cache miss.
func RecordCacheMiss() { record(func(m *Manager) { m.cacheMisses.Inc() }) }

// RecordCacheError counts a feed cache backend failure.
func RecordCacheError() { record(func(m *Manager) { m.cacheErrors.Inc() }) }

// RecordHTTPRequest counts an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	record(func(m *Manager) { m.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc() })
}

// RecordHTTPRequestDuration observes an HTTP request latency in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	record(func(m *Manager) {
		m.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
	})
}

// RecordErrorByEndpoint counts an HTTP error.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	record(func(m *Manager) { m.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc() })
}

// RecordErrorByComponent counts an internal error.
func RecordErrorByComponent(component, errorType string) {
	record(func(m *Manager) { m.errorsByComponent.WithLabelValues(component, errorType).Inc() })
}

// UpdateQueueSize sets the view queue depth.
func UpdateQueueSize(size int) {
	record(func(m *Manager) { m.queueSize.Set(float64(size)) })
}

// UpdateQueueCapacity sets the view queue capacity.
func UpdateQueueCapacity(capacity int) {
	record(func(m *Manager) { m.queueCapacity.Set(float64(capacity)) })
}

// RecordQueueEnqueueError counts a rejected view event.
func RecordQueueEnqueueError() {
	record(func(m *Manager) { m.queueEnqueueErrors.Inc() })
}

// UpdateWorkerCount sets the number of view workers.
func UpdateWorkerCount(count int) {
	record(func(m *Manager) { m.workerCount.Set(float64(count)) })
}

// RecordWorkerProcessingLatency observes view processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	record(func(m *Manager) { m.workerProcessingLatency.Observe(latencyMs) })
}

// RecordWorkerError counts a failed view event.
func RecordWorkerError() {
	record(func(m *Manager) { m.workerErrors.Inc() })
}

// RecordJobRun counts a scheduled job run; failed marks it as an error too.
func RecordJobRun(job string, failed bool) {
	record(func(m *Manager) {
		m.jobRuns.WithLabelValues(job).Inc()
		if failed {
			m.jobErrors.WithLabelValues(job).Inc()
		}
	})
}

// UpdateSystemMemoryUsage sets the heap gauge.
func UpdateSystemMemoryUsage(bytes uint64) {
	record(func(m *Manager) { m.systemMemoryUsage.Set(float64(bytes)) })
}

// UpdateSystemGoroutineCount sets the goroutine gauge.
func UpdateSystemGoroutineCount(count int) {
	record(func(m *Manager) { m.systemGoroutineCount.Set(float64(count)) })
}

// GetRegistry returns the registry served on /healthz.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
