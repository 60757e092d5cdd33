// Package metrics provides Prometheus metrics for the runclub service.
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

// Manager manages all Prometheus metrics for the runclub service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	refreshInterval  time.Duration
	registry         prometheus.Registerer

	// Partner matching
	matchRequests    *prometheus.CounterVec
	matchCandidates  prometheus.Counter
	matchFallbacks   prometheus.Counter
	matchLatency     prometheus.Histogram
	matchResultCount prometheus.Histogram

	// Reminders and recaps
	remindersFlagged *prometheus.CounterVec
	remindersSkipped *prometheus.CounterVec
	recapDigests     *prometheus.CounterVec
	recapSkipped     *prometheus.CounterVec

	// Push delivery
	pushSends  *prometheus.CounterVec
	pushTokens *prometheus.CounterVec

	// Scheduled jobs
	jobRuns     *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec
	lockBusy    *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
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
		namespace:        "runclub",
		subsystem:        "core",
		histogramBuckets: prometheus.DefBuckets,
		refreshInterval:  defaultRefreshInterval,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.matchRequests = m.counterVec("match_requests_total",
		"Partner matching requests by outcome (ok, fallback, no_groups, lookup_error, ...)", "outcome")
	m.matchCandidates = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "match_candidates_scored_total",
		Help:      "Total number of candidates scored by the partner matcher",
	})
	m.matchFallbacks = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "match_fallbacks_total",
		Help:      "Requests where no candidate reached the minimum score and all were returned",
	})
	m.matchLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "match_latency_milliseconds",
		Help:      "Latency of FindPartners in milliseconds",
		Buckets:   m.histogramBuckets,
	})
	m.matchResultCount = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "match_results",
		Help:      "Number of candidates returned per request",
		Buckets:   []float64{0, 1, 3, 5, 10, 15},
	})

	m.remindersFlagged = m.counterVec("reminder_events_flagged_total",
		"Events flagged as reminded, by lead time", "lead")
	m.remindersSkipped = m.counterVec("reminder_events_skipped_total",
		"Events skipped by a reminder scan, by lead time and reason", "lead", "reason")
	m.recapDigests = m.counterVec("recap_digests_sent_total",
		"Recap digests pushed, by period", "period")
	m.recapSkipped = m.counterVec("recap_recipients_skipped_total",
		"Recap recipients skipped, by period and reason", "period", "reason")

	m.pushSends = m.counterVec("push_sends_total",
		"Multicast sends handed to the push transport, by driver and status", "driver", "status")
	m.pushTokens = m.counterVec("push_tokens_total",
		"Per-token push outcomes, by result (success, failure)", "result")

	m.jobRuns = m.counterVec("job_runs_total",
		"Scheduled job executions by job and status (ok, skipped, error)", "job", "status")
	m.jobDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "job_duration_milliseconds",
		Help:      "Scheduled job duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"job"})
	m.lockBusy = m.counterVec("lock_busy_total",
		"Attempts to take a scheduler lock that was already held", "key")

	m.httpRequests = m.counterVec("http_requests_total",
		"Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = m.counterVec("errors_by_component_total",
		"Errors by component and type", "component", "error_type")

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
	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_gc_pause_time_milliseconds",
		Help:      "GC pause time in milliseconds",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
	})
}

// Matching.

// RecordMatchRequest counts a FindPartners call by outcome.
func RecordMatchRequest(outcome string) {
	globalManager.matchRequests.WithLabelValues(outcome).Inc()
}

// RecordCandidatesScored adds n scored candidates.
func RecordCandidatesScored(n int) {
	globalManager.matchCandidates.Add(float64(n))
}

// RecordMatchFallback counts a request served by the unfiltered fallback.
func RecordMatchFallback() {
	globalManager.matchFallbacks.Inc()
}

// RecordMatchLatency records FindPartners latency in milliseconds.
func RecordMatchLatency(latencyMs float64) {
	globalManager.matchLatency.Observe(latencyMs)
}

// RecordMatchResults records how many candidates a request returned.
func RecordMatchResults(n int) {
	globalManager.matchResultCount.Observe(float64(n))
}

// Reminders and recaps.

// RecordRemindersFlagged adds n events flagged for lead.
func RecordRemindersFlagged(lead string, n int) {
	globalManager.remindersFlagged.WithLabelValues(lead).Add(float64(n))
}

// RecordReminderSkipped counts an event skipped by a reminder scan.
func RecordReminderSkipped(lead, reason string) {
	globalManager.remindersSkipped.WithLabelValues(lead, reason).Inc()
}

// RecordRecapDigest counts one digest pushed for period.
func RecordRecapDigest(period string) {
	globalManager.recapDigests.WithLabelValues(period).Inc()
}

// RecordRecapSkipped counts a recap recipient skipped for reason.
func RecordRecapSkipped(period, reason string) {
	globalManager.recapSkipped.WithLabelValues(period, reason).Inc()
}

// Push.

// RecordPushSend counts a multicast send by driver and status.
func RecordPushSend(driver, status string) {
	globalManager.pushSends.WithLabelValues(driver, status).Inc()
}

// RecordPushTokens adds per-token outcomes.
func RecordPushTokens(success, failure int) {
	globalManager.pushTokens.WithLabelValues("success").Add(float64(success))
	globalManager.pushTokens.WithLabelValues("failure").Add(float64(failure))
}

// Jobs.

// RecordJobRun counts a job execution and observes its duration.
func RecordJobRun(job, status string, d time.Duration) {
	globalManager.jobRuns.WithLabelValues(job, status).Inc()
	globalManager.jobDuration.WithLabelValues(job).Observe(float64(d.Milliseconds()))
}

// RecordLockBusy counts a lock acquisition that found the lock held.
func RecordLockBusy(key string) {
	globalManager.lockBusy.WithLabelValues(key).Inc()
}

// HTTP.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Errors.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// System.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// RefreshInterval is how often the runtime gauges should be sampled.
func (m *Manager) RefreshInterval() time.Duration {
	return m.refreshInterval
}

// RefreshInterval returns the sampling interval of the global manager.
func RefreshInterval() time.Duration {
	return globalManager.RefreshInterval()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
