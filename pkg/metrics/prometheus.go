// Package metrics provides Prometheus metrics for the roadsafe service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Sensor ingestion
	samplesReceived  prometheus.Counter
	samplesDropped   prometheus.Counter
	samplesDuplicate prometheus.Counter
	samplesIgnored   prometheus.Counter

	// Classification
	eventsClassified *prometheus.CounterVec
	alertWorthy      prometheus.Counter
	fallTransitions  *prometheus.CounterVec
	cleanWindows     prometheus.Counter
	classifyLatency  prometheus.Histogram
	monitoringActive prometheus.Gauge

	// Notification
	announcements *prometheus.CounterVec

	// Appeals and reporting
	appealTransitions *prometheus.CounterVec
	reportLatency     prometheus.Histogram
	safetyIndex       prometheus.Gauge
	tokenBalance      prometheus.Gauge

	// Storage
	storeLatency *prometheus.HistogramVec
	storedEvents prometheus.Gauge

	// Queue
	queueSize        prometheus.Gauge
	queueCapacity    prometheus.Gauge
	queueUtilization prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // keeps default Go metrics out

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "roadsafe",
		subsystem:        "safety",
		histogramBuckets: prometheus.DefBuckets,
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

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.samplesReceived = m.counter("samples_received_total", "Motion samples accepted into the queue")
	m.samplesDropped = m.counter("samples_dropped_total", "Motion samples dropped because the queue was full")
	m.samplesDuplicate = m.counter("samples_duplicate_total", "Motion samples skipped because their batch was already seen")
	m.samplesIgnored = m.counter("samples_ignored_total", "Motion samples received while monitoring was off")

	m.eventsClassified = m.counterVec("events_classified_total", "Road events emitted by kind", "kind")
	m.alertWorthy = m.counter("alert_worthy_events_total", "Road events flagged for driver notification")
	m.fallTransitions = m.counterVec("fall_confirmations_total", "Fall confirmation outcomes", "outcome")
	m.cleanWindows = m.counter("clean_windows_total", "Monitoring windows closed without critical events")
	m.classifyLatency = m.histogram("classify_latency_milliseconds", "Per-sample classification latency in milliseconds")
	m.monitoringActive = m.gauge("monitoring_active", "1 while sensor monitoring is enabled")

	m.announcements = m.counterVec("announcements_total", "Voice announcements by outcome", "outcome")

	m.appealTransitions = m.counterVec("appeal_transitions_total", "Appeal state transitions by target status", "status")
	m.reportLatency = m.histogram("report_latency_milliseconds", "Safety report computation latency in milliseconds")
	m.safetyIndex = m.gauge("safety_index", "Last computed safety index")
	m.tokenBalance = m.gauge("token_balance", "Last computed reward token balance")

	m.storeLatency = m.histogramVec("store_latency_milliseconds", "Event store operation latency", "op")
	m.storedEvents = m.gauge("stored_events", "Number of events in the event log")

	m.queueSize = m.gauge("queue_size", "Current number of queued samples")
	m.queueCapacity = m.gauge("queue_capacity", "Sample queue capacity")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Sample queue utilization (size / capacity)")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.errorsByComponent = m.counterVec("errors_total", "Errors by component and type", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Allocated heap memory in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

// RecordSampleReceived counts a sample accepted for classification.
func RecordSampleReceived() { globalManager.samplesReceived.Inc() }

// RecordSampleDropped counts a sample dropped on backpressure.
func RecordSampleDropped() { globalManager.samplesDropped.Inc() }

// RecordSamplesDuplicate counts samples of an already-seen batch.
func RecordSamplesDuplicate(n int) { globalManager.samplesDuplicate.Add(float64(n)) }

// RecordSampleIgnored counts a sample that arrived while monitoring was off.
func RecordSampleIgnored() { globalManager.samplesIgnored.Inc() }

// RecordEventClassified counts an emitted road event.
func RecordEventClassified(kind string, alertWorthy bool) {
	globalManager.eventsClassified.WithLabelValues(kind).Inc()
	if alertWorthy {
		globalManager.alertWorthy.Inc()
	}
}

// RecordFallOutcome counts a fall confirmation outcome: triggered,
// confirmed, discarded, cancelled or ignored.
func RecordFallOutcome(outcome string) {
	globalManager.fallTransitions.WithLabelValues(outcome).Inc()
}

// RecordCleanWindow counts a monitoring window closed without critical events.
func RecordCleanWindow() { globalManager.cleanWindows.Inc() }

// RecordClassifyLatency observes per-sample classification latency.
func RecordClassifyLatency(ms float64) { globalManager.classifyLatency.Observe(ms) }

// UpdateMonitoring sets the monitoring gauge.
func UpdateMonitoring(enabled bool) {
	v := 0.0
	if enabled {
		v = 1
	}
	globalManager.monitoringActive.Set(v)
}

// RecordAnnouncement counts a voice announcement outcome: spoken,
// suppressed or failed.
func RecordAnnouncement(outcome string) {
	globalManager.announcements.WithLabelValues(outcome).Inc()
}

// RecordAppealTransition counts an appeal reaching status.
func RecordAppealTransition(status string) {
	globalManager.appealTransitions.WithLabelValues(status).Inc()
}

// RecordReport observes a report computation and publishes its headline values.
func RecordReport(ms float64, safetyIndex, tokens int) {
	globalManager.reportLatency.Observe(ms)
	globalManager.safetyIndex.Set(float64(safetyIndex))
	globalManager.tokenBalance.Set(float64(tokens))
}

// RecordStoreLatency observes an event store operation.
func RecordStoreLatency(op string, ms float64) {
	globalManager.storeLatency.WithLabelValues(op).Observe(ms)
}

// UpdateStoredEvents sets the event log size.
func UpdateStoredEvents(n int) { globalManager.storedEvents.Set(float64(n)) }

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(ratio float64) { globalManager.queueUtilization.Set(ratio) }

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, ms float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(ms)
}

// RecordError counts an error attributed to a component.
func RecordError(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets allocated heap bytes.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the goroutine count.
func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
