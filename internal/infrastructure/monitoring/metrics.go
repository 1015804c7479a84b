package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Intent metrics
	IntentsTotal   *prometheus.CounterVec
	IntentDuration *prometheus.HistogramVec
	IntentErrors   *prometheus.CounterVec

	// Audit metrics
	AuditEntries      prometheus.Counter
	AuditAppendErrors prometheus.Counter

	// Kernel metrics
	HandlesOpen  prometheus.Gauge
	KernelLocked prometheus.Gauge

	// WebSocket metrics
	WSConnections prometheus.Gauge

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time
}

// NewMetrics creates a new metrics collector.
func NewMetrics() *Metrics {
	m := &Metrics{
		startTime: time.Now(),

		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "platform_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "platform_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		IntentsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "platform_intents_total",
				Help: "Total number of evaluated intents",
			},
			[]string{"action", "outcome"},
		),
		IntentDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "platform_intent_duration_seconds",
				Help:    "Intent dispatch duration in seconds",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"action"},
		),
		IntentErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "platform_intent_errors_total",
				Help: "Total number of failed intent executions",
			},
			[]string{"action", "code"},
		),

		AuditEntries: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "platform_audit_entries_total",
				Help: "Total number of audit entries appended",
			},
		),
		AuditAppendErrors: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "platform_audit_append_errors_total",
				Help: "Total number of audit append failures",
			},
		),

		HandlesOpen: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "platform_handles_open",
				Help: "Number of open kernel handles",
			},
		),
		KernelLocked: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "platform_kernel_locked",
				Help: "Whether the kernel is locked (1) or active (0)",
			},
		),

		WSConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "platform_ws_connections",
				Help: "Number of active WebSocket stream clients",
			},
		),

		Uptime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "platform_uptime_seconds",
				Help: "Process uptime in seconds",
			},
		),
	}

	// Start uptime updater
	go m.updateUptime()

	return m
}

// updateUptime continuously updates the uptime metric.
func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.Uptime.Set(time.Since(m.startTime).Seconds())
	}
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordIntent records one evaluated intent.
func (m *Metrics) RecordIntent(action, outcome string, duration time.Duration) {
	m.IntentsTotal.WithLabelValues(action, outcome).Inc()
	m.IntentDuration.WithLabelValues(action).Observe(duration.Seconds())
}

// RecordIntentError records an allowed intent whose execution failed.
func (m *Metrics) RecordIntentError(action, code string) {
	m.IntentErrors.WithLabelValues(action, code).Inc()
}

// RecordAuditEntry records one appended ledger entry.
func (m *Metrics) RecordAuditEntry() {
	m.AuditEntries.Inc()
}

// RecordAuditAppendError records a ledger append failure.
func (m *Metrics) RecordAuditAppendError() {
	m.AuditAppendErrors.Inc()
}

// SetHandlesOpen sets the open-handle gauge.
func (m *Metrics) SetHandlesOpen(count int) {
	m.HandlesOpen.Set(float64(count))
}

// SetKernelLocked sets the lock-state gauge.
func (m *Metrics) SetKernelLocked(locked bool) {
	if locked {
		m.KernelLocked.Set(1)
	} else {
		m.KernelLocked.Set(0)
	}
}

// IncWSConnections increments WebSocket connections.
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
}

// DecWSConnections decrements WebSocket connections.
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
}
