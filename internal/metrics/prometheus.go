package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics contains all Prometheus metrics for the hospital hub
type PrometheusMetrics struct {
	// Notification pipeline metrics
	NotificationsCreatedTotal    *prometheus.CounterVec
	NotificationsSuppressedTotal *prometheus.CounterVec
	NotificationsSentTotal       *prometheus.CounterVec
	NotificationFailuresTotal    *prometheus.CounterVec
	NotificationDuration         *prometheus.HistogramVec
	UnreadNotifications          prometheus.Gauge
	DigestsSentTotal             prometheus.Counter

	// Resource ledger metrics
	ResourceUpdatesTotal *prometheus.CounterVec
	ResourceRows         prometheus.Gauge
	UrgentResourceRows   prometheus.Gauge

	// Storage metrics
	DatabaseOperationsTotal   *prometheus.CounterVec
	DatabaseOperationDuration *prometheus.HistogramVec

	// API metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Application health metrics
	ApplicationUptime prometheus.Gauge
	ComponentHealth   *prometheus.GaugeVec
	MemoryUsage       prometheus.Gauge
	GoroutineCount    prometheus.Gauge
}

// NewPrometheusMetrics creates and registers all Prometheus metrics
func NewPrometheusMetrics() *PrometheusMetrics {
	return &PrometheusMetrics{
		NotificationsCreatedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hospitalhub_notifications_created_total",
				Help: "Total number of notifications created",
			},
			[]string{"category", "priority"},
		),

		NotificationsSuppressedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hospitalhub_notifications_suppressed_total",
				Help: "Total number of notifications suppressed by settings",
			},
			[]string{"reason"},
		),

		NotificationsSentTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hospitalhub_notifications_sent_total",
				Help: "Total number of notifications delivered per channel",
			},
			[]string{"channel", "type"},
		),

		NotificationFailuresTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hospitalhub_notification_failures_total",
				Help: "Total number of failed channel deliveries",
			},
			[]string{"channel", "type"},
		),

		NotificationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hospitalhub_notification_duration_seconds",
				Help:    "Duration of channel delivery attempts",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"channel", "type"},
		),

		UnreadNotifications: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "hospitalhub_unread_notifications",
				Help: "Current number of unread notifications",
			},
		),

		DigestsSentTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "hospitalhub_digests_sent_total",
				Help: "Total number of email digests sent",
			},
		),

		ResourceUpdatesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hospitalhub_resource_updates_total",
				Help: "Total number of resource ledger updates",
			},
			[]string{"hospital", "outcome"},
		),

		ResourceRows: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "hospitalhub_resource_rows",
				Help: "Current number of resource ledger rows",
			},
		),

		UrgentResourceRows: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "hospitalhub_urgent_resource_rows",
				Help: "Current number of ledger rows in urgent status",
			},
		),

		DatabaseOperationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hospitalhub_database_operations_total",
				Help: "Total number of database operations",
			},
			[]string{"operation", "table", "status"},
		),

		DatabaseOperationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hospitalhub_database_operation_duration_seconds",
				Help:    "Duration of database operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "table"},
		),

		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hospitalhub_http_requests_total",
				Help: "Total number of HTTP requests received",
			},
			[]string{"method", "path", "status"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hospitalhub_http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		ApplicationUptime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "hospitalhub_application_uptime_seconds",
				Help: "Application uptime in seconds",
			},
		),

		ComponentHealth: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "hospitalhub_component_health",
				Help: "Health status of application components (1=healthy, 0=unhealthy)",
			},
			[]string{"component"},
		),

		MemoryUsage: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "hospitalhub_memory_usage_bytes",
				Help: "Current memory usage in bytes",
			},
		),

		GoroutineCount: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "hospitalhub_goroutines",
				Help: "Number of running goroutines",
			},
		),
	}
}

// RecordNotificationCreated records a created notification
func (m *PrometheusMetrics) RecordNotificationCreated(category, priority string) {
	m.NotificationsCreatedTotal.WithLabelValues(category, priority).Inc()
}

// RecordNotificationSuppressed records a settings-suppressed notification
func (m *PrometheusMetrics) RecordNotificationSuppressed(reason string) {
	m.NotificationsSuppressedTotal.WithLabelValues(reason).Inc()
}

// RecordNotificationSent records a successful channel delivery
func (m *PrometheusMetrics) RecordNotificationSent(channel, notificationType string, duration time.Duration) {
	m.NotificationsSentTotal.WithLabelValues(channel, notificationType).Inc()
	m.NotificationDuration.WithLabelValues(channel, notificationType).Observe(duration.Seconds())
}

// RecordNotificationFailure records a failed channel delivery
func (m *PrometheusMetrics) RecordNotificationFailure(channel, notificationType string) {
	m.NotificationFailuresTotal.WithLabelValues(channel, notificationType).Inc()
}

// UpdateUnreadNotifications updates the unread notification gauge
func (m *PrometheusMetrics) UpdateUnreadNotifications(count int) {
	m.UnreadNotifications.Set(float64(count))
}

// RecordDigestSent records a sent email digest
func (m *PrometheusMetrics) RecordDigestSent() {
	m.DigestsSentTotal.Inc()
}

// RecordResourceUpdate records a ledger update; outcome is created or updated
func (m *PrometheusMetrics) RecordResourceUpdate(hospital, outcome string) {
	m.ResourceUpdatesTotal.WithLabelValues(hospital, outcome).Inc()
}

// UpdateResourceRows updates the ledger row gauges
func (m *PrometheusMetrics) UpdateResourceRows(total, urgent int) {
	m.ResourceRows.Set(float64(total))
	m.UrgentResourceRows.Set(float64(urgent))
}

// RecordDatabaseOperation records a database operation
func (m *PrometheusMetrics) RecordDatabaseOperation(operation, table, status string, duration time.Duration) {
	m.DatabaseOperationsTotal.WithLabelValues(operation, table, status).Inc()
	m.DatabaseOperationDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// RecordHTTPRequest records an HTTP request
func (m *PrometheusMetrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// UpdateApplicationUptime updates the application uptime metric
func (m *PrometheusMetrics) UpdateApplicationUptime(startTime time.Time) {
	m.ApplicationUptime.Set(time.Since(startTime).Seconds())
}

// UpdateComponentHealth updates the health status of a component
func (m *PrometheusMetrics) UpdateComponentHealth(component string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	m.ComponentHealth.WithLabelValues(component).Set(value)
}

// UpdateMemoryUsage updates the memory usage metric
func (m *PrometheusMetrics) UpdateMemoryUsage(bytes uint64) {
	m.MemoryUsage.Set(float64(bytes))
}

// UpdateGoroutineCount updates the goroutine count metric
func (m *PrometheusMetrics) UpdateGoroutineCount(count int) {
	m.GoroutineCount.Set(float64(count))
}
