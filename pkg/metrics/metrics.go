package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "logcollector"

// Metrics holds operational metrics for the server on a private registry
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	logsIngested     *prometheus.CounterVec
	validationErrors prometheus.Counter
	storageErrors    *prometheus.CounterVec
	purges           prometheus.Counter
	broadcasts       prometheus.Counter
	deliveryFailures prometheus.Counter
	listeners        prometheus.Gauge
	serverStartTime  prometheus.Gauge
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(registry)

	m := &Metrics{
		registry: registry,

		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		logsIngested: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "logs_ingested_total",
				Help:      "Total number of persisted log records by level",
			},
			[]string{"level"},
		),
		validationErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_errors_total",
			Help:      "Total number of rejected submissions",
		}),
		storageErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "storage_errors_total",
				Help:      "Total number of failed store operations",
			},
			[]string{"op"},
		),
		purges: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purges_total",
			Help:      "Total number of successful purges",
		}),
		broadcasts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_total",
			Help:      "Total number of records published to listeners",
		}),
		deliveryFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_delivery_failures_total",
			Help:      "Total number of failed per-listener deliveries",
		}),
		listeners: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "broadcast_listeners",
			Help:      "Number of registered real-time listeners",
		}),
		serverStartTime: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "server_start_time_seconds",
			Help:      "Unix time the server started",
		}),
	}

	m.serverStartTime.Set(float64(time.Now().Unix()))

	return m
}

// ObserveRequest records a completed HTTP request
func (m *Metrics) ObserveRequest(method, route string, status int, duration time.Duration) {
	m.requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// IncrementLogsIngested increments the logs ingested counter for level
func (m *Metrics) IncrementLogsIngested(level string) {
	m.logsIngested.WithLabelValues(level).Inc()
}

// IncrementValidationErrors increments the validation errors counter
func (m *Metrics) IncrementValidationErrors() {
	m.validationErrors.Inc()
}

// IncrementStorageErrors increments the storage errors counter for op
func (m *Metrics) IncrementStorageErrors(op string) {
	m.storageErrors.WithLabelValues(op).Inc()
}

// IncrementPurges increments the purge counter
func (m *Metrics) IncrementPurges() {
	m.purges.Inc()
}

// IncrementBroadcasts increments the published records counter
func (m *Metrics) IncrementBroadcasts() {
	m.broadcasts.Inc()
}

// IncrementDeliveryFailures increments the failed deliveries counter
func (m *Metrics) IncrementDeliveryFailures() {
	m.deliveryFailures.Inc()
}

// SetListeners records the current number of registered listeners
func (m *Metrics) SetListeners(n int) {
	m.listeners.Set(float64(n))
}

// Registry returns the private registry backing these metrics
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus exposition handler for the private registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
