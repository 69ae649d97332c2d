package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Metrics holds all Prometheus metrics for the API. Each instance owns its
// registry so several servers can live in one process.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP request metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight *prometheus.GaugeVec

	// Settings store metrics
	settingsOperationsTotal   *prometheus.CounterVec
	settingsOperationDuration *prometheus.HistogramVec
	settingsInvalidLoadsTotal prometheus.Counter

	snapshotOperationsTotal *prometheus.CounterVec

	authRequestsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gemsettings_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gemsettings_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		httpRequestsInFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gemsettings_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
			[]string{"method", "endpoint"},
		),

		settingsOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gemsettings_settings_operations_total",
				Help: "Total number of settings load, save and erase operations",
			},
			[]string{"operation", "status"},
		),

		settingsOperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gemsettings_settings_operation_duration_seconds",
				Help:    "Settings operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		settingsInvalidLoadsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gemsettings_settings_invalid_loads_total",
				Help: "Number of loads that found no valid record and fell back to defaults",
			},
		),

		snapshotOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gemsettings_snapshot_operations_total",
				Help: "Total number of snapshot operations",
			},
			[]string{"operation", "status"},
		),

		authRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gemsettings_auth_requests_total",
				Help: "Total number of authentication requests",
			},
			[]string{"status"},
		),
	}
}

// Registry returns the registry the metrics are registered with
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func statusLabel(success bool) string {
	if success {
		return statusSuccess
	}
	return statusError
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	statusCodeStr := strconv.Itoa(statusCode)

	m.httpRequestsTotal.WithLabelValues(method, endpoint, statusCodeStr).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordSettingsOperation records a load, save or erase
func (m *Metrics) RecordSettingsOperation(operation string, success bool, duration time.Duration) {
	m.settingsOperationsTotal.WithLabelValues(operation, statusLabel(success)).Inc()
	m.settingsOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordInvalidLoad counts a load that returned defaults
func (m *Metrics) RecordInvalidLoad() {
	m.settingsInvalidLoadsTotal.Inc()
}

// RecordSnapshotOperation records a snapshot create, restore or delete
func (m *Metrics) RecordSnapshotOperation(operation string, success bool) {
	m.snapshotOperationsTotal.WithLabelValues(operation, statusLabel(success)).Inc()
}

// RecordAuthRequest records an authentication request
func (m *Metrics) RecordAuthRequest(success bool) {
	m.authRequestsTotal.WithLabelValues(statusLabel(success)).Inc()
}

// InstrumentHandler instruments an HTTP handler with metrics
func (m *Metrics) InstrumentHandler(method, endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		gauge := m.httpRequestsInFlight.WithLabelValues(method, endpoint)
		gauge.Inc()
		defer gauge.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		handler(ww, r)

		m.RecordHTTPRequest(method, endpoint, statusOrOK(ww.Status()), time.Since(start))
	}
}

// InstrumentAuthMiddleware instruments the authentication middleware
func (m *Metrics) InstrumentAuthMiddleware(next func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hasAPIKey := r.Header.Get("X-API-Key") != ""

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next(h).ServeHTTP(ww, r)

			if hasAPIKey {
				m.RecordAuthRequest(ww.Status() != http.StatusUnauthorized)
			}
		})
	}
}

// statusOrOK treats an unwritten status as 200, which is what net/http sends.
func statusOrOK(status int) int {
	if status == 0 {
		return http.StatusOK
	}
	return status
}
