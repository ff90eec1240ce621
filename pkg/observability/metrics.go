package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Authorization decision metrics
	AuthzAllowedTotal *prometheus.CounterVec
	AuthzDeniedTotal  *prometheus.CounterVec

	// Remote authority metrics
	RemoteCheckDuration    *prometheus.HistogramVec
	RemoteCheckErrorsTotal prometheus.Counter

	// Registration metrics
	RegistrationAttemptsTotal *prometheus.CounterVec
	RegistrationStatus        *prometheus.GaugeVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "warden_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		AuthzAllowedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_authz_allowed_total",
				Help: "Authorization checks that allowed the request, by permission",
			},
			[]string{"permission"},
		),
		AuthzDeniedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_authz_denied_total",
				Help: "Authorization checks that denied the request, by permission and reason",
			},
			[]string{"permission", "reason"},
		),
		RemoteCheckDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "warden_remote_check_duration_seconds",
				Help: "Duration of live permission checks against the authority",
				// Authority SLA is sub-10ms warm, sub-50ms cold.
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"outcome"},
		),
		RemoteCheckErrorsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "warden_remote_check_errors_total",
				Help: "Live permission checks that failed at the transport level",
			},
		),
		RegistrationAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_registration_attempts_total",
				Help: "Catalog registration attempts against the authority, by outcome",
			},
			[]string{"outcome"},
		),
		RegistrationStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "warden_registration_status",
				Help: "Current registration status (1 for the active status, 0 otherwise)",
			},
			[]string{"status"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AuthzAllowedTotal,
		m.AuthzDeniedTotal,
		m.RemoteCheckDuration,
		m.RemoteCheckErrorsTotal,
		m.RegistrationAttemptsTotal,
		m.RegistrationStatus,
	)

	return m
}

// SetRegistrationStatus flips the status gauge so exactly one status label
// reads 1.
func (m *Metrics) SetRegistrationStatus(current string, all []string) {
	for _, status := range all {
		v := 0.0
		if status == current {
			v = 1.0
		}
		m.RegistrationStatus.WithLabelValues(status).Set(v)
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
