package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "userapi"

// Result labels for the auth counters.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultError   = "error"
)

// Metrics holds all application metrics
type Metrics struct {
	gatherer prometheus.Gatherer

	requestCount    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	logins        *prometheus.CounterVec
	refreshes     *prometheus.CounterVec
	logouts       *prometheus.CounterVec
	revokedTokens prometheus.Counter
	sweptTokens   prometheus.Counter
}

// New registers the application collectors on reg. A fresh registry keeps
// tests independent from the process-wide default.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		gatherer: reg,
		requestCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"method", "route"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_logins_total",
			Help:      "Login attempts by result.",
		}, []string{"result"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_refreshes_total",
			Help:      "Access token refreshes by result.",
		}, []string{"result"}),
		logouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_logouts_total",
			Help:      "Logouts by result.",
		}, []string{"result"}),
		revokedTokens: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_revoked_refresh_records_total",
			Help:      "Refresh token records removed by logout or bulk revocation.",
		}),
		sweptTokens: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_swept_refresh_records_total",
			Help:      "Expired refresh token records purged by the sweeper.",
		}),
	}

	reg.MustRegister(
		m.requestCount,
		m.requestDuration,
		m.logins,
		m.refreshes,
		m.logouts,
		m.revokedTokens,
		m.sweptTokens,
	)
	return m
}

// ObserveLogin counts a login attempt.
func (m *Metrics) ObserveLogin(result string) {
	m.logins.WithLabelValues(result).Inc()
}

// ObserveRefresh counts a refresh attempt.
func (m *Metrics) ObserveRefresh(result string) {
	m.refreshes.WithLabelValues(result).Inc()
}

// ObserveLogout counts a logout attempt.
func (m *Metrics) ObserveLogout(result string) {
	m.logouts.WithLabelValues(result).Inc()
}

// AddRevoked counts refresh records removed from the token store.
func (m *Metrics) AddRevoked(n int64) {
	if n > 0 {
		m.revokedTokens.Add(float64(n))
	}
}

// AddSwept counts expired refresh records purged in the background.
func (m *Metrics) AddSwept(n int64) {
	if n > 0 {
		m.sweptTokens.Add(float64(n))
	}
}

// RecordRequest records a request
func (m *Metrics) RecordRequest(method, route string, statusCode int, duration time.Duration) {
	m.requestCount.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Middleware records request metrics. It must wrap the ServeMux directly so
// the matched route pattern is visible after the request is served.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &statusResponseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapped, r)

		route := routeLabel(r.Pattern)
		if route == "" {
			route = normalizeEndpoint(r.URL.Path)
		}
		m.RecordRequest(r.Method, route, wrapped.statusCode, time.Since(start))
	})
}

// routeLabel strips the method prefix from a ServeMux pattern.
func routeLabel(pattern string) string {
	if _, path, ok := strings.Cut(pattern, " "); ok {
		return path
	}
	return pattern
}

// normalizeEndpoint normalizes an endpoint path for metrics (removes IDs)
func normalizeEndpoint(path string) string {
	parts := strings.Split(path, "/")
	for i, part := range parts {
		switch {
		case len(part) == 36 && strings.Count(part, "-") == 4:
			parts[i] = "{id}"
		case len(part) == 24 && isHex(part):
			parts[i] = "{id}"
		case len(part) > 0 && isNumeric(part):
			parts[i] = "{id}"
		}
	}
	return strings.Join(parts, "/")
}

func isNumeric(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func isHex(s string) bool {
	for _, c := range s {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F') {
			return false
		}
	}
	return true
}

type statusResponseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (w *statusResponseWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.statusCode = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}
