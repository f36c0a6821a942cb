package prometheus

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles prometheus collectors used by the bot.
// Implements port.MetricsRecorder.
type Metrics struct {
	RequestsTotal      *prometheus.CounterVec
	RequestDurationSec *prometheus.HistogramVec
	EventsTotal        *prometheus.CounterVec
	UpstreamRequests   *prometheus.CounterVec
	PanelRefreshes     prometheus.Counter
	AuthFailures       prometheus.Counter
	RateLimitDropped   prometheus.Counter
}

func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "buildbot_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"route", "method", "status"}),
		RequestDurationSec: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "buildbot_request_duration_seconds",
			Help:    "Request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
		EventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "buildbot_build_events_total",
			Help: "Build completion events by classification and outcome.",
		}, []string{"kind", "outcome"}),
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "buildbot_upstream_requests_total",
			Help: "Requests to external collaborators by service and result.",
		}, []string{"service", "method", "result"}),
		PanelRefreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "buildbot_panel_refreshes_total",
			Help: "Total number of status panel publications.",
		}),
		AuthFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "buildbot_auth_failures_total",
			Help: "Total number of webhook signature verification failures.",
		}),
		RateLimitDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "buildbot_ratelimit_dropped_total",
			Help: "Total number of requests dropped by rate limiter.",
		}),
	}

	registry.MustRegister(
		m.RequestsTotal,
		m.RequestDurationSec,
		m.EventsTotal,
		m.UpstreamRequests,
		m.PanelRefreshes,
		m.AuthFailures,
		m.RateLimitDropped,
	)

	return m
}

// RecordEvent реализация port.MetricsRecorder
func (m *Metrics) RecordEvent(kind, outcome string) {
	m.EventsTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordUpstreamRequest реализация port.MetricsRecorder
func (m *Metrics) RecordUpstreamRequest(service, method string, success bool) {
	result := "ok"
	if !success {
		result = "error"
	}
	m.UpstreamRequests.WithLabelValues(service, method, result).Inc()
}

// RecordPanelRefresh реализация port.MetricsRecorder
func (m *Metrics) RecordPanelRefresh() {
	m.PanelRefreshes.Inc()
}

func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startedAt := time.Now()
		wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		status := strconv.Itoa(wrapped.statusCode)
		m.RequestsTotal.WithLabelValues(r.URL.Path, r.Method, status).Inc()
		m.RequestDurationSec.WithLabelValues(r.URL.Path, r.Method, status).Observe(time.Since(startedAt).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

// Hijack passes websocket upgrades through wrapped ResponseWriter.
func (rw *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hijacker.Hijack()
}
