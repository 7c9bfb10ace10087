package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal     *prometheus.CounterVec
	httpRequestDuration   *prometheus.HistogramVec
	upstreamRequestsTotal *prometheus.CounterVec
	upstreamDuration      *prometheus.HistogramVec
	upstreamRetriesTotal  *prometheus.CounterVec
	backfillsTotal        *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "noteforge_http_requests_total",
				Help: "Total number of HTTP requests handled.",
			},
			[]string{"route", "method", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "noteforge_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method", "status"},
		),
		upstreamRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "noteforge_upstream_requests_total",
				Help: "Total upstream API requests by backend and endpoint.",
			},
			[]string{"backend", "endpoint", "status"},
		),
		upstreamDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "noteforge_upstream_request_duration_seconds",
				Help:    "Upstream request duration in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"backend", "endpoint", "status"},
		),
		upstreamRetriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "noteforge_upstream_retries_total",
				Help: "Inference retries by reason (cold_start, rate_limited, timeout).",
			},
			[]string{"reason"},
		),
		backfillsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "noteforge_notes_backfills_total",
				Help: "Notes fields replaced by local fallback output after the remote stage.",
			},
			[]string{"field"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.upstreamRequestsTotal,
		m.upstreamDuration,
		m.upstreamRetriesTotal,
		m.backfillsTotal,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveHTTP(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	if method == "" {
		method = "UNKNOWN"
	}
	statusLabel := strconv.Itoa(status)
	m.httpRequestsTotal.WithLabelValues(route, method, statusLabel).Inc()
	m.httpRequestDuration.WithLabelValues(route, method, statusLabel).Observe(duration.Seconds())
}

func (m *Metrics) ObserveUpstream(backend string) func(endpoint string, status int, duration time.Duration) {
	return func(endpoint string, status int, duration time.Duration) {
		if m == nil {
			return
		}
		if endpoint == "" {
			endpoint = "unknown"
		}
		statusLabel := strconv.Itoa(status)
		m.upstreamRequestsTotal.WithLabelValues(backend, endpoint, statusLabel).Inc()
		m.upstreamDuration.WithLabelValues(backend, endpoint, statusLabel).Observe(duration.Seconds())
	}
}

func (m *Metrics) IncUpstreamRetry(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	m.upstreamRetriesTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncBackfill(field string) {
	if m == nil {
		return
	}
	if field == "" {
		field = "unknown"
	}
	m.backfillsTotal.WithLabelValues(field).Inc()
}
