package loadtest

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes live run metrics in Prometheus format. Each run gets its
// own registry so runs and tests do not share collectors.
type Metrics struct {
	requests    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	activeUsers prometheus.Gauge
	registry    *prometheus.Registry
}

// NewMetrics creates and registers the run metrics
func NewMetrics() *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loadtest_requests_total",
				Help: "Total number of requests issued by virtual users",
			},
			[]string{"endpoint", "method", "status", "outcome"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "loadtest_request_duration_seconds",
				Help:    "Request latency in seconds",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 14), // 5ms to ~41s
			},
			[]string{"endpoint", "method"},
		),
		activeUsers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "loadtest_active_users",
				Help: "Number of virtual users currently running",
			},
		),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(m.requests)
	m.registry.MustRegister(m.latency)
	m.registry.MustRegister(m.activeUsers)
	return m
}

// Observe implements Observer
func (m *Metrics) Observe(result RequestResult) {
	outcome := "success"
	switch {
	case result.IsTransportFailure():
		outcome = "transport_error"
	case !result.Success:
		outcome = "http_error"
	}

	m.requests.WithLabelValues(result.Endpoint, string(result.Method), strconv.Itoa(result.StatusCode), outcome).Inc()
	m.latency.WithLabelValues(result.Endpoint, string(result.Method)).Observe(result.Latency.Seconds())
}

// UserStarted increments the active users gauge
func (m *Metrics) UserStarted() {
	m.activeUsers.Inc()
}

// UserFinished decrements the active users gauge
func (m *Metrics) UserFinished() {
	m.activeUsers.Dec()
}

// Registry returns the registry the metrics are registered with
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler serving the metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
