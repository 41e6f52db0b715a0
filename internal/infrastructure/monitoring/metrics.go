// Package monitoring provides Prometheus metrics for the multiplexer.
package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics.
//
// Each Metrics instance owns its own registry so independent server
// instances (and tests) never fight over collector registration.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Session metrics
	SessionsActive    prometheus.Gauge
	SessionsCreated   prometheus.Counter
	SessionsDestroyed prometheus.Counter
	SpawnFailures     prometheus.Counter
	SweepsTotal       prometheus.Counter
	SweepReaped       prometheus.Counter

	// PTY traffic
	PTYBytes *prometheus.CounterVec // direction: input|output

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	startTime time.Time
}

// NewMetrics creates a new metrics collector with its own registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry:  reg,
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shellmux_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shellmux_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		SessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "shellmux_sessions_active",
			Help: "Number of sessions currently registered",
		}),
		SessionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "shellmux_sessions_created_total",
			Help: "Total number of sessions created",
		}),
		SessionsDestroyed: factory.NewCounter(prometheus.CounterOpts{
			Name: "shellmux_sessions_destroyed_total",
			Help: "Total number of sessions destroyed",
		}),
		SpawnFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "shellmux_spawn_failures_total",
			Help: "Total number of backend spawn failures",
		}),
		SweepsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "shellmux_sweeps_total",
			Help: "Total number of sweeper runs",
		}),
		SweepReaped: factory.NewCounter(prometheus.CounterOpts{
			Name: "shellmux_sweep_reaped_total",
			Help: "Total number of sessions reaped by the sweeper",
		}),

		PTYBytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shellmux_pty_bytes_total",
				Help: "Bytes moved through PTYs by direction",
			},
			[]string{"direction"},
		),

		WSConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "shellmux_ws_connections",
			Help: "Number of open WebSocket connections",
		}),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shellmux_ws_messages_total",
				Help: "WebSocket messages by event type",
			},
			[]string{"event"},
		),
	}
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordInput records PTY input traffic.
func (m *Metrics) RecordInput(n int) {
	m.PTYBytes.WithLabelValues("input").Add(float64(n))
}

// RecordOutput records PTY output traffic.
func (m *Metrics) RecordOutput(n int) {
	m.PTYBytes.WithLabelValues("output").Add(float64(n))
}

// Handler returns an HTTP handler serving the Prometheus text exposition.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Uptime reports time since the collector was created.
func (m *Metrics) Uptime() time.Duration {
	return time.Since(m.startTime)
}
