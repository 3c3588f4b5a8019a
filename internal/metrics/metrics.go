package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Agent resolution outcomes
const (
	ResolutionFound       = "found"
	ResolutionNotFound    = "not_found"
	ResolutionLookupError = "lookup_error"
	ResolutionUnresolved  = "unresolved"
)

// Chat stream outcomes
const (
	StreamCompleted = "completed"
	StreamCancelled = "cancelled"
	StreamFailed    = "error"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	RateLimitedTotal    prometheus.Counter

	// Agent metrics
	AgentResolutionTotal *prometheus.CounterVec

	// Chat metrics
	ChatStreamsActive  prometheus.Gauge
	ChatStreamsTotal   *prometheus.CounterVec
	ChatChunksTotal    prometheus.Counter
	ChatStreamDuration prometheus.Histogram
	ThreadsCreated     prometheus.Counter
}

// NewMetrics creates and registers all metrics
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		// HTTP metrics
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"route", "method", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		RateLimitedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "http_rate_limited_total",
				Help: "Total number of requests rejected by the rate limiter",
			},
		),

		// Agent metrics
		AgentResolutionTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_resolution_total",
				Help: "Agent resolution attempts by method and outcome",
			},
			[]string{"method", "outcome"},
		),

		// Chat metrics
		ChatStreamsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "chat_streams_active",
				Help: "Number of chat streams currently open",
			},
		),
		ChatStreamsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chat_streams_total",
				Help: "Total number of chat streams by outcome",
			},
			[]string{"status"},
		),
		ChatChunksTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "chat_chunks_total",
				Help: "Total number of streamed chat chunks",
			},
		),
		ChatStreamDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "chat_stream_duration_seconds",
				Help:    "Duration of chat streams in seconds",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
		),
		ThreadsCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "threads_created_total",
				Help: "Total number of remote threads created",
			},
		),
	}

	m.registerMetrics()

	return m
}

func (m *Metrics) registerMetrics() {
	// HTTP metrics
	m.registry.MustRegister(m.HTTPRequestsTotal)
	m.registry.MustRegister(m.HTTPRequestDuration)
	m.registry.MustRegister(m.RateLimitedTotal)

	// Agent metrics
	m.registry.MustRegister(m.AgentResolutionTotal)

	// Chat metrics
	m.registry.MustRegister(m.ChatStreamsActive)
	m.registry.MustRegister(m.ChatStreamsTotal)
	m.registry.MustRegister(m.ChatChunksTotal)
	m.registry.MustRegister(m.ChatStreamDuration)
	m.registry.MustRegister(m.ThreadsCreated)
}

// RecordResolution counts one agent resolution step. Safe on nil.
func (m *Metrics) RecordResolution(method, outcome string) {
	if m == nil {
		return
	}
	m.AgentResolutionTotal.WithLabelValues(method, outcome).Inc()
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
