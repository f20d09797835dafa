// ABOUTME: Prometheus instrumentation for the gateway
// ABOUTME: Connection gauge, sampler counter, and service transition counters

package gateway

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the gateway's Prometheus collectors on a private registry so
// tests can instantiate it repeatedly without duplicate registration panics.
type Metrics struct {
	registry *prometheus.Registry

	ActiveConnections  prometheus.GaugeFunc
	SamplesWritten     prometheus.Counter
	ServiceTransitions *prometheus.CounterVec
	MessagesReceived   prometheus.Counter
}

// NewMetrics builds and registers the gateway collectors. countFn feeds the
// live connection gauge.
func NewMetrics(countFn func() int) *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.ActiveConnections = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "relay_active_connections",
		Help: "Number of live websocket connections.",
	}, func() float64 { return float64(countFn()) })

	m.SamplesWritten = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_history_samples_written_total",
		Help: "Connection history samples persisted by the sampler.",
	})

	m.ServiceTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_service_transitions_total",
		Help: "Successful service lifecycle transitions.",
	}, []string{"service", "op"})

	m.MessagesReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_ws_messages_received_total",
		Help: "Websocket messages received from clients.",
	})

	m.registry.MustRegister(
		m.ActiveConnections,
		m.SamplesWritten,
		m.ServiceTransitions,
		m.MessagesReceived,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
