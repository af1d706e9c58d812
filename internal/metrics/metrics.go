// Package metrics exposes prometheus instrumentation for the service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Consumer message results, used as the "result" label on Messages.
const (
	ResultProcessed     = "processed"
	ResultDecodeError   = "decode_error"
	ResultDeliveryError = "delivery_error"
)

// Metrics holds the service's prometheus collectors on a private
// registry.
type Metrics struct {
	registry *prometheus.Registry

	// AggregateLatency observes the time spent merging one event's
	// whole label batch into the store.
	AggregateLatency prometheus.Summary

	// Messages counts consumed messages by result.
	Messages *prometheus.CounterVec
}

// New creates and registers the service metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		AggregateLatency: prometheus.NewSummary(prometheus.SummaryOpts{
			Name: "labels_aggregator_latency_seconds",
			Help: "Time spent processing labels aggregator",
		}),
		Messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "consumer_messages_total",
			Help: "Messages handled by the queue consumer, by result",
		}, []string{"result"}),
	}

	reg.MustRegister(
		m.AggregateLatency,
		m.Messages,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
