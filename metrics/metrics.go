// Package metrics exposes the server's Prometheus instrumentation.
// Each Metrics value carries its own registry, so multiple servers can
// coexist in one process (and in one test binary) without colliding.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the chat server's instruments.
type Metrics struct {
	registry *prometheus.Registry

	// Requests counts handled frames by opcode name.
	Requests *prometheus.CounterVec
	// QueueDepth tracks pending tasks on the serial queue.
	QueueDepth prometheus.Gauge
	// RelayMerges counts bundles merged from the relay.
	RelayMerges prometheus.Counter
	// RelaySkips counts bundles rejected during merge.
	RelaySkips prometheus.Counter
	// RelayPushFailures counts bundles that could not be pushed.
	RelayPushFailures prometheus.Counter
}

// New creates a Metrics with a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_requests_total",
			Help: "Handled request frames by opcode.",
		}, []string{"opcode"}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "chat_queue_depth",
			Help: "Tasks pending on the serial queue.",
		}),
		RelayMerges: factory.NewCounter(prometheus.CounterOpts{
			Name: "chat_relay_merges_total",
			Help: "Relay bundles merged into the local model.",
		}),
		RelaySkips: factory.NewCounter(prometheus.CounterOpts{
			Name: "chat_relay_skips_total",
			Help: "Relay bundles skipped during merge.",
		}),
		RelayPushFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "chat_relay_push_failures_total",
			Help: "Relay pushes that failed or were rejected.",
		}),
	}
}

// Registry returns the backing registry, for the HTTP exposition
// handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
