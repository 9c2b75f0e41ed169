package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Config configures the relay collectors.
type Config struct {
	// Namespace is the metrics namespace (default: "relay").
	Namespace string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Registry is the Prometheus registry to use.
	// Default: a fresh registry, so independent servers never collide.
	Registry prometheus.Registerer
}

type Option func(*Config)

func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

// Relay holds the collectors updated by the reactor. All methods are safe to call from the
// event loop while the admin endpoint scrapes.
type Relay struct {
	active         prometheus.Gauge
	accepted       prometheus.Counter
	rejected       prometheus.Counter
	removed        *prometheus.CounterVec
	framesReceived prometheus.Counter
	framesEnqueued prometheus.Counter
	bytesReceived  prometheus.Counter
}

func New(opts ...Option) *Relay {
	config := Config{Namespace: "relay"}
	for _, opt := range opts {
		opt(&config)
	}
	if config.Registry == nil {
		config.Registry = prometheus.NewRegistry()
	}
	factory := promauto.With(config.Registry)

	return &Relay{
		active: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Name:        "connections_active",
			Help:        "Number of live client connections",
			ConstLabels: config.ConstLabels,
		}),
		accepted: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "connections_accepted_total",
			Help:        "Total number of accepted client connections",
			ConstLabels: config.ConstLabels,
		}),
		rejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "connections_rejected_total",
			Help:        "Total number of sockets dropped because the slot table was full",
			ConstLabels: config.ConstLabels,
		}),
		removed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "connections_removed_total",
			Help:        "Total number of removed connections by reason",
			ConstLabels: config.ConstLabels,
		}, []string{"reason"}),
		framesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "frames_received_total",
			Help:        "Total number of complete frames decoded from clients",
			ConstLabels: config.ConstLabels,
		}),
		framesEnqueued: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "frames_enqueued_total",
			Help:        "Total number of frame deliveries handed to destination connections",
			ConstLabels: config.ConstLabels,
		}),
		bytesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "bytes_received_total",
			Help:        "Total payload bytes of decoded frames",
			ConstLabels: config.ConstLabels,
		}),
	}
}

func (m *Relay) ConnAccepted() {
	m.accepted.Inc()
	m.active.Inc()
}

func (m *Relay) ConnRejected() {
	m.rejected.Inc()
}

func (m *Relay) ConnRemoved(reason string) {
	m.removed.WithLabelValues(reason).Inc()
	m.active.Dec()
}

// FrameReceived records one decoded frame of n payload bytes.
func (m *Relay) FrameReceived(n int) {
	m.framesReceived.Inc()
	m.bytesReceived.Add(float64(n))
}

func (m *Relay) FrameEnqueued() {
	m.framesEnqueued.Inc()
}
