// Package metrics provides Prometheus metrics for the relay server.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "relay"
)

// Metrics contains all Prometheus metrics for the relay.
type Metrics struct {
	// Connection metrics
	ConnectionsActive prometheus.Gauge
	ConnectionsTotal  prometheus.Counter
	PlayersOnline     prometheus.Gauge
	LoginsTotal       *prometheus.CounterVec

	// Packet metrics
	PacketsReceived *prometheus.CounterVec
	PacketsSent     prometheus.Counter
	PacketErrors    *prometheus.CounterVec
	DatagramsDropped *prometheus.CounterVec

	// Voice metrics
	VoiceRelayed prometheus.Counter
	VoiceBytes   prometheus.Counter
	VoiceDropped *prometheus.CounterVec
}

var (
	defaultMetrics *Metrics
	metricsOnce    sync.Once
)

// Default returns the default metrics instance.
func Default() *Metrics {
	metricsOnce.Do(func() {
		defaultMetrics = NewMetrics()
	})
	return defaultMetrics
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry creates a new Metrics instance with a custom registry.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ConnectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Number of live connection actors",
		}),
		ConnectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Total number of connection actors created",
		}),
		PlayersOnline: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "players_online",
			Help:      "Number of authenticated players",
		}),
		LoginsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Total login attempts by result",
		}, []string{"result"}),

		PacketsReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_received_total",
			Help:      "Total packets decoded by packet type",
		}, []string{"type"}),
		PacketsSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_sent_total",
			Help:      "Total packets sent to peers",
		}),
		PacketErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packet_errors_total",
			Help:      "Total packet processing errors by kind",
		}, []string{"kind"}),
		DatagramsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datagrams_dropped_total",
			Help:      "Total inbound datagrams dropped before dispatch by reason",
		}, []string{"reason"}),

		VoiceRelayed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "voice_relayed_total",
			Help:      "Total voice packets relayed to the broadcast fan-out",
		}),
		VoiceBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "voice_bytes_total",
			Help:      "Total voice payload bytes relayed",
		}),
		VoiceDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "voice_dropped_total",
			Help:      "Total voice packets dropped by reason",
		}, []string{"reason"}),
	}
}
