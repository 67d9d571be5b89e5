package hub

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics счетчики хаба
type Metrics struct {
	Connections prometheus.Gauge
	Rooms       prometheus.Gauge
	Messages    *prometheus.CounterVec
	Broadcasts  prometheus.Counter
	Deliveries  prometheus.Counter
	JoinDenials prometheus.Counter
	Dropped     prometheus.Counter
}

// NewMetrics registers the hub collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Connections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "packsync", Subsystem: "hub", Name: "connections",
			Help: "Open realtime connections.",
		}),
		Rooms: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "packsync", Subsystem: "hub", Name: "rooms",
			Help: "Lists with at least one joined connection.",
		}),
		Messages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "packsync", Subsystem: "hub", Name: "messages_total",
			Help: "Inbound messages by type.",
		}, []string{"type"}),
		Broadcasts: f.NewCounter(prometheus.CounterOpts{
			Namespace: "packsync", Subsystem: "hub", Name: "broadcasts_total",
			Help: "Room broadcasts.",
		}),
		Deliveries: f.NewCounter(prometheus.CounterOpts{
			Namespace: "packsync", Subsystem: "hub", Name: "deliveries_total",
			Help: "Frames queued to connections by broadcasts.",
		}),
		JoinDenials: f.NewCounter(prometheus.CounterOpts{
			Namespace: "packsync", Subsystem: "hub", Name: "join_denials_total",
			Help: "Rejected join requests.",
		}),
		Dropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: "packsync", Subsystem: "hub", Name: "dropped_connections_total",
			Help: "Connections closed because their send buffer was full.",
		}),
	}
}
