package metrics

import "github.com/prometheus/client_golang/prometheus"

// ConnectionMetrics holds Prometheus metrics for the connection registry and room index.
// A nil *ConnectionMetrics is valid and records nothing.
type ConnectionMetrics struct {
	Active        prometheus.Gauge
	Total         prometheus.Counter
	Unregistered  *prometheus.CounterVec
	Rooms         prometheus.Gauge
	HeartbeatsRun prometheus.Gauge
	Rejected      *prometheus.CounterVec
}

// NewConnectionMetrics creates and registers connection metrics on the given registry.
func NewConnectionMetrics(reg prometheus.Registerer) *ConnectionMetrics {
	m := &ConnectionMetrics{
		Active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "connections",
			Name:      "active",
			Help:      "Number of registered connections.",
		}),
		Total: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connections",
			Name:      "registered_total",
			Help:      "Total number of connections registered since start.",
		}),
		Unregistered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connections",
			Name:      "unregistered_total",
			Help:      "Total number of connections unregistered, by reason.",
		}, []string{"reason"}),
		Rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "rooms",
			Name:      "known",
			Help:      "Number of rooms ever joined, including empty ones.",
		}),
		HeartbeatsRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "heartbeat",
			Name:      "tasks_running",
			Help:      "Number of running per-connection heartbeat tasks.",
		}),
		Rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connections",
			Name:      "rejected_total",
			Help:      "Total websocket upgrades refused by connection limits, by reason.",
		}, []string{"reason"}),
	}

	reg.MustRegister(m.Active, m.Total, m.Unregistered, m.Rooms, m.HeartbeatsRun, m.Rejected)
	return m
}

func (m *ConnectionMetrics) Registered(active int) {
	if m == nil {
		return
	}
	m.Total.Inc()
	m.Active.Set(float64(active))
}

func (m *ConnectionMetrics) Removed(reason string, active int) {
	if m == nil {
		return
	}
	m.Unregistered.WithLabelValues(reason).Inc()
	m.Active.Set(float64(active))
}

func (m *ConnectionMetrics) RoomsKnown(n int) {
	if m == nil {
		return
	}
	m.Rooms.Set(float64(n))
}

func (m *ConnectionMetrics) HeartbeatStarted() {
	if m == nil {
		return
	}
	m.HeartbeatsRun.Inc()
}

func (m *ConnectionMetrics) HeartbeatStopped() {
	if m == nil {
		return
	}
	m.HeartbeatsRun.Dec()
}

func (m *ConnectionMetrics) Rejection(reason string) {
	if m == nil {
		return
	}
	m.Rejected.WithLabelValues(reason).Inc()
}
