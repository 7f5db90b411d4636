package metrics

import "github.com/prometheus/client_golang/prometheus"

// StreamMetrics holds Prometheus metrics for streaming sessions and feeds.
// A nil *StreamMetrics is valid and records nothing.
type StreamMetrics struct {
	Active     *prometheus.GaugeVec
	Replayed   prometheus.Counter
	Yielded    *prometheus.CounterVec
	KeepAlives prometheus.Counter
}

// NewStreamMetrics creates and registers stream metrics on the given registry.
func NewStreamMetrics(reg prometheus.Registerer) *StreamMetrics {
	m := &StreamMetrics{
		Active: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "active",
			Help:      "Number of open streams, by kind.",
		}, []string{"kind"}),
		Replayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "replayed_events_total",
			Help:      "Total events replayed to resuming clients.",
		}),
		Yielded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "yielded_events_total",
			Help:      "Total events yielded to stream consumers, by kind.",
		}, []string{"kind"}),
		KeepAlives: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "keepalives_total",
			Help:      "Total keep-alive frames yielded.",
		}),
	}

	reg.MustRegister(m.Active, m.Replayed, m.Yielded, m.KeepAlives)
	return m
}

func (m *StreamMetrics) Opened(kind string) {
	if m == nil {
		return
	}
	m.Active.WithLabelValues(kind).Inc()
}

func (m *StreamMetrics) Closed(kind string) {
	if m == nil {
		return
	}
	m.Active.WithLabelValues(kind).Dec()
}

func (m *StreamMetrics) Replay(n int) {
	if m == nil {
		return
	}
	m.Replayed.Add(float64(n))
}

func (m *StreamMetrics) Yield(kind string) {
	if m == nil {
		return
	}
	m.Yielded.WithLabelValues(kind).Inc()
}

func (m *StreamMetrics) KeepAlive() {
	if m == nil {
		return
	}
	m.KeepAlives.Inc()
}
