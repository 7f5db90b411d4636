package metrics

import "github.com/prometheus/client_golang/prometheus"

// Delivery outcomes.
const (
	OutcomeDelivered = "delivered"
	OutcomeDead      = "dead"
)

// BroadcastMetrics holds Prometheus metrics for message fan-out.
// A nil *BroadcastMetrics is valid and records nothing.
type BroadcastMetrics struct {
	Deliveries *prometheus.CounterVec
	FanOut     *prometheus.HistogramVec
	Duration   *prometheus.HistogramVec
}

// NewBroadcastMetrics creates and registers broadcast metrics on the given registry.
func NewBroadcastMetrics(reg prometheus.Registerer) *BroadcastMetrics {
	m := &BroadcastMetrics{
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "deliveries_total",
			Help:      "Total delivery attempts, by scope and outcome.",
		}, []string{"scope", "outcome"}),
		FanOut: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "fanout_targets",
			Help:      "Number of targets attempted per broadcast pass.",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100, 250, 1000},
		}, []string{"scope"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "pass_duration_seconds",
			Help:      "Duration of a broadcast pass in seconds.",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25},
		}, []string{"scope"}),
	}

	reg.MustRegister(m.Deliveries, m.FanOut, m.Duration)
	return m
}

func (m *BroadcastMetrics) Delivery(scope, outcome string) {
	if m == nil {
		return
	}
	m.Deliveries.WithLabelValues(scope, outcome).Inc()
}

func (m *BroadcastMetrics) Pass(scope string, targets int, seconds float64) {
	if m == nil {
		return
	}
	m.FanOut.WithLabelValues(scope).Observe(float64(targets))
	m.Duration.WithLabelValues(scope).Observe(seconds)
}
