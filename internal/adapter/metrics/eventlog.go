package metrics

import "github.com/prometheus/client_golang/prometheus"

// EventLogMetrics holds Prometheus metrics for the bounded event log.
// A nil *EventLogMetrics is valid and records nothing.
type EventLogMetrics struct {
	Appended *prometheus.CounterVec
	Evicted  prometheus.Counter
	Size     prometheus.Gauge
	LatestID prometheus.Gauge
}

// NewEventLogMetrics creates and registers event log metrics on the given registry.
func NewEventLogMetrics(reg prometheus.Registerer) *EventLogMetrics {
	m := &EventLogMetrics{
		Appended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "eventlog",
			Name:      "appended_total",
			Help:      "Total events appended, by event type.",
		}, []string{"type"}),
		Evicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "eventlog",
			Name:      "evicted_total",
			Help:      "Total events evicted by capacity.",
		}),
		Size: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "eventlog",
			Name:      "size",
			Help:      "Number of events currently retained.",
		}),
		LatestID: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "eventlog",
			Name:      "latest_id",
			Help:      "Highest event id issued.",
		}),
	}

	reg.MustRegister(m.Appended, m.Evicted, m.Size, m.LatestID)
	return m
}

func (m *EventLogMetrics) Append(eventType string, id int64, size int, evicted bool) {
	if m == nil {
		return
	}
	m.Appended.WithLabelValues(eventType).Inc()
	if evicted {
		m.Evicted.Inc()
	}
	m.Size.Set(float64(size))
	m.LatestID.Set(float64(id))
}

func (m *EventLogMetrics) Issued(id int64) {
	if m == nil {
		return
	}
	m.LatestID.Set(float64(id))
}
