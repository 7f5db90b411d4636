package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSet_RegistersWithoutConflicts(t *testing.T) {
	reg := prometheus.NewRegistry()

	require.NotPanics(t, func() { NewSet(reg) })

	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		assert.Contains(t, f.GetName(), namespace+"_")
	}
}

func TestConnectionMetrics(t *testing.T) {
	m := NewConnectionMetrics(prometheus.NewRegistry())

	m.Registered(1)
	m.Registered(2)
	m.Removed("dead", 1)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Total))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Active))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Unregistered.WithLabelValues("dead")))

	m.HeartbeatStarted()
	m.HeartbeatStarted()
	m.HeartbeatStopped()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HeartbeatsRun))

	m.Rejection("rate_limit")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Rejected.WithLabelValues("rate_limit")))
}

func TestBroadcastMetrics(t *testing.T) {
	m := NewBroadcastMetrics(prometheus.NewRegistry())

	m.Delivery("room", OutcomeDelivered)
	m.Delivery("room", OutcomeDelivered)
	m.Delivery("room", OutcomeDead)
	m.Pass("room", 3, 0.001)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Deliveries.WithLabelValues("room", OutcomeDelivered)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Deliveries.WithLabelValues("room", OutcomeDead)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.FanOut))
}

func TestEventLogMetrics(t *testing.T) {
	m := NewEventLogMetrics(prometheus.NewRegistry())

	m.Append("update", 1, 1, false)
	m.Append("update", 2, 1, true)
	m.Issued(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Appended.WithLabelValues("update")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Evicted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Size))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.LatestID))
}

func TestStreamMetrics(t *testing.T) {
	m := NewStreamMetrics(prometheus.NewRegistry())

	m.Opened("events")
	m.Replay(5)
	m.Yield("events")
	m.KeepAlive()
	m.Closed("events")

	assert.Equal(t, 0.0, testutil.ToFloat64(m.Active.WithLabelValues("events")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.Replayed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.KeepAlives))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var (
		conn   *ConnectionMetrics
		bc     *BroadcastMetrics
		log    *EventLogMetrics
		stream *StreamMetrics
	)

	assert.NotPanics(t, func() {
		conn.Registered(1)
		conn.Removed("closed", 0)
		conn.RoomsKnown(1)
		conn.HeartbeatStarted()
		conn.HeartbeatStopped()
		conn.Rejection("global_limit")
		bc.Delivery("all", OutcomeDead)
		bc.Pass("all", 1, 0)
		log.Append("update", 1, 1, false)
		log.Issued(2)
		stream.Opened("events")
		stream.Replay(1)
		stream.Yield("events")
		stream.KeepAlive()
		stream.Closed("events")
	})
}

func TestSkipHTTPMetrics(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/metrics", true},
		{"/health/live", true},
		{"/ws", true},
		{"/ws/chat/:room", true},
		{"/events", true},
		{"/notifications/:user_id", true},
		{"/stocks", true},
		{"/stats", false},
		{"/version", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, skipHTTPMetrics(tt.path))
		})
	}
}
