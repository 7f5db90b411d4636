package app

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/pscheid92/roomcast/internal/adapter/metrics"
	"github.com/pscheid92/roomcast/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingStats struct {
	calls atomic.Int32
}

func (c *countingStats) Stats() domain.Stats {
	c.calls.Add(1)
	return domain.Stats{TotalConnections: 3, Rooms: map[string]int{"a": 1, "b": 2}}
}

func TestStatsTicker_RefreshesRoomGauge(t *testing.T) {
	m := metrics.NewConnectionMetrics(prometheus.NewRegistry())
	source := &countingStats{}
	clock := clockwork.NewFakeClock()
	ticker := NewStatsTicker(source, clock, time.Minute, m)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker.Run(ctx)
	}()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer waitCancel()
	require.NoError(t, clock.BlockUntilContext(waitCtx, 1))
	clock.Advance(time.Minute)

	assert.Eventually(t, func() bool { return source.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return testutil.ToFloat64(m.Rooms) == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestStatsTicker_StopsOnCancel(t *testing.T) {
	source := &countingStats{}
	clock := clockwork.NewFakeClock()
	ticker := NewStatsTicker(source, clock, 0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ticker.Run(ctx)

	clock.Advance(time.Hour)
	assert.Zero(t, source.calls.Load())
	assert.Equal(t, defaultReportInterval, ticker.interval)
}
