package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/roomcast/internal/adapter/metrics"
	"github.com/pscheid92/roomcast/internal/domain"
	"github.com/pscheid92/roomcast/internal/platform/correlation"
)

const defaultReportInterval = 15 * time.Second

// StatsSource is satisfied by Service.
type StatsSource interface {
	Stats() domain.Stats
}

// StatsTicker periodically refreshes gauges that are not updated on the hot
// path and logs a one-line summary of the core.
type StatsTicker struct {
	source   StatsSource
	clock    clockwork.Clock
	interval time.Duration
	metrics  *metrics.ConnectionMetrics
}

func NewStatsTicker(source StatsSource, clock clockwork.Clock, interval time.Duration, m *metrics.ConnectionMetrics) *StatsTicker {
	if interval <= 0 {
		interval = defaultReportInterval
	}
	return &StatsTicker{
		source:   source,
		clock:    clock,
		interval: interval,
		metrics:  m,
	}
}

// Run starts the periodic report loop. It blocks until ctx is cancelled.
func (t *StatsTicker) Run(ctx context.Context) {
	ticker := t.clock.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			t.report(ctx)
		}
	}
}

func (t *StatsTicker) report(ctx context.Context) {
	tickCtx := correlation.WithID(ctx, correlation.NewID())
	stats := t.source.Stats()

	t.metrics.RoomsKnown(len(stats.Rooms))
	slog.DebugContext(tickCtx, "Ticker: core stats",
		"connections", stats.TotalConnections,
		"rooms", len(stats.Rooms),
		"heartbeats", stats.Heartbeats,
		"streams", stats.Streams,
		"events_retained", stats.EventsRetained,
		"latest_event_id", stats.LatestEventID,
	)
}
