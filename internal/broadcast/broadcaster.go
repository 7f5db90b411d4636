package broadcast

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/roomcast/internal/adapter/metrics"
	"github.com/pscheid92/roomcast/internal/domain"
	"github.com/pscheid92/roomcast/internal/registry"
)

const (
	defaultSendTimeout = 5 * time.Second

	scopeDirect = "direct"
	scopeAll    = "all"
	scopeRoom   = "room"
)

// NoExclusion broadcasts to every target, including the sender.
var NoExclusion = uuid.Nil

// Result summarises one broadcast pass.
type Result struct {
	Attempted int
	Delivered int
	Dead      []uuid.UUID
}

// Broadcaster fans messages out over registry and room snapshots.
type Broadcaster struct {
	registry    *registry.Registry
	rooms       *registry.Rooms
	clock       clockwork.Clock
	sendTimeout time.Duration
	metrics     *metrics.BroadcastMetrics
}

type Option func(*Broadcaster)

func WithSendTimeout(d time.Duration) Option {
	return func(b *Broadcaster) { b.sendTimeout = d }
}

func WithMetrics(m *metrics.BroadcastMetrics) Option {
	return func(b *Broadcaster) { b.metrics = m }
}

// NewBroadcaster creates a broadcaster over reg and its room index.
func NewBroadcaster(reg *registry.Registry, clock clockwork.Clock, opts ...Option) *Broadcaster {
	b := &Broadcaster{
		registry:    reg,
		rooms:       reg.Rooms(),
		clock:       clock,
		sendTimeout: defaultSendTimeout,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SendTo attempts one delivery to id. An absent id or a failed transport is
// reported as domain.ErrConnectionDead; cleanup is left to the caller.
func (b *Broadcaster) SendTo(ctx context.Context, id uuid.UUID, msg []byte) error {
	transport, ok := b.registry.Get(id)
	if !ok {
		b.metrics.Delivery(scopeDirect, metrics.OutcomeDead)
		return fmt.Errorf("send to %s: %w", id, domain.ErrConnectionDead)
	}

	if err := b.deliver(ctx, transport, msg); err != nil {
		b.metrics.Delivery(scopeDirect, metrics.OutcomeDead)
		return fmt.Errorf("send to %s: %w: %w", id, domain.ErrConnectionDead, err)
	}

	b.metrics.Delivery(scopeDirect, metrics.OutcomeDelivered)
	return nil
}

// BroadcastAll delivers msg to every connection registered when the pass
// starts, skipping exclude. Pass NoExclusion to include the sender.
func (b *Broadcaster) BroadcastAll(ctx context.Context, msg []byte, exclude uuid.UUID) Result {
	start := b.clock.Now()
	var res Result

	for _, entry := range b.registry.Snapshot() {
		if entry.ID == exclude {
			continue
		}
		res.Attempted++
		if err := b.deliver(ctx, entry.Transport, msg); err != nil {
			slog.Debug("Broadcast delivery failed", "connection_id", entry.ID.String(), "error", err)
			b.metrics.Delivery(scopeAll, metrics.OutcomeDead)
			res.Dead = append(res.Dead, entry.ID)
			continue
		}
		b.metrics.Delivery(scopeAll, metrics.OutcomeDelivered)
		res.Delivered++
	}

	b.reap(res.Dead, "")
	b.metrics.Pass(scopeAll, res.Attempted, b.clock.Since(start).Seconds())
	return res
}

// BroadcastRoom delivers msg to every member of room at the time the pass
// starts, skipping exclude. Dead members are evicted and removed from room.
func (b *Broadcaster) BroadcastRoom(ctx context.Context, room string, msg []byte, exclude uuid.UUID) Result {
	start := b.clock.Now()
	var res Result

	for _, id := range b.rooms.SnapshotMembers(room) {
		if id == exclude {
			continue
		}
		transport, ok := b.registry.Get(id)
		if !ok {
			b.metrics.Delivery(scopeRoom, metrics.OutcomeDead)
			res.Dead = append(res.Dead, id)
			continue
		}
		res.Attempted++
		if err := b.deliver(ctx, transport, msg); err != nil {
			slog.Debug("Room delivery failed", "connection_id", id.String(), "room", room, "error", err)
			b.metrics.Delivery(scopeRoom, metrics.OutcomeDead)
			res.Dead = append(res.Dead, id)
			continue
		}
		b.metrics.Delivery(scopeRoom, metrics.OutcomeDelivered)
		res.Delivered++
	}

	b.reap(res.Dead, room)
	b.metrics.Pass(scopeRoom, res.Attempted, b.clock.Since(start).Seconds())
	return res
}

func (b *Broadcaster) deliver(ctx context.Context, transport domain.Transport, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, b.sendTimeout)
	defer cancel()
	return transport.Send(ctx, msg)
}

// reap runs after a pass completes. Snapshot ids are unique, so each dead
// id is evicted exactly once per pass.
func (b *Broadcaster) reap(dead []uuid.UUID, room string) {
	for _, id := range dead {
		if room != "" {
			b.rooms.Leave(id, room)
		}
		if b.registry.Evict(id) {
			slog.Info("Evicted dead connection", "connection_id", id.String(), "room", room)
		}
	}
}
