package broadcast

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/roomcast/internal/adapter/metrics"
	"github.com/pscheid92/roomcast/internal/domain"
)

const defaultHeartbeatInterval = 30 * time.Second

// Sender delivers a personal message to one connection.
type Sender interface {
	SendTo(ctx context.Context, id uuid.UUID, msg []byte) error
}

// Evicter drops a connection whose transport has failed.
type Evicter interface {
	Evict(id uuid.UUID) bool
}

// Heartbeats supervises one heartbeat task per connection. A task lives exactly as long as the
// connection's context and stops at the first failed delivery.
type Heartbeats struct {
	sender   Sender
	evicter  Evicter
	clock    clockwork.Clock
	interval time.Duration
	message  func(now time.Time) []byte
	metrics  *metrics.ConnectionMetrics

	mu    sync.Mutex
	tasks map[uuid.UUID]chan struct{}
	wg    sync.WaitGroup
}

type HeartbeatOption func(*Heartbeats)

func WithInterval(d time.Duration) HeartbeatOption {
	return func(h *Heartbeats) {
		if d > 0 {
			h.interval = d
		}
	}
}

func WithHeartbeatMetrics(m *metrics.ConnectionMetrics) HeartbeatOption {
	return func(h *Heartbeats) { h.metrics = m }
}

// NewHeartbeats creates a supervisor. message builds the payload sent on every beat.
func NewHeartbeats(sender Sender, evicter Evicter, clock clockwork.Clock, message func(now time.Time) []byte, opts ...HeartbeatOption) *Heartbeats {
	h := &Heartbeats{
		sender:   sender,
		evicter:  evicter,
		clock:    clock,
		interval: defaultHeartbeatInterval,
		message:  message,
		tasks:    make(map[uuid.UUID]chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Start launches the heartbeat task for conn. It returns false when a task
// for the same id is already running or the connection is already closed.
func (h *Heartbeats) Start(conn domain.Connection) bool {
	if conn.State() == domain.ConnectionClosed {
		return false
	}

	h.mu.Lock()
	if _, running := h.tasks[conn.ID]; running {
		h.mu.Unlock()
		return false
	}
	done := make(chan struct{})
	h.tasks[conn.ID] = done
	h.wg.Add(1)
	h.mu.Unlock()

	h.metrics.HeartbeatStarted()
	go h.run(conn, done)
	return true
}

func (h *Heartbeats) run(conn domain.Connection, done chan struct{}) {
	defer func() {
		h.mu.Lock()
		delete(h.tasks, conn.ID)
		h.mu.Unlock()
		close(done)
		h.metrics.HeartbeatStopped()
		h.wg.Done()
	}()

	ctx := conn.Context()
	ticker := h.clock.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
		}

		// The tick and the cancellation can race; cancellation wins.
		if ctx.Err() != nil {
			return
		}

		if err := h.sender.SendTo(ctx, conn.ID, h.message(h.clock.Now())); err != nil {
			slog.Info("Heartbeat failed, dropping connection", "connection_id", conn.ID.String(), "error", err)
			h.evicter.Evict(conn.ID)
			return
		}
	}
}

// Done returns a channel closed when the task for id has exited. It
// returns nil when no task is running for id.
func (h *Heartbeats) Done(id uuid.UUID) <-chan struct{} {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.tasks[id]
}

// Running reports the number of live heartbeat tasks.
func (h *Heartbeats) Running() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.tasks)
}

// Wait blocks until every heartbeat task has exited.
func (h *Heartbeats) Wait() {
	h.wg.Wait()
}
