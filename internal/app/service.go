package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"maps"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/roomcast/internal/adapter/metrics"
	"github.com/pscheid92/roomcast/internal/broadcast"
	"github.com/pscheid92/roomcast/internal/domain"
	"github.com/pscheid92/roomcast/internal/eventlog"
	"github.com/pscheid92/roomcast/internal/registry"
	"github.com/pscheid92/roomcast/internal/stream"
	"golang.org/x/sync/singleflight"
)

// Config holds the timing knobs of the core.
type Config struct {
	HeartbeatInterval    time.Duration
	StreamInterval       time.Duration
	KeepAliveEvery       int
	NotificationInterval time.Duration
	StockInterval        time.Duration
	SendTimeout          time.Duration
}

// Service is the only component that references every part of the core.
type Service struct {
	registry    *registry.Registry
	rooms       *registry.Rooms
	broadcaster *broadcast.Broadcaster
	heartbeats  *broadcast.Heartbeats
	log         *eventlog.Log
	clock       clockwork.Clock
	cfg         Config
	metrics     *metrics.Set

	statsGroup singleflight.Group
	streams    atomic.Int64
	closed     atomic.Bool
}

var errShutDown = errors.New("core is shut down")

type Option func(*Service)

// WithMetrics records stream metrics. Registry, broadcaster and event log
// metrics are attached where those components are constructed.
func WithMetrics(m *metrics.Set) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService wires the broadcaster and heartbeat supervisor around reg and log.
func NewService(reg *registry.Registry, log *eventlog.Log, clock clockwork.Clock, cfg Config, opts ...Option) *Service {
	s := &Service{
		registry: reg,
		rooms:    reg.Rooms(),
		log:      log,
		clock:    clock,
		cfg:      cfg,
	}
	for _, opt := range opts {
		opt(s)
	}

	var broadcastOpts []broadcast.Option
	var heartbeatOpts []broadcast.HeartbeatOption
	if cfg.SendTimeout > 0 {
		broadcastOpts = append(broadcastOpts, broadcast.WithSendTimeout(cfg.SendTimeout))
	}
	heartbeatOpts = append(heartbeatOpts, broadcast.WithInterval(cfg.HeartbeatInterval))
	if s.metrics != nil {
		broadcastOpts = append(broadcastOpts, broadcast.WithMetrics(s.metrics.Broadcast))
		heartbeatOpts = append(heartbeatOpts, broadcast.WithHeartbeatMetrics(s.metrics.Connections))
	}

	s.broadcaster = broadcast.NewBroadcaster(reg, clock, broadcastOpts...)
	s.heartbeats = broadcast.NewHeartbeats(s.broadcaster, reg, clock, s.heartbeatMessage, heartbeatOpts...)
	return s
}

// Connect registers transport and starts its heartbeat. The returned
// connection's context ends when the connection is unregistered.
func (s *Service) Connect(ctx context.Context, transport domain.Transport) domain.Connection {
	conn := s.registry.Register(ctx, transport)
	s.heartbeats.Start(conn)
	return conn
}

// Disconnect unregisters id, which also stops its heartbeat and removes it
// from every room. Reports whether id was still registered.
func (s *Service) Disconnect(id uuid.UUID) bool {
	return s.registry.Unregister(id)
}

func (s *Service) Send(ctx context.Context, id uuid.UUID, msg []byte) error {
	return s.broadcaster.SendTo(ctx, id, msg)
}

// Broadcast delivers msg to every connection except exclude. Pass uuid.Nil to include everyone.
func (s *Service) Broadcast(ctx context.Context, msg []byte, exclude uuid.UUID) broadcast.Result {
	return s.broadcaster.BroadcastAll(ctx, msg, exclude)
}

func (s *Service) BroadcastToRoom(ctx context.Context, room string, msg []byte, exclude uuid.UUID) broadcast.Result {
	return s.broadcaster.BroadcastRoom(ctx, room, msg, exclude)
}

// Join adds a registered connection to room.
func (s *Service) Join(id uuid.UUID, room string) error {
	if !s.registry.JoinRoom(id, room) {
		return fmt.Errorf("join %q: %w", room, domain.ErrUnknownConnection)
	}
	return nil
}

func (s *Service) Leave(id uuid.UUID, room string) {
	s.rooms.Leave(id, room)
}

func (s *Service) RoomMemberCount(room string) int {
	return s.rooms.MemberCount(room)
}

// OpenStream starts a resumable event stream. A nil cursor skips replay.
func (s *Service) OpenStream(cursor *int64) *stream.Session {
	return stream.Open(s.log, cursor, s.streamOptions(s.cfg.StreamInterval, stream.WithKeepAliveEvery(s.cfg.KeepAliveEvery))...)
}

// Events is OpenStream counted in Stats for as long as it is consumed.
func (s *Service) Events(ctx context.Context, cursor *int64) iter.Seq[stream.Item] {
	return s.counted(s.OpenStream(cursor).Items(ctx))
}

func (s *Service) Notifications(ctx context.Context, userID string) iter.Seq[stream.Item] {
	return s.counted(stream.Notifications(userID, s.streamOptions(s.cfg.NotificationInterval)...).Items(ctx))
}

func (s *Service) Stocks(ctx context.Context) iter.Seq[stream.Item] {
	return s.counted(stream.Stocks(s.streamOptions(s.cfg.StockInterval)...).Items(ctx))
}

func (s *Service) streamOptions(interval time.Duration, extra ...stream.Option) []stream.Option {
	opts := []stream.Option{stream.WithClock(s.clock), stream.WithInterval(interval)}
	if s.metrics != nil {
		opts = append(opts, stream.WithMetrics(s.metrics.Stream))
	}
	return append(opts, extra...)
}

func (s *Service) counted(seq iter.Seq[stream.Item]) iter.Seq[stream.Item] {
	return func(yield func(stream.Item) bool) {
		s.streams.Add(1)
		defer s.streams.Add(-1)
		for item := range seq {
			if !yield(item) {
				return
			}
		}
	}
}

// Stats summarises the core. Concurrent callers share one computation.
func (s *Service) Stats() domain.Stats {
	v, _, _ := s.statsGroup.Do("stats", func() (any, error) {
		latest, _ := s.log.LatestID()
		return domain.Stats{
			TotalConnections: s.registry.Len(),
			Rooms:            s.rooms.Counts(),
			EventsRetained:   s.log.Size(),
			LatestEventID:    latest,
			Heartbeats:       s.heartbeats.Running(),
			Streams:          int(s.streams.Load()),
		}, nil
	})
	stats := v.(domain.Stats)
	stats.Rooms = maps.Clone(stats.Rooms)
	return stats
}

// Ready is the core's readiness check. It fails once Shutdown has started.
func (s *Service) Ready(_ context.Context) error {
	if s.closed.Load() {
		return errShutDown
	}
	return nil
}

// Shutdown unregisters every connection and waits for their heartbeats to stop.
func (s *Service) Shutdown() {
	s.closed.Store(true)
	closed := s.registry.CloseAll()
	s.heartbeats.Wait()
	slog.Info("Closed all connections", "count", closed)
}

func (s *Service) heartbeatMessage(now time.Time) []byte {
	return encode(domain.Envelope{Type: domain.MessageHeartbeat, Timestamp: timestamp(now)})
}

func (s *Service) now() *time.Time {
	return timestamp(s.clock.Now())
}

func timestamp(t time.Time) *time.Time {
	t = t.UTC()
	return &t
}

func encode(env domain.Envelope) []byte {
	data, err := json.Marshal(env)
	if err != nil {
		// Envelope only holds JSON-safe fields; Data is validated on decode.
		slog.Error("Failed to encode envelope", "type", env.Type, "error", err)
		return nil
	}
	return data
}
