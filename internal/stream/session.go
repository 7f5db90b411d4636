package stream

import (
	"context"
	"fmt"
	"iter"
	"sync/atomic"
	"time"

	"github.com/pscheid92/roomcast/internal/eventlog"
)

// Event types produced by a session.
const (
	EventConnected = "connected"
	EventUpdate    = "update"
)

const kindEvents = "events"

type State int32

const (
	StateInit State = iota
	StateReplaying
	StateLive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateReplaying:
		return "replaying"
	case StateLive:
		return "live"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Item is one element of a stream. Keep-alive items carry no event.
type Item struct {
	Event     eventlog.Event
	KeepAlive bool
}

type ConnectedPayload struct {
	Message string `json:"message"`
}

type UpdatePayload struct {
	Timestamp time.Time `json:"timestamp"`
	Value     int       `json:"value"`
	Message   string    `json:"message"`
}

// Session is a single client's event stream. It is consumed once through Items.
type Session struct {
	log     *eventlog.Log
	resume  *int64
	cfg     settings
	state   atomic.Int32
	cursor  atomic.Int64
	started atomic.Bool
}

// Open prepares a session over log. A nil cursor skips replay.
func Open(log *eventlog.Log, cursor *int64, opts ...Option) *Session {
	s := &Session{
		log: log,
		cfg: newSettings(DefaultInterval, DefaultKeepAliveEvery, opts),
	}
	if cursor != nil {
		c := *cursor
		s.resume = &c
		s.cursor.Store(c)
	}
	return s
}

func (s *Session) State() State {
	return State(s.state.Load())
}

// Cursor returns the id of the last event yielded, or the resume cursor
// when nothing has been yielded yet.
func (s *Session) Cursor() int64 {
	return s.cursor.Load()
}

// Items returns the session's lazy event sequence. Iteration ends when ctx
// is cancelled or the consumer stops; the session is then closed. A second
// call yields nothing.
func (s *Session) Items(ctx context.Context) iter.Seq[Item] {
	return func(yield func(Item) bool) {
		if !s.started.CompareAndSwap(false, true) {
			return
		}
		s.cfg.metrics.Opened(kindEvents)
		defer s.close()

		if s.resume != nil {
			s.state.Store(int32(StateReplaying))
			replay := s.log.Since(*s.resume)
			s.cfg.metrics.Replay(len(replay))
			for _, ev := range replay {
				if ctx.Err() != nil || !s.emit(yield, ev) {
					return
				}
			}
		}

		s.state.Store(int32(StateLive))
		greeting := s.log.Issue(EventConnected, ConnectedPayload{Message: "Connected to SSE stream"})
		if ctx.Err() != nil || !s.emit(yield, greeting) {
			return
		}

		ticker := s.cfg.clock.NewTicker(s.cfg.interval)
		defer ticker.Stop()

		for ticks := 1; ; ticks++ {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
			}
			if ctx.Err() != nil {
				return
			}

			ev := s.log.AppendWith(EventUpdate, s.update)
			if !s.emit(yield, ev) {
				return
			}

			if s.cfg.keepAliveEvery > 0 && ticks%s.cfg.keepAliveEvery == 0 {
				s.cfg.metrics.KeepAlive()
				if !yield(Item{KeepAlive: true}) {
					return
				}
			}
		}
	}
}

func (s *Session) emit(yield func(Item) bool, ev eventlog.Event) bool {
	s.cursor.Store(ev.ID)
	s.cfg.metrics.Yield(ev.Type)
	return yield(Item{Event: ev})
}

func (s *Session) update(id int64, now time.Time) any {
	return UpdatePayload{
		Timestamp: now.UTC(),
		Value:     s.cfg.rng.IntN(100) + 1,
		Message:   fmt.Sprintf("Update #%d", id),
	}
}

func (s *Session) close() {
	s.state.Store(int32(StateClosed))
	s.cfg.metrics.Closed(kindEvents)
}
