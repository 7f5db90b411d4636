// Package eventlog keeps a bounded, in-memory history of stream events so clients can resume
// after a reconnect. Ids increase monotonically for the life of the process.
package eventlog

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/roomcast/internal/adapter/metrics"
)

const DefaultCapacity = 100

// Event is one entry in the log. Payload is any JSON-encodable value.
type Event struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Payload   any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Log is a fixed-capacity ring buffer of events. Appending to a full log evicts the oldest entry.
type Log struct {
	mu      sync.Mutex
	buf     []Event
	head    int // index of the oldest event
	size    int
	lastID  int64
	clock   clockwork.Clock
	metrics *metrics.EventLogMetrics
}

type Option func(*Log)

func WithMetrics(m *metrics.EventLogMetrics) Option {
	return func(l *Log) { l.metrics = m }
}

func WithClock(clock clockwork.Clock) Option {
	return func(l *Log) { l.clock = clock }
}

// New creates an empty log. A non-positive capacity falls back to DefaultCapacity.
func New(capacity int, opts ...Option) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	l := &Log{
		buf:   make([]Event, capacity),
		clock: clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Append stores a new event under the next id and returns it.
func (l *Log) Append(eventType string, payload any) Event {
	return l.AppendWith(eventType, func(int64, time.Time) any { return payload })
}

// AppendWith is Append for payloads that embed their own id or timestamp.
// build runs under the log's lock and must not call back into the log.
func (l *Log) AppendWith(eventType string, build func(id int64, now time.Time) any) Event {
	l.mu.Lock()
	ev := l.next(eventType, nil)
	ev.Payload = build(ev.ID, ev.Timestamp)

	evicted := l.size == len(l.buf)
	if evicted {
		l.buf[l.head] = ev
		l.head = (l.head + 1) % len(l.buf)
	} else {
		l.buf[(l.head+l.size)%len(l.buf)] = ev
		l.size++
	}
	size := l.size
	l.mu.Unlock()

	l.metrics.Append(eventType, ev.ID, size, evicted)
	return ev
}

// Issue allocates the next id for an event that is delivered but never
// retained, such as a stream's connection greeting.
func (l *Log) Issue(eventType string, payload any) Event {
	l.mu.Lock()
	ev := l.next(eventType, payload)
	l.mu.Unlock()

	l.metrics.Issued(ev.ID)
	return ev
}

// next must be called with mu held.
func (l *Log) next(eventType string, payload any) Event {
	l.lastID++
	return Event{
		ID:        l.lastID,
		Type:      eventType,
		Payload:   payload,
		Timestamp: l.clock.Now(),
	}
}

// Since returns the retained events with an id greater than cursor, oldest
// first. A cursor older than the retention window yields everything retained.
func (l *Log) Since(cursor int64) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.size == 0 || cursor >= l.lastID {
		return nil
	}

	// Ids in the buffer are ascending but not necessarily contiguous, since
	// issued ids are skipped. Scan from the newest end backwards.
	start := l.size
	for start > 0 && l.at(start-1).ID > cursor {
		start--
	}

	out := make([]Event, 0, l.size-start)
	for i := start; i < l.size; i++ {
		out = append(out, l.at(i))
	}
	return out
}

// at returns the i-th oldest retained event. mu must be held.
func (l *Log) at(i int) Event {
	return l.buf[(l.head+i)%len(l.buf)]
}

func (l *Log) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.size
}

func (l *Log) Capacity() int {
	return len(l.buf)
}

// LatestID returns the most recently allocated id, retained or not.
func (l *Log) LatestID() (int64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastID, l.lastID > 0
}

// OldestID returns the id of the oldest retained event.
func (l *Log) OldestID() (int64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.size == 0 {
		return 0, false
	}
	return l.buf[l.head].ID, true
}
