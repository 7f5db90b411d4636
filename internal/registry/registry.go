package registry

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/pscheid92/roomcast/internal/adapter/metrics"
	"github.com/pscheid92/roomcast/internal/domain"
)

// Unregister reasons, used as metric labels.
const (
	ReasonClosed   = "closed"
	ReasonDead     = "dead"
	ReasonShutdown = "shutdown"
)

// Entry is one element of a registry snapshot.
type Entry struct {
	ID        uuid.UUID
	Transport domain.Transport
}

type connection struct {
	transport domain.Transport
	seq       uint64
	cancel    context.CancelFunc
}

// Registry owns the live connections, keyed by a unique id.
// Unregistering a connection also removes it from every room in the same
// critical section, so no snapshot taken afterwards can see it.
type Registry struct {
	mu      sync.RWMutex
	conns   map[uuid.UUID]*connection
	seq     uint64
	rooms   *Rooms
	newID   func() uuid.UUID
	metrics *metrics.ConnectionMetrics
}

type Option func(*Registry)

// WithIDGenerator replaces uuid.New as the id source.
func WithIDGenerator(fn func() uuid.UUID) Option {
	return func(r *Registry) { r.newID = fn }
}

func WithMetrics(m *metrics.ConnectionMetrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// New creates a registry that keeps rooms consistent with its membership.
// A nil rooms gets a fresh index.
func New(rooms *Rooms, opts ...Option) *Registry {
	if rooms == nil {
		rooms = NewRooms()
	}
	r := &Registry{
		conns: make(map[uuid.UUID]*connection),
		rooms: rooms,
		newID: uuid.New,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rooms returns the room index kept in sync with this registry.
func (r *Registry) Rooms() *Rooms {
	return r.rooms
}

// Register stores transport under a fresh id. The returned connection's
// context is derived from ctx and cancelled on unregister.
func (r *Registry) Register(ctx context.Context, transport domain.Transport) domain.Connection {
	connCtx, cancel := context.WithCancel(ctx)

	r.mu.Lock()
	id := r.newID()
	for {
		if _, taken := r.conns[id]; !taken && id != uuid.Nil {
			break
		}
		id = r.newID()
	}
	r.seq++
	r.conns[id] = &connection{transport: transport, seq: r.seq, cancel: cancel}
	active := len(r.conns)
	r.mu.Unlock()

	r.metrics.Registered(active)
	slog.Debug("Connection registered", "connection_id", id.String(), "active", active)
	return domain.NewConnection(id, connCtx)
}

// Unregister removes id after a normal close. Absent ids are a no-op.
// Reports whether this call removed the connection.
func (r *Registry) Unregister(id uuid.UUID) bool {
	return r.remove(id, ReasonClosed)
}

// Evict removes id after a failed delivery.
func (r *Registry) Evict(id uuid.UUID) bool {
	return r.remove(id, ReasonDead)
}

func (r *Registry) remove(id uuid.UUID, reason string) bool {
	r.mu.Lock()
	conn, exists := r.conns[id]
	if exists {
		delete(r.conns, id)
	}
	r.rooms.Discard(id)
	active := len(r.conns)
	r.mu.Unlock()

	if !exists {
		return false
	}

	conn.cancel()
	if err := conn.transport.Close(); err != nil {
		slog.Debug("Transport close failed", "connection_id", id.String(), "error", err)
	}

	r.metrics.Removed(reason, active)
	slog.Debug("Connection unregistered", "connection_id", id.String(), "reason", reason, "active", active)
	return true
}

// JoinRoom adds a registered connection to room. It reports false and
// changes nothing when id is not registered.
func (r *Registry) JoinRoom(id uuid.UUID, room string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, exists := r.conns[id]; !exists {
		return false
	}
	r.rooms.Join(id, room)
	return true
}

// Get returns the transport for id. Absent is a normal outcome.
func (r *Registry) Get(id uuid.UUID) (domain.Transport, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, exists := r.conns[id]
	if !exists {
		return nil, false
	}
	return conn.transport, true
}

// Snapshot returns a copy of all live connections in registration order.
func (r *Registry) Snapshot() []Entry {
	r.mu.RLock()
	type ordered struct {
		Entry
		seq uint64
	}
	all := make([]ordered, 0, len(r.conns))
	for id, conn := range r.conns {
		all = append(all, ordered{Entry: Entry{ID: id, Transport: conn.transport}, seq: conn.seq})
	}
	r.mu.RUnlock()

	slices.SortFunc(all, func(a, b ordered) int { return cmp.Compare(a.seq, b.seq) })

	entries := make([]Entry, len(all))
	for i, o := range all {
		entries[i] = o.Entry
	}
	return entries
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// CloseAll unregisters every connection. Used on shutdown.
func (r *Registry) CloseAll() int {
	closed := 0
	for _, entry := range r.Snapshot() {
		if r.remove(entry.ID, ReasonShutdown) {
			closed++
		}
	}
	return closed
}
