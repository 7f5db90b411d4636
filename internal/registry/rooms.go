package registry

import (
	"sync"

	"github.com/google/uuid"
)

type memberSet map[uuid.UUID]struct{}

// Rooms maps room names to member connection ids.
// Rooms are created on first join and are never deleted when they empty out.
type Rooms struct {
	mu    sync.RWMutex
	rooms map[string]memberSet
}

func NewRooms() *Rooms {
	return &Rooms{rooms: make(map[string]memberSet)}
}

// Join adds id to room, creating the room if needed. Idempotent.
func (r *Rooms) Join(id uuid.UUID, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, exists := r.rooms[room]
	if !exists {
		members = make(memberSet)
		r.rooms[room] = members
	}
	members[id] = struct{}{}
}

// Leave removes id from room. Unknown rooms and non-members are a no-op.
func (r *Rooms) Leave(id uuid.UUID, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if members, exists := r.rooms[room]; exists {
		delete(members, id)
	}
}

// Discard removes id from every room.
func (r *Rooms) Discard(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, members := range r.rooms {
		delete(members, id)
	}
}

// MemberCount returns the number of members in room, 0 for unknown rooms.
func (r *Rooms) MemberCount(room string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[room])
}

// SnapshotMembers returns a copy of room's member ids.
func (r *Rooms) SnapshotMembers(room string) []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.rooms[room]
	ids := make([]uuid.UUID, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	return ids
}

// IsMember reports whether id is currently in room.
func (r *Rooms) IsMember(id uuid.UUID, room string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[room][id]
	return ok
}

// MembershipsOf returns the rooms id currently belongs to.
func (r *Rooms) MembershipsOf(id uuid.UUID) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var rooms []string
	for name, members := range r.rooms {
		if _, ok := members[id]; ok {
			rooms = append(rooms, name)
		}
	}
	return rooms
}

// Counts returns the member count of every known room, empty rooms included.
func (r *Rooms) Counts() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[string]int, len(r.rooms))
	for name, members := range r.rooms {
		counts[name] = len(members)
	}
	return counts
}

// RoomCount returns the number of known rooms.
func (r *Rooms) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
