package registry

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestRooms_JoinIsIdempotent(t *testing.T) {
	rooms := NewRooms()
	id := uuid.New()

	rooms.Join(id, "lobby")
	rooms.Join(id, "lobby")

	assert.Equal(t, 1, rooms.MemberCount("lobby"))
	assert.True(t, rooms.IsMember(id, "lobby"))
}

func TestRooms_LeaveKeepsEmptyRoom(t *testing.T) {
	rooms := NewRooms()
	id := uuid.New()

	rooms.Join(id, "lobby")
	rooms.Leave(id, "lobby")
	rooms.Leave(id, "lobby")

	assert.Equal(t, 0, rooms.MemberCount("lobby"))
	assert.Equal(t, 1, rooms.RoomCount())
	assert.Equal(t, map[string]int{"lobby": 0}, rooms.Counts())
}

func TestRooms_UnknownRoom(t *testing.T) {
	rooms := NewRooms()

	assert.Equal(t, 0, rooms.MemberCount("nowhere"))
	assert.Empty(t, rooms.SnapshotMembers("nowhere"))
	assert.NotPanics(t, func() { rooms.Leave(uuid.New(), "nowhere") })
	assert.Equal(t, 0, rooms.RoomCount(), "leave does not create rooms")
}

func TestRooms_Discard(t *testing.T) {
	rooms := NewRooms()
	a, b := uuid.New(), uuid.New()

	rooms.Join(a, "lobby")
	rooms.Join(a, "games")
	rooms.Join(b, "games")

	rooms.Discard(a)

	assert.Empty(t, rooms.MembershipsOf(a))
	assert.ElementsMatch(t, []string{"games"}, rooms.MembershipsOf(b))
	assert.Equal(t, map[string]int{"lobby": 0, "games": 1}, rooms.Counts())
}

func TestRooms_SnapshotMembersIsDetached(t *testing.T) {
	rooms := NewRooms()
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	rooms.Join(a, "lobby")
	rooms.Join(b, "lobby")

	snap := rooms.SnapshotMembers("lobby")
	rooms.Join(c, "lobby")
	rooms.Leave(a, "lobby")

	assert.ElementsMatch(t, []uuid.UUID{a, b}, snap)
	assert.ElementsMatch(t, []uuid.UUID{b, c}, rooms.SnapshotMembers("lobby"))
}
