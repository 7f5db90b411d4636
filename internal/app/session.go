package app

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/pscheid92/roomcast/internal/broadcast"
	"github.com/pscheid92/roomcast/internal/domain"
)

const invalidJSONMessage = "Invalid JSON format"

// OpenSession connects transport as a general session, greets it and
// announces it to everyone else.
func (s *Service) OpenSession(ctx context.Context, transport domain.Transport) domain.Connection {
	conn := s.Connect(ctx, transport)
	id := conn.ID

	if err := s.reply(ctx, id, domain.Envelope{Type: domain.MessageConnected, ClientID: &id, Timestamp: s.now()}); err != nil {
		slog.DebugContext(ctx, "Greeting not delivered", "connection_id", id.String(), "error", err)
	}
	s.Broadcast(ctx, encode(domain.Envelope{Type: domain.MessageUserJoined, ClientID: &id, Timestamp: s.now()}), id)

	slog.InfoContext(ctx, "Session opened", "connection_id", id.String())
	return conn
}

// CloseSession unregisters id and tells everyone it left.
func (s *Service) CloseSession(ctx context.Context, id uuid.UUID) {
	s.Disconnect(id)
	s.Broadcast(ctx, encode(domain.Envelope{Type: domain.MessageUserLeft, ClientID: &id, Timestamp: s.now()}), broadcast.NoExclusion)
	slog.InfoContext(ctx, "Session closed", "connection_id", id.String())
}

// HandleFrame routes one inbound frame from a general session. Malformed
// frames get an error reply and leave the connection open. A non-nil error
// means a reply to the sender could not be delivered.
func (s *Service) HandleFrame(ctx context.Context, id uuid.UUID, raw []byte) error {
	var frame domain.InboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		slog.DebugContext(ctx, "Malformed frame", "connection_id", id.String(), "error", err)
		return s.reply(ctx, id, domain.Envelope{Type: domain.MessageError, Error: invalidJSONMessage})
	}
	if frame.Type == "" {
		frame.Type = domain.FrameMessage
	}

	switch frame.Type {
	case domain.FramePing:
		return s.reply(ctx, id, domain.Envelope{Type: domain.MessagePong, Timestamp: s.now()})
	case domain.FrameSubscribe:
		return s.subscribe(ctx, id, frame.Room)
	case domain.FrameUnsubscribe:
		return s.unsubscribe(ctx, id, frame.Room)
	case domain.FrameMessage:
		s.relay(ctx, id, frame)
		return nil
	default:
		slog.DebugContext(ctx, "Ignoring unknown frame type", "connection_id", id.String(), "type", frame.Type)
		return nil
	}
}

func (s *Service) subscribe(ctx context.Context, id uuid.UUID, room string) error {
	if room == "" {
		return nil
	}
	if err := s.Join(id, room); err != nil {
		return err
	}

	count := s.RoomMemberCount(room)
	if err := s.reply(ctx, id, domain.Envelope{Type: domain.MessageSubscribed, Room: room, Count: &count}); err != nil {
		return err
	}
	s.BroadcastToRoom(ctx, room, encode(domain.Envelope{Type: domain.MessageUserJoinedRoom, ClientID: &id, Room: room}), id)
	return nil
}

func (s *Service) unsubscribe(ctx context.Context, id uuid.UUID, room string) error {
	if room == "" {
		return nil
	}
	s.Leave(id, room)

	if err := s.reply(ctx, id, domain.Envelope{Type: domain.MessageUnsubscribed, Room: room}); err != nil {
		return err
	}
	s.BroadcastToRoom(ctx, room, encode(domain.Envelope{Type: domain.MessageUserLeftRoom, ClientID: &id, Room: room}), id)
	return nil
}

// relay forwards a chat message to its room, or to everyone when no room
// is named. The sender receives its own message.
func (s *Service) relay(ctx context.Context, id uuid.UUID, frame domain.InboundFrame) {
	env := domain.Envelope{
		Type:      domain.MessageChat,
		ClientID:  &id,
		Room:      frame.Room,
		Data:      frame.Data,
		Timestamp: s.now(),
	}
	if frame.Room != "" {
		s.BroadcastToRoom(ctx, frame.Room, encode(env), broadcast.NoExclusion)
		return
	}
	s.Broadcast(ctx, encode(env), broadcast.NoExclusion)
}

// OpenRoomSession connects transport as a member of room, greets it with
// the room size and announces it to the other members.
func (s *Service) OpenRoomSession(ctx context.Context, room string, transport domain.Transport) (domain.Connection, error) {
	conn := s.Connect(ctx, transport)
	id := conn.ID

	if err := s.Join(id, room); err != nil {
		return conn, err
	}

	count := s.RoomMemberCount(room)
	if err := s.reply(ctx, id, domain.Envelope{Type: domain.MessageJoinedRoom, Room: room, ClientID: &id, UsersCount: &count}); err != nil {
		return conn, err
	}
	s.BroadcastToRoom(ctx, room, encode(domain.Envelope{Type: domain.MessageUserJoined, ClientID: &id, UsersCount: &count}), id)

	slog.InfoContext(ctx, "Room session opened", "connection_id", id.String(), "room", room, "users", count)
	return conn, nil
}

// HandleRoomText broadcasts a raw text frame to room, sender included.
func (s *Service) HandleRoomText(ctx context.Context, id uuid.UUID, room, text string) {
	s.BroadcastToRoom(ctx, room, encode(domain.Envelope{
		Type:      domain.MessageChat,
		ClientID:  &id,
		Room:      room,
		Content:   text,
		Timestamp: s.now(),
	}), broadcast.NoExclusion)
}

// CloseRoomSession removes id from room and the registry, then tells the
// remaining members.
func (s *Service) CloseRoomSession(ctx context.Context, id uuid.UUID, room string) {
	s.Leave(id, room)
	s.Disconnect(id)

	count := s.RoomMemberCount(room)
	s.BroadcastToRoom(ctx, room, encode(domain.Envelope{Type: domain.MessageUserLeft, ClientID: &id, UsersCount: &count}), broadcast.NoExclusion)
	slog.InfoContext(ctx, "Room session closed", "connection_id", id.String(), "room", room, "users", count)
}

func (s *Service) reply(ctx context.Context, id uuid.UUID, env domain.Envelope) error {
	return s.Send(ctx, id, encode(env))
}
