package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Inbound frame types.
const (
	FrameMessage     = "message"
	FramePing        = "ping"
	FrameSubscribe   = "subscribe"
	FrameUnsubscribe = "unsubscribe"
)

// Outbound message types.
const (
	MessageConnected      = "connected"
	MessageUserJoined     = "user_joined"
	MessageUserLeft       = "user_left"
	MessageHeartbeat      = "heartbeat"
	MessagePong           = "pong"
	MessageSubscribed     = "subscribed"
	MessageUnsubscribed   = "unsubscribed"
	MessageUserJoinedRoom = "user_joined_room"
	MessageUserLeftRoom   = "user_left_room"
	MessageJoinedRoom     = "joined_room"
	MessageChat           = "message"
	MessageError          = "error"
)

// InboundFrame is a client frame received on a general session.
// A missing Type is treated as FrameMessage.
type InboundFrame struct {
	Type string          `json:"type"`
	Room string          `json:"room,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Envelope is the JSON shape of every server-to-client websocket message.
type Envelope struct {
	Type       string          `json:"type"`
	ClientID   *uuid.UUID      `json:"client_id,omitempty"`
	Room       string          `json:"room,omitempty"`
	Count      *int            `json:"count,omitempty"`
	UsersCount *int            `json:"users_count,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	Content    string          `json:"content,omitempty"`
	Error      string          `json:"error,omitempty"`
	Timestamp  *time.Time      `json:"timestamp,omitempty"`
}
