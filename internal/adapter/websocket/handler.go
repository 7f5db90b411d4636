package websocket

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/roomcast/internal/domain"
	"github.com/pscheid92/roomcast/internal/platform/correlation"
)

const maxFrameSize = 64 * 1024

// SessionService is the part of the application layer the websocket
// endpoints drive.
type SessionService interface {
	OpenSession(ctx context.Context, transport domain.Transport) domain.Connection
	HandleFrame(ctx context.Context, id uuid.UUID, raw []byte) error
	CloseSession(ctx context.Context, id uuid.UUID)

	OpenRoomSession(ctx context.Context, room string, transport domain.Transport) (domain.Connection, error)
	HandleRoomText(ctx context.Context, id uuid.UUID, room, text string)
	CloseRoomSession(ctx context.Context, id uuid.UUID, room string)
}

// Handler upgrades HTTP requests and runs one session per socket until the
// peer goes away or the connection is unregistered.
type Handler struct {
	sessions SessionService
	upgrader websocket.Upgrader
	clock    clockwork.Clock
	connOpts []ConnOption
}

func NewHandler(sessions SessionService, checkOrigin func(*http.Request) bool, clock clockwork.Clock, opts ...ConnOption) *Handler {
	return &Handler{
		sessions: sessions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		clock:    clock,
		connOpts: opts,
	}
}

// ServeGeneral runs a general session: JSON frames routed by type.
func (h *Handler) ServeGeneral(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("WebSocket upgrade failed", "error", err)
		return
	}

	ctx := sessionContext(r)
	transport := NewConn(ws, h.clock, h.connOpts...)
	conn := h.sessions.OpenSession(ctx, transport)
	defer h.sessions.CloseSession(ctx, conn.ID)

	h.readLoop(ctx, conn, ws, transport, func(data []byte) error {
		return h.sessions.HandleFrame(ctx, conn.ID, data)
	})
}

// ServeRoom runs a dedicated room session: every text frame is chat content for room.
func (h *Handler) ServeRoom(w http.ResponseWriter, r *http.Request, room string) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("WebSocket upgrade failed", "room", room, "error", err)
		return
	}

	ctx := sessionContext(r)
	transport := NewConn(ws, h.clock, h.connOpts...)
	conn, err := h.sessions.OpenRoomSession(ctx, room, transport)
	defer h.sessions.CloseRoomSession(ctx, conn.ID, room)
	if err != nil {
		slog.InfoContext(ctx, "Room session failed to start", "connection_id", conn.ID.String(), "room", room, "error", err)
		return
	}

	h.readLoop(ctx, conn, ws, transport, func(data []byte) error {
		h.sessions.HandleRoomText(ctx, conn.ID, room, string(data))
		return nil
	})
}

func (h *Handler) readLoop(ctx context.Context, conn domain.Connection, ws *websocket.Conn, transport *Conn, handle func([]byte) error) {
	ws.SetReadLimit(maxFrameSize)

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) &&
				conn.State() == domain.ConnectionActive {
				slog.DebugContext(ctx, "WebSocket read failed", "connection_id", conn.ID.String(), "error", err)
			}
			return
		}
		transport.ExtendReadDeadline()

		if err := handle(data); err != nil {
			if !errors.Is(err, domain.ErrConnectionDead) && !errors.Is(err, domain.ErrUnknownConnection) {
				slog.WarnContext(ctx, "Frame handling failed", "connection_id", conn.ID.String(), "error", err)
			}
			return
		}
	}
}

// sessionContext detaches the session from the upgrade request and keeps
// the request's correlation id when one was assigned upstream.
func sessionContext(r *http.Request) context.Context {
	ctx := context.WithoutCancel(r.Context())
	if _, ok := correlation.ID(ctx); ok {
		return ctx
	}
	return correlation.WithID(ctx, correlation.NewID())
}
