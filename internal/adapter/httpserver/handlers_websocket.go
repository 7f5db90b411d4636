package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"
	apperrors "github.com/pscheid92/roomcast/internal/platform/errors"
)

const maxRoomNameLength = 128

func (s *Server) registerWebSocketRoutes() {
	s.echo.GET("/ws", s.handleWebSocket)
	s.echo.GET("/ws/chat/:room", s.handleRoomWebSocket)
}

func (s *Server) handleWebSocket(c echo.Context) error {
	return s.upgrade(c, s.websocket.ServeGeneral)
}

func (s *Server) handleRoomWebSocket(c echo.Context) error {
	room := c.Param("room")
	if room == "" || len(room) > maxRoomNameLength {
		return apperrors.ValidationError("invalid room name").WithField("room", room)
	}

	return s.upgrade(c, func(w http.ResponseWriter, r *http.Request) {
		s.websocket.ServeRoom(w, r, room)
	})
}

// upgrade reserves a connection slot for the client IP and holds it until
// the websocket session ends.
func (s *Server) upgrade(c echo.Context, serve func(http.ResponseWriter, *http.Request)) error {
	if s.draining.Load() {
		return apperrors.UnavailableError("server is shutting down", nil)
	}

	ip := c.RealIP()
	ok, reason := s.limits.Acquire(ip)
	if !ok {
		s.connectionMetrics().Rejection(string(reason))
		return apperrors.LimitedError("too many connections").WithField("reason", string(reason))
	}
	defer s.limits.Release(ip)

	serve(c.Response(), c.Request())
	return nil
}
