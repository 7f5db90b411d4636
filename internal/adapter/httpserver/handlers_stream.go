package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	apperrors "github.com/pscheid92/roomcast/internal/platform/errors"
	"github.com/pscheid92/roomcast/internal/stream"
)

const (
	lastEventIDHeader = "Last-Event-ID"
	maxUserIDLength   = 128
)

func (s *Server) registerStreamRoutes() {
	limited := s.apiRateLimiter()
	s.echo.GET("/events", s.handleEvents, limited)
	s.echo.GET("/notifications/:user_id", s.handleNotifications, limited)
	s.echo.GET("/stocks", s.handleStocks, limited)
}

func (s *Server) handleEvents(c echo.Context) error {
	cursor := parseLastEventID(c.Request().Header.Get(lastEventIDHeader))
	return s.serveStream(c, func(ctx context.Context) iter.Seq[stream.Item] {
		return s.app.Events(ctx, cursor)
	})
}

func (s *Server) handleNotifications(c echo.Context) error {
	userID := c.Param("user_id")
	if userID == "" || len(userID) > maxUserIDLength {
		return apperrors.ValidationError("invalid user id").WithField("user_id", userID)
	}

	return s.serveStream(c, func(ctx context.Context) iter.Seq[stream.Item] {
		return s.app.Notifications(ctx, userID)
	})
}

func (s *Server) handleStocks(c echo.Context) error {
	return s.serveStream(c, s.app.Stocks)
}

// parseLastEventID returns nil when the header is absent or not an integer,
// which means no replay.
func parseLastEventID(value string) *int64 {
	if value == "" {
		return nil
	}
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return nil
	}
	return &id
}

// serveStream writes items as server-sent events until the client goes
// away or the server shuts down.
func (s *Server) serveStream(c echo.Context, open func(ctx context.Context) iter.Seq[stream.Item]) error {
	if s.draining.Load() {
		return apperrors.UnavailableError("server is shutting down", nil)
	}

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()
	stop := context.AfterFunc(s.streams, cancel)
	defer stop()

	res := c.Response()
	header := res.Header()
	header.Set(echo.HeaderContentType, "text/event-stream")
	header.Set(echo.HeaderCacheControl, "no-cache")
	header.Set(echo.HeaderConnection, "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	for item := range open(ctx) {
		if err := writeEvent(res, item); err != nil {
			slog.DebugContext(ctx, "SSE client went away", "path", c.Path(), "error", err)
			return nil
		}
		res.Flush()
	}
	return nil
}

// writeEvent renders one item in text/event-stream framing. Keep-alives are
// comment lines; feed events carry no id line.
func writeEvent(w io.Writer, item stream.Item) error {
	if item.KeepAlive {
		_, err := io.WriteString(w, ": heartbeat\n\n")
		return err
	}

	data, err := json.Marshal(item.Event.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", item.Event.Type, err)
	}

	var buf bytes.Buffer
	if item.Event.ID > 0 {
		fmt.Fprintf(&buf, "id: %d\n", item.Event.ID)
	}
	fmt.Fprintf(&buf, "event: %s\ndata: %s\n\n", item.Event.Type, data)

	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	return nil
}
