package httpserver

import (
	"context"
	"iter"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/roomcast/internal/domain"
	"github.com/pscheid92/roomcast/internal/platform/config"
	"github.com/pscheid92/roomcast/internal/stream"
)

type mockAppService struct {
	mu      sync.Mutex
	stats   domain.Stats
	items   []stream.Item
	block   bool
	started chan struct{}

	cursors []*int64
	userIDs []string
}

func (m *mockAppService) Stats() domain.Stats { return m.stats }

func (m *mockAppService) Events(ctx context.Context, cursor *int64) iter.Seq[stream.Item] {
	m.mu.Lock()
	m.cursors = append(m.cursors, cursor)
	m.mu.Unlock()
	return m.seq(ctx)
}

func (m *mockAppService) Notifications(ctx context.Context, userID string) iter.Seq[stream.Item] {
	m.mu.Lock()
	m.userIDs = append(m.userIDs, userID)
	m.mu.Unlock()
	return m.seq(ctx)
}

func (m *mockAppService) Stocks(ctx context.Context) iter.Seq[stream.Item] {
	return m.seq(ctx)
}

func (m *mockAppService) seq(ctx context.Context) iter.Seq[stream.Item] {
	return func(yield func(stream.Item) bool) {
		for _, item := range m.items {
			if !yield(item) {
				return
			}
		}
		if m.block {
			if m.started != nil {
				close(m.started)
			}
			<-ctx.Done()
		}
	}
}

func (m *mockAppService) lastCursor() *int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.cursors) == 0 {
		return nil
	}
	return m.cursors[len(m.cursors)-1]
}

type stubWebSocket struct {
	mu      sync.Mutex
	general int
	rooms   []string
	onServe func()
}

func (s *stubWebSocket) ServeGeneral(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	s.general++
	s.mu.Unlock()
	s.serve(w)
}

func (s *stubWebSocket) ServeRoom(w http.ResponseWriter, _ *http.Request, room string) {
	s.mu.Lock()
	s.rooms = append(s.rooms, room)
	s.mu.Unlock()
	s.serve(w)
}

func (s *stubWebSocket) serve(w http.ResponseWriter) {
	if s.onServe != nil {
		s.onServe()
	}
	w.WriteHeader(http.StatusNoContent)
}

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:                  "test",
		Port:                    "0",
		MaxWebSocketConnections: 10,
		MaxConnectionsPerIP:     5,
		ConnectionRate:          100,
		ConnectionBurst:         100,
		ShutdownTimeout:         time.Second,
	}
}

func newTestServer(t *testing.T, app *mockAppService, opts ...Option) *Server {
	t.Helper()
	return newTestServerWith(t, testConfig(), app, &stubWebSocket{}, opts...)
}

func newTestServerWith(t *testing.T, cfg *config.Config, app *mockAppService, ws *stubWebSocket, opts ...Option) *Server {
	t.Helper()
	opts = append([]Option{WithClock(clockwork.NewFakeClock())}, opts...)
	return NewServer(cfg, app, ws, opts...)
}

func get(t *testing.T, srv *Server, target string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}
