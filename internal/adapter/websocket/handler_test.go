package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/roomcast/internal/app"
	"github.com/pscheid92/roomcast/internal/domain"
	"github.com/pscheid92/roomcast/internal/eventlog"
	"github.com/pscheid92/roomcast/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	url string
	svc *app.Service
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	clock := clockwork.NewFakeClock()
	svc := app.NewService(registry.New(nil), eventlog.New(100), clock, app.Config{HeartbeatInterval: time.Hour})
	h := NewHandler(svc, NewCheckOrigin("", true), clock)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.ServeGeneral)
	mux.HandleFunc("/ws/chat/{room}", func(w http.ResponseWriter, r *http.Request) {
		h.ServeRoom(w, r, r.PathValue("room"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		svc.Shutdown()
		srv.Close()
	})

	return &testServer{url: "ws" + strings.TrimPrefix(srv.URL, "http"), svc: svc}
}

func (s *testServer) dial(t *testing.T, path string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(s.url+path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) domain.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env domain.Envelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func readUntil(t *testing.T, conn *websocket.Conn, msgType string) domain.Envelope {
	t.Helper()
	for range 10 {
		if env := readEnvelope(t, conn); env.Type == msgType {
			return env
		}
	}
	t.Fatalf("no %q message received", msgType)
	return domain.Envelope{}
}

func TestHandler_GeneralSessionPingPong(t *testing.T) {
	srv := newTestServer(t)
	client := srv.dial(t, "/ws")

	connected := readEnvelope(t, client)
	assert.Equal(t, domain.MessageConnected, connected.Type)
	require.NotNil(t, connected.ClientID)

	require.NoError(t, client.WriteJSON(map[string]string{"type": "ping"}))
	assert.Equal(t, domain.MessagePong, readEnvelope(t, client).Type)
}

func TestHandler_GeneralSessionMalformedFrameKeepsConnection(t *testing.T) {
	srv := newTestServer(t)
	client := srv.dial(t, "/ws")
	readEnvelope(t, client)

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte("not json")))
	reply := readEnvelope(t, client)
	assert.Equal(t, domain.MessageError, reply.Type)
	assert.Equal(t, "Invalid JSON format", reply.Error)

	require.NoError(t, client.WriteJSON(map[string]string{"type": "ping"}))
	assert.Equal(t, domain.MessagePong, readEnvelope(t, client).Type)
}

func TestHandler_GeneralSessionBroadcastAndLeave(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.dial(t, "/ws")
	readEnvelope(t, alice)
	bob := srv.dial(t, "/ws")
	bobID := *readEnvelope(t, bob).ClientID

	joined := readUntil(t, alice, domain.MessageUserJoined)
	assert.Equal(t, bobID, *joined.ClientID)

	require.NoError(t, bob.WriteJSON(map[string]any{"type": "message", "data": map[string]string{"text": "hey"}}))
	for _, conn := range []*websocket.Conn{alice, bob} {
		msg := readUntil(t, conn, domain.MessageChat)
		assert.Equal(t, bobID, *msg.ClientID)
		assert.JSONEq(t, `{"text":"hey"}`, string(msg.Data))
	}

	require.NoError(t, bob.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	left := readUntil(t, alice, domain.MessageUserLeft)
	assert.Equal(t, bobID, *left.ClientID)
	assert.Eventually(t, func() bool { return srv.svc.Stats().TotalConnections == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestHandler_RoomSession(t *testing.T) {
	srv := newTestServer(t)
	first := srv.dial(t, "/ws/chat/lobby")
	joined := readEnvelope(t, first)
	assert.Equal(t, domain.MessageJoinedRoom, joined.Type)
	assert.Equal(t, "lobby", joined.Room)
	assert.Equal(t, 1, *joined.UsersCount)

	second := srv.dial(t, "/ws/chat/lobby")
	assert.Equal(t, 2, *readEnvelope(t, second).UsersCount)
	assert.Equal(t, 2, *readUntil(t, first, domain.MessageUserJoined).UsersCount)

	require.NoError(t, second.WriteMessage(websocket.TextMessage, []byte("plain text, not json")))
	for _, conn := range []*websocket.Conn{first, second} {
		msg := readUntil(t, conn, domain.MessageChat)
		assert.Equal(t, "plain text, not json", msg.Content)
		assert.Equal(t, "lobby", msg.Room)
	}

	require.NoError(t, second.Close())
	left := readUntil(t, first, domain.MessageUserLeft)
	assert.Equal(t, 1, *left.UsersCount)
}

func TestHandler_UnregisterClosesSocket(t *testing.T) {
	srv := newTestServer(t)
	client := srv.dial(t, "/ws")
	id := *readEnvelope(t, client).ClientID

	require.True(t, srv.svc.Disconnect(id))

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		_, _, err := client.ReadMessage()
		if err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
			break
		}
	}
}

func TestHandler_RejectsForeignOrigin(t *testing.T) {
	clock := clockwork.NewFakeClock()
	svc := app.NewService(registry.New(nil), eventlog.New(10), clock, app.Config{})
	h := NewHandler(svc, NewCheckOrigin("https://roomcast.example.com", false), clock)
	srv := httptest.NewServer(http.HandlerFunc(h.ServeGeneral))
	t.Cleanup(srv.Close)

	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), header)

	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Zero(t, svc.Stats().TotalConnections)
}
