package websocket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/roomcast/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestConnPair returns the server and client ends of one websocket.
func newTestConnPair(t *testing.T) (server *websocket.Conn, client *websocket.Conn) {
	t.Helper()

	upgrader := websocket.Upgrader{}
	serverCh := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		serverCh <- conn
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	select {
	case server = <-serverCh:
	case <-time.After(2 * time.Second):
		t.Fatal("server side never accepted")
	}
	return server, client
}

func readText(t *testing.T, client *websocket.Conn) string {
	t.Helper()
	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	kind, data, err := client.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, kind)
	return string(data)
}

func TestConn_SendDeliversInOrder(t *testing.T) {
	server, client := newTestConnPair(t)
	c := NewConn(server, clockwork.NewFakeClock())
	t.Cleanup(func() { _ = c.Close() })

	for _, msg := range []string{"one", "two", "three"} {
		require.NoError(t, c.Send(context.Background(), []byte(msg)))
	}

	assert.Equal(t, "one", readText(t, client))
	assert.Equal(t, "two", readText(t, client))
	assert.Equal(t, "three", readText(t, client))
}

func TestConn_CloseSendsNormalClosure(t *testing.T) {
	server, client := newTestConnPair(t)
	c := NewConn(server, clockwork.NewFakeClock())

	require.NoError(t, c.Close())

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := client.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestConn_SendAfterCloseFails(t *testing.T) {
	server, _ := newTestConnPair(t)
	c := NewConn(server, clockwork.NewFakeClock())

	require.NoError(t, c.Close())
	assert.NoError(t, c.Close())

	err := c.Send(context.Background(), []byte("late"))
	assert.ErrorIs(t, err, domain.ErrTransportClosed)
}

func TestConn_SendFailsOnceWriterDies(t *testing.T) {
	server, _ := newTestConnPair(t)
	c := NewConn(server, clockwork.NewFakeClock())

	require.NoError(t, server.UnderlyingConn().Close())
	_ = c.Send(context.Background(), []byte("lost"))

	require.Eventually(t, func() bool {
		return errors.Is(c.Send(context.Background(), []byte("next")), domain.ErrTransportClosed)
	}, 2*time.Second, 10*time.Millisecond)

	err := c.Send(context.Background(), []byte("again"))
	assert.ErrorIs(t, err, domain.ErrTransportClosed)
	assert.NotErrorIs(t, err, domain.ErrSendBufferFull)
	assert.NoError(t, c.Close())
}

func TestConn_FullBufferReportsSlowPeer(t *testing.T) {
	// No writer goroutine, so nothing drains the queue.
	c := &Conn{send: make(chan []byte, 1), done: make(chan struct{})}

	require.NoError(t, c.Send(context.Background(), []byte("a")))
	err := c.Send(context.Background(), []byte("b"))

	assert.ErrorIs(t, err, domain.ErrSendBufferFull)
}

func TestConn_SendHonoursCancelledContext(t *testing.T) {
	c := &Conn{send: make(chan []byte, 1), done: make(chan struct{})}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, c.Send(ctx, []byte("a")), context.Canceled)
	assert.Empty(t, c.send)
}

func TestConn_PingsOnTicker(t *testing.T) {
	server, client := newTestConnPair(t)
	clock := clockwork.NewFakeClock()
	c := NewConn(server, clock, WithPingInterval(10*time.Second))
	t.Cleanup(func() { _ = c.Close() })

	pinged := make(chan struct{}, 1)
	client.SetPingHandler(func(string) error {
		select {
		case pinged <- struct{}{}:
		default:
		}
		return nil
	})
	go func() {
		for {
			if _, _, err := client.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(10 * time.Second)

	select {
	case <-pinged:
	case <-time.After(2 * time.Second):
		t.Fatal("no ping received")
	}
}

func TestConn_Options(t *testing.T) {
	server, _ := newTestConnPair(t)
	c := NewConn(server, clockwork.NewFakeClock(),
		WithWriteTimeout(time.Second),
		WithPingInterval(5*time.Second),
		WithSendBuffer(64),
		WithSendBuffer(0),
	)
	t.Cleanup(func() { _ = c.Close() })

	assert.Equal(t, time.Second, c.writeTimeout)
	assert.Equal(t, 5*time.Second, c.pingInterval)
	assert.Equal(t, 10*time.Second, c.pongWait)
	assert.Equal(t, 64, cap(c.send))
}
