package websocket

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/roomcast/internal/domain"
)

const (
	defaultWriteTimeout = 5 * time.Second
	defaultPingInterval = 30 * time.Second
	defaultPongWait     = 60 * time.Second
	defaultSendBuffer   = 16
)

// Conn is a domain.Transport over a gorilla websocket. Writes are funnelled
// through a single writer goroutine; Send only enqueues.
type Conn struct {
	ws    *websocket.Conn
	clock clockwork.Clock

	writeTimeout time.Duration
	pingInterval time.Duration
	pongWait     time.Duration

	send     chan []byte
	done     chan struct{}
	failed   chan struct{} // closed by the writer after a failed write
	stopOnce sync.Once
	wg       sync.WaitGroup
}

type ConnOption func(*Conn)

func WithWriteTimeout(d time.Duration) ConnOption {
	return func(c *Conn) {
		if d > 0 {
			c.writeTimeout = d
		}
	}
}

func WithPingInterval(d time.Duration) ConnOption {
	return func(c *Conn) {
		if d > 0 {
			c.pingInterval = d
			c.pongWait = 2 * d
		}
	}
}

func WithSendBuffer(n int) ConnOption {
	return func(c *Conn) {
		if n > 0 {
			c.send = make(chan []byte, n)
		}
	}
}

// NewConn starts the writer goroutine for ws.
func NewConn(ws *websocket.Conn, clock clockwork.Clock, opts ...ConnOption) *Conn {
	c := &Conn{
		ws:           ws,
		clock:        clock,
		writeTimeout: defaultWriteTimeout,
		pingInterval: defaultPingInterval,
		pongWait:     defaultPongWait,
		send:         make(chan []byte, defaultSendBuffer),
		done:         make(chan struct{}),
		failed:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.configurePongHandler()
	c.wg.Add(1)
	go c.run()
	return c
}

// Send queues data for the writer. It never blocks: a full queue means the
// peer is not keeping up and is reported as domain.ErrSendBufferFull.
func (c *Conn) Send(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-c.done:
		return domain.ErrTransportClosed
	case <-c.failed:
		return fmt.Errorf("%w: writer stopped after a failed write", domain.ErrTransportClosed)
	default:
	}

	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return domain.ErrTransportClosed
	case <-c.failed:
		return fmt.Errorf("%w: writer stopped after a failed write", domain.ErrTransportClosed)
	default:
		return fmt.Errorf("%w (%d queued)", domain.ErrSendBufferFull, cap(c.send))
	}
}

// Close stops the writer, sends a normal close frame and closes the socket.
// Safe to call more than once and from any goroutine but the writer.
func (c *Conn) Close() error {
	var err error
	c.stopOnce.Do(func() {
		close(c.done)
		c.wg.Wait()

		select {
		case <-c.failed:
			return
		default:
		}

		closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		c.updateWriteDeadline()
		_ = c.ws.WriteMessage(websocket.CloseMessage, closeMsg)

		err = c.ws.Close()
	})
	return err
}

// ExtendReadDeadline is called by the read loop after every inbound frame.
func (c *Conn) ExtendReadDeadline() {
	c.updateReadDeadline()
}

func (c *Conn) run() {
	ticker := c.clock.NewTicker(c.pingInterval)
	defer ticker.Stop()
	defer c.wg.Done()

	for {
		select {
		case msg := <-c.send:
			c.updateWriteDeadline()
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.abort()
				return
			}
		case <-ticker.Chan():
			c.updateWriteDeadline()
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.abort()
				return
			}
		case <-c.done:
			return
		}
	}
}

// abort is the writer's exit on a failed write. Later sends fail fast, and
// closing the socket fails the read loop, which ends the session.
func (c *Conn) abort() {
	close(c.failed)
	_ = c.ws.Close()
}

func (c *Conn) configurePongHandler() {
	c.updateReadDeadline()
	c.ws.SetPongHandler(func(string) error {
		c.updateReadDeadline()
		return nil
	})
}

// Socket deadlines are absolute wall-clock times, so they use time.Now
// rather than the injected clock that drives the ping ticker.
func (c *Conn) updateWriteDeadline() {
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
}

func (c *Conn) updateReadDeadline() {
	_ = c.ws.SetReadDeadline(time.Now().Add(c.pongWait))
}
