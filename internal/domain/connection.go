package domain

import (
	"context"

	"github.com/google/uuid"
)

// Transport is the outbound half of a long-lived client connection.
// Send must be safe for concurrent use. Close must be idempotent.
type Transport interface {
	Send(ctx context.Context, data []byte) error
	Close() error
}

// ConnectionState is the liveness state of a registered connection.
type ConnectionState int

const (
	ConnectionActive ConnectionState = iota
	ConnectionClosed
)

func (s ConnectionState) String() string {
	switch s {
	case ConnectionActive:
		return "active"
	case ConnectionClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Connection is the handle returned when a transport is registered.
// Context is cancelled exactly when the connection is unregistered, which
// binds per-connection tasks (heartbeat, stream session) to its lifetime.
type Connection struct {
	ID  uuid.UUID
	ctx context.Context
}

// NewConnection pairs an identifier with its lifetime context.
func NewConnection(id uuid.UUID, ctx context.Context) Connection {
	return Connection{ID: id, ctx: ctx}
}

// Context returns the lifetime context of the connection.
func (c Connection) Context() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

// State reports whether the connection is still registered.
func (c Connection) State() ConnectionState {
	if c.Context().Err() != nil {
		return ConnectionClosed
	}
	return ConnectionActive
}
