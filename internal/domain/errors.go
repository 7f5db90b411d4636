package domain

import "errors"

var (
	ErrConnectionDead    = errors.New("connection is dead")
	ErrUnknownConnection = errors.New("unknown connection")
	ErrTransportClosed   = errors.New("transport closed")
	ErrSendBufferFull    = errors.New("send buffer full")
)
