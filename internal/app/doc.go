// Package app provides the application service layer.
//
// Service is the facade over the fan-out core: it owns the registry, room index, broadcaster,
// heartbeat supervisor and event log, and implements the websocket session flows and the inbound
// frame router on top of them. Transports and HTTP handlers depend on Service, never on the core
// packages directly.
package app
