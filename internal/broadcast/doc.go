// Package broadcast delivers messages to one connection, one room, or everyone.
//
// Every pass iterates a snapshot taken from the registry or room index, so no lock is held while a
// transport send blocks. Failed targets are collected during the pass and evicted once it finishes.
// Heartbeats runs one supervised heartbeat task per connection, bound to the connection's lifetime.
package broadcast
