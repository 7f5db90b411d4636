// Package stream produces lazy, cancellable sequences of server-sent events.
//
// A Session replays retained events from the event log, greets the client, then appends and yields a
// generated update on every tick. A Feed is the log-independent variant used for per-user
// notifications and the stock ticker. Both stop ticking as soon as the context is cancelled or the
// consumer stops iterating.
package stream
