// Package registry owns the set of live connections and the room index.
//
// Both aggregates are mutex-guarded and hand out point-in-time snapshots so a
// broadcast can iterate its targets without holding a lock across a send.
// Lock order is Registry then Rooms; Rooms never calls back into the Registry.
package registry
