// Package client manages live connections from streaming clients.
//
// # Overview
//
// The client package handles the lifecycle of connected clients: registration
// under a caller-supplied id, liveness tracking, best-effort broadcast, and
// eviction. The Registry is the single owner of every connection's transport;
// nothing else closes or writes to a transport once it has been registered.
//
// # Registry
//
// The Registry tracks all connected clients:
//
//	reg := client.NewRegistry(logger)
//
// Key operations:
//
//   - Register(id, transport): install a connection; an existing connection
//     with the same id is closed with reason "superseded" first
//   - Remove(id, reason): close and drop a connection (no-op if absent)
//   - Touch(id): record liveness on receipt of a ping
//   - Broadcast(payload): best-effort fan-out to every client
//   - Snapshot() / Count(): observability reads
//   - Evict(id): force-disconnect via the API
//
// # Connection lifecycle
//
// A connection is Active from Register until it is closed, and closing is
// terminal. The close reason ("disconnect", "superseded", "shutdown",
// "timeout", "evicted") records why it exited; there are no intermediate
// states.
//
// # Liveness watchdog
//
// RunWatchdog periodically closes connections that have been silent for
// longer than the configured ping timeout. It is started by the gateway as a
// background goroutine and stops when its context is cancelled.
package client
