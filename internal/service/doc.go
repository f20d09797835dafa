// Package service manages the lifecycle of capability integrations.
//
// # Overview
//
// A "service" is a pluggable integration (issue tracker, chat poster, file
// store, VM manager, editor bridge) identified by a string id and implemented
// behind the Handler contract. The Manager owns per-service configuration and
// at most one live handler instance per id, and drives every transition
// through the same guarded pipeline:
//
//	Disabled -> Validating -> Initializing -> TestingConnection -> Enabled
//
// A failure at any step aborts back to Disabled, releasing whatever the
// handler had acquired. Enabled -> Disabled happens only via an explicit
// Disable (or process shutdown).
//
// # Handler construction
//
// Handlers are built from a factory map keyed by service id (a tagged
// factory registry, not inheritance). The Manager never publishes a handler
// that has not passed ValidateConfig, Initialize, and TestConnection in that
// order, so an instance is externally visible strictly after all three
// succeed.
//
// # Hot-swap
//
// Updating an enabled service's config always re-runs the full pipeline
// against a brand-new handler; the old handler keeps serving until the new
// one passes, and is closed only after the swap is persisted. A failed
// update leaves the old handler serving unchanged.
//
// # Persistence
//
// The persisted config document is flushed atomically after every successful
// transition, so enabled=true in the document always corresponds to a live
// handler at runtime (Restore re-establishes this after a restart).
//
// # Concurrency
//
// Operations on the same service id are mutually exclusive via a per-id
// lock; operations on different ids proceed independently. The manager's own
// mutex is never held across handler network calls.
package service
