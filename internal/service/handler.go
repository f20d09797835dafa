// ABOUTME: The capability handler contract every integration implements
// ABOUTME: Defines the validate/initialize/test/close surface and factory type

package service

import "context"

// Handler is the contract every capability integration implements. A handler
// instance is bound to one service id and is exclusively owned by the
// Manager: it is created only after a successful
// validate/initialize/test sequence and destroyed on disable, failed
// hot-update, or process shutdown.
type Handler interface {
	// ValidateConfig checks that required keys are present and non-empty.
	// It is pure: no I/O, no side effects.
	ValidateConfig(config map[string]string) bool

	// Initialize acquires the integration's native resources (HTTP session,
	// SDK client, file handle). On error nothing may remain acquired.
	Initialize(ctx context.Context) error

	// TestConnection performs one lightweight round-trip proving
	// reachability and credentials. It must not mutate remote state.
	TestConnection(ctx context.Context) error

	// UpdateConfig replaces the stored configuration without reinitializing.
	// Used only where hot-replacement of the whole handler is not required.
	UpdateConfig(config map[string]string)

	// Close releases all resources. Idempotent: safe to call when already
	// closed.
	Close() error
}

// Factory constructs an unvalidated, uninitialized handler for one service
// id. The Manager runs the full pipeline before the instance becomes visible.
type Factory func(serviceID string, config map[string]string) Handler
