// ABOUTME: Error taxonomy for service lifecycle transitions
// ABOUTME: Sentinel errors checked with errors.Is at the API boundary

package service

import "errors"

var (
	// ErrUnknownService indicates no handler factory is registered for the id.
	ErrUnknownService = errors.New("unknown service")

	// ErrInvalidConfig indicates required configuration fields are missing or
	// empty. No state was changed.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInitFailed indicates handler construction was aborted during
	// resource acquisition. Any partially acquired resource was released.
	ErrInitFailed = errors.New("initialization failed")

	// ErrConnectionTest indicates the handler's reachability check failed.
	// The handler was closed and no state was changed.
	ErrConnectionTest = errors.New("connection test failed")
)
