// ABOUTME: Store interfaces and data types for relay-gateway persistence
// ABOUTME: Defines history samples, service configs, and their storage contracts

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// Sample is one timestamped snapshot of the live connection count.
type Sample struct {
	Timestamp   time.Time
	Connections int
}

// ServiceConfig is the persisted configuration for one capability service.
type ServiceConfig struct {
	Enabled bool              `json:"enabled"`
	Config  map[string]string `json:"config"`
}

// HistoryStore persists connection-count samples. Samples are append-only and
// time-ordered; readers always receive them in ascending timestamp order.
type HistoryStore interface {
	// AppendSample records one sample.
	AppendSample(ctx context.Context, s Sample) error

	// SamplesSince returns all samples with Timestamp >= cutoff, ascending.
	SamplesSince(ctx context.Context, cutoff time.Time) ([]Sample, error)

	// PruneBefore deletes all samples with Timestamp < cutoff.
	PruneBefore(ctx context.Context, cutoff time.Time) error

	// Close releases any resources held by the store
	Close() error
}

// ServiceStore persists the full service-config document. Save must be
// atomic: a crash mid-write never yields a truncated document.
type ServiceStore interface {
	// Load reads all persisted service configs. A missing document is not
	// an error; it loads as an empty map.
	Load() (map[string]ServiceConfig, error)

	// Save rewrites the whole document.
	Save(configs map[string]ServiceConfig) error
}
