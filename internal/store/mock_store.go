// ABOUTME: In-memory implementations of the store interfaces for testing
// ABOUTME: MemoryHistoryStore and MemoryServiceStore mirror the persistence contracts

package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryHistoryStore is an in-memory HistoryStore for tests.
type MemoryHistoryStore struct {
	mu      sync.Mutex
	samples []Sample

	// AppendErr, when set, is returned by AppendSample.
	AppendErr error
}

// NewMemoryHistoryStore creates an empty in-memory history store.
func NewMemoryHistoryStore() *MemoryHistoryStore {
	return &MemoryHistoryStore{}
}

// AppendSample records one sample.
func (m *MemoryHistoryStore) AppendSample(_ context.Context, s Sample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AppendErr != nil {
		return m.AppendErr
	}
	m.samples = append(m.samples, s)
	return nil
}

// SamplesSince returns all samples at or after cutoff, ascending.
func (m *MemoryHistoryStore) SamplesSince(_ context.Context, cutoff time.Time) ([]Sample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Sample
	for _, s := range m.samples {
		if !s.Timestamp.Before(cutoff) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// PruneBefore drops all samples older than cutoff.
func (m *MemoryHistoryStore) PruneBefore(_ context.Context, cutoff time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.samples[:0]
	for _, s := range m.samples {
		if !s.Timestamp.Before(cutoff) {
			kept = append(kept, s)
		}
	}
	m.samples = kept
	return nil
}

// Close is a no-op.
func (m *MemoryHistoryStore) Close() error { return nil }

// Len returns the number of stored samples.
func (m *MemoryHistoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.samples)
}

// MemoryServiceStore is an in-memory ServiceStore for tests.
type MemoryServiceStore struct {
	mu      sync.Mutex
	configs map[string]ServiceConfig

	// SaveErr, when set, is returned by Save.
	SaveErr error

	// Saves counts successful Save calls.
	Saves int
}

// NewMemoryServiceStore creates an empty in-memory service store.
func NewMemoryServiceStore() *MemoryServiceStore {
	return &MemoryServiceStore{configs: map[string]ServiceConfig{}}
}

// Load returns a copy of the stored configs.
func (m *MemoryServiceStore) Load() (map[string]ServiceConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]ServiceConfig, len(m.configs))
	for id, cfg := range m.configs {
		out[id] = cfg
	}
	return out, nil
}

// Save replaces the stored configs with a copy of the given map.
func (m *MemoryServiceStore) Save(configs map[string]ServiceConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.configs = make(map[string]ServiceConfig, len(configs))
	for id, cfg := range configs {
		m.configs[id] = cfg
	}
	m.Saves++
	return nil
}

// Get returns the stored config for one service id.
func (m *MemoryServiceStore) Get(id string) (ServiceConfig, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg, ok := m.configs[id]
	return cfg, ok
}
