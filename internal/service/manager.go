// ABOUTME: Manages per-service configuration and the single live handler per service id.
// ABOUTME: Drives validate/initialize/test transitions with per-id mutual exclusion.

package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/2389/relay-gateway/internal/store"
)

// Manager owns the persisted service configs and at most one live handler
// instance per service id. Every transition is all-or-nothing: the persisted
// config is flushed only after the transition succeeds, and a failed
// transition leaves both the prior persisted state and any prior live handler
// untouched.
type Manager struct {
	factories map[string]Factory
	store     store.ServiceStore
	logger    *slog.Logger

	// mu guards configs, handlers, and locks. Held only for map access and
	// persistence, never across handler network calls.
	mu       sync.Mutex
	configs  map[string]store.ServiceConfig
	handlers map[string]Handler

	// locks serializes operations per service id so concurrent
	// enable/disable/update calls for one id cannot race.
	locks map[string]*sync.Mutex

	// onTransition, when set, is invoked after each successful transition.
	onTransition func(serviceID, op string)
}

// NewManager creates a Manager with the given handler factories, loading any
// previously persisted service configs.
func NewManager(factories map[string]Factory, ss store.ServiceStore, logger *slog.Logger) (*Manager, error) {
	configs, err := ss.Load()
	if err != nil {
		return nil, fmt.Errorf("loading service configs: %w", err)
	}

	return &Manager{
		factories: factories,
		store:     ss,
		logger:    logger.With("component", "services"),
		configs:   configs,
		handlers:  make(map[string]Handler),
		locks:     make(map[string]*sync.Mutex),
	}, nil
}

// OnTransition registers a callback invoked after every successful lifecycle
// transition with the service id and operation ("enable", "disable", "update").
func (m *Manager) OnTransition(fn func(serviceID, op string)) {
	m.onTransition = fn
}

// idLock returns the mutex serializing operations for one service id.
func (m *Manager) idLock(id string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.locks[id]
	if !ok {
		l = &sync.Mutex{}
		m.locks[id] = l
	}
	return l
}

// buildHandler runs the full validate/initialize/test pipeline for a fresh
// handler instance. On any failure the partially constructed handler is
// closed and a typed error is returned; nothing is published.
func (m *Manager) buildHandler(ctx context.Context, id string, config map[string]string) (Handler, error) {
	factory, ok := m.factories[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownService, id)
	}

	h := factory(id, config)

	if !h.ValidateConfig(config) {
		return nil, fmt.Errorf("%w for service %q", ErrInvalidConfig, id)
	}

	if err := h.Initialize(ctx); err != nil {
		m.closeHandler(id, h)
		return nil, fmt.Errorf("%w for service %q: %v", ErrInitFailed, id, err)
	}

	if err := h.TestConnection(ctx); err != nil {
		m.closeHandler(id, h)
		return nil, fmt.Errorf("%w for service %q: %v", ErrConnectionTest, id, err)
	}

	return h, nil
}

// Enable runs the full pipeline and, only after every step succeeds,
// publishes the handler as the active instance for id and persists
// enabled=true with the given config. If the service is already enabled this
// is a hot-swap: the previous handler keeps serving until the new one has
// passed the pipeline.
func (m *Manager) Enable(ctx context.Context, id string, config map[string]string) error {
	lock := m.idLock(id)
	lock.Lock()
	defer lock.Unlock()

	return m.enableLocked(ctx, id, config)
}

func (m *Manager) enableLocked(ctx context.Context, id string, config map[string]string) error {
	if config == nil {
		config = map[string]string{}
	}

	h, err := m.buildHandler(ctx, id, config)
	if err != nil {
		m.logger.Warn("service transition failed", "service_id", id, "error", err)
		return err
	}

	m.mu.Lock()
	prev := m.handlers[id]
	if err := m.persistLocked(id, store.ServiceConfig{Enabled: true, Config: config}); err != nil {
		m.mu.Unlock()
		m.closeHandler(id, h)
		return err
	}
	m.handlers[id] = h
	m.mu.Unlock()

	op := "enable"
	if prev != nil {
		op = "update"
		m.closeHandler(id, prev)
	}

	m.logger.Info("service enabled", "service_id", id, "op", op)
	m.notify(id, op)
	return nil
}

// Disable persists enabled=false and then closes and drops the live
// handler, if any. Calling Disable on an already-disabled service is a
// no-op.
func (m *Manager) Disable(ctx context.Context, id string) error {
	lock := m.idLock(id)
	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	h := m.handlers[id]
	cfg, exists := m.configs[id]
	if h == nil && (!exists || !cfg.Enabled) {
		m.mu.Unlock()
		return nil
	}

	cfg.Enabled = false
	if cfg.Config == nil {
		cfg.Config = map[string]string{}
	}
	if err := m.persistLocked(id, cfg); err != nil {
		// The handler keeps serving: enabled stays true in both the
		// persisted and the live view, never only one of them.
		m.mu.Unlock()
		return err
	}
	delete(m.handlers, id)
	m.mu.Unlock()

	if h != nil {
		m.closeHandler(id, h)
	}

	m.logger.Info("service disabled", "service_id", id)
	m.notify(id, "disable")
	return nil
}

// UpdateConfig replaces an enabled service's configuration by running the
// full pipeline against a new handler instance. Only on success is the old
// handler closed and the new one installed and persisted; on failure the
// previously active handler continues serving unchanged. For a service that
// is not currently enabled, the new config is persisted with enabled left
// false and no handler is created.
func (m *Manager) UpdateConfig(ctx context.Context, id string, config map[string]string) error {
	lock := m.idLock(id)
	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	_, live := m.handlers[id]
	m.mu.Unlock()

	if live {
		return m.enableLocked(ctx, id, config)
	}

	if config == nil {
		config = map[string]string{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.persistLocked(id, store.ServiceConfig{Enabled: false, Config: config}); err != nil {
		return err
	}
	m.logger.Info("service config updated", "service_id", id, "enabled", false)
	return nil
}

// Apply routes an API-level config write to the right transition. An id
// with no registered factory is rejected before anything is persisted, so a
// disable or config write cannot create state for a service that does not
// exist.
func (m *Manager) Apply(ctx context.Context, id string, enabled bool, config map[string]string) error {
	if _, ok := m.factories[id]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownService, id)
	}
	if enabled {
		return m.Enable(ctx, id, config)
	}
	if err := m.Disable(ctx, id); err != nil {
		return err
	}
	if config != nil {
		return m.UpdateConfig(ctx, id, config)
	}
	return nil
}

// persistLocked flushes one service's config through the store. Caller holds
// m.mu. On store failure the in-memory map is left unchanged.
func (m *Manager) persistLocked(id string, cfg store.ServiceConfig) error {
	next := make(map[string]store.ServiceConfig, len(m.configs)+1)
	for k, v := range m.configs {
		next[k] = v
	}
	next[id] = cfg

	if err := m.store.Save(next); err != nil {
		return fmt.Errorf("persisting service config for %q: %w", id, err)
	}
	m.configs = next
	return nil
}

// closeHandler closes a handler, logging rather than propagating the error:
// close failures never abort a transition that has already been decided.
func (m *Manager) closeHandler(id string, h Handler) {
	if err := h.Close(); err != nil {
		m.logger.Warn("closing service handler", "service_id", id, "error", err)
	}
}

func (m *Manager) notify(id, op string) {
	if m.onTransition != nil {
		m.onTransition(id, op)
	}
}

// Get returns the persisted config for one service id.
func (m *Manager) Get(id string) (store.ServiceConfig, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfg, ok := m.configs[id]
	return cfg, ok
}

// All returns a copy of every persisted service config.
func (m *Manager) All() map[string]store.ServiceConfig {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]store.ServiceConfig, len(m.configs))
	for id, cfg := range m.configs {
		out[id] = cfg
	}
	return out
}

// Handler returns the live handler for a service id, if one is active.
func (m *Manager) Handler(id string) (Handler, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.handlers[id]
	return h, ok
}

// Known reports whether a handler factory is registered for the id.
func (m *Manager) Known(id string) bool {
	_, ok := m.factories[id]
	return ok
}

// Restore re-enables every service persisted as enabled, running the full
// pipeline for each. A service that fails to come back is persisted as
// disabled so the enabled flag never outlives its handler.
func (m *Manager) Restore(ctx context.Context) {
	for id, cfg := range m.All() {
		if !cfg.Enabled {
			continue
		}
		if err := m.Enable(ctx, id, cfg.Config); err != nil {
			m.logger.Warn("service did not restore, disabling", "service_id", id, "error", err)
			if derr := m.Disable(ctx, id); derr != nil {
				m.logger.Error("disabling unrestorable service", "service_id", id, "error", derr)
			}
		}
	}
}

// CloseAll closes every live handler. Used on shutdown; persisted configs are
// left as they are so enabled services come back on restart.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	handlers := make(map[string]Handler, len(m.handlers))
	for id, h := range m.handlers {
		handlers[id] = h
		delete(m.handlers, id)
	}
	m.mu.Unlock()

	for id, h := range handlers {
		m.closeHandler(id, h)
	}
}
