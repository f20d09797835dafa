// ABOUTME: Tests for the service lifecycle manager
// ABOUTME: Covers the enable pipeline, failure atomicity, disable idempotence, and hot-swap

package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/relay-gateway/internal/store"
)

// fakeHandler is a scriptable Handler for testing the pipeline.
type fakeHandler struct {
	mu sync.Mutex

	requiredKeys []string
	initErr      error
	testErr      error

	initialized bool
	tested      bool
	closeCalls  int
	config      map[string]string
}

func (f *fakeHandler) ValidateConfig(config map[string]string) bool {
	for _, key := range f.requiredKeys {
		if config[key] == "" {
			return false
		}
	}
	return true
}

func (f *fakeHandler) Initialize(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.initErr != nil {
		return f.initErr
	}
	f.initialized = true
	return nil
}

func (f *fakeHandler) TestConnection(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.testErr != nil {
		return f.testErr
	}
	f.tested = true
	return nil
}

func (f *fakeHandler) UpdateConfig(config map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.config = config
}

func (f *fakeHandler) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls++
	return nil
}

func (f *fakeHandler) closes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeCalls
}

// handlerScript produces fakeHandlers and remembers every instance created.
type handlerScript struct {
	mu           sync.Mutex
	requiredKeys []string
	initErr      error
	testErr      error
	created      []*fakeHandler
}

func (s *handlerScript) factory(string, map[string]string) Handler {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := &fakeHandler{requiredKeys: s.requiredKeys, initErr: s.initErr, testErr: s.testErr}
	s.created = append(s.created, h)
	return h
}

func (s *handlerScript) instances() []*fakeHandler {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*fakeHandler, len(s.created))
	copy(out, s.created)
	return out
}

func newTestManager(t *testing.T, factories map[string]Factory) (*Manager, *store.MemoryServiceStore) {
	t.Helper()
	ss := store.NewMemoryServiceStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m, err := NewManager(factories, ss, logger)
	require.NoError(t, err)
	return m, ss
}

func TestManager_EnableSuccess(t *testing.T) {
	script := &handlerScript{requiredKeys: []string{"token"}}
	m, ss := newTestManager(t, map[string]Factory{"tracker": script.factory})

	cfg := map[string]string{"token": "secret"}
	require.NoError(t, m.Enable(context.Background(), "tracker", cfg))

	h, ok := m.Handler("tracker")
	require.True(t, ok, "handler not published after successful enable")
	fh := h.(*fakeHandler)
	assert.True(t, fh.initialized)
	assert.True(t, fh.tested)

	persisted, ok := ss.Get("tracker")
	require.True(t, ok)
	assert.True(t, persisted.Enabled)
	assert.Equal(t, cfg, persisted.Config)
}

func TestManager_EnableUnknownService(t *testing.T) {
	m, ss := newTestManager(t, map[string]Factory{})

	err := m.Enable(context.Background(), "mystery", map[string]string{})
	require.ErrorIs(t, err, ErrUnknownService)

	_, ok := ss.Get("mystery")
	assert.False(t, ok, "failed enable must not persist anything")
}

func TestManager_EnableInvalidConfig(t *testing.T) {
	script := &handlerScript{requiredKeys: []string{"token"}}
	m, ss := newTestManager(t, map[string]Factory{"tracker": script.factory})

	err := m.Enable(context.Background(), "tracker", map[string]string{})
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, ok := m.Handler("tracker")
	assert.False(t, ok)
	persisted, ok := ss.Get("tracker")
	assert.False(t, ok, "persisted state changed on validation failure: %+v", persisted)
}

func TestManager_EnableInitFailureClosesHandler(t *testing.T) {
	script := &handlerScript{initErr: errors.New("no network")}
	m, _ := newTestManager(t, map[string]Factory{"tracker": script.factory})

	err := m.Enable(context.Background(), "tracker", map[string]string{})
	require.ErrorIs(t, err, ErrInitFailed)

	instances := script.instances()
	require.Len(t, instances, 1)
	assert.Equal(t, 1, instances[0].closes(), "partially constructed handler must be closed")
	_, ok := m.Handler("tracker")
	assert.False(t, ok)
}

func TestManager_EnableTestFailureLeavesNoHandler(t *testing.T) {
	script := &handlerScript{testErr: errors.New("401 unauthorized")}
	m, ss := newTestManager(t, map[string]Factory{"tracker": script.factory})

	err := m.Enable(context.Background(), "tracker", map[string]string{"token": "bad"})
	require.ErrorIs(t, err, ErrConnectionTest)

	_, ok := m.Handler("tracker")
	assert.False(t, ok, "handler visible despite failed connection test")

	instances := script.instances()
	require.Len(t, instances, 1)
	assert.Equal(t, 1, instances[0].closes())

	_, ok = ss.Get("tracker")
	assert.False(t, ok)
}

func TestManager_EnableFailureLeavesPriorStateUntouched(t *testing.T) {
	script := &handlerScript{requiredKeys: []string{"token"}}
	m, ss := newTestManager(t, map[string]Factory{"tracker": script.factory})

	good := map[string]string{"token": "secret"}
	require.NoError(t, m.Enable(context.Background(), "tracker", good))

	err := m.Enable(context.Background(), "tracker", map[string]string{})
	require.ErrorIs(t, err, ErrInvalidConfig)

	// Old handler still serving, old config still persisted.
	h, ok := m.Handler("tracker")
	require.True(t, ok)
	assert.Equal(t, 0, h.(*fakeHandler).closes())

	persisted, ok := ss.Get("tracker")
	require.True(t, ok)
	assert.True(t, persisted.Enabled)
	assert.Equal(t, good, persisted.Config)
}

func TestManager_DisableIdempotent(t *testing.T) {
	script := &handlerScript{}
	m, ss := newTestManager(t, map[string]Factory{"tracker": script.factory})

	require.NoError(t, m.Enable(context.Background(), "tracker", map[string]string{}))
	require.NoError(t, m.Disable(context.Background(), "tracker"))
	require.NoError(t, m.Disable(context.Background(), "tracker"))

	instances := script.instances()
	require.Len(t, instances, 1)
	assert.Equal(t, 1, instances[0].closes(), "Close must be invoked exactly once")

	persisted, ok := ss.Get("tracker")
	require.True(t, ok)
	assert.False(t, persisted.Enabled)
}

func TestManager_DisableUnknownIsNoOp(t *testing.T) {
	m, ss := newTestManager(t, map[string]Factory{})
	require.NoError(t, m.Disable(context.Background(), "never-enabled"))
	_, ok := ss.Get("never-enabled")
	assert.False(t, ok)
}

func TestManager_DisablePersistFailureKeepsHandlerLive(t *testing.T) {
	script := &handlerScript{}
	m, ss := newTestManager(t, map[string]Factory{"tracker": script.factory})

	require.NoError(t, m.Enable(context.Background(), "tracker", map[string]string{}))

	ss.SaveErr = errors.New("disk full")
	require.Error(t, m.Disable(context.Background(), "tracker"))

	// The handler stays live and the persisted flag stays enabled, so the
	// two views never disagree on an error path.
	_, ok := m.Handler("tracker")
	assert.True(t, ok, "handler dropped despite persistence failure")
	instances := script.instances()
	require.Len(t, instances, 1)
	assert.Equal(t, 0, instances[0].closes())
	persisted, pok := ss.Get("tracker")
	require.True(t, pok)
	assert.True(t, persisted.Enabled)

	// Once the store recovers, disable completes normally.
	ss.SaveErr = nil
	require.NoError(t, m.Disable(context.Background(), "tracker"))
	assert.Equal(t, 1, instances[0].closes())
	persisted, pok = ss.Get("tracker")
	require.True(t, pok)
	assert.False(t, persisted.Enabled)
}

func TestManager_ApplyUnknownServiceRejected(t *testing.T) {
	m, ss := newTestManager(t, map[string]Factory{})

	for _, enabled := range []bool{true, false} {
		err := m.Apply(context.Background(), "ghost", enabled, map[string]string{"junk": "x"})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnknownService)
	}

	// Nothing was persisted for the unknown id.
	_, ok := ss.Get("ghost")
	assert.False(t, ok)
	assert.Equal(t, 0, ss.Saves)
}

func TestManager_UpdateConfigHotSwap(t *testing.T) {
	script := &handlerScript{requiredKeys: []string{"token"}}
	m, ss := newTestManager(t, map[string]Factory{"tracker": script.factory})

	require.NoError(t, m.Enable(context.Background(), "tracker", map[string]string{"token": "old"}))
	require.NoError(t, m.UpdateConfig(context.Background(), "tracker", map[string]string{"token": "new"}))

	instances := script.instances()
	require.Len(t, instances, 2, "hot-swap must build a new handler instance")
	assert.Equal(t, 1, instances[0].closes(), "old handler closed after swap")
	assert.Equal(t, 0, instances[1].closes())

	h, ok := m.Handler("tracker")
	require.True(t, ok)
	assert.Same(t, instances[1], h.(*fakeHandler))

	persisted, _ := ss.Get("tracker")
	assert.Equal(t, map[string]string{"token": "new"}, persisted.Config)
}

func TestManager_UpdateConfigFailureKeepsOldHandler(t *testing.T) {
	script := &handlerScript{requiredKeys: []string{"token"}}
	m, ss := newTestManager(t, map[string]Factory{"tracker": script.factory})

	require.NoError(t, m.Enable(context.Background(), "tracker", map[string]string{"token": "old"}))

	// New config fails validation: the full pipeline re-runs on update.
	err := m.UpdateConfig(context.Background(), "tracker", map[string]string{})
	require.ErrorIs(t, err, ErrInvalidConfig)

	instances := script.instances()
	h, ok := m.Handler("tracker")
	require.True(t, ok)
	assert.Same(t, instances[0], h.(*fakeHandler), "old handler must keep serving")
	assert.Equal(t, 0, instances[0].closes())

	persisted, _ := ss.Get("tracker")
	assert.Equal(t, map[string]string{"token": "old"}, persisted.Config)
}

func TestManager_UpdateConfigWhileDisabledPersistsOnly(t *testing.T) {
	script := &handlerScript{}
	m, ss := newTestManager(t, map[string]Factory{"tracker": script.factory})

	require.NoError(t, m.UpdateConfig(context.Background(), "tracker", map[string]string{"token": "t"}))

	assert.Empty(t, script.instances(), "no handler may be built for a disabled service")
	persisted, ok := ss.Get("tracker")
	require.True(t, ok)
	assert.False(t, persisted.Enabled)
	assert.Equal(t, map[string]string{"token": "t"}, persisted.Config)
}

func TestManager_PersistFailureRollsBack(t *testing.T) {
	script := &handlerScript{}
	ss := store.NewMemoryServiceStore()
	ss.SaveErr = errors.New("disk full")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m, err := NewManager(map[string]Factory{"tracker": script.factory}, ss, logger)
	require.NoError(t, err)

	err = m.Enable(context.Background(), "tracker", map[string]string{})
	require.Error(t, err)

	_, ok := m.Handler("tracker")
	assert.False(t, ok, "handler published despite persistence failure")
	instances := script.instances()
	require.Len(t, instances, 1)
	assert.Equal(t, 1, instances[0].closes())
}

func TestManager_Restore(t *testing.T) {
	good := &handlerScript{}
	bad := &handlerScript{testErr: errors.New("gone")}

	ss := store.NewMemoryServiceStore()
	require.NoError(t, ss.Save(map[string]store.ServiceConfig{
		"good": {Enabled: true, Config: map[string]string{}},
		"bad":  {Enabled: true, Config: map[string]string{}},
		"off":  {Enabled: false, Config: map[string]string{}},
	}))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m, err := NewManager(map[string]Factory{"good": good.factory, "bad": bad.factory}, ss, logger)
	require.NoError(t, err)

	m.Restore(context.Background())

	_, ok := m.Handler("good")
	assert.True(t, ok)
	_, ok = m.Handler("bad")
	assert.False(t, ok)

	persisted, _ := ss.Get("bad")
	assert.False(t, persisted.Enabled, "unrestorable service must be persisted disabled")
	assert.Equal(t, 0, good.instances()[0].closes())
}

func TestManager_CloseAll(t *testing.T) {
	s1 := &handlerScript{}
	s2 := &handlerScript{}
	m, ss := newTestManager(t, map[string]Factory{"a": s1.factory, "b": s2.factory})

	require.NoError(t, m.Enable(context.Background(), "a", map[string]string{}))
	require.NoError(t, m.Enable(context.Background(), "b", map[string]string{}))

	m.CloseAll()

	assert.Equal(t, 1, s1.instances()[0].closes())
	assert.Equal(t, 1, s2.instances()[0].closes())
	_, ok := m.Handler("a")
	assert.False(t, ok)

	// Configs stay enabled so the services come back on restart.
	persisted, _ := ss.Get("a")
	assert.True(t, persisted.Enabled)
}

func TestManager_ConcurrentDifferentIDs(t *testing.T) {
	s1 := &handlerScript{}
	s2 := &handlerScript{}
	m, _ := newTestManager(t, map[string]Factory{"a": s1.factory, "b": s2.factory})

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = m.Enable(context.Background(), "a", map[string]string{})
			_ = m.Disable(context.Background(), "a")
		}()
		go func() {
			defer wg.Done()
			_ = m.Enable(context.Background(), "b", map[string]string{})
			_ = m.Disable(context.Background(), "b")
		}()
	}
	wg.Wait()

	// Every instance ever created must end up closed exactly once.
	for _, h := range append(s1.instances(), s2.instances()...) {
		assert.Equal(t, 1, h.closes())
	}
}
