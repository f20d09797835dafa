// ABOUTME: Shared gateway test harness plus Run/Shutdown lifecycle tests
// ABOUTME: Builds real gateways on temp storage with scripted service handlers

package gateway

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/relay-gateway/internal/config"
	"github.com/2389/relay-gateway/internal/service"
)

// stubHandler is a scriptable service handler for HTTP-level tests.
type stubHandler struct {
	initErr    error
	testErr    error
	closeCalls atomic.Int32
}

func (h *stubHandler) ValidateConfig(cfg map[string]string) bool { return cfg["token"] != "" }
func (h *stubHandler) Initialize(context.Context) error          { return h.initErr }
func (h *stubHandler) TestConnection(context.Context) error      { return h.testErr }
func (h *stubHandler) UpdateConfig(map[string]string)            {}
func (h *stubHandler) Close() error                              { h.closeCalls.Add(1); return nil }

type gatewayHarness struct {
	gw      *Gateway
	handler *stubHandler
}

func newTestGateway(t *testing.T, mutate func(*config.Config)) *gatewayHarness {
	t.Helper()

	dir := t.TempDir()
	cfg := config.Default()
	cfg.Server.HTTPAddr = "127.0.0.1:0"
	cfg.Database.Path = filepath.Join(dir, "history.db")
	cfg.Services.ConfigPath = filepath.Join(dir, "services_config.json")
	if mutate != nil {
		mutate(cfg)
	}

	h := &stubHandler{}
	factories := map[string]service.Factory{
		"fake": func(id string, c map[string]string) service.Handler { return h },
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gw, err := New(cfg, factories, logger)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = gw.Shutdown(ctx)
	})

	return &gatewayHarness{gw: gw, handler: h}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	h := newTestGateway(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.gw.Run(ctx) }()

	// Give the listener a moment to come up before asking it to stop.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunFailsOnBadListenAddr(t *testing.T) {
	h := newTestGateway(t, func(cfg *config.Config) {
		cfg.Server.HTTPAddr = "256.0.0.1:99999"
	})

	err := h.gw.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listening on")
}

func TestShutdownClosesEnabledHandlers(t *testing.T) {
	h := newTestGateway(t, nil)
	ctx := context.Background()

	require.NoError(t, h.gw.manager.Enable(ctx, "fake", map[string]string{"token": "x"}))

	require.NoError(t, h.gw.Shutdown(ctx))
	assert.Equal(t, int32(1), h.handler.closeCalls.Load())

	// Shutdown keeps the persisted enabled flag for the next boot.
	cfg, ok := h.gw.manager.Get("fake")
	require.True(t, ok)
	assert.True(t, cfg.Enabled)
}

func TestNewFailsOnUnwritableDatabase(t *testing.T) {
	cfg := config.Default()
	cfg.Database.Path = filepath.Join(t.TempDir(), "missing", "\x00bad", "history.db")
	cfg.Services.ConfigPath = filepath.Join(t.TempDir(), "services_config.json")

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	_, err := New(cfg, nil, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "opening history store")
}
