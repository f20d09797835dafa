// ABOUTME: Gateway orchestrator: wires registry, sampler, service manager,
// ABOUTME: and HTTP server, and owns startup and graceful shutdown

package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/2389/relay-gateway/internal/client"
	"github.com/2389/relay-gateway/internal/config"
	"github.com/2389/relay-gateway/internal/history"
	"github.com/2389/relay-gateway/internal/service"
	"github.com/2389/relay-gateway/internal/store"
)

// watchdogInterval is how often the registry scans for expired connections.
const watchdogInterval = 5 * time.Second

// Gateway is the top-level server. It owns every long-lived component and
// coordinates their lifecycles.
type Gateway struct {
	config  *config.Config
	logger  *slog.Logger
	metrics *Metrics

	registry     *client.Registry
	sampler      *history.Sampler
	manager      *service.Manager
	historyStore store.HistoryStore

	httpServer *http.Server
	startedAt  time.Time

	wg sync.WaitGroup
}

// New builds a gateway from configuration. Factories supplies one handler
// constructor per service id.
func New(cfg *config.Config, factories map[string]service.Factory, logger *slog.Logger) (*Gateway, error) {
	historyStore, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening history store: %w", err)
	}

	serviceStore, err := store.NewFileServiceStore(cfg.Services.ConfigPath)
	if err != nil {
		historyStore.Close()
		return nil, fmt.Errorf("opening service store: %w", err)
	}

	manager, err := service.NewManager(factories, serviceStore, logger)
	if err != nil {
		historyStore.Close()
		return nil, fmt.Errorf("loading service configs: %w", err)
	}

	registry := client.NewRegistry(logger)
	sampler := history.NewSampler(registry, historyStore,
		cfg.History.SampleInterval, cfg.History.Retention, logger)

	g := &Gateway{
		config:       cfg,
		logger:       logger.With("component", "gateway"),
		registry:     registry,
		sampler:      sampler,
		manager:      manager,
		historyStore: historyStore,
		startedAt:    time.Now(),
	}

	g.metrics = NewMetrics(registry.Count)
	sampler.OnSample(g.metrics.SamplesWritten.Inc)
	manager.OnTransition(func(serviceID, op string) {
		g.metrics.ServiceTransitions.WithLabelValues(serviceID, op).Inc()
	})

	g.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           g.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return g, nil
}

// routes builds the HTTP mux.
func (g *Gateway) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /ws", g.handleWebSocket)
	mux.HandleFunc("GET /ws/{id}", g.handleWebSocket)

	mux.HandleFunc("GET /api/status", g.handleStatus)
	mux.HandleFunc("GET /api/clients", g.handleListClients)
	mux.HandleFunc("DELETE /api/clients/{id}", g.handleEvictClient)
	mux.HandleFunc("GET /api/services", g.handleListServices)
	mux.HandleFunc("GET /api/services/{id}", g.handleGetService)
	mux.HandleFunc("PUT /api/services/{id}", g.handleUpdateService)

	mux.HandleFunc("GET /health", g.handleHealth)
	mux.HandleFunc("GET /health/ready", g.handleReady)

	if g.config.Metrics.Enabled {
		mux.Handle("GET "+g.config.Metrics.Path, g.metrics.Handler())
	}

	return mux
}

// startServer starts the HTTP (or HTTPS) listener, returning an error channel.
func (g *Gateway) startServer(ln net.Listener) chan error {
	errCh := make(chan error, 1)

	go func() {
		var err error
		if g.config.Server.SSLEnabled {
			g.logger.Info("HTTPS server listening", "addr", ln.Addr().String())
			err = g.httpServer.ServeTLS(ln, g.config.Server.SSLCertPath, g.config.Server.SSLKeyPath)
		} else {
			g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
			err = g.httpServer.Serve(ln)
		}
		if err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	return errCh
}

// startBackground launches the sampler and the liveness watchdog.
func (g *Gateway) startBackground(ctx context.Context) {
	g.wg.Add(2)
	go func() {
		defer g.wg.Done()
		g.sampler.Run(ctx)
	}()
	go func() {
		defer g.wg.Done()
		g.registry.RunWatchdog(ctx, g.config.Server.PingTimeout, watchdogInterval)
	}()
}

// waitForShutdownSignal waits for context cancellation or a server error.
func (g *Gateway) waitForShutdownSignal(ctx context.Context, errCh chan error) error {
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
		return nil
	case err := <-errCh:
		g.logger.Error("server error", "error", err)
		return err
	}
}

// Run starts the gateway and blocks until ctx is canceled or the server
// fails, then shuts everything down.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", g.config.Server.HTTPAddr, err)
	}

	bgCtx, cancelBg := context.WithCancel(ctx)
	defer cancelBg()

	g.manager.Restore(ctx)
	g.startBackground(bgCtx)

	errCh := g.startServer(ln)
	serverErr := g.waitForShutdownSignal(ctx, errCh)

	cancelBg()
	shutdownErr := g.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the original context is
// already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown stops the HTTP server, closes every live connection, tears down
// service handlers, and releases storage. Sampling has already been stopped
// by Run, so no partial history write can race the store close.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))

	g.registry.CloseAll(client.ReasonShutdown)
	g.manager.CloseAll()
	g.wg.Wait()

	errs = appendCloseError(errs, "store close", g.historyStore.Close())

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}
