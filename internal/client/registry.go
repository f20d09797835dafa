// ABOUTME: Manages connected clients, handles registration, and fans out broadcasts.
// ABOUTME: Central coordinator for connection identity, liveness, and eviction.

package client

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrClientNotFound indicates the specified client was not found.
var ErrClientNotFound = errors.New("client not found")

// ClientInfo is a point-in-time view of one connection.
type ClientInfo struct {
	ID           string
	ConnectedAt  time.Time
	LastActivity time.Time
}

// Registry coordinates all connected clients. Client ids are unique at any
// instant: registering an id that is already present closes the previous
// connection first (last-writer-wins).
type Registry struct {
	conns  map[string]*Connection
	mu     sync.RWMutex
	logger *slog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewRegistry creates a new Registry instance.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		conns:  make(map[string]*Connection),
		logger: logger.With("component", "registry"),
		now:    time.Now,
	}
}

// Register installs a new client connection. If a connection with the same id
// already exists it is closed with reason "superseded" before the new one
// becomes visible.
func (r *Registry) Register(id string, transport Transport) *Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, exists := r.conns[id]; exists {
		r.logger.Warn("client superseded by new connection", "client_id", id)
		if err := prev.close(ReasonSuperseded); err != nil {
			r.logger.Warn("closing superseded connection", "client_id", id, "error", err)
		}
	}

	conn := newConnection(id, transport, r.now())
	r.conns[id] = conn
	r.logger.Info("client connected",
		"client_id", id,
		"total_clients", len(r.conns),
	)
	return conn
}

// Remove closes and removes a client connection. Removing an id that is not
// registered is a no-op.
func (r *Registry) Remove(id, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(id, reason)
}

// RemoveConn removes conn only if it is still the registered connection for
// its id. A connection that was superseded leaves its replacement untouched,
// so a stale read loop cannot evict the connection that replaced it.
func (r *Registry) RemoveConn(conn *Connection, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, exists := r.conns[conn.ID]; !exists || cur != conn {
		return
	}
	r.removeLocked(conn.ID, reason)
}

func (r *Registry) removeLocked(id, reason string) {
	conn, exists := r.conns[id]
	if !exists {
		return
	}

	delete(r.conns, id)
	if err := conn.close(reason); err != nil {
		r.logger.Warn("closing connection", "client_id", id, "error", err)
	}
	r.logger.Info("client disconnected",
		"client_id", id,
		"reason", reason,
		"total_clients", len(r.conns),
	)
}

// Evict force-disconnects one client by id.
// Returns ErrClientNotFound if the id is not registered.
func (r *Registry) Evict(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conns[id]; !exists {
		return ErrClientNotFound
	}
	r.removeLocked(id, ReasonEvicted)
	return nil
}

// Touch records liveness for a client. Returns false if the id is unknown.
// Called on receipt of a ping; the caller replies with exactly one pong.
func (r *Registry) Touch(id string) bool {
	r.mu.RLock()
	conn, ok := r.conns[id]
	r.mu.RUnlock()

	if !ok {
		return false
	}
	conn.touch(r.now())
	return true
}

// Broadcast sends a text frame to all active connections. Delivery is
// best-effort: a send failure is logged and does not abort delivery to the
// remaining clients, nor does it remove the failing connection.
func (r *Registry) Broadcast(payload []byte) {
	r.mu.RLock()
	conns := make([]*Connection, 0, len(r.conns))
	for _, conn := range r.conns {
		conns = append(conns, conn)
	}
	r.mu.RUnlock()

	for _, conn := range conns {
		if err := conn.Send(payload); err != nil {
			r.logger.Warn("broadcast send failed", "client_id", conn.ID, "error", err)
		}
	}
}

// Snapshot returns information about all connected clients.
func (r *Registry) Snapshot() []ClientInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]ClientInfo, 0, len(r.conns))
	for _, conn := range r.conns {
		infos = append(infos, ClientInfo{
			ID:           conn.ID,
			ConnectedAt:  conn.ConnectedAt(),
			LastActivity: conn.LastActivity(),
		})
	}
	return infos
}

// Count returns the number of currently registered clients.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Get retrieves a specific connection by id.
func (r *Registry) Get(id string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.conns[id]
	return conn, ok
}

// CloseAll closes every connection with the given reason. Used on shutdown.
func (r *Registry) CloseAll(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id := range r.conns {
		r.removeLocked(id, reason)
	}
}

// RunWatchdog closes connections whose last activity is older than timeout.
// It blocks until ctx is cancelled, checking at the given interval.
func (r *Registry) RunWatchdog(ctx context.Context, timeout, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info("liveness watchdog started", "timeout", timeout, "interval", interval)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("liveness watchdog stopped")
			return
		case <-ticker.C:
			r.closeExpired(timeout)
		}
	}
}

// closeExpired removes every connection silent for longer than timeout.
func (r *Registry) closeExpired(timeout time.Duration) {
	cutoff := r.now().Add(-timeout)

	r.mu.Lock()
	defer r.mu.Unlock()

	for id, conn := range r.conns {
		if conn.LastActivity().Before(cutoff) {
			r.logger.Warn("client exceeded ping timeout", "client_id", id, "timeout", timeout)
			r.removeLocked(id, ReasonTimeout)
		}
	}
}
