// ABOUTME: Represents a single connected client and its text-frame transport.
// ABOUTME: Tracks connection timestamps and guards transport teardown.

package client

import (
	"sync"
	"time"
)

// Transport is the duplex text-frame channel a client is connected over.
// The registry owns the transport exclusively: once a connection is
// registered, all sends and the eventual close go through the registry.
type Transport interface {
	// SendText writes one text frame to the client.
	SendText(data []byte) error

	// Close tears down the channel. The reason is advisory and may be
	// relayed to the peer; implementations must tolerate repeated calls.
	Close(reason string) error
}

// Close reasons used throughout the registry.
const (
	ReasonDisconnect = "disconnect"
	ReasonSuperseded = "superseded"
	ReasonShutdown   = "shutdown"
	ReasonTimeout    = "timeout"
	ReasonEvicted    = "evicted"
)

// Connection represents a connected client with its transport.
type Connection struct {
	ID string

	transport Transport

	mu           sync.Mutex
	connectedAt  time.Time
	lastActivity time.Time
	closed       bool
}

func newConnection(id string, transport Transport, now time.Time) *Connection {
	return &Connection{
		ID:           id,
		transport:    transport,
		connectedAt:  now,
		lastActivity: now,
	}
}

// Send transmits a text frame to the client.
func (c *Connection) Send(data []byte) error {
	return c.transport.SendText(data)
}

// ConnectedAt returns the time the connection was registered.
func (c *Connection) ConnectedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectedAt
}

// LastActivity returns the time of the most recent liveness ping.
func (c *Connection) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity
}

// touch records liveness at the given instant.
func (c *Connection) touch(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastActivity = now
}

// close tears down the transport exactly once. Subsequent calls are no-ops.
func (c *Connection) close(reason string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	return c.transport.Close(reason)
}
