// ABOUTME: Websocket endpoint: upgrade, registry handoff, and the read loop
// ABOUTME: Implements the ping/pong liveness protocol and message echo

package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/2389/relay-gateway/internal/client"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Clients are trusted local tooling; origin is not an auth boundary here.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsTransport adapts a gorilla connection to the registry's Transport.
// Gorilla permits one concurrent writer, hence the mutex.
type wsTransport struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (t *wsTransport) SendText(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *wsTransport) Close(reason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	_ = t.conn.WriteMessage(websocket.CloseMessage, msg)
	return t.conn.Close()
}

var (
	pongMessage         = []byte(`{"type": "pong"}`)
	invalidJSONMessage  = []byte(`{"error": "Invalid JSON format"}`)
	pingMessagePlain    = "ping"
	pingMessageTypeName = "ping"
)

// handleWebSocket upgrades the connection, registers it under the client id
// from the path (or a fresh UUID), and runs the read loop until the peer
// disconnects or the registry closes the connection.
func (g *Gateway) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if g.config.Server.MaxConnections > 0 && g.registry.Count() >= g.config.Server.MaxConnections {
		http.Error(w, "connection limit reached", http.StatusServiceUnavailable)
		return
	}

	clientID := r.PathValue("id")
	if clientID == "" {
		clientID = uuid.New().String()
	}

	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		g.logger.Warn("websocket upgrade failed", "client_id", clientID, "error", err)
		return
	}

	transport := &wsTransport{conn: wsConn}
	conn := g.registry.Register(clientID, transport)
	g.logger.Info("client connected", "client_id", clientID)

	g.readLoop(clientID, conn, wsConn)
}

func (g *Gateway) readLoop(clientID string, conn *client.Connection, wsConn *websocket.Conn) {
	defer g.registry.RemoveConn(conn, client.ReasonDisconnect)

	for {
		msgType, data, err := wsConn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				g.logger.Warn("client read error", "client_id", clientID, "error", err)
			} else {
				g.logger.Info("client disconnected", "client_id", clientID)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		g.metrics.MessagesReceived.Inc()

		if err := g.handleMessage(clientID, conn, data); err != nil {
			g.logger.Warn("client send failed", "client_id", clientID, "error", err)
			return
		}
	}
}

// handleMessage applies the wire protocol to one inbound frame. Malformed
// JSON gets an error reply without closing the connection.
func (g *Gateway) handleMessage(clientID string, conn *client.Connection, data []byte) error {
	if string(data) == pingMessagePlain {
		g.registry.Touch(clientID)
		return conn.Send(pongMessage)
	}

	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		return conn.Send(invalidJSONMessage)
	}

	if t, ok := msg["type"].(string); ok && t == pingMessageTypeName {
		g.registry.Touch(clientID)
		return conn.Send(pongMessage)
	}

	// Anything else well-formed is echoed back verbatim.
	if err := conn.Send(data); err != nil {
		return fmt.Errorf("echo: %w", err)
	}
	return nil
}
