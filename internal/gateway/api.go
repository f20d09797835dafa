// ABOUTME: HTTP API handlers: status, client listing and eviction, service
// ABOUTME: lifecycle routing with sentinel-to-status error mapping

package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/2389/relay-gateway/internal/client"
	"github.com/2389/relay-gateway/internal/service"
	"github.com/2389/relay-gateway/internal/store"
)

// Version is the gateway release version reported by /api/status.
const Version = "1.0.0"

type statusResponse struct {
	Status            string         `json:"status"`
	ActiveClients     int            `json:"active_clients"`
	Uptime            string         `json:"uptime"`
	Version           string         `json:"version"`
	ConnectionHistory []historyPoint `json:"connection_history"`
}

type historyPoint struct {
	Time        string `json:"time"`
	Connections int    `json:"connections"`
}

type clientResponse struct {
	ClientID    string `json:"client_id"`
	ConnectedAt string `json:"connected_at"`
	LastPing    string `json:"last_ping"`
}

type serviceRequest struct {
	Enabled bool              `json:"enabled"`
	Config  map[string]string `json:"config"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// handleStatus reports gateway health plus the connection history for the
// requested window (?hours=F, default 1).
func (g *Gateway) handleStatus(w http.ResponseWriter, r *http.Request) {
	hours := 1.0
	if raw := r.URL.Query().Get("hours"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "hours must be a positive number")
			return
		}
		hours = parsed
	}

	window := time.Duration(hours * float64(time.Hour))
	samples, err := g.sampler.GetHistory(r.Context(), window)
	if err != nil {
		g.logger.Error("history read failed", "error", err)
		writeError(w, http.StatusInternalServerError, "history unavailable")
		return
	}

	points := make([]historyPoint, 0, len(samples))
	for _, s := range samples {
		points = append(points, historyPoint{
			Time:        s.Timestamp.UTC().Format(time.RFC3339),
			Connections: s.Connections,
		})
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Status:            "healthy",
		ActiveClients:     g.registry.Count(),
		Uptime:            time.Since(g.startedAt).Round(time.Second).String(),
		Version:           Version,
		ConnectionHistory: points,
	})
}

// handleListClients lists every live connection.
func (g *Gateway) handleListClients(w http.ResponseWriter, r *http.Request) {
	infos := g.registry.Snapshot()

	clients := make([]clientResponse, 0, len(infos))
	for _, info := range infos {
		clients = append(clients, clientResponse{
			ClientID:    info.ID,
			ConnectedAt: info.ConnectedAt.UTC().Format(time.RFC3339),
			LastPing:    info.LastActivity.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, clients)
}

// handleEvictClient force-closes one connection.
func (g *Gateway) handleEvictClient(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := g.registry.Evict(id); err != nil {
		if errors.Is(err, client.ErrClientNotFound) {
			writeError(w, http.StatusNotFound, "client not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "evicted", "client_id": id})
}

// handleListServices returns the persisted state of every known service.
func (g *Gateway) handleListServices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, g.manager.All())
}

// handleGetService returns one service's persisted state.
func (g *Gateway) handleGetService(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	cfg, ok := g.manager.Get(id)
	if !ok {
		if !g.manager.Known(id) {
			writeError(w, http.StatusNotFound, "unknown service")
			return
		}
		// Known handler type with no persisted state yet.
		cfg = store.ServiceConfig{Enabled: false, Config: map[string]string{}}
	}
	writeJSON(w, http.StatusOK, cfg)
}

// handleUpdateService applies the desired {enabled, config} state.
func (g *Gateway) handleUpdateService(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req serviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := g.manager.Apply(r.Context(), id, req.Enabled, req.Config); err != nil {
		switch {
		case errors.Is(err, service.ErrUnknownService):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrInvalidConfig):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrInitFailed), errors.Is(err, service.ErrConnectionTest):
			writeError(w, http.StatusBadGateway, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	cfg, _ := g.manager.Get(id)
	writeJSON(w, http.StatusOK, cfg)
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 once the gateway is accepting connections.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ready",
		"active_clients": g.registry.Count(),
	})
}
