// ABOUTME: VS Code capability handler: writes gateway settings into a workspace
// ABOUTME: Local filesystem only, no network calls

package integrations

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// VSCodeHandler maintains gateway settings inside a VS Code workspace so an
// editor extension can discover and connect to the running gateway.
type VSCodeHandler struct {
	base

	workspaceDir string
	logger       *slog.Logger
	initialized  bool
}

const relaySettingsFile = "relay-settings.json"

// NewVSCodeHandler creates a VS Code handler.
func NewVSCodeHandler(serviceID string, config map[string]string, logger *slog.Logger) *VSCodeHandler {
	return &VSCodeHandler{
		base:   newBase(serviceID, config),
		logger: logger.With("component", "vscode"),
	}
}

// ValidateConfig accepts any configuration; every key is optional.
func (h *VSCodeHandler) ValidateConfig(config map[string]string) bool {
	return true
}

// Initialize writes the default gateway settings into .vscode/.
func (h *VSCodeHandler) Initialize(_ context.Context) error {
	h.workspaceDir = h.get("workspace_dir")
	if h.workspaceDir == "" {
		h.workspaceDir = "."
	}

	gatewayURL := h.get("gateway_url")
	if gatewayURL == "" {
		gatewayURL = "ws://localhost:8000/ws"
	}

	settings := map[string]any{
		"relay.gateway.enabled":     true,
		"relay.gateway.url":         gatewayURL,
		"relay.gateway.autoConnect": true,
	}
	if err := h.UpdateSettings(settings); err != nil {
		return err
	}

	h.initialized = true
	h.logger.Info("vscode workspace configured", "workspace", h.workspaceDir)
	return nil
}

// TestConnection verifies the settings file exists and is still enabled.
func (h *VSCodeHandler) TestConnection(_ context.Context) error {
	if !h.initialized {
		return fmt.Errorf("vscode handler not initialized")
	}

	settings, err := h.readSettings()
	if err != nil {
		return fmt.Errorf("vscode connection test: %w", err)
	}
	if enabled, ok := settings["relay.gateway.enabled"].(bool); !ok || !enabled {
		return fmt.Errorf("vscode connection test: gateway disabled in workspace settings")
	}
	return nil
}

// UpdateSettings merges the given keys into the workspace settings file.
func (h *VSCodeHandler) UpdateSettings(updates map[string]any) error {
	settings, err := h.readSettings()
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading workspace settings: %w", err)
	}
	if settings == nil {
		settings = map[string]any{}
	}
	for k, v := range updates {
		settings[k] = v
	}

	dir := filepath.Join(h.workspaceDir, ".vscode")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating .vscode directory: %w", err)
	}

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding workspace settings: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, relaySettingsFile), data, 0o644); err != nil {
		return fmt.Errorf("writing workspace settings: %w", err)
	}
	return nil
}

// CreateWorkspaceFile writes a .code-workspace file listing the given folders.
func (h *VSCodeHandler) CreateWorkspaceFile(name string, folders []string) (string, error) {
	if !h.initialized {
		return "", fmt.Errorf("vscode handler not initialized")
	}

	type folder struct {
		Path string `json:"path"`
	}
	ws := struct {
		Folders  []folder       `json:"folders"`
		Settings map[string]any `json:"settings"`
	}{
		Settings: map[string]any{"relay.gateway.enabled": true},
	}
	for _, f := range folders {
		ws.Folders = append(ws.Folders, folder{Path: f})
	}

	data, err := json.MarshalIndent(ws, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding workspace file: %w", err)
	}

	path := filepath.Join(h.workspaceDir, name+".code-workspace")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing workspace file: %w", err)
	}
	return path, nil
}

func (h *VSCodeHandler) readSettings() (map[string]any, error) {
	data, err := os.ReadFile(filepath.Join(h.workspaceDir, ".vscode", relaySettingsFile))
	if err != nil {
		return nil, err
	}
	var settings map[string]any
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// Close marks the handler unusable. The settings file is left in place so the
// editor keeps working across gateway restarts.
func (h *VSCodeHandler) Close() error {
	h.initialized = false
	return nil
}
