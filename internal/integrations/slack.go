// ABOUTME: Slack capability handler: chat poster over the Slack Web API
// ABOUTME: Uses a bot token bound to one channel

package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const slackAPIURL = "https://slack.com/api"

// SlackHandler posts to one Slack channel through the Web API.
type SlackHandler struct {
	base

	apiURL string
	client *http.Client
	logger *slog.Logger
}

// ChannelInfo is the subset of channel fields the gateway exposes.
type ChannelInfo struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	IsArchived bool   `json:"is_archived"`
	NumMembers int    `json:"num_members"`
}

// NewSlackHandler creates an unvalidated Slack handler.
func NewSlackHandler(serviceID string, config map[string]string, logger *slog.Logger) *SlackHandler {
	return &SlackHandler{
		base:   newBase(serviceID, config),
		apiURL: slackAPIURL,
		logger: logger.With("component", "slack"),
	}
}

// ValidateConfig requires bot_token and channel.
func (h *SlackHandler) ValidateConfig(config map[string]string) bool {
	return hasRequired(config, "bot_token", "channel")
}

// Initialize sets up the HTTP session.
func (h *SlackHandler) Initialize(_ context.Context) error {
	h.client = &http.Client{Timeout: 15 * time.Second}
	return nil
}

// TestConnection calls auth.test, proving the bot token.
func (h *SlackHandler) TestConnection(ctx context.Context) error {
	var resp struct {
		User string `json:"user"`
	}
	if err := h.call(ctx, http.MethodGet, "auth.test", nil, nil, &resp); err != nil {
		return err
	}
	h.logger.Info("slack connection verified", "user", resp.User)
	return nil
}

// PostMessage sends a message to the configured channel. An optional
// threadTS threads the message.
func (h *SlackHandler) PostMessage(ctx context.Context, text, threadTS string) (string, error) {
	payload := map[string]any{
		"channel": h.get("channel"),
		"text":    text,
	}
	if threadTS != "" {
		payload["thread_ts"] = threadTS
	}

	var resp struct {
		TS string `json:"ts"`
	}
	if err := h.call(ctx, http.MethodPost, "chat.postMessage", nil, payload, &resp); err != nil {
		return "", err
	}
	return resp.TS, nil
}

// GetChannelInfo returns information about the configured channel.
func (h *SlackHandler) GetChannelInfo(ctx context.Context) (*ChannelInfo, error) {
	channel := strings.TrimPrefix(h.get("channel"), "#")

	var resp struct {
		Channel ChannelInfo `json:"channel"`
	}
	params := url.Values{"channel": {channel}}
	if err := h.call(ctx, http.MethodGet, "conversations.info", params, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Channel, nil
}

// Close releases the HTTP session. Safe to call repeatedly.
func (h *SlackHandler) Close() error {
	if h.client != nil {
		h.client.CloseIdleConnections()
		h.client = nil
	}
	return nil
}

// call performs one Web API request. Slack signals failure inside the JSON
// envelope ({"ok": false, "error": ...}) rather than with HTTP status codes.
func (h *SlackHandler) call(ctx context.Context, method, endpoint string, params url.Values, payload, out any) error {
	if h.client == nil {
		return fmt.Errorf("slack client not initialized")
	}

	target := h.apiURL + "/" + endpoint
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	var reqBody *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+h.get("bot_token"))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("slack request: %w", err)
	}
	defer resp.Body.Close()

	var envelope struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading slack response: %w", err)
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("decoding slack response: %w", err)
	}
	if !envelope.OK {
		return fmt.Errorf("slack %s: %s", endpoint, envelope.Error)
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decoding slack response: %w", err)
		}
	}
	return nil
}
