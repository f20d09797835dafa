// ABOUTME: GitHub capability handler: issue-tracker client over the REST v3 API
// ABOUTME: Authenticates with a personal access token scoped to one organization

package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const githubAPIURL = "https://api.github.com"

// GitHubHandler talks to the GitHub REST API for one organization.
type GitHubHandler struct {
	base

	apiURL string
	client *http.Client
	logger *slog.Logger
}

// Repository is the subset of repository fields the gateway exposes.
type Repository struct {
	Name     string `json:"name"`
	FullName string `json:"full_name"`
	Private  bool   `json:"private"`
	HTMLURL  string `json:"html_url"`
}

// Issue is the subset of issue fields returned after creation.
type Issue struct {
	Number  int    `json:"number"`
	Title   string `json:"title"`
	HTMLURL string `json:"html_url"`
	State   string `json:"state"`
}

// NewGitHubHandler creates an unvalidated GitHub handler.
func NewGitHubHandler(serviceID string, config map[string]string, logger *slog.Logger) *GitHubHandler {
	return &GitHubHandler{
		base:   newBase(serviceID, config),
		apiURL: githubAPIURL,
		logger: logger.With("component", "github"),
	}
}

// ValidateConfig requires access_token and organization.
func (h *GitHubHandler) ValidateConfig(config map[string]string) bool {
	return hasRequired(config, "access_token", "organization")
}

// Initialize sets up the HTTP session. No network traffic happens here;
// credentials are proven by TestConnection.
func (h *GitHubHandler) Initialize(_ context.Context) error {
	h.client = &http.Client{Timeout: 15 * time.Second}
	return nil
}

// TestConnection fetches the authenticated user, proving token validity.
func (h *GitHubHandler) TestConnection(ctx context.Context) error {
	var user struct {
		Login string `json:"login"`
	}
	if err := h.doJSON(ctx, http.MethodGet, "/user", nil, &user); err != nil {
		return err
	}
	h.logger.Info("github connection verified", "login", user.Login)
	return nil
}

// ListRepositories lists the configured organization's repositories.
func (h *GitHubHandler) ListRepositories(ctx context.Context) ([]Repository, error) {
	var repos []Repository
	path := fmt.Sprintf("/orgs/%s/repos", h.get("organization"))
	if err := h.doJSON(ctx, http.MethodGet, path, nil, &repos); err != nil {
		return nil, err
	}
	return repos, nil
}

// CreateIssue opens an issue in a repository of the configured organization.
func (h *GitHubHandler) CreateIssue(ctx context.Context, repo, title, body string, labels []string) (*Issue, error) {
	payload := map[string]any{
		"title": title,
		"body":  body,
	}
	if len(labels) > 0 {
		payload["labels"] = labels
	}

	var issue Issue
	path := fmt.Sprintf("/repos/%s/%s/issues", h.get("organization"), repo)
	if err := h.doJSON(ctx, http.MethodPost, path, payload, &issue); err != nil {
		return nil, err
	}
	return &issue, nil
}

// Close releases the HTTP session. Safe to call repeatedly.
func (h *GitHubHandler) Close() error {
	if h.client != nil {
		h.client.CloseIdleConnections()
		h.client = nil
	}
	return nil
}

// doJSON performs one authenticated request and decodes the JSON response.
func (h *GitHubHandler) doJSON(ctx context.Context, method, path string, payload, out any) error {
	if h.client == nil {
		return fmt.Errorf("github client not initialized")
	}

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.apiURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "token "+h.get("access_token"))
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", "relay-gateway")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("github request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("github %s %s: status %d", method, path, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding github response: %w", err)
		}
	}
	return nil
}
