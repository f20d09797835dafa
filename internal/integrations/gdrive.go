// ABOUTME: Google Drive capability handler: file store via the Drive v3 API
// ABOUTME: Reads a pre-provisioned OAuth token from the tokens directory

package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// GoogleDriveHandler manages files in Google Drive.
//
// The gateway is a daemon, so the interactive OAuth consent flow happens out
// of band: an operator provisions tokens/google_drive_<service_id>.json and
// Initialize refreshes it through the configured client credentials.
type GoogleDriveHandler struct {
	base

	tokensDir string
	svc       *drive.Service
	logger    *slog.Logger
}

// DriveFile is the subset of file fields the gateway exposes.
type DriveFile struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
}

const driveFolderMimeType = "application/vnd.google-apps.folder"

// NewGoogleDriveHandler creates an unvalidated Google Drive handler.
func NewGoogleDriveHandler(serviceID string, config map[string]string, logger *slog.Logger) *GoogleDriveHandler {
	return &GoogleDriveHandler{
		base:      newBase(serviceID, config),
		tokensDir: "tokens",
		logger:    logger.With("component", "google_drive"),
	}
}

// ValidateConfig requires client_id and client_secret.
func (h *GoogleDriveHandler) ValidateConfig(config map[string]string) bool {
	return hasRequired(config, "client_id", "client_secret")
}

// Initialize loads the provisioned OAuth token and builds the Drive client.
// On any failure nothing is retained.
func (h *GoogleDriveHandler) Initialize(ctx context.Context) error {
	dir := h.tokensDir
	if d := h.get("token_dir"); d != "" {
		dir = d
	}
	tokenPath := filepath.Join(dir, fmt.Sprintf("google_drive_%s.json", h.serviceID))

	data, err := os.ReadFile(tokenPath)
	if err != nil {
		return fmt.Errorf("reading oauth token %s (provision it with the drive-auth helper): %w", tokenPath, err)
	}

	tok := &oauth2.Token{}
	if err := json.Unmarshal(data, tok); err != nil {
		return fmt.Errorf("parsing oauth token: %w", err)
	}

	conf := &oauth2.Config{
		ClientID:     h.get("client_id"),
		ClientSecret: h.get("client_secret"),
		Endpoint:     google.Endpoint,
		Scopes:       []string{drive.DriveFileScope},
	}

	svc, err := drive.NewService(ctx, option.WithTokenSource(conf.TokenSource(ctx, tok)))
	if err != nil {
		return fmt.Errorf("creating drive client: %w", err)
	}

	h.svc = svc
	return nil
}

// TestConnection fetches the account's user info, a read-only round-trip.
func (h *GoogleDriveHandler) TestConnection(ctx context.Context) error {
	if h.svc == nil {
		return fmt.Errorf("drive client not initialized")
	}

	about, err := h.svc.About.Get().Fields("user").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("drive connection test: %w", err)
	}
	h.logger.Info("google drive connection verified", "user", about.User.EmailAddress)
	return nil
}

// ListFiles lists files, optionally restricted to one folder.
func (h *GoogleDriveHandler) ListFiles(ctx context.Context, folderID string, pageSize int64) ([]DriveFile, error) {
	if h.svc == nil {
		return nil, fmt.Errorf("drive client not initialized")
	}

	call := h.svc.Files.List().PageSize(pageSize).Fields("files(id, name, mimeType)")
	if folderID != "" {
		call = call.Q(fmt.Sprintf("'%s' in parents", folderID))
	}

	list, err := call.Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("listing drive files: %w", err)
	}

	files := make([]DriveFile, 0, len(list.Files))
	for _, f := range list.Files {
		files = append(files, DriveFile{ID: f.Id, Name: f.Name, MimeType: f.MimeType})
	}
	return files, nil
}

// UploadFile uploads content as a new file, optionally into a folder.
func (h *GoogleDriveHandler) UploadFile(ctx context.Context, content []byte, filename, mimeType, folderID string) (*DriveFile, error) {
	if h.svc == nil {
		return nil, fmt.Errorf("drive client not initialized")
	}

	meta := &drive.File{Name: filename, MimeType: mimeType}
	if folderID != "" {
		meta.Parents = []string{folderID}
	}

	created, err := h.svc.Files.Create(meta).
		Media(bytes.NewReader(content)).
		Fields("id, name, mimeType").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("uploading %s: %w", filename, err)
	}

	return &DriveFile{ID: created.Id, Name: created.Name, MimeType: created.MimeType}, nil
}

// CreateFolder creates a folder, optionally inside a parent folder.
func (h *GoogleDriveHandler) CreateFolder(ctx context.Context, name, parentID string) (*DriveFile, error) {
	if h.svc == nil {
		return nil, fmt.Errorf("drive client not initialized")
	}

	meta := &drive.File{Name: name, MimeType: driveFolderMimeType}
	if parentID != "" {
		meta.Parents = []string{parentID}
	}

	created, err := h.svc.Files.Create(meta).Fields("id, name, mimeType").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("creating folder %s: %w", name, err)
	}
	return &DriveFile{ID: created.Id, Name: created.Name, MimeType: created.MimeType}, nil
}

// DeleteFile permanently deletes a file by id.
func (h *GoogleDriveHandler) DeleteFile(ctx context.Context, fileID string) error {
	if h.svc == nil {
		return fmt.Errorf("drive client not initialized")
	}

	if err := h.svc.Files.Delete(fileID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("deleting file %s: %w", fileID, err)
	}
	return nil
}

// Close drops the Drive client. Safe to call repeatedly.
func (h *GoogleDriveHandler) Close() error {
	h.svc = nil
	return nil
}
