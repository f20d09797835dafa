// ABOUTME: File-backed ServiceStore persisting service configs as one JSON document
// ABOUTME: Rewrites the document atomically (temp file + rename) on every save

package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// FileServiceStore implements ServiceStore on a single JSON file keyed by
// service id. The layout matches the document the gateway has always
// persisted:
//
//	{"github": {"enabled": true, "config": {"access_token": "..."}}}
type FileServiceStore struct {
	path   string
	logger *slog.Logger
}

// NewFileServiceStore creates a store for the given file path.
// Parent directories are created if needed.
func NewFileServiceStore(path string) (*FileServiceStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating services config directory: %w", err)
	}
	return &FileServiceStore{
		path:   path,
		logger: slog.Default().With("component", "store"),
	}, nil
}

// Load reads all persisted service configs. A missing file loads as an
// empty map.
func (f *FileServiceStore) Load() (map[string]ServiceConfig, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return map[string]ServiceConfig{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading services config: %w", err)
	}

	configs := map[string]ServiceConfig{}
	if err := json.Unmarshal(data, &configs); err != nil {
		return nil, fmt.Errorf("parsing services config: %w", err)
	}
	return configs, nil
}

// Save rewrites the whole document atomically: the new content is written to
// a temporary file in the same directory and renamed into place, so a crash
// mid-write never leaves a truncated document behind.
func (f *FileServiceStore) Save(configs map[string]ServiceConfig) error {
	data, err := json.MarshalIndent(configs, "", "    ")
	if err != nil {
		return fmt.Errorf("encoding services config: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".services-*.json")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing services config: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("syncing services config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmpPath, f.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing services config: %w", err)
	}

	f.logger.Debug("services config saved", "path", f.path, "services", len(configs))
	return nil
}
