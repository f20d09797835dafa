// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML loading, env var expansion, and duration parsing

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
server:
  http_addr: "0.0.0.0:9000"
  max_connections: 50
  ping_timeout: "45s"

database:
  path: "./test.db"

services:
  config_path: "./services.json"

history:
  sample_interval: "5s"
  retention: "30m"

logging:
  level: "debug"
  format: "json"

metrics:
  enabled: true
  path: "/metrics"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "0.0.0.0:9000" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "0.0.0.0:9000")
	}
	if cfg.Server.MaxConnections != 50 {
		t.Errorf("Server.MaxConnections = %d, want 50", cfg.Server.MaxConnections)
	}
	if cfg.Server.PingTimeout != 45*time.Second {
		t.Errorf("Server.PingTimeout = %v, want 45s", cfg.Server.PingTimeout)
	}
	if cfg.Database.Path != "./test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "./test.db")
	}
	if cfg.Services.ConfigPath != "./services.json" {
		t.Errorf("Services.ConfigPath = %q, want %q", cfg.Services.ConfigPath, "./services.json")
	}
	if cfg.History.SampleInterval != 5*time.Second {
		t.Errorf("History.SampleInterval = %v, want 5s", cfg.History.SampleInterval)
	}
	if cfg.History.Retention != 30*time.Minute {
		t.Errorf("History.Retention = %v, want 30m", cfg.History.Retention)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
	if !cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = false, want true")
	}
}

func TestLoad_AppliesDefaults(t *testing.T) {
	configPath := writeConfig(t, `
database:
  path: "./test.db"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != DefaultHTTPAddr {
		t.Errorf("Server.HTTPAddr = %q, want default %q", cfg.Server.HTTPAddr, DefaultHTTPAddr)
	}
	if cfg.Server.MaxConnections != DefaultMaxConnections {
		t.Errorf("Server.MaxConnections = %d, want default %d", cfg.Server.MaxConnections, DefaultMaxConnections)
	}
	if cfg.Server.PingTimeout != DefaultPingTimeout {
		t.Errorf("Server.PingTimeout = %v, want default %v", cfg.Server.PingTimeout, DefaultPingTimeout)
	}
	if cfg.History.SampleInterval != DefaultSampleInterval {
		t.Errorf("History.SampleInterval = %v, want default %v", cfg.History.SampleInterval, DefaultSampleInterval)
	}
	if cfg.History.Retention != DefaultRetention {
		t.Errorf("History.Retention = %v, want default %v", cfg.History.Retention, DefaultRetention)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("RELAY_TEST_DB_PATH", "/tmp/expanded.db")

	configPath := writeConfig(t, `
database:
  path: "${RELAY_TEST_DB_PATH}"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/tmp/expanded.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/expanded.db")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	configPath := writeConfig(t, `
database:
  path: "./test.db"
server:
  ping_timeout: "not-a-duration"
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() expected error for invalid duration, got nil")
	}
	if !strings.Contains(err.Error(), "ping_timeout") {
		t.Errorf("error = %v, want mention of ping_timeout", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err == nil {
		t.Fatal("Load() expected error for missing file, got nil")
	}
}

func TestValidate_SSLRequiresCertAndKey(t *testing.T) {
	cfg := Default()
	cfg.Server.SSLEnabled = true

	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() expected error when ssl enabled without cert/key, got nil")
	}

	cfg.Server.SSLCertPath = "/etc/relay/cert.pem"
	cfg.Server.SSLKeyPath = "/etc/relay/key.pem"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestValidate_RetentionShorterThanInterval(t *testing.T) {
	cfg := Default()
	cfg.History.SampleInterval = time.Minute
	cfg.History.Retention = time.Second

	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() expected error for retention < sample_interval, got nil")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default() config failed validation: %v", err)
	}
}
