// ABOUTME: Configuration loading and parsing for relay-gateway
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete relay-gateway configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Services ServicesConfig `yaml:"services"`
	History  HistoryConfig  `yaml:"history"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds server address and connection limits
type ServerConfig struct {
	HTTPAddr       string `yaml:"http_addr"`
	MaxConnections int    `yaml:"max_connections"`
	SSLEnabled     bool   `yaml:"ssl_enabled"`
	SSLCertPath    string `yaml:"ssl_cert_path"`
	SSLKeyPath     string `yaml:"ssl_key_path"`

	// PingTimeout is the maximum client silence before the watchdog
	// closes the connection.
	PingTimeout    time.Duration `yaml:"-"`
	PingTimeoutRaw string        `yaml:"ping_timeout"`
}

// DatabaseConfig holds connection-history database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ServicesConfig holds the persisted service-config file location
type ServicesConfig struct {
	ConfigPath string `yaml:"config_path"`
}

// HistoryConfig holds connection-history sampling configuration
type HistoryConfig struct {
	SampleInterval time.Duration `yaml:"-"`
	Retention      time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	SampleIntervalRaw string `yaml:"sample_interval"`
	RetentionRaw      string `yaml:"retention"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Defaults applied when fields are absent from the file.
const (
	DefaultHTTPAddr       = "0.0.0.0:8000"
	DefaultMaxConnections = 100
	DefaultPingTimeout    = 30 * time.Second
	DefaultSampleInterval = 10 * time.Second
	DefaultRetention      = time.Hour
)

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Default returns a configuration populated entirely with defaults, for use
// when no config file exists.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func (c *Config) applyDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = DefaultHTTPAddr
	}
	if c.Server.MaxConnections == 0 {
		c.Server.MaxConnections = DefaultMaxConnections
	}
	if c.Server.PingTimeout == 0 {
		c.Server.PingTimeout = DefaultPingTimeout
	}
	if c.History.SampleInterval == 0 {
		c.History.SampleInterval = DefaultSampleInterval
	}
	if c.History.Retention == 0 {
		c.History.Retention = DefaultRetention
	}
	if c.Database.Path == "" {
		c.Database.Path = "relay-gateway.db"
	}
	if c.Services.ConfigPath == "" {
		c.Services.ConfigPath = "services_config.json"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.Server.MaxConnections < 0 {
		return fmt.Errorf("server.max_connections must not be negative")
	}

	if c.Server.SSLEnabled {
		if c.Server.SSLCertPath == "" || c.Server.SSLKeyPath == "" {
			return fmt.Errorf("server.ssl_cert_path and server.ssl_key_path are required when ssl is enabled")
		}
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.History.SampleInterval <= 0 {
		return fmt.Errorf("history.sample_interval must be positive")
	}

	if c.History.Retention < c.History.SampleInterval {
		return fmt.Errorf("history.retention must be at least history.sample_interval")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Server.PingTimeoutRaw != "" {
		cfg.Server.PingTimeout, err = time.ParseDuration(cfg.Server.PingTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing ping_timeout %q: %w", cfg.Server.PingTimeoutRaw, err)
		}
	}

	if cfg.History.SampleIntervalRaw != "" {
		cfg.History.SampleInterval, err = time.ParseDuration(cfg.History.SampleIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing sample_interval %q: %w", cfg.History.SampleIntervalRaw, err)
		}
	}

	if cfg.History.RetentionRaw != "" {
		cfg.History.Retention, err = time.ParseDuration(cfg.History.RetentionRaw)
		if err != nil {
			return fmt.Errorf("parsing retention %q: %w", cfg.History.RetentionRaw, err)
		}
	}

	return nil
}
