// Package config handles configuration loading for relay-gateway.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults; a missing file is not
// an error at the call site (main falls back to config.Default()).
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	services:
//	  config_path: "${RELAY_SERVICES_PATH}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	server:
//	  ping_timeout: "30s"
//	history:
//	  sample_interval: "10s"
//	  retention: "1h"
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8000"
//	  max_connections: 100
//	  ping_timeout: "30s"
//	  ssl_enabled: false
//
// Database (connection history):
//
//	database:
//	  path: "/var/lib/relay/gateway.db"
//
// Persisted service configs:
//
//	services:
//	  config_path: "/var/lib/relay/services_config.json"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
package config
