// ABOUTME: Shared plumbing for capability handlers
// ABOUTME: Config storage, required-key validation, and the factory registry

package integrations

import (
	"log/slog"
	"sync"

	"github.com/2389/relay-gateway/internal/service"
)

// base carries the fields every handler shares: the service id it is bound
// to and its current configuration.
type base struct {
	serviceID string

	mu     sync.Mutex
	config map[string]string
}

func newBase(serviceID string, config map[string]string) base {
	if config == nil {
		config = map[string]string{}
	}
	return base{serviceID: serviceID, config: config}
}

// UpdateConfig replaces the stored configuration without reinitializing.
func (b *base) UpdateConfig(config map[string]string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.config = config
}

// get returns one config value.
func (b *base) get(key string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.config[key]
}

// hasRequired reports whether every key is present and non-empty.
func hasRequired(config map[string]string, keys ...string) bool {
	for _, key := range keys {
		if config[key] == "" {
			return false
		}
	}
	return true
}

// Factories returns the handler factory for every known service id.
func Factories(logger *slog.Logger) map[string]service.Factory {
	return map[string]service.Factory{
		"github": func(id string, cfg map[string]string) service.Handler {
			return NewGitHubHandler(id, cfg, logger)
		},
		"slack": func(id string, cfg map[string]string) service.Handler {
			return NewSlackHandler(id, cfg, logger)
		},
		"google_drive": func(id string, cfg map[string]string) service.Handler {
			return NewGoogleDriveHandler(id, cfg, logger)
		},
		"azure": func(id string, cfg map[string]string) service.Handler {
			return NewAzureHandler(id, cfg, logger)
		},
		"vscode": func(id string, cfg map[string]string) service.Handler {
			return NewVSCodeHandler(id, cfg, logger)
		},
	}
}
