// ABOUTME: Tests for shared handler plumbing and the factory registry
// ABOUTME: Validation rules for handlers that never reach the network in tests

package integrations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactoriesCoverAllServices(t *testing.T) {
	factories := Factories(testLogger())

	for _, id := range []string{"github", "slack", "google_drive", "azure", "vscode"} {
		factory, ok := factories[id]
		require.True(t, ok, "missing factory for %s", id)
		assert.NotNil(t, factory(id, nil))
	}
	assert.Len(t, factories, 5)
}

func TestHasRequired(t *testing.T) {
	config := map[string]string{"a": "1", "b": "2", "empty": ""}

	assert.True(t, hasRequired(config, "a", "b"))
	assert.False(t, hasRequired(config, "a", "missing"))
	assert.False(t, hasRequired(config, "empty"))
	assert.True(t, hasRequired(config))
}

func TestGoogleDriveValidateConfig(t *testing.T) {
	h := NewGoogleDriveHandler("google_drive", nil, testLogger())

	assert.True(t, h.ValidateConfig(map[string]string{
		"client_id":     "id",
		"client_secret": "secret",
	}))
	assert.False(t, h.ValidateConfig(map[string]string{"client_id": "id"}))
	assert.False(t, h.ValidateConfig(nil))
}

func TestAzureValidateConfig(t *testing.T) {
	h := NewAzureHandler("azure", nil, testLogger())

	full := map[string]string{
		"tenant_id":       "t",
		"client_id":       "c",
		"client_secret":   "s",
		"subscription_id": "sub",
	}
	assert.True(t, h.ValidateConfig(full))

	for key := range full {
		partial := map[string]string{}
		for k, v := range full {
			if k != key {
				partial[k] = v
			}
		}
		assert.False(t, h.ValidateConfig(partial), "should fail without %s", key)
	}
}

func TestBaseUpdateConfig(t *testing.T) {
	b := newBase("svc", map[string]string{"k": "old"})
	assert.Equal(t, "old", b.get("k"))

	b.UpdateConfig(map[string]string{"k": "new"})
	assert.Equal(t, "new", b.get("k"))
	assert.Equal(t, "", b.get("gone"))
}
