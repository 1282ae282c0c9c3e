package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadClientConfig_Defaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := LoadClientConfig()
	require.NoError(t, err)

	assert.Equal(t, "", cfg.StoragePrefix)
	assert.Equal(t, StorageFile, cfg.Storage)
	assert.Equal(t, "storage.json", filepath.Base(cfg.StoragePath))
	assert.Equal(t, "http://localhost:8080", cfg.Endpoint)
	assert.Equal(t, "127.0.0.1:8085", cfg.CallbackAddr)
	assert.Equal(t, "popauth_storage", cfg.FirestoreCollection)
	assert.Equal(t, 500, cfg.PopupWidth)
	assert.Equal(t, 600, cfg.PopupHeight)
}

func TestLoadClientConfig_Overrides(t *testing.T) {
	t.Setenv("POPAUTH_STORAGE_PREFIX", "myapp_")
	t.Setenv("POPAUTH_STORAGE", "memory")
	t.Setenv("POPAUTH_ENDPOINT", "https://auth.example.com")
	t.Setenv("GOOGLE_OAUTH_CLIENT_ID", "google-id")

	cfg, err := LoadClientConfig()
	require.NoError(t, err)

	assert.Equal(t, "myapp_", cfg.StoragePrefix)
	assert.Equal(t, StorageMemory, cfg.Storage)
	assert.Empty(t, cfg.StoragePath)
	assert.Equal(t, "https://auth.example.com", cfg.Endpoint)

	id, err := cfg.ClientID("google")
	require.NoError(t, err)
	assert.Equal(t, "google-id", id)

	_, err = cfg.ClientID("github")
	assert.ErrorContains(t, err, "GITHUB_OAUTH_CLIENT_ID is not set")
}

func TestLoadClientConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown_storage", env: map[string]string{"POPAUTH_STORAGE": "redis"}},
		{name: "firestore_without_project", env: map[string]string{"POPAUTH_STORAGE": "firestore"}},
		{name: "bad_popup_width", env: map[string]string{"POPAUTH_STORAGE": "memory", "POPAUTH_POPUP_WIDTH": "abc"}},
		{name: "bad_callback_addr", env: map[string]string{"POPAUTH_STORAGE": "memory", "POPAUTH_CALLBACK_ADDR": "nope"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadClientConfig()
			assert.Error(t, err)
		})
	}
}
