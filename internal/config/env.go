package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

// Storage backend names accepted by POPAUTH_STORAGE
const (
	StorageFile      = "file"
	StorageMemory    = "memory"
	StorageFirestore = "firestore"
	StorageNone      = "none"
)

// ClientConfig configures the login client from the environment
type ClientConfig struct {
	StoragePrefix       string `env:"POPAUTH_STORAGE_PREFIX"`
	Storage             string `env:"POPAUTH_STORAGE" envDefault:"file" validate:"oneof=file memory firestore none"`
	StoragePath         string `env:"POPAUTH_STORAGE_PATH"`
	FirestoreProject    string `env:"POPAUTH_FIRESTORE_PROJECT" validate:"required_if=Storage firestore"`
	FirestoreDatabase   string `env:"POPAUTH_FIRESTORE_DATABASE"`
	FirestoreCollection string `env:"POPAUTH_FIRESTORE_COLLECTION" envDefault:"popauth_storage"`
	Endpoint            string `env:"POPAUTH_ENDPOINT" envDefault:"http://localhost:8080" validate:"required,url"`
	CallbackAddr        string `env:"POPAUTH_CALLBACK_ADDR" envDefault:"127.0.0.1:8085" validate:"required,hostname_port"`
	Browser             string `env:"POPAUTH_BROWSER"`
	PopupWidth          int    `env:"POPAUTH_POPUP_WIDTH" envDefault:"500" validate:"gt=0"`
	PopupHeight         int    `env:"POPAUTH_POPUP_HEIGHT" envDefault:"600" validate:"gt=0"`
	GoogleClientID      string `env:"GOOGLE_OAUTH_CLIENT_ID"`
	GitHubClientID      string `env:"GITHUB_OAUTH_CLIENT_ID"`
}

// LoadClientConfig reads ClientConfig from the environment
func LoadClientConfig() (ClientConfig, error) {
	var cfg ClientConfig
	if err := env.Parse(&cfg); err != nil {
		return ClientConfig{}, fmt.Errorf("parse env: %w", err)
	}

	if cfg.StoragePath == "" && cfg.Storage == StorageFile {
		dir, err := os.UserConfigDir()
		if err != nil {
			return ClientConfig{}, fmt.Errorf("locating config directory: %w", err)
		}
		cfg.StoragePath = filepath.Join(dir, "popauth", "storage.json")
	}

	if err := validate.Struct(&cfg); err != nil {
		return ClientConfig{}, fmt.Errorf("invalid client environment: %w", err)
	}
	return cfg, nil
}

// ClientID returns the OAuth client id configured for strategy
func (c ClientConfig) ClientID(strategy string) (string, error) {
	var id, envVar string
	switch strategy {
	case "google":
		id, envVar = c.GoogleClientID, "GOOGLE_OAUTH_CLIENT_ID"
	case "github":
		id, envVar = c.GitHubClientID, "GITHUB_OAUTH_CLIENT_ID"
	default:
		return "", fmt.Errorf("unknown strategy %q", strategy)
	}
	if id == "" {
		return "", fmt.Errorf("%s is not set", envVar)
	}
	return id, nil
}
