package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load loads and processes the config with immediate env var resolution
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var rawConfig map[string]any
	if err := json.Unmarshal(data, &rawConfig); err != nil {
		return Config{}, fmt.Errorf("parsing config JSON: %w", err)
	}

	version, ok := rawConfig["version"].(string)
	if !ok {
		return Config{}, fmt.Errorf("config version is required")
	}
	if !strings.HasPrefix(version, SupportedVersion) {
		return Config{}, fmt.Errorf("unsupported config version: %s", version)
	}

	// The custom UnmarshalJSON methods resolve env vars immediately
	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}

	if err := ValidateConfig(&config); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// ValidateConfig validates the resolved configuration
func ValidateConfig(config *Config) error {
	if err := validate.Struct(config); err != nil {
		return describeValidation(err)
	}

	if config.Providers.Google == nil && config.Providers.GitHub == nil {
		return fmt.Errorf("at least one provider is required under providers")
	}
	for _, origin := range config.Server.AllowedOrigins {
		if origin == "" {
			return fmt.Errorf("server.allowedOrigins cannot contain empty values")
		}
	}
	return nil
}

// describeValidation turns validator errors into config paths
func describeValidation(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	msgs := make([]string, 0, len(validationErrs))
	for _, fe := range validationErrs {
		path := configPath(fe.Namespace())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", path))
		case "url":
			msgs = append(msgs, fmt.Sprintf("%s must be a valid URL", path))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s validation", path, fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}

var jsonNames = map[string]string{
	"Config":         "",
	"Version":        "version",
	"Server":         "server",
	"Addr":           "addr",
	"BaseURL":        "baseURL",
	"AllowedOrigins": "allowedOrigins",
	"Providers":      "providers",
	"Google":         "google",
	"GitHub":         "github",
	"ClientID":       "clientId",
	"ClientSecret":   "clientSecret",
	"RedirectURI":    "redirectUri",
}

// configPath maps "Config.Providers.Google.ClientID" to "providers.google.clientId"
func configPath(namespace string) string {
	parts := strings.Split(namespace, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		name, ok := jsonNames[p]
		if !ok {
			name = p
		}
		if name != "" {
			out = append(out, name)
		}
	}
	return strings.Join(out, ".")
}
