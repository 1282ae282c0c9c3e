package config

import (
	"encoding/json"
)

// Secret is a string type that redacts itself when printed
type Secret string

// String implements fmt.Stringer to redact the secret
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "***"
}

// MarshalJSON implements json.Marshaler to prevent secrets in JSON logs
func (s Secret) MarshalJSON() ([]byte, error) {
	if s == "" {
		return json.Marshal("")
	}
	return json.Marshal("***")
}

// SupportedVersion is the config version prefix this build understands
const SupportedVersion = "v0.0.1"

// Config is the login server configuration
type Config struct {
	Version   string          `json:"version" validate:"required"`
	Server    ServerConfig    `json:"server"`
	Providers ProvidersConfig `json:"providers"`
}

// ServerConfig configures the HTTP listener
type ServerConfig struct {
	Addr           string   `json:"addr" validate:"required"`
	BaseURL        string   `json:"baseURL" validate:"required,url"`
	AllowedOrigins []string `json:"allowedOrigins,omitempty"`
}

// ProvidersConfig holds one entry per supported strategy. A nil entry
// leaves the strategy unavailable.
type ProvidersConfig struct {
	Google *ProviderConfig `json:"google,omitempty"`
	GitHub *ProviderConfig `json:"github,omitempty"`
}

// ProviderConfig holds the OAuth client credentials of one provider
type ProviderConfig struct {
	ClientID       string   `json:"clientId" validate:"required"`
	ClientSecret   Secret   `json:"clientSecret" validate:"required"`
	RedirectURI    string   `json:"redirectUri" validate:"required,url"`
	AllowedDomains []string `json:"allowedDomains,omitempty"`
	AllowedOrgs    []string `json:"allowedOrgs,omitempty"`
}
