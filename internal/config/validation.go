package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// ValidationResult holds validation errors and warnings
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// ValidationError represents a validation issue
type ValidationError struct {
	Path    string
	Message string
}

// IsValid returns true if there are no errors
func (v *ValidationResult) IsValid() bool {
	return len(v.Errors) == 0
}

var knownStrategies = []string{"google", "github"}

// ValidateFile validates a config file structure without requiring env vars
func ValidateFile(path string) (*ValidationResult, error) {
	result := &ValidationResult{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var rawConfig map[string]any
	if err := json.Unmarshal(data, &rawConfig); err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Message: fmt.Sprintf("invalid JSON: %v", err),
		})
		return result, nil
	}

	checkBashStyleSyntax(rawConfig, "", result)

	version, ok := rawConfig["version"].(string)
	if !ok {
		result.Errors = append(result.Errors, ValidationError{
			Path:    "version",
			Message: fmt.Sprintf("version field is required. Hint: Add \"version\": \"%s\"", SupportedVersion),
		})
	} else if !strings.HasPrefix(version, SupportedVersion) {
		result.Errors = append(result.Errors, ValidationError{
			Path:    "version",
			Message: fmt.Sprintf("unsupported version '%s' - use '%s'", version, SupportedVersion),
		})
	}

	validateServerStructure(rawConfig, result)
	validateProvidersStructure(rawConfig, result)

	return result, nil
}

func validateServerStructure(rawConfig map[string]any, result *ValidationResult) {
	server, ok := rawConfig["server"].(map[string]any)
	if !ok {
		result.Errors = append(result.Errors, ValidationError{
			Path:    "server",
			Message: "server field is required and must be an object",
		})
		return
	}

	for _, field := range []string{"addr", "baseURL"} {
		if _, ok := server[field]; !ok {
			result.Errors = append(result.Errors, ValidationError{
				Path:    "server." + field,
				Message: fmt.Sprintf("%s is required", field),
			})
		}
	}

	if origins, ok := server["allowedOrigins"]; ok {
		if _, isList := origins.([]any); !isList {
			result.Errors = append(result.Errors, ValidationError{
				Path:    "server.allowedOrigins",
				Message: "allowedOrigins must be a list of origins",
			})
		}
	} else {
		result.Warnings = append(result.Warnings, ValidationError{
			Path:    "server.allowedOrigins",
			Message: "no allowedOrigins configured - browsers on other origins cannot call the login endpoint",
		})
	}
}

func validateProvidersStructure(rawConfig map[string]any, result *ValidationResult) {
	providers, ok := rawConfig["providers"].(map[string]any)
	if !ok || len(providers) == 0 {
		result.Errors = append(result.Errors, ValidationError{
			Path:    "providers",
			Message: fmt.Sprintf("providers must configure at least one of: %s", strings.Join(knownStrategies, ", ")),
		})
		return
	}

	for name, value := range providers {
		path := "providers." + name
		if !isKnownStrategy(name) {
			result.Errors = append(result.Errors, ValidationError{
				Path:    path,
				Message: fmt.Sprintf("unknown provider '%s' - supported: %s", name, strings.Join(knownStrategies, ", ")),
			})
			continue
		}

		provider, ok := value.(map[string]any)
		if !ok {
			result.Errors = append(result.Errors, ValidationError{
				Path:    path,
				Message: "provider must be an object",
			})
			continue
		}

		for _, field := range []string{"clientId", "redirectUri"} {
			if _, ok := provider[field]; !ok {
				result.Errors = append(result.Errors, ValidationError{
					Path:    path + "." + field,
					Message: fmt.Sprintf("%s is required", field),
				})
			}
		}

		secret, ok := provider["clientSecret"]
		if !ok {
			result.Errors = append(result.Errors, ValidationError{
				Path:    path + ".clientSecret",
				Message: "clientSecret is required. Hint: Use {\"$env\": \"YOUR_ENV_VAR\"}",
			})
		} else if err := validateEnvVarReference(secret, "clientSecret", path+".clientSecret"); err != nil {
			result.Errors = append(result.Errors, *err)
		}
	}
}

func isKnownStrategy(name string) bool {
	for _, s := range knownStrategies {
		if s == name {
			return true
		}
	}
	return false
}

var bashStyleRegex = regexp.MustCompile(`\$\{?([A-Z_][A-Z0-9_]*)\}?`)

// validateEnvVarReference validates that a field uses proper env var reference format
func validateEnvVarReference(value any, fieldName, path string) *ValidationError {
	switch v := value.(type) {
	case string:
		if matches := bashStyleRegex.FindStringSubmatch(v); len(matches) > 1 {
			return &ValidationError{
				Path:    path,
				Message: fmt.Sprintf("found bash-style syntax '%s' - use {\"$env\": \"%s\"} instead", v, matches[1]),
			}
		}
		return &ValidationError{
			Path:    path,
			Message: fmt.Sprintf("%s must use environment variable reference {\"$env\": \"YOUR_ENV_VAR\"} instead of plain text. Hint: This prevents secrets from being stored in config files", fieldName),
		}
	case map[string]any:
		if _, hasEnv := v["$env"]; !hasEnv {
			return &ValidationError{
				Path:    path,
				Message: fmt.Sprintf("%s must use {\"$env\": \"YOUR_ENV_VAR\"} format", fieldName),
			}
		}
		return nil
	default:
		return &ValidationError{
			Path:    path,
			Message: fmt.Sprintf("%s must be an environment variable reference {\"$env\": \"YOUR_ENV_VAR\"}, not %T", fieldName, value),
		}
	}
}

// checkBashStyleSyntax recursively checks for bash-style env var syntax
func checkBashStyleSyntax(value any, path string, result *ValidationResult) {
	switch v := value.(type) {
	case string:
		for _, match := range bashStyleRegex.FindAllString(v, -1) {
			varName := strings.Trim(match, "${}")
			result.Warnings = append(result.Warnings, ValidationError{
				Path:    path,
				Message: fmt.Sprintf("found bash-style syntax '%s' - use {\"$env\": \"%s\"} instead", match, varName),
			})
		}
	case map[string]any:
		if _, hasEnv := v["$env"]; hasEnv {
			return
		}
		for key, val := range v {
			newPath := key
			if path != "" {
				newPath = path + "." + key
			}
			checkBashStyleSyntax(val, newPath, result)
		}
	case []any:
		for i, item := range v {
			checkBashStyleSyntax(item, fmt.Sprintf("%s[%d]", path, i), result)
		}
	}
}

// Default returns a starter configuration with env references for secrets
func Default() map[string]any {
	return map[string]any{
		"version": SupportedVersion,
		"server": map[string]any{
			"addr":           ":8080",
			"baseURL":        "http://localhost:8080",
			"allowedOrigins": []string{"http://localhost:3000"},
		},
		"providers": map[string]any{
			"google": map[string]any{
				"clientId":       map[string]string{"$env": "GOOGLE_OAUTH_CLIENT_ID"},
				"clientSecret":   map[string]string{"$env": "GOOGLE_OAUTH_CLIENT_SECRET"},
				"redirectUri":    "http://127.0.0.1:8085/callback",
				"allowedDomains": []string{},
			},
		},
	}
}

// WriteDefault writes Default to path
func WriteDefault(path string) error {
	data, err := json.MarshalIndent(Default(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
