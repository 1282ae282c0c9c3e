package idp

import (
	"fmt"

	"github.com/dgellow/popauth/internal/auth"
	"github.com/dgellow/popauth/internal/config"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

// NewRegistryFromConfig builds a provider for every configured strategy.
func NewRegistryFromConfig(cfg config.ProvidersConfig) (*Registry, error) {
	var providers []Provider

	if g := cfg.Google; g != nil {
		p, err := NewGoogleProvider(g.ClientID, string(g.ClientSecret), g.RedirectURI, g.AllowedDomains)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}

	if gh := cfg.GitHub; gh != nil {
		p, err := NewGitHubProvider(gh.ClientID, string(gh.ClientSecret), gh.RedirectURI, gh.AllowedDomains, gh.AllowedOrgs)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}

	if len(providers) == 0 {
		return nil, auth.Errorf(auth.KindConfig, "no providers configured")
	}
	return NewRegistry(providers...), nil
}

// ConsentEndpoint returns what a client needs to request an authorization
// code for strategy: the provider endpoint and the scopes to ask for.
func ConsentEndpoint(strategy auth.Strategy) (oauth2.Endpoint, string, error) {
	switch strategy {
	case auth.StrategyGoogle:
		return GoogleEndpoint(), GoogleScope, nil
	case auth.StrategyGitHub:
		return github.Endpoint, "read:user user:email", nil
	default:
		return oauth2.Endpoint{}, "", fmt.Errorf("no consent endpoint for strategy %q", strategy)
	}
}
