package idp

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/dgellow/popauth/internal/auth"
	"github.com/dgellow/popauth/internal/emailutil"
	"golang.org/x/oauth2"
)

// Provider exchanges authorization codes for normalized user profiles.
type Provider interface {
	// Strategy returns the strategy this provider serves.
	Strategy() auth.Strategy

	// AuthURL generates the consent URL for the given state.
	AuthURL(state string) string

	// Exchange trades a single-use authorization code for the user's profile.
	// Failures are *auth.Error values.
	Exchange(ctx context.Context, code string) (auth.UserProfile, error)
}

// Registry maps strategies to providers
type Registry struct {
	providers map[auth.Strategy]Provider
}

// NewRegistry creates a registry. A later provider replaces an earlier one with the same strategy.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[auth.Strategy]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Strategy()] = p
	}
	return r
}

// Lookup returns the provider for strategy
func (r *Registry) Lookup(strategy auth.Strategy) (Provider, bool) {
	p, ok := r.providers[strategy]
	return p, ok
}

// Strategies returns the registered strategies in sorted order
func (r *Registry) Strategies() []auth.Strategy {
	strategies := make([]auth.Strategy, 0, len(r.providers))
	for s := range r.providers {
		strategies = append(strategies, s)
	}
	slices.Sort(strategies)
	return strategies
}

// ValidateDomain checks if the domain is in the allowed list.
// Returns nil if allowedDomains is empty (no restriction) or domain is allowed.
func ValidateDomain(domain string, allowedDomains []string) error {
	if !emailutil.DomainAllowed(domain, allowedDomains) {
		return auth.Errorf(auth.KindProvider, "domain '%s' is not allowed. Contact your administrator", domain)
	}
	return nil
}

func requireCode(code string) error {
	if code == "" {
		return auth.Errorf(auth.KindInvalidToken, "Please provide a valid tempToken")
	}
	return nil
}

func requireCredentials(strategy auth.Strategy, clientID, clientSecret, redirectURI string) error {
	var missing []string
	if clientID == "" {
		missing = append(missing, "client id")
	}
	if clientSecret == "" {
		missing = append(missing, "client secret")
	}
	if redirectURI == "" {
		missing = append(missing, "redirect URI")
	}
	if len(missing) > 0 {
		return auth.Errorf(auth.KindConfig, "%s provider is missing %v", strategy, missing)
	}
	return nil
}

// exchangeError classifies a token endpoint failure. Provider rejections
// keep the provider's message; anything else is a transport failure.
func exchangeError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return auth.Classify(err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return auth.Wrap(auth.KindNetwork, "failed to exchange code", err)
}

// fetchError classifies a failure while calling a provider API after the exchange
func fetchError(what string, status int, err error) error {
	if err != nil {
		return auth.Wrap(auth.KindNetwork, fmt.Sprintf("failed to get %s", what), err)
	}
	return auth.Errorf(auth.KindProvider, "failed to get %s: status %d", what, status)
}
