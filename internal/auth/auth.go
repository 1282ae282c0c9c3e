// Package auth holds the types shared by the login endpoint and the client-side
// login flow: strategies, normalized user profiles and authentication results.
package auth

import (
	"fmt"
	"slices"
)

// Strategy identifies the identity provider that produced a result.
type Strategy string

const (
	StrategyGoogle Strategy = "google"
	StrategyGitHub Strategy = "github"
)

var knownStrategies = []Strategy{StrategyGoogle, StrategyGitHub}

// ParseStrategy returns the Strategy named by s, or a KindInvalidStrategy error.
func ParseStrategy(s string) (Strategy, error) {
	strategy := Strategy(s)
	if !slices.Contains(knownStrategies, strategy) {
		return "", &Error{Kind: KindInvalidStrategy, Message: "Please provide a valid strategy"}
	}
	return strategy, nil
}

// UserProfile is the provider-independent identity returned by a successful exchange.
type UserProfile struct {
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Picture       string `json:"picture"`
}

// Result is what the login endpoint returns and what the client persists.
type Result struct {
	Strategy Strategy    `json:"strategy"`
	Profile  UserProfile `json:"profile"`
}

// Validate reports whether r looks like a result produced by a real login.
func (r *Result) Validate() error {
	if r == nil {
		return fmt.Errorf("result is nil")
	}
	if _, err := ParseStrategy(string(r.Strategy)); err != nil {
		return fmt.Errorf("unknown strategy %q", r.Strategy)
	}
	return nil
}

// LoginRequest is the body accepted by the login endpoint.
type LoginRequest struct {
	Strategy  string `json:"strategy"`
	TempToken string `json:"tempToken"`
}
