package login

import "github.com/dgellow/popauth/internal/auth"

// Policy decides per failure kind whether the user sees a notice
type Policy map[auth.Kind]bool

// DefaultPolicy shows a notice for rejected codes, state mismatches and any
// failure reported by the login endpoint. Abandoned attempts, errors the
// provider returns on the consent redirect and local misconfiguration stay
// silent.
func DefaultPolicy() Policy {
	return Policy{
		auth.KindInvalidRequest:  true,
		auth.KindInvalidStrategy: true,
		auth.KindInvalidToken:    true,
		auth.KindInvalidGrant:    true,
		auth.KindStateMismatch:   true,
		auth.KindProvider:        true,
		auth.KindNetwork:         true,
		auth.KindInternal:        true,
		auth.KindConsent:         false,
		auth.KindAbandoned:       false,
		auth.KindConfig:          false,
	}
}

// Visible reports whether failures of kind produce a notice
func (p Policy) Visible(kind auth.Kind) bool {
	return p[kind]
}
