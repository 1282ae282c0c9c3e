package crypto

import (
	"crypto/subtle"

	"github.com/google/uuid"
)

// NewStateToken returns a fresh anti-forgery token for one login attempt.
// It is a random (version 4) UUID read from crypto/rand.
func NewStateToken() string {
	return uuid.NewString()
}

// StateEqual compares two state tokens in constant time. Empty tokens never match.
func StateEqual(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
