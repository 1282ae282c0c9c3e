package crypto

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStateToken(t *testing.T) {
	token := NewStateToken()
	require.NotEmpty(t, token)

	parsed, err := uuid.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(4), parsed.Version())

	seen := make(map[string]bool)
	for range 1000 {
		token := NewStateToken()
		assert.False(t, seen[token], "token repeated")
		seen[token] = true
	}
}

func TestStateEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{name: "equal", a: "abc", b: "abc", want: true},
		{name: "different", a: "abc", b: "abd", want: false},
		{name: "different_length", a: "abc", b: "abcd", want: false},
		{name: "both_empty", a: "", b: "", want: false},
		{name: "one_empty", a: "abc", b: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StateEqual(tt.a, tt.b))
		})
	}
}
