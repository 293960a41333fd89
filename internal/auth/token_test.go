package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToken_RoundTrip(t *testing.T) {
	manager := NewManager("test-secret-at-least-16-chars", time.Hour)

	token, err := manager.Issue("alice")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	username, err := manager.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", username)
}

func TestToken_WrongSecret(t *testing.T) {
	issuer := NewManager("issuer-secret-1234567890", time.Hour)
	verifier := NewManager("different-secret-0987654321", time.Hour)

	token, err := issuer.Issue("alice")
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestToken_Expired(t *testing.T) {
	manager := NewManager("test-secret-at-least-16-chars", -time.Minute)

	token, err := manager.Issue("alice")
	require.NoError(t, err)

	_, err = manager.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestToken_Garbage(t *testing.T) {
	manager := NewManager("test-secret-at-least-16-chars", time.Hour)

	for _, token := range []string{"", "not-a-token", "a.b.c"} {
		_, err := manager.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken, "token %q", token)
	}
}
