package account

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "accounts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_CreateAndAuthenticate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, "alice", "correct horse battery"))

	assert.NoError(t, store.Authenticate(ctx, "alice", "correct horse battery"))
	assert.ErrorIs(t, store.Authenticate(ctx, "alice", "wrong password"), ErrInvalidCredentials)
	assert.ErrorIs(t, store.Authenticate(ctx, "nobody", "whatever"), ErrInvalidCredentials)
}

func TestStore_DuplicateUsername(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, "alice", "first password"))
	assert.ErrorIs(t, store.Create(ctx, "alice", "second password"), ErrUserExists)
}

func TestStore_CredentialValidation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	testCases := []struct {
		name     string
		username string
		password string
	}{
		{"empty username", "", "long enough password"},
		{"short username", "ab", "long enough password"},
		{"non-alphanumeric username", "al ice!", "long enough password"},
		{"empty password", "alice", ""},
		{"short password", "alice", "short"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Error(t, store.Create(ctx, tc.username, tc.password))
		})
	}

	// Nothing invalid was persisted.
	usernames, err := store.Usernames(ctx)
	require.NoError(t, err)
	assert.Empty(t, usernames)
}

func TestStore_Usernames(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, username := range []string{"carol", "alice", "bob"} {
		require.NoError(t, store.Create(ctx, username, "shared password"))
	}

	usernames, err := store.Usernames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob", "carol"}, usernames)
}

func TestStore_PasswordsStoredHashed(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, "alice", "plain password 1"))

	var hash string
	err := store.db.QueryRowContext(ctx,
		"SELECT password_hash FROM users WHERE username = ?", "alice").Scan(&hash)
	require.NoError(t, err)
	assert.NotEqual(t, "plain password 1", hash)
	assert.Contains(t, hash, "$2", "expected a bcrypt hash")
}
