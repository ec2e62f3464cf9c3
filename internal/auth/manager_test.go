package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bucketview/bucketview/internal/db"
)

const testSecret = "test-jwt-secret"

func newTestStore(t *testing.T) *db.Store {
	t.Helper()
	store, err := db.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedUser(t *testing.T, store *db.Store, email, password, status string) *db.User {
	t.Helper()
	hash, err := HashPassword(password)
	require.NoError(t, err)

	user := &db.User{
		ID:           uuid.New().String(),
		Name:         "Test User",
		Email:        email,
		PasswordHash: hash,
		Status:       status,
		UserType:     db.UserTypeUser,
	}
	require.NoError(t, store.CreateUser(user))
	return user
}

func TestLoginIssuesValidatableToken(t *testing.T) {
	store := newTestStore(t)
	manager := NewManager(store, testSecret, time.Hour)
	user := seedUser(t, store, "alice@example.com", "s3cret", db.UserStatusActive)

	result, err := manager.Login(context.Background(), "alice@example.com", "s3cret")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, user.ID, result.Identity.UserID)
	assert.Equal(t, "alice@example.com", result.Identity.Email)
	assert.NotEmpty(t, result.Identity.JTI)

	identity, err := manager.Validate(context.Background(), result.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, identity.UserID)
	assert.Equal(t, result.Identity.JTI, identity.JTI)
}

func TestLoginWrongPassword(t *testing.T) {
	store := newTestStore(t)
	manager := NewManager(store, testSecret, time.Hour)
	seedUser(t, store, "alice@example.com", "s3cret", db.UserStatusActive)

	_, err := manager.Login(context.Background(), "alice@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginUnknownEmail(t *testing.T) {
	store := newTestStore(t)
	manager := NewManager(store, testSecret, time.Hour)

	// Unknown email and wrong password are indistinguishable to the caller
	_, err := manager.Login(context.Background(), "nobody@example.com", "whatever")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginRevokedUser(t *testing.T) {
	store := newTestStore(t)
	manager := NewManager(store, testSecret, time.Hour)
	seedUser(t, store, "gone@example.com", "s3cret", db.UserStatusRevoked)

	_, err := manager.Login(context.Background(), "gone@example.com", "s3cret")
	assert.ErrorIs(t, err, ErrUserRevoked)
}

func TestLogoutRevokesSession(t *testing.T) {
	store := newTestStore(t)
	manager := NewManager(store, testSecret, time.Hour)
	seedUser(t, store, "alice@example.com", "s3cret", db.UserStatusActive)

	result, err := manager.Login(context.Background(), "alice@example.com", "s3cret")
	require.NoError(t, err)

	require.NoError(t, manager.Logout(context.Background(), result.Token))

	// The token still has a valid signature but the session is gone
	_, err = manager.Validate(context.Background(), result.Token)
	assert.ErrorIs(t, err, ErrTokenRevoked)
}

func TestValidateExpiredToken(t *testing.T) {
	store := newTestStore(t)
	manager := NewManager(store, testSecret, 10*time.Millisecond)
	seedUser(t, store, "alice@example.com", "s3cret", db.UserStatusActive)

	result, err := manager.Login(context.Background(), "alice@example.com", "s3cret")
	require.NoError(t, err)

	time.Sleep(1100 * time.Millisecond)

	_, err = manager.Validate(context.Background(), result.Token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestValidateGarbageToken(t *testing.T) {
	store := newTestStore(t)
	manager := NewManager(store, testSecret, time.Hour)

	for _, token := range []string{"", "not-a-jwt", "a.b.c"} {
		_, err := manager.Validate(context.Background(), token)
		assert.ErrorIs(t, err, ErrInvalidToken, "token %q", token)
	}
}

func TestValidateTokenSignedWithDifferentSecret(t *testing.T) {
	store := newTestStore(t)
	seedUser(t, store, "alice@example.com", "s3cret", db.UserStatusActive)

	result, err := NewManager(store, "other-secret", time.Hour).
		Login(context.Background(), "alice@example.com", "s3cret")
	require.NoError(t, err)

	_, err = NewManager(store, testSecret, time.Hour).
		Validate(context.Background(), result.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)

	assert.True(t, VerifyPassword("correct horse", hash))
	assert.False(t, VerifyPassword("battery staple", hash))
}
