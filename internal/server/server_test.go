package server

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bucketview/bucketview/internal/access"
	"github.com/bucketview/bucketview/internal/auth"
	"github.com/bucketview/bucketview/internal/config"
	"github.com/bucketview/bucketview/internal/crypto"
	"github.com/bucketview/bucketview/internal/db"
	"github.com/bucketview/bucketview/internal/metrics"
	"github.com/bucketview/bucketview/internal/object"
	"github.com/bucketview/bucketview/internal/objstore"
)

// mockObjectManager is a testify mock of the virtual filesystem manager.
type mockObjectManager struct {
	mock.Mock
}

func (m *mockObjectManager) ListFolder(ctx context.Context, target object.Target, folder string, limit int32, token string) (*object.ListResult, error) {
	args := m.Called(ctx, target, folder, limit, token)
	if result, ok := args.Get(0).(*object.ListResult); ok {
		return result, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockObjectManager) Search(ctx context.Context, target object.Target, folder, term string) (*object.ListResult, error) {
	args := m.Called(ctx, target, folder, term)
	if result, ok := args.Get(0).(*object.ListResult); ok {
		return result, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockObjectManager) Rename(ctx context.Context, target object.Target, oldKey, newKey string) error {
	return m.Called(ctx, target, oldKey, newKey).Error(0)
}

func (m *mockObjectManager) Upload(ctx context.Context, target object.Target, basePrefix string, files []object.UploadFile) []object.UploadResult {
	args := m.Called(ctx, target, basePrefix, files)
	if results, ok := args.Get(0).([]object.UploadResult); ok {
		return results
	}
	return nil
}

func (m *mockObjectManager) Delete(ctx context.Context, target object.Target, keys []string) error {
	return m.Called(ctx, target, keys).Error(0)
}

func (m *mockObjectManager) Download(ctx context.Context, target object.Target, key string) (*objstore.ObjectInfo, io.ReadCloser, error) {
	args := m.Called(ctx, target, key)
	var info *objstore.ObjectInfo
	if v, ok := args.Get(0).(*objstore.ObjectInfo); ok {
		info = v
	}
	var body io.ReadCloser
	if v, ok := args.Get(1).(io.ReadCloser); ok {
		body = v
	}
	return info, body, args.Error(2)
}

type testEnv struct {
	server  *Server
	store   *db.Store
	objects *mockObjectManager
	codec   *crypto.Codec
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := db.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := &config.Config{
		Listen:  ":0",
		DataDir: t.TempDir(),
		Auth: config.AuthConfig{
			JWTSecret:          "test-jwt-secret",
			TokenTTLMinutes:    60,
			EncryptionKey:      "test-encryption-key",
			LoginMaxAttempts:   5,
			LoginWindowSeconds: 60,
		},
		Metrics: config.MetricsConfig{Enable: true, Path: "/metrics"},
	}

	objects := &mockObjectManager{}
	codec := crypto.NewCodec(cfg.Auth.EncryptionKey)

	server := &Server{
		config:      cfg,
		store:       store,
		authManager: auth.NewManager(store, cfg.Auth.JWTSecret, time.Hour),
		resolver:    access.NewResolver(store),
		objects:     objects,
		codec:       codec,
		metrics:     metrics.NewRegistry(),
		limiter:     auth.NewLoginRateLimiter(cfg.Auth.LoginMaxAttempts, time.Minute),
	}

	return &testEnv{server: server, store: store, objects: objects, codec: codec}
}

func (e *testEnv) addUser(t *testing.T, userType string) *db.User {
	t.Helper()
	hash, err := auth.HashPassword("s3cret")
	require.NoError(t, err)

	user := &db.User{
		ID:           uuid.NewString(),
		Name:         "Test User",
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: hash,
		Status:       db.UserStatusActive,
		UserType:     userType,
	}
	require.NoError(t, e.store.CreateUser(user))
	return user
}

func (e *testEnv) addAccount(t *testing.T, name string) *db.StorageAccount {
	t.Helper()
	accessEnc, err := e.codec.Encrypt("plain-access-key")
	require.NoError(t, err)
	secretEnc, err := e.codec.Encrypt("plain-secret-key")
	require.NoError(t, err)

	account := &db.StorageAccount{
		ID:              uuid.NewString(),
		AccountName:     name,
		Region:          "us-east-1",
		AccessKeyID:     accessEnc,
		SecretAccessKey: secretEnc,
	}
	require.NoError(t, e.store.CreateAccount(account))
	return account
}

func (e *testEnv) addBucket(t *testing.T, accountID, alias string) *db.Bucket {
	t.Helper()
	bucket := &db.Bucket{
		ID:         uuid.NewString(),
		AccountID:  accountID,
		Alias:      alias,
		BucketName: alias + "-bucket",
		BaseURL:    "https://" + alias + ".example.com",
	}
	require.NoError(t, e.store.CreateBucket(bucket))
	return bucket
}

func (e *testEnv) grantBucket(t *testing.T, user *db.User, bucket *db.Bucket) {
	t.Helper()
	role := &db.Role{ID: uuid.NewString(), Name: "role-" + uuid.NewString()}
	require.NoError(t, e.store.CreateRole(role))
	require.NoError(t, e.store.AssignRoleToUser(user.ID, role.ID))
	require.NoError(t, e.store.AssignBucketToRole(role.ID, bucket.ID))
}

func identityFor(user *db.User) *auth.Identity {
	return &auth.Identity{
		UserID: user.ID,
		Name:   user.Name,
		Email:  user.Email,
		JTI:    uuid.NewString(),
	}
}
