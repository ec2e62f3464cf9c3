package object

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"github.com/bucketview/bucketview/internal/objstore"
)

// mockClient is a testify mock of the object store client.
type mockClient struct {
	mock.Mock
}

func (m *mockClient) ListPage(ctx context.Context, bucket, prefix, delimiter, token string, pageSize int32) (*objstore.Page, error) {
	args := m.Called(ctx, bucket, prefix, delimiter, token, pageSize)
	if page, ok := args.Get(0).(*objstore.Page); ok {
		return page, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockClient) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, int64, error) {
	args := m.Called(ctx, bucket, key)
	if body, ok := args.Get(0).(io.ReadCloser); ok {
		return body, args.Get(1).(int64), args.Error(2)
	}
	return nil, 0, args.Error(2)
}

func (m *mockClient) PutObject(ctx context.Context, bucket, key string, data io.Reader, size int64, contentType string) error {
	args := m.Called(ctx, bucket, key, data, size, contentType)
	return args.Error(0)
}

func (m *mockClient) CopyObject(ctx context.Context, bucket, sourceKey, destKey string) error {
	args := m.Called(ctx, bucket, sourceKey, destKey)
	return args.Error(0)
}

func (m *mockClient) DeleteObject(ctx context.Context, bucket, key string) error {
	args := m.Called(ctx, bucket, key)
	return args.Error(0)
}

func (m *mockClient) DeleteObjects(ctx context.Context, bucket string, keys []string) error {
	args := m.Called(ctx, bucket, keys)
	return args.Error(0)
}

func (m *mockClient) HeadObject(ctx context.Context, bucket, key string) (*objstore.ObjectInfo, error) {
	args := m.Called(ctx, bucket, key)
	if info, ok := args.Get(0).(*objstore.ObjectInfo); ok {
		return info, args.Error(1)
	}
	return nil, args.Error(1)
}

// newMockedManager returns a manager whose factory always hands back
// the given mock, plus a target pointing at a test bucket.
func newMockedManager(client *mockClient) (Manager, Target) {
	factory := func(creds objstore.Credentials) objstore.Client { return client }
	target := Target{
		Bucket:  "test-bucket",
		BaseURL: "https://files.example.com",
		Creds:   objstore.Credentials{Region: "us-east-1"},
	}
	return NewManager(factory), target
}
