package object

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/bucketview/bucketview/internal/objstore"
)

// Manager exposes the virtual filesystem operations over a resolved
// bucket. Every method builds its store client from the target's
// credentials, so concurrent requests against different tenant buckets
// never share client state.
type Manager interface {
	// ListFolder returns one page of the folder view at the given prefix.
	ListFolder(ctx context.Context, target Target, folder string, limit int32, token string) (*ListResult, error)
	// Search returns every file under folder whose basename contains term.
	Search(ctx context.Context, target Target, folder, term string) (*ListResult, error)
	// Rename moves an object by copying it to newKey and deleting oldKey.
	Rename(ctx context.Context, target Target, oldKey, newKey string) error
	// Upload stores each file under basePrefix+filename, independently.
	Upload(ctx context.Context, target Target, basePrefix string, files []UploadFile) []UploadResult
	// Delete removes the given keys in one batch round trip.
	Delete(ctx context.Context, target Target, keys []string) error
	// Download resolves object metadata and opens the body for streaming.
	Download(ctx context.Context, target Target, key string) (*objstore.ObjectInfo, io.ReadCloser, error)
}

type manager struct {
	newClient objstore.Factory
}

// NewManager creates a Manager that resolves store clients through the
// given factory.
func NewManager(factory objstore.Factory) Manager {
	return &manager{newClient: factory}
}

// ListFolder lists one level of the key space under folder, using the
// delimiter to roll everything below the next slash into folder entries.
func (m *manager) ListFolder(ctx context.Context, target Target, folder string, limit int32, token string) (*ListResult, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}

	client := m.newClient(target.Creds)
	page, err := client.ListPage(ctx, target.Bucket, folder, Delimiter, token, limit)
	if err != nil {
		return nil, err
	}

	projection := Project(page, folder, target.BaseURL)

	result := &ListResult{
		Path:        folder,
		Items:       projection.Items(),
		IsTruncated: page.IsTruncated,
		KeyCount:    int(page.KeyCount),
	}
	if page.NextContinuationToken != "" {
		result.NextContinuationToken = &page.NextContinuationToken
	}

	return result, nil
}

// Rename is copy-then-delete and therefore not atomic: a failed delete
// after a successful copy leaves the object readable at both keys and
// surfaces ErrRenamePartial. A failed copy changes nothing.
func (m *manager) Rename(ctx context.Context, target Target, oldKey, newKey string) error {
	if oldKey == "" || newKey == "" {
		return ErrEmptyKey
	}

	client := m.newClient(target.Creds)

	if err := client.CopyObject(ctx, target.Bucket, oldKey, newKey); err != nil {
		return err
	}

	if err := client.DeleteObject(ctx, target.Bucket, oldKey); err != nil {
		logrus.WithFields(logrus.Fields{
			"bucket":  target.Bucket,
			"old_key": oldKey,
			"new_key": newKey,
		}).WithError(err).Error("Rename copy succeeded but delete failed")
		return fmt.Errorf("%w: %v", ErrRenamePartial, err)
	}

	logrus.WithFields(logrus.Fields{
		"bucket":  target.Bucket,
		"old_key": oldKey,
		"new_key": newKey,
	}).Info("Renamed object")

	return nil
}

// Upload puts each file independently; a failure is recorded on that
// file's result and does not undo files already uploaded.
func (m *manager) Upload(ctx context.Context, target Target, basePrefix string, files []UploadFile) []UploadResult {
	client := m.newClient(target.Creds)
	results := make([]UploadResult, 0, len(files))

	for _, f := range files {
		key := basePrefix + f.Name
		result := UploadResult{
			Name:        f.Name,
			Size:        f.Size,
			ContentType: f.ContentType,
		}

		if err := client.PutObject(ctx, target.Bucket, key, f.Data, f.Size, f.ContentType); err != nil {
			logrus.WithFields(logrus.Fields{
				"bucket": target.Bucket,
				"key":    key,
			}).WithError(err).Error("Upload failed")
			result.Error = "upload failed"
		} else {
			result.Location = objectURL(target.BaseURL, key)
		}

		results = append(results, result)
	}

	return results
}

// Delete removes all keys in a single batch call. An empty key list is
// a validation error, returned before any store call is issued.
func (m *manager) Delete(ctx context.Context, target Target, keys []string) error {
	if len(keys) == 0 {
		return ErrNoKeys
	}

	client := m.newClient(target.Creds)
	return client.DeleteObjects(ctx, target.Bucket, keys)
}

// Download resolves current metadata via a head call and opens the
// object body. The caller owns the returned ReadCloser and relays it
// without buffering; cancelling ctx stops the stream.
func (m *manager) Download(ctx context.Context, target Target, key string) (*objstore.ObjectInfo, io.ReadCloser, error) {
	if key == "" {
		return nil, nil, ErrEmptyKey
	}

	client := m.newClient(target.Creds)

	info, err := client.HeadObject(ctx, target.Bucket, key)
	if err != nil {
		return nil, nil, err
	}

	body, _, err := client.GetObject(ctx, target.Bucket, key)
	if err != nil {
		return nil, nil, err
	}

	return info, body, nil
}
