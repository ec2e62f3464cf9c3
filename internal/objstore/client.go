package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sirupsen/logrus"
)

// ErrStoreUnavailable wraps any failure returned by the backing object
// store. Calls are never retried at this layer; the caller may retry at
// its discretion.
var ErrStoreUnavailable = errors.New("object store unavailable")

// Page is one raw page of a bucket listing: objects plus the
// common-prefix rollups produced by the delimiter.
type Page struct {
	Objects               []types.Object
	CommonPrefixes        []types.CommonPrefix
	IsTruncated           bool
	NextContinuationToken string
	KeyCount              int32
}

// ObjectInfo carries the metadata resolved by a head call.
type ObjectInfo struct {
	ContentType   string
	ContentLength int64
	LastModified  time.Time
	ETag          string
}

// Client is the interface to a remote S3-compatible store.
type Client interface {
	// ListPage issues a single ListObjectsV2 call. An empty delimiter
	// returns every key under prefix; an empty token starts from the
	// beginning. The sequence is restartable but not snapshot-consistent:
	// concurrent writes between pages may shift or duplicate entries.
	ListPage(ctx context.Context, bucket, prefix, delimiter, token string, pageSize int32) (*Page, error)
	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, int64, error)
	PutObject(ctx context.Context, bucket, key string, data io.Reader, size int64, contentType string) error
	CopyObject(ctx context.Context, bucket, sourceKey, destKey string) error
	DeleteObject(ctx context.Context, bucket, key string) error
	DeleteObjects(ctx context.Context, bucket string, keys []string) error
	HeadObject(ctx context.Context, bucket, key string) (*ObjectInfo, error)
}

// Credentials identifies one tenant account against the remote store.
// Endpoint is empty for AWS proper and set for S3-compatible servers.
type Credentials struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
}

// Factory builds a client for one account's credentials. Clients are
// resolved per request from the bucket's stored configuration, never
// held as a process-wide singleton.
type Factory func(creds Credentials) Client

// RemoteClient talks to a remote S3-compatible server using static
// per-account credentials.
type RemoteClient struct {
	client *s3.Client
	region string
}

// NewRemoteClient creates a client for the given account credentials.
func NewRemoteClient(creds Credentials) Client {
	cfg := aws.Config{
		Region:      creds.Region,
		Credentials: credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretAccessKey, ""),
	}

	if creds.Endpoint != "" {
		cfg.EndpointResolverWithOptions = aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				return aws.Endpoint{
					URL:               creds.Endpoint,
					HostnameImmutable: true,
					SigningRegion:     region,
				}, nil
			})
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		// Path-style URLs for compatibility with non-AWS servers
		o.UsePathStyle = creds.Endpoint != ""
	})

	return &RemoteClient{client: client, region: creds.Region}
}

// ListPage lists one page of keys under prefix.
func (c *RemoteClient) ListPage(ctx context.Context, bucket, prefix, delimiter, token string, pageSize int32) (*Page, error) {
	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(bucket),
		MaxKeys: aws.Int32(pageSize),
	}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}
	if delimiter != "" {
		input.Delimiter = aws.String(delimiter)
	}
	if token != "" {
		input.ContinuationToken = aws.String(token)
	}

	result, err := c.client.ListObjectsV2(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("%w: list objects: %v", ErrStoreUnavailable, err)
	}

	page := &Page{
		Objects:        result.Contents,
		CommonPrefixes: result.CommonPrefixes,
	}
	if result.IsTruncated != nil {
		page.IsTruncated = *result.IsTruncated
	}
	if result.NextContinuationToken != nil {
		page.NextContinuationToken = *result.NextContinuationToken
	}
	if result.KeyCount != nil {
		page.KeyCount = *result.KeyCount
	}

	return page, nil
}

// GetObject downloads an object from the remote store.
func (c *RemoteClient) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, int64, error) {
	result, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, 0, fmt.Errorf("%w: get object: %v", ErrStoreUnavailable, err)
	}

	size := int64(0)
	if result.ContentLength != nil {
		size = *result.ContentLength
	}

	return result.Body, size, nil
}

// PutObject uploads an object to the remote store.
func (c *RemoteClient) PutObject(ctx context.Context, bucket, key string, data io.Reader, size int64, contentType string) error {
	logrus.WithFields(logrus.Fields{
		"bucket": bucket,
		"key":    key,
		"size":   size,
	}).Debug("Uploading object to remote store")

	input := &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          data,
		ContentLength: aws.Int64(size),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := c.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("%w: put object: %v", ErrStoreUnavailable, err)
	}

	return nil
}

// CopyObject copies an object within the same bucket.
func (c *RemoteClient) CopyObject(ctx context.Context, bucket, sourceKey, destKey string) error {
	logrus.WithFields(logrus.Fields{
		"bucket":     bucket,
		"source_key": sourceKey,
		"dest_key":   destKey,
	}).Debug("Copying object on remote store")

	_, err := c.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(bucket),
		Key:        aws.String(destKey),
		CopySource: aws.String(fmt.Sprintf("%s/%s", bucket, sourceKey)),
	})
	if err != nil {
		return fmt.Errorf("%w: copy object: %v", ErrStoreUnavailable, err)
	}

	return nil
}

// DeleteObject deletes a single object.
func (c *RemoteClient) DeleteObject(ctx context.Context, bucket, key string) error {
	_, err := c.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("%w: delete object: %v", ErrStoreUnavailable, err)
	}

	return nil
}

// DeleteObjects removes all given keys in one round trip.
func (c *RemoteClient) DeleteObjects(ctx context.Context, bucket string, keys []string) error {
	objects := make([]types.ObjectIdentifier, len(keys))
	for i, key := range keys {
		objects[i] = types.ObjectIdentifier{Key: aws.String(key)}
	}

	_, err := c.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(bucket),
		Delete: &types.Delete{
			Objects: objects,
			Quiet:   aws.Bool(true),
		},
	})
	if err != nil {
		return fmt.Errorf("%w: delete objects: %v", ErrStoreUnavailable, err)
	}

	logrus.WithFields(logrus.Fields{
		"bucket": bucket,
		"count":  len(keys),
	}).Info("Deleted objects from remote store")

	return nil
}

// HeadObject resolves current object metadata.
func (c *RemoteClient) HeadObject(ctx context.Context, bucket, key string) (*ObjectInfo, error) {
	result, err := c.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: head object: %v", ErrStoreUnavailable, err)
	}

	info := &ObjectInfo{}
	if result.ContentType != nil {
		info.ContentType = *result.ContentType
	}
	if result.ContentLength != nil {
		info.ContentLength = *result.ContentLength
	}
	if result.LastModified != nil {
		info.LastModified = *result.LastModified
	}
	if result.ETag != nil {
		info.ETag = *result.ETag
	}

	return info, nil
}
