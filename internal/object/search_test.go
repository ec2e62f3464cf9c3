package object

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bucketview/bucketview/internal/objstore"
)

func TestSearchFiltersByBasename(t *testing.T) {
	client := &mockClient{}
	manager, target := newMockedManager(client)

	client.On("ListPage", mock.Anything, "test-bucket", "/d/", "", "", searchPageSize).
		Return(&objstore.Page{
			Objects: []types.Object{
				{Key: aws.String("/d/annual-report.pdf")},
				{Key: aws.String("/d/monthly-report.docx")},
				{Key: aws.String("/d/other.txt")},
			},
			IsTruncated: false,
		}, nil)

	result, err := manager.Search(context.Background(), target, "/d/", "report")
	require.NoError(t, err)

	require.Len(t, result.Items, 2)
	keys := []string{result.Items[0].Key, result.Items[1].Key}
	assert.Contains(t, keys, "/d/annual-report.pdf")
	assert.Contains(t, keys, "/d/monthly-report.docx")
	assert.Equal(t, 2, result.KeyCount)
	assert.False(t, result.IsTruncated)
	assert.Nil(t, result.NextContinuationToken)
}

func TestSearchIsCaseInsensitive(t *testing.T) {
	client := &mockClient{}
	manager, target := newMockedManager(client)

	client.On("ListPage", mock.Anything, "test-bucket", "", "", "", searchPageSize).
		Return(&objstore.Page{
			Objects: []types.Object{
				{Key: aws.String("Invoice-2026.PDF")},
				{Key: aws.String("notes.txt")},
			},
		}, nil)

	result, err := manager.Search(context.Background(), target, "", "invoice")
	require.NoError(t, err)

	require.Len(t, result.Items, 1)
	assert.Equal(t, "Invoice-2026.PDF", result.Items[0].Key)
}

func TestSearchWalksAllPages(t *testing.T) {
	client := &mockClient{}
	manager, target := newMockedManager(client)

	client.On("ListPage", mock.Anything, "test-bucket", "p/", "", "", searchPageSize).
		Return(&objstore.Page{
			Objects:               []types.Object{{Key: aws.String("p/report-1.pdf")}},
			IsTruncated:           true,
			NextContinuationToken: "cursor-1",
		}, nil).Once()
	client.On("ListPage", mock.Anything, "test-bucket", "p/", "", "cursor-1", searchPageSize).
		Return(&objstore.Page{
			Objects:               []types.Object{{Key: aws.String("p/skip.txt")}},
			IsTruncated:           true,
			NextContinuationToken: "cursor-2",
		}, nil).Once()
	client.On("ListPage", mock.Anything, "test-bucket", "p/", "", "cursor-2", searchPageSize).
		Return(&objstore.Page{
			Objects:     []types.Object{{Key: aws.String("p/deep/report-2.pdf")}},
			IsTruncated: false,
		}, nil).Once()

	result, err := manager.Search(context.Background(), target, "p/", "report")
	require.NoError(t, err)

	client.AssertNumberOfCalls(t, "ListPage", 3)
	require.Len(t, result.Items, 2)
	// The aggregate is exhaustive no matter how many pages were walked
	assert.False(t, result.IsTruncated)
	assert.Nil(t, result.NextContinuationToken)
	assert.Equal(t, 2, result.KeyCount)
}

func TestSearchSkipsFolderMarkers(t *testing.T) {
	client := &mockClient{}
	manager, target := newMockedManager(client)

	client.On("ListPage", mock.Anything, "test-bucket", "docs/", "", "", searchPageSize).
		Return(&objstore.Page{
			Objects: []types.Object{
				{Key: aws.String("docs/")},
				{Key: aws.String("docs/reports/")},
				{Key: aws.String("docs/reports/q1.pdf")},
			},
		}, nil)

	result, err := manager.Search(context.Background(), target, "docs/", "reports")
	require.NoError(t, err)

	// "docs/reports/" ends with the delimiter: empty basename, no match
	require.Len(t, result.Items, 0)
	assert.Equal(t, 0, result.KeyCount)

	result, err = manager.Search(context.Background(), target, "docs/", "q1")
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "docs/reports/q1.pdf", result.Items[0].Key)
}

func TestSearchPropagatesStoreError(t *testing.T) {
	client := &mockClient{}
	manager, target := newMockedManager(client)

	client.On("ListPage", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, objstore.ErrStoreUnavailable)

	_, err := manager.Search(context.Background(), target, "", "x")
	assert.ErrorIs(t, err, objstore.ErrStoreUnavailable)
}
