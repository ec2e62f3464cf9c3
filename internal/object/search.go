package object

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
)

// Search walks the entire key space under prefix and returns every file
// whose basename contains term, case-insensitively. The paginator is
// driven without a delimiter so each page carries raw keys instead of
// one folder level.
//
// This is a full scan: cost and latency scale with the number of keys
// under the prefix. The backing store keeps no secondary index, so
// there is nothing cheaper to consult. The aggregate always reports
// isTruncated=false and a nil continuation token since the walk is
// already exhaustive.
func (m *manager) Search(ctx context.Context, target Target, prefix, term string) (*ListResult, error) {
	client := m.newClient(target.Creds)
	needle := strings.ToLower(term)

	var matches []Entry
	token := ""
	pages := 0

	for {
		page, err := client.ListPage(ctx, target.Bucket, prefix, "", token, searchPageSize)
		if err != nil {
			return nil, err
		}
		pages++

		for _, obj := range page.Objects {
			if obj.Key == nil {
				continue
			}
			key := *obj.Key
			if key == prefix {
				continue
			}
			// Folder markers end with the delimiter and have an empty
			// basename, so they can never match a non-empty term.
			if !strings.Contains(strings.ToLower(basename(key)), needle) {
				continue
			}
			entry := Entry{
				Name:         strings.TrimPrefix(key, prefix),
				Key:          key,
				Type:         EntryTypeFile,
				LastModified: obj.LastModified,
				URL:          objectURL(target.BaseURL, key),
			}
			if obj.Size != nil {
				entry.Size = *obj.Size
			}
			matches = append(matches, entry)
		}

		if !page.IsTruncated {
			break
		}
		token = page.NextContinuationToken
	}

	logrus.WithFields(logrus.Fields{
		"bucket":  target.Bucket,
		"prefix":  prefix,
		"term":    term,
		"pages":   pages,
		"matches": len(matches),
	}).Debug("Recursive search completed")

	if matches == nil {
		matches = []Entry{}
	}

	return &ListResult{
		Path:                  prefix,
		Items:                 matches,
		IsTruncated:           false,
		NextContinuationToken: nil,
		KeyCount:              len(matches),
	}, nil
}
