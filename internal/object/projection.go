package object

import (
	"strings"

	"github.com/bucketview/bucketview/internal/objstore"
)

// Projection is one page of raw entries reshaped relative to the query
// prefix. Within each sub-list the backing store's return order is
// preserved; ordering across the two lists is unspecified.
type Projection struct {
	Folders []Entry
	Files   []Entry
}

// Project converts one raw listing page into folder and file entries.
// It is a pure function of (page, prefix); no tree structure is kept
// anywhere, the hierarchy is recomputed from the delimiter rollups on
// every call.
//
// An object whose key equals the query prefix is the zero-byte folder
// marker some clients create and is always dropped, otherwise a folder
// would list itself as a file.
func Project(page *objstore.Page, prefix, baseURL string) Projection {
	p := Projection{}

	for _, cp := range page.CommonPrefixes {
		if cp.Prefix == nil {
			continue
		}
		key := *cp.Prefix
		name := strings.TrimSuffix(strings.TrimPrefix(key, prefix), Delimiter)
		if name == "" {
			name = "/"
		}
		p.Folders = append(p.Folders, Entry{
			Name: name,
			Key:  key,
			Type: EntryTypeFolder,
		})
	}

	for _, obj := range page.Objects {
		if obj.Key == nil {
			continue
		}
		key := *obj.Key
		if key == prefix {
			continue
		}
		entry := Entry{
			Name:         strings.TrimPrefix(key, prefix),
			Key:          key,
			Type:         EntryTypeFile,
			LastModified: obj.LastModified,
			URL:          objectURL(baseURL, key),
		}
		if obj.Size != nil {
			entry.Size = *obj.Size
		}
		p.Files = append(p.Files, entry)
	}

	return p
}

// Items concatenates folders and files into a single listing.
func (p Projection) Items() []Entry {
	items := make([]Entry, 0, len(p.Folders)+len(p.Files))
	items = append(items, p.Folders...)
	items = append(items, p.Files...)
	return items
}

// objectURL joins the bucket's configured base URL with the raw,
// unstripped object key.
func objectURL(baseURL, key string) string {
	if baseURL == "" {
		return ""
	}
	return strings.TrimSuffix(baseURL, "/") + "/" + strings.TrimPrefix(key, "/")
}

// basename returns the part of key after the last delimiter. A key that
// ends with the delimiter (a folder marker) has an empty basename.
func basename(key string) string {
	if i := strings.LastIndex(key, Delimiter); i >= 0 {
		return key[i+1:]
	}
	return key
}
