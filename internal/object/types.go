package object

import (
	"errors"
	"io"
	"time"

	"github.com/bucketview/bucketview/internal/objstore"
)

// Delimiter used to project the flat key space into folders.
const Delimiter = "/"

// DefaultPageSize bounds one listing page when the caller gives no limit.
const DefaultPageSize = int32(100)

// searchPageSize is used when walking the full key space under a prefix.
const searchPageSize = int32(1000)

var (
	ErrEmptyKey = errors.New("object key is required")
	ErrNoKeys   = errors.New("file paths are required")

	// ErrRenamePartial means the copy succeeded but the delete of the old
	// key failed, so the object exists at both keys. Rename is copy+delete
	// and is not atomic; callers must reconcile duplicates out-of-band.
	ErrRenamePartial = errors.New("rename partially applied: object exists at old and new key")
)

// Entry is one virtual filesystem entry derived from the object store.
// Entries are never persisted; they are recomputed on every call.
type Entry struct {
	Name         string     `json:"name"`
	Key          string     `json:"key"`
	Type         string     `json:"type"` // "folder" or "file"
	Size         int64      `json:"size,omitempty"`
	LastModified *time.Time `json:"lastModified,omitempty"`
	URL          string     `json:"url,omitempty"`
}

const (
	EntryTypeFolder = "folder"
	EntryTypeFile   = "file"
)

// ListResult is the externally visible shape of a listing or search.
type ListResult struct {
	Path                  string  `json:"path"`
	Items                 []Entry `json:"items"`
	IsTruncated           bool    `json:"isTruncated"`
	NextContinuationToken *string `json:"nextContinuationToken"`
	KeyCount              int     `json:"keyCount"`
}

// Target names the resolved bucket an operation runs against, along
// with the account credentials it was registered under.
type Target struct {
	Bucket  string
	BaseURL string
	Creds   objstore.Credentials
}

// UploadFile is one file submitted in an upload request.
type UploadFile struct {
	Name        string
	ContentType string
	Size        int64
	Data        io.Reader
}

// UploadResult reports the per-file outcome of an upload. Uploads are
// independent; a failing file does not roll back the ones before it.
type UploadResult struct {
	Name        string `json:"name"`
	Location    string `json:"location,omitempty"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType,omitempty"`
	Error       string `json:"error,omitempty"`
}
