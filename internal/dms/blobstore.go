package dms

import (
	"context"
	"errors"
	"io"

	"github.com/DoctaneDMS/dms-service-sql/internal/id"
)

// ErrBlobNotFound is returned by a BlobStore for a key with no blob.
var ErrBlobNotFound = errors.New("blob not found")

// BlobStore holds document payloads keyed by version id.
type BlobStore interface {
	// Get opens the blob stored under key. The caller closes the reader.
	Get(ctx context.Context, key id.ID) (io.ReadCloser, error)

	// Put stores everything read from r under key, replacing any previous
	// blob.
	Put(ctx context.Context, key id.ID, r io.Reader) error

	// Link makes the blob stored under from also available under to.
	Link(ctx context.Context, from, to id.ID) error

	// Remove deletes the blob under key. A missing key yields an error
	// matching ErrBlobNotFound.
	Remove(ctx context.Context, key id.ID) error

	// ParseKey reads the text form of a key.
	ParseKey(text string) (id.ID, error)

	// GenerateKey returns a key no stored blob uses yet.
	GenerateKey() id.ID
}
