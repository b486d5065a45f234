package objstore

import (
	"context"
	"io"
)

// ObjectInfo is the metadata a driver reports back for a stored object,
// independent of the File row that references it.
type ObjectInfo struct {
	Key  string
	Size int64
	ETag string
}

// Driver is the storage backend contract of spec §6.2. Implementations
// must be safe for concurrent use. Keys are always content-addressed
// paths derived by the Service, never chosen by the driver.
type Driver interface {
	// Put stores size bytes read from body under key, returning the
	// backend-reported ETag. Put must be idempotent: storing the same
	// key twice with identical content succeeds without duplication.
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (etag string, err error)

	// Get opens key for reading. Callers must close the returned
	// ReadCloser. Returns ErrNotFound if key does not exist.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)

	// Head reports metadata for key without transferring the body.
	// Returns ErrNotFound if key does not exist.
	Head(ctx context.Context, key string) (ObjectInfo, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// SupportsSignedPut reports whether PresignPut is implemented. The
	// in-memory reference driver returns false; a production object
	// storage driver (e.g. S3) would return true.
	SupportsSignedPut() bool

	// PresignPut returns a pre-signed upload URL for key, valid for the
	// given duration. Callers must check SupportsSignedPut first; a
	// driver that doesn't support it returns ErrNotSupported.
	PresignPut(ctx context.Context, key string, expiresInSeconds int) (url string, err error)
}
