package objstore

import "errors"

var (
	// ErrNotFound is returned by a Driver when the requested key does not
	// exist.
	ErrNotFound = errors.New("objstore: object not found")

	// ErrNotSupported is returned by PresignPut when SupportsSignedPut is
	// false.
	ErrNotSupported = errors.New("objstore: operation not supported by driver")

	// ErrHashMismatch reports content whose hash does not match an
	// expected digest. Service.Put derives the digest itself while
	// streaming and does not return this error.
	ErrHashMismatch = errors.New("objstore: content hash mismatch")
)
