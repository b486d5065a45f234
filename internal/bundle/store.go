package bundle

import (
	"context"

	"github.com/latchflow/latchflow/internal/model"
)

// ObjectRef is the minimal per-member data the digest computation (spec
// §4.5 step 1) needs, ordered by SortOrder.
type ObjectRef struct {
	FileID      string
	SortOrder   int
	ContentHash string
	// FileKey is the archive entry name (the File's logical Key, not its
	// content-addressed storage key).
	FileKey string
	// StorageKey is where objstore holds the file's bytes.
	StorageKey string
}

// Store is the persistence surface the bundle scheduler needs.
type Store interface {
	// GetBundle returns the current Bundle row.
	GetBundle(ctx context.Context, bundleID string) (model.Bundle, error)

	// ListEnabledObjects returns the bundle's enabled BundleObjects
	// joined with their File's content hash, ordered by SortOrder.
	ListEnabledObjects(ctx context.Context, bundleID string) ([]ObjectRef, error)

	// BundleIDsForFile returns every bundle id that currently includes
	// fileID as an enabled member, for scheduleForFiles fan-out.
	BundleIDsForFile(ctx context.Context, fileID string) ([]string, error)

	// UpdateBundleArtifact commits a freshly built archive: the new
	// digest, storage key and checksum become visible to readers
	// atomically with clearing any "pending" placeholder.
	UpdateBundleArtifact(ctx context.Context, bundleID, digest, storageKey, checksum string) error
}
