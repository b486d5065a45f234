package download

import (
	"context"
	"time"

	"github.com/latchflow/latchflow/internal/model"
)

// Tx is the set of operations the guard needs inside one atomic
// transaction (spec §4.6 steps 1-5).
type Tx interface {
	// LoadAssignmentForUpdate loads and row-locks the BundleAssignment,
	// so a concurrent transaction racing for the same assignment blocks
	// until this one commits or rolls back.
	LoadAssignmentForUpdate(ctx context.Context, assignmentID string) (model.BundleAssignment, error)

	// CountDownloadEvents returns how many DownloadEvents already exist
	// for assignmentID, read within this transaction's snapshot.
	CountDownloadEvents(ctx context.Context, assignmentID string) (int, error)

	// InsertDownloadEvent records the download.
	InsertDownloadEvent(ctx context.Context, event model.DownloadEvent) error

	// TouchLastDownloadAt sets the assignment's lastDownloadAt.
	TouchLastDownloadAt(ctx context.Context, assignmentID string, at time.Time) error
}

// Store begins transactions and loads post-commit bundle state.
type Store interface {
	// WithTx runs fn inside a single transaction, committing on a nil
	// return and rolling back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// GetBundle loads the Bundle row, outside any transaction — called
	// only after the quota/cooldown transaction has committed.
	GetBundle(ctx context.Context, bundleID string) (model.Bundle, error)

	// ListEnabledObjects supports the post-download lazy digest check;
	// see internal/bundle.Store for the same contract.
	ListEnabledObjects(ctx context.Context, bundleID string) ([]BundleObjectRef, error)
}

// BundleObjectRef mirrors internal/bundle.ObjectRef's digest-relevant
// fields, duplicated here rather than imported so this package's Store
// contract doesn't reach into internal/bundle's package for a plain
// data shape.
type BundleObjectRef struct {
	FileID      string
	SortOrder   int
	ContentHash string
}
