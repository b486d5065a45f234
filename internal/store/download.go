package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/latchflow/latchflow/internal/download"
	"github.com/latchflow/latchflow/internal/model"
)

// DownloadStore adapts the shared Store to download.Store. It is a
// distinct type, not a method set on *Store directly, because
// download.Store and bundle.Store both declare a ListEnabledObjects
// method with the same name but different return element types
// (download.BundleObjectRef vs. bundle.ObjectRef) — Go has no method
// overloading, so *Store can satisfy at most one of them directly.
// Embedding *Store promotes GetBundle (identical signature in both
// interfaces) for free and this type supplies its own
// ListEnabledObjects/WithTx to shadow/complete the rest.
type DownloadStore struct {
	*Store
}

// NewDownloadStore wraps store for use as a download.Store.
func NewDownloadStore(store *Store) *DownloadStore {
	return &DownloadStore{Store: store}
}

var _ download.Store = (*DownloadStore)(nil)

// pgTx implements download.Tx over a single pgx.Tx, so the guard's
// quota/cooldown check-then-write sequence (spec §4.6 steps 1-5) runs
// inside one transaction with a row lock held across all four calls.
type pgTx struct {
	tx pgx.Tx
}

// LoadAssignmentForUpdate implements download.Tx.
func (t *pgTx) LoadAssignmentForUpdate(ctx context.Context, assignmentID string) (model.BundleAssignment, error) {
	var a model.BundleAssignment
	err := t.tx.QueryRow(ctx, `
		SELECT id, bundle_id, recipient_id, is_enabled, max_downloads, cooldown_seconds,
		       last_download_at, verification_met, created_at
		FROM bundle_assignments
		WHERE id = $1
		FOR UPDATE`, assignmentID,
	).Scan(&a.ID, &a.BundleID, &a.RecipientID, &a.IsEnabled, &a.MaxDownloads, &a.CooldownSeconds,
		&a.LastDownloadAt, &a.VerificationMet, &a.CreatedAt)
	if err != nil {
		return model.BundleAssignment{}, wrap("load assignment for update", mapRowErr(err))
	}
	return a, nil
}

// CountDownloadEvents implements download.Tx.
func (t *pgTx) CountDownloadEvents(ctx context.Context, assignmentID string) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx, `
		SELECT count(*) FROM download_events WHERE bundle_assignment_id = $1`, assignmentID,
	).Scan(&n)
	if err != nil {
		return 0, wrap("count download events", err)
	}
	return n, nil
}

// InsertDownloadEvent implements download.Tx.
func (t *pgTx) InsertDownloadEvent(ctx context.Context, event model.DownloadEvent) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO download_events (bundle_assignment_id, downloaded_at, ip, user_agent)
		VALUES ($1, $2, $3, $4)`,
		event.BundleAssignmentID, event.DownloadedAt, event.IP, event.UserAgent)
	return wrap("insert download event", err)
}

// TouchLastDownloadAt implements download.Tx.
func (t *pgTx) TouchLastDownloadAt(ctx context.Context, assignmentID string, at time.Time) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE bundle_assignments SET last_download_at = $2 WHERE id = $1`, assignmentID, at)
	return wrap("touch last download at", err)
}

// WithTx implements download.Store, grounded on PostgresPool.Begin plus
// the standard defer-rollback/commit-on-success idiom.
func (d *DownloadStore) WithTx(ctx context.Context, fn func(tx download.Tx) error) error {
	tx, err := d.conn.Begin(ctx)
	if err != nil {
		return wrap("begin tx", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	return wrap("commit tx", tx.Commit(ctx))
}

// ListEnabledObjects implements download.Store, translating
// bundle.ObjectRef rows (via the embedded Store's query) into
// download.BundleObjectRef; the two packages intentionally don't share
// a type so the guard never imports internal/bundle.
func (d *DownloadStore) ListEnabledObjects(ctx context.Context, bundleID string) ([]download.BundleObjectRef, error) {
	objs, err := d.Store.ListEnabledObjects(ctx, bundleID)
	if err != nil {
		return nil, err
	}
	out := make([]download.BundleObjectRef, len(objs))
	for i, o := range objs {
		out[i] = download.BundleObjectRef{FileID: o.FileID, SortOrder: o.SortOrder, ContentHash: o.ContentHash}
	}
	return out, nil
}
