package store

import (
	"context"

	"github.com/latchflow/latchflow/internal/bundle"
	"github.com/latchflow/latchflow/internal/model"
)

var _ bundle.Store = (*Store)(nil)

// GetBundle implements bundle.Store.
func (s *Store) GetBundle(ctx context.Context, bundleID string) (model.Bundle, error) {
	var b model.Bundle
	err := s.conn.QueryRow(ctx, `
		SELECT id, name, description, storage_path, checksum, bundle_digest, is_enabled, created_at, updated_at
		FROM bundles WHERE id = $1`, bundleID,
	).Scan(&b.ID, &b.Name, &b.Description, &b.StoragePath, &b.Checksum, &b.BundleDigest, &b.IsEnabled, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return model.Bundle{}, wrap("get bundle", mapRowErr(err))
	}
	return b, nil
}

// ListEnabledObjects implements bundle.Store.
func (s *Store) ListEnabledObjects(ctx context.Context, bundleID string) ([]bundle.ObjectRef, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT bo.file_id, bo.sort_order, f.content_hash, f.key, f.storage_key
		FROM bundle_objects bo
		JOIN files f ON f.id = bo.file_id
		WHERE bo.bundle_id = $1 AND bo.is_enabled
		ORDER BY bo.sort_order, bo.file_id`, bundleID)
	if err != nil {
		return nil, wrap("list enabled objects", err)
	}
	defer rows.Close()

	var out []bundle.ObjectRef
	for rows.Next() {
		var ref bundle.ObjectRef
		if err := rows.Scan(&ref.FileID, &ref.SortOrder, &ref.ContentHash, &ref.FileKey, &ref.StorageKey); err != nil {
			return nil, wrap("scan bundle object", err)
		}
		out = append(out, ref)
	}
	return out, wrap("iterate bundle objects", rows.Err())
}

// BundleIDsForFile implements bundle.Store.
func (s *Store) BundleIDsForFile(ctx context.Context, fileID string) ([]string, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT DISTINCT bundle_id FROM bundle_objects WHERE file_id = $1 AND is_enabled`, fileID)
	if err != nil {
		return nil, wrap("bundle ids for file", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, wrap("scan bundle id", err)
		}
		out = append(out, id)
	}
	return out, wrap("iterate bundle ids", rows.Err())
}

// UpdateBundleArtifact implements bundle.Store.
func (s *Store) UpdateBundleArtifact(ctx context.Context, bundleID, digest, storageKey, checksum string) error {
	_, err := s.conn.Exec(ctx, `
		UPDATE bundles
		SET bundle_digest = $2, storage_path = $3, checksum = $4, updated_at = now()
		WHERE id = $1`,
		bundleID, digest, storageKey, checksum)
	return wrap("update bundle artifact", err)
}
