package store

import (
	"context"

	"github.com/latchflow/latchflow/internal/model"
)

// AdminCreateBundle inserts a new, initially unbuilt Bundle (spec §3:
// a fresh bundle has no archive until the scheduler builds one).
func (s *Store) AdminCreateBundle(ctx context.Context, name, description string) (model.Bundle, error) {
	var b model.Bundle
	err := s.conn.QueryRow(ctx, `
		INSERT INTO bundles (name, description, storage_path, checksum, bundle_digest, is_enabled)
		VALUES ($1, $2, 'pending', '', 'pending', true)
		RETURNING id, name, description, storage_path, checksum, bundle_digest, is_enabled, created_at, updated_at`,
		name, description,
	).Scan(&b.ID, &b.Name, &b.Description, &b.StoragePath, &b.Checksum, &b.BundleDigest, &b.IsEnabled, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return model.Bundle{}, wrap("admin create bundle", err)
	}
	return b, nil
}

// ListBundles returns every bundle, most recently created first.
func (s *Store) ListBundles(ctx context.Context) ([]model.Bundle, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT id, name, description, storage_path, checksum, bundle_digest, is_enabled, created_at, updated_at
		FROM bundles ORDER BY created_at DESC`)
	if err != nil {
		return nil, wrap("list bundles", err)
	}
	defer rows.Close()

	var out []model.Bundle
	for rows.Next() {
		var b model.Bundle
		if err := rows.Scan(&b.ID, &b.Name, &b.Description, &b.StoragePath, &b.Checksum, &b.BundleDigest, &b.IsEnabled, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, wrap("scan bundle", err)
		}
		out = append(out, b)
	}
	return out, wrap("iterate bundles", rows.Err())
}

// PatchBundle applies the non-nil fields to bundle id and returns the
// updated row; nil fields leave the column untouched via coalesce.
func (s *Store) PatchBundle(ctx context.Context, bundleID string, name, description *string, isEnabled *bool) (model.Bundle, error) {
	var b model.Bundle
	err := s.conn.QueryRow(ctx, `
		UPDATE bundles SET
			name = coalesce($2, name),
			description = coalesce($3, description),
			is_enabled = coalesce($4, is_enabled),
			updated_at = now()
		WHERE id = $1
		RETURNING id, name, description, storage_path, checksum, bundle_digest, is_enabled, created_at, updated_at`,
		bundleID, name, description, isEnabled,
	).Scan(&b.ID, &b.Name, &b.Description, &b.StoragePath, &b.Checksum, &b.BundleDigest, &b.IsEnabled, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return model.Bundle{}, wrap("patch bundle", mapRowErr(err))
	}
	return b, nil
}

// DeleteBundle removes bundle id; its bundle_objects rows go with it
// (ON DELETE CASCADE). The delete fails with a foreign-key error while
// any assignment still references the bundle.
func (s *Store) DeleteBundle(ctx context.Context, bundleID string) error {
	_, err := s.conn.Exec(ctx, `DELETE FROM bundles WHERE id = $1`, bundleID)
	return wrap("delete bundle", err)
}

// AddBundleObject inserts one File into a Bundle at sortOrder.
func (s *Store) AddBundleObject(ctx context.Context, bundleID, fileID string, sortOrder int, required bool) (model.BundleObject, error) {
	var o model.BundleObject
	err := s.conn.QueryRow(ctx, `
		INSERT INTO bundle_objects (bundle_id, file_id, sort_order, required, is_enabled)
		VALUES ($1, $2, $3, $4, true)
		RETURNING id, bundle_id, file_id, sort_order, required, is_enabled`,
		bundleID, fileID, sortOrder, required,
	).Scan(&o.ID, &o.BundleID, &o.FileID, &o.SortOrder, &o.Required, &o.IsEnabled)
	if err != nil {
		return model.BundleObject{}, wrap("add bundle object", err)
	}
	return o, nil
}

// ToggleBundleObject flips a bundle member's enabled flag.
func (s *Store) ToggleBundleObject(ctx context.Context, bundleID, objectID string, isEnabled bool) error {
	_, err := s.conn.Exec(ctx, `
		UPDATE bundle_objects SET is_enabled = $3 WHERE bundle_id = $1 AND id = $2`,
		bundleID, objectID, isEnabled)
	return wrap("toggle bundle object", err)
}

// ListBundleObjects returns every member (enabled or not) of bundleID,
// ordered for display.
func (s *Store) ListBundleObjects(ctx context.Context, bundleID string) ([]model.BundleObject, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT id, bundle_id, file_id, sort_order, required, is_enabled
		FROM bundle_objects WHERE bundle_id = $1 ORDER BY sort_order`, bundleID)
	if err != nil {
		return nil, wrap("list bundle objects", err)
	}
	defer rows.Close()

	var out []model.BundleObject
	for rows.Next() {
		var o model.BundleObject
		if err := rows.Scan(&o.ID, &o.BundleID, &o.FileID, &o.SortOrder, &o.Required, &o.IsEnabled); err != nil {
			return nil, wrap("scan bundle object", err)
		}
		out = append(out, o)
	}
	return out, wrap("iterate bundle objects", rows.Err())
}

// CreateFile registers a File row for already-stored object content.
func (s *Store) CreateFile(ctx context.Context, f model.File) (model.File, error) {
	err := s.conn.QueryRow(ctx, `
		INSERT INTO files (key, storage_key, size, content_type, content_hash, etag, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		f.Key, f.StorageKey, f.Size, f.ContentType, f.ContentHash, f.ETag, f.Metadata,
	).Scan(&f.ID)
	if err != nil {
		return model.File{}, wrap("create file", err)
	}
	return f, nil
}

// ListFiles returns every registered file.
func (s *Store) ListFiles(ctx context.Context) ([]model.File, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT id, key, storage_key, size, content_type, content_hash, etag, metadata
		FROM files ORDER BY key`)
	if err != nil {
		return nil, wrap("list files", err)
	}
	defer rows.Close()

	var out []model.File
	for rows.Next() {
		var f model.File
		if err := rows.Scan(&f.ID, &f.Key, &f.StorageKey, &f.Size, &f.ContentType, &f.ContentHash, &f.ETag, &f.Metadata); err != nil {
			return nil, wrap("scan file", err)
		}
		out = append(out, f)
	}
	return out, wrap("iterate files", rows.Err())
}

// GetFile loads one File by id.
func (s *Store) GetFile(ctx context.Context, fileID string) (model.File, error) {
	var f model.File
	err := s.conn.QueryRow(ctx, `
		SELECT id, key, storage_key, size, content_type, content_hash, etag, metadata
		FROM files WHERE id = $1`, fileID,
	).Scan(&f.ID, &f.Key, &f.StorageKey, &f.Size, &f.ContentType, &f.ContentHash, &f.ETag, &f.Metadata)
	if err != nil {
		return model.File{}, wrap("get file", mapRowErr(err))
	}
	return f, nil
}

// DeleteFile removes a File row. Callers are responsible for deleting
// the backing object store content first.
func (s *Store) DeleteFile(ctx context.Context, fileID string) error {
	_, err := s.conn.Exec(ctx, `DELETE FROM files WHERE id = $1`, fileID)
	return wrap("delete file", err)
}

// CreateRecipient registers a new named grantee.
func (s *Store) CreateRecipient(ctx context.Context, email, name string) (model.Recipient, error) {
	var r model.Recipient
	err := s.conn.QueryRow(ctx, `
		INSERT INTO recipients (email, name, is_enabled) VALUES (lower($1), $2, true)
		RETURNING id, email, name, is_enabled`,
		email, name,
	).Scan(&r.ID, &r.Email, &r.Name, &r.IsEnabled)
	if err != nil {
		return model.Recipient{}, wrap("create recipient", err)
	}
	return r, nil
}

// ListRecipients returns every recipient.
func (s *Store) ListRecipients(ctx context.Context) ([]model.Recipient, error) {
	rows, err := s.conn.Query(ctx, `SELECT id, email, name, is_enabled FROM recipients ORDER BY email`)
	if err != nil {
		return nil, wrap("list recipients", err)
	}
	defer rows.Close()

	var out []model.Recipient
	for rows.Next() {
		var r model.Recipient
		if err := rows.Scan(&r.ID, &r.Email, &r.Name, &r.IsEnabled); err != nil {
			return nil, wrap("scan recipient", err)
		}
		out = append(out, r)
	}
	return out, wrap("iterate recipients", rows.Err())
}

// GetRecipient loads one recipient by id.
func (s *Store) GetRecipient(ctx context.Context, recipientID string) (model.Recipient, error) {
	var r model.Recipient
	err := s.conn.QueryRow(ctx, `
		SELECT id, email, name, is_enabled FROM recipients WHERE id = $1`, recipientID,
	).Scan(&r.ID, &r.Email, &r.Name, &r.IsEnabled)
	if err != nil {
		return model.Recipient{}, wrap("get recipient", mapRowErr(err))
	}
	return r, nil
}

// PatchRecipient applies the non-nil fields to recipient id.
func (s *Store) PatchRecipient(ctx context.Context, recipientID string, name *string, isEnabled *bool) (model.Recipient, error) {
	var r model.Recipient
	err := s.conn.QueryRow(ctx, `
		UPDATE recipients SET
			name = coalesce($2, name),
			is_enabled = coalesce($3, is_enabled)
		WHERE id = $1
		RETURNING id, email, name, is_enabled`,
		recipientID, name, isEnabled,
	).Scan(&r.ID, &r.Email, &r.Name, &r.IsEnabled)
	if err != nil {
		return model.Recipient{}, wrap("patch recipient", mapRowErr(err))
	}
	return r, nil
}

// DeleteRecipient removes recipient id. The delete fails with a
// foreign-key error while any assignment or other row still references
// the recipient.
func (s *Store) DeleteRecipient(ctx context.Context, recipientID string) error {
	_, err := s.conn.Exec(ctx, `DELETE FROM recipients WHERE id = $1`, recipientID)
	return wrap("delete recipient", err)
}

// CreateAssignment grants recipientID access to bundleID.
func (s *Store) CreateAssignment(ctx context.Context, bundleID, recipientID string, maxDownloads, cooldownSeconds *int) (model.BundleAssignment, error) {
	var a model.BundleAssignment
	err := s.conn.QueryRow(ctx, `
		INSERT INTO bundle_assignments (bundle_id, recipient_id, is_enabled, max_downloads, cooldown_seconds, verification_met)
		VALUES ($1, $2, true, $3, $4, false)
		ON CONFLICT (bundle_id, recipient_id) DO UPDATE SET
			is_enabled = true, max_downloads = excluded.max_downloads, cooldown_seconds = excluded.cooldown_seconds
		RETURNING id, bundle_id, recipient_id, is_enabled, max_downloads, cooldown_seconds, last_download_at, verification_met, created_at`,
		bundleID, recipientID, maxDownloads, cooldownSeconds,
	).Scan(&a.ID, &a.BundleID, &a.RecipientID, &a.IsEnabled, &a.MaxDownloads, &a.CooldownSeconds, &a.LastDownloadAt, &a.VerificationMet, &a.CreatedAt)
	if err != nil {
		return model.BundleAssignment{}, wrap("create assignment", err)
	}
	return a, nil
}

// GetAssignment loads the assignment granting recipientID access to
// bundleID, used by the portal to resolve a bundle id into the
// assignment id the download guard operates on.
func (s *Store) GetAssignment(ctx context.Context, bundleID, recipientID string) (model.BundleAssignment, error) {
	var a model.BundleAssignment
	err := s.conn.QueryRow(ctx, `
		SELECT id, bundle_id, recipient_id, is_enabled, max_downloads, cooldown_seconds, last_download_at, verification_met, created_at
		FROM bundle_assignments WHERE bundle_id = $1 AND recipient_id = $2`, bundleID, recipientID,
	).Scan(&a.ID, &a.BundleID, &a.RecipientID, &a.IsEnabled, &a.MaxDownloads, &a.CooldownSeconds, &a.LastDownloadAt, &a.VerificationMet, &a.CreatedAt)
	if err != nil {
		return model.BundleAssignment{}, wrap("get assignment", mapRowErr(err))
	}
	return a, nil
}

// ListAssignmentsForBundle lists every recipient assignment on bundleID.
func (s *Store) ListAssignmentsForBundle(ctx context.Context, bundleID string) ([]model.BundleAssignment, error) {
	return s.listAssignments(ctx, "bundle_id", bundleID)
}

// ListAssignmentsForRecipient lists every bundle assignment held by
// recipientID, for the portal's "my bundles" view.
func (s *Store) ListAssignmentsForRecipient(ctx context.Context, recipientID string) ([]model.BundleAssignment, error) {
	return s.listAssignments(ctx, "recipient_id", recipientID)
}

func (s *Store) listAssignments(ctx context.Context, column, value string) ([]model.BundleAssignment, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT id, bundle_id, recipient_id, is_enabled, max_downloads, cooldown_seconds, last_download_at, verification_met, created_at
		FROM bundle_assignments WHERE `+column+` = $1 ORDER BY created_at DESC`, value)
	if err != nil {
		return nil, wrap("list assignments", err)
	}
	defer rows.Close()

	var out []model.BundleAssignment
	for rows.Next() {
		var a model.BundleAssignment
		if err := rows.Scan(&a.ID, &a.BundleID, &a.RecipientID, &a.IsEnabled, &a.MaxDownloads, &a.CooldownSeconds, &a.LastDownloadAt, &a.VerificationMet, &a.CreatedAt); err != nil {
			return nil, wrap("scan assignment", err)
		}
		out = append(out, a)
	}
	return out, wrap("iterate assignments", rows.Err())
}

// DeleteAssignment revokes recipientID's access to bundleID.
func (s *Store) DeleteAssignment(ctx context.Context, bundleID, recipientID string) error {
	_, err := s.conn.Exec(ctx, `DELETE FROM bundle_assignments WHERE bundle_id = $1 AND recipient_id = $2`, bundleID, recipientID)
	return wrap("delete assignment", err)
}

// CountDownloadsForAssignment returns how many DownloadEvents exist for
// assignmentID, backing the portal's remaining-quota projection.
func (s *Store) CountDownloadsForAssignment(ctx context.Context, assignmentID string) (int, error) {
	var n int
	err := s.conn.QueryRow(ctx, `
		SELECT count(*) FROM download_events WHERE bundle_assignment_id = $1`, assignmentID,
	).Scan(&n)
	if err != nil {
		return 0, wrap("count downloads for assignment", err)
	}
	return n, nil
}
