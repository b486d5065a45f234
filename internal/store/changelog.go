package store

import (
	"context"

	"github.com/latchflow/latchflow/internal/changelog"
	"github.com/latchflow/latchflow/internal/model"
)

var _ changelog.Store = (*Store)(nil)

// LatestVersion implements changelog.Store.
func (s *Store) LatestVersion(ctx context.Context, entityType, entityID string) (int, error) {
	var version int
	err := s.conn.QueryRow(ctx, `
		SELECT coalesce(max(version), 0)
		FROM change_log
		WHERE entity_type = $1 AND entity_id = $2`, entityType, entityID,
	).Scan(&version)
	if err != nil {
		return 0, wrap("latest version", err)
	}
	return version, nil
}

// AppendEntry implements changelog.Store.
func (s *Store) AppendEntry(ctx context.Context, entry model.ChangeLogEntry) error {
	_, err := s.conn.Exec(ctx, `
		INSERT INTO change_log
			(entity_type, entity_id, version, is_snapshot, hash, change_note, changed_path,
			 change_kind, actor_type, actor_user_id, actor_invocation_id,
			 actor_action_definition_id, on_behalf_of_user_id, snapshot, delta)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		entry.EntityType, entry.EntityID, entry.Version, entry.IsSnapshot, entry.Hash,
		entry.ChangeNote, entry.ChangedPath, entry.ChangeKind, entry.ActorType,
		entry.ActorUserID, entry.ActorInvocationID, entry.ActorActionDefinitionID,
		entry.OnBehalfOfUserID, entry.Snapshot, entry.Delta)
	return wrap("append change log entry", err)
}

// NearestSnapshot implements changelog.Store.
func (s *Store) NearestSnapshot(ctx context.Context, entityType, entityID string, upTo int) (model.ChangeLogEntry, bool, error) {
	entry, err := s.scanChangeLogEntry(ctx, `
		SELECT id, entity_type, entity_id, version, is_snapshot, hash, change_note, changed_path,
		       change_kind, created_at, actor_type, actor_user_id, actor_invocation_id,
		       actor_action_definition_id, on_behalf_of_user_id, snapshot, delta
		FROM change_log
		WHERE entity_type = $1 AND entity_id = $2 AND is_snapshot AND version <= $3
		ORDER BY version DESC
		LIMIT 1`, entityType, entityID, upTo)
	if err != nil {
		if mapRowErr(err) == ErrNotFound {
			return model.ChangeLogEntry{}, false, nil
		}
		return model.ChangeLogEntry{}, false, wrap("nearest snapshot", err)
	}
	return entry, true, nil
}

// DeltasBetween implements changelog.Store.
func (s *Store) DeltasBetween(ctx context.Context, entityType, entityID string, fromVersion, upTo int) ([]model.ChangeLogEntry, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT id, entity_type, entity_id, version, is_snapshot, hash, change_note, changed_path,
		       change_kind, created_at, actor_type, actor_user_id, actor_invocation_id,
		       actor_action_definition_id, on_behalf_of_user_id, snapshot, delta
		FROM change_log
		WHERE entity_type = $1 AND entity_id = $2 AND version > $3 AND version <= $4
		ORDER BY version ASC`, entityType, entityID, fromVersion, upTo)
	if err != nil {
		return nil, wrap("deltas between", err)
	}
	defer rows.Close()

	var out []model.ChangeLogEntry
	for rows.Next() {
		var e model.ChangeLogEntry
		if err := rows.Scan(&e.ID, &e.EntityType, &e.EntityID, &e.Version, &e.IsSnapshot, &e.Hash,
			&e.ChangeNote, &e.ChangedPath, &e.ChangeKind, &e.CreatedAt, &e.ActorType,
			&e.ActorUserID, &e.ActorInvocationID, &e.ActorActionDefinitionID,
			&e.OnBehalfOfUserID, &e.Snapshot, &e.Delta); err != nil {
			return nil, wrap("scan change log entry", err)
		}
		out = append(out, e)
	}
	return out, wrap("iterate change log entries", rows.Err())
}

func (s *Store) scanChangeLogEntry(ctx context.Context, query string, args ...any) (model.ChangeLogEntry, error) {
	var e model.ChangeLogEntry
	err := s.conn.QueryRow(ctx, query, args...).Scan(&e.ID, &e.EntityType, &e.EntityID, &e.Version, &e.IsSnapshot, &e.Hash,
		&e.ChangeNote, &e.ChangedPath, &e.ChangeKind, &e.CreatedAt, &e.ActorType,
		&e.ActorUserID, &e.ActorInvocationID, &e.ActorActionDefinitionID,
		&e.OnBehalfOfUserID, &e.Snapshot, &e.Delta)
	if err != nil {
		return model.ChangeLogEntry{}, mapRowErr(err)
	}
	return e, nil
}
