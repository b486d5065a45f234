// Package changelog implements the append-only, snapshot-accelerated
// entity versioning of spec §3/§4.8: Append writes one ChangeLogEntry
// per mutation (a snapshot every N versions, a delta otherwise);
// Materialize composes the nearest snapshot with subsequent deltas to
// reconstruct any historical version. New package: the teacher has no
// direct analogue, so its shape (store interface + pool/logger-style
// struct, one exported method per operation) is grounded on the general
// repository pattern of internal/database/postgres.
package changelog

import (
	"context"
	"encoding/json"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"

	"github.com/latchflow/latchflow/internal/hashutil"
	"github.com/latchflow/latchflow/internal/model"
)

// DefaultSnapshotInterval and DefaultMaxChainDepth are spec §6.5's
// HISTORY_SNAPSHOT_INTERVAL/HISTORY_MAX_CHAIN_DEPTH defaults.
const (
	DefaultSnapshotInterval = 20
	DefaultMaxChainDepth    = 200
)

// Store is the persistence surface changelog needs.
type Store interface {
	// LatestVersion returns the current version for (entityType, entityId),
	// or 0 if no ChangeLog rows exist yet.
	LatestVersion(ctx context.Context, entityType, entityID string) (int, error)

	// AppendEntry persists entry, which must already have Version set.
	AppendEntry(ctx context.Context, entry model.ChangeLogEntry) error

	// NearestSnapshot returns the highest-versioned snapshot row with
	// version <= upTo, or ok=false if none exists.
	NearestSnapshot(ctx context.Context, entityType, entityID string, upTo int) (model.ChangeLogEntry, bool, error)

	// DeltasBetween returns delta rows with version in (fromVersion, upTo],
	// ordered by version ascending.
	DeltasBetween(ctx context.Context, entityType, entityID string, fromVersion, upTo int) ([]model.ChangeLogEntry, error)
}

// Service implements Append/Materialize/ShouldSnapshot.
type Service struct {
	store            Store
	snapshotInterval int
	maxChainDepth    int
}

// New constructs a Service. A zero snapshotInterval/maxChainDepth falls
// back to the spec defaults.
func New(store Store, snapshotInterval, maxChainDepth int) *Service {
	if snapshotInterval <= 0 {
		snapshotInterval = DefaultSnapshotInterval
	}
	if maxChainDepth <= 0 {
		maxChainDepth = DefaultMaxChainDepth
	}
	return &Service{store: store, snapshotInterval: snapshotInterval, maxChainDepth: maxChainDepth}
}

// AppendInput is the caller-supplied half of a ChangeLogEntry; Append
// fills in Version, IsSnapshot, Hash, and exactly one of Snapshot/Delta.
type AppendInput struct {
	EntityType              string
	EntityID                string
	ChangeKind              model.ChangeKind
	ChangeNote              string
	ChangedPath             string
	ActorType               model.ActorType
	ActorUserID             *string
	ActorInvocationID       *string
	ActorActionDefinitionID *string
	OnBehalfOfUserID        *string

	// FullState is the entity's complete current state, used both to
	// compute the hash and, on snapshot versions, stored verbatim.
	FullState json.RawMessage
	// PriorState is the entity's state at the previous version, used to
	// compute a JSON merge patch delta on non-snapshot versions. Ignored
	// (and must be nil) for the first version of an entity.
	PriorState json.RawMessage
}

// ShouldSnapshot reports whether version should be written as a
// snapshot rather than a delta.
func (s *Service) ShouldSnapshot(version int) bool {
	return version == 1 || version%s.snapshotInterval == 0
}

// Append writes the next ChangeLogEntry for in.EntityType/in.EntityID.
func (s *Service) Append(ctx context.Context, in AppendInput) (model.ChangeLogEntry, error) {
	prevVersion, err := s.store.LatestVersion(ctx, in.EntityType, in.EntityID)
	if err != nil {
		return model.ChangeLogEntry{}, fmt.Errorf("changelog: latest version: %w", err)
	}
	version := prevVersion + 1

	entry := model.ChangeLogEntry{
		EntityType:              in.EntityType,
		EntityID:                in.EntityID,
		Version:                 version,
		ChangeKind:              in.ChangeKind,
		ChangeNote:              in.ChangeNote,
		ChangedPath:             in.ChangedPath,
		ActorType:               in.ActorType,
		ActorUserID:             in.ActorUserID,
		ActorInvocationID:       in.ActorInvocationID,
		ActorActionDefinitionID: in.ActorActionDefinitionID,
		OnBehalfOfUserID:        in.OnBehalfOfUserID,
		Hash:                    hashState(in.FullState),
	}

	if s.ShouldSnapshot(version) || prevVersion == 0 {
		entry.IsSnapshot = true
		entry.Snapshot = in.FullState
	} else {
		delta, err := jsonpatch.CreateMergePatch(in.PriorState, in.FullState)
		if err != nil {
			return model.ChangeLogEntry{}, fmt.Errorf("changelog: create merge patch: %w", err)
		}
		entry.IsSnapshot = false
		entry.Delta = delta
	}

	if err := s.store.AppendEntry(ctx, entry); err != nil {
		return model.ChangeLogEntry{}, fmt.Errorf("changelog: append entry: %w", err)
	}
	return entry, nil
}

// Materialize reconstructs the entity's state as of version by
// composing the nearest snapshot <= version with subsequent deltas.
func (s *Service) Materialize(ctx context.Context, entityType, entityID string, version int) (json.RawMessage, error) {
	snapshot, ok, err := s.store.NearestSnapshot(ctx, entityType, entityID, version)
	if err != nil {
		return nil, fmt.Errorf("changelog: nearest snapshot: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("changelog: no snapshot found at or before version %d for %s/%s", version, entityType, entityID)
	}

	deltas, err := s.store.DeltasBetween(ctx, entityType, entityID, snapshot.Version, version)
	if err != nil {
		return nil, fmt.Errorf("changelog: deltas between: %w", err)
	}
	if len(deltas) > s.maxChainDepth {
		return nil, fmt.Errorf("changelog: materialization chain depth %d exceeds max %d for %s/%s", len(deltas), s.maxChainDepth, entityType, entityID)
	}

	state := snapshot.Snapshot
	for _, delta := range deltas {
		merged, err := jsonpatch.MergePatch(state, delta.Delta)
		if err != nil {
			return nil, fmt.Errorf("changelog: apply delta at version %d: %w", delta.Version, err)
		}
		state = merged
	}
	return state, nil
}

func hashState(state json.RawMessage) string {
	return hashutil.SHA256Hex(state)
}
