package changelog_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latchflow/latchflow/internal/changelog"
	"github.com/latchflow/latchflow/internal/model"
)

type fakeStore struct {
	mu      sync.Mutex
	entries []model.ChangeLogEntry
}

func (s *fakeStore) LatestVersion(_ context.Context, entityType, entityID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	max := 0
	for _, e := range s.entries {
		if e.EntityType == entityType && e.EntityID == entityID && e.Version > max {
			max = e.Version
		}
	}
	return max, nil
}

func (s *fakeStore) AppendEntry(_ context.Context, entry model.ChangeLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *fakeStore) NearestSnapshot(_ context.Context, entityType, entityID string, upTo int) (model.ChangeLogEntry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	best := model.ChangeLogEntry{}
	found := false
	for _, e := range s.entries {
		if e.EntityType == entityType && e.EntityID == entityID && e.IsSnapshot && e.Version <= upTo {
			if !found || e.Version > best.Version {
				best = e
				found = true
			}
		}
	}
	return best, found, nil
}

func (s *fakeStore) DeltasBetween(_ context.Context, entityType, entityID string, fromVersion, upTo int) ([]model.ChangeLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ChangeLogEntry
	for _, e := range s.entries {
		if e.EntityType == entityType && e.EntityID == entityID && !e.IsSnapshot && e.Version > fromVersion && e.Version <= upTo {
			out = append(out, e)
		}
	}
	return out, nil
}

func TestAppendFirstVersionIsAlwaysSnapshot(t *testing.T) {
	store := &fakeStore{}
	svc := changelog.New(store, 3, 0)

	entry, err := svc.Append(context.Background(), changelog.AppendInput{
		EntityType: "bundle",
		EntityID:   "b1",
		ChangeKind: model.ChangeUpdateParent,
		ActorType:  model.ActorUser,
		FullState:  json.RawMessage(`{"name":"v1"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, entry.Version)
	assert.True(t, entry.IsSnapshot)
	assert.JSONEq(t, `{"name":"v1"}`, string(entry.Snapshot))
}

func TestAppendWritesDeltaBetweenSnapshots(t *testing.T) {
	store := &fakeStore{}
	svc := changelog.New(store, 3, 0)
	ctx := context.Background()

	_, err := svc.Append(ctx, changelog.AppendInput{
		EntityType: "bundle", EntityID: "b1", ActorType: model.ActorUser,
		FullState: json.RawMessage(`{"name":"v1"}`),
	})
	require.NoError(t, err)

	entry2, err := svc.Append(ctx, changelog.AppendInput{
		EntityType: "bundle", EntityID: "b1", ActorType: model.ActorUser,
		PriorState: json.RawMessage(`{"name":"v1"}`),
		FullState:  json.RawMessage(`{"name":"v2"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, entry2.Version)
	assert.False(t, entry2.IsSnapshot)
	assert.JSONEq(t, `{"name":"v2"}`, string(entry2.Delta))

	entry3, err := svc.Append(ctx, changelog.AppendInput{
		EntityType: "bundle", EntityID: "b1", ActorType: model.ActorUser,
		PriorState: json.RawMessage(`{"name":"v2"}`),
		FullState:  json.RawMessage(`{"name":"v3"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, entry3.Version)
	assert.True(t, entry3.IsSnapshot, "version 3 hits the snapshot interval")
}

func TestMaterializeComposesSnapshotAndDeltas(t *testing.T) {
	store := &fakeStore{}
	svc := changelog.New(store, 100, 0)
	ctx := context.Background()

	states := []string{`{"name":"v1","count":1}`, `{"name":"v2","count":1}`, `{"name":"v2","count":3}`}
	var prior json.RawMessage
	for _, s := range states {
		_, err := svc.Append(ctx, changelog.AppendInput{
			EntityType: "bundle", EntityID: "b1", ActorType: model.ActorUser,
			PriorState: prior,
			FullState:  json.RawMessage(s),
		})
		require.NoError(t, err)
		prior = json.RawMessage(s)
	}

	got, err := svc.Materialize(ctx, "bundle", "b1", 3)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"v2","count":3}`, string(got))

	got2, err := svc.Materialize(ctx, "bundle", "b1", 2)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"v2","count":1}`, string(got2))
}

func TestShouldSnapshot(t *testing.T) {
	svc := changelog.New(&fakeStore{}, 5, 0)
	assert.True(t, svc.ShouldSnapshot(1))
	assert.False(t, svc.ShouldSnapshot(2))
	assert.True(t, svc.ShouldSnapshot(5))
	assert.True(t, svc.ShouldSnapshot(10))
	assert.False(t, svc.ShouldSnapshot(11))
}
