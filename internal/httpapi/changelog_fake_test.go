package httpapi_test

import (
	"context"

	"github.com/latchflow/latchflow/internal/mailer"
	"github.com/latchflow/latchflow/internal/model"
)

// fakeChangelogStore backs the changelog.Service used in tests. Bundle
// handler tests only exercise Materialize against a bundle that was
// never appended, so NearestSnapshot always reporting ok=false (and
// Materialize therefore erroring) is sufficient; LatestVersion and
// AppendEntry are present to satisfy the interface.
type fakeChangelogStore struct{}

func (fakeChangelogStore) LatestVersion(_ context.Context, _, _ string) (int, error) {
	return 0, nil
}

func (fakeChangelogStore) AppendEntry(_ context.Context, _ model.ChangeLogEntry) error {
	return nil
}

func (fakeChangelogStore) NearestSnapshot(_ context.Context, _, _ string, _ int) (model.ChangeLogEntry, bool, error) {
	return model.ChangeLogEntry{}, false, nil
}

func (fakeChangelogStore) DeltasBetween(_ context.Context, _, _ string, _, _ int) ([]model.ChangeLogEntry, error) {
	return nil, nil
}

// noopMailer discards every message, standing in for a real
// mailer.Provider in tests that don't assert on delivery.
type noopMailer struct{}

func (noopMailer) Send(_ context.Context, _ mailer.Message) error { return nil }
