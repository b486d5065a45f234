// Package store implements the §3 entity repositories against Postgres,
// satisfying the Store interfaces internal/trigger, internal/action,
// internal/bundle, internal/download, internal/auth, and
// internal/changelog each define for themselves. Grounded on
// internal/database/postgres.PostgresPool/DatabaseConnection (pgxpool
// wrapper with structured logging and query metrics, kept as-is since
// it carries no domain-specific logic) for every query this package
// issues.
package store

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/latchflow/latchflow/internal/database/postgres"
)

// ErrNotFound is returned by single-row lookups that find nothing;
// mapRowErr substitutes it for pgx.ErrNoRows, so callers match with
// errors.Is against ErrNotFound, not the pgx sentinel.
var ErrNotFound = errors.New("store: not found")

// Store is the shared handle every per-domain query method hangs off
// of. It implements internal/trigger.Store, internal/action.Store,
// internal/bundle.Store, internal/auth.Store, and
// internal/changelog.Store all at once, every domain sharing the same
// connection pool. internal/download.Store is implemented by the
// DownloadStore wrapper instead, because its ListEnabledObjects clashes
// with bundle.Store's method of the same name.
type Store struct {
	conn postgres.DatabaseConnection
}

// New constructs a Store over an already-connected DatabaseConnection.
func New(conn postgres.DatabaseConnection) *Store {
	return &Store{conn: conn}
}

// mapRowErr turns pgx.ErrNoRows into the package-level ErrNotFound so
// callers never need to import pgx just to check a lookup's outcome.
func mapRowErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("store: %s: %w", op, err)
}
