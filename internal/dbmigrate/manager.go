// Package dbmigrate wraps goose to apply the SQL migrations embedded from
// sql/ against the Postgres schema internal/store depends on.
// Grounded on internal/infrastructure/migrations/manager.go, trimmed of
// the teacher's backup/health/circuit-breaker sub-features (spec has no
// migration-backup or migration-health requirement) down to the
// Up/Down/DownTo/Status/Version surface cmd/migrate actually needs.
package dbmigrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/pressly/goose/v3"

	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed sql/*.sql
var embeddedMigrations embed.FS

// Config configures a Manager.
type Config struct {
	DSN     string
	Table   string
	Timeout time.Duration
	Logger  *slog.Logger
}

// Manager applies and inspects schema migrations.
type Manager struct {
	db      *sql.DB
	logger  *slog.Logger
	timeout time.Duration
}

// New opens a *sql.DB over the pgx stdlib driver and configures goose to
// read from the embedded SQL migration files.
func New(cfg Config) (*Manager, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("dbmigrate: open: %w", err)
	}

	if err := goose.SetDialect("postgres"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("dbmigrate: set dialect: %w", err)
	}
	goose.SetBaseFS(embeddedMigrations)
	if cfg.Table != "" {
		goose.SetTableName(cfg.Table)
	}

	return &Manager{db: db, logger: logger, timeout: timeout}, nil
}

// Close releases the underlying *sql.DB.
func (m *Manager) Close() error {
	return m.db.Close()
}

func (m *Manager) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, m.timeout)
}

// Up applies all pending migrations.
func (m *Manager) Up(ctx context.Context) error {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	m.logger.Info("applying migrations")
	if err := goose.UpContext(ctx, m.db, "sql"); err != nil {
		return fmt.Errorf("dbmigrate: up: %w", err)
	}
	m.logger.Info("migrations applied")
	return nil
}

// DownTo rolls back to version, exclusive.
func (m *Manager) DownTo(ctx context.Context, version int64) error {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	m.logger.Info("rolling back migrations", "target_version", version)
	if err := goose.DownToContext(ctx, m.db, "sql", version); err != nil {
		return fmt.Errorf("dbmigrate: down to %d: %w", version, err)
	}
	return nil
}

// Down rolls back the most recently applied migration.
func (m *Manager) Down(ctx context.Context) error {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	if err := goose.DownContext(ctx, m.db, "sql"); err != nil {
		return fmt.Errorf("dbmigrate: down: %w", err)
	}
	return nil
}

// Status prints the applied/pending state of every migration file.
func (m *Manager) Status(ctx context.Context) error {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	if err := goose.StatusContext(ctx, m.db, "sql"); err != nil {
		return fmt.Errorf("dbmigrate: status: %w", err)
	}
	return nil
}

// Version returns the current schema version.
func (m *Manager) Version(ctx context.Context) (int64, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	version, err := goose.GetDBVersionContext(ctx, m.db)
	if err != nil {
		return 0, fmt.Errorf("dbmigrate: version: %w", err)
	}
	return version, nil
}
