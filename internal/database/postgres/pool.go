package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DatabaseConnection is the surface internal/store and the rest of
// Latchflow's subsystems depend on, letting tests swap in a fake
// without dragging in pgxpool.
type DatabaseConnection interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	IsConnected() bool

	Health(ctx context.Context) error
	Stats() PoolStats

	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row

	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresPool wraps a pgxpool.Pool with metrics, a health checker, and
// the logging every query/transaction goes through.
type PostgresPool struct {
	pool     *pgxpool.Pool
	config   *PostgresConfig
	logger   *slog.Logger
	metrics  *PoolMetrics
	health   HealthChecker
	isClosed atomic.Bool
	closeCh  chan struct{}
}

// NewPostgresPool builds a PostgresPool from config; Connect must be
// called before it is usable.
func NewPostgresPool(config *PostgresConfig, logger *slog.Logger) *PostgresPool {
	if logger == nil {
		logger = slog.Default()
	}

	pool := &PostgresPool{
		config:   config,
		logger:   logger,
		metrics:  NewPoolMetrics(),
		isClosed: atomic.Bool{},
		closeCh:  make(chan struct{}),
	}

	pool.health = NewHealthChecker(pool)

	return pool
}

// Connect validates config, dials Postgres, and starts the periodic
// health check loop.
func (p *PostgresPool) Connect(ctx context.Context) error {
	if p.isClosed.Load() {
		return ErrConnectionClosed
	}

	if err := p.config.Validate(); err != nil {
		p.logger.Error("Invalid database configuration", "error", err)
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	p.logger.Info("Connecting to PostgreSQL",
		"host", p.config.Host,
		"port", p.config.Port,
		"database", p.config.Database,
		"user", p.config.User,
		"ssl_mode", p.config.SSLMode,
		"max_conns", p.config.MaxConns,
		"min_conns", p.config.MinConns)

	poolConfig, err := pgxpool.ParseConfig(p.config.DSN())
	if err != nil {
		p.logger.Error("Failed to parse database DSN", "error", err)
		p.metrics.RecordConnectionError()
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	poolConfig.MaxConns = p.config.MaxConns
	poolConfig.MinConns = p.config.MinConns
	poolConfig.MaxConnLifetime = p.config.MaxConnLifetime
	poolConfig.MaxConnIdleTime = p.config.MaxConnIdleTime
	poolConfig.HealthCheckPeriod = p.config.HealthCheckPeriod

	connectCtx, cancel := context.WithTimeout(ctx, p.config.ConnectTimeout)
	defer cancel()

	start := time.Now()
	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		p.logger.Error("Failed to create connection pool", "error", err)
		p.metrics.RecordConnectionError()
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		p.logger.Error("Failed to ping database", "error", err)
		p.metrics.RecordConnectionError()
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	p.pool = pool
	connectionTime := time.Since(start)
	p.metrics.RecordConnectionWait(connectionTime)
	p.metrics.RecordSuccessfulConnection()

	p.logger.Info("Successfully connected to PostgreSQL",
		"connection_time", connectionTime,
		"max_conns", p.config.MaxConns,
		"min_conns", p.config.MinConns)

	if healthChecker, ok := p.health.(*DefaultHealthChecker); ok {
		periodicChecker := NewPeriodicHealthChecker(healthChecker, p.config.HealthCheckPeriod)
		loopCtx, stopLoop := context.WithCancel(ctx)
		go func() {
			// Disconnect signals closeCh; the loop ends then or with ctx.
			select {
			case <-p.closeCh:
			case <-loopCtx.Done():
			}
			stopLoop()
		}()
		go periodicChecker.Start(loopCtx)
	}

	return nil
}

// Disconnect stops the health check loop and closes the pool.
func (p *PostgresPool) Disconnect(ctx context.Context) error {
	if p.pool == nil {
		return nil
	}

	if p.isClosed.Load() {
		return ErrConnectionClosed
	}

	p.logger.Info("Disconnecting from PostgreSQL")

	select {
	case p.closeCh <- struct{}{}:
	default:
	}

	p.pool.Close()

	p.isClosed.Store(true)
	p.logger.Info("Successfully disconnected from PostgreSQL")

	return nil
}

// IsConnected reports whether the pool holds at least one live connection.
func (p *PostgresPool) IsConnected() bool {
	if p.isClosed.Load() || p.pool == nil {
		return false
	}

	stats := p.pool.Stat()
	return stats.TotalConns() > 0
}

// Health runs a bounded health check query against the pool.
func (p *PostgresPool) Health(ctx context.Context) error {
	if p.isClosed.Load() {
		return ErrConnectionClosed
	}

	if p.pool == nil {
		return ErrNotConnected
	}

	return p.health.CheckHealth(ctx)
}

// Stats refreshes connection counts from pgxpool and returns a
// metrics snapshot.
func (p *PostgresPool) Stats() PoolStats {
	if p.pool == nil {
		return PoolStats{}
	}

	poolStats := p.pool.Stat()
	p.metrics.UpdateConnectionStats(
		poolStats.AcquiredConns(),
		poolStats.IdleConns(),
		int64(poolStats.TotalConns()),
	)

	return p.metrics.Snapshot()
}

// Exec runs sql and discards any result rows.
func (p *PostgresPool) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	if p.pool == nil {
		return pgconn.CommandTag{}, ErrNotConnected
	}

	start := time.Now()
	tag, err := p.pool.Exec(ctx, sql, args...)
	duration := time.Since(start)

	if err != nil {
		p.metrics.RecordQueryError()
		p.logger.Error("Query execution failed",
			"sql", sql,
			"duration", duration,
			"error", err)
		return tag, err
	}

	p.metrics.RecordQueryExecution(duration)
	p.logger.Debug("Query executed successfully",
		"sql", sql,
		"duration", duration,
		"rows_affected", tag.RowsAffected())

	return tag, nil
}

// Query runs sql and returns the resulting rows.
func (p *PostgresPool) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	if p.pool == nil {
		return nil, ErrNotConnected
	}

	start := time.Now()
	rows, err := p.pool.Query(ctx, sql, args...)
	duration := time.Since(start)

	if err != nil {
		p.metrics.RecordQueryError()
		p.logger.Error("Query execution failed",
			"sql", sql,
			"duration", duration,
			"error", err)
		return nil, err
	}

	p.metrics.RecordQueryExecution(duration)
	p.logger.Debug("Query executed successfully",
		"sql", sql,
		"duration", duration)

	return rows, nil
}

// QueryRow runs sql and returns a single-row result.
func (p *PostgresPool) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	if p.pool == nil {
		return &errorRow{err: ErrNotConnected}
	}

	start := time.Now()
	row := p.pool.QueryRow(ctx, sql, args...)
	duration := time.Since(start)

	p.metrics.RecordQueryExecution(duration)
	p.logger.Debug("Query row executed",
		"sql", sql,
		"duration", duration)

	return row
}

// Begin starts a new transaction.
func (p *PostgresPool) Begin(ctx context.Context) (pgx.Tx, error) {
	if p.pool == nil {
		return nil, ErrNotConnected
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		p.metrics.RecordQueryError()
		p.logger.Error("Failed to begin transaction", "error", err)
		return nil, err
	}

	p.logger.Debug("Transaction started")
	return tx, nil
}

// PrepareStatement prepares a named statement on a single connection
// acquired from the pool.
func (p *PostgresPool) PrepareStatement(ctx context.Context, name, sql string) error {
	if p.pool == nil {
		return ErrNotConnected
	}

	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		p.logger.Error("Failed to acquire connection for statement preparation",
			"name", name,
			"error", err)
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, "PREPARE "+name+" AS "+sql)
	if err != nil {
		p.logger.Error("Failed to prepare statement",
			"name", name,
			"sql", sql,
			"error", err)
		return fmt.Errorf("%w: %v", ErrPreparedStatementFailed, err)
	}

	p.logger.Info("Prepared statement", "name", name)
	return nil
}

// Close is an alias for Disconnect with a background context.
func (p *PostgresPool) Close() error {
	return p.Disconnect(context.Background())
}

// GetConfig returns the pool's configuration.
func (p *PostgresPool) GetConfig() *PostgresConfig {
	return p.config
}

// GetMetrics returns the pool's live metrics counters.
func (p *PostgresPool) GetMetrics() *PoolMetrics {
	return p.metrics
}

// GetHealthChecker returns the pool's health checker.
func (p *PostgresPool) GetHealthChecker() HealthChecker {
	return p.health
}

// Pool returns the underlying pgxpool.Pool for callers that need
// pgxpool features this wrapper doesn't expose.
func (p *PostgresPool) Pool() *pgxpool.Pool {
	return p.pool
}

// errorRow is a pgx.Row that always fails its Scan with a fixed error,
// used to report a nil pool without a nil pointer panic.
type errorRow struct {
	err error
}

func (r *errorRow) Scan(dest ...interface{}) error {
	return r.err
}
