// Package postgres implements the PostgreSQL persistence layer of the finance engine.
// Every repository resolves its Querier from the context, so calls made inside
// UnitOfWork.Do share one transaction and the row locks it holds.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alem-hub/academy-finance/internal/domain/shared"
)

// ErrConnectionClosed is returned after Close.
var ErrConnectionClosed = errors.New("postgres: connection pool is closed")

// Querier is implemented by both *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// database is the part of *pgxpool.Pool the repositories rely on.
type database interface {
	Querier
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// Connection owns the pool.
type Connection struct {
	db     database
	closed atomic.Bool
}

// PoolOption adjusts the pool parsed from a database URL.
type PoolOption func(*pgxpool.Config)

// WithPoolLimits overrides pool sizing and connection lifetimes. Zero values keep defaults.
func WithPoolLimits(maxConns, minConns int32, maxLifetime, maxIdle time.Duration) PoolOption {
	return func(c *pgxpool.Config) {
		if maxConns > 0 {
			c.MaxConns = maxConns
		}
		if minConns > 0 {
			c.MinConns = minConns
		}
		if maxLifetime > 0 {
			c.MaxConnLifetime = maxLifetime
		}
		if maxIdle > 0 {
			c.MaxConnIdleTime = maxIdle
		}
	}
}

// NewConnectionFromURL opens a pool for databaseURL and pings it.
func NewConnectionFromURL(ctx context.Context, databaseURL string, opts ...PoolOption) (*Connection, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to parse database URL: %w", err)
	}

	// URL parameters (pool_max_conns etc.) win over these.
	if poolConfig.MaxConns == 0 {
		poolConfig.MaxConns = 10
	}
	if poolConfig.MinConns == 0 {
		poolConfig.MinConns = 2
	}
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute
	for _, opt := range opts {
		opt(poolConfig)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: failed to ping database: %w", err)
	}
	return newConnection(pool), nil
}

func newConnection(db database) *Connection {
	return &Connection{db: db}
}

// Close closes the pool. Later calls are no-ops.
func (c *Connection) Close() {
	if c.closed.CompareAndSwap(false, true) {
		c.db.Close()
	}
}

// Ping reports whether the database answers. Used by the readiness check.
func (c *Connection) Ping(ctx context.Context) error {
	if c.closed.Load() {
		return ErrConnectionClosed
	}
	return c.db.Ping(ctx)
}

// Querier returns the transaction carried by ctx, or the pool outside a unit.
func (c *Connection) Querier(ctx context.Context) Querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return c.db
}

// ══════════════════════════════════════════════════════════════════════════════
// UNIT OF WORK
// ══════════════════════════════════════════════════════════════════════════════

type txKey struct{}

// UnitOfWork implements command.UnitOfWork with one database transaction per unit.
// Read committed is enough: balance rows are read with FOR UPDATE.
type UnitOfWork struct {
	conn *Connection
}

// NewUnitOfWork creates a unit of work on conn.
func NewUnitOfWork(conn *Connection) *UnitOfWork {
	return &UnitOfWork{conn: conn}
}

// Do runs fn inside a transaction carried by ctx. Nested calls join the outer
// transaction. Serialization failures and deadlocks are reported as
// shared.ErrConcurrentModification so that callers can retry the unit.
func (u *UnitOfWork) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}
	if u.conn.closed.Load() {
		return ErrConnectionClosed
	}

	tx, err := u.conn.db.Begin(ctx)
	if err != nil {
		return mapError("unit", fmt.Errorf("postgres: begin unit: %w", err))
	}
	// Rollback must run even when ctx was cancelled mid-unit.
	rollback := func() error { return tx.Rollback(context.WithoutCancel(ctx)) }

	defer func() {
		if p := recover(); p != nil {
			_ = rollback()
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := rollback(); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			err = fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return mapError("unit", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return mapError("unit", fmt.Errorf("postgres: commit unit: %w", err))
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// IsNoRows checks if the error is a "no rows" error.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// IsUniqueViolation checks for unique_violation.
func IsUniqueViolation(err error) bool {
	return sqlState(err) == "23505"
}

// IsRetryableConflict checks for serialization failures and deadlocks.
func IsRetryableConflict(err error) bool {
	switch sqlState(err) {
	case "40001", "40P01":
		return true
	}
	return false
}

// mapError translates driver errors into the shared error taxonomy.
// Errors that already carry a domain kind are returned unchanged.
func mapError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case IsRetryableConflict(err):
		return shared.WrapError("postgres", op, shared.ErrConcurrentModification, "transaction conflict", err)
	case IsUniqueViolation(err):
		return shared.WrapError("postgres", op, shared.ErrAlreadyExists, "duplicate key", err)
	default:
		return err
	}
}
