// Package pgxdriver implements the driver capabilities for PostgreSQL on a
// pgx connection pool.
package pgxdriver

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/aqasim81/schemaledger/internal/driver"
	"github.com/aqasim81/schemaledger/internal/migration"
)

// historyRow mirrors the history table columns. All but version are nullable.
type historyRow struct {
	Version   int64   `db:"version"`
	Name      *string `db:"name"`
	AppliedOn *string `db:"applied_on"`
	Checksum  *string `db:"checksum"`
}

// Driver runs migration batches in pgx transactions.
type Driver struct {
	pool             *pgxpool.Pool
	lockTimeout      time.Duration
	statementTimeout time.Duration
}

// Option configures a Driver.
type Option func(*Driver)

// WithLockTimeout sets lock_timeout for every migration transaction, so DDL
// fails fast instead of queueing behind long-running queries.
func WithLockTimeout(d time.Duration) Option {
	return func(drv *Driver) { drv.lockTimeout = d }
}

// WithStatementTimeout sets statement_timeout for every migration transaction.
func WithStatementTimeout(d time.Duration) Option {
	return func(drv *Driver) { drv.statementTimeout = d }
}

// New creates a Driver on pool. The caller keeps ownership of the pool.
func New(pool *pgxpool.Pool, opts ...Option) *Driver {
	d := &Driver{pool: pool}
	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Pool exposes the underlying pool, e.g. for an AdvisoryLocker.
func (d *Driver) Pool() *pgxpool.Pool {
	return d.pool
}

// Close closes the pool.
func (d *Driver) Close() error {
	d.pool.Close()

	return nil
}

// Execute runs batch inside one transaction. Statements PostgreSQL cannot run
// in a transaction block are rejected before anything is sent.
func (d *Driver) Execute(ctx context.Context, batch []driver.Statement) (int, error) {
	if err := checkTransactional(batch); err != nil {
		return 0, err
	}

	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return 0, driver.Connection("beginning transaction", err)
	}

	defer tx.Rollback(ctx) //nolint:errcheck // rollback on committed tx returns ErrTxClosed

	if err := d.applyTimeouts(ctx, tx); err != nil {
		return 0, err
	}

	for i, stmt := range batch {
		query := stmt.Query
		if len(stmt.Args) > 0 {
			query = sqlx.Rebind(sqlx.DOLLAR, query)
		}

		if _, err := tx.Exec(ctx, query, stmt.Args...); err != nil {
			return 0, fmt.Errorf("statement %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}

	return len(batch), nil
}

// QueryHistory reads history rows in a read-only transaction and parses them.
func (d *Driver) QueryHistory(ctx context.Context, query string) ([]migration.Applied, error) {
	tx, err := d.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, driver.Connection("beginning read transaction", err)
	}

	defer tx.Rollback(ctx) //nolint:errcheck // read-only work, nothing to keep

	rows, err := tx.Query(ctx, query)
	if err != nil {
		return nil, driver.Connection("querying history", err)
	}

	raw, err := pgx.CollectRows(rows, pgx.RowToStructByName[historyRow])
	if err != nil {
		return nil, driver.Connection("scanning history", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, driver.Connection("closing read transaction", err)
	}

	applied := make([]migration.Applied, 0, len(raw))

	for _, r := range raw {
		rec, err := migration.ParseAppliedRow(r.Version, r.Name, r.AppliedOn, r.Checksum)
		if err != nil {
			return nil, err
		}

		applied = append(applied, rec)
	}

	return applied, nil
}

func checkTransactional(batch []driver.Statement) error {
	for _, stmt := range batch {
		if len(stmt.Args) > 0 {
			continue
		}

		kind, err := nonTransactionalStatement(stmt.Query)
		if err != nil {
			return err
		}

		if kind != "" {
			return fmt.Errorf("%w: %s", ErrNonTransactional, kind)
		}
	}

	return nil
}

func (d *Driver) applyTimeouts(ctx context.Context, tx pgx.Tx) error {
	if d.lockTimeout > 0 {
		if err := setLocal(ctx, tx, "lock_timeout", d.lockTimeout); err != nil {
			return err
		}
	}

	if d.statementTimeout > 0 {
		if err := setLocal(ctx, tx, "statement_timeout", d.statementTimeout); err != nil {
			return err
		}
	}

	return nil
}

// setLocal scopes a timeout setting to the current transaction.
func setLocal(ctx context.Context, tx pgx.Tx, setting string, timeout time.Duration) error {
	sql := fmt.Sprintf("SET LOCAL %s = '%dms'", setting, timeout.Milliseconds())

	if _, err := tx.Exec(ctx, sql); err != nil {
		return fmt.Errorf("setting %s: %w", setting, err)
	}

	return nil
}
