// Package sqldriver implements the driver capabilities over database/sql
// using sqlx. It backs the embedded SQLite store and MySQL servers.
package sqldriver

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver

	"github.com/aqasim81/schemaledger/internal/driver"
	"github.com/aqasim81/schemaledger/internal/migration"
	"github.com/aqasim81/schemaledger/internal/retry"
)

const (
	defaultConnectAttempts = 5
	defaultRetryStep       = 500 * time.Millisecond
)

// historyRow mirrors the history table columns. All but version are nullable.
type historyRow struct {
	Version   int64   `db:"version"`
	Name      *string `db:"name"`
	AppliedOn *string `db:"applied_on"`
	Checksum  *string `db:"checksum"`
}

// Driver runs migration batches over a sqlx handle.
type Driver struct {
	db *sqlx.DB
}

type openOptions struct {
	connectAttempts int
	retryStep       time.Duration
}

// Option configures Open.
type Option func(*openOptions)

// WithConnectAttempts sets how many times Open pings before giving up.
func WithConnectAttempts(n int) Option {
	return func(o *openOptions) {
		if n > 0 {
			o.connectAttempts = n
		}
	}
}

// WithRetryStep sets the growth of the delay between connection attempts.
func WithRetryStep(d time.Duration) Option {
	return func(o *openOptions) { o.retryStep = d }
}

// New wraps an existing handle. The caller keeps ownership of db.
func New(db *sqlx.DB) *Driver {
	return &Driver{db: db}
}

// Open connects to driverName ("sqlite" or "mysql") and pings it, retrying
// while the server comes up.
func Open(ctx context.Context, driverName, dsn string, opts ...Option) (*Driver, error) {
	o := openOptions{connectAttempts: defaultConnectAttempts, retryStep: defaultRetryStep}
	for _, opt := range opts {
		opt(&o)
	}

	prepared, err := prepareDSN(driverName, dsn)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open(driverName, prepared)
	if err != nil {
		return nil, driver.Connection("opening database", err)
	}

	if driverName == SQLite {
		// Every connection to ":memory:" is a separate database.
		db.SetMaxOpenConns(1)
	}

	err = retry.Incremental(ctx, o.retryStep, o.connectAttempts, func(attempt int) error {
		if pingErr := db.PingContext(ctx); pingErr != nil {
			return retry.Retryable(fmt.Errorf("pinging database: %w", pingErr), attempt)
		}

		return nil
	})
	if err != nil {
		db.Close() //nolint:errcheck // already failing

		return nil, driver.Connection("connecting", err)
	}

	return &Driver{db: db}, nil
}

// DB exposes the underlying handle, e.g. for building a lock.
func (d *Driver) DB() *sqlx.DB {
	return d.db
}

// Close closes the underlying handle.
func (d *Driver) Close() error {
	return d.db.Close()
}

// Execute runs batch in one transaction. The transaction is bound to ctx, so
// a cancellation before commit rolls the whole batch back.
func (d *Driver) Execute(ctx context.Context, batch []driver.Statement) (int, error) {
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, driver.Connection("beginning transaction", err)
	}

	defer tx.Rollback() //nolint:errcheck // rollback on committed tx returns ErrTxDone

	for i, stmt := range batch {
		query := stmt.Query
		if len(stmt.Args) > 0 {
			query = tx.Rebind(query)
		}

		if _, err := tx.ExecContext(ctx, query, stmt.Args...); err != nil {
			return 0, fmt.Errorf("statement %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}

	return len(batch), nil
}

// QueryHistory reads history rows inside a transaction and parses them.
func (d *Driver) QueryHistory(ctx context.Context, query string) ([]migration.Applied, error) {
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, driver.Connection("beginning read transaction", err)
	}

	defer tx.Rollback() //nolint:errcheck // read-only work, nothing to keep

	var rows []historyRow
	if err := tx.SelectContext(ctx, &rows, query); err != nil {
		return nil, driver.Connection("querying history", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, driver.Connection("closing read transaction", err)
	}

	return parseRows(rows)
}

func parseRows(rows []historyRow) ([]migration.Applied, error) {
	applied := make([]migration.Applied, 0, len(rows))

	for _, r := range rows {
		rec, err := migration.ParseAppliedRow(r.Version, r.Name, r.AppliedOn, r.Checksum)
		if err != nil {
			return nil, err
		}

		applied = append(applied, rec)
	}

	return applied, nil
}
