package sqldriver

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/aqasim81/schemaledger/internal/driver"
)

// DefaultLockKey names the MySQL user-level lock taken for a run.
const DefaultLockKey = "schemaledger_migrations"

// DefaultLockWait is how long GET_LOCK waits for a competing holder.
const DefaultLockWait = 3 * time.Second

// MySQLLocker takes a GET_LOCK user lock on a dedicated connection. The lock
// belongs to that session, so the connection is pinned until Release.
type MySQLLocker struct {
	db   *sqlx.DB
	key  string
	wait time.Duration
}

// NewMySQLLocker builds a locker on db. An empty key uses DefaultLockKey.
func NewMySQLLocker(db *sqlx.DB, key string, wait time.Duration) *MySQLLocker {
	if key == "" {
		key = DefaultLockKey
	}

	return &MySQLLocker{db: db, key: key, wait: wait}
}

// Lock acquires the user lock or returns driver.ErrLockNotAcquired after the
// wait elapses.
func (l *MySQLLocker) Lock(ctx context.Context) (driver.Lock, error) {
	conn, err := l.db.Connx(ctx)
	if err != nil {
		return nil, driver.Connection("acquiring connection for lock", err)
	}

	var acquired sql.NullInt64

	err = conn.QueryRowxContext(ctx, "SELECT GET_LOCK(?, ?)", l.key, int(l.wait.Seconds())).Scan(&acquired)
	if err != nil {
		conn.Close() //nolint:errcheck // already failing

		return nil, fmt.Errorf("could not obtain %q lock: %w", l.key, err)
	}

	if !acquired.Valid || acquired.Int64 != 1 {
		conn.Close() //nolint:errcheck // lock was not taken

		return nil, fmt.Errorf("%w: %q", driver.ErrLockNotAcquired, l.key)
	}

	return &mysqlLock{conn: conn, key: l.key}, nil
}

type mysqlLock struct {
	conn *sqlx.Conn
	key  string
}

// Release frees the user lock and returns the connection to the pool.
// Subsequent calls are no-ops.
func (h *mysqlLock) Release(ctx context.Context) error {
	if h == nil || h.conn == nil {
		return nil
	}

	_, err := h.conn.ExecContext(ctx, "SELECT RELEASE_LOCK(?)", h.key)
	closeErr := h.conn.Close()
	h.conn = nil

	if err != nil {
		return fmt.Errorf("could not release %q lock: %w", h.key, err)
	}

	if closeErr != nil {
		return fmt.Errorf("closing lock connection: %w", closeErr)
	}

	return nil
}
