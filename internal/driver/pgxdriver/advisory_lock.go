package pgxdriver

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aqasim81/schemaledger/internal/driver"
)

// DefaultLockID is the advisory lock key used to prevent concurrent runs.
const DefaultLockID int64 = 123456789

// AdvisoryLocker takes a session-level advisory lock for the duration of a run.
type AdvisoryLocker struct {
	pool *pgxpool.Pool
	id   int64
}

// NewAdvisoryLocker builds a locker on pool. A zero id uses DefaultLockID.
func NewAdvisoryLocker(pool *pgxpool.Pool, id int64) *AdvisoryLocker {
	if id == 0 {
		id = DefaultLockID
	}

	return &AdvisoryLocker{pool: pool, id: id}
}

// Lock implements driver.Locker without waiting: if another session holds the
// key it returns driver.ErrLockNotAcquired.
func (l *AdvisoryLocker) Lock(ctx context.Context) (driver.Lock, error) {
	return TryAcquireLock(ctx, l.pool, l.id)
}

// LockHandle wraps a dedicated pooled connection that holds a
// session-level advisory lock. Call Release to unlock and return
// the connection to the pool.
type LockHandle struct {
	conn *pgxpool.Conn
	id   int64
}

// TryAcquireLock attempts to acquire a session-level advisory lock.
// The caller must call handle.Release() when done.
func TryAcquireLock(ctx context.Context, pool *pgxpool.Pool, id int64) (*LockHandle, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, driver.Connection("acquiring connection for advisory lock", err)
	}

	var acquired bool

	err = conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", id).Scan(&acquired)
	if err != nil {
		conn.Release()

		return nil, fmt.Errorf("executing pg_try_advisory_lock: %w", err)
	}

	if !acquired {
		conn.Release()

		return nil, fmt.Errorf("%w: advisory lock %d", driver.ErrLockNotAcquired, id)
	}

	return &LockHandle{conn: conn, id: id}, nil
}

// Release unlocks the advisory lock and returns the connection to the pool.
// Safe to call multiple times; subsequent calls are no-ops.
func (h *LockHandle) Release(ctx context.Context) error {
	if h == nil || h.conn == nil {
		return nil
	}

	_, err := h.conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", h.id)
	h.conn.Release()
	h.conn = nil

	if err != nil {
		return fmt.Errorf("releasing advisory lock: %w", err)
	}

	return nil
}
