package driver

import (
	"errors"

	"github.com/aqasim81/schemaledger/internal/migration"
)

// ErrLockNotAcquired indicates the migration lock is held by another process.
var ErrLockNotAcquired = errors.New("migration lock not acquired")

// ErrUnsupportedDriver indicates a driver name with no registered backend.
var ErrUnsupportedDriver = errors.New("unsupported database driver")

// ErrClosed indicates the driver was used after Close.
var ErrClosed = errors.New("driver closed")

// Connection wraps err as a ConnectionError for the given operation.
func Connection(op string, err error) error {
	return &migration.ConnectionError{Op: op, Err: err}
}
