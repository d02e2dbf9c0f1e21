// Package driver defines the capability boundary between the migration
// runner and a database backend. A backend only has to run a batch of
// statements atomically and answer the history query; everything else lives
// in the runner.
package driver

import (
	"context"

	"github.com/aqasim81/schemaledger/internal/migration"
)

// Statement is one SQL statement with optional bind arguments. Placeholders
// are written as '?' and rebound by each backend to its own bindvar style.
type Statement struct {
	Query string
	Args  []any
}

// Driver is implemented by every backend and execution model.
type Driver interface {
	// Execute runs the batch as a single atomic unit. If any statement fails
	// the whole batch is rolled back and the failure returned. On success it
	// returns the number of statements applied.
	Execute(ctx context.Context, batch []Statement) (int, error)

	// QueryHistory runs query inside its own read transaction and parses each
	// row of (version, name, applied_on, checksum).
	QueryHistory(ctx context.Context, query string) ([]migration.Applied, error)
}

// Lock is a held cross-process migration lock.
type Lock interface {
	Release(ctx context.Context) error
}

// Locker acquires a lock that serializes concurrent runs against one schema.
type Locker interface {
	Lock(ctx context.Context) (Lock, error)
}

// Closer is implemented by drivers that own a connection pool or a worker.
type Closer interface {
	Close() error
}

// Statements wraps plain SQL strings into a batch without arguments.
func Statements(queries ...string) []Statement {
	batch := make([]Statement, 0, len(queries))
	for _, q := range queries {
		batch = append(batch, Statement{Query: q})
	}

	return batch
}
