package pgxdriver

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aqasim81/schemaledger/internal/driver"
)

const defaultMaxConns = 5

// NewPool creates a pgx connection pool for the given database URL.
// It parses the connection string, sets a conservative max connection limit,
// and pings the database to verify connectivity.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDatabaseURL, err)
	}

	poolCfg.MaxConns = defaultMaxConns

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, driver.Connection("creating pool", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()

		return nil, driver.Connection("pinging database", err)
	}

	return pool, nil
}
