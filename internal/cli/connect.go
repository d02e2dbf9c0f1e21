package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aqasim81/schemaledger/internal/config"
	"github.com/aqasim81/schemaledger/internal/driver"
	"github.com/aqasim81/schemaledger/internal/driver/asyncdriver"
	"github.com/aqasim81/schemaledger/internal/driver/pgxdriver"
	"github.com/aqasim81/schemaledger/internal/driver/sqldriver"
	"github.com/aqasim81/schemaledger/internal/migration"
	"github.com/aqasim81/schemaledger/internal/retry"
)

const connectRetryStep = time.Second

// connection bundles the driver chosen for the configured backend with its
// run lock, if the backend has one.
type connection struct {
	drv    driver.Driver
	locker driver.Locker
}

func (c *connection) Close() {
	if closer, ok := c.drv.(driver.Closer); ok {
		closer.Close() //nolint:errcheck // nothing left to do on shutdown
	}
}

// connect opens the backend named by cfg. With cfg.Async the driver is
// served from a worker goroutine.
func connect(ctx context.Context, cfg *config.Config, out io.Writer) (*connection, error) {
	target, err := cfg.ResolveTarget()
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(out, "Connecting to %s\n", config.RedactURL(cfg.DatabaseURL))

	var conn *connection

	switch target.Driver {
	case config.DriverPostgres:
		conn, err = connectPostgres(ctx, cfg, target.DSN)
	default:
		conn, err = connectSQL(ctx, cfg, target)
	}

	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	if !cfg.UseLock {
		conn.locker = nil
	}

	if cfg.Async {
		conn.drv = asyncdriver.New(conn.drv)
	}

	return conn, nil
}

func connectPostgres(ctx context.Context, cfg *config.Config, dsn string) (*connection, error) {
	var pool *pgxpool.Pool

	err := retry.Incremental(ctx, connectRetryStep, cfg.ConnectAttempts, func(attempt int) error {
		p, err := pgxdriver.NewPool(ctx, dsn)
		if err != nil {
			if errors.Is(err, migration.ErrConnection) {
				return retry.Retryable(err, attempt)
			}

			return err
		}

		pool = p

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &connection{
		drv: pgxdriver.New(pool,
			pgxdriver.WithLockTimeout(cfg.LockTimeout),
			pgxdriver.WithStatementTimeout(cfg.StatementTimeout),
		),
		locker: pgxdriver.NewAdvisoryLocker(pool, 0),
	}, nil
}

func connectSQL(ctx context.Context, cfg *config.Config, target config.Target) (*connection, error) {
	d, err := sqldriver.Open(ctx, target.Driver, target.DSN,
		sqldriver.WithConnectAttempts(cfg.ConnectAttempts),
		sqldriver.WithRetryStep(connectRetryStep),
	)
	if err != nil {
		return nil, err
	}

	conn := &connection{drv: d}

	if target.Driver == sqldriver.MySQL {
		conn.locker = sqldriver.NewMySQLLocker(d.DB(), "", sqldriver.DefaultLockWait)
	}

	return conn, nil
}

// loadCatalog reads and validates the migrations directory.
func loadCatalog(dir string) (*migration.Catalog, error) {
	migrations, err := migration.LoadFromDir(dir)
	if err != nil {
		return nil, fmt.Errorf("loading migrations: %w", err)
	}

	catalog, err := migration.NewCatalog(migrations...)
	if err != nil {
		return nil, fmt.Errorf("loading migrations: %w", err)
	}

	return catalog, nil
}
