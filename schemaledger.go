// Package schemaledger applies versioned SQL migrations to a database exactly
// once, records each one in a history table inside the same transaction, and
// refuses to run when an applied migration has changed since it ran.
//
// A typical embedding:
//
//	//go:embed migrations/*.sql
//	var files embed.FS
//
//	catalog, err := schemaledger.LoadCatalog(files, "migrations")
//	...
//	drv, err := schemaledger.OpenSQL(ctx, schemaledger.SQLite, "app.db")
//	...
//	report, err := schemaledger.Run(ctx, catalog, drv)
package schemaledger

import (
	"context"
	"io/fs"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/aqasim81/schemaledger/internal/driver"
	"github.com/aqasim81/schemaledger/internal/driver/asyncdriver"
	"github.com/aqasim81/schemaledger/internal/driver/pgxdriver"
	"github.com/aqasim81/schemaledger/internal/driver/sqldriver"
	"github.com/aqasim81/schemaledger/internal/executor"
	"github.com/aqasim81/schemaledger/internal/migration"
)

type (
	Migration        = migration.Migration
	Catalog          = migration.Catalog
	Applied          = migration.Applied
	Report           = executor.Report
	AppliedMigration = executor.AppliedMigration
	State            = executor.State
	ProgressEvent    = executor.ProgressEvent
	Option           = executor.Option

	Driver    = driver.Driver
	Statement = driver.Statement
	Locker    = driver.Locker

	SQLDriver   = sqldriver.Driver
	PgxDriver   = pgxdriver.Driver
	AsyncDriver = asyncdriver.Driver
)

// Typed errors, for errors.As.
type (
	DuplicateVersionError   = migration.DuplicateVersionError
	ConnectionError         = migration.ConnectionError
	ChecksumMismatchError   = migration.ChecksumMismatchError
	MissingMigrationError   = migration.MissingMigrationError
	CorruptHistoryError     = migration.CorruptHistoryError
	MigrationExecutionError = migration.MigrationExecutionError
)

// Sentinels, for errors.Is.
var (
	ErrDuplicateVersion   = migration.ErrDuplicateVersion
	ErrInvalidVersion     = migration.ErrInvalidVersion
	ErrConnection         = migration.ErrConnection
	ErrChecksumMismatch   = migration.ErrChecksumMismatch
	ErrMissingMigration   = migration.ErrMissingMigration
	ErrCorruptHistory     = migration.ErrCorruptHistory
	ErrMigrationExecution = migration.ErrMigrationExecution
	ErrInterrupted        = executor.ErrInterrupted
	ErrLockNotAcquired    = driver.ErrLockNotAcquired
)

// Driver names accepted by OpenSQL.
const (
	SQLite = sqldriver.SQLite
	MySQL  = sqldriver.MySQL
)

// NewMigration builds a Migration and computes its checksum.
func NewMigration(version uint64, name, sql string) Migration {
	return migration.New(version, name, sql)
}

// NewCatalog validates and orders migrations.
func NewCatalog(migrations ...Migration) (*Catalog, error) {
	return migration.NewCatalog(migrations...)
}

// LoadCatalog reads V<version>__<name>.sql files from dir in fsys.
func LoadCatalog(fsys fs.FS, dir string) (*Catalog, error) {
	return migration.LoadCatalog(fsys, dir)
}

// OpenSQL opens a SQLite or MySQL database and returns its driver.
func OpenSQL(ctx context.Context, driverName, dsn string) (*SQLDriver, error) {
	return sqldriver.Open(ctx, driverName, dsn)
}

// NewSQLDriver wraps an existing sqlx handle.
func NewSQLDriver(db *sqlx.DB) *SQLDriver {
	return sqldriver.New(db)
}

// NewPgxDriver wraps a PostgreSQL pool.
func NewPgxDriver(pool *pgxpool.Pool) *PgxDriver {
	return pgxdriver.New(pool)
}

// NewAsyncDriver serves inner from a dedicated worker goroutine.
func NewAsyncDriver(inner Driver) *AsyncDriver {
	return asyncdriver.New(inner)
}

// WithLogger sets the structured logger used during a run.
func WithLogger(l *zap.Logger) Option { return executor.WithLogger(l) }

// WithProgressCallback registers fn to receive one event per migration step.
func WithProgressCallback(fn func(ProgressEvent)) Option { return executor.WithProgressCallback(fn) }

// WithLocker holds l's lock for the duration of a run.
func WithLocker(l Locker) Option { return executor.WithLocker(l) }

// WithTableName overrides the history table name.
func WithTableName(name string) Option { return executor.WithTableName(name) }

// WithTarget applies pending migrations only up to and including version.
func WithTarget(version uint64) Option { return executor.WithTarget(version) }

// WithDryRun validates and reports pending migrations without executing them.
func WithDryRun(b bool) Option { return executor.WithDryRun(b) }

// WithFake records pending migrations as applied without running their SQL.
func WithFake(b bool) Option { return executor.WithFake(b) }

// Run applies every pending migration in catalog through drv. The Report is
// never nil; on error it lists what was applied before the failure.
func Run(ctx context.Context, catalog *Catalog, drv Driver, opts ...Option) (*Report, error) {
	exec, err := executor.New(drv, opts...)
	if err != nil {
		return &Report{}, err
	}

	return exec.Apply(ctx, catalog)
}

// Status compares catalog with the history table without applying anything.
func Status(ctx context.Context, catalog *Catalog, drv Driver, opts ...Option) (*State, error) {
	exec, err := executor.New(drv, opts...)
	if err != nil {
		return nil, err
	}

	return exec.Status(ctx, catalog)
}

// Verify reports the lowest-version integrity violation between catalog and
// history, or nil.
func Verify(ctx context.Context, catalog *Catalog, drv Driver, opts ...Option) error {
	exec, err := executor.New(drv, opts...)
	if err != nil {
		return err
	}

	return exec.Verify(ctx, catalog)
}
