// Package executor implements the migration run: load history, validate it
// against the catalog, then apply pending migrations one at a time in
// ascending version order, each in its own transaction together with its
// history record.
package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aqasim81/schemaledger/internal/driver"
	"github.com/aqasim81/schemaledger/internal/migration"
	"github.com/aqasim81/schemaledger/internal/tracker"
)

// Progress status constants reported via ProgressEvent.
const (
	StatusStarting  = "starting"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
)

// ProgressEvent is emitted by the executor for each migration processed.
type ProgressEvent struct {
	Migration *migration.Migration
	Status    string
	Duration  time.Duration
	Error     error
}

// HistoryStore abstracts the history table for testability.
type HistoryStore interface {
	EnsureTable(ctx context.Context) error
	Load(ctx context.Context) ([]migration.Applied, error)
	RecordStatement(m migration.Migration, appliedOn time.Time) driver.Statement
	Record(ctx context.Context, m migration.Migration, appliedOn time.Time) error
}

// Executor applies a catalog through a driver.
type Executor struct {
	drv        driver.Driver
	history    HistoryStore
	logger     *zap.Logger
	locker     driver.Locker
	tableName  string
	target     uint64
	hasTarget  bool
	dryRun     bool
	fake       bool
	onProgress func(ProgressEvent)
	now        func() time.Time
}

// New creates an Executor that runs migrations through drv.
func New(drv driver.Driver, opts ...Option) (*Executor, error) {
	e := &Executor{
		drv:    drv,
		logger: zap.NewNop(),
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	history, err := tracker.New(drv, e.tableName)
	if err != nil {
		return nil, err
	}

	e.history = history

	return e, nil
}

// Apply validates history against catalog and applies every pending
// migration. The returned Report is never nil: on error it lists the
// migrations that were applied before the failure.
func (e *Executor) Apply(ctx context.Context, catalog *migration.Catalog) (*Report, error) {
	report := &Report{DryRun: e.dryRun}

	if catalog == nil {
		return report, ErrNilCatalog
	}

	if e.locker != nil && !e.dryRun {
		lock, err := e.locker.Lock(ctx)
		if err != nil {
			return report, fmt.Errorf("acquiring migration lock: %w", err)
		}

		defer e.release(lock)
	}

	state, err := e.Status(ctx, catalog)
	if err != nil {
		return report, err
	}

	e.warnOrphans(state.Orphaned)

	if err := state.Err(); err != nil {
		e.logger.Error("history validation failed", zap.Error(err))

		return report, err
	}

	pending := e.capToTarget(state.Pending)
	if len(pending) == 0 {
		e.logger.Info("schema is up to date", zap.Int("catalog", catalog.Len()))

		return report, nil
	}

	if e.dryRun {
		report.Pending = pending

		for i := range pending {
			e.fireProgress(ProgressEvent{Migration: &pending[i], Status: StatusSkipped})
		}

		return report, nil
	}

	for i := range pending {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("%w before migration %d: %w", ErrInterrupted, pending[i].Version, err)
		}

		applied, err := e.applyOne(ctx, &pending[i])
		if err != nil {
			return report, err
		}

		report.Applied = append(report.Applied, applied)
	}

	return report, nil
}

// applyOne runs a migration and its history insert as one batch, or only
// the insert in fake mode.
func (e *Executor) applyOne(ctx context.Context, m *migration.Migration) (AppliedMigration, error) {
	log := e.logger.With(zap.Uint64("version", m.Version), zap.String("name", m.Name))
	log.Info("applying migration", zap.Bool("fake", e.fake))
	e.fireProgress(ProgressEvent{Migration: m, Status: StatusStarting})

	appliedOn := e.now()
	start := time.Now()

	var err error
	if e.fake {
		err = e.history.Record(ctx, *m, appliedOn)
	} else {
		_, err = e.drv.Execute(ctx, e.batch(m, appliedOn))
	}

	duration := time.Since(start)

	if err != nil {
		e.fireProgress(ProgressEvent{Migration: m, Status: StatusFailed, Duration: duration, Error: err})
		log.Error("migration failed", zap.Duration("duration", duration), zap.Error(err))

		var connErr *migration.ConnectionError
		if errors.As(err, &connErr) {
			return AppliedMigration{}, fmt.Errorf("applying migration %d: %w", m.Version, err)
		}

		return AppliedMigration{}, &migration.MigrationExecutionError{Version: m.Version, Name: m.Name, Err: err}
	}

	e.fireProgress(ProgressEvent{Migration: m, Status: StatusCompleted, Duration: duration})
	log.Info("migration applied", zap.Duration("duration", duration))

	return AppliedMigration{
		Version:   m.Version,
		Name:      m.Name,
		AppliedOn: appliedOn,
		Duration:  duration,
	}, nil
}

func (e *Executor) batch(m *migration.Migration, appliedOn time.Time) []driver.Statement {
	record := e.history.RecordStatement(*m, appliedOn)

	if strings.TrimSpace(m.SQL) == "" {
		return []driver.Statement{record}
	}

	return []driver.Statement{{Query: m.SQL}, record}
}

func (e *Executor) capToTarget(pending []migration.Migration) []migration.Migration {
	if !e.hasTarget {
		return pending
	}

	capped := make([]migration.Migration, 0, len(pending))

	for _, m := range pending {
		if m.Version > e.target {
			break
		}

		capped = append(capped, m)
	}

	return capped
}

func (e *Executor) warnOrphans(orphans []migration.Applied) {
	for _, rec := range orphans {
		e.logger.Warn("applied migration not found in catalog",
			zap.Uint64("version", rec.Version),
			zap.String("name", rec.Name),
			zap.Time("applied_on", rec.AppliedOn),
		)
	}
}

func (e *Executor) release(lock driver.Lock) {
	// The run's context may already be cancelled; the lock must still go.
	if err := lock.Release(context.Background()); err != nil {
		e.logger.Warn("releasing migration lock", zap.Error(err))
	}
}

func (e *Executor) fireProgress(event ProgressEvent) {
	if e.onProgress != nil {
		e.onProgress(event)
	}
}
