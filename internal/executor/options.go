package executor

import (
	"go.uber.org/zap"

	"github.com/aqasim81/schemaledger/internal/driver"
)

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithProgressCallback sets a function called for each migration processed.
func WithProgressCallback(fn func(ProgressEvent)) Option {
	return func(e *Executor) { e.onProgress = fn }
}

// WithLocker holds a cross-process lock for the duration of Apply.
func WithLocker(l driver.Locker) Option {
	return func(e *Executor) { e.locker = l }
}

// WithTableName sets the history table name.
func WithTableName(name string) Option {
	return func(e *Executor) { e.tableName = name }
}

// WithTarget stops Apply after the given version; later migrations stay pending.
func WithTarget(version uint64) Option {
	return func(e *Executor) {
		e.target = version
		e.hasTarget = true
	}
}

// WithDryRun validates and reports pending migrations without executing them.
func WithDryRun(b bool) Option {
	return func(e *Executor) { e.dryRun = b }
}

// WithFake records pending migrations as applied without running their SQL.
func WithFake(b bool) Option {
	return func(e *Executor) { e.fake = b }
}
