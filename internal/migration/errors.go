package migration

import (
	"errors"
	"fmt"
)

// ErrDuplicateVersion indicates two catalog migrations share a version.
var ErrDuplicateVersion = errors.New("duplicate migration version")

// ErrInvalidVersion indicates a version that cannot be stored in the history table.
var ErrInvalidVersion = errors.New("invalid migration version")

// ErrInvalidIdentity indicates a name that does not follow V<version>__<name>.
var ErrInvalidIdentity = errors.New("invalid migration identity")

// ErrConnection indicates the backend could not open a transaction or a read.
var ErrConnection = errors.New("database connection failed")

// ErrChecksumMismatch indicates an applied migration's content changed since it ran.
var ErrChecksumMismatch = errors.New("migration checksum mismatch")

// ErrMissingMigration indicates a catalog migration below the applied maximum
// that has no history record.
var ErrMissingMigration = errors.New("migration missing from history")

// ErrCorruptHistory indicates a history row whose stored values cannot be parsed.
var ErrCorruptHistory = errors.New("corrupt migration history")

// ErrMigrationExecution indicates a pending migration's statements failed.
var ErrMigrationExecution = errors.New("migration execution failed")

// DuplicateVersionError reports the version shared by two catalog entries.
type DuplicateVersionError struct {
	Version uint64
	First   string
	Second  string
}

func (e *DuplicateVersionError) Error() string {
	return fmt.Sprintf("%s: %d (%s, %s)", ErrDuplicateVersion, e.Version, e.First, e.Second)
}

func (e *DuplicateVersionError) Is(target error) bool { return target == ErrDuplicateVersion }

// ConnectionError wraps a failure to open an atomic unit or a read query.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrConnection, e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

func (e *ConnectionError) Is(target error) bool { return target == ErrConnection }

// ChecksumMismatchError reports drift between the catalog and history for one version.
type ChecksumMismatchError struct {
	Version  uint64
	Name     string
	Stored   uint64
	Computed uint64
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("migration %d (%s): %s: stored=%d computed=%d",
		e.Version, e.Name, ErrChecksumMismatch, e.Stored, e.Computed)
}

func (e *ChecksumMismatchError) Is(target error) bool { return target == ErrChecksumMismatch }

// MissingMigrationError reports a catalog version below the applied maximum
// that history has no record of.
type MissingMigrationError struct {
	Version    uint64
	Name       string
	MaxApplied uint64
}

func (e *MissingMigrationError) Error() string {
	return fmt.Sprintf("migration %d (%s): %s: latest applied version is %d",
		e.Version, e.Name, ErrMissingMigration, e.MaxApplied)
}

func (e *MissingMigrationError) Is(target error) bool { return target == ErrMissingMigration }

// CorruptHistoryError reports the history field that failed to parse.
type CorruptHistoryError struct {
	Version int64
	Field   string
	Value   string
	Err     error
}

func (e *CorruptHistoryError) Error() string {
	return fmt.Sprintf("%s: version %d: %s %q: %v", ErrCorruptHistory, e.Version, e.Field, e.Value, e.Err)
}

func (e *CorruptHistoryError) Unwrap() error { return e.Err }

func (e *CorruptHistoryError) Is(target error) bool { return target == ErrCorruptHistory }

// MigrationExecutionError reports the failing migration and the backend cause.
// Migrations applied before it in the same run stay applied.
type MigrationExecutionError struct {
	Version uint64
	Name    string
	Err     error
}

func (e *MigrationExecutionError) Error() string {
	return fmt.Sprintf("executing migration %d (%s): %v", e.Version, e.Name, e.Err)
}

func (e *MigrationExecutionError) Unwrap() error { return e.Err }

func (e *MigrationExecutionError) Is(target error) bool { return target == ErrMigrationExecution }
