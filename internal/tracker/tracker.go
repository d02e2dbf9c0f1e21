// Package tracker manages the history table: which migrations were applied,
// when, and with which checksum.
package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/aqasim81/schemaledger/internal/driver"
	"github.com/aqasim81/schemaledger/internal/migration"
)

// Tracker reads and appends history records through a driver.
type Tracker struct {
	drv   driver.Driver
	table string
}

// New creates a Tracker for table. An empty table uses DefaultTableName.
func New(drv driver.Driver, table string) (*Tracker, error) {
	if table == "" {
		table = DefaultTableName
	}

	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTableName, table)
	}

	return &Tracker{drv: drv, table: table}, nil
}

// Table returns the history table name.
func (t *Tracker) Table() string {
	return t.table
}

// EnsureTable creates the history table if it does not exist.
func (t *Tracker) EnsureTable(ctx context.Context) error {
	if _, err := t.drv.Execute(ctx, driver.Statements(createTableSQL(t.table))); err != nil {
		return fmt.Errorf("%w %s: %w", ErrTableCreation, t.table, err)
	}

	return nil
}

// Load returns all history records ordered by ascending version.
func (t *Tracker) Load(ctx context.Context) ([]migration.Applied, error) {
	records, err := t.drv.QueryHistory(ctx, selectSQL(t.table))
	if err != nil {
		return nil, fmt.Errorf("loading history from %s: %w", t.table, err)
	}

	return migration.SortApplied(records), nil
}

// RecordStatement returns the insert for m's history record. Appending it to
// the migration's own batch makes apply and record a single atomic unit.
func (t *Tracker) RecordStatement(m migration.Migration, appliedOn time.Time) driver.Statement {
	return driver.Statement{
		Query: insertSQL(t.table),
		Args: []any{
			int64(m.Version), //nolint:gosec // catalog rejects versions above MaxInt64
			m.Name,
			migration.FormatAppliedOn(appliedOn),
			migration.FormatChecksum(m.Checksum),
		},
	}
}

// Record appends m's history record in its own transaction, without running
// the migration. Used to baseline schemas that were changed by other means.
func (t *Tracker) Record(ctx context.Context, m migration.Migration, appliedOn time.Time) error {
	if _, err := t.drv.Execute(ctx, []driver.Statement{t.RecordStatement(m, appliedOn)}); err != nil {
		return fmt.Errorf("recording migration %d as applied: %w", m.Version, err)
	}

	return nil
}
