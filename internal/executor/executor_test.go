package executor_test

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/aqasim81/schemaledger/internal/driver"
	"github.com/aqasim81/schemaledger/internal/driver/asyncdriver"
	"github.com/aqasim81/schemaledger/internal/driver/sqldriver"
	"github.com/aqasim81/schemaledger/internal/executor"
	"github.com/aqasim81/schemaledger/internal/migration"
)

type historyRow struct {
	Version  int64  `db:"version"`
	Checksum string `db:"checksum"`
}

func openSQLite(t require.TestingT) *sqldriver.Driver {
	d, err := sqldriver.Open(context.Background(), sqldriver.SQLite, ":memory:")
	require.NoError(t, err)

	return d
}

func historyRows(t *testing.T, d *sqldriver.Driver) []historyRow {
	t.Helper()

	var rows []historyRow
	require.NoError(t, d.DB().Select(&rows, "SELECT version, checksum FROM schema_history ORDER BY version"))

	return rows
}

func tableExists(t *testing.T, d *sqldriver.Driver, name string) bool {
	t.Helper()

	var n int
	require.NoError(t, d.DB().Get(&n, "SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name))

	return n == 1
}

func TestApply_sqlite_concreteScenario(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	d := openSQLite(t)
	defer d.Close()

	v1 := migration.New(1, "create_foo", "create table foo(id integer)")
	v2 := migration.New(2, "add_bar", "alter table foo add column bar text")
	catalog, err := migration.NewCatalog(v1, v2)
	require.NoError(t, err)

	e, err := executor.New(d)
	require.NoError(t, err)

	report, err := e.Apply(ctx, catalog)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2}, report.Versions())

	rows := historyRows(t, d)
	require.Len(t, rows, 2)
	assert.Equal(t, migration.FormatChecksum(v1.Checksum), rows[0].Checksum)
	assert.Equal(t, migration.FormatChecksum(v2.Checksum), rows[1].Checksum)

	report, err = e.Apply(ctx, catalog)
	require.NoError(t, err)
	assert.Empty(t, report.Applied)

	_, err = d.DB().Exec("UPDATE schema_history SET checksum = '1' WHERE version = 1")
	require.NoError(t, err)

	_, err = e.Apply(ctx, catalog)

	var mismatch *migration.ChecksumMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, uint64(1), mismatch.Version)

	after := historyRows(t, d)
	require.Len(t, after, 2)
	assert.Equal(t, "1", after[0].Checksum)
	assert.Equal(t, migration.FormatChecksum(v2.Checksum), after[1].Checksum)
}

func TestApply_sqlite_failingMigrationIsRolledBack(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	d := openSQLite(t)
	defer d.Close()

	v1 := migration.New(1, "create_foo", "create table foo(id integer)")

	e, err := executor.New(d)
	require.NoError(t, err)

	first, err := migration.NewCatalog(v1)
	require.NoError(t, err)
	_, err = e.Apply(ctx, first)
	require.NoError(t, err)

	catalog, err := migration.NewCatalog(
		v1,
		migration.New(2, "add_bar", "alter table foo add column bar text"),
		migration.New(3, "half_done", "create table v3_part (id integer); insert into no_such_table values (1)"),
		migration.New(4, "create_qux", "create table qux (id integer)"),
	)
	require.NoError(t, err)

	report, err := e.Apply(ctx, catalog)

	var execErr *migration.MigrationExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, uint64(3), execErr.Version)
	assert.Equal(t, []uint64{2}, report.Versions())

	rows := historyRows(t, d)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(1), rows[0].Version)
	assert.Equal(t, int64(2), rows[1].Version)
	assert.False(t, tableExists(t, d, "v3_part"))
	assert.False(t, tableExists(t, d, "qux"))
}

func TestApply_sqlite_corruptHistory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	d := openSQLite(t)
	defer d.Close()

	e, err := executor.New(d, executor.WithTableName("app_history"))
	require.NoError(t, err)

	catalog, err := migration.NewCatalog(migration.New(1, "create_foo", "create table foo(id integer)"))
	require.NoError(t, err)

	_, err = e.Apply(ctx, catalog)
	require.NoError(t, err)

	_, err = d.DB().Exec("UPDATE app_history SET applied_on = 'last tuesday'")
	require.NoError(t, err)

	_, err = e.Apply(ctx, catalog)

	require.ErrorIs(t, err, migration.ErrCorruptHistory)
}

func TestApply_asyncDriver_sameOutcome(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	d := asyncdriver.New(openSQLite(t))
	defer d.Close()

	catalog, err := migration.NewCatalog(
		migration.New(2, "add_bar", "alter table foo add column bar text"),
		migration.New(1, "create_foo", "create table foo(id integer)"),
	)
	require.NoError(t, err)

	e, err := executor.New(d)
	require.NoError(t, err)

	report, err := e.Apply(ctx, catalog)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2}, report.Versions())

	report, err = e.Apply(ctx, catalog)
	require.NoError(t, err)
	assert.Empty(t, report.Applied)
}

func tableMigrations(versions []uint64) []migration.Migration {
	ms := make([]migration.Migration, 0, len(versions))
	for _, v := range versions {
		ms = append(ms, migration.New(v, fmt.Sprintf("create_t%d", v), fmt.Sprintf("create table t%d (id integer)", v)))
	}

	return ms
}

func TestApply_property_ascendingOrderAndIdempotence(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(rt *rapid.T) {
		versions := rapid.SliceOfNDistinct(rapid.Uint64Range(0, 10_000), 1, 12, rapid.ID[uint64]).Draw(rt, "versions")
		shuffled := rapid.Permutation(versions).Draw(rt, "enumeration")

		d := openSQLite(rt)
		defer d.Close()

		catalog, err := migration.NewCatalog(tableMigrations(shuffled)...)
		require.NoError(rt, err)

		e, err := executor.New(d)
		require.NoError(rt, err)

		first, err := e.Apply(context.Background(), catalog)
		require.NoError(rt, err)

		want := slices.Clone(versions)
		slices.Sort(want)
		require.Equal(rt, want, first.Versions())

		second, err := e.Apply(context.Background(), catalog)
		require.NoError(rt, err)
		require.Empty(rt, second.Applied)
	})
}

func TestApply_property_resumesFromLatestApplied(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(rt *rapid.T) {
		versions := rapid.SliceOfNDistinct(rapid.Uint64Range(1, 500), 2, 10, rapid.ID[uint64]).Draw(rt, "versions")
		slices.Sort(versions)
		split := rapid.IntRange(1, len(versions)-1).Draw(rt, "split")

		d := openSQLite(rt)
		defer d.Close()

		e, err := executor.New(d)
		require.NoError(rt, err)

		all := tableMigrations(versions)

		head, err := migration.NewCatalog(all[:split]...)
		require.NoError(rt, err)
		_, err = e.Apply(context.Background(), head)
		require.NoError(rt, err)

		full, err := migration.NewCatalog(all...)
		require.NoError(rt, err)
		report, err := e.Apply(context.Background(), full)
		require.NoError(rt, err)

		require.Equal(rt, versions[split:], report.Versions())
	})
}

// countingDriver counts Execute calls to prove validation failures touch nothing.
type countingDriver struct {
	driver.Driver
	executes int
}

func (c *countingDriver) Execute(ctx context.Context, batch []driver.Statement) (int, error) {
	c.executes++

	return c.Driver.Execute(ctx, batch)
}

func TestApply_sqlite_driftDetectedBeforeAnyWrite(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	d := openSQLite(t)
	defer d.Close()

	seed, err := executor.New(d)
	require.NoError(t, err)

	original, err := migration.NewCatalog(migration.New(1, "create_foo", "create table foo(id integer)"))
	require.NoError(t, err)
	_, err = seed.Apply(ctx, original)
	require.NoError(t, err)

	counting := &countingDriver{Driver: d}
	e, err := executor.New(counting)
	require.NoError(t, err)

	edited, err := migration.NewCatalog(
		migration.New(1, "create_foo", "create table foo(id bigint)"),
		migration.New(2, "add_bar", "alter table foo add column bar text"),
	)
	require.NoError(t, err)

	_, err = e.Apply(ctx, edited)

	require.ErrorIs(t, err, migration.ErrChecksumMismatch)
	assert.Equal(t, 1, counting.executes, "only the idempotent CREATE TABLE IF NOT EXISTS")
	assert.Len(t, historyRows(t, d), 1)
}
