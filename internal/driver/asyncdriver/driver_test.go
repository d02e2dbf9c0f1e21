package asyncdriver_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/schemaledger/internal/driver"
	"github.com/aqasim81/schemaledger/internal/driver/asyncdriver"
	"github.com/aqasim81/schemaledger/internal/driver/sqldriver"
	"github.com/aqasim81/schemaledger/internal/migration"
)

// slowDriver records how many calls overlap.
type slowDriver struct {
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	calls       atomic.Int32
	gate        chan struct{} // when non-nil, Execute waits on it
	closed      atomic.Bool
}

func (s *slowDriver) Execute(_ context.Context, batch []driver.Statement) (int, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)

	for {
		prev := s.maxInFlight.Load()
		if n <= prev || s.maxInFlight.CompareAndSwap(prev, n) {
			break
		}
	}

	s.calls.Add(1)

	if s.gate != nil {
		<-s.gate
	} else {
		time.Sleep(time.Millisecond)
	}

	return len(batch), nil
}

func (s *slowDriver) QueryHistory(_ context.Context, _ string) ([]migration.Applied, error) {
	return []migration.Applied{{Version: 1, Name: "one"}}, nil
}

func (s *slowDriver) Close() error {
	s.closed.Store(true)
	return nil
}

func TestDriver_runsCallsOneAtATime(t *testing.T) {
	t.Parallel()

	inner := &slowDriver{}
	d := asyncdriver.New(inner)
	defer d.Close()

	var wg sync.WaitGroup

	for range 20 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			n, err := d.Execute(context.Background(), driver.Statements("a", "b"))
			assert.NoError(t, err)
			assert.Equal(t, 2, n)
		}()
	}

	wg.Wait()

	assert.Equal(t, int32(20), inner.calls.Load())
	assert.Equal(t, int32(1), inner.maxInFlight.Load())
}

func TestDriver_asyncResultArrivesWhileCallerContinues(t *testing.T) {
	t.Parallel()

	inner := &slowDriver{gate: make(chan struct{})}
	d := asyncdriver.New(inner)
	defer d.Close()

	pending := d.ExecuteAsync(context.Background(), driver.Statements("a"))

	select {
	case <-pending:
		t.Fatal("result delivered before the inner call finished")
	default:
	}

	close(inner.gate)

	r := <-pending
	require.NoError(t, r.Err)
	assert.Equal(t, 1, r.Count)
}

func TestDriver_cancelledWhileQueued_isNotStarted(t *testing.T) {
	t.Parallel()

	inner := &slowDriver{gate: make(chan struct{})}
	d := asyncdriver.New(inner)
	defer d.Close()

	first := d.ExecuteAsync(context.Background(), driver.Statements("first"))

	ctx, cancel := context.WithCancel(context.Background())
	second := d.ExecuteAsync(ctx, driver.Statements("second"))
	cancel()

	close(inner.gate)

	require.NoError(t, (<-first).Err)

	r := <-second
	require.ErrorIs(t, r.Err, context.Canceled)
	assert.Equal(t, int32(1), inner.calls.Load())
}

func TestDriver_queryHistory(t *testing.T) {
	t.Parallel()

	d := asyncdriver.New(&slowDriver{})
	defer d.Close()

	records, err := d.QueryHistory(context.Background(), "SELECT 1")

	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, uint64(1), records[0].Version)
}

func TestDriver_close(t *testing.T) {
	t.Parallel()

	inner := &slowDriver{}
	d := asyncdriver.New(inner)

	require.NoError(t, d.Close())
	require.NoError(t, d.Close(), "second close is a no-op")
	assert.True(t, inner.closed.Load())

	_, err := d.Execute(context.Background(), driver.Statements("a"))
	require.ErrorIs(t, err, driver.ErrClosed)

	_, err = d.QueryHistory(context.Background(), "SELECT 1")
	require.ErrorIs(t, err, driver.ErrClosed)
}

func TestDriver_overSQLite(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	inner, err := sqldriver.Open(ctx, sqldriver.SQLite, ":memory:")
	require.NoError(t, err)

	d := asyncdriver.New(inner, asyncdriver.WithQueueSize(1))
	defer d.Close()

	_, err = d.Execute(ctx, driver.Statements(
		"CREATE TABLE h (version BIGINT PRIMARY KEY, name VARCHAR(255), applied_on VARCHAR(255), checksum VARCHAR(255))",
	))
	require.NoError(t, err)

	_, err = d.Execute(ctx, []driver.Statement{{
		Query: "INSERT INTO h (version, name, applied_on, checksum) VALUES (?, ?, ?, ?)",
		Args:  []any{int64(3), "three", "2024-01-01T00:00:00Z", "99"},
	}})
	require.NoError(t, err)

	records, err := d.QueryHistory(ctx, "SELECT version, name, applied_on, checksum FROM h")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "three", records[0].Name)
}
