//go:build integration

package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/schemaledger/internal/driver"
	"github.com/aqasim81/schemaledger/internal/driver/pgxdriver"
)

func TestAdvisoryLock_acquireAndRelease(t *testing.T) {
	t.Parallel()

	pool := SetupPostgres(t)
	ctx := context.Background()

	handle, err := pgxdriver.TryAcquireLock(ctx, pool, pgxdriver.DefaultLockID)
	require.NoError(t, err)
	require.NotNil(t, handle)

	require.NoError(t, handle.Release(ctx))
	require.NoError(t, handle.Release(ctx))

	again, err := pgxdriver.TryAcquireLock(ctx, pool, pgxdriver.DefaultLockID)
	require.NoError(t, err)
	require.NoError(t, again.Release(ctx))
}

func TestAdvisoryLock_doubleAcquire_returnsLockNotAcquired(t *testing.T) {
	t.Parallel()

	pool := SetupPostgres(t)
	ctx := context.Background()

	locker := pgxdriver.NewAdvisoryLocker(pool, 42)

	first, err := locker.Lock(ctx)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = first.Release(context.Background())
	})

	second, err := locker.Lock(ctx)
	assert.Nil(t, second)
	require.ErrorIs(t, err, driver.ErrLockNotAcquired)

	other, err := pgxdriver.NewAdvisoryLocker(pool, 43).Lock(ctx)
	require.NoError(t, err, "a different key is independent")
	require.NoError(t, other.Release(ctx))
}

func TestNewPool_validConnection_succeeds(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	pool, err := pgxdriver.NewPool(ctx, SetupPostgresDSN(t))
	require.NoError(t, err)

	t.Cleanup(pool.Close)

	var result int

	require.NoError(t, pool.QueryRow(ctx, "SELECT 1").Scan(&result))
	assert.Equal(t, 1, result)
}
