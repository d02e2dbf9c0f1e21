//go:build integration

package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/aqasim81/schemaledger/internal/driver/pgxdriver"
	"github.com/aqasim81/schemaledger/internal/driver/sqldriver"
)

const (
	postgresImage = "postgres:16-alpine"
	mysqlImage    = "mysql:8.4"
	testDB        = "migrate_test"
	testUser      = "migrate"
	testPassword  = "migrate"
)

// startContainer runs req and returns the host:port mapped to port. The
// container is terminated when the test completes.
func startContainer(t *testing.T, req testcontainers.ContainerRequest, port string) string {
	t.Helper()

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, container.Terminate(context.Background()))
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)

	mapped, err := container.MappedPort(ctx, port)
	require.NoError(t, err)

	return fmt.Sprintf("%s:%s", host, mapped.Port())
}

// SetupPostgresDSN starts a PostgreSQL 16 container and returns its URL.
func SetupPostgresDSN(t *testing.T) string {
	t.Helper()

	addr := startContainer(t, testcontainers.ContainerRequest{
		Image:        postgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       testDB,
			"POSTGRES_USER":     testUser,
			"POSTGRES_PASSWORD": testPassword,
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}, "5432/tcp")

	return "postgres://" + testUser + ":" + testPassword + "@" + addr + "/" + testDB + "?sslmode=disable"
}

// SetupPostgres starts a PostgreSQL container and returns a connection pool.
// The container and pool are automatically cleaned up when the test completes.
func SetupPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()

	ctx := context.Background()

	pool, err := pgxdriver.NewPool(ctx, SetupPostgresDSN(t))
	require.NoError(t, err)

	t.Cleanup(func() {
		pool.Close()
	})

	return pool
}

// SetupMySQL starts a MySQL container and returns a driver connected to it.
func SetupMySQL(t *testing.T) *sqldriver.Driver {
	t.Helper()

	addr := startContainer(t, testcontainers.ContainerRequest{
		Image:        mysqlImage,
		ExposedPorts: []string{"3306/tcp"},
		Env: map[string]string{
			"MYSQL_DATABASE":      testDB,
			"MYSQL_USER":          testUser,
			"MYSQL_PASSWORD":      testPassword,
			"MYSQL_ROOT_PASSWORD": testPassword,
		},
		WaitingFor: wait.ForAll(
			wait.ForLog("ready for connections").WithOccurrence(2),
			wait.ForListeningPort("3306/tcp"),
		).WithDeadline(120 * time.Second),
	}, "3306/tcp")

	dsn := testUser + ":" + testPassword + "@tcp(" + addr + ")/" + testDB

	d, err := sqldriver.Open(context.Background(), sqldriver.MySQL, dsn,
		sqldriver.WithConnectAttempts(10),
		sqldriver.WithRetryStep(time.Second),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		d.Close() //nolint:errcheck // test cleanup
	})

	return d
}
