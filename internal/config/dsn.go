package config

import (
	"fmt"

	"github.com/xo/dburl"
)

// Driver names understood by the CLI.
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

// Target is a resolved database connection: which backend to use and the
// DSN in the form that backend's client expects.
type Target struct {
	Driver string
	DSN    string
}

// ResolveTarget works out the backend for c.DatabaseURL. An explicit Driver
// wins; otherwise the URL scheme decides (postgres://, mysql://, sqlite:...).
func (c *Config) ResolveTarget() (Target, error) {
	if c.DatabaseURL == "" {
		return Target{}, ErrMissingDatabaseURL
	}

	u, err := dburl.Parse(c.DatabaseURL)
	if err != nil {
		if c.Driver == "" {
			return Target{}, fmt.Errorf("parsing database url %s: %w", RedactURL(c.DatabaseURL), err)
		}

		// A raw driver-specific DSN, e.g. "user:pass@tcp(host)/db" for MySQL.
		return Target{Driver: normalizeDriver(c.Driver), DSN: c.DatabaseURL}, nil
	}

	name := c.Driver
	if name == "" {
		name = u.Driver
	}

	switch drv := normalizeDriver(name); drv {
	case DriverPostgres:
		// pgx accepts the URL form directly.
		return Target{Driver: drv, DSN: c.DatabaseURL}, nil
	case DriverMySQL, DriverSQLite:
		return Target{Driver: drv, DSN: u.DSN}, nil
	default:
		return Target{}, fmt.Errorf("%w: %q", ErrUnsupportedDriver, name)
	}
}

func normalizeDriver(name string) string {
	switch name {
	case "postgres", "postgresql", "pgx", "pg":
		return DriverPostgres
	case "mysql", "mariadb":
		return DriverMySQL
	case "sqlite", "sqlite3", "moderncsqlite", "file":
		return DriverSQLite
	default:
		return name
	}
}
