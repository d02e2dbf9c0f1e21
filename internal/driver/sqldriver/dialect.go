package sqldriver

import (
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/aqasim81/schemaledger/internal/driver"
)

// Registered database/sql driver names.
const (
	SQLite = "sqlite" // modernc.org/sqlite
	MySQL  = "mysql"  // github.com/go-sql-driver/mysql
)

// prepareDSN adjusts a DSN so a migration containing several statements can
// be sent in one Exec call.
func prepareDSN(driverName, dsn string) (string, error) {
	switch driverName {
	case SQLite:
		return dsn, nil
	case MySQL:
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return "", fmt.Errorf("parsing mysql dsn: %w", err)
		}

		cfg.MultiStatements = true

		return cfg.FormatDSN(), nil
	default:
		return "", fmt.Errorf("%w: %q", driver.ErrUnsupportedDriver, driverName)
	}
}
