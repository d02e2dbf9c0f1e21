package tracker

import (
	"fmt"
	"regexp"
)

// DefaultTableName is the history table used when none is configured.
const DefaultTableName = "schema_history"

// tableNamePattern accepts identifiers that need no quoting on any backend.
var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`) //nolint:gochecknoglobals // compiled once

// createTableSQL is portable across SQLite, MySQL and PostgreSQL. applied_on
// and checksum are text so no backend narrows or reformats them.
func createTableSQL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    version     BIGINT PRIMARY KEY,
    name        VARCHAR(255),
    applied_on  VARCHAR(255),
    checksum    VARCHAR(255)
)`, table)
}

func selectSQL(table string) string {
	return fmt.Sprintf("SELECT version, name, applied_on, checksum FROM %s ORDER BY version", table)
}

func insertSQL(table string) string {
	return fmt.Sprintf("INSERT INTO %s (version, name, applied_on, checksum) VALUES (?, ?, ?, ?)", table)
}
