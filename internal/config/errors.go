package config

import "errors"

// ErrInvalidFormat indicates an output format other than text or json.
var ErrInvalidFormat = errors.New("invalid output format")

// ErrMissingDatabaseURL indicates no database URL was configured.
var ErrMissingDatabaseURL = errors.New("database URL is required (set --database-url, MIGRATE_DATABASE_URL, or database_url in config)")

// ErrUnsupportedDriver indicates a URL scheme or driver with no backend.
var ErrUnsupportedDriver = errors.New("unsupported database driver")
