package pgxdriver

import "errors"

// ErrInvalidDatabaseURL indicates the provided database URL could not be parsed.
var ErrInvalidDatabaseURL = errors.New("invalid database URL")

// ErrNonTransactional indicates a statement PostgreSQL refuses to run inside a
// transaction block, such as CREATE INDEX CONCURRENTLY. Such a migration cannot
// be applied atomically with its history record.
var ErrNonTransactional = errors.New("statement cannot run inside a transaction")
