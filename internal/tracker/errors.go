package tracker

import "errors"

// ErrTableCreation indicates the history table could not be created.
var ErrTableCreation = errors.New("creating history table")

// ErrInvalidTableName indicates a history table name that is not a plain,
// optionally schema-qualified, SQL identifier.
var ErrInvalidTableName = errors.New("invalid history table name")
