package executor

import "errors"

// ErrNilCatalog indicates Apply, Status or Verify was called without a catalog.
var ErrNilCatalog = errors.New("migration catalog is nil")

// ErrInterrupted indicates the context was done before a pending migration
// started. Migrations applied earlier in the run stay applied.
var ErrInterrupted = errors.New("migration run interrupted")
