package executor

import (
	"time"

	"github.com/aqasim81/schemaledger/internal/migration"
)

// AppliedMigration is one entry of a Report.
type AppliedMigration struct {
	Version   uint64
	Name      string
	AppliedOn time.Time
	Duration  time.Duration
}

// Report is the outcome of one Apply call. Applied is in apply order. In
// dry-run mode Applied stays empty and Pending lists what would run.
type Report struct {
	Applied []AppliedMigration
	Pending []migration.Migration
	DryRun  bool
}

// Versions returns the applied versions in apply order.
func (r *Report) Versions() []uint64 {
	versions := make([]uint64, 0, len(r.Applied))
	for _, a := range r.Applied {
		versions = append(versions, a.Version)
	}

	return versions
}
