package executor

import (
	"context"

	"github.com/aqasim81/schemaledger/internal/migration"
)

// Drift pairs a catalog migration with the checksum history holds for it.
type Drift struct {
	Migration migration.Migration
	Stored    uint64
}

// State compares a catalog against the history table.
type State struct {
	Applied  []migration.Applied   // history records, ascending
	Pending  []migration.Migration // catalog versions above the latest applied
	Missing  []migration.Migration // catalog versions below it with no record
	Drifted  []Drift               // applied versions whose content changed
	Orphaned []migration.Applied   // history versions absent from the catalog

	violations []error
}

// MaxApplied returns the highest applied version and whether any exists.
func (s *State) MaxApplied() (uint64, bool) {
	if len(s.Applied) == 0 {
		return 0, false
	}

	return s.Applied[len(s.Applied)-1].Version, true
}

// Err returns the lowest-versioned integrity violation, or nil.
func (s *State) Err() error {
	if len(s.violations) == 0 {
		return nil
	}

	return s.violations[0]
}

// diff validates every catalog migration at or below the latest applied
// version and collects the rest as pending. applied must be sorted.
func diff(catalog *migration.Catalog, applied []migration.Applied) *State {
	s := &State{Applied: applied}

	recorded := make(map[uint64]migration.Applied, len(applied))
	for _, rec := range applied {
		recorded[rec.Version] = rec
	}

	maxApplied, hasApplied := s.MaxApplied()

	for _, m := range catalog.Migrations() {
		if !hasApplied || m.Version > maxApplied {
			s.Pending = append(s.Pending, m)
			continue
		}

		rec, ok := recorded[m.Version]
		if !ok {
			s.Missing = append(s.Missing, m)
			s.violations = append(s.violations, &migration.MissingMigrationError{
				Version:    m.Version,
				Name:       m.Name,
				MaxApplied: maxApplied,
			})

			continue
		}

		if rec.Checksum != m.Checksum {
			s.Drifted = append(s.Drifted, Drift{Migration: m, Stored: rec.Checksum})
			s.violations = append(s.violations, &migration.ChecksumMismatchError{
				Version:  m.Version,
				Name:     m.Name,
				Stored:   rec.Checksum,
				Computed: m.Checksum,
			})
		}
	}

	for _, rec := range applied {
		if _, ok := catalog.Get(rec.Version); !ok {
			s.Orphaned = append(s.Orphaned, rec)
		}
	}

	return s
}

// Status ensures the history table exists and compares it with catalog.
// Integrity violations are reported in the State, not as an error.
func (e *Executor) Status(ctx context.Context, catalog *migration.Catalog) (*State, error) {
	if catalog == nil {
		return nil, ErrNilCatalog
	}

	if err := e.history.EnsureTable(ctx); err != nil {
		return nil, err
	}

	applied, err := e.history.Load(ctx)
	if err != nil {
		return nil, err
	}

	return diff(catalog, applied), nil
}

// Verify runs only the validation phase of Apply.
func (e *Executor) Verify(ctx context.Context, catalog *migration.Catalog) error {
	state, err := e.Status(ctx, catalog)
	if err != nil {
		return err
	}

	return state.Err()
}
