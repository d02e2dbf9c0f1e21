package migration

import (
	"fmt"
	"math"
)

// Catalog is the full candidate set for a run, ordered by version.
type Catalog struct {
	migrations []Migration
	byVersion  map[uint64]int
}

// NewCatalog validates and orders the given migrations. Enumeration order does
// not matter. Every checksum is recomputed from the SQL; a caller-supplied
// value is never trusted.
func NewCatalog(migrations ...Migration) (*Catalog, error) {
	byVersion := make(map[uint64]int, len(migrations))
	seen := make(map[uint64]string, len(migrations))

	for i := range migrations {
		m := migrations[i]

		if m.Version > math.MaxInt64 {
			return nil, fmt.Errorf("%w: %d exceeds the history column range", ErrInvalidVersion, m.Version)
		}

		if first, dup := seen[m.Version]; dup {
			return nil, &DuplicateVersionError{Version: m.Version, First: first, Second: m.Name}
		}

		seen[m.Version] = m.Name
	}

	sorted := Sort(migrations)

	for i := range sorted {
		sorted[i].Checksum = ComputeChecksum(sorted[i].SQL)

		byVersion[sorted[i].Version] = i
	}

	return &Catalog{migrations: sorted, byVersion: byVersion}, nil
}

// Migrations returns a copy of the catalog in ascending version order.
func (c *Catalog) Migrations() []Migration {
	out := make([]Migration, len(c.migrations))
	copy(out, c.migrations)

	return out
}

// Get returns the migration with the given version.
func (c *Catalog) Get(version uint64) (Migration, bool) {
	i, ok := c.byVersion[version]
	if !ok {
		return Migration{}, false
	}

	return c.migrations[i], true
}

// Len returns the number of migrations in the catalog.
func (c *Catalog) Len() int {
	return len(c.migrations)
}

// Latest returns the highest version in the catalog, or 0 if it is empty.
func (c *Catalog) Latest() uint64 {
	if len(c.migrations) == 0 {
		return 0
	}

	return c.migrations[len(c.migrations)-1].Version
}
