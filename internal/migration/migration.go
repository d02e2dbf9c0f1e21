package migration

import (
	"fmt"
	"math"
	"regexp"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// identityPattern matches the V{version}__{name} identity encoding.
var identityPattern = regexp.MustCompile(`^V(\d+)__(\w+)$`) //nolint:gochecknoglobals // compiled once

// Migration is a single versioned unit of forward schema change.
type Migration struct {
	Version  uint64 // Leading integer of the identity, e.g. 3 for V3__add_email
	Name     string // Descriptive part of the identity, e.g. "add_email"
	SQL      string // Statement batch executed as one atomic unit
	Checksum uint64 // xxhash64 of SQL
}

// New builds a Migration and computes its checksum.
func New(version uint64, name, sql string) Migration {
	return Migration{
		Version:  version,
		Name:     name,
		SQL:      sql,
		Checksum: ComputeChecksum(sql),
	}
}

// Identity returns the V{version}__{name} encoding of the migration.
func (m Migration) Identity() string {
	return fmt.Sprintf("V%d__%s", m.Version, m.Name)
}

// ComputeChecksum returns the 64-bit xxhash of the given SQL string.
func ComputeChecksum(sql string) uint64 {
	return xxhash.Sum64String(sql)
}

// ParseIdentity splits a V{version}__{name} identity into its version and name.
func ParseIdentity(identity string) (uint64, string, error) {
	matches := identityPattern.FindStringSubmatch(identity)
	if matches == nil {
		return 0, "", fmt.Errorf("%w: %q does not match V<version>__<name>", ErrInvalidIdentity, identity)
	}

	version, err := strconv.ParseUint(matches[1], 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("%w: %q: %w", ErrInvalidVersion, matches[1], err)
	}

	if version > math.MaxInt64 {
		return 0, "", fmt.Errorf("%w: %d exceeds the history column range", ErrInvalidVersion, version)
	}

	return version, matches[2], nil
}
