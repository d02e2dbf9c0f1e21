package migration

import (
	"errors"
	"sort"
	"strconv"
	"time"
)

// AppliedOnLayout is the textual format of the applied_on history column.
const AppliedOnLayout = time.RFC3339Nano

var (
	errNegativeVersion = errors.New("negative version") //nolint:gochecknoglobals // sentinel error
	errNullValue       = errors.New("unexpected NULL")  //nolint:gochecknoglobals // sentinel error
)

// nullValue is how a NULL column is shown in a CorruptHistoryError.
const nullValue = "NULL"

// Applied is a history record: a migration that was durably applied.
type Applied struct {
	Version   uint64
	Name      string
	AppliedOn time.Time
	Checksum  uint64
}

// FormatAppliedOn renders a timestamp in the history table's text format.
func FormatAppliedOn(t time.Time) string {
	return t.UTC().Format(AppliedOnLayout)
}

// FormatChecksum renders a checksum as its decimal string.
func FormatChecksum(checksum uint64) string {
	return strconv.FormatUint(checksum, 10)
}

// ParseApplied converts a raw history row into an Applied record.
// Values that do not parse back to their canonical types yield a
// CorruptHistoryError rather than a zero value.
func ParseApplied(version int64, name, appliedOn, checksum string) (Applied, error) {
	if version < 0 {
		return Applied{}, &CorruptHistoryError{
			Version: version,
			Field:   "version",
			Value:   strconv.FormatInt(version, 10),
			Err:     errNegativeVersion,
		}
	}

	ts, err := time.Parse(AppliedOnLayout, appliedOn)
	if err != nil {
		return Applied{}, &CorruptHistoryError{Version: version, Field: "applied_on", Value: appliedOn, Err: err}
	}

	sum, err := strconv.ParseUint(checksum, 10, 64)
	if err != nil {
		return Applied{}, &CorruptHistoryError{Version: version, Field: "checksum", Value: checksum, Err: err}
	}

	return Applied{
		Version:   uint64(version),
		Name:      name,
		AppliedOn: ts,
		Checksum:  sum,
	}, nil
}

// ParseAppliedRow is ParseApplied for rows scanned from nullable columns.
// A NULL name, applied_on or checksum yields a CorruptHistoryError.
func ParseAppliedRow(version int64, name, appliedOn, checksum *string) (Applied, error) {
	fields := []struct {
		name  string
		value *string
	}{
		{"name", name},
		{"applied_on", appliedOn},
		{"checksum", checksum},
	}

	for _, f := range fields {
		if f.value == nil {
			return Applied{}, &CorruptHistoryError{Version: version, Field: f.name, Value: nullValue, Err: errNullValue}
		}
	}

	return ParseApplied(version, *name, *appliedOn, *checksum)
}

// SortApplied returns a new slice of records sorted by ascending version.
func SortApplied(records []Applied) []Applied {
	sorted := make([]Applied, len(records))
	copy(sorted, records)

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Version < sorted[j].Version
	})

	return sorted
}
