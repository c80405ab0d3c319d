package tindex

import (
	"github.com/hupe1980/tindex/internal/index"
	"github.com/hupe1980/tindex/internal/interval"
	"github.com/hupe1980/tindex/internal/keycodec"
	"github.com/hupe1980/tindex/internal/mutation"
	"github.com/hupe1980/tindex/internal/scan"
)

// Forever is the upper bound of an open interval.
const Forever = interval.Forever

type (
	// Interval is a half-open validity range [Lower, Upper).
	Interval = interval.Interval

	// Intervals is an ordered, non-overlapping list of validity ranges.
	Intervals = interval.List

	// Entry is one scan result.
	Entry = index.Entry

	// Result holds the entries of a scan, their order and walk statistics.
	Result = index.Result

	// ScanStats counts the rows a scan visited, matched and admitted.
	ScanStats = scan.Stats

	// Order describes the order of Result entries.
	Order = index.Order

	// Row is one stored cell.
	Row = index.Row

	// Consumer receives the rows of one physical table from Tx.AllEntries.
	Consumer = index.Consumer

	// Table identifies a physical index table.
	Table = keycodec.TableName

	// RollbackStats counts the cells a rollback scanned, rewrote and deleted.
	RollbackStats = mutation.RollbackStats

	// ScanMode selects how validity at the scan instant is tested.
	ScanMode = scan.Mode
)

const (
	Unordered  = index.Unordered
	Ascending  = index.Ascending
	Descending = index.Descending
)

const (
	// ModeContains admits rows valid at the instant.
	ModeContains = scan.ModeContains

	// ModeLatestClosedBefore admits rows that are not valid at the instant
	// but have a closed interval ending at or before it.
	ModeLatestClosedBefore = scan.ModeLatestClosedBefore
)

// ParseTable reverses Table.String.
func ParseTable(name string) (Table, error) {
	return keycodec.ParseTableName(name)
}
