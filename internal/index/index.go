// Package index implements the typed index stores: integer, float and text
// (with a case-folded companion table).
//
// A store translates values and query specs into composite keys and scan
// configurations, then delegates to the mutation and scan packages. Stores
// hold no data themselves; every call works inside a caller-supplied kv
// transaction.
package index

import (
	"errors"
	"iter"

	"github.com/hupe1980/tindex/internal/interval"
	"github.com/hupe1980/tindex/internal/keycodec"
	"github.com/hupe1980/tindex/internal/mutation"
	"github.com/hupe1980/tindex/internal/scan"
	"github.com/hupe1980/tindex/kv"
	"github.com/hupe1980/tindex/query"
)

// ErrTypeMismatch is returned when a value does not fit the index type.
var ErrTypeMismatch = errors.New("value type does not match index type")

// DefaultUnionLimit is the largest In list answered by a union of equality
// scans instead of a full table scan.
const DefaultUnionLimit = 3

// Options tunes query planning.
type Options struct {
	// FloatTolerance is the default tolerance of float equality.
	FloatTolerance float64

	// UnionLimit is the largest In list answered by per-value equality
	// scans. Zero means DefaultUnionLimit.
	UnionLimit int
}

func (o Options) unionLimit() int {
	if o.UnionLimit <= 0 {
		return DefaultUnionLimit
	}
	return o.UnionLimit
}

// Entry is a scan result.
type Entry struct {
	Value  query.Value
	Entity string
}

// Order describes the order of Result entries.
type Order int

const (
	// Unordered results come from a union of scans.
	Unordered Order = iota
	// Ascending results are sorted by value, then entity.
	Ascending
	// Descending results are sorted by value, then entity, both descending.
	Descending
)

func (o Order) String() string {
	switch o {
	case Ascending:
		return "asc"
	case Descending:
		return "desc"
	default:
		return "none"
	}
}

// Result is the outcome of a scan.
type Result struct {
	Entries []Entry
	Order   Order
	Stats   scan.Stats
}

// Row is a full cell as produced by AllEntries.
type Row struct {
	Value     query.Value
	Entity    string
	Intervals interval.List
}

// Consumer receives the rows of one physical table.
type Consumer func(table keycodec.TableName, rows iter.Seq2[Row, error]) error

// Store is the per-type index contract.
type Store interface {
	// ID returns the index identifier.
	ID() string

	// Kind returns the value kind the index holds.
	Kind() query.Kind

	// Insert opens validity [from, to) for (value, entity).
	Insert(tx kv.Txn, keyspace string, value query.Value, entity string, from, to int64) error

	// Terminate closes the validity of (value, entity) at instant.
	Terminate(tx kv.Txn, keyspace string, value query.Value, entity string, instant, assumedLower int64) (bool, error)

	// Load returns the intervals stored for (value, entity).
	Load(tx kv.Txn, keyspace string, value query.Value, entity string) (interval.List, bool, error)

	// Put replaces the intervals of (value, entity). An empty list deletes the
	// cell.
	Put(tx kv.Txn, keyspace string, value query.Value, entity string, l interval.List) error

	// Delete removes (value, entity) from every table of the index.
	Delete(tx kv.Txn, keyspace string, value query.Value, entity string) error

	// Rollback rewrites the history of every keyspace to its state at
	// instant. Empty entities selects all cells.
	Rollback(tx kv.Txn, instant int64, entities []string) (mutation.RollbackStats, error)

	// Scan evaluates spec in keyspace at instant.
	Scan(tx kv.Txn, spec query.Spec, keyspace string, instant int64, mode scan.Mode) (Result, error)

	// AllEntries calls fn once per existing physical table of the index in
	// keyspace.
	AllEntries(tx kv.Txn, keyspace string, fn Consumer) error

	// Keyspaces lists the keyspaces holding data of the index, sorted.
	Keyspaces(tx kv.Txn) ([]string, error)

	// Clear drops every table of the index.
	Clear(tx kv.Txn) error
}

// New returns the store for an index of the given kind.
func New(id string, kind query.Kind, opts Options) (Store, error) {
	switch kind {
	case query.KindInt:
		return NewInt(id, opts), nil
	case query.KindFloat:
		return NewFloat(id, opts), nil
	case query.KindString:
		return NewText(id, opts), nil
	}
	return nil, ErrTypeMismatch
}
