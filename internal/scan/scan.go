// Package scan walks one index table with a cursor and collects the entries
// that satisfy a condition and are valid at an instant.
//
// The walk is driven entirely by a Config: where to start, which way to go,
// how to treat a mismatch and how to test validity. The same loop serves
// every value type and every condition.
package scan

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/hupe1980/tindex/internal/errs"
	"github.com/hupe1980/tindex/internal/interval"
	"github.com/hupe1980/tindex/internal/keycodec"
	"github.com/hupe1980/tindex/kv"
)

// Direction is the order in which keys are visited.
type Direction int

const (
	// Ascending visits keys in increasing byte order.
	Ascending Direction = iota
	// Descending visits keys in decreasing byte order.
	Descending
)

func (d Direction) String() string {
	if d == Descending {
		return "desc"
	}
	return "asc"
}

// seek positions c at the first key of a walk starting at start.
func (d Direction) seek(c kv.Cursor, start []byte) bool {
	switch {
	case d == Descending && start == nil:
		return c.Last()
	case d == Descending:
		return c.Floor(start)
	case start == nil:
		return c.First()
	default:
		return c.Ceil(start)
	}
}

// advance moves c one key further.
func (d Direction) advance(c kv.Cursor) bool {
	if d == Descending {
		return c.Prev()
	}
	return c.Next()
}

// Stop decides what a mismatch that is not skipped does.
type Stop int

const (
	// StopAtFirstMismatch ends the walk. Used for monotonic conditions.
	StopAtFirstMismatch Stop = iota
	// ScanUntilEnd keeps walking. Used for conditions without a usable order.
	ScanUntilEnd
)

func (s Stop) String() string {
	if s == ScanUntilEnd {
		return "until-end"
	}
	return "first-mismatch"
}

// Mode selects the validity test applied to matching rows.
type Mode int

const (
	// ModeContains admits rows whose intervals contain the instant.
	ModeContains Mode = iota
	// ModeLatestClosedBefore admits rows that have a closed interval ending at
	// or before the instant and are not valid at the instant.
	ModeLatestClosedBefore
)

func (m Mode) String() string {
	if m == ModeLatestClosedBefore {
		return "latest-closed-before"
	}
	return "contains"
}

// Config describes one scan.
type Config[V any] struct {
	// Table is the physical table to walk.
	Table string

	// Instant is the point in time rows must be valid at.
	Instant int64

	// Mode is the validity test.
	Mode Mode

	// Direction is the walk order.
	Direction Direction

	// Start is the first key to consider. Nil starts at the table boundary.
	Start []byte

	// Match reports whether a value satisfies the condition.
	Match func(V) bool

	// MatchOriginal evaluates Match on the original value of every row
	// instead of once per run of equal encoded values. Mismatching rows are
	// stepped over; Skip and Stop do not apply to them.
	MatchOriginal bool

	// Skip reports whether a non-matching value should be stepped over
	// without applying Stop. Nil never skips.
	Skip func(V) bool

	// Stop applies to mismatches that are not skipped.
	Stop Stop

	// Parse splits composite keys of Table.
	Parse func(key []byte) (keycodec.Parsed[V], error)
}

func (c *Config[V]) validate() error {
	if err := errs.CheckInstant("instant", c.Instant); err != nil {
		return err
	}
	if c.Match == nil || c.Parse == nil {
		return errors.New("scan: config needs Match and Parse")
	}
	return nil
}

// Entry is one admitted row.
type Entry[V any] struct {
	// Value is the value as written.
	Value V
	// Entity is the entity key.
	Entity string
}

// Stats reports the work a scan did.
type Stats struct {
	Visited  int
	Matched  int
	Admitted int
}

// Run walks cfg.Table inside tx and calls emit for every admitted entry in
// walk order. emit returning false ends the walk early. A missing table
// yields no entries.
//
// Consecutive keys with the same encoded value are evaluated once. Within
// such a run each entity is admitted at most once, which collapses
// case-folded keys whose original spellings differ.
func Run[V any](tx kv.Txn, cfg Config[V], emit func(Entry[V]) bool) (Stats, error) {
	var stats Stats
	if err := cfg.validate(); err != nil {
		return stats, err
	}

	tbl, err := tx.OpenTable(cfg.Table)
	if errors.Is(err, kv.ErrTableNotFound) {
		return stats, nil
	}
	if err != nil {
		return stats, err
	}
	c, err := tbl.Cursor()
	if err != nil {
		return stats, err
	}
	defer c.Close()

	var (
		group    []byte
		started  bool
		matched  bool
		admitted = make(map[string]struct{})
	)
	for ok := cfg.Direction.seek(c, cfg.Start); ok; ok = cfg.Direction.advance(c) {
		stats.Visited++
		p, err := cfg.Parse(c.Key())
		if err != nil {
			return stats, fmt.Errorf("scan %s: %w", cfg.Table, err)
		}

		if !started || !bytes.Equal(p.Raw, group) {
			started = true
			group = append(group[:0], p.Raw...)
			clear(admitted)
			if cfg.MatchOriginal {
				matched = true
			} else {
				matched = cfg.Match(p.Value)
			}
			if !matched {
				if cfg.Skip != nil && cfg.Skip(p.Value) {
					continue
				}
				if cfg.Stop == StopAtFirstMismatch {
					break
				}
				continue
			}
		} else if !matched {
			continue
		}
		if cfg.MatchOriginal && !cfg.Match(p.Original) {
			continue
		}

		stats.Matched++
		if _, dup := admitted[p.Entity]; dup {
			continue
		}
		packed, err := c.Value()
		if err != nil {
			return stats, err
		}
		valid, err := validAt(packed, cfg.Instant, cfg.Mode)
		if err != nil {
			return stats, fmt.Errorf("scan %s key %x: %w", cfg.Table, c.Key(), err)
		}
		if !valid {
			continue
		}
		admitted[p.Entity] = struct{}{}
		stats.Admitted++
		if !emit(Entry[V]{Value: p.Original, Entity: p.Entity}) {
			return stats, nil
		}
	}
	return stats, c.Err()
}

// Collect runs the scan and returns all admitted entries.
func Collect[V any](tx kv.Txn, cfg Config[V]) ([]Entry[V], Stats, error) {
	var out []Entry[V]
	stats, err := Run(tx, cfg, func(e Entry[V]) bool {
		out = append(out, e)
		return true
	})
	return out, stats, err
}

func validAt(packed []byte, instant int64, mode Mode) (bool, error) {
	if mode == ModeLatestClosedBefore {
		_, ok, err := interval.LatestClosedBefore(packed, instant)
		return ok, err
	}
	return interval.ContainsInstant(packed, instant)
}
