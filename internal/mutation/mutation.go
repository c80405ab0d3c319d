// Package mutation implements insert, terminate and rollback on indexed
// cells.
//
// A cell is one table row whose key is a composite key and whose value is a
// packed interval list. The functions here are codec-agnostic: callers pass
// fully encoded keys. Every function runs inside the caller's write
// transaction and performs no locking.
package mutation

import (
	"fmt"

	"github.com/hupe1980/tindex/internal/errs"
	"github.com/hupe1980/tindex/internal/interval"
	"github.com/hupe1980/tindex/kv"
)

// Load returns the decoded interval list of a cell. found is false if the
// cell does not exist.
func Load(tbl kv.Table, key []byte) (interval.List, bool, error) {
	packed, found, err := tbl.Get(key)
	if err != nil || !found {
		return nil, false, err
	}
	l, err := interval.Decode(packed)
	if err != nil {
		return nil, false, err
	}
	return l, true, nil
}

// Store writes l as the cell value, or deletes the row if l is empty.
func Store(tbl kv.Table, key []byte, l interval.List) error {
	if len(l) == 0 {
		return tbl.Delete(key)
	}
	return tbl.Put(key, interval.Encode(l))
}

// Insert opens the validity [validFrom, validTo) for a cell.
//
// A missing cell is created. If the last interval is still open the call is a
// no-op, so an entity never holds two open intervals for one value. Otherwise
// the interval is appended; it must not start before the last one ended.
func Insert(tbl kv.Table, key []byte, validFrom, validTo int64) error {
	if err := errs.CheckInstant("validFrom", validFrom); err != nil {
		return err
	}
	if validTo <= validFrom {
		return errs.Preconditionf("validTo %d must be after validFrom %d", validTo, validFrom)
	}

	packed, found, err := tbl.Get(key)
	if err != nil {
		return err
	}
	if !found {
		return tbl.Put(key, interval.Encode(interval.List{{Lower: validFrom, Upper: validTo}}))
	}

	l, err := interval.Decode(packed)
	if err != nil {
		return err
	}
	last, ok := l.Last()
	if !ok {
		return errs.Invariantf("empty interval list stored for key %x", key)
	}
	if last.IsOpen() {
		return nil
	}
	if validFrom < last.Upper {
		return errs.Preconditionf("validFrom %d overlaps interval %s", validFrom, last)
	}
	return tbl.Put(key, interval.AppendInterval(packed, interval.Interval{Lower: validFrom, Upper: validTo}))
}

// Terminate closes the open validity of a cell at instant and reports whether
// the table changed.
//
// Without a cell the value is treated as inherited from an ancestor timeline:
// the history [assumedLower, instant) is synthesized. If the last interval
// starts at or after instant the cell is deleted outright instead of storing
// an empty interval. An already closed last interval is left alone.
func Terminate(tbl kv.Table, key []byte, instant, assumedLower int64) (bool, error) {
	if err := errs.CheckInstant("instant", instant); err != nil {
		return false, err
	}

	packed, found, err := tbl.Get(key)
	if err != nil {
		return false, err
	}
	if !found {
		if err := errs.CheckInstant("assumedLower", assumedLower); err != nil {
			return false, err
		}
		switch {
		case assumedLower > instant:
			return false, errs.Preconditionf("assumed lower bound %d is after instant %d", assumedLower, instant)
		case assumedLower == instant:
			return false, nil
		}
		return true, tbl.Put(key, interval.Encode(interval.List{{Lower: assumedLower, Upper: instant}}))
	}

	l, err := interval.Decode(packed)
	if err != nil {
		return false, err
	}
	last, ok := l.Last()
	if !ok {
		return false, errs.Invariantf("empty interval list stored for key %x", key)
	}
	switch {
	case last.Lower >= instant:
		return true, tbl.Delete(key)
	case !last.IsOpen():
		return false, nil
	}
	l[len(l)-1].Upper = instant
	return true, tbl.Put(key, interval.Encode(l))
}

// Truncate rewrites l as it looked at instant: intervals starting after
// instant are dropped and the closed interval containing instant, if any, is
// reopened. The input is not modified.
func Truncate(l interval.List, instant int64) (interval.List, error) {
	out := make(interval.List, 0, len(l))
	reopened := false
	for _, iv := range l {
		switch {
		case iv.Lower > instant:
			// starts in the discarded future
		case iv.IsOpen(), iv.Upper <= instant:
			out = append(out, iv)
		default:
			if reopened {
				return nil, errs.Invariantf("more than one interval of %s contains %d", l, instant)
			}
			reopened = true
			out = append(out, interval.Open(iv.Lower))
		}
	}
	if len(out) > 0 {
		if err := interval.Validate(out); err != nil {
			return nil, fmt.Errorf("truncate %s at %d: %w", l, instant, err)
		}
	}
	return out, nil
}

// KeyFilter selects the cells a rollback touches.
type KeyFilter func(key []byte) (bool, error)

// RollbackStats summarizes a rollback over one table.
type RollbackStats struct {
	Scanned   int
	Rewritten int
	Deleted   int
}

// Rollback truncates every selected cell of tbl to its state at instant.
// A nil filter selects all cells. Cells left without intervals are deleted.
func Rollback(tbl kv.Table, instant int64, filter KeyFilter) (RollbackStats, error) {
	var stats RollbackStats
	if err := errs.CheckInstant("instant", instant); err != nil {
		return stats, err
	}

	type change struct {
		key []byte
		l   interval.List
	}
	var changes []change

	c, err := tbl.Cursor()
	if err != nil {
		return stats, err
	}
	for ok := c.First(); ok; ok = c.Next() {
		key := c.Key()
		if filter != nil {
			keep, err := filter(key)
			if err != nil {
				_ = c.Close()
				return stats, err
			}
			if !keep {
				continue
			}
		}
		stats.Scanned++

		packed, err := c.Value()
		if err != nil {
			_ = c.Close()
			return stats, err
		}
		l, err := interval.Decode(packed)
		if err != nil {
			_ = c.Close()
			return stats, fmt.Errorf("rollback %x: %w", key, err)
		}
		t, err := Truncate(l, instant)
		if err != nil {
			_ = c.Close()
			return stats, err
		}
		if !t.Equal(l) {
			changes = append(changes, change{key: append([]byte(nil), key...), l: t})
		}
	}
	if err := c.Err(); err != nil {
		_ = c.Close()
		return stats, err
	}
	if err := c.Close(); err != nil {
		return stats, err
	}

	for _, ch := range changes {
		if err := Store(tbl, ch.key, ch.l); err != nil {
			return stats, err
		}
		if len(ch.l) == 0 {
			stats.Deleted++
		} else {
			stats.Rewritten++
		}
	}
	return stats, nil
}
