package index

import (
	"errors"
	"fmt"
	"iter"
	"slices"
	"strconv"
	"strings"

	"github.com/hupe1980/tindex/internal/errs"
	"github.com/hupe1980/tindex/internal/interval"
	"github.com/hupe1980/tindex/internal/keycodec"
	"github.com/hupe1980/tindex/internal/mutation"
	"github.com/hupe1980/tindex/internal/scan"
	"github.com/hupe1980/tindex/kv"
	"github.com/hupe1980/tindex/query"
)

// typed implements Store for one value type. Type specifics are plugged in
// as codecs and functions.
type typed[V any] struct {
	id   string
	kind query.Kind
	opts Options

	codec   keycodec.Codec[V]
	compare func(a, b V) int
	convert func(query.Value) (V, error)
	wrap    func(V) query.Value
	text    func(V) string

	// band returns the closed range equal to v under tolerance tol. Nil
	// means exact equality.
	band func(v V, tol float64) (V, V)

	// Text only.
	folded      keycodec.Codec[V]
	fold        func(V) V
	prefixStart func(V) []byte
}

func (s *typed[V]) ID() string { return s.id }

func (s *typed[V]) Kind() query.Kind { return s.kind }

// cell is one physical location of a (value, entity) pair.
type cell struct {
	table string
	key   []byte
}

func (s *typed[V]) cells(keyspace string, v V, entity string) []cell {
	cs := []cell{{
		table: keycodec.TableName{Keyspace: keyspace, IndexID: s.id}.String(),
		key:   s.codec.Key(v, entity),
	}}
	if s.folded != nil {
		cs = append(cs, cell{
			table: keycodec.TableName{Keyspace: keyspace, IndexID: s.id, Folded: true}.String(),
			key:   s.folded.Key(v, entity),
		})
	}
	return cs
}

func (s *typed[V]) Insert(tx kv.Txn, keyspace string, value query.Value, entity string, from, to int64) error {
	v, err := s.convert(value)
	if err != nil {
		return err
	}
	for _, c := range s.cells(keyspace, v, entity) {
		tbl, err := tx.CreateTable(c.table)
		if err != nil {
			return err
		}
		if err := mutation.Insert(tbl, c.key, from, to); err != nil {
			return err
		}
	}
	return nil
}

func (s *typed[V]) Terminate(tx kv.Txn, keyspace string, value query.Value, entity string, instant, assumedLower int64) (bool, error) {
	v, err := s.convert(value)
	if err != nil {
		return false, err
	}
	changed := false
	for _, c := range s.cells(keyspace, v, entity) {
		tbl, err := tx.CreateTable(c.table)
		if err != nil {
			return false, err
		}
		ok, err := mutation.Terminate(tbl, c.key, instant, assumedLower)
		if err != nil {
			return false, err
		}
		changed = changed || ok
	}
	return changed, nil
}

func (s *typed[V]) Load(tx kv.Txn, keyspace string, value query.Value, entity string) (interval.List, bool, error) {
	v, err := s.convert(value)
	if err != nil {
		return nil, false, err
	}
	c := s.cells(keyspace, v, entity)[0]
	tbl, err := tx.OpenTable(c.table)
	if errors.Is(err, kv.ErrTableNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return mutation.Load(tbl, c.key)
}

func (s *typed[V]) Put(tx kv.Txn, keyspace string, value query.Value, entity string, l interval.List) error {
	if len(l) > 0 {
		if err := interval.Validate(l); err != nil {
			return errs.Preconditionf("intervals %s: %v", l, err)
		}
	}
	v, err := s.convert(value)
	if err != nil {
		return err
	}
	for _, c := range s.cells(keyspace, v, entity) {
		tbl, err := tx.CreateTable(c.table)
		if err != nil {
			return err
		}
		if err := mutation.Store(tbl, c.key, l); err != nil {
			return err
		}
	}
	return nil
}

func (s *typed[V]) Delete(tx kv.Txn, keyspace string, value query.Value, entity string) error {
	v, err := s.convert(value)
	if err != nil {
		return err
	}
	for _, c := range s.cells(keyspace, v, entity) {
		tbl, err := tx.OpenTable(c.table)
		if errors.Is(err, kv.ErrTableNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if err := tbl.Delete(c.key); err != nil {
			return err
		}
	}
	return nil
}

// tables lists the physical tables of this index across all keyspaces.
func (s *typed[V]) tables(tx kv.Txn) ([]keycodec.TableName, error) {
	names, err := tx.Tables(keycodec.TablePrefix)
	if err != nil {
		return nil, err
	}
	var out []keycodec.TableName
	for _, name := range names {
		tn, err := keycodec.ParseTableName(name)
		if err != nil {
			return nil, err
		}
		if tn.IndexID == s.id {
			out = append(out, tn)
		}
	}
	return out, nil
}

func (s *typed[V]) Keyspaces(tx kv.Txn) ([]string, error) {
	tns, err := s.tables(tx)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, tn := range tns {
		if !tn.Folded {
			out = append(out, tn.Keyspace)
		}
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

func (s *typed[V]) codecFor(tn keycodec.TableName) keycodec.Codec[V] {
	if tn.Folded {
		return s.folded
	}
	return s.codec
}

func (s *typed[V]) Rollback(tx kv.Txn, instant int64, entities []string) (mutation.RollbackStats, error) {
	var total mutation.RollbackStats
	if err := errs.CheckInstant("instant", instant); err != nil {
		return total, err
	}
	tns, err := s.tables(tx)
	if err != nil {
		return total, err
	}
	for _, tn := range tns {
		if tn.Folded && s.folded == nil {
			return total, errs.Invariantf("index %s of kind %s has folded table %s", s.id, s.kind, tn)
		}
		tbl, err := tx.OpenTable(tn.String())
		if err != nil {
			return total, err
		}
		var filter mutation.KeyFilter
		if len(entities) > 0 {
			codec := s.codecFor(tn)
			filter = func(key []byte) (bool, error) {
				p, err := codec.Parse(key)
				if err != nil {
					return false, err
				}
				return slices.Contains(entities, p.Entity), nil
			}
		}
		stats, err := mutation.Rollback(tbl, instant, filter)
		if err != nil {
			return total, fmt.Errorf("rollback %s: %w", tn, err)
		}
		total.Scanned += stats.Scanned
		total.Rewritten += stats.Rewritten
		total.Deleted += stats.Deleted
	}
	return total, nil
}

func (s *typed[V]) AllEntries(tx kv.Txn, keyspace string, fn Consumer) error {
	tns := []keycodec.TableName{{Keyspace: keyspace, IndexID: s.id}}
	if s.folded != nil {
		tns = append(tns, keycodec.TableName{Keyspace: keyspace, IndexID: s.id, Folded: true})
	}
	for _, tn := range tns {
		tbl, err := tx.OpenTable(tn.String())
		if errors.Is(err, kv.ErrTableNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if err := fn(tn, s.rows(tbl, s.codecFor(tn))); err != nil {
			return err
		}
	}
	return nil
}

func (s *typed[V]) rows(tbl kv.Table, codec keycodec.Codec[V]) iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		c, err := tbl.Cursor()
		if err != nil {
			yield(Row{}, err)
			return
		}
		defer c.Close()
		for ok := c.First(); ok; ok = c.Next() {
			p, err := codec.Parse(c.Key())
			if err != nil {
				yield(Row{}, err)
				return
			}
			packed, err := c.Value()
			if err != nil {
				yield(Row{}, err)
				return
			}
			l, err := interval.Decode(packed)
			if err != nil {
				yield(Row{}, fmt.Errorf("%s key %x: %w", tbl.Name(), c.Key(), err))
				return
			}
			if !yield(Row{Value: s.wrap(p.Original), Entity: p.Entity, Intervals: l}, nil) {
				return
			}
		}
		if err := c.Err(); err != nil {
			yield(Row{}, err)
		}
	}
}

func (s *typed[V]) Clear(tx kv.Txn) error {
	tns, err := s.tables(tx)
	if err != nil {
		return err
	}
	for _, tn := range tns {
		if err := tx.DropTable(tn.String()); err != nil {
			return err
		}
	}
	return nil
}

func (s *typed[V]) Scan(tx kv.Txn, spec query.Spec, keyspace string, instant int64, mode scan.Mode) (Result, error) {
	if err := spec.Validate(); err != nil {
		return Result{}, fmt.Errorf("%w: %w", errs.ErrPrecondition, err)
	}
	if err := errs.CheckInstant("instant", instant); err != nil {
		return Result{}, err
	}

	p, err := s.plan(spec)
	if err != nil {
		return Result{}, err
	}
	tn := keycodec.TableName{Keyspace: keyspace, IndexID: s.id, Folded: p.folded}

	var res Result
	seen := make(map[string]struct{})
	for _, cfg := range p.configs {
		cfg.Table = tn.String()
		cfg.Instant = instant
		cfg.Mode = mode
		cfg.Parse = p.codec.Parse
		stats, err := scan.Run(tx, cfg, func(e scan.Entry[V]) bool {
			entry := Entry{Value: s.wrap(e.Value), Entity: e.Entity}
			if p.dedup {
				k := dedupKey(s.text(s.foldIf(p.folded, e.Value)), e.Entity)
				if _, dup := seen[k]; dup {
					return true
				}
				seen[k] = struct{}{}
			}
			res.Entries = append(res.Entries, entry)
			return true
		})
		if err != nil {
			return Result{}, err
		}
		res.Stats.Visited += stats.Visited
		res.Stats.Matched += stats.Matched
		res.Stats.Admitted += stats.Admitted
	}
	res.Order = p.order
	return res, nil
}

func (s *typed[V]) foldIf(folded bool, v V) V {
	if folded && s.fold != nil {
		return s.fold(v)
	}
	return v
}

func dedupKey(value, entity string) string {
	var b strings.Builder
	b.Grow(len(value) + len(entity) + 8)
	b.WriteString(strconv.Itoa(len(value)))
	b.WriteByte(':')
	b.WriteString(value)
	b.WriteString(entity)
	return b.String()
}
