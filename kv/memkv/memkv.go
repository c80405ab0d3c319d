// Package memkv implements kv.Store in memory on copy-on-write B-trees.
//
// Update clones every table tree (an O(1) lazy copy) and swaps the clones in
// on commit, so a failed callback leaves the committed state untouched.
// Writers are exclusive; readers share the committed state.
package memkv

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/btree"
	"github.com/hupe1980/tindex/kv"
)

// DefaultDegree is the B-tree degree used when none is configured.
const DefaultDegree = 32

type item struct {
	key   []byte
	value []byte
}

func less(a, b item) bool {
	return bytes.Compare(a.key, b.key) < 0
}

type tree = btree.BTreeG[item]

// Store is an in-memory kv.Store.
type Store struct {
	mu     sync.RWMutex
	tables map[string]*tree
	degree int
	closed bool
}

// Option configures a Store.
type Option func(*Store)

// WithDegree sets the B-tree degree of newly created tables.
func WithDegree(degree int) Option {
	return func(s *Store) {
		if degree >= 2 {
			s.degree = degree
		}
	}
}

// New creates an empty in-memory store.
func New(opts ...Option) *Store {
	s := &Store{
		tables: make(map[string]*tree),
		degree: DefaultDegree,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// View runs fn against the committed state.
func (s *Store) View(ctx context.Context, fn func(kv.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return kv.ErrClosed
	}
	return fn(&txn{store: s, tables: s.tables})
}

// Update runs fn against private clones of all tables and publishes them if
// fn succeeds.
func (s *Store) Update(ctx context.Context, fn func(kv.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return kv.ErrClosed
	}

	working := make(map[string]*tree, len(s.tables))
	for name, t := range s.tables {
		working[name] = t.Clone()
	}
	tx := &txn{store: s, tables: working, writable: true}
	if err := fn(tx); err != nil {
		return err
	}
	s.tables = working
	return nil
}

// Close drops all data.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.tables = nil
	return nil
}

type txn struct {
	store    *Store
	tables   map[string]*tree
	writable bool
}

func (t *txn) Writable() bool { return t.writable }

func (t *txn) OpenTable(name string) (kv.Table, error) {
	tr, ok := t.tables[name]
	if !ok {
		return nil, kv.ErrTableNotFound
	}
	return &table{name: name, tree: tr, writable: t.writable}, nil
}

func (t *txn) CreateTable(name string) (kv.Table, error) {
	if tr, ok := t.tables[name]; ok {
		return &table{name: name, tree: tr, writable: t.writable}, nil
	}
	if !t.writable {
		return nil, kv.ErrReadOnly
	}
	tr := btree.NewG[item](t.store.degree, less)
	t.tables[name] = tr
	return &table{name: name, tree: tr, writable: true}, nil
}

func (t *txn) DropTable(name string) error {
	if !t.writable {
		return kv.ErrReadOnly
	}
	delete(t.tables, name)
	return nil
}

func (t *txn) Tables(prefix string) ([]string, error) {
	var names []string
	for name := range t.tables {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, nil
}

type table struct {
	name     string
	tree     *tree
	writable bool
}

func (t *table) Name() string { return t.name }

func (t *table) Get(key []byte) ([]byte, bool, error) {
	it, ok := t.tree.Get(item{key: key})
	if !ok {
		return nil, false, nil
	}
	return bytes.Clone(it.value), true, nil
}

func (t *table) Put(key, value []byte) error {
	if !t.writable {
		return kv.ErrReadOnly
	}
	t.tree.ReplaceOrInsert(item{key: bytes.Clone(key), value: bytes.Clone(value)})
	return nil
}

func (t *table) Delete(key []byte) error {
	if !t.writable {
		return kv.ErrReadOnly
	}
	t.tree.Delete(item{key: key})
	return nil
}

func (t *table) Cursor() (kv.Cursor, error) {
	return &cursor{tree: t.tree}, nil
}

// cursor re-seeks the tree on every move, which keeps it valid while the
// owning transaction mutates the table.
type cursor struct {
	tree  *tree
	cur   item
	valid bool
}

func (c *cursor) set(it item, ok bool) bool {
	c.cur, c.valid = it, ok
	return ok
}

func (c *cursor) First() bool {
	return c.set(c.tree.Min())
}

func (c *cursor) Last() bool {
	return c.set(c.tree.Max())
}

func (c *cursor) Ceil(key []byte) bool {
	var found item
	ok := false
	c.tree.AscendGreaterOrEqual(item{key: key}, func(it item) bool {
		found, ok = it, true
		return false
	})
	return c.set(found, ok)
}

func (c *cursor) Floor(key []byte) bool {
	var found item
	ok := false
	c.tree.DescendLessOrEqual(item{key: key}, func(it item) bool {
		found, ok = it, true
		return false
	})
	return c.set(found, ok)
}

func (c *cursor) Next() bool {
	if !c.valid {
		return false
	}
	var found item
	ok := false
	c.tree.AscendGreaterOrEqual(c.cur, func(it item) bool {
		if bytes.Equal(it.key, c.cur.key) {
			return true
		}
		found, ok = it, true
		return false
	})
	return c.set(found, ok)
}

func (c *cursor) Prev() bool {
	if !c.valid {
		return false
	}
	var found item
	ok := false
	c.tree.DescendLessOrEqual(c.cur, func(it item) bool {
		if bytes.Equal(it.key, c.cur.key) {
			return true
		}
		found, ok = it, true
		return false
	})
	return c.set(found, ok)
}

func (c *cursor) Key() []byte {
	if !c.valid {
		return nil
	}
	return c.cur.key
}

func (c *cursor) Value() ([]byte, error) {
	if !c.valid {
		return nil, nil
	}
	return c.cur.value, nil
}

func (c *cursor) Err() error { return nil }

func (c *cursor) Close() error {
	c.valid = false
	return nil
}
