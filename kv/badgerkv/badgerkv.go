// Package badgerkv implements kv.Store on BadgerDB.
//
// All tables share one keyspace. Rows are stored under
//
//	'd' | uint16 len(table) | table | key
//
// and every table has an empty marker row 't' | table so that empty tables
// survive a restart.
package badgerkv

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/hupe1980/tindex/kv"
)

const (
	dataTag   = 'd'
	markerTag = 't'
)

// Config holds configuration for a BadgerDB backed store.
type Config struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps everything in memory.
	InMemory bool

	// SyncWrites fsyncs on every commit.
	SyncWrites bool

	// Logger receives BadgerDB's internal logging. Nil disables it.
	Logger *slog.Logger

	// GCInterval is how often value log GC runs. Zero disables GC.
	GCInterval time.Duration

	// GCDiscardRatio is the minimum garbage ratio that triggers a rewrite.
	GCDiscardRatio float64
}

// DefaultConfig returns production defaults for the database at path.
func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns a configuration suitable for tests.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// badgerLogger adapts slog.Logger to badger.Logger.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// Store is a kv.Store on a BadgerDB instance.
type Store struct {
	db *badger.DB
	gc *GCRunner
}

// Open opens or creates the database described by cfg.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("badgerkv: path is required for a persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("badgerkv: create directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badgerkv: open: %w", err)
	}

	s := &Store{db: db}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		runner, err := NewGCRunner(db, cfg.GCInterval, cfg.GCDiscardRatio, cfg.Logger)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		s.gc = runner
		runner.Start()
	}
	return s, nil
}

// DB exposes the underlying database.
func (s *Store) DB() *badger.DB { return s.db }

// View runs fn in a read-only badger transaction.
func (s *Store) View(ctx context.Context, fn func(kv.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	return translate(s.db.View(func(btx *badger.Txn) error {
		return fn(&txn{btx: btx})
	}))
}

// Update runs fn in a read-write badger transaction.
func (s *Store) Update(ctx context.Context, fn func(kv.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	return translate(s.db.Update(func(btx *badger.Txn) error {
		return fn(&txn{btx: btx, writable: true})
	}))
}

// Close stops garbage collection and closes the database.
func (s *Store) Close() error {
	if s.gc != nil {
		s.gc.Stop()
		s.gc = nil
	}
	if s.db.IsClosed() {
		return nil
	}
	return s.db.Close()
}

func translate(err error) error {
	if errors.Is(err, badger.ErrDBClosed) {
		return kv.ErrClosed
	}
	return err
}

func tablePrefix(name string) []byte {
	p := make([]byte, 0, 3+len(name))
	p = append(p, dataTag)
	p = binary.BigEndian.AppendUint16(p, uint16(len(name)))
	return append(p, name...)
}

func markerKey(name string) []byte {
	return append([]byte{markerTag}, name...)
}

// prefixEnd returns the smallest key greater than every key starting with p.
func prefixEnd(p []byte) []byte {
	end := bytes.Clone(p)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xFF {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

type txn struct {
	btx      *badger.Txn
	writable bool
}

func (t *txn) Writable() bool { return t.writable }

func (t *txn) exists(name string) (bool, error) {
	_, err := t.btx.Get(markerKey(name))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (t *txn) table(name string) *table {
	return &table{name: name, txn: t, prefix: tablePrefix(name)}
}

func (t *txn) OpenTable(name string) (kv.Table, error) {
	ok, err := t.exists(name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, kv.ErrTableNotFound
	}
	return t.table(name), nil
}

func (t *txn) CreateTable(name string) (kv.Table, error) {
	if len(name) > math.MaxUint16 {
		return nil, fmt.Errorf("badgerkv: table name too long (%d bytes)", len(name))
	}
	ok, err := t.exists(name)
	if err != nil {
		return nil, err
	}
	if !ok {
		if !t.writable {
			return nil, kv.ErrReadOnly
		}
		if err := t.btx.Set(markerKey(name), nil); err != nil {
			return nil, err
		}
	}
	return t.table(name), nil
}

func (t *txn) DropTable(name string) error {
	if !t.writable {
		return kv.ErrReadOnly
	}
	prefix := tablePrefix(name)
	var keys [][]byte
	it := t.btx.NewIterator(badger.IteratorOptions{Prefix: prefix})
	for it.Rewind(); it.Valid(); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	it.Close()
	for _, k := range keys {
		if err := t.btx.Delete(k); err != nil {
			return err
		}
	}
	return t.btx.Delete(markerKey(name))
}

func (t *txn) Tables(prefix string) ([]string, error) {
	p := markerKey(prefix)
	it := t.btx.NewIterator(badger.IteratorOptions{Prefix: p})
	defer it.Close()
	var names []string
	for it.Rewind(); it.Valid(); it.Next() {
		names = append(names, string(it.Item().Key()[1:]))
	}
	return names, nil
}

type table struct {
	name   string
	txn    *txn
	prefix []byte
}

func (t *table) Name() string { return t.name }

func (t *table) key(k []byte) []byte {
	full := make([]byte, 0, len(t.prefix)+len(k))
	return append(append(full, t.prefix...), k...)
}

func (t *table) Get(key []byte) ([]byte, bool, error) {
	item, err := t.txn.btx.Get(t.key(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	v, err := item.ValueCopy(nil)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (t *table) Put(key, value []byte) error {
	if !t.txn.writable {
		return kv.ErrReadOnly
	}
	if value == nil {
		value = []byte{}
	}
	return t.txn.btx.Set(t.key(key), bytes.Clone(value))
}

func (t *table) Delete(key []byte) error {
	if !t.txn.writable {
		return kv.ErrReadOnly
	}
	return t.txn.btx.Delete(t.key(key))
}

func (t *table) Cursor() (kv.Cursor, error) {
	return &cursor{table: t}, nil
}

// cursor owns at most one badger iterator at a time. Seeks and direction
// changes open a fresh iterator, so writes made earlier in the same
// transaction are visible after repositioning.
type cursor struct {
	table   *table
	it      *badger.Iterator
	reverse bool
	key     []byte
	valid   bool
}

func (c *cursor) open(reverse bool) {
	c.closeIterator()
	c.reverse = reverse
	c.it = c.table.txn.btx.NewIterator(badger.IteratorOptions{Reverse: reverse})
}

func (c *cursor) closeIterator() {
	if c.it != nil {
		c.it.Close()
		c.it = nil
	}
}

// settle records the iterator position, rejecting rows of other tables.
func (c *cursor) settle() bool {
	if !c.it.Valid() || !bytes.HasPrefix(c.it.Item().Key(), c.table.prefix) {
		c.valid = false
		c.key = nil
		return false
	}
	c.key = c.it.Item().KeyCopy(nil)[len(c.table.prefix):]
	c.valid = true
	return true
}

func (c *cursor) seekForward(target []byte, skipEqual bool) bool {
	c.open(false)
	c.it.Seek(target)
	if skipEqual && c.it.Valid() && bytes.Equal(c.it.Item().Key(), target) {
		c.it.Next()
	}
	return c.settle()
}

func (c *cursor) seekReverse(target []byte, skipEqual bool) bool {
	c.open(true)
	c.it.Seek(target)
	if skipEqual && c.it.Valid() && bytes.Equal(c.it.Item().Key(), target) {
		c.it.Next()
	}
	return c.settle()
}

func (c *cursor) First() bool {
	return c.seekForward(c.table.prefix, false)
}

func (c *cursor) Last() bool {
	return c.seekReverse(prefixEnd(c.table.prefix), true)
}

func (c *cursor) Ceil(key []byte) bool {
	return c.seekForward(c.table.key(key), false)
}

func (c *cursor) Floor(key []byte) bool {
	return c.seekReverse(c.table.key(key), false)
}

func (c *cursor) Next() bool {
	if !c.valid {
		return false
	}
	if c.reverse {
		return c.seekForward(c.table.key(c.key), true)
	}
	c.it.Next()
	return c.settle()
}

func (c *cursor) Prev() bool {
	if !c.valid {
		return false
	}
	if !c.reverse {
		return c.seekReverse(c.table.key(c.key), true)
	}
	c.it.Next()
	return c.settle()
}

func (c *cursor) Key() []byte {
	if !c.valid {
		return nil
	}
	return c.key
}

func (c *cursor) Value() ([]byte, error) {
	if !c.valid {
		return nil, nil
	}
	return c.it.Item().ValueCopy(nil)
}

func (c *cursor) Err() error { return nil }

func (c *cursor) Close() error {
	c.closeIterator()
	c.valid = false
	return nil
}
