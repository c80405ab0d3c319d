// Package sqlitekv implements kv.Store on SQLite using the pure Go
// modernc.org/sqlite driver.
//
// Every table lives in a single rows relation keyed by (tbl, k). SQLite
// compares BLOBs with memcmp and then by length, which is bytes.Compare
// order, so cursors map directly onto ORDER BY k queries.
package sqlitekv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/tindex/kv"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

const schema = `
CREATE TABLE IF NOT EXISTS tables (
	name BLOB PRIMARY KEY
) WITHOUT ROWID;
CREATE TABLE IF NOT EXISTS rows (
	tbl BLOB NOT NULL,
	k   BLOB NOT NULL,
	v   BLOB,
	PRIMARY KEY (tbl, k)
) WITHOUT ROWID;
`

// Config configures a SQLite backed store.
type Config struct {
	// Path is the database file. Empty or ":memory:" opens a private
	// in-memory database.
	Path string

	// SyncWrites selects PRAGMA synchronous=FULL instead of NORMAL.
	SyncWrites bool
}

// Store is a kv.Store on a SQLite database.
type Store struct {
	mu     sync.Mutex
	db     *sql.DB
	closed bool
}

// Open opens or creates the database and its schema.
func Open(cfg Config) (*Store, error) {
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlitekv: open %s: %w", path, err)
	}
	// One connection keeps :memory: databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	mode := "NORMAL"
	if cfg.SyncWrites {
		mode = "FULL"
	}
	pragmas := "PRAGMA synchronous = " + mode + ";"
	if path != ":memory:" {
		pragmas = "PRAGMA journal_mode = WAL; " + pragmas
	}
	if _, err := db.Exec(pragmas); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlitekv: set pragmas: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlitekv: init schema: %w", err)
	}
	return &Store{db: db}, nil
}

// DB exposes the underlying database handle.
func (s *Store) DB() *sql.DB { return s.db }

// View runs fn in a transaction that is always rolled back.
func (s *Store) View(ctx context.Context, fn func(kv.Txn) error) error {
	return s.run(ctx, false, fn)
}

// Update runs fn in a transaction committed when fn returns nil.
func (s *Store) Update(ctx context.Context, fn func(kv.Txn) error) error {
	return s.run(ctx, true, fn)
}

func (s *Store) run(ctx context.Context, writable bool, fn func(kv.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return kv.ErrClosed
	}

	stx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlitekv: begin: %w", err)
	}
	t := &txn{ctx: ctx, stx: stx, writable: writable}
	if err := fn(t); err != nil {
		_ = stx.Rollback()
		return err
	}
	if !writable {
		return stx.Rollback()
	}
	if err := stx.Commit(); err != nil {
		return fmt.Errorf("sqlitekv: commit: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// blob maps nil to an empty BLOB so it never binds as NULL.
func blob(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}

type txn struct {
	ctx      context.Context
	stx      *sql.Tx
	writable bool
}

func (t *txn) Writable() bool { return t.writable }

func (t *txn) exists(name string) (bool, error) {
	var one int
	err := t.stx.QueryRowContext(t.ctx, `SELECT 1 FROM tables WHERE name = ?`, []byte(name)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (t *txn) OpenTable(name string) (kv.Table, error) {
	ok, err := t.exists(name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, kv.ErrTableNotFound
	}
	return &table{name: name, id: blob([]byte(name)), txn: t}, nil
}

func (t *txn) CreateTable(name string) (kv.Table, error) {
	ok, err := t.exists(name)
	if err != nil {
		return nil, err
	}
	if !ok {
		if !t.writable {
			return nil, kv.ErrReadOnly
		}
		if _, err := t.stx.ExecContext(t.ctx, `INSERT INTO tables (name) VALUES (?)`, blob([]byte(name))); err != nil {
			return nil, err
		}
	}
	return &table{name: name, id: blob([]byte(name)), txn: t}, nil
}

func (t *txn) DropTable(name string) error {
	if !t.writable {
		return kv.ErrReadOnly
	}
	id := blob([]byte(name))
	if _, err := t.stx.ExecContext(t.ctx, `DELETE FROM rows WHERE tbl = ?`, id); err != nil {
		return err
	}
	_, err := t.stx.ExecContext(t.ctx, `DELETE FROM tables WHERE name = ?`, id)
	return err
}

func (t *txn) Tables(prefix string) ([]string, error) {
	lo := blob([]byte(prefix))
	var (
		rows *sql.Rows
		err  error
	)
	if hi := prefixEnd(lo); hi != nil {
		rows, err = t.stx.QueryContext(t.ctx, `SELECT name FROM tables WHERE name >= ? AND name < ? ORDER BY name`, lo, hi)
	} else {
		rows, err = t.stx.QueryContext(t.ctx, `SELECT name FROM tables WHERE name >= ? ORDER BY name`, lo)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name []byte
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, string(name))
	}
	return names, rows.Err()
}

func prefixEnd(p []byte) []byte {
	end := append([]byte(nil), p...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xFF {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

type table struct {
	name string
	id   []byte
	txn  *txn
}

func (t *table) Name() string { return t.name }

func (t *table) Get(key []byte) ([]byte, bool, error) {
	var v []byte
	err := t.txn.stx.QueryRowContext(t.txn.ctx, `SELECT v FROM rows WHERE tbl = ? AND k = ?`, t.id, blob(key)).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (t *table) Put(key, value []byte) error {
	if !t.txn.writable {
		return kv.ErrReadOnly
	}
	_, err := t.txn.stx.ExecContext(t.txn.ctx, `INSERT OR REPLACE INTO rows (tbl, k, v) VALUES (?, ?, ?)`, t.id, blob(key), blob(value))
	return err
}

func (t *table) Delete(key []byte) error {
	if !t.txn.writable {
		return kv.ErrReadOnly
	}
	_, err := t.txn.stx.ExecContext(t.txn.ctx, `DELETE FROM rows WHERE tbl = ? AND k = ?`, t.id, blob(key))
	return err
}

func (t *table) Cursor() (kv.Cursor, error) {
	return &cursor{table: t}, nil
}

const (
	qFirst = `SELECT k, v FROM rows WHERE tbl = ? ORDER BY k ASC LIMIT 1`
	qLast  = `SELECT k, v FROM rows WHERE tbl = ? ORDER BY k DESC LIMIT 1`
	qCeil  = `SELECT k, v FROM rows WHERE tbl = ? AND k >= ? ORDER BY k ASC LIMIT 1`
	qFloor = `SELECT k, v FROM rows WHERE tbl = ? AND k <= ? ORDER BY k DESC LIMIT 1`
	qNext  = `SELECT k, v FROM rows WHERE tbl = ? AND k > ? ORDER BY k ASC LIMIT 1`
	qPrev  = `SELECT k, v FROM rows WHERE tbl = ? AND k < ? ORDER BY k DESC LIMIT 1`
)

// cursor issues one single-row query per move.
type cursor struct {
	table *table
	key   []byte
	value []byte
	valid bool
	err   error
}

func (c *cursor) load(query string, args ...any) bool {
	c.valid = false
	c.key, c.value = nil, nil
	if c.err != nil {
		return false
	}
	args = append([]any{c.table.id}, args...)
	err := c.table.txn.stx.QueryRowContext(c.table.txn.ctx, query, args...).Scan(&c.key, &c.value)
	if errors.Is(err, sql.ErrNoRows) {
		return false
	}
	if err != nil {
		c.err = err
		return false
	}
	if c.key == nil {
		c.key = []byte{}
	}
	c.valid = true
	return true
}

func (c *cursor) First() bool { return c.load(qFirst) }

func (c *cursor) Last() bool { return c.load(qLast) }

func (c *cursor) Ceil(key []byte) bool { return c.load(qCeil, blob(key)) }

func (c *cursor) Floor(key []byte) bool { return c.load(qFloor, blob(key)) }

func (c *cursor) Next() bool {
	if !c.valid {
		return false
	}
	return c.load(qNext, c.key)
}

func (c *cursor) Prev() bool {
	if !c.valid {
		return false
	}
	return c.load(qPrev, c.key)
}

func (c *cursor) Key() []byte {
	if !c.valid {
		return nil
	}
	return c.key
}

func (c *cursor) Value() ([]byte, error) {
	if !c.valid {
		return nil, c.err
	}
	return c.value, nil
}

func (c *cursor) Err() error { return c.err }

func (c *cursor) Close() error {
	c.valid = false
	return nil
}
