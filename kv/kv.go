// Package kv defines the ordered, byte-keyed storage the index engine runs on.
//
// A Store hosts any number of named tables. Each table maps byte keys to byte
// values and is ordered by bytes.Compare. All access happens inside a
// transaction: View for read-only work, Update for read-write work. Update
// commits when the callback returns nil and discards every change otherwise.
//
// # Implementations
//
//   - memkv: in-memory, copy-on-write B-trees (github.com/google/btree)
//   - badgerkv: BadgerDB, persistent or in-memory (github.com/dgraph-io/badger/v4)
//   - sqlitekv: SQLite via modernc.org/sqlite
//
// Transactions are not safe for concurrent use. A Cursor belongs to the
// transaction that created it and must be closed before the callback returns.
package kv

import (
	"context"
	"errors"
)

var (
	// ErrTableNotFound is returned by OpenTable when the table does not exist.
	ErrTableNotFound = errors.New("kv: table not found")

	// ErrReadOnly is returned when a write is attempted in a View transaction.
	ErrReadOnly = errors.New("kv: transaction is read-only")

	// ErrClosed is returned when the store has been closed.
	ErrClosed = errors.New("kv: store closed")
)

// Store is an ordered key-value store with named tables.
type Store interface {
	// View runs fn in a read-only transaction.
	View(ctx context.Context, fn func(Txn) error) error

	// Update runs fn in a read-write transaction and commits if fn returns nil.
	Update(ctx context.Context, fn func(Txn) error) error

	// Close releases all resources held by the store.
	Close() error
}

// Txn is a transaction on a Store.
type Txn interface {
	// Writable reports whether the transaction accepts writes.
	Writable() bool

	// OpenTable returns an existing table or ErrTableNotFound.
	OpenTable(name string) (Table, error)

	// CreateTable returns the named table, creating it if necessary.
	CreateTable(name string) (Table, error)

	// DropTable removes a table and all its rows. Dropping a missing table is
	// a no-op.
	DropTable(name string) error

	// Tables returns the names of all tables starting with prefix, sorted.
	Tables(prefix string) ([]string, error)
}

// Table is an ordered map of byte keys to byte values.
type Table interface {
	// Name returns the table name.
	Name() string

	// Get returns the value stored under key. found is false if the key does
	// not exist. The returned slice may be retained by the caller.
	Get(key []byte) (value []byte, found bool, err error)

	// Put stores value under key.
	Put(key, value []byte) error

	// Delete removes key. Deleting a missing key is a no-op.
	Delete(key []byte) error

	// Cursor returns a new cursor over the table. It is not positioned.
	Cursor() (Cursor, error)
}

// Cursor walks a table in key order.
//
// Positioning methods return false when no entry qualifies; the cursor is then
// invalid until positioned again.
type Cursor interface {
	// First positions on the smallest key.
	First() bool

	// Last positions on the largest key.
	Last() bool

	// Ceil positions on the smallest key >= key.
	Ceil(key []byte) bool

	// Floor positions on the largest key <= key.
	Floor(key []byte) bool

	// Next moves to the next larger key.
	Next() bool

	// Prev moves to the next smaller key.
	Prev() bool

	// Key returns the current key. The slice is valid until the cursor moves.
	Key() []byte

	// Value returns the value of the current key. The slice is valid until
	// the cursor moves.
	Value() ([]byte, error)

	// Err returns the first error a positioning method ran into. A method
	// that fails returns false.
	Err() error

	// Close releases the cursor.
	Close() error
}
