// Package kvtest is a conformance suite for kv.Store implementations.
package kvtest

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/hupe1980/tindex/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NewStoreFunc creates an empty store. The suite closes it.
type NewStoreFunc func(t *testing.T) kv.Store

// Run executes the whole suite against stores created by newStore.
func Run(t *testing.T, newStore NewStoreFunc) {
	t.Run("PutGetDelete", func(t *testing.T) { testPutGetDelete(t, newStore(t)) })
	t.Run("UpdateErrorDiscards", func(t *testing.T) { testUpdateErrorDiscards(t, newStore(t)) })
	t.Run("ViewIsReadOnly", func(t *testing.T) { testViewIsReadOnly(t, newStore(t)) })
	t.Run("Tables", func(t *testing.T) { testTables(t, newStore(t)) })
	t.Run("CursorWalk", func(t *testing.T) { testCursorWalk(t, newStore(t)) })
	t.Run("CursorSeek", func(t *testing.T) { testCursorSeek(t, newStore(t)) })
	t.Run("CursorDirectionChange", func(t *testing.T) { testCursorDirectionChange(t, newStore(t)) })
	t.Run("CursorEmptyTable", func(t *testing.T) { testCursorEmptyTable(t, newStore(t)) })
	t.Run("TablesAreIsolated", func(t *testing.T) { testTablesAreIsolated(t, newStore(t)) })
	t.Run("DeleteWhileWalking", func(t *testing.T) { testDeleteWhileWalking(t, newStore(t)) })
}

var errAbort = errors.New("abort")

func fill(t *testing.T, s kv.Store, table string, keys ...string) {
	t.Helper()
	err := s.Update(context.Background(), func(tx kv.Txn) error {
		tbl, err := tx.CreateTable(table)
		if err != nil {
			return err
		}
		for _, k := range keys {
			if err := tbl.Put([]byte(k), []byte("v-"+k)); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func walk(t *testing.T, c kv.Cursor, ok bool, step func() bool) []string {
	t.Helper()
	var keys []string
	for ; ok; ok = step() {
		keys = append(keys, string(c.Key()))
	}
	require.NoError(t, c.Err())
	return keys
}

func view(t *testing.T, s kv.Store, table string, fn func(tbl kv.Table)) {
	t.Helper()
	err := s.View(context.Background(), func(tx kv.Txn) error {
		tbl, err := tx.OpenTable(table)
		if err != nil {
			return err
		}
		fn(tbl)
		return nil
	})
	require.NoError(t, err)
}

func testPutGetDelete(t *testing.T, s kv.Store) {
	defer s.Close()
	fill(t, s, "t", "a", "b")

	view(t, s, "t", func(tbl kv.Table) {
		v, found, err := tbl.Get([]byte("a"))
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, []byte("v-a"), v)

		_, found, err = tbl.Get([]byte("zzz"))
		require.NoError(t, err)
		assert.False(t, found)
	})

	err := s.Update(context.Background(), func(tx kv.Txn) error {
		tbl, err := tx.OpenTable("t")
		if err != nil {
			return err
		}
		if err := tbl.Delete([]byte("a")); err != nil {
			return err
		}
		if err := tbl.Delete([]byte("missing")); err != nil {
			return err
		}
		return tbl.Put([]byte("b"), []byte("new"))
	})
	require.NoError(t, err)

	view(t, s, "t", func(tbl kv.Table) {
		_, found, err := tbl.Get([]byte("a"))
		require.NoError(t, err)
		assert.False(t, found)

		v, _, err := tbl.Get([]byte("b"))
		require.NoError(t, err)
		assert.Equal(t, []byte("new"), v)
	})
}

func testUpdateErrorDiscards(t *testing.T, s kv.Store) {
	defer s.Close()
	fill(t, s, "t", "a")

	err := s.Update(context.Background(), func(tx kv.Txn) error {
		tbl, err := tx.OpenTable("t")
		if err != nil {
			return err
		}
		if err := tbl.Put([]byte("b"), []byte("x")); err != nil {
			return err
		}
		if err := tbl.Delete([]byte("a")); err != nil {
			return err
		}
		if _, err := tx.CreateTable("other"); err != nil {
			return err
		}
		return errAbort
	})
	require.ErrorIs(t, err, errAbort)

	view(t, s, "t", func(tbl kv.Table) {
		_, found, err := tbl.Get([]byte("a"))
		require.NoError(t, err)
		assert.True(t, found)
		_, found, err = tbl.Get([]byte("b"))
		require.NoError(t, err)
		assert.False(t, found)
	})

	err = s.View(context.Background(), func(tx kv.Txn) error {
		_, err := tx.OpenTable("other")
		return err
	})
	assert.ErrorIs(t, err, kv.ErrTableNotFound)
}

func testViewIsReadOnly(t *testing.T, s kv.Store) {
	defer s.Close()
	fill(t, s, "t", "a")

	err := s.View(context.Background(), func(tx kv.Txn) error {
		assert.False(t, tx.Writable())
		tbl, err := tx.OpenTable("t")
		require.NoError(t, err)
		assert.ErrorIs(t, tbl.Put([]byte("b"), nil), kv.ErrReadOnly)
		assert.ErrorIs(t, tbl.Delete([]byte("a")), kv.ErrReadOnly)
		_, err = tx.CreateTable("new")
		assert.ErrorIs(t, err, kv.ErrReadOnly)
		assert.ErrorIs(t, tx.DropTable("t"), kv.ErrReadOnly)
		_, err = tx.OpenTable("missing")
		assert.ErrorIs(t, err, kv.ErrTableNotFound)
		return nil
	})
	require.NoError(t, err)
}

func testTables(t *testing.T, s kv.Store) {
	defer s.Close()
	fill(t, s, "tix1:aidx", "k")
	fill(t, s, "tix1:bidx", "k")
	fill(t, s, "other", "k")

	err := s.Update(context.Background(), func(tx kv.Txn) error {
		assert.True(t, tx.Writable())
		names, err := tx.Tables("ti")
		require.NoError(t, err)
		assert.Equal(t, []string{"tix1:aidx", "tix1:bidx"}, names)

		all, err := tx.Tables("")
		require.NoError(t, err)
		assert.Len(t, all, 3)

		require.NoError(t, tx.DropTable("tix1:aidx"))
		require.NoError(t, tx.DropTable("never-existed"))
		return nil
	})
	require.NoError(t, err)

	err = s.View(context.Background(), func(tx kv.Txn) error {
		names, err := tx.Tables("ti")
		require.NoError(t, err)
		assert.Equal(t, []string{"tix1:bidx"}, names)
		_, err = tx.OpenTable("tix1:aidx")
		assert.ErrorIs(t, err, kv.ErrTableNotFound)
		return nil
	})
	require.NoError(t, err)

	// Recreating a dropped table starts empty.
	fill(t, s, "tix1:aidx")
	view(t, s, "tix1:aidx", func(tbl kv.Table) {
		c, err := tbl.Cursor()
		require.NoError(t, err)
		defer c.Close()
		assert.False(t, c.First())
	})
}

func testCursorWalk(t *testing.T, s kv.Store) {
	defer s.Close()
	fill(t, s, "t", "d", "b", "a", "c", "a\x00", "\xff")

	view(t, s, "t", func(tbl kv.Table) {
		c, err := tbl.Cursor()
		require.NoError(t, err)
		defer c.Close()

		assert.Equal(t, []string{"a", "a\x00", "b", "c", "d", "\xff"}, walk(t, c, c.First(), c.Next))
		assert.Equal(t, []string{"\xff", "d", "c", "b", "a\x00", "a"}, walk(t, c, c.Last(), c.Prev))

		require.True(t, c.First())
		v, err := c.Value()
		require.NoError(t, err)
		assert.Equal(t, []byte("v-a"), v)
	})
}

func testCursorSeek(t *testing.T, s kv.Store) {
	defer s.Close()
	fill(t, s, "t", "b", "d", "f")

	view(t, s, "t", func(tbl kv.Table) {
		c, err := tbl.Cursor()
		require.NoError(t, err)
		defer c.Close()

		tests := []struct {
			seek    string
			ceil    string
			ceilOK  bool
			floor   string
			floorOK bool
		}{
			{"a", "b", true, "", false},
			{"b", "b", true, "b", true},
			{"c", "d", true, "b", true},
			{"f", "f", true, "f", true},
			{"g", "", false, "f", true},
		}
		for _, tt := range tests {
			ok := c.Ceil([]byte(tt.seek))
			assert.Equal(t, tt.ceilOK, ok, fmt.Sprintf("ceil %q", tt.seek))
			if ok {
				assert.Equal(t, tt.ceil, string(c.Key()))
			}
			ok = c.Floor([]byte(tt.seek))
			assert.Equal(t, tt.floorOK, ok, fmt.Sprintf("floor %q", tt.seek))
			if ok {
				assert.Equal(t, tt.floor, string(c.Key()))
			}
		}

		assert.Equal(t, []string{"d", "f"}, walk(t, c, c.Ceil([]byte("c")), c.Next))
		assert.Equal(t, []string{"d", "b"}, walk(t, c, c.Floor([]byte("e")), c.Prev))
	})
}

func testCursorDirectionChange(t *testing.T, s kv.Store) {
	defer s.Close()
	fill(t, s, "t", "a", "b", "c", "d")

	view(t, s, "t", func(tbl kv.Table) {
		c, err := tbl.Cursor()
		require.NoError(t, err)
		defer c.Close()

		require.True(t, c.Ceil([]byte("b")))
		require.True(t, c.Next())
		assert.Equal(t, "c", string(c.Key()))
		require.True(t, c.Prev())
		assert.Equal(t, "b", string(c.Key()))
		require.True(t, c.Prev())
		assert.Equal(t, "a", string(c.Key()))
		assert.False(t, c.Prev())
		require.True(t, c.Last())
		assert.False(t, c.Next())
	})
}

func testCursorEmptyTable(t *testing.T, s kv.Store) {
	defer s.Close()
	fill(t, s, "t")

	view(t, s, "t", func(tbl kv.Table) {
		c, err := tbl.Cursor()
		require.NoError(t, err)
		defer c.Close()
		assert.False(t, c.First())
		assert.False(t, c.Last())
		assert.False(t, c.Ceil([]byte("a")))
		assert.False(t, c.Floor([]byte("a")))
	})
}

func testTablesAreIsolated(t *testing.T, s kv.Store) {
	defer s.Close()
	fill(t, s, "t1", "a", "b")
	fill(t, s, "t2", "c")
	fill(t, s, "t10", "0")

	view(t, s, "t1", func(tbl kv.Table) {
		c, err := tbl.Cursor()
		require.NoError(t, err)
		defer c.Close()
		assert.Equal(t, []string{"a", "b"}, walk(t, c, c.First(), c.Next))
		assert.Equal(t, []string{"b", "a"}, walk(t, c, c.Last(), c.Prev))
		assert.False(t, c.Ceil([]byte("c")))
		assert.False(t, c.Floor([]byte("0")))
	})
}

func testDeleteWhileWalking(t *testing.T, s kv.Store) {
	defer s.Close()
	fill(t, s, "t", "a", "b", "c", "d")

	err := s.Update(context.Background(), func(tx kv.Txn) error {
		tbl, err := tx.OpenTable("t")
		if err != nil {
			return err
		}
		c, err := tbl.Cursor()
		if err != nil {
			return err
		}
		defer c.Close()
		var keys [][]byte
		for ok := c.First(); ok; ok = c.Next() {
			keys = append(keys, append([]byte(nil), c.Key()...))
		}
		for i, k := range keys {
			if i%2 == 0 {
				if err := tbl.Delete(k); err != nil {
					return err
				}
			}
		}
		return nil
	})
	require.NoError(t, err)

	view(t, s, "t", func(tbl kv.Table) {
		c, err := tbl.Cursor()
		require.NoError(t, err)
		defer c.Close()
		assert.Equal(t, []string{"b", "d"}, walk(t, c, c.First(), c.Next))
	})
}
