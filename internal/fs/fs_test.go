package fs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFS(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	lfs := LocalFS{}
	require.NoError(t, lfs.MkdirAll(dir, 0o750))

	tmp := filepath.Join(dir, "blob.tmp")
	f, err := lfs.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = f.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, f.Sync())
	require.NoError(t, f.Close())

	final := filepath.Join(dir, "blob")
	require.NoError(t, lfs.Rename(tmp, final))

	info, err := lfs.Stat(final)
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size())

	entries, err := lfs.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "blob", entries[0].Name())

	r, err := lfs.OpenFile(final, os.O_RDONLY, 0)
	require.NoError(t, err)
	buf := make([]byte, 3)
	_, err = r.ReadAt(buf, 2)
	require.NoError(t, err)
	assert.Equal(t, "llo", string(buf))
	require.NoError(t, r.Close())

	require.NoError(t, lfs.Remove(final))
	_, err = lfs.Stat(final)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestFaultyFS(t *testing.T) {
	open := func(t *testing.T, ffs *FaultyFS, name string) File {
		t.Helper()
		f, err := ffs.OpenFile(filepath.Join(t.TempDir(), name), os.O_CREATE|os.O_WRONLY, 0o600)
		require.NoError(t, err)
		t.Cleanup(func() { _ = f.Close() })
		return f
	}

	t.Run("FailAfterBytes", func(t *testing.T) {
		ffs := NewFaultyFS(nil)
		ffs.AddRule("seg", Fault{FailAfterBytes: 4})
		f := open(t, ffs, "seg-1")

		_, err := f.Write([]byte("abcd"))
		require.NoError(t, err)
		_, err = f.Write([]byte("e"))
		assert.ErrorIs(t, err, ErrInjected)
	})

	t.Run("UnmatchedFile", func(t *testing.T) {
		ffs := NewFaultyFS(nil)
		ffs.AddRule("seg", Fault{FailAfterBytes: 0, FailOnSync: true})
		f := open(t, ffs, "other")

		_, err := f.Write([]byte("abcd"))
		require.NoError(t, err)
		assert.NoError(t, f.Sync())
	})

	t.Run("CustomError", func(t *testing.T) {
		boom := errors.New("boom")
		ffs := NewFaultyFS(nil)
		ffs.AddRule("x", Fault{FailAfterBytes: -1, FailOnSync: true, Err: boom})
		f := open(t, ffs, "x")
		assert.ErrorIs(t, f.Sync(), boom)
	})

	t.Run("LaterRuleWins", func(t *testing.T) {
		ffs := NewFaultyFS(nil)
		ffs.AddRule("x", Fault{FailAfterBytes: -1, FailOnSync: true})
		ffs.AddRule("x", Fault{FailAfterBytes: -1})
		f := open(t, ffs, "x")
		assert.NoError(t, f.Sync())
	})

	t.Run("FailOnClose", func(t *testing.T) {
		ffs := NewFaultyFS(nil)
		ffs.AddRule("x", Fault{FailAfterBytes: -1, FailOnClose: true})
		f, err := ffs.OpenFile(filepath.Join(t.TempDir(), "x"), os.O_CREATE|os.O_WRONLY, 0o600)
		require.NoError(t, err)
		assert.ErrorIs(t, f.Close(), ErrInjected)
	})

	t.Run("FailOnRename", func(t *testing.T) {
		dir := t.TempDir()
		ffs := NewFaultyFS(nil)
		ffs.AddRule(".tmp", Fault{FailAfterBytes: -1, FailOnRename: true})
		f, err := ffs.OpenFile(filepath.Join(dir, "a.tmp"), os.O_CREATE|os.O_WRONLY, 0o600)
		require.NoError(t, err)
		require.NoError(t, f.Close())

		err = ffs.Rename(filepath.Join(dir, "a.tmp"), filepath.Join(dir, "a"))
		assert.ErrorIs(t, err, ErrInjected)

		ffs.Reset()
		assert.NoError(t, ffs.Rename(filepath.Join(dir, "a.tmp"), filepath.Join(dir, "a")))
	})
}
