package backup

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/hupe1980/tindex"
	"github.com/hupe1980/tindex/blobstore"
	"github.com/hupe1980/tindex/kv/memkv"
	"github.com/hupe1980/tindex/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	priceIndex = tindex.IndexDefinition{ID: "1", Property: "price", Kind: query.KindFloat}
	nameIndex  = tindex.IndexDefinition{ID: "2", Property: "name", Kind: query.KindString}
	ageIndex   = tindex.IndexDefinition{ID: "3", Property: "age", Kind: query.KindInt}
)

func openEngine(t *testing.T, defs ...tindex.IndexDefinition) *tindex.Engine {
	t.Helper()
	ctx := context.Background()
	e, err := tindex.Open(ctx, memkv.New())
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	for _, def := range defs {
		require.NoError(t, e.CreateIndex(ctx, def))
	}
	return e
}

// populate writes 8 exact-table rows across two keyspaces.
func populate(t *testing.T, e *tindex.Engine) {
	t.Helper()
	err := e.Update(context.Background(), func(tx *tindex.Tx) error {
		pi := query.Float(3.1415)
		require.NoError(t, tx.Insert("1", "main", pi, "1111", 1000))
		require.NoError(t, tx.Insert("1", "main", pi, "1112", 1000))
		_, err := tx.TerminateValidity("1", "main", pi, "1112", 2000, 0)
		require.NoError(t, err)
		require.NoError(t, tx.Insert("1", "main", pi, "1112", 3000))
		require.NoError(t, tx.Insert("1", "archive", query.Float(-1), "1111", 10))

		require.NoError(t, tx.Insert("2", "main", query.String("Alice"), "e1", 100))
		require.NoError(t, tx.Insert("2", "main", query.String("ALBERT"), "e2", 100))
		require.NoError(t, tx.InsertRange("2", "archive", query.String("bob"), "e3", 5, 50))

		require.NoError(t, tx.Insert("3", "main", query.Int(42), "e1", 0))
		return tx.Insert("3", "main", query.Int(-7), "e2", 20)
	})
	require.NoError(t, err)
}

func scanEntities(t *testing.T, e *tindex.Engine, spec query.Spec, keyspace string, instant int64) []string {
	t.Helper()
	res, err := e.Scan(context.Background(), spec, keyspace, instant, tindex.ModeContains)
	require.NoError(t, err)
	out := make([]string, 0, len(res.Entries))
	for _, entry := range res.Entries {
		out = append(out, entry.Entity)
	}
	slices.Sort(out)
	return out
}

func assertRestored(t *testing.T, e *tindex.Engine) {
	t.Helper()
	ctx := context.Background()

	err := e.View(ctx, func(tx *tindex.Tx) error {
		l, found, err := tx.Intervals("1", "main", query.Float(3.1415), "1112")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, tindex.Intervals{{Lower: 1000, Upper: 2000}, {Lower: 3000, Upper: tindex.Forever}}, l)

		spaces, err := tx.Keyspaces("2")
		require.NoError(t, err)
		assert.Equal(t, []string{"archive", "main"}, spaces)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"1111"}, scanEntities(t, e, query.Eq("price", query.Float(3.1415)), "main", 2500))
	assert.Equal(t, []string{"1111"}, scanEntities(t, e, query.Lt("price", query.Float(0)), "archive", 10))
	assert.Equal(t, []string{"e3"}, scanEntities(t, e, query.Eq("name", query.String("BOB")).Fold(), "archive", 49))
	assert.Empty(t, scanEntities(t, e, query.Eq("name", query.String("bob")), "archive", 50))
	assert.Equal(t, []string{"e1", "e2"}, scanEntities(t, e, query.StartsWith("name", "al").Fold(), "main", 100))
	assert.Equal(t, []string{"e2"}, scanEntities(t, e, query.Lt("age", query.Int(0)), "main", 20))
}

func TestExportRestore(t *testing.T) {
	ctx := context.Background()

	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZstd} {
		t.Run(c.String(), func(t *testing.T) {
			src := openEngine(t, priceIndex, nameIndex, ageIndex)
			populate(t, src)
			store := blobstore.NewMemoryStore()

			m, err := Export(ctx, src, store, WithCompression(c), WithParallelism(2))
			require.NoError(t, err)
			assert.Equal(t, c, m.Compression)
			assert.Len(t, m.Indexes, 3)
			assert.EqualValues(t, 8, m.Rows())
			assert.Equal(t, priceIndex, m.Indexes[0].Definition)
			assert.Equal(t, []string{"archive", "main"}, m.Indexes[0].Keyspaces)
			assert.Equal(t, m.ID+"/1.tib"+c.Extension(), m.Indexes[0].Blob)

			latest, err := Latest(ctx, store)
			require.NoError(t, err)
			assert.Equal(t, m.ID, latest)

			dst := openEngine(t)
			restored, err := Restore(ctx, dst, store, "", WithBatchSize(2))
			require.NoError(t, err)
			assert.Equal(t, m.ID, restored.ID)
			assert.Equal(t, []tindex.IndexDefinition{priceIndex, nameIndex, ageIndex}, dst.Indexes())
			assertRestored(t, dst)
		})
	}
}

func TestRestoreReplacesContents(t *testing.T) {
	ctx := context.Background()
	e := openEngine(t, priceIndex, nameIndex, ageIndex)
	populate(t, e)
	store := blobstore.NewMemoryStore()

	m, err := Export(ctx, e, store)
	require.NoError(t, err)

	require.NoError(t, e.Insert(ctx, "2", "main", query.String("Mallory"), "e9", 0))
	require.NoError(t, e.Insert(ctx, "2", "scratch", query.String("x"), "e9", 0))
	_, err = e.TerminateValidity(ctx, "1", "main", query.Float(3.1415), "1111", 1500, 0)
	require.NoError(t, err)

	_, err = Restore(ctx, e, store, m.ID)
	require.NoError(t, err)

	assertRestored(t, e)
	assert.Empty(t, scanEntities(t, e, query.Eq("name", query.String("mallory")).Fold(), "main", 100))
	assert.Empty(t, scanEntities(t, e, query.Eq("name", query.String("x")), "scratch", 100))
}

func TestExportEmptyIndex(t *testing.T) {
	ctx := context.Background()
	src := openEngine(t, nameIndex)
	store := blobstore.NewMemoryStore()

	m, err := Export(ctx, src, store)
	require.NoError(t, err)
	assert.Zero(t, m.Rows())
	assert.Empty(t, m.Indexes[0].Keyspaces)

	dst := openEngine(t, nameIndex)
	require.NoError(t, dst.Insert(ctx, "2", "main", query.String("stale"), "e1", 0))

	_, err = Restore(ctx, dst, store, m.ID)
	require.NoError(t, err)
	assert.Empty(t, scanEntities(t, dst, query.Eq("name", query.String("stale")), "main", 0))
}

func TestSelectedIndexes(t *testing.T) {
	ctx := context.Background()
	src := openEngine(t, priceIndex, nameIndex, ageIndex)
	populate(t, src)
	store := blobstore.NewMemoryStore()

	m, err := Export(ctx, src, store, WithIndexes("3", "1"))
	require.NoError(t, err)
	require.Len(t, m.Indexes, 2)
	assert.Equal(t, "3", m.Indexes[0].Definition.ID)
	assert.Equal(t, "1", m.Indexes[1].Definition.ID)

	dst := openEngine(t)
	_, err = Restore(ctx, dst, store, m.ID, WithIndexes("3"))
	require.NoError(t, err)
	assert.Equal(t, []tindex.IndexDefinition{ageIndex}, dst.Indexes())

	_, err = Export(ctx, src, store, WithIndexes("404"))
	assert.ErrorIs(t, err, tindex.ErrIndexNotFound)
}

func TestRestoreErrors(t *testing.T) {
	ctx := context.Background()
	src := openEngine(t, priceIndex)
	require.NoError(t, src.Insert(ctx, "1", "main", query.Float(1), "e1", 0))

	t.Run("NoCurrent", func(t *testing.T) {
		_, err := Restore(ctx, openEngine(t), blobstore.NewMemoryStore(), "")
		assert.True(t, blobstore.IsNotFound(err))
	})

	t.Run("UnknownBackup", func(t *testing.T) {
		_, err := Restore(ctx, openEngine(t), blobstore.NewMemoryStore(), "nope")
		assert.True(t, blobstore.IsNotFound(err))
	})

	t.Run("DefinitionMismatch", func(t *testing.T) {
		store := blobstore.NewMemoryStore()
		m, err := Export(ctx, src, store)
		require.NoError(t, err)

		dst := openEngine(t, tindex.IndexDefinition{ID: "1", Property: "price", Kind: query.KindInt})
		_, err = Restore(ctx, dst, store, m.ID)
		assert.ErrorIs(t, err, ErrDefinitionMismatch)
	})

	t.Run("CorruptStream", func(t *testing.T) {
		store := blobstore.NewMemoryStore()
		m, err := Export(ctx, src, store, WithCompression(CompressionNone))
		require.NoError(t, err)

		data, err := blobstore.ReadAll(ctx, store, m.Indexes[0].Blob)
		require.NoError(t, err)
		require.NoError(t, store.Put(ctx, m.Indexes[0].Blob, data[:len(data)-3]))

		_, err = Restore(ctx, openEngine(t), store, m.ID)
		assert.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("RowCountMismatch", func(t *testing.T) {
		store := blobstore.NewMemoryStore()
		m, err := Export(ctx, src, store)
		require.NoError(t, err)
		m.Indexes[0].Rows = 5
		require.NoError(t, writeManifest(ctx, store, defaultOptions().codec, m))

		_, err = Restore(ctx, openEngine(t), store, m.ID)
		assert.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("ManifestIDMismatch", func(t *testing.T) {
		store := blobstore.NewMemoryStore()
		m, err := Export(ctx, src, store)
		require.NoError(t, err)
		data, err := blobstore.ReadAll(ctx, store, manifestPath(m.ID))
		require.NoError(t, err)
		require.NoError(t, store.Put(ctx, manifestPath("other"), data))

		_, err = ReadManifest(ctx, store, "other")
		assert.ErrorIs(t, err, ErrCorrupt)
	})
}

func TestRestoreLeavesEngineUntouchedOnCorruption(t *testing.T) {
	ctx := context.Background()
	e := openEngine(t, priceIndex, nameIndex, ageIndex)
	populate(t, e)
	store := blobstore.NewMemoryStore()

	m, err := Export(ctx, e, store, WithCompression(CompressionNone))
	require.NoError(t, err)

	// Only the checksum at the very end of the name stream is damaged.
	blob := m.Indexes[1].Blob
	data, err := blobstore.ReadAll(ctx, store, blob)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xFF
	require.NoError(t, store.Put(ctx, blob, data))

	require.NoError(t, e.Insert(ctx, "2", "main", query.String("Mallory"), "e9", 0))
	_, err = e.TerminateValidity(ctx, "1", "main", query.Float(3.1415), "1111", 1500, 0)
	require.NoError(t, err)

	_, err = Restore(ctx, e, store, m.ID, WithBatchSize(1))
	require.ErrorIs(t, err, ErrCorrupt)

	assert.Equal(t, []string{"e9"}, scanEntities(t, e, query.Eq("name", query.String("mallory")).Fold(), "main", 100))
	assert.Empty(t, scanEntities(t, e, query.Eq("price", query.Float(3.1415)), "main", 2500))

	dst := openEngine(t)
	_, err = Restore(ctx, dst, store, m.ID, WithBatchSize(1))
	require.ErrorIs(t, err, ErrCorrupt)
	assert.Empty(t, dst.Indexes())
}

func TestManifests(t *testing.T) {
	ctx := context.Background()
	src := openEngine(t, ageIndex)
	store := blobstore.NewMemoryStore()

	first, err := Export(ctx, src, store)
	require.NoError(t, err)
	second, err := Export(ctx, src, store, WithoutCommit())
	require.NoError(t, err)

	latest, err := Latest(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, first.ID, latest)

	ms, err := List(ctx, store)
	require.NoError(t, err)
	require.Len(t, ms, 2)
	ids := []string{ms[0].ID, ms[1].ID}
	assert.ElementsMatch(t, []string{first.ID, second.ID}, ids)
	assert.False(t, ms[1].CreatedAt.Before(ms[0].CreatedAt))

	require.NoError(t, store.Put(ctx, blobstore.CurrentName, []byte(" \n")))
	_, err = Latest(ctx, store)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestRateLimit(t *testing.T) {
	ctx := context.Background()
	src := openEngine(t, ageIndex)
	for i := range 5 {
		require.NoError(t, src.Insert(ctx, "3", "main", query.Int(int64(i)), "e", 0))
	}
	store := blobstore.NewMemoryStore()

	start := time.Now()
	m, err := Export(ctx, src, store, WithRateLimit(50, 1))
	require.NoError(t, err)
	assert.EqualValues(t, 5, m.Rows())
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = Export(cancelled, src, store, WithRateLimit(1, 1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled) || errors.Is(err, tindex.ErrPrecondition), err)

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	for _, name := range names {
		if name != blobstore.CurrentName {
			assert.Contains(t, name, m.ID)
		}
	}
}
