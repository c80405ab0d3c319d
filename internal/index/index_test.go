package index

import (
	"context"
	"fmt"
	"iter"
	"math"
	"slices"
	"sort"
	"testing"

	"github.com/hupe1980/tindex/internal/errs"
	"github.com/hupe1980/tindex/internal/interval"
	"github.com/hupe1980/tindex/internal/keycodec"
	"github.com/hupe1980/tindex/internal/scan"
	"github.com/hupe1980/tindex/kv"
	"github.com/hupe1980/tindex/kv/badgerkv"
	"github.com/hupe1980/tindex/kv/memkv"
	"github.com/hupe1980/tindex/kv/sqlitekv"
	"github.com/hupe1980/tindex/query"
	"github.com/hupe1980/tindex/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	forever = interval.Forever
	ks      = "default"
)

func newStore(t *testing.T) kv.Store {
	t.Helper()
	s := memkv.New()
	t.Cleanup(func() { _ = s.Close() })
	return s
}

var adapters = []struct {
	name string
	open func() (kv.Store, error)
}{
	{"memkv", func() (kv.Store, error) { return memkv.New(), nil }},
	{"badgerkv", func() (kv.Store, error) { return badgerkv.Open(badgerkv.InMemoryConfig()) }},
	{"sqlitekv", func() (kv.Store, error) { return sqlitekv.Open(sqlitekv.Config{}) }},
}

// forEachStore runs fn against a fresh store of every kv adapter.
func forEachStore(t *testing.T, fn func(t *testing.T, s kv.Store)) {
	for _, a := range adapters {
		t.Run(a.name, func(t *testing.T) {
			s, err := a.open()
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			fn(t, s)
		})
	}
}

func update(t *testing.T, s kv.Store, fn func(tx kv.Txn) error) {
	t.Helper()
	require.NoError(t, s.Update(context.Background(), fn))
}

func scanAt(t *testing.T, s kv.Store, st Store, spec query.Spec, instant int64) Result {
	t.Helper()
	var res Result
	require.NoError(t, s.View(context.Background(), func(tx kv.Txn) error {
		var err error
		res, err = st.Scan(tx, spec, ks, instant, scan.ModeContains)
		return err
	}))
	return res
}

func entities(res Result) []string {
	out := make([]string, 0, len(res.Entries))
	for _, e := range res.Entries {
		out = append(out, e.Entity)
	}
	sort.Strings(out)
	return out
}

func TestEndToEndFloat(t *testing.T) {
	s := newStore(t)
	st := NewFloat("idx", Options{})
	pi := query.Float(3.1415)

	update(t, s, func(tx kv.Txn) error {
		require.NoError(t, st.Insert(tx, ks, pi, "1111", 1000, forever))
		require.NoError(t, st.Insert(tx, ks, pi, "1112", 1000, forever))
		changed, err := st.Terminate(tx, ks, pi, "1112", 2000, 0)
		require.NoError(t, err)
		assert.True(t, changed)
		require.NoError(t, st.Insert(tx, ks, pi, "1112", 3000, forever))

		l, found, err := st.Load(tx, ks, pi, "1112")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, interval.List{{1000, 2000}, {3000, forever}}, l)
		return nil
	})

	assert.Equal(t, []string{"1111"}, entities(scanAt(t, s, st, query.Eq("p", pi), 2500)))
	assert.Equal(t, []string{"1111", "1112"}, entities(scanAt(t, s, st, query.Eq("p", pi), 3500)))
}

func TestCaseInsensitiveDeduplication(t *testing.T) {
	s := newStore(t)
	st := NewText("name", Options{})
	spec := query.Eq("name", query.String("JOHN")).Fold()

	update(t, s, func(tx kv.Txn) error {
		require.NoError(t, st.Insert(tx, ks, query.String("John"), "pk", 1000, forever))
		require.NoError(t, st.Insert(tx, ks, query.String("john"), "pk", 1000, forever))
		_, err := st.Terminate(tx, ks, query.String("John"), "pk", 2000, 0)
		return err
	})

	res := scanAt(t, s, st, spec, 1500)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, "pk", res.Entries[0].Entity)

	res = scanAt(t, s, st, spec, 2000)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, query.String("john"), res.Entries[0].Value)

	update(t, s, func(tx kv.Txn) error {
		_, err := st.Terminate(tx, ks, query.String("john"), "pk", 3000, 0)
		return err
	})
	assert.Empty(t, scanAt(t, s, st, spec, 3000).Entries)

	// The exact table still tells the spellings apart.
	res = scanAt(t, s, st, query.Eq("name", query.String("John")), 1500)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, query.String("John"), res.Entries[0].Value)
}

func TestTextValuesWithZeroBytes(t *testing.T) {
	forEachStore(t, func(t *testing.T, s kv.Store) {
		st := NewText("name", Options{})
		values := map[string]string{
			"e1": "a",
			"e2": "a\x00",
			"e3": "a\x00b",
			"e4": "a\x01",
			"e5": "ab",
			"e6": "A\x00B",
		}
		update(t, s, func(tx kv.Txn) error {
			for entity, v := range values {
				require.NoError(t, st.Insert(tx, ks, query.String(v), entity, 1000, forever))
			}
			return nil
		})

		res := scanAt(t, s, st, query.Eq("name", query.String("a\x00b")), 1500)
		require.Len(t, res.Entries, 1)
		assert.Equal(t, "e3", res.Entries[0].Entity)
		assert.Equal(t, query.String("a\x00b"), res.Entries[0].Value)

		res = scanAt(t, s, st, query.Any("name"), 1500)
		got := make(map[string]string, len(res.Entries))
		for _, e := range res.Entries {
			got[e.Entity] = e.Value.S
		}
		assert.Equal(t, values, got)

		res = scanAt(t, s, st, query.Gt("name", query.String("a\x00")), 1500)
		assert.Equal(t, []string{"e3", "e4", "e5"}, entities(res))

		res = scanAt(t, s, st, query.Le("name", query.String("a\x00b")), 1500)
		assert.Equal(t, []string{"e1", "e2", "e3", "e6"}, entities(res))
		assert.Equal(t, Descending, res.Order)
		require.Len(t, res.Entries, 4)
		assert.Equal(t, query.String("a\x00b"), res.Entries[0].Value)

		res = scanAt(t, s, st, query.StartsWith("name", "a\x00"), 1500)
		assert.Equal(t, []string{"e2", "e3"}, entities(res))

		res = scanAt(t, s, st, query.Eq("name", query.String("A\x00b")).Fold(), 1500)
		assert.Equal(t, []string{"e3", "e6"}, entities(res))
	})
}

func TestCaseInsensitiveRegexSeesOriginalSpelling(t *testing.T) {
	s := newStore(t)
	st := NewText("street", Options{})
	update(t, s, func(tx kv.Txn) error {
		require.NoError(t, st.Insert(tx, ks, query.String("Straße"), "e1", 1000, forever))
		require.NoError(t, st.Insert(tx, ks, query.String("STRASSE"), "e2", 1000, forever))
		require.NoError(t, st.Insert(tx, ks, query.String("strasse"), "e3", 1000, forever))
		return nil
	})

	sharp := query.Matches("street", "^straße$").Fold()
	res := scanAt(t, s, st, sharp, 1500)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, "e1", res.Entries[0].Entity)
	assert.Equal(t, query.String("Straße"), res.Entries[0].Value)

	notSharp := sharp
	notSharp.Op = query.OpNotMatches
	assert.Equal(t, []string{"e2", "e3"}, entities(scanAt(t, s, st, notSharp, 1500)))

	assert.Equal(t, []string{"e2", "e3"}, entities(scanAt(t, s, st, query.Matches("street", "^strasse$").Fold(), 1500)))
}

type refRow struct {
	value  query.Value
	entity string
	l      interval.List
}

func (r refRow) validAt(instant int64) bool {
	ok, err := interval.ContainsInstant(interval.Encode(r.l), instant)
	if err != nil {
		panic(err)
	}
	return ok
}

func fillRandom(t *testing.T, s kv.Store, st Store, n int, value func(rng *testutil.RNG) query.Value) []refRow {
	t.Helper()
	rng := testutil.NewRNG(42)
	cells := make(map[string]refRow)
	update(t, s, func(tx kv.Txn) error {
		for len(cells) < n {
			r := refRow{value: value(rng), entity: rng.EntityKey(2), l: rng.Intervals(3, 1000, 0.4)}
			if len(r.l) == 0 {
				continue
			}
			require.NoError(t, st.Put(tx, ks, r.value, r.entity, r.l))
			cells[r.value.Text()+"|"+r.entity] = r
		}
		return nil
	})
	rows := make([]refRow, 0, len(cells))
	for _, r := range cells {
		rows = append(rows, r)
	}
	return rows
}

func expected(rows []refRow, instant int64, pred func(query.Value) bool) []string {
	out := []string{}
	for _, r := range rows {
		if pred(r.value) && r.validAt(instant) {
			out = append(out, r.value.Text()+"|"+r.entity)
		}
	}
	sort.Strings(out)
	return out
}

func actual(res Result) []string {
	out := make([]string, 0, len(res.Entries))
	for _, e := range res.Entries {
		out = append(out, e.Value.Text()+"|"+e.Entity)
	}
	sort.Strings(out)
	return out
}

func assertOrdered(t *testing.T, res Result, cmp func(a, b query.Value) int) {
	t.Helper()
	if res.Order == Unordered {
		return
	}
	ordered := slices.IsSortedFunc(res.Entries, func(a, b Entry) int {
		c := cmp(a.Value, b.Value)
		if res.Order == Descending {
			c = -c
		}
		return c
	})
	assert.True(t, ordered, "entries not in %s order", res.Order)
}

func TestRandomIntScansMatchFilteredFullScan(t *testing.T) {
	forEachStore(t, testRandomIntScans)
}

func testRandomIntScans(t *testing.T, s kv.Store) {
	st := NewInt("age", Options{})
	rows := fillRandom(t, s, st, 600, func(rng *testutil.RNG) query.Value {
		return query.Int(rng.Int63n(60) - 30)
	})
	cmpInt := func(a, b query.Value) int {
		switch {
		case a.I64 < b.I64:
			return -1
		case a.I64 > b.I64:
			return 1
		}
		return 0
	}

	rng := testutil.NewRNG(1)
	for i := 0; i < 40; i++ {
		instant := rng.Int63n(1100)
		x := rng.Int63n(70) - 35
		y := rng.Int63n(70) - 35
		z := rng.Int63n(70) - 35
		v := query.Int(x)
		tests := []struct {
			spec query.Spec
			pred func(query.Value) bool
		}{
			{query.Eq("age", v), func(a query.Value) bool { return a.I64 == x }},
			{query.Ne("age", v), func(a query.Value) bool { return a.I64 != x }},
			{query.Gt("age", v), func(a query.Value) bool { return a.I64 > x }},
			{query.Ge("age", v), func(a query.Value) bool { return a.I64 >= x }},
			{query.Lt("age", v), func(a query.Value) bool { return a.I64 < x }},
			{query.Le("age", v), func(a query.Value) bool { return a.I64 <= x }},
			{query.In("age", v, query.Int(y)), func(a query.Value) bool { return a.I64 == x || a.I64 == y }},
			{query.In("age", v, query.Int(y), query.Int(z), query.Int(x+1)), func(a query.Value) bool {
				return a.I64 == x || a.I64 == y || a.I64 == z || a.I64 == x+1
			}},
			{query.NotIn("age", v, query.Int(y)), func(a query.Value) bool { return a.I64 != x && a.I64 != y }},
			{query.Any("age"), func(query.Value) bool { return true }},
			{query.Matches("age", "^-"), func(a query.Value) bool { return a.I64 < 0 }},
		}
		for _, tt := range tests {
			res := scanAt(t, s, st, tt.spec, instant)
			require.Equal(t, expected(rows, instant, tt.pred), actual(res), "%s @%d", tt.spec, instant)
			assertOrdered(t, res, cmpInt)
		}
	}
}

func TestRandomFloatScansMatchFilteredFullScan(t *testing.T) {
	forEachStore(t, testRandomFloatScans)
}

func testRandomFloatScans(t *testing.T, s kv.Store) {
	st := NewFloat("score", Options{})
	rows := fillRandom(t, s, st, 500, func(rng *testutil.RNG) query.Value {
		return query.Float(float64(rng.Int63n(41)-20) / 4)
	})
	cmpFloat := func(a, b query.Value) int {
		switch {
		case a.F64 < b.F64:
			return -1
		case a.F64 > b.F64:
			return 1
		}
		return 0
	}

	rng := testutil.NewRNG(2)
	for i := 0; i < 40; i++ {
		instant := rng.Int63n(1100)
		x := float64(rng.Int63n(45)-22) / 4
		v := query.Float(x)
		tests := []struct {
			spec query.Spec
			pred func(query.Value) bool
		}{
			{query.Eq("score", v), func(a query.Value) bool { return a.F64 == x }},
			{query.Eq("score", v).WithTolerance(0.3), func(a query.Value) bool { return math.Abs(a.F64-x) <= 0.3 }},
			{query.Ne("score", v), func(a query.Value) bool { return a.F64 != x }},
			{query.Gt("score", v), func(a query.Value) bool { return a.F64 > x }},
			{query.Ge("score", v), func(a query.Value) bool { return a.F64 >= x }},
			{query.Lt("score", v), func(a query.Value) bool { return a.F64 < x }},
			{query.Le("score", v), func(a query.Value) bool { return a.F64 <= x }},
		}
		for _, tt := range tests {
			res := scanAt(t, s, st, tt.spec, instant)
			require.Equal(t, expected(rows, instant, tt.pred), actual(res), "%s @%d", tt.spec, instant)
			assertOrdered(t, res, cmpFloat)
		}
	}
}

func TestRandomTextScansMatchFilteredFullScan(t *testing.T) {
	forEachStore(t, testRandomTextScans)
}

func testRandomTextScans(t *testing.T, s kv.Store) {
	st := NewText("name", Options{})
	rows := fillRandom(t, s, st, 500, func(rng *testutil.RNG) query.Value {
		return query.String(rng.Word(0, 3))
	})
	cmpText := func(a, b query.Value) int {
		switch {
		case a.S < b.S:
			return -1
		case a.S > b.S:
			return 1
		}
		return 0
	}

	rng := testutil.NewRNG(3)
	for i := 0; i < 40; i++ {
		instant := rng.Int63n(1100)
		w := rng.Word(0, 2)
		v := query.String(w)
		tests := []struct {
			spec query.Spec
			pred func(query.Value) bool
		}{
			{query.Eq("name", v), func(a query.Value) bool { return a.S == w }},
			{query.Gt("name", v), func(a query.Value) bool { return a.S > w }},
			{query.Ge("name", v), func(a query.Value) bool { return a.S >= w }},
			{query.Lt("name", v), func(a query.Value) bool { return a.S < w }},
			{query.Le("name", v), func(a query.Value) bool { return a.S <= w }},
			{query.StartsWith("name", w), func(a query.Value) bool { return len(a.S) >= len(w) && a.S[:len(w)] == w }},
		}
		for _, tt := range tests {
			res := scanAt(t, s, st, tt.spec, instant)
			require.Equal(t, expected(rows, instant, tt.pred), actual(res), "%s @%d", tt.spec, instant)
			assertOrdered(t, res, cmpText)
		}
	}
}

func TestRandomCaseInsensitiveScans(t *testing.T) {
	forEachStore(t, testRandomCaseInsensitiveScans)
}

func testRandomCaseInsensitiveScans(t *testing.T, s kv.Store) {
	st := NewText("name", Options{})
	rows := fillRandom(t, s, st, 500, func(rng *testutil.RNG) query.Value {
		return query.String(rng.Word(1, 2))
	})

	rng := testutil.NewRNG(4)
	for i := 0; i < 40; i++ {
		instant := rng.Int63n(1100)
		w := rng.Word(1, 2)
		fw := keycodec.Fold(w)
		for _, spec := range []query.Spec{
			query.Eq("name", query.String(w)).Fold(),
			query.StartsWith("name", w[:1]).Fold(),
		} {
			pred := func(a string) bool { return keycodec.Fold(a) == fw }
			if spec.Op == query.OpStartsWith {
				pred = func(a string) bool { return keycodec.Fold(a)[:1] == fw[:1] }
			}

			want := make(map[string]bool)
			for _, r := range rows {
				if pred(r.value.S) && r.validAt(instant) {
					want[keycodec.Fold(r.value.S)+"|"+r.entity] = true
				}
			}

			res := scanAt(t, s, st, spec, instant)
			got := make(map[string]bool)
			for _, e := range res.Entries {
				k := keycodec.Fold(e.Value.S) + "|" + e.Entity
				assert.False(t, got[k], "duplicate %s", k)
				got[k] = true
			}
			assert.Equal(t, want, got, "%s @%d", spec, instant)
		}
	}
}

func TestUnionIsDeduplicatedAndUnordered(t *testing.T) {
	s := newStore(t)
	st := NewFloat("f", Options{})
	update(t, s, func(tx kv.Txn) error {
		require.NoError(t, st.Insert(tx, ks, query.Float(1.0), "a", 0, forever))
		require.NoError(t, st.Insert(tx, ks, query.Float(1.2), "b", 0, forever))
		return nil
	})

	spec := query.In("f", query.Float(1.0), query.Float(1.1)).WithTolerance(0.15)
	res := scanAt(t, s, st, spec, 10)
	assert.Equal(t, Unordered, res.Order)
	assert.Equal(t, []string{"a", "b"}, entities(res))
}

func TestUnionLimitOption(t *testing.T) {
	s := newStore(t)
	st := NewInt("i", Options{UnionLimit: 1})
	update(t, s, func(tx kv.Txn) error {
		require.NoError(t, st.Insert(tx, ks, query.Int(1), "a", 0, forever))
		require.NoError(t, st.Insert(tx, ks, query.Int(2), "b", 0, forever))
		require.NoError(t, st.Insert(tx, ks, query.Int(3), "c", 0, forever))
		return nil
	})
	res := scanAt(t, s, st, query.In("i", query.Int(3), query.Int(1)), 10)
	assert.Equal(t, Ascending, res.Order)
	assert.Equal(t, []string{"a", "c"}, entities(res))
}

func TestDefaultFloatTolerance(t *testing.T) {
	s := newStore(t)
	st := NewFloat("f", Options{FloatTolerance: 1e-6})
	update(t, s, func(tx kv.Txn) error {
		return st.Insert(tx, ks, query.Float(0.1+0.2), "a", 0, forever)
	})
	assert.Len(t, scanAt(t, s, st, query.Eq("f", query.Float(0.3)), 1).Entries, 1)
}

func TestNegativeZeroIsZero(t *testing.T) {
	s := newStore(t)
	st := NewFloat("f", Options{})
	update(t, s, func(tx kv.Txn) error {
		return st.Insert(tx, ks, query.Float(math.Copysign(0, -1)), "a", 0, forever)
	})
	res := scanAt(t, s, st, query.Eq("f", query.Float(0)), 1)
	require.Len(t, res.Entries, 1)
	assert.False(t, math.Signbit(res.Entries[0].Value.F64))
}

func TestPreconditions(t *testing.T) {
	s := newStore(t)
	fl := NewFloat("f", Options{})
	in := NewInt("i", Options{})

	err := s.Update(context.Background(), func(tx kv.Txn) error {
		return fl.Insert(tx, ks, query.Float(math.NaN()), "a", 0, forever)
	})
	assert.ErrorIs(t, err, errs.ErrPrecondition)

	err = s.View(context.Background(), func(tx kv.Txn) error {
		_, err := fl.Scan(tx, query.Gt("f", query.Float(math.Inf(1))), ks, 0, scan.ModeContains)
		return err
	})
	assert.ErrorIs(t, err, errs.ErrPrecondition)

	err = s.View(context.Background(), func(tx kv.Txn) error {
		_, err := in.Scan(tx, query.Eq("i", query.Int(1)), ks, -1, scan.ModeContains)
		return err
	})
	assert.ErrorIs(t, err, errs.ErrPrecondition)

	err = s.View(context.Background(), func(tx kv.Txn) error {
		_, err := in.Scan(tx, query.Eq("", query.Int(1)), ks, 0, scan.ModeContains)
		return err
	})
	assert.ErrorIs(t, err, errs.ErrPrecondition)

	err = s.Update(context.Background(), func(tx kv.Txn) error {
		return in.Insert(tx, ks, query.String("x"), "a", 0, forever)
	})
	assert.ErrorIs(t, err, ErrTypeMismatch)

	err = s.Update(context.Background(), func(tx kv.Txn) error {
		return in.Put(tx, ks, query.Int(1), "a", interval.List{{5, 3}})
	})
	assert.ErrorIs(t, err, errs.ErrPrecondition)

	_, err = New("x", query.KindInvalid, Options{})
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestMissingTableIsEmpty(t *testing.T) {
	s := newStore(t)
	st := NewText("t", Options{})
	assert.Empty(t, scanAt(t, s, st, query.Any("t"), 0).Entries)
	assert.Empty(t, scanAt(t, s, st, query.Eq("t", query.String("x")).Fold(), 0).Entries)

	require.NoError(t, s.View(context.Background(), func(tx kv.Txn) error {
		_, found, err := st.Load(tx, ks, query.String("x"), "a")
		assert.False(t, found)
		return err
	}))
}

func TestTextWritesBothTables(t *testing.T) {
	s := newStore(t)
	st := NewText("t", Options{})
	update(t, s, func(tx kv.Txn) error {
		require.NoError(t, st.Insert(tx, ks, query.String("Hello"), "a", 10, forever))
		require.NoError(t, st.Insert(tx, "other", query.String("x"), "b", 10, forever))
		return nil
	})

	var tables []string
	require.NoError(t, s.View(context.Background(), func(tx kv.Txn) error {
		return st.AllEntries(tx, ks, func(tn keycodec.TableName, rows iter.Seq2[Row, error]) error {
			tables = append(tables, tn.String())
			for r, err := range rows {
				require.NoError(t, err)
				assert.Equal(t, query.String("Hello"), r.Value)
				assert.Equal(t, "a", r.Entity)
				assert.Equal(t, interval.List{{10, forever}}, r.Intervals)
			}
			return nil
		})
	}))
	assert.Equal(t, []string{
		keycodec.TableName{Keyspace: ks, IndexID: "t"}.String(),
		keycodec.TableName{Keyspace: ks, IndexID: "t", Folded: true}.String(),
	}, tables)

	update(t, s, func(tx kv.Txn) error {
		return st.Delete(tx, ks, query.String("Hello"), "a")
	})
	assert.Empty(t, scanAt(t, s, st, query.Any("t"), 20).Entries)
	assert.Empty(t, scanAt(t, s, st, query.Any("t").Fold(), 20).Entries)
}

func TestRollbackAcrossKeyspaces(t *testing.T) {
	s := newStore(t)
	st := NewText("t", Options{})
	other := NewText("t2", Options{})
	update(t, s, func(tx kv.Txn) error {
		for _, space := range []string{ks, "other"} {
			require.NoError(t, st.Put(tx, space, query.String("A"), "keep", interval.List{{1000, 2000}, {3000, 4000}, {5000, forever}}))
			require.NoError(t, st.Put(tx, space, query.String("A"), "gone", interval.List{{4000, forever}}))
		}
		require.NoError(t, other.Insert(tx, ks, query.String("A"), "gone", 4000, forever))
		return nil
	})

	update(t, s, func(tx kv.Txn) error {
		stats, err := st.Rollback(tx, 3500, nil)
		require.NoError(t, err)
		assert.Equal(t, 8, stats.Scanned)
		assert.Equal(t, 4, stats.Rewritten)
		assert.Equal(t, 4, stats.Deleted)
		return nil
	})

	require.NoError(t, s.View(context.Background(), func(tx kv.Txn) error {
		for _, space := range []string{ks, "other"} {
			l, found, err := st.Load(tx, space, query.String("A"), "keep")
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, interval.List{{1000, 2000}, {3000, forever}}, l)
		}
		_, found, err := other.Load(tx, ks, query.String("A"), "gone")
		require.NoError(t, err)
		assert.True(t, found, "other index untouched")
		return nil
	}))
	assert.Equal(t, []string{"keep"}, entities(scanAt(t, s, st, query.Eq("t", query.String("a")).Fold(), 3600)))
}

func TestRollbackSelectedEntities(t *testing.T) {
	s := newStore(t)
	st := NewInt("i", Options{})
	update(t, s, func(tx kv.Txn) error {
		require.NoError(t, st.Insert(tx, ks, query.Int(1), "a", 4000, forever))
		require.NoError(t, st.Insert(tx, ks, query.Int(1), "b", 4000, forever))
		return nil
	})
	update(t, s, func(tx kv.Txn) error {
		_, err := st.Rollback(tx, 3500, []string{"b"})
		return err
	})
	assert.Equal(t, []string{"a"}, entities(scanAt(t, s, st, query.Any("i"), 5000)))
}

func TestClear(t *testing.T) {
	s := newStore(t)
	st := NewText("t", Options{})
	keep := NewText("u", Options{})
	update(t, s, func(tx kv.Txn) error {
		require.NoError(t, st.Insert(tx, ks, query.String("x"), "a", 0, forever))
		require.NoError(t, keep.Insert(tx, ks, query.String("x"), "a", 0, forever))
		return st.Clear(tx)
	})
	require.NoError(t, s.View(context.Background(), func(tx kv.Txn) error {
		names, err := tx.Tables(keycodec.TablePrefix)
		require.NoError(t, err)
		assert.Len(t, names, 2)
		return nil
	}))
	assert.Empty(t, scanAt(t, s, st, query.Any("t"), 1).Entries)
	assert.Len(t, scanAt(t, s, keep, query.Any("u"), 1).Entries, 1)
}

func TestLatestClosedBeforeMode(t *testing.T) {
	s := newStore(t)
	st := NewInt("i", Options{})
	update(t, s, func(tx kv.Txn) error {
		require.NoError(t, st.Put(tx, ks, query.Int(1), "closed", interval.List{{10, 20}}))
		require.NoError(t, st.Put(tx, ks, query.Int(1), "open", interval.List{{10, forever}}))
		return nil
	})
	require.NoError(t, s.View(context.Background(), func(tx kv.Txn) error {
		res, err := st.Scan(tx, query.Eq("i", query.Int(1)), ks, 30, scan.ModeLatestClosedBefore)
		require.NoError(t, err)
		assert.Equal(t, []string{"closed"}, entities(res))
		return nil
	}))
}

func TestOrderString(t *testing.T) {
	for o, want := range map[Order]string{Unordered: "none", Ascending: "asc", Descending: "desc"} {
		assert.Equal(t, want, o.String(), fmt.Sprint(int(o)))
	}
}
