package testutil

import (
	"testing"

	"github.com/hupe1980/tindex/internal/interval"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityKey(t *testing.T) {
	rng := NewRNG(4711)

	k := rng.EntityKey(8)

	assert.Len(t, k, 9)
	assert.Equal(t, byte('k'), k[0])
}

func TestWord(t *testing.T) {
	rng := NewRNG(4711)

	for i := 0; i < 100; i++ {
		w := rng.Word(3, 6)
		assert.GreaterOrEqual(t, len(w), 3)
		assert.LessOrEqual(t, len(w), 6)
	}
}

func TestIntervalsAreWellFormed(t *testing.T) {
	rng := NewRNG(4711)

	for i := 0; i < 500; i++ {
		l := rng.Intervals(6, 100_000, 0.5)
		if len(l) == 0 {
			continue
		}
		require.NoError(t, interval.Validate(l), "list %s", l)
	}
}

func TestReset(t *testing.T) {
	rng := NewRNG(4711)
	k1 := rng.EntityKey(16)

	rng.Reset()
	k2 := rng.EntityKey(16)

	assert.Equal(t, k1, k2)
	assert.Equal(t, int64(4711), rng.Seed())
}

func TestZipf(t *testing.T) {
	rng := NewRNG(4711)

	counts := make([]int, 10)
	for i := 0; i < 1000; i++ {
		counts[rng.Zipf(10, 1.5)]++
	}

	assert.Greater(t, counts[0], counts[9])
}
