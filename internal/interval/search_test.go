package interval_test

import (
	"testing"

	"github.com/hupe1980/tindex/internal/errs"
	"github.com/hupe1980/tindex/internal/interval"
	"github.com/hupe1980/tindex/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bruteContains(l interval.List, instant int64) bool {
	for _, iv := range l {
		if iv.Contains(instant) {
			return true
		}
	}
	return false
}

func bruteLatestClosedBefore(l interval.List, instant int64) (interval.Interval, bool) {
	if bruteContains(l, instant) {
		return interval.Interval{}, false
	}
	for i := len(l) - 1; i >= 0; i-- {
		if !l[i].IsOpen() && l[i].Upper <= instant {
			return l[i], true
		}
	}
	return interval.Interval{}, false
}

func TestContainsInstant(t *testing.T) {
	packed := interval.Encode(interval.List{
		{Lower: 1000, Upper: 2000},
		{Lower: 3000, Upper: 4000},
		interval.Open(5000),
	})

	tests := []struct {
		instant int64
		want    bool
	}{
		{0, false},
		{999, false},
		{1000, true},
		{1999, true},
		{2000, false},
		{2500, false},
		{3000, true},
		{4000, false},
		{5000, true},
		{interval.Forever - 1, true},
	}

	for _, tt := range tests {
		got, err := interval.ContainsInstant(packed, tt.instant)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "instant %d", tt.instant)
	}
}

func TestContainsInstantEmpty(t *testing.T) {
	got, err := interval.ContainsInstant(nil, 10)
	require.NoError(t, err)
	assert.False(t, got)
}

func TestContainsInstantOddLength(t *testing.T) {
	_, err := interval.ContainsInstant(make([]byte, 24), 10)
	require.ErrorIs(t, err, errs.ErrPrecondition)

	_, _, err = interval.LatestClosedBefore(make([]byte, 8), 10)
	require.ErrorIs(t, err, errs.ErrPrecondition)
}

func TestContainsInstantMatchesBruteForce(t *testing.T) {
	rng := testutil.NewRNG(7)

	for i := 0; i < 1000; i++ {
		l := rng.Intervals(10, 100_000, 0.4)
		instant := rng.Int63n(110_000)
		got, err := interval.ContainsInstant(interval.Encode(l), instant)
		require.NoError(t, err)
		assert.Equal(t, bruteContains(l, instant), got, "list %s instant %d", l, instant)
	}
}

func TestLatestClosedBefore(t *testing.T) {
	packed := interval.Encode(interval.List{
		{Lower: 1000, Upper: 2000},
		{Lower: 3000, Upper: 4000},
		interval.Open(5000),
	})

	tests := []struct {
		instant int64
		want    interval.Interval
		found   bool
	}{
		{500, interval.Interval{}, false},
		{1500, interval.Interval{}, false},
		{2000, interval.Interval{Lower: 1000, Upper: 2000}, true},
		{2999, interval.Interval{Lower: 1000, Upper: 2000}, true},
		{3500, interval.Interval{}, false},
		{4000, interval.Interval{Lower: 3000, Upper: 4000}, true},
		{4999, interval.Interval{Lower: 3000, Upper: 4000}, true},
		{6000, interval.Interval{}, false},
	}

	for _, tt := range tests {
		got, found, err := interval.LatestClosedBefore(packed, tt.instant)
		require.NoError(t, err)
		assert.Equal(t, tt.found, found, "instant %d", tt.instant)
		assert.Equal(t, tt.want, got, "instant %d", tt.instant)
	}
}

func TestLatestClosedBeforeMatchesBruteForce(t *testing.T) {
	rng := testutil.NewRNG(11)

	for i := 0; i < 1000; i++ {
		l := rng.Intervals(10, 100_000, 0.4)
		instant := rng.Int63n(110_000)
		got, found, err := interval.LatestClosedBefore(interval.Encode(l), instant)
		require.NoError(t, err)
		want, wantFound := bruteLatestClosedBefore(l, instant)
		assert.Equal(t, wantFound, found, "list %s instant %d", l, instant)
		assert.Equal(t, want, got, "list %s instant %d", l, instant)
	}
}
