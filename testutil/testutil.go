package testutil

import (
	"math"
	"math/rand"
	"sync"

	"github.com/hupe1980/tindex/internal/interval"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Int63n returns a non-negative pseudo-random int64 in [0,n).
func (r *RNG) Int63n(n int64) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Int63n(n)
}

// Uint64 returns a pseudo-random uint64.
func (r *RNG) Uint64() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Uint64()
}

// Float64 returns a pseudo-random float64 in [0,1).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

const hexDigits = "0123456789abcdef"

// EntityKey returns a random lowercase hex key of length n prefixed by "k".
func (r *RNG) EntityKey(n int) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	b := make([]byte, n+1)
	b[0] = 'k'
	for i := 1; i <= n; i++ {
		b[i] = hexDigits[r.rand.Intn(len(hexDigits))]
	}
	return string(b)
}

// Word returns a random ASCII word with a length in [minLen, maxLen] and
// randomly mixed letter case.
func (r *RNG) Word(minLen, maxLen int) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := minLen
	if maxLen > minLen {
		n += r.rand.Intn(maxLen - minLen + 1)
	}
	b := make([]byte, n)
	for i := range b {
		c := byte('a' + r.rand.Intn(26))
		if r.rand.Intn(4) == 0 {
			c -= 'a' - 'A'
		}
		b[i] = c
	}
	return string(b)
}

// Intervals returns a well-formed interval list with up to maxIntervals
// entries inside [0, horizon). With probability openProb the last interval is
// left open. The result may be empty.
func (r *RNG) Intervals(maxIntervals int, horizon int64, openProb float64) interval.List {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.rand.Intn(maxIntervals + 1)
	if n == 0 {
		return interval.List{}
	}

	// Draw 2n distinct sorted bounds by walking forward with random gaps.
	step := horizon / int64(2*n+1)
	if step < 2 {
		step = 2
	}
	list := make(interval.List, 0, n)
	cursor := int64(0)
	for i := 0; i < n; i++ {
		lower := cursor + r.rand.Int63n(step)
		upper := lower + 1 + r.rand.Int63n(step)
		list = append(list, interval.Interval{Lower: lower, Upper: upper})
		cursor = upper + r.rand.Int63n(step)
	}
	if r.rand.Float64() < openProb {
		list[len(list)-1].Upper = interval.Forever
	}
	return list
}

// Zipf returns a Zipfian-distributed value in [0, n).
// s=1.0 gives standard Zipf, s=1.5 gives a heavy tail.
func (r *RNG) Zipf(n int, s float64) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n <= 1 {
		return 0
	}

	var hns float64
	for i := 1; i <= n; i++ {
		hns += 1.0 / math.Pow(float64(i), s)
	}

	u := r.rand.Float64() * hns
	var cumulative float64
	for k := 1; k <= n; k++ {
		cumulative += 1.0 / math.Pow(float64(k), s)
		if u <= cumulative {
			return k - 1
		}
	}

	return n - 1
}
