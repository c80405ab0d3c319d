// Package testutil provides testing utilities for tindex.
//
// This package is intended for use in tests and benchmarks only.
// It provides a deterministic random source and generators for the data
// shapes the index works with: entity keys, indexed values and well-formed
// validity interval lists.
//
// # Random Data Generation
//
//	rng := testutil.NewRNG(seed)
//	key := rng.EntityKey(8)                 // "k3f9a01c"
//	ivs := rng.Intervals(4, 10_000, 0.5)    // sorted, non-overlapping
//	word := rng.Word(3, 8)                  // mixed-case ASCII word
package testutil
