// Package testutil provides testing utilities for gapgo.
//
// This package is intended for use in tests and benchmarks only.
// It provides helpers for generating random feature matrices and synthetic
// atomic structures with known energies.
//
// # Random Matrix Generation
//
//	rng := testutil.NewRNG(seed)
//	x := rng.UnitRowMatrix(100, 24)   // normalized descriptor rows
//	x = rng.ClusteredMatrix(100, 24, 5, 0.1)
//
// # Synthetic Structures
//
//	frames := rng.Structures(5, 4, []int{1, 2}, "energy", map[int]float64{1: -1.0, 2: -0.5})
package testutil
