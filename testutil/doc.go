// Package testutil provides testing utilities for pointgrid.
//
// This package is intended for use in tests and benchmarks only.
// It provides helpers for generating random point clouds, batching them with
// row splits, and computing exact radius neighborhoods by brute force.
//
// # Random Point Generation
//
//	rng := testutil.NewRNG(seed)
//	xyz := rng.UniformPoints(1000, 10)      // flat [n*3], uniform in [0, 10)
//	xyz = rng.ClusteredPoints(1000, 8, 0.2) // gaussian blobs in the unit cube
//
// # Exact Search (Ground Truth)
//
//	want := testutil.BruteForceRadius(points, queries, pSplits, qSplits, r, distance.MetricL2, false)
//
// # Result Comparison
//
//	testutil.SameNeighborSets(t, want, gotIndex, gotRowSplits)
package testutil
