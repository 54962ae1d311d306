package testutil

import (
	"math/rand"
	"slices"
	"sync"

	"github.com/hupe1980/pointgrid/distance"
	"github.com/hupe1980/pointgrid/tensor"
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

// Float32 returns, as a float32, a pseudo-random number in [0.0,1.0).
func (r *RNG) Float32() float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float32()
}

// UniformPoints returns n points as a flat xyz buffer, uniform in [0, scale).
func (r *RNG) UniformPoints(n int, scale float32) []float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	xyz := make([]float32, 3*n)
	for i := range xyz {
		xyz[i] = r.rand.Float32() * scale
	}
	return xyz
}

// UniformPoints64 is UniformPoints for float64 coordinates.
func (r *RNG) UniformPoints64(n int, scale float64) []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	xyz := make([]float64, 3*n)
	for i := range xyz {
		xyz[i] = r.rand.Float64() * scale
	}
	return xyz
}

// ClusteredPoints returns n points drawn from gaussian blobs with the given
// spread around cluster centers in the unit cube. Dense clusters put many
// points into few cells, which stresses bucket chaining.
func (r *RNG) ClusteredPoints(n, clusters int, spread float32) []float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	centers := make([]float32, 3*clusters)
	for i := range centers {
		centers[i] = r.rand.Float32()
	}

	xyz := make([]float32, 3*n)
	for i := range n {
		c := r.rand.Intn(clusters)
		for k := range 3 {
			xyz[3*i+k] = centers[3*c+k] + float32(r.rand.NormFloat64())*spread
		}
	}
	return xyz
}

// RowSplits partitions n elements into batches items of random sizes
// (some possibly empty).
func (r *RNG) RowSplits(n, batches int) []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	cuts := make([]int64, 0, batches+1)
	cuts = append(cuts, 0)
	for range batches - 1 {
		cuts = append(cuts, int64(r.rand.Intn(n+1)))
	}
	cuts = append(cuts, int64(n))
	slices.Sort(cuts)
	return cuts
}

// UnitCube returns the eight corners of the unit cube.
func UnitCube[T tensor.Float]() []T {
	xyz := make([]T, 0, 24)
	for x := range 2 {
		for y := range 2 {
			for z := range 2 {
				xyz = append(xyz, T(x), T(y), T(z))
			}
		}
	}
	return xyz
}

// Neighbor is one exact search hit.
type Neighbor struct {
	Index    int64
	Distance float64
}

// BruteForceRadius computes every query's neighbors by comparing it with all
// points of the same batch item. Neighbor lists are sorted by index.
// With ignoreSelf, a query's own global index is excluded (points and
// queries are assumed to be the same cloud).
func BruteForceRadius[T tensor.Float](points, queries []T, pointsSplits, queriesSplits []int64, radius float64, m distance.Metric, ignoreSelf bool) [][]Neighbor {
	dist, err := distance.Provider[T](m)
	if err != nil {
		panic(err)
	}
	threshold := T(m.Threshold(radius))

	out := make([][]Neighbor, len(queries)/3)
	for b := 0; b < len(queriesSplits)-1; b++ {
		for q := queriesSplits[b]; q < queriesSplits[b+1]; q++ {
			qp := queries[3*q : 3*q+3]
			for p := pointsSplits[b]; p < pointsSplits[b+1]; p++ {
				if ignoreSelf && p == q {
					continue
				}
				if d := dist(qp, points[3*p:3*p+3]); d <= threshold {
					out[q] = append(out[q], Neighbor{Index: p, Distance: float64(d)})
				}
			}
		}
	}
	return out
}
