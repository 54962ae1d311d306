package benchmark_test

import (
	"math"
	"testing"

	"github.com/hupe1980/pointgrid/tensor"
	"github.com/hupe1980/pointgrid/testutil"
)

// uniformCloud returns n points uniform in the unit cube.
func uniformCloud(b *testing.B, n int) *tensor.Tensor[float32] {
	b.Helper()
	rng := testutil.NewRNG(42)
	pts, err := tensor.Points(rng.UniformPoints(n, 1))
	if err != nil {
		b.Fatal(err)
	}
	return pts
}

// radiusFor returns the radius that gives roughly 16 neighbors per point
// in a uniform unit cube of n points.
func radiusFor(n int) float64 {
	return math.Cbrt(16 / (4.0 / 3 * math.Pi * float64(n)))
}
