package hashgrid

import (
	"math"
	"slices"

	"github.com/hupe1980/pointgrid/tensor"
)

// maxCell bounds |coordinate / radius| so that neighbor offsets and extents
// never overflow int64.
const maxCell = 1 << 62

// Spatial hash primes (Teschner et al.).
const (
	primeX = 73856093
	primeY = 19349663
	primeZ = 83492791
)

// Cell is an integer grid coordinate.
type Cell [3]int64

// CellOf returns the cell containing p for the given cell size.
// p must hold three finite coordinates within range (see CheckPoint).
func CellOf[T tensor.Float](p []T, cellSize float64) Cell {
	return Cell{
		int64(math.Floor(float64(p[0]) / cellSize)),
		int64(math.Floor(float64(p[1]) / cellSize)),
		int64(math.Floor(float64(p[2]) / cellSize)),
	}
}

// Bucket hashes cell c into [0, size).
func Bucket(c Cell, size int64) int64 {
	h := uint64(c[0])*primeX ^ uint64(c[1])*primeY ^ uint64(c[2])*primeZ
	return int64(h % uint64(size))
}

// CheckPoint verifies that the point at flat offset 3*i of xyz is finite and
// can be placed on a grid with the given cell size.
func CheckPoint[T tensor.Float](name string, xyz []T, i int64, cellSize float64) error {
	for k := int64(0); k < 3; k++ {
		v := float64(xyz[3*i+k])
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &CoordinateError{Name: name, Index: i, Value: v}
		}
		if math.Abs(v/cellSize) >= maxCell {
			return &CoordinateError{Name: name, Index: i, Value: v}
		}
	}
	return nil
}

// spanSlack widens the scanned box past the radius so that a point whose
// computed distance rounds down to the radius is still reached.
const spanSlack = 1e-5

// MaxNeighborhood is the largest number of cells in a Span.
const MaxNeighborhood = 4 * 4 * 4

// Span returns the inclusive block of cells that can hold a point within
// radius of q. It covers three or four cells per axis.
func Span[T tensor.Float](q []T, radius float64) (lo, hi Cell) {
	reach := radius * (1 + spanSlack)
	for k := range 3 {
		v := float64(q[k])
		lo[k] = int64(math.Floor((v - reach) / radius))
		hi[k] = min(int64(math.Floor((v+reach)/radius)), lo[k]+3)
	}
	return lo, hi
}

// Neighborhood writes the distinct buckets of the cells in [lo, hi] into dst
// and returns the filled prefix. Colliding cells yield one bucket.
func Neighborhood(lo, hi Cell, base, size int64, dst *[MaxNeighborhood]int64) []int64 {
	n := 0
	for x := lo[0]; x <= hi[0]; x++ {
		for y := lo[1]; y <= hi[1]; y++ {
			for z := lo[2]; z <= hi[2]; z++ {
				b := base + Bucket(Cell{x, y, z}, size)
				if !slices.Contains(dst[:n], b) {
					dst[n] = b
					n++
				}
			}
		}
	}
	return dst[:n]
}
