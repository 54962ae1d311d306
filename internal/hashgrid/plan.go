package hashgrid

import (
	"fmt"
	"math"
	"math/bits"
)

// Config holds the build parameters of a table.
type Config struct {
	// Radius is the search radius and the cell edge length.
	Radius float64

	// SizeFactor is the target ratio of buckets to points per batch item.
	SizeFactor float64

	// MaxTableSize caps the total bucket count across all batch items.
	MaxTableSize int64
}

// Validate rejects parameters no table can be built with.
func (c Config) Validate() error {
	if !(c.Radius > 0) || math.IsInf(c.Radius, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidRadius, c.Radius)
	}
	if !(c.SizeFactor > 0 && c.SizeFactor <= 1) {
		return fmt.Errorf("%w: %v", ErrInvalidSizeFactor, c.SizeFactor)
	}
	if c.MaxTableSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidTableSize, c.MaxTableSize)
	}
	return nil
}

// Extent is the inclusive cell bounding box of one batch item.
// An Extent with Empty set covers no cells.
type Extent struct {
	Min, Max Cell
	Empty    bool
}

// EmptyExtent returns the identity for Extent.Add.
func EmptyExtent() Extent {
	return Extent{
		Min:   Cell{math.MaxInt64, math.MaxInt64, math.MaxInt64},
		Max:   Cell{math.MinInt64, math.MinInt64, math.MinInt64},
		Empty: true,
	}
}

// Add grows e to include c.
func (e *Extent) Add(c Cell) {
	for k := range 3 {
		e.Min[k] = min(e.Min[k], c[k])
		e.Max[k] = max(e.Max[k], c[k])
	}
	e.Empty = false
}

// Merge grows e to include o.
func (e *Extent) Merge(o Extent) {
	if o.Empty {
		return
	}
	e.Add(o.Min)
	e.Add(o.Max)
}

// Cells returns the number of cells in e, saturating at math.MaxInt64.
func (e Extent) Cells() int64 {
	if e.Empty {
		return 0
	}
	n := uint64(1)
	for k := range 3 {
		hi, lo := bits.Mul64(n, uint64(e.Max[k]-e.Min[k])+1)
		if hi != 0 || lo > math.MaxInt64 {
			return math.MaxInt64
		}
		n = lo
	}
	return int64(n)
}

// PlanSizes returns the bucket count of every batch item.
//
// Each item asks for max(1, floor(SizeFactor·points)) buckets, but never more
// than the number of cells its points span; an item without points gets one
// bucket. When the sum exceeds MaxTableSize every item keeps one bucket and
// the remaining MaxTableSize-B buckets are shared in proportion to what each
// item asked for beyond its first:
//
//	size' = 1 + floor((size-1)·(MaxTableSize-B) / (Σsize-B))
//
// so the result never exceeds the cap. A cap below the batch size fails with
// ErrTableTooSmall.
func PlanSizes(cfg Config, counts []int64, extents []Extent) ([]int64, error) {
	batches := int64(len(counts))
	if batches > cfg.MaxTableSize {
		return nil, fmt.Errorf("%w: %d batch items, cap %d", ErrTableTooSmall, batches, cfg.MaxTableSize)
	}

	sizes := make([]int64, len(counts))
	var total uint64
	for i, n := range counts {
		size := int64(1)
		if n > 0 {
			target := int64(cfg.SizeFactor * float64(n))
			size = max(1, min(target, extents[i].Cells()))
		}
		sizes[i] = size
		total += uint64(size)
	}
	if total <= uint64(cfg.MaxTableSize) {
		return sizes, nil
	}

	spare := uint64(cfg.MaxTableSize - batches)
	over := total - uint64(batches)
	for i, size := range sizes {
		hi, lo := bits.Mul64(uint64(size-1), spare)
		q, _ := bits.Div64(hi, lo, over)
		sizes[i] = 1 + int64(q)
	}
	return sizes, nil
}
