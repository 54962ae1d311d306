package hashgrid

import (
	"sync"

	"github.com/hupe1980/pointgrid/internal/assemble"
	"github.com/hupe1980/pointgrid/internal/ragged"
	"github.com/hupe1980/pointgrid/tensor"
)

// Build constructs a table over xyz (flat, three coordinates per point)
// partitioned into batch items by ix.
//
// Construction runs in three parallel passes: one validates every point and
// gathers the per-item cell extents used for sizing, then the assembler's
// Bin primitive histograms points per bucket and scatters their indices.
func Build[T tensor.Float](xyz []T, ix *ragged.Indexer, cfg Config, asm *assemble.Assembler) (*Table, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	numPoints := len(xyz) / 3
	batches := ix.Batches()

	extents, err := scanExtents(xyz, ix, cfg.Radius, asm)
	if err != nil {
		return nil, err
	}

	counts := make([]int64, batches)
	for b := range batches {
		counts[b] = ix.Count(b)
	}
	sizes, err := PlanSizes(cfg, counts, extents)
	if err != nil {
		return nil, err
	}
	splits := assemble.ExclusiveScan(sizes)

	// Points are visited in global order, so the batch item of a point is
	// found by Locate rather than carried through the bin pass.
	bucketOf := func(i int) int64 {
		b, _ := ix.Locate(int64(i))
		cell := CellOf(xyz[3*i:3*i+3], cfg.Radius)
		return splits[b] + Bucket(cell, sizes[b])
	}
	cellSplits, index := asm.Bin(numPoints, splits[batches], bucketOf)

	return &Table{
		Index:      index,
		CellSplits: cellSplits,
		Splits:     splits,
		Radius:     cfg.Radius,
	}, nil
}

// scanExtents validates every point and returns the cell extent of each
// batch item.
func scanExtents[T tensor.Float](xyz []T, ix *ragged.Indexer, cellSize float64, asm *assemble.Assembler) ([]Extent, error) {
	extents := make([]Extent, ix.Batches())
	for b := range extents {
		extents[b] = EmptyExtent()
	}

	var mu sync.Mutex
	err := asm.Runner.ForErr(len(xyz)/3, func(lo, hi int) error {
		first, _ := ix.Locate(int64(lo))
		last, _ := ix.Locate(int64(hi - 1))
		local := make([]Extent, last-first+1)
		for k := range local {
			local[k] = EmptyExtent()
		}

		b := first
		_, end := ix.Range(b)
		for i := lo; i < hi; i++ {
			if err := CheckPoint("points", xyz, int64(i), cellSize); err != nil {
				return err
			}
			for int64(i) >= end {
				b++
				_, end = ix.Range(b)
			}
			local[b-first].Add(CellOf(xyz[3*i:3*i+3], cellSize))
		}

		mu.Lock()
		defer mu.Unlock()
		for k, e := range local {
			extents[first+k].Merge(e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return extents, nil
}
