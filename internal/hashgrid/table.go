package hashgrid

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"
)

// Table is a spatial hash table over one points buffer at one radius.
type Table struct {
	// Index holds global point indices grouped by bucket.
	Index []int64
	// CellSplits holds the CSR offsets of every bucket into Index.
	CellSplits []int64
	// Splits holds the first bucket of every batch item, plus a terminator.
	Splits []int64
	// Radius is the cell size the table was built with. Zero when unknown,
	// e.g. for tables assembled from raw arrays.
	Radius float64
}

// Batches returns the number of batch items in the table.
func (t *Table) Batches() int { return len(t.Splits) - 1 }

// NumBuckets returns the total bucket count.
func (t *Table) NumBuckets() int64 { return t.Splits[len(t.Splits)-1] }

// Buckets returns the first bucket and the bucket count of item b.
func (t *Table) Buckets(b int) (base, size int64) {
	return t.Splits[b], t.Splits[b+1] - t.Splits[b]
}

// Bucket returns the point indices stored in global bucket k.
func (t *Table) Bucket(k int64) []int64 {
	return t.Index[t.CellSplits[k]:t.CellSplits[k+1]]
}

// Validate checks that t is structurally consistent and fits numPoints
// points in batches items. It cannot detect a table built from different
// coordinates.
func (t *Table) Validate(numPoints int, batches int) error {
	if len(t.Splits) != batches+1 {
		return fmt.Errorf("%w: table has %d batch items, inputs have %d", ErrTableMismatch, len(t.Splits)-1, batches)
	}
	if t.Splits[0] != 0 {
		return fmt.Errorf("%w: hash_table_splits must start at 0", ErrTableMismatch)
	}
	for b := 0; b < batches; b++ {
		if t.Splits[b+1] <= t.Splits[b] {
			return fmt.Errorf("%w: batch item %d has no buckets", ErrTableMismatch, b)
		}
	}
	if int64(len(t.CellSplits)) != t.NumBuckets()+1 {
		return fmt.Errorf("%w: hash_table_cell_splits has %d entries, want %d", ErrTableMismatch, len(t.CellSplits), t.NumBuckets()+1)
	}
	if len(t.Index) != numPoints {
		return fmt.Errorf("%w: hash_table_index has %d entries, want %d", ErrTableMismatch, len(t.Index), numPoints)
	}
	if t.CellSplits[0] != 0 || t.CellSplits[len(t.CellSplits)-1] != int64(numPoints) {
		return fmt.Errorf("%w: hash_table_cell_splits must span [0, %d]", ErrTableMismatch, numPoints)
	}
	for k := 1; k < len(t.CellSplits); k++ {
		if t.CellSplits[k] < t.CellSplits[k-1] {
			return fmt.Errorf("%w: hash_table_cell_splits decreases at %d", ErrTableMismatch, k)
		}
	}
	for i, p := range t.Index {
		if p < 0 || p >= int64(numPoints) {
			return fmt.Errorf("%w: hash_table_index[%d] = %d is out of range", ErrTableMismatch, i, p)
		}
	}
	return nil
}

// Stats describes bucket occupancy.
type Stats struct {
	Batches    int
	Points     int64
	Buckets    int64
	Occupied   int64
	MaxChain   int64
	MeanChain  float64 // points per occupied bucket
	LoadFactor float64 // points per bucket
}

// Stats computes occupancy statistics.
func (t *Table) Stats() Stats {
	buckets := t.NumBuckets()
	occupied := bitset.New(uint(buckets))
	var maxChain int64
	for k := int64(0); k < buckets; k++ {
		n := t.CellSplits[k+1] - t.CellSplits[k]
		if n > 0 {
			occupied.Set(uint(k))
		}
		maxChain = max(maxChain, n)
	}

	s := Stats{
		Batches:  t.Batches(),
		Points:   int64(len(t.Index)),
		Buckets:  buckets,
		Occupied: int64(occupied.Count()),
		MaxChain: maxChain,
	}
	if s.Occupied > 0 {
		s.MeanChain = float64(s.Points) / float64(s.Occupied)
	}
	if buckets > 0 {
		s.LoadFactor = float64(s.Points) / float64(buckets)
	}
	return s
}
