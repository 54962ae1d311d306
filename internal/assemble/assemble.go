// Package assemble implements the count-then-fill primitive that produces
// compact CSR output from work items with data-dependent output sizes.
//
// Every item is visited twice. The first pass only counts; the counts are
// exclusive-prefix-summed into offsets; the second pass re-runs the item's
// emission logic and writes into its own disjoint sub-range. No output buffer
// is ever resized and no synchronization is needed in the fill pass.
package assemble

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/hupe1980/pointgrid/internal/parallel"
)

// ErrEmissionMismatch is returned when an item emits a different number of
// outputs in the fill pass than it counted in the count pass.
var ErrEmissionMismatch = errors.New("emission differs from counted size")

// Assembler runs count-then-fill passes on a parallel.Runner.
type Assembler struct {
	Runner parallel.Runner
}

// New returns an Assembler dispatching on r.
func New(r parallel.Runner) *Assembler {
	return &Assembler{Runner: r}
}

// ExclusiveScan turns counts into CSR offsets: the result has len(counts)+1
// entries, starts at 0 and ends with the total.
func ExclusiveScan(counts []int64) []int64 {
	offsets := make([]int64, len(counts)+1)
	var sum int64
	for i, c := range counts {
		offsets[i] = sum
		sum += c
	}
	offsets[len(counts)] = sum
	return offsets
}

// Count runs the count pass over n items and returns their offsets.
func (a *Assembler) Count(n int, count func(i int) int64) []int64 {
	counts := make([]int64, n)
	a.Runner.For(n, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			counts[i] = count(i)
		}
	})
	return ExclusiveScan(counts)
}

// Fill runs the fill pass. fill receives the item index and its output range
// [lo, hi) and returns how many outputs it wrote.
func (a *Assembler) Fill(offsets []int64, fill func(i int, lo, hi int64) int64) error {
	n := len(offsets) - 1
	return a.Runner.ForErr(n, func(lo, hi int) error {
		for i := lo; i < hi; i++ {
			if got := fill(i, offsets[i], offsets[i+1]); got != offsets[i+1]-offsets[i] {
				return fmt.Errorf("%w: item %d wrote %d, counted %d", ErrEmissionMismatch, i, got, offsets[i+1]-offsets[i])
			}
		}
		return nil
	})
}

// Assemble runs both passes for single-valued output and returns the
// offsets and the filled values.
func Assemble[V any](a *Assembler, n int, count func(i int) int64, emit func(i int, out []V) int) ([]int64, []V, error) {
	offsets := a.Count(n, count)
	values := make([]V, offsets[n])
	err := a.Fill(offsets, func(i int, lo, hi int64) int64 {
		return int64(emit(i, values[lo:hi]))
	})
	if err != nil {
		return nil, nil, err
	}
	return offsets, values, nil
}

// Bin groups n elements by bucket: key(i) returns the bucket of element i in
// [0, buckets). The count pass is a parallel atomic histogram; the fill pass
// scatters element ids through per-bucket atomic cursors seeded from the
// offsets. The order of elements inside one bucket is unspecified.
func (a *Assembler) Bin(n int, buckets int64, key func(i int) int64) (offsets []int64, items []int64) {
	hist := make([]atomic.Int64, buckets)
	a.Runner.For(n, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			hist[key(i)].Add(1)
		}
	})

	counts := make([]int64, buckets)
	for b := range hist {
		counts[b] = hist[b].Load()
	}
	offsets = ExclusiveScan(counts)

	// The histogram slots are reused as write cursors.
	for b := range hist {
		hist[b].Store(offsets[b])
	}
	items = make([]int64, n)
	a.Runner.For(n, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			pos := hist[key(i)].Add(1) - 1
			items[pos] = int64(i)
		}
	})
	return offsets, items
}
