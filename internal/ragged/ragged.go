// Package ragged translates between a flat global index space and
// (batch item, local index) pairs described by row splits.
//
// Row splits are a CSR-style boundary array: first element 0, last element
// the total element count, non-decreasing, one entry per batch item plus one.
package ragged

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrMalformed is the sentinel wrapped by every row-split validation failure.
	ErrMalformed = errors.New("malformed row splits")

	// ErrBatchMismatch is returned when two row-split arrays describe a
	// different number of batch items.
	ErrBatchMismatch = errors.New("row splits describe different batch sizes")
)

// SplitsError describes why a row-split array was rejected.
type SplitsError struct {
	Name   string
	Reason string
}

func (e *SplitsError) Error() string {
	return fmt.Sprintf("%s: %s", e.Name, e.Reason)
}

func (e *SplitsError) Unwrap() error { return ErrMalformed }

// Validate checks that splits partitions total elements.
func Validate(name string, splits []int64, total int) error {
	if len(splits) < 2 {
		return &SplitsError{Name: name, Reason: fmt.Sprintf("need at least 2 entries, got %d", len(splits))}
	}
	if splits[0] != 0 {
		return &SplitsError{Name: name, Reason: fmt.Sprintf("first entry must be 0, got %d", splits[0])}
	}
	for i := 1; i < len(splits); i++ {
		if splits[i] < splits[i-1] {
			return &SplitsError{Name: name, Reason: fmt.Sprintf("entry %d (%d) is smaller than entry %d (%d)", i, splits[i], i-1, splits[i-1])}
		}
	}
	if last := splits[len(splits)-1]; last != int64(total) {
		return &SplitsError{Name: name, Reason: fmt.Sprintf("last entry must equal the element count %d, got %d", total, last)}
	}
	return nil
}

// Indexer maps global indices to batch items and back.
// It is immutable and safe for concurrent use.
type Indexer struct {
	splits []int64
	lookup []int32 // batch item per element, nil unless built with a lookup
}

// New validates splits against total and returns an Indexer over them.
// The slice is retained, not copied.
func New(name string, splits []int64, total int) (*Indexer, error) {
	if err := Validate(name, splits, total); err != nil {
		return nil, err
	}
	return &Indexer{splits: splits}, nil
}

// NewWithLookup is like New but precomputes a per-element table so Locate
// runs in O(1) instead of O(log batches).
func NewWithLookup(name string, splits []int64, total int) (*Indexer, error) {
	ix, err := New(name, splits, total)
	if err != nil {
		return nil, err
	}
	ix.lookup = make([]int32, total)
	for b := 0; b < ix.Batches(); b++ {
		for i := splits[b]; i < splits[b+1]; i++ {
			ix.lookup[i] = int32(b)
		}
	}
	return ix, nil
}

// Single returns an Indexer describing one batch item of total elements.
func Single(total int) *Indexer {
	return &Indexer{splits: []int64{0, int64(total)}}
}

// Splits returns the underlying row splits.
func (ix *Indexer) Splits() []int64 { return ix.splits }

// Batches returns the number of batch items.
func (ix *Indexer) Batches() int { return len(ix.splits) - 1 }

// Total returns the number of elements across all batch items.
func (ix *Indexer) Total() int64 { return ix.splits[len(ix.splits)-1] }

// Range returns the half-open global index range [start, end) of item b.
func (ix *Indexer) Range(b int) (start, end int64) {
	return ix.splits[b], ix.splits[b+1]
}

// Count returns the number of elements in item b.
func (ix *Indexer) Count(b int) int64 {
	return ix.splits[b+1] - ix.splits[b]
}

// Locate returns the batch item holding global index g and g's index within
// that item. g must be in [0, Total()).
func (ix *Indexer) Locate(g int64) (batch int, local int64) {
	if ix.lookup != nil {
		b := int(ix.lookup[g])
		return b, g - ix.splits[b]
	}
	// First split strictly greater than g closes the owning item; empty
	// items share a boundary and are skipped naturally.
	b := sort.Search(len(ix.splits), func(i int) bool { return ix.splits[i] > g }) - 1
	return b, g - ix.splits[b]
}

// Global returns the global index of element local of item b.
func (ix *Indexer) Global(b int, local int64) int64 {
	return ix.splits[b] + local
}

// SameBatchCount returns ErrBatchMismatch unless a and b describe the same
// number of batch items.
func SameBatchCount(a, b *Indexer) error {
	if a.Batches() != b.Batches() {
		return fmt.Errorf("%w: %d vs %d", ErrBatchMismatch, a.Batches(), b.Batches())
	}
	return nil
}
