package testutil

import (
	"slices"
	"testing"

	"github.com/hupe1980/pointgrid/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SameNeighborSets asserts that a CSR neighbor list holds exactly the
// expected neighbors of every query, ignoring order within a query.
func SameNeighborSets[I tensor.Index](t testing.TB, want [][]Neighbor, index []I, rowSplits []int64) {
	t.Helper()

	require.Len(t, rowSplits, len(want)+1)
	require.Equal(t, int64(len(index)), rowSplits[len(want)])

	for q, w := range want {
		got := make([]int64, 0, rowSplits[q+1]-rowSplits[q])
		for _, idx := range index[rowSplits[q]:rowSplits[q+1]] {
			got = append(got, int64(idx))
		}
		slices.Sort(got)

		expected := make([]int64, len(w))
		for i, n := range w {
			expected[i] = n.Index
		}
		slices.Sort(expected)

		assert.Equal(t, expected, got, "query %d", q)
	}
}
