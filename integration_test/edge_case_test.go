package integration_test

import (
	"context"
	"math"
	"testing"

	"github.com/hupe1980/pointgrid"
	"github.com/hupe1980/pointgrid/tensor"
	"github.com/hupe1980/pointgrid/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func selfSearch[T tensor.Float](t *testing.T, xyz []T, radius float64, ignore bool) *pointgrid.NeighborResult[T, int64] {
	t.Helper()
	ctx := context.Background()
	points, err := tensor.Points(xyz)
	require.NoError(t, err)
	rs := tensor.Vector([]int64{0, int64(points.Len())})

	tbl, err := pointgrid.BuildSpatialHashTable(ctx, points, radius, rs, 1.0/4, 1<<10)
	require.NoError(t, err)
	res, err := pointgrid.FixedRadiusSearch[T, int64](ctx, points, points, radius, rs, rs, tbl, pointgrid.L2, ignore, true)
	require.NoError(t, err)
	return res
}

func TestEdgeCases(t *testing.T) {
	ctx := context.Background()

	t.Run("DuplicatePoints", func(t *testing.T) {
		xyz := make([]float32, 0, 300)
		for range 100 {
			xyz = append(xyz, 0.25, 0.5, 0.75)
		}
		res := selfSearch(t, xyz, 0.1, true)
		for q := range res.NumQueries() {
			assert.Len(t, res.Neighbors(q), 99)
		}
	})

	t.Run("CoincidentQueriesInSeparateBuffer", func(t *testing.T) {
		xyz := []float32{0, 0, 0, 0.05, 0, 0}
		points, err := tensor.Points(xyz)
		require.NoError(t, err)
		queries, err := tensor.Points(append([]float32(nil), xyz...))
		require.NoError(t, err)
		rs := tensor.Vector([]int64{0, 2})

		tbl, err := pointgrid.BuildSpatialHashTable(ctx, points, 0.1, rs, 1, 16)
		require.NoError(t, err)
		res, err := pointgrid.FixedRadiusSearch[float32, int32](ctx, points, queries, 0.1, rs, rs, tbl, pointgrid.L2, true, false)
		require.NoError(t, err)

		// Each query drops the point at its own position, not its own index.
		assert.Equal(t, []int32{1}, res.Neighbors(0))
		assert.Equal(t, []int32{0}, res.Neighbors(1))
	})

	t.Run("AcrossOrigin", func(t *testing.T) {
		res := selfSearch(t, []float64{-0.05, -0.05, -0.05, 0.04, 0.04, 0.04}, 0.2, true)
		assert.Equal(t, []int64{1}, res.Neighbors(0))
		assert.Equal(t, []int64{0}, res.Neighbors(1))
	})

	t.Run("ExactlyAtRadius", func(t *testing.T) {
		res := selfSearch(t, []float64{0, 0, 0, 0.5, 0, 0, 0, 0.75, 0}, 0.5, true)
		assert.Equal(t, []int64{1}, res.Neighbors(0))
		assert.Equal(t, []float64{0.25}, res.Distances(0))
	})

	t.Run("FarFromOrigin", func(t *testing.T) {
		rng := testutil.NewRNG(8)
		xyz := rng.UniformPoints64(500, 1)
		for i := range xyz {
			xyz[i] += 1e6
		}
		res := selfSearch(t, xyz, 0.1, true)
		rs := []int64{0, 500}
		want := testutil.BruteForceRadius(xyz, xyz, rs, rs, 0.1, pointgrid.L2, true)
		testutil.SameNeighborSets(t, want, res.NeighborsIndex.Data(), res.NeighborsRowSplits.Data())
	})

	t.Run("CoordinateOutOfGridRange", func(t *testing.T) {
		points, err := tensor.Points([]float64{1e30, 0, 0})
		require.NoError(t, err)
		_, err = pointgrid.BuildSpatialHashTable(ctx, points, 1e-10, tensor.Vector([]int64{0, 1}), 1, 16)
		require.ErrorIs(t, err, pointgrid.ErrInvalidArgument)
	})

	t.Run("NaNPoint", func(t *testing.T) {
		points, err := tensor.Points([]float32{0, float32(math.NaN()), 0})
		require.NoError(t, err)
		_, err = pointgrid.BuildSpatialHashTable(ctx, points, 1, tensor.Vector([]int64{0, 1}), 1, 16)
		require.ErrorIs(t, err, pointgrid.ErrInvalidArgument)
	})

	t.Run("SinglePointPerItem", func(t *testing.T) {
		xyz := []float32{0, 0, 0, 0, 0, 0, 0, 0, 0}
		points, err := tensor.Points(xyz)
		require.NoError(t, err)
		rs := tensor.Vector([]int64{0, 1, 2, 3})

		tbl, err := pointgrid.BuildSpatialHashTable(ctx, points, 1, rs, 1.0/64, 3)
		require.NoError(t, err)
		assert.Equal(t, int64(3), tbl.NumBuckets())

		res, err := pointgrid.FixedRadiusSearch[float32, int32](ctx, points, points, 1, rs, rs, tbl, pointgrid.L2, false, false)
		require.NoError(t, err)
		// Identical coordinates in different items never meet.
		for q := range 3 {
			assert.Equal(t, []int32{int32(q)}, res.Neighbors(q))
		}
	})
}
