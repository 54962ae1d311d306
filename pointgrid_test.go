package pointgrid

import (
	"context"
	"testing"

	"github.com/hupe1980/pointgrid/tensor"
	"github.com/hupe1980/pointgrid/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustPoints[T tensor.Float](t *testing.T, xyz []T) *tensor.Tensor[T] {
	t.Helper()
	p, err := tensor.Points(xyz)
	require.NoError(t, err)
	return p
}

func splitsOf(s ...int64) *tensor.Tensor[int64] {
	return tensor.Vector(s)
}

func TestFixedRadiusSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("UnitCube", func(t *testing.T) {
		cube := mustPoints(t, testutil.UnitCube[float32]())
		splits := splitsOf(0, 8)

		tbl, err := BuildSpatialHashTable(ctx, cube, 1.0, splits, 1, 1<<20)
		require.NoError(t, err)

		res, err := FixedRadiusSearch[float32, int32](ctx, cube, cube, 1.0, splits, splits, tbl, L2, true, true)
		require.NoError(t, err)

		assert.Equal(t, 8, res.NumQueries())
		assert.Equal(t, []int64{0, 3, 6, 9, 12, 15, 18, 21, 24}, res.NeighborsRowSplits.Data())
		assert.Equal(t, int64(24), res.Total())
		for q, nbrs := range res.All() {
			require.Len(t, nbrs, 3)
			for k, n := range nbrs {
				diff := int(n) ^ q
				assert.Contains(t, []int{1, 2, 4}, diff, "query %d neighbor %d", q, n)
				assert.Equal(t, float32(1), res.Distances(q)[k])
			}
		}

		hood := res.Neighborhood(0)
		assert.Equal(t, uint64(3), hood.GetCardinality())
		assert.True(t, hood.Contains(1))
		assert.True(t, hood.Contains(2))
		assert.True(t, hood.Contains(4))
	})

	t.Run("IncludesQueryPoint", func(t *testing.T) {
		cube := mustPoints(t, testutil.UnitCube[float64]())
		splits := splitsOf(0, 8)

		tbl, err := BuildSpatialHashTable(ctx, cube, 1.0, splits, 1, 1<<20)
		require.NoError(t, err)

		res, err := FixedRadiusSearch[float64, int64](ctx, cube, cube, 1.0, splits, splits, tbl, L2, false, false)
		require.NoError(t, err)

		for q := range 8 {
			assert.Len(t, res.Neighbors(q), 4)
			assert.True(t, res.Neighborhood(q).Contains(uint64(q)))
		}
		assert.Equal(t, 0, res.NeighborsDistance.Len())
		assert.Nil(t, res.Distances(0))
	})

	t.Run("MatchesBruteForce", func(t *testing.T) {
		rng := testutil.NewRNG(7)
		xyz := rng.UniformPoints(600, 4)
		qxyz := rng.UniformPoints(250, 4)
		pRS := rng.RowSplits(600, 4)
		qRS := rng.RowSplits(250, 4)

		points := mustPoints(t, xyz)
		queries := mustPoints(t, qxyz)

		for _, m := range []Metric{L1, L2, Linf} {
			t.Run(m.String(), func(t *testing.T) {
				tbl, err := BuildSpatialHashTable(ctx, points, 0.4, splitsOf(pRS...), 1.0/8, 1<<16)
				require.NoError(t, err)

				res, err := FixedRadiusSearch[float32, int32](ctx, points, queries, 0.4,
					splitsOf(pRS...), splitsOf(qRS...), tbl, m, false, true)
				require.NoError(t, err)

				want := testutil.BruteForceRadius(xyz, qxyz, pRS, qRS, 0.4, m, false)
				testutil.SameNeighborSets(t, want, res.NeighborsIndex.Data(), res.NeighborsRowSplits.Data())
			})
		}
	})

	t.Run("SelfSearchSkipsOwnIndex", func(t *testing.T) {
		rng := testutil.NewRNG(11)
		xyz := rng.ClusteredPoints(400, 5, 0.05)
		rs := rng.RowSplits(400, 3)
		points := mustPoints(t, xyz)

		tbl, err := BuildSpatialHashTable(ctx, points, 0.1, splitsOf(rs...), 1.0/4, 1<<12)
		require.NoError(t, err)

		res, err := FixedRadiusSearch[float32, int64](ctx, points, points, 0.1,
			splitsOf(rs...), splitsOf(rs...), tbl, L2, true, false)
		require.NoError(t, err)

		want := testutil.BruteForceRadius(xyz, xyz, rs, rs, 0.1, L2, true)
		testutil.SameNeighborSets(t, want, res.NeighborsIndex.Data(), res.NeighborsRowSplits.Data())
	})

	t.Run("WorkerCountDoesNotChangeSets", func(t *testing.T) {
		rng := testutil.NewRNG(3)
		xyz := rng.UniformPoints(500, 2)
		points := mustPoints(t, xyz)
		rs := splitsOf(0, 500)

		run := func(workers int) *NeighborResult[float32, int32] {
			tbl, err := BuildSpatialHashTable(ctx, points, 0.3, rs, 1.0/16, 1<<12, WithWorkers(workers), WithGrainSize(16))
			require.NoError(t, err)
			res, err := FixedRadiusSearch[float32, int32](ctx, points, points, 0.3, rs, rs, tbl, L2, false, false,
				WithWorkers(workers), WithGrainSize(16))
			require.NoError(t, err)
			return res
		}

		a, b := run(1), run(8)
		require.Equal(t, a.NeighborsRowSplits.Data(), b.NeighborsRowSplits.Data())
		for q := range a.NumQueries() {
			assert.True(t, a.Neighborhood(q).Equals(b.Neighborhood(q)), "query %d", q)
		}
	})

	t.Run("EmptyBatchItems", func(t *testing.T) {
		cube := mustPoints(t, testutil.UnitCube[float32]())
		pRS := splitsOf(0, 0, 8, 8)
		qRS := splitsOf(0, 4, 4, 8)

		tbl, err := BuildSpatialHashTable(ctx, cube, 1.0, pRS, 1, 1<<10)
		require.NoError(t, err)
		assert.Equal(t, 3, tbl.Batches())

		res, err := FixedRadiusSearch[float32, int32](ctx, cube, cube, 1.0, pRS, qRS, tbl, L2, false, false)
		require.NoError(t, err)

		// Queries 0-3 and 4-7 fall into items without points.
		assert.Equal(t, int64(0), res.Total())
		assert.Equal(t, []int64{0, 0, 0, 0, 0, 0, 0, 0, 0}, res.NeighborsRowSplits.Data())
	})

	t.Run("NoPoints", func(t *testing.T) {
		empty := mustPoints(t, []float32{})
		queries := mustPoints(t, []float32{0, 0, 0})

		tbl, err := BuildSpatialHashTable(ctx, empty, 1.0, splitsOf(0, 0), 1.0/64, 16)
		require.NoError(t, err)
		assert.Equal(t, int64(1), tbl.NumBuckets())

		res, err := FixedRadiusSearch[float32, int32](ctx, empty, queries, 1.0, splitsOf(0, 0), splitsOf(0, 1), tbl, L2, false, true)
		require.NoError(t, err)
		assert.Equal(t, []int64{0, 0}, res.NeighborsRowSplits.Data())
	})

	t.Run("RecordsMetrics", func(t *testing.T) {
		cube := mustPoints(t, testutil.UnitCube[float32]())
		splits := splitsOf(0, 8)
		mc := &BasicMetricsCollector{}

		tbl, err := BuildSpatialHashTable(ctx, cube, 1.0, splits, 1, 1<<20, WithMetricsCollector(mc))
		require.NoError(t, err)
		_, err = FixedRadiusSearch[float32, int32](ctx, cube, cube, 1.0, splits, splits, tbl, L2, true, false, WithMetricsCollector(mc))
		require.NoError(t, err)
		_, err = FixedRadiusSearch[float32, int32](ctx, cube, cube, -1, splits, splits, tbl, L2, true, false, WithMetricsCollector(mc))
		require.Error(t, err)

		stats := mc.GetStats()
		assert.Equal(t, int64(1), stats.BuildCount)
		assert.Equal(t, int64(8), stats.BuildPoints)
		assert.Equal(t, tbl.NumBuckets(), stats.BuildBuckets)
		assert.Equal(t, int64(2), stats.SearchCount)
		assert.Equal(t, int64(1), stats.SearchErrors)
		assert.Equal(t, int64(24), stats.SearchNeighbors)
	})
}

func TestBuildSpatialHashTable(t *testing.T) {
	ctx := context.Background()

	t.Run("Arrays", func(t *testing.T) {
		cube := mustPoints(t, testutil.UnitCube[float32]())
		tbl, err := BuildSpatialHashTable(ctx, cube, 0.5, splitsOf(0, 3, 8), 1, 1<<20)
		require.NoError(t, err)

		splits := tbl.Splits().Data()
		require.Len(t, splits, 3)
		assert.Equal(t, int64(0), splits[0])
		// One bucket per point: both cell boxes are larger than the items.
		assert.Equal(t, []int64{0, 3, 8}, splits)
		assert.Equal(t, []int{8}, tbl.Index().Shape())
		assert.Equal(t, tbl.NumBuckets()+1, int64(tbl.CellSplits().Len()))
		assert.Equal(t, 0.5, tbl.Radius())

		seen := make([]bool, 8)
		for _, i := range tbl.Index().Data() {
			seen[i] = true
		}
		assert.NotContains(t, seen, false)
	})

	t.Run("CapScalesItems", func(t *testing.T) {
		rng := testutil.NewRNG(5)
		points := mustPoints(t, rng.UniformPoints(1000, 10))
		tbl, err := BuildSpatialHashTable(ctx, points, 0.1, splitsOf(0, 500, 1000), 1, 64)
		require.NoError(t, err)
		assert.LessOrEqual(t, tbl.NumBuckets(), int64(64))
		assert.GreaterOrEqual(t, tbl.NumBuckets(), int64(2))

		s := tbl.Stats()
		assert.Equal(t, int64(1000), s.Points)
		assert.Equal(t, 2, s.Batches)
		assert.Greater(t, s.MaxChain, int64(1))
	})

	t.Run("ContextCanceled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		cube := mustPoints(t, testutil.UnitCube[float32]())
		_, err := BuildSpatialHashTable(cctx, cube, 1, splitsOf(0, 8), 1, 16)
		require.ErrorIs(t, err, context.Canceled)
	})
}
