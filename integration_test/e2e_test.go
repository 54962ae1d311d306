package integration_test

import (
	"context"
	"testing"

	"github.com/hupe1980/pointgrid"
	"github.com/hupe1980/pointgrid/blobstore"
	"github.com/hupe1980/pointgrid/resource"
	"github.com/hupe1980/pointgrid/tablestore"
	"github.com/hupe1980/pointgrid/tensor"
	"github.com/hupe1980/pointgrid/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// TestE2E_BuildStoreSearch builds a batched table, persists it on disk,
// reloads it in a fresh store and checks every metric against brute force.
func TestE2E_BuildStoreSearch(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(2024)

	const n, m, batches = 3000, 800, 6
	xyz := rng.UniformPoints(n, 8)
	qxyz := rng.UniformPoints(m, 8)
	pRS := rng.RowSplits(n, batches)
	qRS := rng.RowSplits(m, batches)

	points, err := tensor.Points(xyz)
	require.NoError(t, err)
	queries, err := tensor.Points(qxyz)
	require.NoError(t, err)

	mc := &pointgrid.BasicMetricsCollector{}
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 64 << 20, MaxConcurrentCalls: 4})
	opts := []pointgrid.Option{
		pointgrid.WithMetricsCollector(mc),
		pointgrid.WithResourceController(rc),
	}

	tbl, err := pointgrid.BuildSpatialHashTable(ctx, points, 0.5, tensor.Vector(pRS), 1.0/16, 1<<14, opts...)
	require.NoError(t, err)

	dir := t.TempDir()
	name, err := tablestore.New(blobstore.NewLocalStore(dir)).Save(ctx, tbl)
	require.NoError(t, err)

	loaded, err := tablestore.New(blobstore.NewLocalStore(dir)).Load(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, tbl.Stats(), loaded.Stats())

	for _, metric := range []pointgrid.Metric{pointgrid.L1, pointgrid.L2, pointgrid.Linf} {
		t.Run(metric.String(), func(t *testing.T) {
			cfg := pointgrid.DefaultConfig()
			cfg.Metric = metric
			cfg.ReturnDistances = true
			s, err := pointgrid.NewSearcher[float32, int32](cfg, opts...)
			require.NoError(t, err)

			res, err := s.Search(ctx, points, queries, 0.5,
				pointgrid.WithPointsRowSplits(tensor.Vector(pRS)),
				pointgrid.WithQueriesRowSplits(tensor.Vector(qRS)),
				pointgrid.WithHashTable(loaded))
			require.NoError(t, err)

			want := testutil.BruteForceRadius(xyz, qxyz, pRS, qRS, 0.5, metric, false)
			testutil.SameNeighborSets(t, want, res.NeighborsIndex.Data(), res.NeighborsRowSplits.Data())
		})
	}

	assert.Equal(t, int64(0), rc.MemoryUsage())
	assert.Equal(t, int64(3), mc.GetStats().SearchCount)
	assert.Equal(t, int64(0), mc.GetStats().SearchErrors)
}

// TestE2E_ConcurrentSearches shares one table between many goroutines.
func TestE2E_ConcurrentSearches(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(77)
	xyz := rng.ClusteredPoints(2000, 8, 0.05)
	points, err := tensor.Points(xyz)
	require.NoError(t, err)
	rs := tensor.Vector([]int64{0, 2000})

	tbl, err := pointgrid.BuildSpatialHashTable(ctx, points, 0.05, rs, 1.0/8, 1<<12)
	require.NoError(t, err)

	want := testutil.BruteForceRadius(xyz, xyz, rs.Data(), rs.Data(), 0.05, pointgrid.L2, true)

	rc := resource.NewController(resource.Config{MaxConcurrentCalls: 2})
	g, gctx := errgroup.WithContext(ctx)
	results := make([]*pointgrid.NeighborResult[float32, int64], 8)
	for i := range results {
		g.Go(func() error {
			res, err := pointgrid.FixedRadiusSearch[float32, int64](gctx, points, points, 0.05, rs, rs, tbl,
				pointgrid.L2, true, false, pointgrid.WithResourceController(rc), pointgrid.WithWorkers(2))
			results[i] = res
			return err
		})
	}
	require.NoError(t, g.Wait())

	for _, res := range results {
		testutil.SameNeighborSets(t, want, res.NeighborsIndex.Data(), res.NeighborsRowSplits.Data())
	}
}
