package prometheus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hupe1980/pointgrid"
	"github.com/hupe1980/pointgrid/tensor"
	pgtestutil "github.com/hupe1980/pointgrid/testutil"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	reg := prom.NewRegistry()
	c := NewCollector(reg, "pg")

	c.RecordBuild(100, 16, 2*time.Millisecond, nil)
	c.RecordBuild(5, 0, time.Millisecond, errors.New("boom"))
	c.RecordSearch(10, 42, time.Millisecond, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.ops.WithLabelValues("build", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ops.WithLabelValues("build", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ops.WithLabelValues("search", "success")))
	assert.Equal(t, 100.0, testutil.ToFloat64(c.points))
	assert.Equal(t, 10.0, testutil.ToFloat64(c.queries))
	assert.Equal(t, 42.0, testutil.ToFloat64(c.neighbors))

	n, err := testutil.GatherAndCount(reg, "pg_operation_latency_seconds")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestCollector_WithSearch(t *testing.T) {
	ctx := context.Background()
	reg := prom.NewRegistry()
	c := NewCollector(reg, "pg")

	points, err := tensor.Points(pgtestutil.UnitCube[float32]())
	require.NoError(t, err)
	splits := tensor.Vector([]int64{0, 8})

	tbl, err := pointgrid.BuildSpatialHashTable(ctx, points, 1, splits, 1, 64, pointgrid.WithMetricsCollector(c))
	require.NoError(t, err)
	_, err = pointgrid.FixedRadiusSearch[float32, int32](ctx, points, points, 1, splits, splits, tbl,
		pointgrid.L2, true, false, pointgrid.WithMetricsCollector(c))
	require.NoError(t, err)

	assert.Equal(t, 8.0, testutil.ToFloat64(c.points))
	assert.Equal(t, 24.0, testutil.ToFloat64(c.neighbors))
}
