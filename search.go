package pointgrid

import (
	"context"
	"fmt"
	"iter"
	"time"
	"unsafe"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/hupe1980/pointgrid/distance"
	"github.com/hupe1980/pointgrid/internal/neighbors"
	"github.com/hupe1980/pointgrid/internal/ragged"
	"github.com/hupe1980/pointgrid/tensor"
)

// Metric selects the distance used to accept neighbors.
type Metric = distance.Metric

const (
	L2   = distance.MetricL2
	L1   = distance.MetricL1
	Linf = distance.MetricLinf
)

// ParseMetric parses "L1", "L2" or "Linf".
func ParseMetric(s string) (Metric, error) {
	m, err := distance.ParseMetric(s)
	if err != nil {
		return 0, translateError(err)
	}
	return m, nil
}

// NeighborResult is the CSR neighbor list of a search.
type NeighborResult[T tensor.Float, I tensor.Index] struct {
	// NeighborsIndex holds accepted point indices grouped by query, in
	// bucket scan order.
	NeighborsIndex *tensor.Tensor[I]
	// NeighborsRowSplits holds one offset per query plus the total.
	NeighborsRowSplits *tensor.Tensor[int64]
	// NeighborsDistance is aligned with NeighborsIndex. Distances are
	// squared for L2. It is empty unless distances were requested.
	NeighborsDistance *tensor.Tensor[T]
}

// NumQueries returns the number of queries.
func (r *NeighborResult[T, I]) NumQueries() int { return r.NeighborsRowSplits.Len() - 1 }

// Total returns the number of neighbors over all queries.
func (r *NeighborResult[T, I]) Total() int64 {
	splits := r.NeighborsRowSplits.Data()
	return splits[len(splits)-1]
}

// Neighbors returns the neighbor indices of query q.
func (r *NeighborResult[T, I]) Neighbors(q int) []I {
	lo, hi := r.span(q)
	return r.NeighborsIndex.Data()[lo:hi]
}

// Distances returns the neighbor distances of query q, or nil if the
// search did not return distances.
func (r *NeighborResult[T, I]) Distances(q int) []T {
	if r.NeighborsDistance.Len() == 0 {
		return nil
	}
	lo, hi := r.span(q)
	return r.NeighborsDistance.Data()[lo:hi]
}

// Neighborhood returns the neighbors of query q as a set.
func (r *NeighborResult[T, I]) Neighborhood(q int) *roaring64.Bitmap {
	bm := roaring64.New()
	for _, i := range r.Neighbors(q) {
		bm.Add(uint64(i))
	}
	return bm
}

// All iterates over queries and their neighbor indices.
//
//	for q, nbrs := range res.All() {
//	    fmt.Println(q, nbrs)
//	}
func (r *NeighborResult[T, I]) All() iter.Seq2[int, []I] {
	return func(yield func(int, []I) bool) {
		for q := range r.NumQueries() {
			if !yield(q, r.Neighbors(q)) {
				return
			}
		}
	}
}

func (r *NeighborResult[T, I]) span(q int) (int64, int64) {
	splits := r.NeighborsRowSplits.Data()
	return splits[q], splits[q+1]
}

// FixedRadiusSearch finds, for every query, the points within radius under
// metric, using a table built by BuildSpatialHashTable over the same points
// and radius. Points and queries are [n, 3] and [m, 3] tensors partitioned by
// their row splits into the same number of batch items; a query only sees
// points of its own item.
//
// With ignoreQueryPoint, a query does not report itself when queries and
// points are the same tensor, and otherwise does not report points at exactly
// its coordinates. The neighbor index type I must address every point.
//
// Errors match ErrInvalidArgument, ErrResourceLimitExceeded,
// ErrDeviceMismatch or ErrPreconditionViolation; no partial result is
// returned.
func FixedRadiusSearch[T tensor.Float, I tensor.Index](
	ctx context.Context,
	points, queries *tensor.Tensor[T],
	radius float64,
	pointsRowSplits, queriesRowSplits *tensor.Tensor[int64],
	table *SpatialHashTable,
	metric Metric,
	ignoreQueryPoint bool,
	returnDistances bool,
	optFns ...Option,
) (res *NeighborResult[T, I], err error) {
	o := applyOptions(optFns)

	start := time.Now()
	var numQueries int
	defer func() {
		var total int64
		if res != nil {
			total = res.Total()
		}
		id := ""
		if table != nil {
			id = table.ID()
		}
		elapsed := time.Since(start)
		o.metricsCollector.RecordSearch(numQueries, total, elapsed, err)
		o.logger.WithRadius(radius).LogSearch(ctx, SearchEvent{
			Table:     id,
			Queries:   numQueries,
			Neighbors: total,
			Metric:    metric.String(),
			Duration:  elapsed,
		}, err)
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if points == nil || queries == nil || pointsRowSplits == nil || queriesRowSplits == nil {
		return nil, fmt.Errorf("%w: points, queries and row splits must not be nil", ErrInvalidArgument)
	}
	if table == nil {
		return nil, fmt.Errorf("%w: hash table must not be nil", ErrInvalidArgument)
	}
	dev, err := checkDevice(points, queries, pointsRowSplits, queriesRowSplits, table)
	if err != nil {
		return nil, err
	}
	for _, c := range []struct {
		name  string
		check func() error
	}{
		{"points", func() error { return points.CheckShape("points", -1, 3) }},
		{"queries", func() error { return queries.CheckShape("queries", -1, 3) }},
		{"points_row_splits", func() error { return pointsRowSplits.CheckShape("points_row_splits", -1) }},
		{"queries_row_splits", func() error { return queriesRowSplits.CheckShape("queries_row_splits", -1) }},
	} {
		if err := c.check(); err != nil {
			return nil, translateError(err)
		}
	}
	numQueries = queries.Len()

	pix, err := ragged.New("points_row_splits", pointsRowSplits.Data(), points.Len())
	if err != nil {
		return nil, translateError(err)
	}
	qix, err := ragged.NewWithLookup("queries_row_splits", queriesRowSplits.Data(), numQueries)
	if err != nil {
		return nil, translateError(err)
	}

	rsv := o.resources.Reservation()
	defer rsv.Release()
	// Row splits and the per-query lookup come first; the neighbor buffers
	// are reserved once their size is known.
	if err := rsv.Add(8*int64(numQueries+1) + 4*int64(numQueries)); err != nil {
		return nil, translateError(err)
	}
	if err := o.resources.AcquireCall(ctx); err != nil {
		return nil, err
	}
	defer o.resources.ReleaseCall()

	perNeighbor := int64(tensor.WidthOf[I]() / 8)
	if returnDistances {
		var zero T
		perNeighbor += int64(unsafe.Sizeof(zero))
	}

	out, err := neighbors.Search[T, I](points.Data(), queries.Data(), pix, qix, table.tbl, neighbors.Params{
		Radius:           radius,
		Metric:           metric,
		IgnoreQueryPoint: ignoreQueryPoint,
		ReturnDistances:  returnDistances,
		SameCloud:        points.Aliases(queries),
		Reserve: func(n int64) error {
			return rsv.Add(n * perNeighbor)
		},
	}, o.assembler())
	if err != nil {
		return nil, translateError(err)
	}

	return &NeighborResult[T, I]{
		NeighborsIndex:     tensor.Vector(out.Index).To(dev),
		NeighborsRowSplits: tensor.Vector(out.RowSplits).To(dev),
		NeighborsDistance:  tensor.Vector(out.Distance).To(dev),
	}, nil
}
