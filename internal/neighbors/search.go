// Package neighbors answers fixed-radius queries against a hashgrid.Table.
//
// For each query the cells reachable within the radius (hashgrid.Span) are
// mapped to their distinct buckets, every candidate in those buckets is re-tested
// against the exact metric, and accepted candidates are emitted through the
// assembler's count-then-fill passes. Within one query, neighbors appear in
// bucket scan order, not sorted by distance.
package neighbors

import (
	"errors"
	"fmt"

	"github.com/hupe1980/pointgrid/distance"
	"github.com/hupe1980/pointgrid/internal/assemble"
	"github.com/hupe1980/pointgrid/internal/hashgrid"
	"github.com/hupe1980/pointgrid/internal/ragged"
	"github.com/hupe1980/pointgrid/tensor"
)

// ErrIndexWidth is wrapped by IndexWidthError.
var ErrIndexWidth = errors.New("index width too small")

// IndexWidthError reports a point count not representable in the requested
// neighbor index type.
type IndexWidthError struct {
	Width  tensor.IndexWidth
	Points int
}

func (e *IndexWidthError) Error() string {
	return fmt.Sprintf("%d points cannot be indexed with %d-bit indices", e.Points, int(e.Width))
}

func (e *IndexWidthError) Unwrap() error { return ErrIndexWidth }

// Params selects the metric and output of a search.
type Params struct {
	Radius           float64
	Metric           distance.Metric
	IgnoreQueryPoint bool
	ReturnDistances  bool

	// SameCloud reports that points and queries are the same buffer. With
	// IgnoreQueryPoint it excludes a query's own index; otherwise candidates
	// that coincide with the query position are excluded.
	SameCloud bool

	// Reserve, if set, is called with the neighbor count between the two
	// passes, before the output buffers are allocated. An error aborts the
	// search.
	Reserve func(neighbors int64) error
}

// Result is the CSR neighbor list of a search.
type Result[T tensor.Float, I tensor.Index] struct {
	// Index holds the accepted point indices, grouped by query.
	Index []I
	// RowSplits holds one offset per query plus the total.
	RowSplits []int64
	// Distance is aligned with Index; squared for L2. Empty unless requested.
	Distance []T
}

// Search finds, for every query, the points within p.Radius.
// The table must have been built over points with the same radius; only its
// shape and recorded radius can be checked.
func Search[T tensor.Float, I tensor.Index](
	points, queries []T,
	pix, qix *ragged.Indexer,
	tbl *hashgrid.Table,
	p Params,
	asm *assemble.Assembler,
) (*Result[T, I], error) {
	numQueries := len(queries) / 3

	if err := validate[T, I](points, queries, pix, qix, tbl, p, asm); err != nil {
		return nil, err
	}

	dist, err := distance.Provider[T](p.Metric)
	if err != nil {
		return nil, err
	}
	threshold := T(p.Metric.Threshold(p.Radius))

	// scan calls fn for every accepted neighbor of query q in scan order.
	scan := func(q int, fn func(pi int64, d T)) {
		b, _ := qix.Locate(int64(q))
		base, size := tbl.Buckets(b)
		qp := queries[3*q : 3*q+3]

		var buf [hashgrid.MaxNeighborhood]int64
		lo, hi := hashgrid.Span(qp, p.Radius)
		for _, bucket := range hashgrid.Neighborhood(lo, hi, base, size, &buf) {
			for _, pi := range tbl.Bucket(bucket) {
				pp := points[3*pi : 3*pi+3]
				d := dist(qp, pp)
				if d > threshold {
					continue
				}
				if p.IgnoreQueryPoint {
					if p.SameCloud && pi == int64(q) {
						continue
					}
					if !p.SameCloud && pp[0] == qp[0] && pp[1] == qp[1] && pp[2] == qp[2] {
						continue
					}
				}
				fn(pi, d)
			}
		}
	}

	offsets := asm.Count(numQueries, func(q int) int64 {
		var n int64
		scan(q, func(int64, T) { n++ })
		return n
	})

	total := offsets[numQueries]
	if p.Reserve != nil {
		if err := p.Reserve(total); err != nil {
			return nil, err
		}
	}
	res := &Result[T, I]{
		Index:     make([]I, total),
		RowSplits: offsets,
		Distance:  []T{},
	}
	if p.ReturnDistances {
		res.Distance = make([]T, total)
	}

	err = asm.Fill(offsets, func(q int, lo, hi int64) int64 {
		pos := lo
		scan(q, func(pi int64, d T) {
			if pos < hi {
				res.Index[pos] = I(pi)
				if p.ReturnDistances {
					res.Distance[pos] = d
				}
			}
			pos++
		})
		return pos - lo
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func validate[T tensor.Float, I tensor.Index](
	points, queries []T,
	pix, qix *ragged.Indexer,
	tbl *hashgrid.Table,
	p Params,
	asm *assemble.Assembler,
) error {
	numPoints := len(points) / 3

	if err := (hashgrid.Config{Radius: p.Radius, SizeFactor: 1, MaxTableSize: 1}).Validate(); err != nil {
		return err
	}
	if !p.Metric.Valid() {
		return &distance.ErrUnsupportedMetric{Name: p.Metric.String()}
	}
	if w := tensor.WidthOf[I](); int64(numPoints) > w.Max() {
		return &IndexWidthError{Width: w, Points: numPoints}
	}
	if pix.Total() != int64(numPoints) || qix.Total() != int64(len(queries)/3) {
		return fmt.Errorf("%w: row splits do not cover the inputs", ragged.ErrMalformed)
	}
	if err := ragged.SameBatchCount(pix, qix); err != nil {
		return err
	}
	if err := tbl.Validate(numPoints, pix.Batches()); err != nil {
		return err
	}
	if tbl.Radius != 0 && tbl.Radius != p.Radius {
		return fmt.Errorf("%w: table built for radius %v, searching with %v", hashgrid.ErrTableMismatch, tbl.Radius, p.Radius)
	}

	check := func(name string, xyz []T) error {
		return asm.Runner.ForErr(len(xyz)/3, func(lo, hi int) error {
			for i := lo; i < hi; i++ {
				if err := hashgrid.CheckPoint(name, xyz, int64(i), p.Radius); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := check("queries", queries); err != nil {
		return err
	}
	if p.SameCloud {
		return nil
	}
	return check("points", points)
}
