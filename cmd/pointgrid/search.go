package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/hupe1980/pointgrid"
	"github.com/hupe1980/pointgrid/codec"
	"github.com/hupe1980/pointgrid/tensor"
	"github.com/spf13/cobra"
)

type searchFlags struct {
	radius           float64
	queries          string
	rowSplits        string
	queryRowSplits   string
	table            string
	metric           string
	ignoreQueryPoint bool
	distances        bool
	indexWidth       int
	sizeFactor       float64
	maxTableSize     int64
	json             bool
}

func newSearchCmd(a *app) *cobra.Command {
	var f searchFlags

	cmd := &cobra.Command{
		Use:   "search <points.xyz>",
		Short: "Find the points within a radius of every query",
		Long: `Run a fixed-radius search. Queries default to the points themselves.
With --table the search uses a stored snapshot ("current" for the latest);
otherwise a table is built for this call.

Examples:
  pointgrid search cloud.xyz --radius 0.05 --ignore-query-point
  pointgrid search cloud.xyz --queries probes.xyz --radius 0.05 --table current --distances --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			width := tensor.IndexWidth(f.indexWidth)
			if err := width.Validate(); err != nil {
				return fmt.Errorf("%w: %w", pointgrid.ErrInvalidArgument, err)
			}
			if width == tensor.Width32 {
				return runSearch[int32](cmd.Context(), a, f, args[0], cmd.OutOrStdout())
			}
			return runSearch[int64](cmd.Context(), a, f, args[0], cmd.OutOrStdout())
		},
	}

	fl := cmd.Flags()
	fl.Float64Var(&f.radius, "radius", 0, "search radius")
	fl.StringVar(&f.queries, "queries", "", "query point file (default: the points)")
	fl.StringVar(&f.rowSplits, "row-splits", "", "comma-separated point row splits")
	fl.StringVar(&f.queryRowSplits, "query-row-splits", "", "comma-separated query row splits")
	fl.StringVar(&f.table, "table", "", `stored table name, or "current"`)
	fl.StringVar(&f.metric, "metric", "L2", "L1, L2 or Linf")
	fl.BoolVar(&f.ignoreQueryPoint, "ignore-query-point", false, "do not report a query as its own neighbor")
	fl.BoolVar(&f.distances, "distances", false, "report distances (squared for L2)")
	fl.IntVar(&f.indexWidth, "index-width", 32, "neighbor index width: 32 or 64")
	fl.Float64Var(&f.sizeFactor, "size-factor", pointgrid.DefaultHashTableSizeFactor, "buckets per point when building")
	fl.Int64Var(&f.maxTableSize, "max-table-size", pointgrid.DefaultMaxHashTableSize, "bucket cap when building")
	fl.BoolVar(&f.json, "json", false, "print JSON")
	_ = cmd.MarkFlagRequired("radius")

	return cmd
}

type searchOutput struct {
	RowSplits []int64   `json:"neighbors_row_splits"`
	Index     []int64   `json:"neighbors_index"`
	Distance  []float64 `json:"neighbors_distance,omitempty"`
}

func runSearch[I tensor.Index](ctx context.Context, a *app, f searchFlags, pointsPath string, out io.Writer) error {
	metric, err := pointgrid.ParseMetric(f.metric)
	if err != nil {
		return err
	}

	xyz, err := readXYZFile(pointsPath)
	if err != nil {
		return err
	}
	points, err := tensor.Points(xyz)
	if err != nil {
		return err
	}
	queries := points
	if f.queries != "" {
		qxyz, err := readXYZFile(f.queries)
		if err != nil {
			return err
		}
		if queries, err = tensor.Points(qxyz); err != nil {
			return err
		}
	}

	pSplits, err := parseSplits(f.rowSplits, points.Len())
	if err != nil {
		return err
	}
	qSplits, err := parseSplits(f.queryRowSplits, queries.Len())
	if err != nil {
		return err
	}

	cfg := pointgrid.DefaultConfig()
	cfg.Metric = metric
	cfg.IgnoreQueryPoint = f.ignoreQueryPoint
	cfg.ReturnDistances = f.distances
	cfg.HashTableSizeFactor = f.sizeFactor
	cfg.MaxHashTableSize = f.maxTableSize
	s, err := pointgrid.NewSearcher[float64, I](cfg, a.options()...)
	if err != nil {
		return err
	}

	callOpts := []pointgrid.CallOption{
		pointgrid.WithPointsRowSplits(tensor.Vector(pSplits)),
		pointgrid.WithQueriesRowSplits(tensor.Vector(qSplits)),
	}
	if f.table != "" {
		store, err := a.store(ctx)
		if err != nil {
			return err
		}
		var tbl *pointgrid.SpatialHashTable
		if f.table == "current" {
			tbl, err = store.LoadCurrent(ctx)
		} else {
			tbl, err = store.Load(ctx, f.table)
		}
		if err != nil {
			return err
		}
		callOpts = append(callOpts, pointgrid.WithHashTable(tbl))
	}

	res, err := s.Search(ctx, points, queries, f.radius, callOpts...)
	if err != nil {
		return err
	}

	if f.json {
		o := searchOutput{RowSplits: res.NeighborsRowSplits.Data()}
		o.Index = make([]int64, res.NeighborsIndex.Len())
		for i, v := range res.NeighborsIndex.Data() {
			o.Index[i] = int64(v)
		}
		if f.distances {
			o.Distance = res.NeighborsDistance.Data()
		}
		data, err := codec.Default.Marshal(o)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}

	for q, nbrs := range res.All() {
		var sb strings.Builder
		fmt.Fprintf(&sb, "%d:", q)
		for k, n := range nbrs {
			fmt.Fprintf(&sb, " %d", n)
			if f.distances {
				fmt.Fprintf(&sb, "(%g)", res.Distances(q)[k])
			}
		}
		if _, err := fmt.Fprintln(out, sb.String()); err != nil {
			return err
		}
	}
	return nil
}
