package main

import (
	"fmt"

	"github.com/hupe1980/pointgrid"
	"github.com/hupe1980/pointgrid/tensor"
	"github.com/spf13/cobra"
)

type buildFlags struct {
	radius       float64
	rowSplits    string
	sizeFactor   float64
	maxTableSize int64
	name         string
}

func newBuildCmd(a *app) *cobra.Command {
	var f buildFlags

	cmd := &cobra.Command{
		Use:   "build <points.xyz>",
		Short: "Build a hash table over a point file and store a snapshot",
		Long: `Build a spatial hash table over the points of an XYZ file and save it
to the configured store. Without --name the table is saved under its ID and
becomes the current table.

Examples:
  pointgrid build cloud.xyz --radius 0.05
  pointgrid build batch.xyz --radius 0.1 --row-splits 0,1000,2500`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			xyz, err := readXYZFile(args[0])
			if err != nil {
				return err
			}
			points, err := tensor.Points(xyz)
			if err != nil {
				return err
			}
			splits, err := parseSplits(f.rowSplits, points.Len())
			if err != nil {
				return err
			}

			tbl, err := pointgrid.BuildSpatialHashTable(ctx, points, f.radius, tensor.Vector(splits),
				f.sizeFactor, f.maxTableSize, a.options()...)
			if err != nil {
				return err
			}

			store, err := a.store(ctx)
			if err != nil {
				return err
			}
			name := f.name
			if name == "" {
				if name, err = store.Save(ctx, tbl); err != nil {
					return err
				}
			} else if err := store.SaveAs(ctx, name, tbl); err != nil {
				return err
			}

			s := tbl.Stats()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "saved %s\n", name)
			fmt.Fprintf(out, "points=%d batches=%d buckets=%d occupied=%d max_chain=%d mean_chain=%.2f load=%.2f\n",
				s.Points, s.Batches, s.Buckets, s.Occupied, s.MaxChain, s.MeanChain, s.LoadFactor)
			return nil
		},
	}

	fl := cmd.Flags()
	fl.Float64Var(&f.radius, "radius", 0, "search radius and grid cell size")
	fl.StringVar(&f.rowSplits, "row-splits", "", "comma-separated batch row splits (default: one item)")
	fl.Float64Var(&f.sizeFactor, "size-factor", pointgrid.DefaultHashTableSizeFactor, "buckets per point")
	fl.Int64Var(&f.maxTableSize, "max-table-size", pointgrid.DefaultMaxHashTableSize, "cap on the total bucket count")
	fl.StringVar(&f.name, "name", "", "snapshot name (default: table ID)")
	_ = cmd.MarkFlagRequired("radius")

	return cmd
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored table snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := a.store(ctx)
			if err != nil {
				return err
			}
			names, err := store.List(ctx)
			if err != nil {
				return err
			}
			current, _ := store.Current(ctx)
			for _, n := range names {
				marker := " "
				if n == current {
					marker = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", marker, n)
			}
			return nil
		},
	}
}
