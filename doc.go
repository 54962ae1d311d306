// Package pointgrid finds all points within a fixed radius of each query
// point in batches of 3D point clouds.
//
// Points are hashed onto a uniform grid whose cell edge equals the search
// radius, so every neighbor of a query lies within one cell of it on each
// axis. A batch is a ragged collection of independent clouds described
// by row splits; each batch item gets its own bucket range and queries never
// see points of another item.
//
// # Quick Start
//
//	pts := tensor.FromPoints([][3]float32{{0, 0, 0}, {0.1, 0, 0}, {2, 2, 2}})
//	splits := tensor.Vector([]int64{0, 3})
//
//	tbl, _ := pointgrid.BuildSpatialHashTable(ctx, pts, 0.5, splits, 1.0/64, 1<<20)
//	res, _ := pointgrid.FixedRadiusSearch[float32, int32](ctx, pts, pts, 0.5,
//	    splits, splits, tbl, pointgrid.L2, true, true)
//
//	for q, nbrs := range res.All() {
//	    fmt.Println(q, nbrs, res.Distances(q))
//	}
//
// Results use a CSR layout: NeighborsIndex holds the neighbors of all
// queries back to back and NeighborsRowSplits[q:q+2] delimits query q.
// L2 distances are reported squared.
//
// # Searcher
//
// Searcher applies defaults (L2, one batch item, 32·2^20 bucket cap, size
// factor 1/64) and can cache tables across calls:
//
//	s, _ := pointgrid.NewSearcher[float32, int64](pointgrid.Config{
//	    Metric:              pointgrid.L2,
//	    ReturnDistances:     true,
//	    MaxHashTableSize:    pointgrid.DefaultMaxHashTableSize,
//	    HashTableSizeFactor: pointgrid.DefaultHashTableSizeFactor,
//	    TableCacheSize:      8,
//	})
//	res, _ := s.Search(ctx, pts, queries, 0.5)
//
// # Errors
//
// Every failure matches one of ErrInvalidArgument, ErrResourceLimitExceeded,
// ErrDeviceMismatch and ErrPreconditionViolation with errors.Is. No partial
// output accompanies an error.
//
// # Persistence
//
// Tables can be written as compressed snapshots with WriteSnapshot and read
// back with ReadSpatialHashTable; package tablestore keeps snapshots in a
// blobstore (memory, local files, MinIO or S3).
package pointgrid
