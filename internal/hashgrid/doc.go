// Package hashgrid builds the spatial hash table used for fixed-radius
// neighbor search.
//
// Space is divided into cubic cells whose edge equals the search radius, so
// every point within the radius of a query lies in the query's cell or one of
// its 26 neighbors. Cells are hashed into a bounded number of buckets per
// batch item; colliding cells share a bucket. The table is stored in CSR form:
//
//	Splits     [B+1]            first bucket of each batch item
//	CellSplits [buckets+1]      offsets of each bucket into Index
//	Index      [points]         global point indices grouped by bucket
//
// A Table is immutable once built and safe for concurrent readers.
package hashgrid
