package pointgrid

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/hupe1980/pointgrid/codec"
	"github.com/hupe1980/pointgrid/internal/hashgrid"
	"github.com/hupe1980/pointgrid/internal/snapshot"
	"github.com/hupe1980/pointgrid/tensor"
)

// SpatialHashTable is a uniform-grid hash table over one points buffer at
// one radius. It is immutable and safe for concurrent searches.
//
// The table is the CSR triple hash_table_index, hash_table_cell_splits and
// hash_table_splits; see Index, CellSplits and Splits.
type SpatialHashTable struct {
	id         uuid.UUID
	tbl        *hashgrid.Table
	sizeFactor float64
	maxSize    int64
	device     tensor.Device
	createdAt  time.Time
}

// TableStats describes bucket occupancy of a SpatialHashTable.
type TableStats = hashgrid.Stats

// NewSpatialHashTable wraps precomputed table arrays, e.g. the output of
// BuildSpatialHashTable stored elsewhere. radius is the cell size the arrays
// were built with; pass 0 if it is unknown, which disables the radius check
// in FixedRadiusSearch. The arrays are validated against the points when
// the table is searched.
func NewSpatialHashTable(index, cellSplits, splits *tensor.Tensor[int64], radius float64) (*SpatialHashTable, error) {
	if index == nil || cellSplits == nil || splits == nil {
		return nil, fmt.Errorf("%w: hash table arrays must not be nil", ErrInvalidArgument)
	}
	if radius < 0 || math.IsNaN(radius) || math.IsInf(radius, 0) {
		return nil, translateError(fmt.Errorf("%w: %v", hashgrid.ErrInvalidRadius, radius))
	}
	dev, err := checkDevice(index, cellSplits, splits)
	if err != nil {
		return nil, err
	}
	for _, c := range []struct {
		name string
		t    *tensor.Tensor[int64]
	}{
		{"hash_table_index", index},
		{"hash_table_cell_splits", cellSplits},
		{"hash_table_splits", splits},
	} {
		if err := c.t.CheckShape(c.name, -1); err != nil {
			return nil, translateError(err)
		}
	}
	if splits.Len() < 2 || cellSplits.Len() < 2 {
		return nil, &ErrTableMismatch{cause: fmt.Errorf("%w: hash_table_splits and hash_table_cell_splits need at least 2 entries", hashgrid.ErrTableMismatch)}
	}

	return &SpatialHashTable{
		id: uuid.New(),
		tbl: &hashgrid.Table{
			Index:      index.Data(),
			CellSplits: cellSplits.Data(),
			Splits:     splits.Data(),
			Radius:     radius,
		},
		device:    dev,
		createdAt: time.Now().UTC(),
	}, nil
}

// ID returns a random identifier assigned when the table was built or
// loaded. It is kept in snapshots.
func (t *SpatialHashTable) ID() string { return t.id.String() }

// Radius returns the cell size, or 0 if unknown.
func (t *SpatialHashTable) Radius() float64 { return t.tbl.Radius }

// Batches returns the number of batch items.
func (t *SpatialHashTable) Batches() int { return t.tbl.Batches() }

// NumBuckets returns the total number of buckets over all batch items.
func (t *SpatialHashTable) NumBuckets() int64 { return t.tbl.NumBuckets() }

// NumPoints returns the number of indexed points.
func (t *SpatialHashTable) NumPoints() int { return len(t.tbl.Index) }

// Device returns the table's placement.
func (t *SpatialHashTable) Device() tensor.Device { return t.device }

// Index returns hash_table_index: point indices grouped by bucket.
func (t *SpatialHashTable) Index() *tensor.Tensor[int64] {
	return tensor.Vector(t.tbl.Index).To(t.device)
}

// CellSplits returns hash_table_cell_splits: one offset per bucket plus
// the total.
func (t *SpatialHashTable) CellSplits() *tensor.Tensor[int64] {
	return tensor.Vector(t.tbl.CellSplits).To(t.device)
}

// Splits returns hash_table_splits: the first bucket of each batch item
// plus the bucket count.
func (t *SpatialHashTable) Splits() *tensor.Tensor[int64] {
	return tensor.Vector(t.tbl.Splits).To(t.device)
}

// Stats computes bucket occupancy statistics.
func (t *SpatialHashTable) Stats() TableStats { return t.tbl.Stats() }

// To returns a view of the table labeled with device d.
func (t *SpatialHashTable) To(d tensor.Device) *SpatialHashTable {
	c := *t
	c.device = d
	return &c
}

// Compression selects block compression for snapshots.
type Compression = snapshot.Compression

const (
	CompressionNone = snapshot.CompressionNone
	CompressionLZ4  = snapshot.CompressionLZ4
	CompressionZSTD = snapshot.CompressionZSTD
)

// ParseCompression parses "none", "lz4" or "zstd".
func ParseCompression(s string) (Compression, error) {
	c, err := snapshot.ParseCompression(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	return c, nil
}

// SnapshotOptions controls WriteSnapshot.
type SnapshotOptions struct {
	Compression Compression
	// Codec encodes the snapshot header. Nil means codec.Default.
	Codec codec.Codec
}

// WriteSnapshot serializes the table to w.
func (t *SpatialHashTable) WriteSnapshot(w io.Writer, opts SnapshotOptions) error {
	return snapshot.Encode(w, &snapshot.Snapshot{
		Header: snapshot.Header{
			ID:           t.ID(),
			Radius:       t.tbl.Radius,
			SizeFactor:   t.sizeFactor,
			MaxTableSize: t.maxSize,
			CreatedAt:    t.createdAt,
		},
		Splits:     t.tbl.Splits,
		CellSplits: t.tbl.CellSplits,
		Index:      t.tbl.Index,
	}, snapshot.Options{Compression: opts.Compression, Codec: opts.Codec})
}

// MarshalBinary encodes the table as an uncompressed snapshot.
func (t *SpatialHashTable) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := t.WriteSnapshot(&buf, SnapshotOptions{}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadSpatialHashTable decodes a snapshot written by WriteSnapshot.
// The returned table does not reference data.
func ReadSpatialHashTable(data []byte) (*SpatialHashTable, error) {
	s, err := snapshot.Decode(data)
	if err != nil {
		return nil, translateError(err)
	}
	id, err := uuid.Parse(s.Header.ID)
	if err != nil {
		return nil, translateError(errors.Join(snapshot.ErrCorrupt, err))
	}
	t := &SpatialHashTable{
		id: id,
		tbl: &hashgrid.Table{
			Index:      s.Index,
			CellSplits: s.CellSplits,
			Splits:     s.Splits,
			Radius:     s.Header.Radius,
		},
		sizeFactor: s.Header.SizeFactor,
		maxSize:    s.Header.MaxTableSize,
		device:     tensor.CPU,
		createdAt:  s.Header.CreatedAt,
	}
	if err := t.tbl.Validate(t.NumPoints(), t.Batches()); err != nil {
		return nil, translateError(err)
	}
	return t, nil
}
