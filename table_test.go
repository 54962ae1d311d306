package pointgrid

import (
	"bytes"
	"context"
	"testing"

	"github.com/hupe1980/pointgrid/codec"
	"github.com/hupe1980/pointgrid/tensor"
	"github.com/hupe1980/pointgrid/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpatialHashTable(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(9)
	xyz := rng.UniformPoints(2000, 5)
	points := mustPoints(t, xyz)
	rs := splitsOf(0, 700, 2000)

	tbl, err := BuildSpatialHashTable(ctx, points, 0.25, rs, 1.0/8, 1<<16)
	require.NoError(t, err)

	t.Run("SnapshotRoundTrip", func(t *testing.T) {
		for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
			t.Run(c.String(), func(t *testing.T) {
				var buf bytes.Buffer
				require.NoError(t, tbl.WriteSnapshot(&buf, SnapshotOptions{Compression: c, Codec: codec.JSON{}}))

				got, err := ReadSpatialHashTable(buf.Bytes())
				require.NoError(t, err)

				assert.Equal(t, tbl.ID(), got.ID())
				assert.Equal(t, tbl.Radius(), got.Radius())
				assert.Equal(t, tbl.Splits().Data(), got.Splits().Data())
				assert.Equal(t, tbl.CellSplits().Data(), got.CellSplits().Data())
				assert.Equal(t, tbl.Index().Data(), got.Index().Data())
				assert.Equal(t, tbl.Stats(), got.Stats())
			})
		}
	})

	t.Run("SearchLoadedTable", func(t *testing.T) {
		data, err := tbl.MarshalBinary()
		require.NoError(t, err)
		loaded, err := ReadSpatialHashTable(data)
		require.NoError(t, err)

		want, err := FixedRadiusSearch[float32, int32](ctx, points, points, 0.25, rs, rs, tbl, L2, true, false)
		require.NoError(t, err)
		got, err := FixedRadiusSearch[float32, int32](ctx, points, points, 0.25, rs, rs, loaded, L2, true, false)
		require.NoError(t, err)
		assert.Equal(t, want.NeighborsRowSplits.Data(), got.NeighborsRowSplits.Data())
		assert.Equal(t, want.NeighborsIndex.Data(), got.NeighborsIndex.Data())
	})

	t.Run("FromArrays", func(t *testing.T) {
		raw, err := NewSpatialHashTable(tbl.Index(), tbl.CellSplits(), tbl.Splits(), 0)
		require.NoError(t, err)
		assert.Equal(t, 0.0, raw.Radius())
		assert.Equal(t, tbl.NumBuckets(), raw.NumBuckets())

		// Unknown radius skips the radius check.
		res, err := FixedRadiusSearch[float32, int64](ctx, points, points, 0.25, rs, rs, raw, Linf, false, true)
		require.NoError(t, err)
		want := testutil.BruteForceRadius(xyz, xyz, rs.Data(), rs.Data(), 0.25, Linf, false)
		testutil.SameNeighborSets(t, want, res.NeighborsIndex.Data(), res.NeighborsRowSplits.Data())
	})

	t.Run("FromArraysErrors", func(t *testing.T) {
		_, err := NewSpatialHashTable(nil, tbl.CellSplits(), tbl.Splits(), 0)
		assertKind(t, err, ErrInvalidArgument)

		_, err = NewSpatialHashTable(tbl.Index(), tbl.CellSplits(), tbl.Splits(), -1)
		assertKind(t, err, ErrInvalidArgument)

		_, err = NewSpatialHashTable(tbl.Index(), tbl.CellSplits(), tensor.Vector([]int64{0}), 0)
		assertKind(t, err, ErrPreconditionViolation)

		_, err = NewSpatialHashTable(tbl.Index().To(tensor.CUDA(0)), tbl.CellSplits(), tbl.Splits(), 0)
		assertKind(t, err, ErrDeviceMismatch)
	})

	t.Run("CorruptSnapshot", func(t *testing.T) {
		data, err := tbl.MarshalBinary()
		require.NoError(t, err)
		data[len(data)-1] ^= 0xff

		_, err = ReadSpatialHashTable(data)
		assertKind(t, err, ErrInvalidArgument)

		_, err = ReadSpatialHashTable([]byte("nope"))
		assertKind(t, err, ErrInvalidArgument)
	})

	t.Run("ParseCompression", func(t *testing.T) {
		c, err := ParseCompression("zstd")
		require.NoError(t, err)
		assert.Equal(t, CompressionZSTD, c)

		_, err = ParseCompression("brotli")
		assertKind(t, err, ErrInvalidArgument)
	})
}
