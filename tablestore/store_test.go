package tablestore

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/pointgrid"
	"github.com/hupe1980/pointgrid/blobstore"
	"github.com/hupe1980/pointgrid/codec"
	"github.com/hupe1980/pointgrid/resource"
	"github.com/hupe1980/pointgrid/tensor"
	"github.com/hupe1980/pointgrid/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTable(t *testing.T, seed int64) *pointgrid.SpatialHashTable {
	t.Helper()
	rng := testutil.NewRNG(seed)
	points, err := tensor.Points(rng.UniformPoints(500, 3))
	require.NoError(t, err)
	tbl, err := pointgrid.BuildSpatialHashTable(context.Background(), points, 0.2,
		tensor.Vector([]int64{0, 250, 500}), 1.0/4, 1<<12)
	require.NoError(t, err)
	return tbl
}

func assertSameTable(t *testing.T, want, got *pointgrid.SpatialHashTable) {
	t.Helper()
	assert.Equal(t, want.ID(), got.ID())
	assert.Equal(t, want.Radius(), got.Radius())
	assert.Equal(t, want.Splits().Data(), got.Splits().Data())
	assert.Equal(t, want.CellSplits().Data(), got.CellSplits().Data())
	assert.Equal(t, want.Index().Data(), got.Index().Data())
}

func TestStore(t *testing.T) {
	ctx := context.Background()

	backends := map[string]func(t *testing.T) blobstore.BlobStore{
		"Memory": func(*testing.T) blobstore.BlobStore { return blobstore.NewMemoryStore() },
		"Local":  func(t *testing.T) blobstore.BlobStore { return blobstore.NewLocalStore(t.TempDir()) },
	}

	for name, newBlobs := range backends {
		t.Run(name, func(t *testing.T) {
			s := New(newBlobs(t), WithPrefix("tables-"), WithCodec(codec.GoJSON{}))

			_, err := s.LoadCurrent(ctx)
			require.ErrorIs(t, err, ErrNoCurrent)

			a, b := buildTable(t, 1), buildTable(t, 2)
			nameA, err := s.Save(ctx, a)
			require.NoError(t, err)
			assert.Equal(t, a.ID()+Ext, nameA)
			nameB, err := s.Save(ctx, b)
			require.NoError(t, err)

			cur, err := s.Current(ctx)
			require.NoError(t, err)
			assert.Equal(t, nameB, cur)

			got, err := s.LoadCurrent(ctx)
			require.NoError(t, err)
			assertSameTable(t, b, got)

			got, err = s.Load(ctx, nameA)
			require.NoError(t, err)
			assertSameTable(t, a, got)

			names, err := s.List(ctx)
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{nameA, nameB}, names)

			require.NoError(t, s.Delete(ctx, nameB))
			_, err = s.LoadCurrent(ctx)
			require.ErrorIs(t, err, ErrNoCurrent)

			_, err = s.Load(ctx, nameB)
			require.ErrorIs(t, err, blobstore.ErrNotFound)
		})
	}
}

func TestStore_Compression(t *testing.T) {
	ctx := context.Background()
	tbl := buildTable(t, 3)

	sizes := map[pointgrid.Compression]int64{}
	for _, c := range []pointgrid.Compression{pointgrid.CompressionNone, pointgrid.CompressionLZ4, pointgrid.CompressionZSTD} {
		blobs := blobstore.NewMemoryStore()
		s := New(blobs, WithCompression(c))
		name, err := s.Save(ctx, tbl)
		require.NoError(t, err)

		b, err := blobs.Open(ctx, name)
		require.NoError(t, err)
		sizes[c] = b.Size()
		require.NoError(t, b.Close())

		got, err := s.Load(ctx, name)
		require.NoError(t, err)
		assertSameTable(t, tbl, got)
	}
	assert.Less(t, sizes[pointgrid.CompressionZSTD], sizes[pointgrid.CompressionNone])
}

func TestStore_RateLimited(t *testing.T) {
	ctx := context.Background()
	rc := resource.NewController(resource.Config{IOLimitBytesPerSec: 64 << 20})
	s := New(blobstore.NewMemoryStore(), WithResourceController(rc))

	tbl := buildTable(t, 4)
	name, err := s.Save(ctx, tbl)
	require.NoError(t, err)

	got, err := s.Load(ctx, name)
	require.NoError(t, err)
	assertSameTable(t, tbl, got)
}

func TestStore_CorruptBlob(t *testing.T) {
	ctx := context.Background()
	blobs := blobstore.NewMemoryStore()
	require.NoError(t, blobs.Put(ctx, "bad"+Ext, []byte("not a snapshot")))

	_, err := New(blobs).Load(ctx, "bad"+Ext)
	require.ErrorIs(t, err, pointgrid.ErrInvalidArgument)
}

var errDiskFull = errors.New("disk full")

// failingStore fails every write after limit bytes and records aborts.
type failingStore struct {
	*blobstore.MemoryStore
	limit   int
	aborted bool
}

func (f *failingStore) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	w, err := f.MemoryStore.Create(ctx, name)
	if err != nil {
		return nil, err
	}
	return &failingBlob{WritableBlob: w, store: f}, nil
}

type failingBlob struct {
	blobstore.WritableBlob
	store   *failingStore
	written int
}

func (b *failingBlob) Write(p []byte) (int, error) {
	if b.written+len(p) > b.store.limit {
		return 0, errDiskFull
	}
	b.written += len(p)
	return b.WritableBlob.Write(p)
}

func (b *failingBlob) Abort() error {
	b.store.aborted = true
	return nil
}

func TestStore_AbortOnWriteError(t *testing.T) {
	ctx := context.Background()
	blobs := &failingStore{MemoryStore: blobstore.NewMemoryStore(), limit: 16}
	s := New(blobs)

	_, err := s.Save(ctx, buildTable(t, 5))
	require.ErrorIs(t, err, errDiskFull)
	assert.True(t, blobs.aborted)

	names, err := blobs.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, names)
}
