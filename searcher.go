package pointgrid

import (
	"context"
	"fmt"
	"math"
	"unsafe"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/hupe1980/pointgrid/distance"
	"github.com/hupe1980/pointgrid/internal/hashgrid"
	"github.com/hupe1980/pointgrid/tensor"
)

const (
	// DefaultMaxHashTableSize caps the bucket count of tables built by a
	// Searcher.
	DefaultMaxHashTableSize int64 = 32 << 20

	// DefaultHashTableSizeFactor is the default ratio of buckets to points.
	DefaultHashTableSizeFactor = 1.0 / 64
)

// Config holds the defaults a Searcher applies to every call.
type Config struct {
	Metric           Metric
	IgnoreQueryPoint bool
	ReturnDistances  bool

	MaxHashTableSize    int64
	HashTableSizeFactor float64

	// TableCacheSize is the number of tables kept for reuse across calls
	// with identical points, row splits and radius. 0 disables the cache.
	TableCacheSize int
}

// DefaultConfig returns the L2 configuration without self exclusion and
// without distances.
func DefaultConfig() Config {
	return Config{
		Metric:              L2,
		MaxHashTableSize:    DefaultMaxHashTableSize,
		HashTableSizeFactor: DefaultHashTableSizeFactor,
	}
}

// Searcher packages table construction and search behind one call with
// configured defaults. It is safe for concurrent use.
type Searcher[T tensor.Float, I tensor.Index] struct {
	cfg    Config
	optFns []Option
	cache  *lru.Cache[tableKey, *SpatialHashTable]
}

// NewSearcher validates cfg and returns a Searcher. optFns are passed to
// every build and search.
func NewSearcher[T tensor.Float, I tensor.Index](cfg Config, optFns ...Option) (*Searcher[T, I], error) {
	if _, err := distance.Provider[T](cfg.Metric); err != nil {
		return nil, translateError(err)
	}
	probe := hashgrid.Config{Radius: 1, SizeFactor: cfg.HashTableSizeFactor, MaxTableSize: cfg.MaxHashTableSize}
	if err := probe.Validate(); err != nil {
		return nil, translateError(err)
	}
	if cfg.TableCacheSize < 0 {
		return nil, fmt.Errorf("%w: table cache size must not be negative", ErrInvalidArgument)
	}

	s := &Searcher[T, I]{cfg: cfg, optFns: optFns}
	if cfg.TableCacheSize > 0 {
		c, err := lru.New[tableKey, *SpatialHashTable](cfg.TableCacheSize)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
		}
		s.cache = c
	}
	return s, nil
}

// Config returns the searcher's configuration.
func (s *Searcher[T, I]) Config() Config { return s.cfg }

type callOptions struct {
	pointsRowSplits  *tensor.Tensor[int64]
	queriesRowSplits *tensor.Tensor[int64]
	table            *SpatialHashTable
	sizeFactor       float64
}

// CallOption configures a single Searcher call.
type CallOption func(*callOptions)

// WithPointsRowSplits partitions the points into batch items. The default is
// one item holding every point.
func WithPointsRowSplits(rs *tensor.Tensor[int64]) CallOption {
	return func(o *callOptions) { o.pointsRowSplits = rs }
}

// WithQueriesRowSplits partitions the queries into batch items. The default
// is one item holding every query.
func WithQueriesRowSplits(rs *tensor.Tensor[int64]) CallOption {
	return func(o *callOptions) { o.queriesRowSplits = rs }
}

// WithHashTable searches a precomputed table instead of building one.
func WithHashTable(t *SpatialHashTable) CallOption {
	return func(o *callOptions) { o.table = t }
}

// WithHashTableSizeFactor overrides Config.HashTableSizeFactor for one call.
func WithHashTableSizeFactor(f float64) CallOption {
	return func(o *callOptions) { o.sizeFactor = f }
}

func (s *Searcher[T, I]) callOptions(points, queries *tensor.Tensor[T], fns []CallOption) callOptions {
	o := callOptions{sizeFactor: s.cfg.HashTableSizeFactor}
	for _, fn := range fns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.pointsRowSplits == nil && points != nil {
		o.pointsRowSplits = wholeSplits(points)
	}
	if o.queriesRowSplits == nil && queries != nil {
		o.queriesRowSplits = wholeSplits(queries)
	}
	return o
}

func wholeSplits[T tensor.Float](t *tensor.Tensor[T]) *tensor.Tensor[int64] {
	return tensor.Vector([]int64{0, int64(t.Len())}).To(t.Device())
}

// Search returns the neighbors within radius of every query. Without
// WithHashTable a table is built over points, or taken from the cache.
func (s *Searcher[T, I]) Search(ctx context.Context, points, queries *tensor.Tensor[T], radius float64, fns ...CallOption) (*NeighborResult[T, I], error) {
	o := s.callOptions(points, queries, fns)

	table := o.table
	if table == nil {
		var err error
		if table, err = s.buildTable(ctx, points, radius, o); err != nil {
			return nil, err
		}
	}

	return FixedRadiusSearch[T, I](ctx, points, queries, radius,
		o.pointsRowSplits, o.queriesRowSplits, table,
		s.cfg.Metric, s.cfg.IgnoreQueryPoint, s.cfg.ReturnDistances, s.optFns...)
}

// BuildTable builds, or fetches from the cache, the table Search would use
// for points at radius.
func (s *Searcher[T, I]) BuildTable(ctx context.Context, points *tensor.Tensor[T], radius float64, fns ...CallOption) (*SpatialHashTable, error) {
	return s.buildTable(ctx, points, radius, s.callOptions(points, nil, fns))
}

func (s *Searcher[T, I]) buildTable(ctx context.Context, points *tensor.Tensor[T], radius float64, o callOptions) (*SpatialHashTable, error) {
	if s.cache == nil || points == nil || o.pointsRowSplits == nil {
		return BuildSpatialHashTable(ctx, points, radius, o.pointsRowSplits, o.sizeFactor, s.cfg.MaxHashTableSize, s.optFns...)
	}

	key := newTableKey(points.Data(), o.pointsRowSplits.Data())
	key.radius = math.Float64bits(radius)
	key.sizeFactor = math.Float64bits(o.sizeFactor)
	key.device = points.Device()
	if t, ok := s.cache.Get(key); ok {
		return t, nil
	}
	t, err := BuildSpatialHashTable(ctx, points, radius, o.pointsRowSplits, o.sizeFactor, s.cfg.MaxHashTableSize, s.optFns...)
	if err != nil {
		return nil, err
	}
	s.cache.Add(key, t)
	return t, nil
}

// CachedTables returns the number of tables held by the cache.
func (s *Searcher[T, I]) CachedTables() int {
	if s.cache == nil {
		return 0
	}
	return s.cache.Len()
}

// PurgeCache drops all cached tables.
func (s *Searcher[T, I]) PurgeCache() {
	if s.cache != nil {
		s.cache.Purge()
	}
}

// tableKey identifies a table by the content of its inputs. The content is
// hashed twice with independent seeds, so a reused table requires a 128-bit
// match along with equal point and batch counts. The maximum table size is
// fixed per Searcher and not part of the key.
type tableKey struct {
	sum        uint64
	check      uint64
	numPoints  int
	batches    int
	radius     uint64
	sizeFactor uint64
	device     tensor.Device
}

const checkSeed = 0x9e3779b97f4a7c15

func newTableKey[T tensor.Float](xyz []T, splits []int64) tableKey {
	return tableKey{
		sum:       contentHash(xxhash.New(), xyz, splits),
		check:     contentHash(xxhash.NewWithSeed(checkSeed), xyz, splits),
		numPoints: len(xyz) / 3,
		batches:   max(len(splits)-1, 0),
	}
}

func contentHash[T tensor.Float](d *xxhash.Digest, xyz []T, splits []int64) uint64 {
	_, _ = d.Write(bytesOf(xyz))
	_, _ = d.Write(bytesOf(splits))
	return d.Sum64()
}

func bytesOf[E tensor.Number](s []E) []byte {
	if len(s) == 0 {
		return nil
	}
	var zero E
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*int(unsafe.Sizeof(zero)))
}
