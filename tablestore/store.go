// Package tablestore persists spatial hash table snapshots in a blobstore.
//
// Every saved table becomes one immutable blob named after its ID. A small
// CURRENT blob names the most recently saved table so readers can pick up
// the latest one without listing.
package tablestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/hupe1980/pointgrid"
	"github.com/hupe1980/pointgrid/blobstore"
	"github.com/hupe1980/pointgrid/codec"
	"github.com/hupe1980/pointgrid/resource"
)

const (
	// Ext is the file extension of snapshot blobs.
	Ext = ".pght"

	// CurrentName is the name of the pointer blob, relative to the prefix.
	CurrentName = "CURRENT"
)

// ErrNoCurrent is returned by LoadCurrent when no table was saved yet.
var ErrNoCurrent = errors.New("tablestore: no current table")

// Store saves and loads tables.
type Store struct {
	blobs       blobstore.BlobStore
	prefix      string
	compression pointgrid.Compression
	codec       codec.Codec
	rc          *resource.Controller
	logger      *pointgrid.Logger

	mu sync.Mutex // serializes CURRENT updates
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix stores blobs under prefix, e.g. "tables/".
func WithPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// WithCompression sets the block compression of written snapshots.
func WithCompression(c pointgrid.Compression) Option {
	return func(s *Store) { s.compression = c }
}

// WithCodec sets the snapshot header codec.
func WithCodec(c codec.Codec) Option {
	return func(s *Store) { s.codec = c }
}

// WithResourceController rate-limits snapshot transfers by the
// controller's IO limit.
func WithResourceController(rc *resource.Controller) Option {
	return func(s *Store) { s.rc = rc }
}

// WithLogger logs every save and load.
func WithLogger(l *pointgrid.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// New returns a Store over blobs. Snapshots are ZSTD-compressed by default.
func New(blobs blobstore.BlobStore, opts ...Option) *Store {
	s := &Store{
		blobs:       blobs,
		compression: pointgrid.CompressionZSTD,
		logger:      pointgrid.NoopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NameOf returns the blob name Save uses for t, without the prefix.
func NameOf(t *pointgrid.SpatialHashTable) string {
	return t.ID() + Ext
}

// Save writes t as NameOf(t) and makes it the current table.
func (s *Store) Save(ctx context.Context, t *pointgrid.SpatialHashTable) (string, error) {
	name := NameOf(t)
	if err := s.SaveAs(ctx, name, t); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.blobs.Put(ctx, s.prefix+CurrentName, []byte(name)); err != nil {
		return "", fmt.Errorf("tablestore: update %s: %w", CurrentName, err)
	}
	return name, nil
}

// SaveAs writes t under name. A failed write does not leave a partial blob
// behind on stores that support aborting.
func (s *Store) SaveAs(ctx context.Context, name string, t *pointgrid.SpatialHashTable) (err error) {
	var written int
	defer func() { s.logger.LogSnapshot(ctx, "write", name, written, err) }()

	w, err := s.blobs.Create(ctx, s.prefix+name)
	if err != nil {
		return fmt.Errorf("tablestore: create %s: %w", name, err)
	}

	cw := &countingWriter{w: resource.NewRateLimitedWriter(ctx, w, s.rc)}
	err = t.WriteSnapshot(cw, pointgrid.SnapshotOptions{Compression: s.compression, Codec: s.codec})
	if err == nil {
		err = w.Sync()
	}
	written = cw.n
	if err != nil {
		if a, ok := w.(blobstore.Abortable); ok {
			_ = a.Abort()
		} else {
			_ = w.Close()
			_ = s.blobs.Delete(ctx, s.prefix+name)
		}
		return fmt.Errorf("tablestore: write %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("tablestore: commit %s: %w", name, err)
	}
	return nil
}

// Load reads the table stored under name.
func (s *Store) Load(ctx context.Context, name string) (t *pointgrid.SpatialHashTable, err error) {
	var size int
	defer func() { s.logger.LogSnapshot(ctx, "read", name, size, err) }()

	b, err := s.blobs.Open(ctx, s.prefix+name)
	if err != nil {
		return nil, fmt.Errorf("tablestore: open %s: %w", name, err)
	}
	defer func() { _ = b.Close() }()

	data, err := s.read(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("tablestore: read %s: %w", name, err)
	}
	size = len(data)

	// Decoding copies the arrays, so mapped data may be released after.
	return pointgrid.ReadSpatialHashTable(data)
}

func (s *Store) read(ctx context.Context, b blobstore.Blob) ([]byte, error) {
	if s.rc == nil || s.rc.Config().IOLimitBytesPerSec == 0 {
		return blobstore.ReadAll(ctx, b)
	}
	rc, err := b.ReadRange(ctx, 0, b.Size())
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	var buf bytes.Buffer
	buf.Grow(int(b.Size()))
	if _, err := io.Copy(&buf, resource.NewRateLimitedReader(ctx, rc, s.rc)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Current returns the name of the most recently saved table.
func (s *Store) Current(ctx context.Context) (string, error) {
	b, err := s.blobs.Open(ctx, s.prefix+CurrentName)
	if errors.Is(err, blobstore.ErrNotFound) {
		return "", ErrNoCurrent
	}
	if err != nil {
		return "", fmt.Errorf("tablestore: open %s: %w", CurrentName, err)
	}
	defer func() { _ = b.Close() }()

	data, err := blobstore.ReadAll(ctx, b)
	if err != nil {
		return "", fmt.Errorf("tablestore: read %s: %w", CurrentName, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// LoadCurrent loads the most recently saved table.
func (s *Store) LoadCurrent(ctx context.Context) (*pointgrid.SpatialHashTable, error) {
	name, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}
	return s.Load(ctx, name)
}

// List returns the names of all stored snapshots.
func (s *Store) List(ctx context.Context) ([]string, error) {
	names, err := s.blobs.List(ctx, s.prefix)
	if err != nil {
		return nil, err
	}
	out := names[:0]
	for _, n := range names {
		n = strings.TrimPrefix(n, s.prefix)
		if strings.HasSuffix(n, Ext) && !strings.Contains(n, "/") {
			out = append(out, n)
		}
	}
	return out, nil
}

// Delete removes a snapshot. Deleting the current table clears CURRENT.
func (s *Store) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, err := s.Current(ctx); err == nil && cur == name {
		if err := s.blobs.Delete(ctx, s.prefix+CurrentName); err != nil {
			return err
		}
	}
	return s.blobs.Delete(ctx, s.prefix+name)
}

type countingWriter struct {
	w io.Writer
	n int
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += n
	return n, err
}
