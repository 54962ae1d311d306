package minio

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/hupe1980/pointgrid/blobstore"
	"github.com/minio/minio-go/v7"
)

// ContentType is attached to every object the store writes.
const ContentType = "application/x-pointgrid-table"

// Client is the subset of *minio.Client used by Store.
type Client interface {
	StatObject(ctx context.Context, bucket, key string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	GetObject(ctx context.Context, bucket, key string, opts minio.GetObjectOptions) (*minio.Object, error)
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	RemoveObject(ctx context.Context, bucket, key string, opts minio.RemoveObjectOptions) error
	ListObjects(ctx context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
}

// Option configures a Store.
type Option func(*Store)

// WithUserMetadata sets x-amz-meta-* headers on every uploaded object.
func WithUserMetadata(md map[string]string) Option {
	return func(s *Store) { s.meta = md }
}

// WithStorageClass sets the storage class of uploaded objects.
func WithStorageClass(class string) Option {
	return func(s *Store) { s.storageClass = class }
}

// Store implements blobstore.BlobStore on a MinIO (or S3-compatible) bucket.
// Names are keys below a fixed root prefix.
type Store struct {
	client       Client
	bucket       string
	root         string
	meta         map[string]string
	storageClass string
}

// NewStore returns a store rooted at rootPrefix (e.g. "tables/") in bucket.
func NewStore(client Client, bucket, rootPrefix string, opts ...Option) *Store {
	s := &Store{
		client: client,
		bucket: bucket,
		root:   strings.Trim(rootPrefix, "/"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) objectKey(name string) string {
	if s.root == "" {
		return name
	}
	return path.Join(s.root, name)
}

func (s *Store) blobName(key string) string {
	if s.root == "" {
		return key
	}
	return strings.TrimPrefix(strings.TrimPrefix(key, s.root), "/")
}

func (s *Store) putOptions() minio.PutObjectOptions {
	return minio.PutObjectOptions{
		ContentType:  ContentType,
		UserMetadata: s.meta,
		StorageClass: s.storageClass,
	}
}

func isNotFound(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NotFound":
		return true
	}
	return false
}

// Open stats the object. Reads through the returned blob fail if the object
// is replaced after Open.
func (s *Store) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	key := s.objectKey(name)
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return nil, blobstore.ErrNotFound
		}
		return nil, err
	}
	return &object{store: s, key: key, size: info.Size, etag: info.ETag}, nil
}

// Put uploads data in a single request.
func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, s.objectKey(name), bytes.NewReader(data), int64(len(data)), s.putOptions())
	return err
}

// Create returns a writer that buffers the snapshot and uploads it on Close.
// Aborting or failing before Close leaves no object behind.
func (s *Store) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	return &upload{ctx: ctx, store: s, key: s.objectKey(name)}, nil
}

// Delete removes an object. Missing objects are ignored.
func (s *Store) Delete(ctx context.Context, name string) error {
	err := s.client.RemoveObject(ctx, s.bucket, s.objectKey(name), minio.RemoveObjectOptions{})
	if err != nil && !isNotFound(err) {
		return err
	}
	return nil
}

// List returns the sorted names below the root prefix that start with prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	full := s.objectKey(prefix)
	if prefix == "" && s.root != "" {
		full = s.root + "/"
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var names []string
	for info := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: full, Recursive: true}) {
		if info.Err != nil {
			return nil, info.Err
		}
		if n := s.blobName(info.Key); n != "" {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names, nil
}

type object struct {
	store *Store
	key   string
	size  int64
	etag  string
}

func (o *object) Size() int64  { return o.size }
func (o *object) Close() error { return nil }

func (o *object) fetch(ctx context.Context, off, end int64) (*minio.Object, error) {
	var opts minio.GetObjectOptions
	if o.etag != "" {
		if err := opts.SetMatchETag(o.etag); err != nil {
			return nil, err
		}
	}
	if err := opts.SetRange(off, end); err != nil {
		return nil, err
	}
	return o.store.client.GetObject(ctx, o.store.bucket, o.key, opts)
}

func (o *object) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if off >= o.size {
		return 0, io.EOF
	}
	end := min(off+int64(len(p)), o.size) - 1
	obj, err := o.fetch(ctx, off, end)
	if err != nil {
		return 0, err
	}
	defer func() { _ = obj.Close() }()

	n, err := io.ReadFull(obj, p[:end-off+1])
	if err == nil && n < len(p) {
		err = io.EOF
	}
	return n, err
}

func (o *object) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	if off >= o.size || length <= 0 {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}
	return o.fetch(ctx, off, min(off+length, o.size)-1)
}

var errUploadDone = errors.New("minio: upload already finished")

// upload collects a snapshot in memory. Snapshots are bounded by the table
// size cap, so the object is always sent with a known length.
type upload struct {
	ctx   context.Context
	store *Store
	key   string
	buf   bytes.Buffer
	done  bool
}

func (u *upload) Write(p []byte) (int, error) {
	if u.done {
		return 0, errUploadDone
	}
	return u.buf.Write(p)
}

func (u *upload) Sync() error { return nil }

func (u *upload) Close() error {
	if u.done {
		return errUploadDone
	}
	u.done = true
	_, err := u.store.client.PutObject(u.ctx, u.store.bucket, u.key, bytes.NewReader(u.buf.Bytes()), int64(u.buf.Len()), u.store.putOptions())
	u.buf = bytes.Buffer{}
	return err
}

// Abort drops the buffered data without uploading.
func (u *upload) Abort() error {
	u.done = true
	u.buf = bytes.Buffer{}
	return nil
}

var (
	_ blobstore.BlobStore = (*Store)(nil)
	_ blobstore.Abortable = (*upload)(nil)
	_ Client              = (*minio.Client)(nil)
)
