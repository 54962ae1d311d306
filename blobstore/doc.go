// Package blobstore provides the storage abstraction for table snapshots.
//
// # Built-in Implementations
//
//   - MemoryStore: in-process map, for tests and short-lived tools
//   - LocalStore: local filesystem with mmap-backed reads
//   - minio.Store: MinIO and other S3-compatible services
//   - s3.Store: Amazon S3 with range reads and multipart uploads
//
// Blobs are immutable once written; writers publish a blob only when they
// are closed successfully.
package blobstore
