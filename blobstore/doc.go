// Package blobstore provides the storage abstraction for shard artifacts,
// fitted transform models, run manifests and rank-list reports.
//
// Every object coverid persists is write-once and uniquely named, so the
// interface is deliberately small: whole-object Put, random-access Open,
// prefix List and Delete. Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: local filesystem, atomic writes, mmap reads
//   - MemoryStore: in-process store for tests
//   - s3.Store: Amazon S3 (package blobstore/s3)
//   - minio.Store: MinIO and other S3-compatible services (package blobstore/minio)
package blobstore
