// Package blobstore provides the object storage abstraction used to mirror
// committed index pairs off the local disk.
//
// Store is the interface for writing and reading whole blobs. Implementations
// must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: a directory on the local filesystem, atomic writes
//   - MemoryStore: in-memory, for tests
//   - minio.Store: MinIO and other S3-compatible servers
//   - s3.Store: Amazon S3 with multipart uploads
//
// Compressed wraps any Store and transparently compresses blobs with LZ4 or
// Zstandard.
//
// # Journals
//
// A Journal records every mirrored commit under a per-index, monotonically
// increasing version. MemoryJournal serves tests and single-process setups;
// s3.DDBJournal keeps the log in DynamoDB using conditional writes so that
// concurrent mirrors never reuse a version.
package blobstore
