// Package blobstore provides the storage abstraction for backups.
//
// Store is the interface for reading and writing named blobs (backup
// streams, manifests and the CURRENT pointer). Implementations must be safe
// for concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: local filesystem with atomic renames
//   - MemoryStore: in-memory, for tests
//   - s3.Store: Amazon S3 with multipart uploads
//   - s3.DDBCommitStore: S3 plus DynamoDB conditional writes for CURRENT
//   - minio.Store: MinIO and S3-compatible services
//
// # Custom Implementations
//
//	type Store interface {
//	    Open(ctx, name) (Blob, error)
//	    Create(ctx, name) (WritableBlob, error)
//	    Put(ctx, name, data) error
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
package blobstore
