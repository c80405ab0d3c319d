// Package s3 provides an S3 implementation of the blobstore.Store interface.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("tindex-backups/"),
//	    s3.WithRegion("us-east-1"),
//	)
//
//	_, err = backup.Export(ctx, eng, store)
//
// # Features
//
//   - Range reads for partial fetches
//   - Streaming multipart uploads for large backup streams
//   - CRC32C checksums on uploads
//   - Conditional writes (PutIfNotExists)
//   - DynamoDB-backed commit pointer for concurrent writers (DDBCommitStore)
package s3
