// Package minio provides a blobstore.Store implementation using the MinIO client.
//
// It works with MinIO and other S3-compatible storage systems such as Ceph,
// SeaweedFS and Garage, without the AWS SDK.
//
// # Basic Usage
//
//	store, err := minioblob.Dial(minioblob.Config{
//	    Endpoint:  "localhost:9000",
//	    AccessKey: "minioadmin",
//	    SecretKey: "minioadmin",
//	    Bucket:    "backups",
//	    Prefix:    "tindex/",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	_, err = backup.Export(ctx, eng, store)
//
// An existing *minio.Client can be wrapped with NewStore.
package minio
