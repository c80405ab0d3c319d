package minio

import (
	"context"
	"os"
	"testing"

	"github.com/hupe1980/tindex/blobstore"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialValidation(t *testing.T) {
	_, err := Dial(Config{Bucket: "b"})
	assert.Error(t, err)
	_, err = Dial(Config{Endpoint: "localhost:9000"})
	assert.Error(t, err)

	s, err := Dial(Config{Endpoint: "localhost:9000", Bucket: "b", Prefix: "/backups/"})
	require.NoError(t, err)
	assert.Equal(t, "backups/x", s.key("x"))
	assert.Equal(t, "x", NewStore(nil, "b", "").key("x"))
}

// TestMinioStore_Integration requires a running MinIO instance at
// MINIO_ENDPOINT (default localhost:9000). Skip if not available.
func TestMinioStore_Integration(t *testing.T) {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		endpoint = "localhost:9000"
	}
	bucket := "test-tindex"

	store, err := Dial(Config{
		Endpoint:  endpoint,
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Bucket:    bucket,
		Prefix:    "test-prefix/",
	})
	if err != nil {
		t.Skipf("MinIO client creation failed: %v", err)
	}

	ctx := context.Background()
	if _, err := store.client.ListBuckets(ctx); err != nil {
		t.Skipf("MinIO not available: %v", err)
	}

	exists, err := store.client.BucketExists(ctx, bucket)
	require.NoError(t, err)
	if !exists {
		require.NoError(t, store.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}))
	}

	data := []byte("hello minio world")
	require.NoError(t, store.Put(ctx, "test.txt", data))

	got, err := blobstore.ReadAll(ctx, store, "test.txt")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	blob, err := store.Open(ctx, "test.txt")
	require.NoError(t, err)
	buf := make([]byte, 5)
	n, err := blob.ReadAt(ctx, buf, 6)
	require.NoError(t, err)
	assert.Equal(t, "minio", string(buf[:n]))
	require.NoError(t, blob.Close())

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Contains(t, names, "test.txt")

	require.NoError(t, store.Delete(ctx, "test.txt"))
	_, err = store.Open(ctx, "test.txt")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)

	wb, err := store.Create(ctx, "stream.txt")
	require.NoError(t, err)
	_, err = wb.Write([]byte("streamed data"))
	require.NoError(t, err)
	require.NoError(t, wb.Close())

	blob, err = store.Open(ctx, "stream.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(13), blob.Size())
	require.NoError(t, blob.Close())

	_ = store.Delete(ctx, "stream.txt")
}
