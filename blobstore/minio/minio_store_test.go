package minio

import (
	"context"
	"testing"

	"github.com/hupe1980/chunkcanvas/blobstore"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Keys(t *testing.T) {
	s := NewStore(nil, "bucket", "indexes/")
	assert.Equal(t, "indexes/docs.faiss", s.key("docs.faiss"))
	assert.Equal(t, "docs.faiss", s.relative("indexes/docs.faiss"))
	assert.Equal(t, "application/json", contentType("docs.meta.json"))
	assert.Equal(t, "application/octet-stream", contentType("docs.faiss"))

	assert.ErrorIs(t, s.Put(context.Background(), "", nil), blobstore.ErrInvalidName)
}

// TestMinioStore_Integration requires a running MinIO instance.
// Skip if not available.
func TestMinioStore_Integration(t *testing.T) {
	endpoint := "localhost:9000"
	accessKey := "minioadmin"
	secretKey := "minioadmin"
	bucket := "test-chunkcanvas"

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: false,
	})
	if err != nil {
		t.Skipf("MinIO client creation failed: %v", err)
	}

	ctx := context.Background()

	// Check if MinIO is reachable
	if _, err := client.ListBuckets(ctx); err != nil {
		t.Skipf("MinIO not available: %v", err)
	}

	store := NewStore(client, bucket, "test-prefix/")
	require.NoError(t, store.EnsureBucket(ctx, true))

	data := []byte("hello minio world")
	require.NoError(t, store.Put(ctx, "docs.faiss", data))

	got, err := store.Get(ctx, "docs.faiss")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Contains(t, names, "docs.faiss")

	require.NoError(t, store.Delete(ctx, "docs.faiss"))
	_, err = store.Get(ctx, "docs.faiss")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}
