package minio

import (
	"context"
	"os"
	"testing"

	"github.com/hupe1980/coverid/blobstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMinioStore_Integration requires a running MinIO instance.
// Set MINIO_ENDPOINT (e.g. localhost:9000) to enable it.
func TestMinioStore_Integration(t *testing.T) {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("Skipping MinIO integration test: MINIO_ENDPOINT not set")
	}

	ctx := context.Background()
	store, err := New(ctx, Config{
		Endpoint:  endpoint,
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Bucket:    "test-coverid",
		Prefix:    "test-prefix/",
	})
	if err != nil {
		t.Skipf("MinIO not available: %v", err)
	}

	data := []byte("hello minio world")
	require.NoError(t, store.Put(ctx, "codes/000-msd-codes.codes", data))

	got, err := blobstore.ReadAll(ctx, store, "codes/000-msd-codes.codes")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	names, err := store.List(ctx, "codes/")
	require.NoError(t, err)
	assert.Contains(t, names, "codes/000-msd-codes.codes")

	require.NoError(t, store.Delete(ctx, "codes/000-msd-codes.codes"))
	_, err = store.Open(ctx, "codes/000-msd-codes.codes")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}
