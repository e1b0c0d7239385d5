package blobstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalBlobStore_Lifecycle(t *testing.T) {
	tmpDir := t.TempDir()
	store := NewLocalStore(tmpDir)
	ctx := context.Background()

	data := []byte("hello world, this is a shard artifact")
	require.NoError(t, store.Put(ctx, "codes/000-msd-codes.codes", data))

	_, err := os.Stat(filepath.Join(tmpDir, "codes", "000-msd-codes.codes"))
	require.NoError(t, err)

	blob, err := store.Open(ctx, "codes/000-msd-codes.codes")
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), blob.Size())

	buf := make([]byte, 5)
	n, err := blob.ReadAt(ctx, buf, 6)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, "world", string(buf))
	require.NoError(t, blob.Close())

	require.NoError(t, store.Put(ctx, "codes/001-msd-codes.codes", []byte("x")))
	require.NoError(t, store.Put(ctx, "models/lda.json", []byte("{}")))

	names, err := store.List(ctx, "codes/")
	require.NoError(t, err)
	require.Equal(t, []string{"codes/000-msd-codes.codes", "codes/001-msd-codes.codes"}, names)

	require.NoError(t, store.Delete(ctx, "codes/000-msd-codes.codes"))
	require.NoError(t, store.Delete(ctx, "codes/000-msd-codes.codes"))

	_, err = store.Open(ctx, "codes/000-msd-codes.codes")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalBlobStore_PutReplacesAtomically(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "stats.json", []byte("first")))
	require.NoError(t, store.Put(ctx, "stats.json", []byte("second")))

	got, err := ReadAll(ctx, store, "stats.json")
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))

	// Temporary files never show up in listings.
	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"stats.json"}, names)
}

func TestLocalBlobStore_ListMissingRoot(t *testing.T) {
	store := NewLocalStore(filepath.Join(t.TempDir(), "missing"))
	names, err := store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestExists(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	ok, err := Exists(ctx, store, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Put(ctx, "a", []byte("1")))
	ok, err = Exists(ctx, store, "a")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryStore_ReadAll(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	data := []byte("0123456789")
	require.NoError(t, store.Put(ctx, "blob", data))
	data[0] = 'X'

	got, err := ReadAll(ctx, store, "blob")
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(got))

	blob, err := store.Open(ctx, "blob")
	require.NoError(t, err)
	defer blob.Close()

	buf := make([]byte, 5)
	n, err := blob.ReadAt(ctx, buf, 8)
	assert.Equal(t, 2, n)
	assert.Error(t, err)
	assert.Equal(t, "89", string(buf[:n]))
	assert.Equal(t, 1, store.Len())
}
