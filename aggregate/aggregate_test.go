package aggregate

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/coverid/artifact"
	"github.com/hupe1980/coverid/blobstore"
	"github.com/hupe1980/coverid/dataset"
)

// shard builds an artifact with two code columns: [i, i] and [i].
func shard(t *testing.T, ids []string, cliques []int32, valid ...int) *artifact.Artifact {
	t.Helper()
	a := artifact.New(ids, cliques, []int{2, 1})
	for _, i := range valid {
		v := float32(len(ids[i]) + i)
		require.NoError(t, a.Codes[0].SetRow(i, []float32{v, v}))
		require.NoError(t, a.Codes[1].SetRow(i, []float32{v}))
		a.Valid.Add(uint32(i))
	}
	return a
}

func shardStore(t *testing.T) *artifact.Store {
	t.Helper()
	ctx := context.Background()
	store := artifact.NewStore(blobstore.NewMemoryStore())

	// Written out of order; loading must follow sorted names.
	require.NoError(t, store.Put(ctx, "001-msd-codes", shard(t, []string{"c", "d"}, []int32{2, dataset.NoClique}, 0, 1)))
	require.NoError(t, store.Put(ctx, "000-msd-codes", shard(t, []string{"a", "b"}, []int32{1, 1}, 0)))
	require.NoError(t, store.Put(ctx, "002-msd-codes", shard(t, []string{"e"}, []int32{2}, 0)))
	return store
}

func TestLoad_Shards(t *testing.T) {
	s, err := Load(context.Background(), shardStore(t), WithParallelism(2))
	require.NoError(t, err)
	require.NoError(t, s.CheckAlignment())

	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, s.TrackIDs)
	assert.Equal(t, []int32{1, 1, 2, dataset.NoClique, 2}, s.CliqueIDs)
	assert.Equal(t, 2, s.Dim())
	assert.Equal(t, []uint32{0, 2, 3, 4}, s.Valid.ToArray())
	assert.Equal(t, 4, Queries(s))
}

func TestLoad_ColumnAndMaxShards(t *testing.T) {
	store := shardStore(t)

	s, err := Load(context.Background(), store, WithColumn(Raw), WithMaxShards(2))
	require.NoError(t, err)
	assert.Equal(t, 1, s.Dim())
	assert.Equal(t, 4, s.Len())

	_, err = Load(context.Background(), store, WithColumn(5))
	assert.Error(t, err)
}

func TestClean(t *testing.T) {
	s, err := Load(context.Background(), shardStore(t))
	require.NoError(t, err)

	// A valid row that still carries a NaN must be dropped as well.
	s.Features.Row(4)[0] = float32(math.NaN())

	c, err := Clean(s)
	require.NoError(t, err)
	require.NoError(t, c.CheckAlignment())

	assert.Equal(t, []string{"a", "c", "d"}, c.TrackIDs)
	assert.Equal(t, []int32{1, 2, dataset.NoClique}, c.CliqueIDs)
	assert.Equal(t, 3, c.Features.Rows)
	assert.Equal(t, uint64(3), c.Valid.GetCardinality())
	assert.Equal(t, s.Features.Row(2), c.Features.Row(1))

	// Input is untouched.
	assert.Equal(t, 5, s.Len())
}

func TestCheckAlignment(t *testing.T) {
	s := NewSet()
	s.TrackIDs = []string{"a"}
	var alignErr *AlignmentError
	require.ErrorAs(t, s.CheckAlignment(), &alignErr)
	assert.Equal(t, 0, alignErr.Rows)
	assert.Equal(t, 1, alignErr.TrackIDs)

	_, err := Clean(s)
	assert.ErrorAs(t, err, &alignErr)
}

func TestMerge(t *testing.T) {
	ctx := context.Background()
	src := shardStore(t)
	dst := artifact.NewStore(blobstore.NewMemoryStore())

	merged, err := Merge(ctx, src, dst, "msd-codes")
	require.NoError(t, err)
	assert.Equal(t, 5, merged.Len())
	assert.Equal(t, []int{2, 1}, merged.Dims)

	s, err := Load(ctx, dst, WithMerged("msd-codes"), WithColumn(1))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, s.TrackIDs)
	assert.Equal(t, 1, s.Dim())
	assert.Equal(t, []uint32{0, 2, 3, 4}, s.Valid.ToArray())

	_, err = Merge(ctx, artifact.NewStore(blobstore.NewMemoryStore()), dst, "empty")
	assert.Error(t, err)
}

func TestMerge_SameStore(t *testing.T) {
	ctx := context.Background()
	store := shardStore(t)

	_, err := Merge(ctx, store, store, "all-msd-codes")
	require.NoError(t, err)

	s, err := Load(ctx, store, WithColumn(0))
	require.NoError(t, err)
	assert.Equal(t, 5, s.Len())
}
