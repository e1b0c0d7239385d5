package artifact

import (
	"context"
	"math"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/coverid/blobstore"
	"github.com/hupe1980/coverid/codec"
	"github.com/hupe1980/coverid/testutil"
)

func sampleArtifact(t *testing.T, rows int) *Artifact {
	t.Helper()

	rng := testutil.NewRNG(3)
	ids := make([]string, rows)
	cliques := make([]int32, rows)
	for i := range rows {
		ids[i] = "TR" + string(rune('A'+i%26)) + "TRACK" + string(rune('0'+i%10))
		cliques[i] = int32(i%4) - 1
	}

	a := New(ids, cliques, []int{3, 5})
	for i := range rows {
		if i%3 == 2 {
			continue
		}
		for _, m := range a.Codes {
			rng.FillUniform(m.Row(i))
		}
		a.Valid.Add(uint32(i))
	}
	require.NoError(t, a.Validate())
	return a
}

func TestMatrix(t *testing.T) {
	m, err := MatrixFromRows([][]float32{{1, 2}, {3, 4}, {5, 6}})
	require.NoError(t, err)
	assert.Equal(t, 3, m.Rows)
	assert.Equal(t, []float32{3, 4}, m.Row(1))

	require.Error(t, m.SetRow(0, []float32{1}))
	require.Error(t, m.SetRow(3, []float32{1, 2}))

	sel := m.Select([]int{2, 0})
	assert.Equal(t, []float32{5, 6, 1, 2}, sel.Data)

	empty := NewMatrix(0, 0)
	require.NoError(t, empty.Append(m))
	require.NoError(t, empty.Append(sel))
	assert.Equal(t, 5, empty.Rows)
	assert.Equal(t, 2, empty.Dim)
	assert.Error(t, empty.Append(NewMatrix(1, 3)))
}

func TestArtifact_Validate(t *testing.T) {
	a := New([]string{"a", "b"}, []int32{1, 2}, []int{2})
	require.NoError(t, a.Validate())

	a.CliqueIDs = a.CliqueIDs[:1]
	assert.ErrorIs(t, a.Validate(), ErrMisaligned)

	a = New([]string{"a", "b"}, []int32{1, 2}, []int{2})
	a.Valid.Add(2)
	assert.ErrorIs(t, a.Validate(), ErrMisaligned)

	a = New([]string{"a", "b"}, []int32{1, 2}, []int{2})
	a.Codes[0].Rows = 1
	assert.ErrorIs(t, a.Validate(), ErrMisaligned)
}

func TestMarshal_RoundTrip(t *testing.T) {
	a := sampleArtifact(t, 40)
	// Non-finite values survive bit for bit.
	a.Codes[0].Row(0)[0] = float32(math.Inf(1))

	for _, c := range []codec.Compression{codec.CompressionNone, codec.CompressionLZ4, codec.CompressionZSTD} {
		t.Run(c.String(), func(t *testing.T) {
			data, err := Marshal(a, c)
			require.NoError(t, err)

			got, err := Unmarshal(data)
			require.NoError(t, err)

			assert.Equal(t, a.Dims, got.Dims)
			assert.Equal(t, a.TrackIDs, got.TrackIDs)
			assert.Equal(t, a.CliqueIDs, got.CliqueIDs)
			assert.True(t, a.Valid.Equals(got.Valid))
			for i := range a.Codes {
				require.Len(t, got.Codes[i].Data, len(a.Codes[i].Data))
				for j, v := range a.Codes[i].Data {
					assert.Equal(t, math.Float32bits(v), math.Float32bits(got.Codes[i].Data[j]))
				}
			}
		})
	}
}

func TestUnmarshal_Errors(t *testing.T) {
	_, err := Unmarshal([]byte("nope"))
	assert.ErrorIs(t, err, ErrBadMagic)

	data, err := Marshal(sampleArtifact(t, 4), codec.CompressionNone)
	require.NoError(t, err)

	bad := append([]byte(nil), data...)
	bad[4] = 9
	_, err = Unmarshal(bad)
	assert.ErrorIs(t, err, ErrUnsupportedVersion)

	_, err = Unmarshal(data[:len(data)-3])
	assert.Error(t, err)
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	blobs := blobstore.NewMemoryStore()
	store := NewStore(blobs, WithCompression(codec.CompressionZSTD))

	a := sampleArtifact(t, 10)
	require.NoError(t, store.Put(ctx, "011-msd-codes", a))
	require.NoError(t, store.Put(ctx, "000-msd-codes", a))
	require.NoError(t, blobs.Put(ctx, "notes.txt", []byte("ignored")))

	names, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"000-msd-codes", "011-msd-codes"}, names)

	ok, err := store.Exists(ctx, "000-msd-codes")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := store.Get(ctx, "011-msd-codes")
	require.NoError(t, err)
	assert.Equal(t, a.TrackIDs, got.TrackIDs)
	assert.Equal(t, a.Codes[1].Data, got.Codes[1].Data)

	err = store.Put(ctx, "000-msd-codes", a)
	assert.ErrorIs(t, err, ErrExists)

	require.NoError(t, NewStore(blobs, WithOverwrite(true)).Put(ctx, "000-msd-codes", a))

	require.NoError(t, store.Delete(ctx, "000-msd-codes"))
	_, err = store.Get(ctx, "000-msd-codes")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestNew_CopiesInputs(t *testing.T) {
	ids := []string{"a"}
	a := New(ids, []int32{1}, []int{2})
	ids[0] = "z"
	assert.Equal(t, "a", a.TrackIDs[0])
	assert.Equal(t, 0, a.ValidCount())
	assert.False(t, a.IsValid(0))

	a.Valid = roaring.BitmapOf(0)
	assert.True(t, a.IsValid(0))
}
