package testutil

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/coverid/blobstore"
	"github.com/hupe1980/coverid/extract"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// FillUniform fills the slice with random float32 values in [0, 1).
func (r *RNG) FillUniform(dst []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range dst {
		dst[i] = r.rand.Float32()
	}
}

// Frames returns a rows x cols matrix of non-negative values, shaped like
// beat-aligned chroma frames.
func (r *RNG) Frames(rows, cols int) [][]float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float32, rows*cols)
	frames := make([][]float32, rows)
	for i := range rows {
		f := data[i*cols : (i+1)*cols]
		for j := range f {
			f[j] = r.rand.Float32()
		}
		frames[i] = f
	}
	return frames
}

// GaussianVectors generates random vectors with values from a standard normal distribution.
func (r *RNG) GaussianVectors(num int, dimensions int) [][]float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float32, num*dimensions)
	vectors := make([][]float32, num)
	for i := range num {
		vec := data[i*dimensions : (i+1)*dimensions]
		for j := range vec {
			vec[j] = float32(r.rand.NormFloat64())
		}
		vectors[i] = vec
	}
	return vectors
}

// CliqueCodes generates cliques*size codes of dimension dim. Members of the
// same clique are centered on a shared unit centroid and perturbed by
// Gaussian noise scaled by spread. Clique IDs start at 0.
func (r *RNG) CliqueCodes(cliques, size, dim int, spread float32) ([][]float32, []int32) {
	centroids := r.GaussianVectors(cliques, dim)

	r.mu.Lock()
	defer r.mu.Unlock()

	vectors := make([][]float32, 0, cliques*size)
	ids := make([]int32, 0, cliques*size)
	for c := range cliques {
		centroid := centroids[c]
		var norm float64
		for _, v := range centroid {
			norm += float64(v) * float64(v)
		}
		inv := float32(1 / math.Sqrt(max(norm, 1e-12)))

		for range size {
			vec := make([]float32, dim)
			for j := range vec {
				vec[j] = centroid[j]*inv + float32(r.rand.NormFloat64())*spread
			}
			vectors = append(vectors, vec)
			ids = append(ids, int32(c))
		}
	}
	return vectors, ids
}

// LabeledSamples draws n samples per class from Gaussian blobs whose means
// are separated along distinct axes. Used for fitting projections.
func (r *RNG) LabeledSamples(classes, n, dim int, sep float64) ([][]float64, []int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		xs     [][]float64
		labels []int
	)
	for c := range classes {
		for range n {
			row := make([]float64, dim)
			for j := range row {
				row[j] = r.rand.NormFloat64()
			}
			row[c%dim] += sep
			xs = append(xs, row)
			labels = append(labels, c)
		}
	}
	return xs, labels
}

// PutFrames writes frames for trackID into store at the MSD-style path.
func PutFrames(t testing.TB, store blobstore.BlobStore, trackID string, frames [][]float32) {
	t.Helper()

	data, err := extract.EncodeFrames(frames)
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), extract.PathFromTrackID(trackID), data))
}
