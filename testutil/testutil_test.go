package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRNG_Deterministic(t *testing.T) {
	a := NewRNG(42).Frames(4, 3)
	b := NewRNG(42).Frames(4, 3)
	assert.Equal(t, a, b)

	r := NewRNG(7)
	first := r.Intn(1000)
	r.Reset()
	assert.Equal(t, first, r.Intn(1000))
	assert.Equal(t, int64(7), r.Seed())
}

func TestRNG_CliqueCodes(t *testing.T) {
	codes, ids := NewRNG(1).CliqueCodes(4, 3, 8, 0.01)
	assert.Len(t, codes, 12)
	assert.Len(t, ids, 12)
	assert.Equal(t, int32(0), ids[0])
	assert.Equal(t, int32(3), ids[11])
	for _, c := range codes {
		assert.Len(t, c, 8)
	}
}

func TestRNG_LabeledSamples(t *testing.T) {
	xs, labels := NewRNG(1).LabeledSamples(3, 5, 4, 10)
	assert.Len(t, xs, 15)
	assert.Equal(t, []int{0, 0, 0, 0, 0, 1, 1, 1, 1, 1, 2, 2, 2, 2, 2}, labels)
}
