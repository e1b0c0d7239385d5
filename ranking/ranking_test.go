package ranking

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/coverid/artifact"
	"github.com/hupe1980/coverid/distance"
	"github.com/hupe1980/coverid/stats"
	"github.com/hupe1980/coverid/testutil"
)

func matrix(t *testing.T, rows ...[]float32) *artifact.Matrix {
	t.Helper()
	m, err := artifact.MatrixFromRows(rows)
	require.NoError(t, err)
	return m
}

func TestEvaluate_TwoCliques(t *testing.T) {
	features := matrix(t,
		[]float32{0, 0},
		[]float32{0, 1},
		[]float32{5, 5},
		[]float32{5, 6},
	)
	e, err := NewEvaluator()
	require.NoError(t, err)

	ranks, err := e.Evaluate(context.Background(), features, []int32{1, 1, 2, 2}, 0)
	require.NoError(t, err)
	assert.Equal(t, []stats.RankList{{1}, {1}, {1}, {1}}, ranks)
	assert.InDelta(t, 1.0, stats.MeanAveragePrecision(ranks, 0), 1e-12)
	assert.InDelta(t, 1.0, stats.AverageRankPerTrack(ranks), 1e-12)
}

func TestEvaluate_SingletonIsInfinite(t *testing.T) {
	features := matrix(t, []float32{0}, []float32{5}, []float32{6})
	e, err := NewEvaluator()
	require.NoError(t, err)

	ranks, err := e.Evaluate(context.Background(), features, []int32{7, 1, 1}, 0)
	require.NoError(t, err)
	require.Len(t, ranks, 3)
	assert.True(t, ranks[0].Infinite())
	assert.Equal(t, stats.RankList{1}, ranks[1])
	assert.Equal(t, stats.RankList{1}, ranks[2])
}

func TestEvaluate_SkipsUnlabelled(t *testing.T) {
	features := matrix(t, []float32{0}, []float32{0.5}, []float32{1})
	e, err := NewEvaluator()
	require.NoError(t, err)

	ranks, err := e.Evaluate(context.Background(), features, []int32{3, NoClique, 3}, 0)
	require.NoError(t, err)
	require.Len(t, ranks, 2)
	// The unlabelled track still occupies a position in each list.
	assert.Equal(t, stats.RankList{2}, ranks[0])
	assert.Equal(t, stats.RankList{2}, ranks[1])
}

func TestEvaluate_SelfExcludedOnTies(t *testing.T) {
	features := matrix(t, []float32{0, 0}, []float32{0, 0}, []float32{0, 0})
	e, err := NewEvaluator()
	require.NoError(t, err)

	ranks, err := e.Evaluate(context.Background(), features, []int32{1, 2, 1}, 0)
	require.NoError(t, err)
	assert.Equal(t, stats.RankList{2}, ranks[0])
	assert.True(t, ranks[1].Infinite())
	assert.Equal(t, stats.RankList{1}, ranks[2])
}

func TestEvaluate_ResultCapacity(t *testing.T) {
	features := matrix(t, []float32{0}, []float32{1})
	e, err := NewEvaluator()
	require.NoError(t, err)

	ranks, err := e.Evaluate(context.Background(), features, []int32{1, 1}, 5)
	require.NoError(t, err)
	require.Len(t, ranks, 5)
	assert.Equal(t, stats.RankList{1}, ranks[0])
	for _, r := range ranks[2:] {
		assert.True(t, r.Infinite())
	}

	_, err = e.Evaluate(context.Background(), features, []int32{1, 1}, 1)
	assert.ErrorIs(t, err, ErrQueryOverflow)
}

func TestEvaluate_Errors(t *testing.T) {
	e, err := NewEvaluator()
	require.NoError(t, err)

	_, err = e.Evaluate(context.Background(), matrix(t, []float32{0}), []int32{1, 1}, 0)
	assert.ErrorIs(t, err, ErrMisaligned)

	bad := matrix(t, []float32{0}, []float32{float32(math.NaN())})
	_, err = e.Evaluate(context.Background(), bad, []int32{1, 1}, 0)
	assert.ErrorIs(t, err, ErrNonFinite)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Evaluate(ctx, matrix(t, []float32{0}, []float32{1}), []int32{1, 1}, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEvaluate_ParallelMatchesSequential(t *testing.T) {
	rng := testutil.NewRNG(11)
	vecs, cliques := rng.CliqueCodes(40, 3, 8, 0.2)
	features := matrix(t, vecs...)

	seq, err := NewEvaluator(WithProgressEvery(7))
	require.NoError(t, err)
	par, err := NewEvaluator(WithProgressEvery(7), WithParallelism(4))
	require.NoError(t, err)

	want, err := seq.Evaluate(context.Background(), features, cliques, 0)
	require.NoError(t, err)
	got, err := par.Evaluate(context.Background(), features, cliques, 0)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	again, err := seq.Evaluate(context.Background(), features, cliques, 0)
	require.NoError(t, err)
	assert.Equal(t, want, again)

	for q, r := range want {
		assert.Len(t, r, 2, "query %d", q)
		assert.Equal(t, r, seq.Rank(features, cliques, q))
	}
}

func TestEvaluate_MetricsHook(t *testing.T) {
	features := matrix(t, []float32{0}, []float32{1}, []float32{10}, []float32{11})

	var seen []int
	e, err := NewEvaluator(
		WithProgressEvery(3),
		WithParallelism(2),
		WithMetricsHook(func(q int, _ stats.RankList) { seen = append(seen, q) }),
	)
	require.NoError(t, err)

	_, err = e.Evaluate(context.Background(), features, []int32{1, 1, 2, 2}, 0)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3}, seen)
}

func TestEvaluate_Cosine(t *testing.T) {
	features := matrix(t,
		[]float32{1, 0},
		[]float32{10, 1},
		[]float32{0, 1},
		[]float32{1, 10},
	)
	e, err := NewEvaluator(WithMetric(distance.MetricCosine))
	require.NoError(t, err)

	ranks, err := e.Evaluate(context.Background(), features, []int32{1, 1, 2, 2}, 0)
	require.NoError(t, err)
	assert.Equal(t, []stats.RankList{{1}, {1}, {1}, {1}}, ranks)
}

func BenchmarkEvaluate(b *testing.B) {
	rng := testutil.NewRNG(3)
	vecs, cliques := rng.CliqueCodes(200, 4, 64, 0.3)
	features, err := artifact.MatrixFromRows(vecs)
	require.NoError(b, err)
	e, err := NewEvaluator(WithParallelism(4))
	require.NoError(b, err)

	b.ResetTimer()
	for b.Loop() {
		_, _ = e.Evaluate(context.Background(), features, cliques, 0)
	}
}
