// Package ranking evaluates exact nearest-neighbour retrieval of cover
// cliques. For every track with a known clique, all other tracks are ranked
// by distance and the positions of its clique members are recorded.
package ranking

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/coverid/artifact"
	"github.com/hupe1980/coverid/dataset"
	"github.com/hupe1980/coverid/distance"
	"github.com/hupe1980/coverid/stats"
)

// NoClique marks tracks that are never queries.
const NoClique = dataset.NoClique

// DefaultProgressEvery is the number of queries between progress logs.
const DefaultProgressEvery = 400

var (
	// ErrQueryOverflow is returned when there are more queries than the
	// requested result size.
	ErrQueryOverflow = errors.New("ranking: more queries than result capacity")
	// ErrMisaligned is returned when clique IDs do not match the feature rows.
	ErrMisaligned = errors.New("ranking: features and clique ids are misaligned")
	// ErrNonFinite is returned for feature sets that were not cleaned.
	ErrNonFinite = errors.New("ranking: feature row contains NaN or Inf")
)

// QueryHook observes each finished query in query order.
type QueryHook func(query int, ranks stats.RankList)

type options struct {
	logger        *slog.Logger
	progressEvery int
	parallelism   int
	hook          QueryHook
	mapDepth      int
	metric        distance.Metric
}

// Option configures an Evaluator.
type Option func(*options)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithProgressEvery sets the number of queries between progress logs.
func WithProgressEvery(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.progressEvery = n
		}
	}
}

// WithParallelism fans queries out over p goroutines. Results do not depend
// on p.
func WithParallelism(p int) Option {
	return func(o *options) {
		if p > 0 {
			o.parallelism = p
		}
	}
}

// WithMetricsHook registers a per-query callback.
func WithMetricsHook(h QueryHook) Option {
	return func(o *options) {
		o.hook = h
	}
}

// WithMAPDepth bounds the ranks counted by the logged MAP.
func WithMAPDepth(n int) Option {
	return func(o *options) {
		o.mapDepth = n
	}
}

// WithMetric selects the distance. Default is Euclidean.
func WithMetric(m distance.Metric) Option {
	return func(o *options) {
		o.metric = m
	}
}

// Evaluator ranks every query against the full feature set.
type Evaluator struct {
	opts options
	dist distance.Func
}

// NewEvaluator creates an Evaluator.
func NewEvaluator(optFns ...Option) (*Evaluator, error) {
	opts := options{
		logger:        slog.New(slog.DiscardHandler),
		progressEvery: DefaultProgressEvery,
		parallelism:   1,
		metric:        distance.MetricEuclidean,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	dist, err := distance.Provider(opts.metric)
	if err != nil {
		return nil, err
	}
	if opts.metric == distance.MetricEuclidean {
		// Same order as Euclidean without the square root.
		dist = distance.SquaredL2
	}
	return &Evaluator{opts: opts, dist: dist}, nil
}

type scratch struct {
	dists []float32
	order []int
}

// Evaluate ranks every track whose clique is not NoClique. The result has
// one entry per query in row order; query q is the q-th such track.
//
// n presizes the result. n <= 0 sizes it to the number of queries. When n
// exceeds the query count the trailing entries stay infinite; fewer than the
// query count yields ErrQueryOverflow.
func (e *Evaluator) Evaluate(ctx context.Context, features *artifact.Matrix, cliqueIDs []int32, n int) ([]stats.RankList, error) {
	if features.Rows != len(cliqueIDs) {
		return nil, fmt.Errorf("%w: %d rows, %d clique ids", ErrMisaligned, features.Rows, len(cliqueIDs))
	}
	for i := range features.Rows {
		for _, x := range features.Row(i) {
			if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
				return nil, fmt.Errorf("%w: row %d", ErrNonFinite, i)
			}
		}
	}

	queries := make([]int, 0, len(cliqueIDs))
	for i, c := range cliqueIDs {
		if c != NoClique {
			queries = append(queries, i)
		}
	}
	if n <= 0 {
		n = len(queries)
	}
	if len(queries) > n {
		return nil, fmt.Errorf("%w: %d queries, capacity %d", ErrQueryOverflow, len(queries), n)
	}

	e.opts.logger.Info("computing scores", "queries", len(queries), "tracks", features.Rows, "parallelism", e.opts.parallelism)

	results := make([]stats.RankList, n)
	pool := sync.Pool{New: func() any {
		return &scratch{
			dists: make([]float32, features.Rows),
			order: make([]int, features.Rows),
		}
	}}

	every := e.opts.progressEvery
	for lo := 0; lo < len(queries); lo += every {
		hi := min(lo+every, len(queries))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.opts.parallelism)
		for q := lo; q < hi; q++ {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				s := pool.Get().(*scratch)
				results[q] = e.rank(features, cliqueIDs, queries[q], s)
				pool.Put(s)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		if e.opts.hook != nil {
			for q := lo; q < hi; q++ {
				e.opts.hook(q, results[q])
			}
		}
		if hi%every == 0 {
			done := results[:hi]
			e.opts.logger.Info("scoring progress",
				"queries", hi,
				"avg_rank_per_track", stats.AverageRankPerTrack(done),
				"avg_rank_per_clique", stats.AverageRankPerClique(done),
				"map", stats.MeanAveragePrecision(done, e.opts.mapDepth))
		}
	}
	return results, nil
}

// Rank returns the rank list of the track at row i.
func (e *Evaluator) Rank(features *artifact.Matrix, cliqueIDs []int32, i int) stats.RankList {
	s := &scratch{
		dists: make([]float32, features.Rows),
		order: make([]int, features.Rows),
	}
	return e.rank(features, cliqueIDs, i, s)
}

// rank sorts all rows by (distance, index) with the query pinned at
// position 0 and collects the positions of its clique members.
func (e *Evaluator) rank(features *artifact.Matrix, cliqueIDs []int32, i int, s *scratch) stats.RankList {
	q := features.Row(i)
	for j := range features.Rows {
		s.dists[j] = e.dist(q, features.Row(j))
		s.order[j] = j
	}

	slices.SortFunc(s.order, func(a, b int) int {
		switch {
		case a == b:
			return 0
		case a == i:
			return -1
		case b == i:
			return 1
		}
		if c := cmp.Compare(s.dists[a], s.dists[b]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})

	var ranks stats.RankList
	clique := cliqueIDs[i]
	for pos := 1; pos < len(s.order); pos++ {
		if cliqueIDs[s.order[pos]] == clique {
			ranks = append(ranks, pos)
		}
	}
	return ranks
}
