package coverid

import (
	"log/slog"
	"time"

	"github.com/hupe1980/coverid/artifact"
	"github.com/hupe1980/coverid/blobstore"
	"github.com/hupe1980/coverid/dataset"
	"github.com/hupe1980/coverid/distance"
	"github.com/hupe1980/coverid/extract"
	"github.com/hupe1980/coverid/manifest"
	"github.com/hupe1980/coverid/resource"
	"github.com/hupe1980/coverid/transform"
)

type options struct {
	universe  dataset.Universe
	chain     *transform.Chain
	extractor extract.Extractor
	codes     *artifact.Store

	workers       int
	partitions    []int
	controller    *resource.Controller
	shardTimeout  time.Duration
	origin        *artifact.Store
	manifestStore manifest.Store
	skipExisting  bool
	buildEvery    int
	rawDim        int

	merged      string
	column      int
	maxShards   int
	parallelism int
	mapDepth    int
	metric      distance.Metric
	capacity    int
	evalEvery   int
	reportStore blobstore.BlobStore
	reportName  string

	metricsCollector MetricsCollector
	logger           *Logger
}

// Option configures a Pipeline.
type Option func(*options)

// WithUniverse sets the aligned track and clique ids to compute codes for.
func WithUniverse(u dataset.Universe) Option {
	return func(o *options) {
		o.universe = u
	}
}

// WithChain sets the transform chain. Nil computes raw median codes.
func WithChain(c *transform.Chain) Option {
	return func(o *options) {
		o.chain = c
	}
}

// WithExtractor sets the raw feature source.
func WithExtractor(e extract.Extractor) Option {
	return func(o *options) {
		o.extractor = e
	}
}

// WithCodeStore sets where shard artifacts are written and read.
func WithCodeStore(s *artifact.Store) Option {
	return func(o *options) {
		o.codes = s
	}
}

// WithWorkers sets the number of compute workers. Each worker owns ten
// shards of the plan.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithPartitions restricts a compute run to the given worker partitions.
func WithPartitions(p ...int) Option {
	return func(o *options) {
		o.partitions = p
	}
}

// WithController shares worker slots and feature IO limits across runs.
func WithController(c *resource.Controller) Option {
	return func(o *options) {
		o.controller = c
	}
}

// WithShardTimeout bounds the time spent on a single shard.
func WithShardTimeout(d time.Duration) Option {
	return func(o *options) {
		o.shardTimeout = d
	}
}

// WithOrigin enables transforming previously computed raw codes read from s
// instead of extracting features again.
func WithOrigin(s *artifact.Store) Option {
	return func(o *options) {
		o.origin = s
	}
}

// WithManifestStore persists the run manifest after every shard.
func WithManifestStore(s manifest.Store) Option {
	return func(o *options) {
		o.manifestStore = s
	}
}

// WithSkipExisting skips shards whose artifact already exists.
func WithSkipExisting(enabled bool) Option {
	return func(o *options) {
		o.skipExisting = enabled
	}
}

// WithBuildProgressEvery sets the number of tracks between builder progress
// logs.
func WithBuildProgressEvery(n int) Option {
	return func(o *options) {
		o.buildEvery = n
	}
}

// WithRawDim sets the raw feature dimension used for Missing rows.
func WithRawDim(d int) Option {
	return func(o *options) {
		o.rawDim = d
	}
}

// WithMerged evaluates a single merged artifact instead of every shard.
func WithMerged(name string) Option {
	return func(o *options) {
		o.merged = name
	}
}

// WithColumn selects the code column to evaluate. aggregate.Raw selects the
// last one.
func WithColumn(i int) Option {
	return func(o *options) {
		o.column = i
	}
}

// WithMaxShards bounds the number of shard artifacts evaluated.
func WithMaxShards(n int) Option {
	return func(o *options) {
		o.maxShards = n
	}
}

// WithParallelism fans evaluation queries out over p goroutines.
func WithParallelism(p int) Option {
	return func(o *options) {
		o.parallelism = p
	}
}

// WithMAPDepth bounds the ranks counted by MAP. Zero is unbounded.
func WithMAPDepth(n int) Option {
	return func(o *options) {
		o.mapDepth = n
	}
}

// WithMetric selects the ranking distance.
func WithMetric(m distance.Metric) Option {
	return func(o *options) {
		o.metric = m
	}
}

// WithQueryCapacity presizes the rank-list result. Zero sizes it to the
// number of queries.
func WithQueryCapacity(n int) Option {
	return func(o *options) {
		o.capacity = n
	}
}

// WithEvalProgressEvery sets the number of queries between evaluation
// progress logs.
func WithEvalProgressEvery(n int) Option {
	return func(o *options) {
		o.evalEvery = n
	}
}

// WithReport writes the rank-list artifact to store under name after each
// evaluation.
func WithReport(store blobstore.BlobStore, name string) Option {
	return func(o *options) {
		o.reportStore = store
		o.reportName = name
	}
}

// WithMetricsCollector configures a metrics collector. Pass nil to disable
// metrics collection.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging. Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		workers:          1,
		parallelism:      1,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	return o
}
