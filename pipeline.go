package coverid

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/coverid/aggregate"
	"github.com/hupe1980/coverid/codes"
	"github.com/hupe1980/coverid/ranking"
	"github.com/hupe1980/coverid/scheduler"
	"github.com/hupe1980/coverid/stats"
	"github.com/hupe1980/coverid/transform"
)

// Pipeline computes sharded codes for a track universe and evaluates
// clique retrieval over them. A Pipeline holds no mutable state and may run
// Compute and Evaluate any number of times.
type Pipeline struct {
	opts options
}

// Evaluation is the outcome of Pipeline.Evaluate. Ranks[q] belongs to the
// track Queries[q]; entries past len(Queries) are infinite padding.
type Evaluation struct {
	Queries []string
	Ranks   []stats.RankList
	Summary stats.Summary
}

// New creates a Pipeline.
func New(optFns ...Option) (*Pipeline, error) {
	opts := applyOptions(optFns)
	if opts.codes == nil {
		return nil, fmt.Errorf("%w: code store", ErrMissingInput)
	}
	if opts.workers <= 0 {
		return nil, fmt.Errorf("workers must be positive, got %d", opts.workers)
	}
	if opts.chain == nil {
		opts.chain = &transform.Chain{}
	}
	return &Pipeline{opts: opts}, nil
}

// Chain returns the transform chain.
func (p *Pipeline) Chain() *transform.Chain { return p.opts.chain }

func (p *Pipeline) preflightCompute() error {
	if p.opts.universe.Len() == 0 {
		return fmt.Errorf("%w: empty track universe", ErrMissingInput)
	}
	if err := p.opts.universe.Validate(); err != nil {
		return err
	}
	if p.opts.extractor == nil && p.opts.origin == nil {
		return fmt.Errorf("%w: feature extractor or origin codes", ErrMissingInput)
	}
	if p.opts.rawDim > 0 {
		if err := p.opts.chain.Validate(p.opts.rawDim); err != nil {
			return err
		}
	}
	return nil
}

// Compute plans shards for every worker partition and computes them. Shard
// failures do not fail the call; they are listed in the report.
func (p *Pipeline) Compute(ctx context.Context) (*scheduler.Report, error) {
	if err := p.preflightCompute(); err != nil {
		return nil, err
	}

	log := p.opts.logger
	mc := p.opts.metricsCollector

	builderOpts := []codes.Option{
		codes.WithLogger(log.Logger),
		codes.WithTrackHook(func(_ string, r codes.Result) { mc.RecordTrack(r.OK()) }),
	}
	if p.opts.buildEvery > 0 {
		builderOpts = append(builderOpts, codes.WithProgressEvery(p.opts.buildEvery))
	}
	if p.opts.rawDim > 0 {
		builderOpts = append(builderOpts, codes.WithRawDim(p.opts.rawDim))
	}
	builder := codes.NewBuilder(p.opts.chain, p.opts.extractor, builderOpts...)

	partitions := p.opts.partitions
	if len(partitions) == 0 {
		partitions = scheduler.Partitions(p.opts.workers)
	}
	plan := scheduler.Plan(p.opts.universe.Len(), partitions)

	schedOpts := []scheduler.Option{
		scheduler.WithWorkers(p.opts.workers),
		scheduler.WithController(p.opts.controller),
		scheduler.WithShardTimeout(p.opts.shardTimeout),
		scheduler.WithSkipExisting(p.opts.skipExisting),
		scheduler.WithLogger(log.Logger),
		scheduler.WithProgress(func(sh scheduler.Shard, elapsed time.Duration, err error) {
			mc.RecordShard(sh.Len(), elapsed, err)
			log.LogShard(ctx, sh, elapsed, err)
		}),
	}
	if p.opts.origin != nil {
		schedOpts = append(schedOpts, scheduler.WithOrigin(p.opts.origin))
	}
	if p.opts.manifestStore != nil {
		schedOpts = append(schedOpts, scheduler.WithManifestStore(p.opts.manifestStore))
	}

	rep, err := scheduler.New(builder, p.opts.codes, schedOpts...).Run(ctx, p.opts.universe, plan)
	if err != nil {
		return nil, err
	}
	log.LogCompute(ctx, rep)
	return rep, nil
}

// Evaluate loads the stored codes, drops invalid rows, ranks every query and
// reduces the ranks to summary statistics. With WithReport the rank lists
// are persisted as well.
func (p *Pipeline) Evaluate(ctx context.Context) (*Evaluation, error) {
	log := p.opts.logger
	mc := p.opts.metricsCollector

	set, err := aggregate.Load(ctx, p.opts.codes,
		aggregate.WithMerged(p.opts.merged),
		aggregate.WithColumn(p.opts.column),
		aggregate.WithMaxShards(p.opts.maxShards),
		aggregate.WithLogger(log.Logger),
	)
	if err != nil {
		return nil, err
	}
	clean, err := aggregate.Clean(set)
	if err != nil {
		return nil, err
	}
	if clean.Len() == 0 {
		return nil, ErrNoCodes
	}
	log.InfoContext(ctx, "codes cleaned", "rows", set.Len(), "valid", clean.Len(), "queries", aggregate.Queries(clean))

	evalOpts := []ranking.Option{
		ranking.WithLogger(log.Logger),
		ranking.WithParallelism(p.opts.parallelism),
		ranking.WithMAPDepth(p.opts.mapDepth),
		ranking.WithMetric(p.opts.metric),
		ranking.WithMetricsHook(func(_ int, r stats.RankList) { mc.RecordQuery(!r.Infinite()) }),
	}
	if p.opts.evalEvery > 0 {
		evalOpts = append(evalOpts, ranking.WithProgressEvery(p.opts.evalEvery))
	}
	evaluator, err := ranking.NewEvaluator(evalOpts...)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	ranks, err := evaluator.Evaluate(ctx, clean.Features, clean.CliqueIDs, p.opts.capacity)
	if err != nil {
		return nil, err
	}

	ev := &Evaluation{
		Ranks:   ranks,
		Summary: stats.Summarize(ranks, p.opts.mapDepth),
	}
	for i, c := range clean.CliqueIDs {
		if c != ranking.NoClique {
			ev.Queries = append(ev.Queries, clean.TrackIDs[i])
		}
	}
	log.LogProgress(ctx, len(ev.Queries), len(ranks), time.Since(started))
	log.LogSummary(ctx, ev.Summary)

	if p.opts.reportStore != nil {
		r := stats.NewReport(ranks, p.opts.mapDepth)
		r.Variant = p.opts.chain.Variant().String()
		if err := stats.Save(ctx, p.opts.reportStore, p.opts.reportName, r); err != nil {
			return nil, fmt.Errorf("save report: %w", err)
		}
	}
	return ev, nil
}
