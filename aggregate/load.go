package aggregate

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/coverid/artifact"
	"github.com/hupe1980/coverid/scheduler"
)

// DefaultParallelism is the number of artifacts fetched concurrently.
const DefaultParallelism = 4

type options struct {
	merged      string
	column      int
	maxShards   int
	parallelism int
	logger      *slog.Logger
}

// Option configures Load and Merge.
type Option func(*options)

// WithMerged loads the single artifact name instead of every shard.
func WithMerged(name string) Option {
	return func(o *options) {
		o.merged = name
	}
}

// WithColumn selects the code column; Raw selects the last one.
func WithColumn(i int) Option {
	return func(o *options) {
		o.column = i
	}
}

// WithMaxShards bounds the number of shard artifacts read. Zero reads all.
func WithMaxShards(n int) Option {
	return func(o *options) {
		o.maxShards = n
	}
}

// WithParallelism sets how many artifacts are fetched concurrently.
func WithParallelism(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.parallelism = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

func applyOptions(optFns []Option) options {
	opts := options{
		parallelism: DefaultParallelism,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return opts
}

// fetch reads artifacts in parallel and returns them in names order.
func fetch(ctx context.Context, store *artifact.Store, names []string, parallelism int) ([]*artifact.Artifact, error) {
	out := make([]*artifact.Artifact, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for i, name := range names {
		g.Go(func() error {
			a, err := store.Get(gctx, name)
			if err != nil {
				return fmt.Errorf("load %s: %w", name, err)
			}
			out[i] = a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func shardNames(ctx context.Context, store *artifact.Store, maxShards int) ([]string, error) {
	all, err := store.List(ctx)
	if err != nil {
		return nil, err
	}
	names := all[:0]
	for _, name := range all {
		if _, _, ok := scheduler.ParseName(name); ok {
			names = append(names, name)
		}
	}
	if maxShards > 0 && len(names) > maxShards {
		names = names[:maxShards]
	}
	return names, nil
}

// Load reads one code column of either a merged artifact or every shard
// artifact in store. Shards are concatenated in sorted name order; other
// artifacts in the store are ignored.
func Load(ctx context.Context, store *artifact.Store, optFns ...Option) (*Set, error) {
	opts := applyOptions(optFns)

	if opts.merged != "" {
		a, err := store.Get(ctx, opts.merged)
		if err != nil {
			return nil, err
		}
		opts.logger.Info("codes read", "artifact", opts.merged, "rows", a.Len())
		return FromArtifact(a, opts.column)
	}

	names, err := shardNames(ctx, store, opts.maxShards)
	if err != nil {
		return nil, err
	}
	arts, err := fetch(ctx, store, names, opts.parallelism)
	if err != nil {
		return nil, err
	}

	s := NewSet()
	for i, a := range arts {
		if err := s.Append(a, opts.column); err != nil {
			return nil, fmt.Errorf("%s: %w", names[i], err)
		}
	}
	opts.logger.Info("codes read", "shards", len(names), "rows", s.Len(), "dim", s.Dim())
	return s, nil
}

// Merge concatenates every shard artifact of src, all code columns, and
// writes the result to dst under name.
func Merge(ctx context.Context, src, dst *artifact.Store, name string, optFns ...Option) (*artifact.Artifact, error) {
	opts := applyOptions(optFns)

	names, err := shardNames(ctx, src, opts.maxShards)
	if err != nil {
		return nil, err
	}
	arts, err := fetch(ctx, src, names, opts.parallelism)
	if err != nil {
		return nil, err
	}
	if len(arts) == 0 {
		return nil, fmt.Errorf("aggregate: no shard artifacts to merge")
	}

	merged := artifact.New(nil, nil, arts[0].Dims)
	for i, a := range arts {
		if len(a.Dims) != len(merged.Dims) {
			return nil, fmt.Errorf("%s: %d code columns, want %d", names[i], len(a.Dims), len(merged.Dims))
		}
		offset := uint32(merged.Len())
		for k, m := range a.Codes {
			if err := merged.Codes[k].Append(m); err != nil {
				return nil, fmt.Errorf("%s: %w", names[i], err)
			}
		}
		merged.TrackIDs = append(merged.TrackIDs, a.TrackIDs...)
		merged.CliqueIDs = append(merged.CliqueIDs, a.CliqueIDs...)
		it := a.Valid.Iterator()
		for it.HasNext() {
			merged.Valid.Add(offset + it.Next())
		}
	}
	if err := merged.Validate(); err != nil {
		return nil, err
	}

	if err := dst.Put(ctx, name, merged); err != nil {
		return nil, err
	}
	opts.logger.Info("codes merged", "shards", len(names), "rows", merged.Len(), "artifact", name)
	return merged, nil
}
