package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/coverid/artifact"
	"github.com/hupe1980/coverid/codes"
	"github.com/hupe1980/coverid/dataset"
	"github.com/hupe1980/coverid/manifest"
)

// Report summarizes a run. Shard indices are ascending.
type Report struct {
	RunID     string
	Completed []int
	Skipped   []int
	Failed    []int
	Errors    []*ShardError
	Tracks    int
	Valid     int
	Duration  time.Duration
}

// OK reports whether every shard completed or was skipped.
func (r *Report) OK() bool { return len(r.Failed) == 0 }

// Scheduler dispatches shards to a fixed worker pool.
type Scheduler struct {
	builder *codes.Builder
	out     *artifact.Store
	opts    options

	saveMu sync.Mutex
}

// New creates a Scheduler writing artifacts to out.
func New(builder *codes.Builder, out *artifact.Store, optFns ...Option) *Scheduler {
	opts := options{
		workers: 1,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Scheduler{builder: builder, out: out, opts: opts}
}

type runState struct {
	m *manifest.Manifest

	mu      sync.Mutex
	errs    []*ShardError
	skipped []int
	tracks  int
	valid   int
}

// Run computes every shard of plan. Shard failures are isolated and
// reported; Run itself fails only when ctx ends or the manifest cannot be
// saved.
func (s *Scheduler) Run(ctx context.Context, u dataset.Universe, plan []Shard) (*Report, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}

	started := time.Now()
	st := &runState{m: s.opts.manifest}
	if st.m == nil {
		st.m = manifest.New()
	}

	if ss, ok := s.opts.manifestStore.(manifest.ShardStore); ok {
		if err := ss.SaveHeader(ctx, st.m); err != nil {
			return nil, fmt.Errorf("save manifest: %w", err)
		}
	}

	s.opts.logger.Info("starting code computation",
		"run", st.m.RunID, "shards", len(plan), "workers", s.opts.workers, "tracks", u.Len())

	queue := make(chan Shard)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(queue)
		for _, sh := range plan {
			select {
			case queue <- sh:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for range s.opts.workers {
		g.Go(func() error {
			for sh := range queue {
				if err := s.runShard(gctx, u, sh, st); err != nil {
					return err
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	rep := &Report{
		RunID:    st.m.RunID,
		Failed:   st.m.Failed(),
		Errors:   st.errs,
		Tracks:   st.tracks,
		Valid:    st.valid,
		Duration: time.Since(started),
	}
	slices.Sort(st.skipped)
	rep.Skipped = st.skipped
	for _, idx := range st.m.Completed() {
		if _, skipped := slices.BinarySearch(rep.Skipped, idx); !skipped {
			rep.Completed = append(rep.Completed, idx)
		}
	}
	slices.SortFunc(rep.Errors, func(a, b *ShardError) int { return a.Shard.Index - b.Shard.Index })

	s.opts.logger.Info("code computation done",
		"run", rep.RunID, "completed", len(rep.Completed), "skipped", len(rep.Skipped),
		"failed", len(rep.Failed), "duration", rep.Duration)
	return rep, nil
}

func (s *Scheduler) runShard(ctx context.Context, u dataset.Universe, sh Shard, st *runState) error {
	started := time.Now()
	rec := manifest.ShardRecord{
		Index:     sh.Index,
		Name:      sh.Name(),
		Partition: sh.Partition,
		Iteration: sh.Iteration,
		Start:     sh.Start,
		End:       sh.End,
	}

	skip := false
	if s.opts.skipExisting {
		ok, err := s.out.Exists(ctx, sh.Name())
		if err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		skip = err == nil && ok
	}

	var shardErr *ShardError
	if skip {
		rec.Status = manifest.StatusSkipped
		st.mu.Lock()
		st.skipped = append(st.skipped, sh.Index)
		st.mu.Unlock()
		s.opts.logger.Info("shard skipped, artifact exists", "shard", sh.Name())
	} else {
		if err := s.opts.controller.AcquireWorker(ctx); err != nil {
			return err
		}
		a, err := s.computeShard(ctx, u, sh)
		s.opts.controller.ReleaseWorker()

		if err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			shardErr = &ShardError{Shard: sh, Err: err}
			rec.Status = manifest.StatusFailed
			rec.Error = err.Error()
			s.opts.logger.Warn("shard failed", "shard", sh.Name(), "start", sh.Start, "end", sh.End, "error", err)
		} else {
			rec.Status = manifest.StatusCompleted
			rec.Rows = a.Len()
			rec.Valid = a.ValidCount()
			s.opts.logger.Info("shard completed", "shard", sh.Name(), "rows", rec.Rows, "valid", rec.Valid, "duration", time.Since(started))
		}
	}

	rec.Duration = time.Since(started)
	rec.FinishedAt = time.Now().UTC()
	st.m.Record(rec)

	st.mu.Lock()
	if shardErr != nil {
		st.errs = append(st.errs, shardErr)
	}
	st.tracks += rec.Rows
	st.valid += rec.Valid
	st.mu.Unlock()

	if err := s.saveRecord(ctx, st.m, rec); err != nil {
		return fmt.Errorf("save manifest: %w", err)
	}

	if s.opts.progress != nil {
		var err error
		if shardErr != nil {
			err = shardErr
		}
		s.opts.progress(sh, rec.Duration, err)
	}
	return nil
}

// saveRecord persists rec alone when the store supports it and the whole
// manifest otherwise.
func (s *Scheduler) saveRecord(ctx context.Context, m *manifest.Manifest, rec manifest.ShardRecord) error {
	switch store := s.opts.manifestStore.(type) {
	case nil:
		return nil
	case manifest.ShardStore:
		return store.SaveShard(ctx, m.RunID, rec)
	default:
		s.saveMu.Lock()
		defer s.saveMu.Unlock()
		return store.Save(ctx, m)
	}
}

func (s *Scheduler) computeShard(ctx context.Context, u dataset.Universe, sh Shard) (a *artifact.Artifact, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	if s.opts.shardTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.shardTimeout)
		defer cancel()
	}

	var origin *artifact.Artifact
	if s.opts.origin != nil {
		origin, err = s.opts.origin.Get(ctx, sh.Name())
		if err != nil {
			return nil, fmt.Errorf("load origin: %w", err)
		}
	}

	a, err = s.builder.Build(ctx, u, sh.Start, sh.End, origin)
	if err != nil {
		return nil, err
	}
	if err := s.out.Put(ctx, sh.Name(), a); err != nil {
		return nil, err
	}
	return a, nil
}
