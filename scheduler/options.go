package scheduler

import (
	"log/slog"
	"time"

	"github.com/hupe1980/coverid/artifact"
	"github.com/hupe1980/coverid/manifest"
	"github.com/hupe1980/coverid/resource"
)

// ProgressFunc is called after each shard with the time it took and its
// error, nil on success.
type ProgressFunc func(sh Shard, elapsed time.Duration, err error)

type options struct {
	workers       int
	controller    *resource.Controller
	shardTimeout  time.Duration
	origin        *artifact.Store
	progress      ProgressFunc
	manifest      *manifest.Manifest
	manifestStore manifest.Store
	skipExisting  bool
	logger        *slog.Logger
}

// Option configures a Scheduler.
type Option func(*options)

// WithWorkers sets the number of worker goroutines.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithController shares worker slots with other schedulers.
func WithController(c *resource.Controller) Option {
	return func(o *options) {
		o.controller = c
	}
}

// WithShardTimeout bounds the time a single shard may take. Zero disables
// the limit.
func WithShardTimeout(d time.Duration) Option {
	return func(o *options) {
		o.shardTimeout = d
	}
}

// WithOrigin reads each shard's origin codes from an earlier stage's store
// instead of extracting raw frames.
func WithOrigin(s *artifact.Store) Option {
	return func(o *options) {
		o.origin = s
	}
}

// WithProgress registers a per-shard callback. It may be called concurrently.
func WithProgress(fn ProgressFunc) Option {
	return func(o *options) {
		o.progress = fn
	}
}

// WithManifest records outcomes into m instead of a fresh manifest.
func WithManifest(m *manifest.Manifest) Option {
	return func(o *options) {
		o.manifest = m
	}
}

// WithManifestStore saves the manifest after every shard. A
// manifest.ShardStore receives the run header once and then only the record
// of each finished shard.
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

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}
