package coverid

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting pipeline metrics.
// Implement this interface to integrate with monitoring systems like
// Prometheus. Collectors are purely observational.
type MetricsCollector interface {
	// RecordShard is called after each shard with the number of tracks it
	// covers, the time taken and its error (nil on success).
	RecordShard(tracks int, duration time.Duration, err error)

	// RecordTrack is called after each track's code is computed. valid is
	// false for Missing rows.
	RecordTrack(valid bool)

	// RecordQuery is called after each evaluation query. found is false for
	// queries whose clique has no other member in the corpus.
	RecordQuery(found bool)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordShard(int, time.Duration, error) {}
func (NoopMetricsCollector) RecordTrack(bool)                      {}
func (NoopMetricsCollector) RecordQuery(bool)                      {}

// BasicMetricsCollector provides simple in-memory metrics collection.
type BasicMetricsCollector struct {
	ShardCount      atomic.Int64
	ShardErrors     atomic.Int64
	ShardTotalNanos atomic.Int64
	TrackCount      atomic.Int64
	TrackMissing    atomic.Int64
	QueryCount      atomic.Int64
	QueryInfinite   atomic.Int64
}

// RecordShard implements MetricsCollector.
func (b *BasicMetricsCollector) RecordShard(tracks int, duration time.Duration, err error) {
	b.ShardCount.Add(1)
	b.ShardTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.ShardErrors.Add(1)
	}
}

// RecordTrack implements MetricsCollector.
func (b *BasicMetricsCollector) RecordTrack(valid bool) {
	b.TrackCount.Add(1)
	if !valid {
		b.TrackMissing.Add(1)
	}
}

// RecordQuery implements MetricsCollector.
func (b *BasicMetricsCollector) RecordQuery(found bool) {
	b.QueryCount.Add(1)
	if !found {
		b.QueryInfinite.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		ShardCount:    b.ShardCount.Load(),
		ShardErrors:   b.ShardErrors.Load(),
		ShardAvgNanos: b.getAvgShardNanos(),
		TrackCount:    b.TrackCount.Load(),
		TrackMissing:  b.TrackMissing.Load(),
		QueryCount:    b.QueryCount.Load(),
		QueryInfinite: b.QueryInfinite.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgShardNanos() int64 {
	count := b.ShardCount.Load()
	if count == 0 {
		return 0
	}
	return b.ShardTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	ShardCount    int64
	ShardErrors   int64
	ShardAvgNanos int64
	TrackCount    int64
	TrackMissing  int64
	QueryCount    int64
	QueryInfinite int64
}
