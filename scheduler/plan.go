// Package scheduler partitions the track universe into shards and computes
// their code artifacts on a fixed pool of workers.
package scheduler

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

const (
	// MaxTracksPerPartition is the track span of one partition.
	MaxTracksPerPartition = 100000
	// SubIterations is the number of shards per partition.
	SubIterations = 10
	// ShardSize is the number of tracks in a full shard.
	ShardSize = MaxTracksPerPartition / SubIterations
)

// Shard is a contiguous half-open track range [Start, End).
type Shard struct {
	Partition int
	Iteration int
	Start     int
	End       int
	// Index is unique across all partitions: Partition*SubIterations+Iteration.
	Index int
}

// Name returns the artifact name of the shard, e.g. "031-msd-codes".
func (s Shard) Name() string {
	return fmt.Sprintf("%02d%d%s", s.Partition, s.Iteration, ShardSuffix)
}

// ShardSuffix ends every shard artifact name.
const ShardSuffix = "-msd-codes"

// ParseName is the inverse of Shard.Name. The last digit is the iteration,
// the rest the partition.
func ParseName(name string) (partition, iteration int, ok bool) {
	digits, found := strings.CutSuffix(name, ShardSuffix)
	if !found || len(digits) < 3 {
		return 0, 0, false
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			return 0, 0, false
		}
	}
	partition, err := strconv.Atoi(digits[:len(digits)-1])
	if err != nil {
		return 0, 0, false
	}
	return partition, int(digits[len(digits)-1] - '0'), true
}

// Len returns the number of tracks in the shard.
func (s Shard) Len() int { return s.End - s.Start }

// Partitions returns the partitions 0..workers-1.
func Partitions(workers int) []int {
	ps := make([]int, max(workers, 0))
	for i := range ps {
		ps[i] = i
	}
	return ps
}

// Plan lays out the shards of the given partitions over a universe of total
// tracks. Shards starting beyond the universe are dropped and the last shard
// is clamped. Duplicate and negative partitions are ignored.
func Plan(total int, partitions []int) []Shard {
	ps := slices.Clone(partitions)
	slices.Sort(ps)
	ps = slices.Compact(ps)

	var shards []Shard
	for _, p := range ps {
		if p < 0 {
			continue
		}
		for it := range SubIterations {
			start := p*MaxTracksPerPartition + it*ShardSize
			if start >= total {
				break
			}
			shards = append(shards, Shard{
				Partition: p,
				Iteration: it,
				Start:     start,
				End:       min(start+ShardSize, total),
				Index:     p*SubIterations + it,
			})
		}
	}
	return shards
}
