package scheduler

import "fmt"

// ShardError reports the failure of a single shard. Sibling shards are not
// affected.
type ShardError struct {
	Shard Shard
	Err   error
}

func (e *ShardError) Error() string {
	return fmt.Sprintf("shard %s [%d,%d): %v", e.Shard.Name(), e.Shard.Start, e.Shard.End, e.Err)
}

func (e *ShardError) Unwrap() error {
	return e.Err
}
