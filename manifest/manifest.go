// Package manifest records the outcome of every shard in a code computation
// run. A manifest is saved after each shard so an interrupted run leaves an
// accurate record of what completed and what failed.
package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/google/uuid"
)

// CurrentVersion is the manifest format version.
const CurrentVersion = 1

// ErrNotFound is returned when a run has no manifest.
var ErrNotFound = errors.New("manifest: not found")

// Status is the outcome of one shard.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	// StatusSkipped marks shards whose artifact already existed.
	StatusSkipped Status = "skipped"
)

// ShardRecord describes one processed shard.
type ShardRecord struct {
	Index      int           `json:"index"`
	Name       string        `json:"name"`
	Partition  int           `json:"partition"`
	Iteration  int           `json:"iteration"`
	Start      int           `json:"start"`
	End        int           `json:"end"`
	Status     Status        `json:"status"`
	Rows       int           `json:"rows"`
	Valid      int           `json:"valid"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration_ns"`
	FinishedAt time.Time     `json:"finished_at"`
}

// Manifest is the shard log of a run. It is safe for concurrent use.
type Manifest struct {
	Version   int
	RunID     string
	CreatedAt time.Time

	mu        sync.RWMutex
	shards    map[int]ShardRecord
	completed *roaring.Bitmap
	failed    *roaring.Bitmap
}

// New creates an empty manifest with a fresh run ID.
func New() *Manifest {
	return newManifest(uuid.NewString(), time.Now().UTC())
}

func newManifest(runID string, createdAt time.Time) *Manifest {
	return &Manifest{
		Version:   CurrentVersion,
		RunID:     runID,
		CreatedAt: createdAt,
		shards:    make(map[int]ShardRecord),
		completed: roaring.New(),
		failed:    roaring.New(),
	}
}

// Record stores the outcome of a shard, replacing any earlier record for the
// same index.
func (m *Manifest) Record(r ShardRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := uint32(r.Index)
	m.completed.Remove(idx)
	m.failed.Remove(idx)
	switch r.Status {
	case StatusCompleted, StatusSkipped:
		m.completed.Add(idx)
	case StatusFailed:
		m.failed.Add(idx)
	}
	m.shards[r.Index] = r
}

// Shards returns all records ordered by shard index.
func (m *Manifest) Shards() []ShardRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]ShardRecord, 0, len(m.shards))
	for _, r := range m.shards {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b ShardRecord) int { return a.Index - b.Index })
	return out
}

// Shard returns the record for index.
func (m *Manifest) Shard(index int) (ShardRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.shards[index]
	return r, ok
}

func toInts(b *roaring.Bitmap) []int {
	out := make([]int, 0, b.GetCardinality())
	it := b.Iterator()
	for it.HasNext() {
		out = append(out, int(it.Next()))
	}
	return out
}

// Completed returns the indices of completed or skipped shards, ascending.
func (m *Manifest) Completed() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return toInts(m.completed)
}

// Failed returns the indices of failed shards, ascending.
func (m *Manifest) Failed() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return toInts(m.failed)
}

// IsCompleted reports whether shard index completed.
func (m *Manifest) IsCompleted(index int) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.completed.Contains(uint32(index))
}

type manifestJSON struct {
	Version   int           `json:"version"`
	RunID     string        `json:"run_id"`
	CreatedAt time.Time     `json:"created_at"`
	Shards    []ShardRecord `json:"shards"`
	Completed []int         `json:"completed"`
	Failed    []int         `json:"failed"`
}

// MarshalJSON implements json.Marshaler.
func (m *Manifest) MarshalJSON() ([]byte, error) {
	return json.Marshal(manifestJSON{
		Version:   m.Version,
		RunID:     m.RunID,
		CreatedAt: m.CreatedAt,
		Shards:    m.Shards(),
		Completed: m.Completed(),
		Failed:    m.Failed(),
	})
}

// UnmarshalJSON implements json.Unmarshaler. The completed and failed sets
// are rebuilt from the shard records.
func (m *Manifest) UnmarshalJSON(data []byte) error {
	var v manifestJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	fresh := newManifest(v.RunID, v.CreatedAt)
	fresh.Version = v.Version
	for _, r := range v.Shards {
		fresh.Record(r)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Version = fresh.Version
	m.RunID = fresh.RunID
	m.CreatedAt = fresh.CreatedAt
	m.shards = fresh.shards
	m.completed = fresh.completed
	m.failed = fresh.failed
	return nil
}

// Store persists manifests.
type Store interface {
	Save(ctx context.Context, m *Manifest) error
	Load(ctx context.Context, runID string) (*Manifest, error)
}

// ShardStore is a Store that can persist shard records one at a time.
// SaveHeader writes the run metadata only.
type ShardStore interface {
	Store
	SaveHeader(ctx context.Context, m *Manifest) error
	SaveShard(ctx context.Context, runID string, r ShardRecord) error
}
