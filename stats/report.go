package stats

import (
	"context"
	"fmt"

	"github.com/hupe1980/coverid/blobstore"
	"github.com/hupe1980/coverid/codec"
)

// Report is the persisted result of an evaluation. Ranks keeps every entry so
// metrics can be recomputed without ranking again; infinite entries are
// encoded as null.
type Report struct {
	RunID   string     `json:"run_id,omitempty"`
	Variant string     `json:"variant,omitempty"`
	Depth   int        `json:"map_depth"`
	Summary Summary    `json:"summary"`
	Ranks   []RankList `json:"ranks"`
}

// NewReport summarizes ranks into a report.
func NewReport(ranks []RankList, depth int) *Report {
	return &Report{
		Depth:   depth,
		Summary: Summarize(ranks, depth),
		Ranks:   ranks,
	}
}

// Save writes r to store under name.
func Save(ctx context.Context, store blobstore.BlobStore, name string, r *Report) error {
	data, err := codec.GoJSON{}.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return store.Put(ctx, name, data)
}

// Load reads a report written by Save and recomputes its summary from the
// stored ranks.
func Load(ctx context.Context, store blobstore.BlobStore, name string) (*Report, error) {
	data, err := blobstore.ReadAll(ctx, store, name)
	if err != nil {
		return nil, err
	}
	r := &Report{}
	if err := (codec.GoJSON{}).Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", name, err)
	}
	r.Summary = Summarize(r.Ranks, r.Depth)
	return r, nil
}
