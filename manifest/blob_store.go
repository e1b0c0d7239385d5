package manifest

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/hupe1980/coverid/blobstore"
	"github.com/hupe1980/coverid/codec"
)

// DefaultPrefix is the blob prefix under which manifests are kept.
const DefaultPrefix = "manifests"

// BlobStore keeps manifests as JSON blobs named <prefix>/<run id>.json.
type BlobStore struct {
	blobs  blobstore.BlobStore
	prefix string
	codec  codec.Codec
}

// NewBlobStore creates a manifest store over blobs.
func NewBlobStore(blobs blobstore.BlobStore, prefix string) *BlobStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &BlobStore{blobs: blobs, prefix: prefix, codec: codec.Default}
}

func (s *BlobStore) name(runID string) string {
	return path.Join(s.prefix, runID+".json")
}

// Save writes m, replacing the previous version of the same run.
func (s *BlobStore) Save(ctx context.Context, m *Manifest) error {
	data, err := s.codec.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode manifest %s: %w", m.RunID, err)
	}
	return s.blobs.Put(ctx, s.name(m.RunID), data)
}

// Load reads the manifest of runID.
func (s *BlobStore) Load(ctx context.Context, runID string) (*Manifest, error) {
	data, err := blobstore.ReadAll(ctx, s.blobs, s.name(runID))
	if errors.Is(err, blobstore.ErrNotFound) {
		return nil, fmt.Errorf("%w: run %s", ErrNotFound, runID)
	}
	if err != nil {
		return nil, err
	}
	m := &Manifest{}
	if err := s.codec.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", runID, err)
	}
	return m, nil
}

// Runs lists the run IDs with a stored manifest, sorted.
func (s *BlobStore) Runs(ctx context.Context) ([]string, error) {
	names, err := s.blobs.List(ctx, s.prefix+"/")
	if err != nil {
		return nil, err
	}
	runs := make([]string, 0, len(names))
	for _, n := range names {
		if id, ok := strings.CutSuffix(path.Base(n), ".json"); ok {
			runs = append(runs, id)
		}
	}
	return runs, nil
}
