package artifact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hupe1980/coverid/blobstore"
	"github.com/hupe1980/coverid/codec"
)

// Suffix is appended to every artifact blob name.
const Suffix = ".codes"

// ErrExists is returned when writing an artifact name that is already taken.
var ErrExists = errors.New("artifact: already exists")

type options struct {
	compression codec.Compression
	overwrite   bool
	logger      *slog.Logger
}

// Option configures a Store.
type Option func(*options)

// WithCompression selects the block compression for new artifacts.
func WithCompression(c codec.Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithOverwrite allows Put to replace existing artifacts.
func WithOverwrite(enabled bool) Option {
	return func(o *options) {
		o.overwrite = enabled
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// Store persists artifacts in a blob store. Artifacts are write-once unless
// the store was created WithOverwrite.
type Store struct {
	blobs blobstore.BlobStore
	opts  options
}

// NewStore creates a Store over blobs.
func NewStore(blobs blobstore.BlobStore, optFns ...Option) *Store {
	opts := options{
		compression: codec.CompressionLZ4,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Store{blobs: blobs, opts: opts}
}

// BlobName returns the blob name holding artifact name.
func BlobName(name string) string {
	return name + Suffix
}

// Put encodes and writes a under name.
func (s *Store) Put(ctx context.Context, name string, a *Artifact) error {
	if !s.opts.overwrite {
		ok, err := s.Exists(ctx, name)
		if err != nil {
			return err
		}
		if ok {
			return fmt.Errorf("%w: %s", ErrExists, name)
		}
	}

	data, err := Marshal(a, s.opts.compression)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if err := s.blobs.Put(ctx, BlobName(name), data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	s.opts.logger.Debug("artifact written", "name", name, "rows", a.Len(), "valid", a.ValidCount(), "bytes", len(data))
	return nil
}

// Get reads and decodes artifact name.
func (s *Store) Get(ctx context.Context, name string) (*Artifact, error) {
	data, err := blobstore.ReadAll(ctx, s.blobs, BlobName(name))
	if err != nil {
		return nil, err
	}
	a, err := Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return a, nil
}

// Exists reports whether artifact name has been written.
func (s *Store) Exists(ctx context.Context, name string) (bool, error) {
	return blobstore.Exists(ctx, s.blobs, BlobName(name))
}

// List returns the names of all artifacts, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	blobs, err := s.blobs.List(ctx, "")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(blobs))
	for _, b := range blobs {
		if name, ok := strings.CutSuffix(b, Suffix); ok {
			names = append(names, name)
		}
	}
	return names, nil
}

// Delete removes artifact name.
func (s *Store) Delete(ctx context.Context, name string) error {
	return s.blobs.Delete(ctx, BlobName(name))
}
