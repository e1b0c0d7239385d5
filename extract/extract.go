// Package extract defines how per-frame descriptors of a track are fetched.
//
// Feature extraction from audio is performed elsewhere; this package only reads
// the resulting frame matrices (time x descriptor) from a blob store.
package extract

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path"

	"github.com/hupe1980/coverid/blobstore"
	"github.com/hupe1980/coverid/codec"
	"github.com/hupe1980/coverid/resource"
)

// ErrNoFeatures marks a track without usable frames. Callers treat it as a
// missing track rather than a failure.
var ErrNoFeatures = errors.New("extract: no features")

// Extractor yields the frame matrix of a track.
type Extractor interface {
	Extract(ctx context.Context, trackID string) ([][]float32, error)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(ctx context.Context, trackID string) ([][]float32, error)

// Extract calls f.
func (f ExtractorFunc) Extract(ctx context.Context, trackID string) ([][]float32, error) {
	return f(ctx, trackID)
}

// FrameSuffix is appended to every frame blob name.
const FrameSuffix = ".frames"

// PathFromTrackID maps a track ID onto the MSD directory layout:
// TRABCDE... lives under A/B/C/.
func PathFromTrackID(trackID string) string {
	if len(trackID) < 5 {
		return trackID + FrameSuffix
	}
	return path.Join(trackID[2:3], trackID[3:4], trackID[4:5], trackID+FrameSuffix)
}

const frameHeaderSize = 8

// EncodeFrames serializes frames with LZ4 block compression.
func EncodeFrames(frames [][]float32) ([]byte, error) {
	return EncodeFramesWith(frames, codec.CompressionLZ4)
}

// EncodeFramesWith serializes frames as
// [compression u8][block([rows u32][cols u32][float32...])].
func EncodeFramesWith(frames [][]float32, c codec.Compression) ([]byte, error) {
	rows := len(frames)
	cols := 0
	if rows > 0 {
		cols = len(frames[0])
	}

	raw := make([]byte, frameHeaderSize+rows*cols*4)
	binary.LittleEndian.PutUint32(raw[0:], uint32(rows))
	binary.LittleEndian.PutUint32(raw[4:], uint32(cols))
	off := frameHeaderSize
	for i, f := range frames {
		if len(f) != cols {
			return nil, fmt.Errorf("extract: frame %d has %d columns, want %d", i, len(f), cols)
		}
		for _, v := range f {
			binary.LittleEndian.PutUint32(raw[off:], math.Float32bits(v))
			off += 4
		}
	}

	block, err := codec.CompressBlock(raw, c)
	if err != nil {
		return nil, err
	}
	return append([]byte{byte(c)}, block...), nil
}

// DecodeFrames reverses EncodeFramesWith.
func DecodeFrames(data []byte) ([][]float32, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("%w: empty frame blob", codec.ErrCorruptBlock)
	}
	raw, err := codec.DecompressBlock(data[1:], codec.Compression(data[0]))
	if err != nil {
		return nil, err
	}
	if len(raw) < frameHeaderSize {
		return nil, fmt.Errorf("%w: frame header truncated", codec.ErrCorruptBlock)
	}

	rows := int(binary.LittleEndian.Uint32(raw[0:]))
	cols := int(binary.LittleEndian.Uint32(raw[4:]))
	if len(raw) != frameHeaderSize+rows*cols*4 {
		return nil, fmt.Errorf("%w: %d x %d frames in %d bytes", codec.ErrCorruptBlock, rows, cols, len(raw))
	}

	data32 := make([]float32, rows*cols)
	for i := range data32 {
		data32[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[frameHeaderSize+i*4:]))
	}
	frames := make([][]float32, rows)
	for i := range frames {
		frames[i] = data32[i*cols : (i+1)*cols : (i+1)*cols]
	}
	return frames, nil
}

// Option configures a BlobExtractor.
type Option func(*BlobExtractor)

// WithController throttles blob reads through the controller's IO limiter.
func WithController(c *resource.Controller) Option {
	return func(e *BlobExtractor) {
		e.rc = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *BlobExtractor) {
		e.logger = l
	}
}

// BlobExtractor reads frame blobs written by EncodeFrames.
type BlobExtractor struct {
	store  blobstore.BlobStore
	rc     *resource.Controller
	logger *slog.Logger
}

// NewBlobExtractor returns an Extractor reading frames from store.
func NewBlobExtractor(store blobstore.BlobStore, opts ...Option) *BlobExtractor {
	e := &BlobExtractor{
		store:  store,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract implements Extractor. Missing or empty blobs yield ErrNoFeatures.
func (e *BlobExtractor) Extract(ctx context.Context, trackID string) ([][]float32, error) {
	name := PathFromTrackID(trackID)

	blob, err := e.store.Open(ctx, name)
	if errors.Is(err, blobstore.ErrNotFound) {
		e.logger.Debug("frames not found", "track", trackID, "blob", name)
		return nil, ErrNoFeatures
	}
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", trackID, err)
	}
	defer func() { _ = blob.Close() }()

	if err := e.rc.AcquireIO(ctx, int(blob.Size())); err != nil {
		return nil, err
	}

	data, err := blobstore.ReadBlob(ctx, blob)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", trackID, err)
	}

	frames, err := DecodeFrames(data)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", trackID, err)
	}
	if len(frames) == 0 || len(frames[0]) == 0 {
		return nil, ErrNoFeatures
	}
	return frames, nil
}
