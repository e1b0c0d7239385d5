// Package codes turns the raw frames of a range of tracks into code
// artifacts: temporal median, optional normalization, then the transform
// chain.
package codes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/hupe1980/coverid/artifact"
	"github.com/hupe1980/coverid/dataset"
	"github.com/hupe1980/coverid/extract"
	"github.com/hupe1980/coverid/transform"
)

// DefaultProgressEvery is the number of tracks between progress logs.
const DefaultProgressEvery = 1000

// ErrRaggedFrames is returned when the frames of a track differ in length.
var ErrRaggedFrames = errors.New("codes: frames differ in length")

// Result is the outcome for one track: either Valid codes, one per chain
// output, or Missing.
type Result struct {
	codes [][]float32
	ok    bool
}

// Valid wraps computed codes.
func Valid(codes [][]float32) Result {
	return Result{codes: codes, ok: true}
}

// Missing marks a track without codes.
func Missing() Result {
	return Result{}
}

// OK reports whether the track has codes.
func (r Result) OK() bool { return r.ok }

// Codes returns the codes of a valid result, nil otherwise.
func (r Result) Codes() [][]float32 { return r.codes }

// TrackHook observes every processed track.
type TrackHook func(trackID string, r Result)

type options struct {
	normalize     bool
	logger        *slog.Logger
	progressEvery int
	rawDim        int
	trackHook     TrackHook
}

// Option configures a Builder.
type Option func(*options)

// WithNormalize normalizes the median vector before the chain.
func WithNormalize(enabled bool) Option {
	return func(o *options) {
		o.normalize = enabled
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithProgressEvery sets the progress log cadence in tracks.
func WithProgressEvery(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.progressEvery = n
		}
	}
}

// WithRawDim declares the raw descriptor dimension. It sizes the output when
// the chain has no projection stage and every track in a shard is missing.
func WithRawDim(d int) Option {
	return func(o *options) {
		o.rawDim = d
	}
}

// WithTrackHook registers a callback invoked after each track.
func WithTrackHook(h TrackHook) Option {
	return func(o *options) {
		o.trackHook = h
	}
}

// Builder computes codes for track ranges. It is safe for concurrent use;
// the chain and extractor are shared read-only.
type Builder struct {
	chain *transform.Chain
	ext   extract.Extractor
	opts  options
}

// NewBuilder creates a Builder. ext may be nil when every Build call supplies
// origin codes.
func NewBuilder(chain *transform.Chain, ext extract.Extractor, optFns ...Option) *Builder {
	opts := options{
		logger:        slog.New(slog.DiscardHandler),
		progressEvery: DefaultProgressEvery,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Builder{chain: chain, ext: ext, opts: opts}
}

// Chain returns the transform chain.
func (b *Builder) Chain() *transform.Chain { return b.chain }

// Median returns the element-wise median over frames. Even counts average
// the two middle values. All frames must share the length of the first.
func Median(frames [][]float32) ([]float32, error) {
	if len(frames) == 0 {
		return nil, nil
	}
	dim := len(frames[0])
	for i, f := range frames {
		if len(f) != dim {
			return nil, fmt.Errorf("%w: frame %d has %d values, want %d", ErrRaggedFrames, i, len(f), dim)
		}
	}
	out := make([]float32, dim)
	col := make([]float32, len(frames))
	mid := len(frames) / 2
	for j := range dim {
		for i, f := range frames {
			col[i] = f[j]
		}
		slices.Sort(col)
		if len(col)%2 == 1 {
			out[j] = col[mid]
		} else {
			out[j] = (col[mid-1] + col[mid]) / 2
		}
	}
	return out, nil
}

func finite(vs [][]float32) bool {
	for _, v := range vs {
		for _, x := range v {
			if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
				return false
			}
		}
	}
	return true
}

// Code runs normalization and the chain on an aggregated vector.
func (b *Builder) Code(v []float32) (Result, error) {
	if b.opts.normalize {
		v = transform.Normalize(v)
	}
	outs, err := b.chain.Apply(v)
	if err != nil {
		return Result{}, err
	}
	if !finite(outs) {
		return Missing(), nil
	}
	return Valid(outs), nil
}

// Track computes the result for a single track from its raw frames.
func (b *Builder) Track(ctx context.Context, trackID string) (Result, error) {
	if b.ext == nil {
		return Result{}, errors.New("codes: no extractor configured")
	}
	frames, err := b.ext.Extract(ctx, trackID)
	if errors.Is(err, extract.ErrNoFeatures) || (err == nil && len(frames) == 0) {
		return Missing(), nil
	}
	if err != nil {
		return Result{}, err
	}
	v, err := Median(frames)
	if err != nil {
		return Result{}, err
	}
	return b.Code(v)
}

// Build computes the artifact for tracks [start, end) of u. end is clamped to
// the universe size. When origin is non-nil its first code matrix replaces
// raw extraction: row i of origin feeds track start+i, and invalid origin
// rows stay missing.
func (b *Builder) Build(ctx context.Context, u dataset.Universe, start, end int, origin *artifact.Artifact) (*artifact.Artifact, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}
	shard := u.Slice(start, end)
	n := shard.Len()

	if origin != nil {
		if err := origin.Validate(); err != nil {
			return nil, fmt.Errorf("origin: %w", err)
		}
		if origin.Len() != n || len(origin.Codes) == 0 {
			return nil, fmt.Errorf("origin: %w: %d rows for %d tracks", artifact.ErrMisaligned, origin.Len(), n)
		}
	}

	results := make([]Result, n)
	for i, tid := range shard.TrackIDs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var (
			r   Result
			err error
		)
		switch {
		case origin == nil:
			r, err = b.Track(ctx, tid)
		case origin.TrackIDs[i] != tid:
			err = fmt.Errorf("origin: %w: row %d is %s, want %s", artifact.ErrMisaligned, i, origin.TrackIDs[i], tid)
		case !origin.IsValid(i):
			r = Missing()
		default:
			r, err = b.Code(origin.Codes[0].Row(i))
		}
		if err != nil {
			return nil, fmt.Errorf("track %s: %w", tid, err)
		}
		results[i] = r

		if b.opts.trackHook != nil {
			b.opts.trackHook(tid, r)
		}
		if i%b.opts.progressEvery == 0 {
			b.opts.logger.Info("computing codes", "done", i, "total", n, "start", start)
		}
	}

	return b.assemble(shard, results)
}

func (b *Builder) assemble(shard dataset.Universe, results []Result) (*artifact.Artifact, error) {
	rawDim := b.opts.rawDim
	if b.chain.Variant() == transform.VariantNone {
		for _, r := range results {
			if r.OK() {
				rawDim = len(r.codes[0])
				break
			}
		}
	}
	dims := b.chain.OutputDims(rawDim)

	a := artifact.New(shard.TrackIDs, shard.CliqueIDs, dims)
	for i, r := range results {
		if !r.OK() {
			continue
		}
		if len(r.codes) != len(dims) {
			return nil, fmt.Errorf("track %s: %d outputs, want %d", shard.TrackIDs[i], len(r.codes), len(dims))
		}
		for k, c := range r.codes {
			if err := a.Codes[k].SetRow(i, c); err != nil {
				return nil, fmt.Errorf("track %s: %w", shard.TrackIDs[i], err)
			}
		}
		a.Valid.Add(uint32(i))
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}
