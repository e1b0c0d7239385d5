// Package artifact defines the per-shard code artifact, its binary encoding
// and a store that persists artifacts as blobs.
//
// An artifact is the aligned triple (codes, track ids, clique ids): row i of
// every code matrix, TrackIDs[i] and CliqueIDs[i] describe the same track.
package artifact

import (
	"errors"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
)

// ErrMisaligned is returned by Validate when the aligned arrays disagree.
var ErrMisaligned = errors.New("artifact: misaligned rows")

// Artifact holds the codes computed for one shard.
type Artifact struct {
	// Dims lists the dimension of each code matrix.
	Dims []int
	// Codes holds one matrix per configured output.
	Codes     []*Matrix
	TrackIDs  []string
	CliqueIDs []int32
	// Valid marks rows whose codes were computed. Missing tracks keep zeroed
	// rows and are absent from the bitmap.
	Valid *roaring.Bitmap
}

// New allocates an artifact for the given tracks and output dimensions with
// no valid rows.
func New(trackIDs []string, cliqueIDs []int32, dims []int) *Artifact {
	a := &Artifact{
		Dims:      append([]int(nil), dims...),
		Codes:     make([]*Matrix, len(dims)),
		TrackIDs:  append([]string(nil), trackIDs...),
		CliqueIDs: append([]int32(nil), cliqueIDs...),
		Valid:     roaring.New(),
	}
	for i, d := range dims {
		a.Codes[i] = NewMatrix(len(trackIDs), d)
	}
	return a
}

// Len returns the number of rows.
func (a *Artifact) Len() int { return len(a.TrackIDs) }

// IsValid reports whether row i holds computed codes.
func (a *Artifact) IsValid(i int) bool {
	return a.Valid != nil && a.Valid.Contains(uint32(i))
}

// ValidCount returns the number of rows holding computed codes.
func (a *Artifact) ValidCount() int {
	if a.Valid == nil {
		return 0
	}
	return int(a.Valid.GetCardinality())
}

// Validate checks the alignment invariant.
func (a *Artifact) Validate() error {
	n := len(a.TrackIDs)
	if len(a.CliqueIDs) != n {
		return fmt.Errorf("%w: %d track ids, %d clique ids", ErrMisaligned, n, len(a.CliqueIDs))
	}
	if len(a.Codes) != len(a.Dims) {
		return fmt.Errorf("%w: %d matrices, %d dims", ErrMisaligned, len(a.Codes), len(a.Dims))
	}
	for i, m := range a.Codes {
		if m == nil {
			return fmt.Errorf("%w: matrix %d is nil", ErrMisaligned, i)
		}
		if m.Rows != n || m.Dim != a.Dims[i] || len(m.Data) != m.Rows*m.Dim {
			return fmt.Errorf("%w: matrix %d is %dx%d (%d values), want %dx%d", ErrMisaligned, i, m.Rows, m.Dim, len(m.Data), n, a.Dims[i])
		}
	}
	if a.Valid != nil && !a.Valid.IsEmpty() && int(a.Valid.Maximum()) >= n {
		return fmt.Errorf("%w: validity bitmap exceeds %d rows", ErrMisaligned, n)
	}
	return nil
}
