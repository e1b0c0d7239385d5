// Package aggregate loads shard artifacts back into one aligned feature set
// and removes rows that cannot be ranked.
package aggregate

import (
	"fmt"
	"math"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/coverid/artifact"
	"github.com/hupe1980/coverid/dataset"
)

// Raw selects the last code column of an artifact.
const Raw = -1

// AlignmentError reports diverging row counts between features, track IDs
// and clique IDs.
type AlignmentError struct {
	Stage     string
	Rows      int
	TrackIDs  int
	CliqueIDs int
}

func (e *AlignmentError) Error() string {
	return fmt.Sprintf("alignment violated after %s: %d feature rows, %d track ids, %d clique ids",
		e.Stage, e.Rows, e.TrackIDs, e.CliqueIDs)
}

// Set is an aligned feature matrix: row i, TrackIDs[i] and CliqueIDs[i]
// describe the same track.
type Set struct {
	Features  *artifact.Matrix
	TrackIDs  []string
	CliqueIDs []int32
	// Valid marks rows holding computed codes.
	Valid *roaring.Bitmap
}

// NewSet returns an empty set.
func NewSet() *Set {
	return &Set{
		Features: artifact.NewMatrix(0, 0),
		Valid:    roaring.New(),
	}
}

// Len returns the number of rows.
func (s *Set) Len() int { return len(s.TrackIDs) }

// Dim returns the feature dimension.
func (s *Set) Dim() int { return s.Features.Dim }

// CheckAlignment verifies the alignment invariant.
func (s *Set) CheckAlignment() error {
	return s.checkAlignment("check")
}

func (s *Set) checkAlignment(stage string) error {
	rows := 0
	if s.Features != nil {
		rows = s.Features.Rows
	}
	if rows != len(s.TrackIDs) || len(s.TrackIDs) != len(s.CliqueIDs) ||
		(s.Valid != nil && !s.Valid.IsEmpty() && int(s.Valid.Maximum()) >= rows) {
		return &AlignmentError{Stage: stage, Rows: rows, TrackIDs: len(s.TrackIDs), CliqueIDs: len(s.CliqueIDs)}
	}
	return nil
}

func resolveColumn(a *artifact.Artifact, column int) (int, error) {
	if column == Raw {
		column = len(a.Codes) - 1
	}
	if column < 0 || column >= len(a.Codes) {
		return 0, fmt.Errorf("aggregate: column %d out of range, artifact has %d", column, len(a.Codes))
	}
	return column, nil
}

// Append concatenates one code column of a below s.
func (s *Set) Append(a *artifact.Artifact, column int) error {
	col, err := resolveColumn(a, column)
	if err != nil {
		return err
	}
	offset := uint32(s.Len())
	if err := s.Features.Append(a.Codes[col]); err != nil {
		return err
	}
	s.TrackIDs = append(s.TrackIDs, a.TrackIDs...)
	s.CliqueIDs = append(s.CliqueIDs, a.CliqueIDs...)
	if a.Valid != nil {
		it := a.Valid.Iterator()
		for it.HasNext() {
			s.Valid.Add(offset + it.Next())
		}
	}
	return s.checkAlignment("append")
}

// FromArtifact builds a set from one code column of a.
func FromArtifact(a *artifact.Artifact, column int) (*Set, error) {
	s := NewSet()
	if err := s.Append(a, column); err != nil {
		return nil, err
	}
	return s, nil
}

func finiteRow(v []float32) bool {
	for _, x := range v {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return false
		}
	}
	return true
}

// Clean returns a new set without rows that are missing from the validity
// bitmap or contain NaN or Inf. Every row of the result is valid.
func Clean(s *Set) (*Set, error) {
	if err := s.checkAlignment("load"); err != nil {
		return nil, err
	}

	keep := make([]int, 0, s.Len())
	for i := range s.Len() {
		if s.Valid != nil && s.Valid.Contains(uint32(i)) && finiteRow(s.Features.Row(i)) {
			keep = append(keep, i)
		}
	}

	out := &Set{
		Features:  s.Features.Select(keep),
		TrackIDs:  make([]string, len(keep)),
		CliqueIDs: make([]int32, len(keep)),
		Valid:     roaring.New(),
	}
	for k, i := range keep {
		out.TrackIDs[k] = s.TrackIDs[i]
		out.CliqueIDs[k] = s.CliqueIDs[i]
	}
	out.Valid.AddRange(0, uint64(len(keep)))

	if err := out.checkAlignment("clean"); err != nil {
		return nil, err
	}
	return out, nil
}

// Queries counts rows with a known clique.
func Queries(s *Set) int {
	n := 0
	for _, c := range s.CliqueIDs {
		if c != dataset.NoClique {
			n++
		}
	}
	return n
}
