package transform

import (
	"errors"
	"fmt"

	"github.com/viterin/vek/vek32"
	"gonum.org/v1/gonum/mat"
)

// Kind identifies the family of a fitted projection.
type Kind string

const (
	KindPCA Kind = "pca"
	KindLDA Kind = "lda"
)

// ErrNotFitted is returned for projections without components.
var ErrNotFitted = errors.New("transform: projection not fitted")

// DimensionError is returned when a vector does not match a stage's input.
type DimensionError struct {
	Stage    string
	Expected int
	Actual   int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("transform: %s expects dimension %d, got %d", e.Stage, e.Expected, e.Actual)
}

// Normalize scales v to unit L2 norm, treating it as a single chroma column.
// A zero vector is returned unchanged. The input is never modified.
func Normalize(v []float32) []float32 {
	if len(v) == 0 {
		return []float32{}
	}
	n := vek32.Norm(v)
	if n == 0 {
		out := make([]float32, len(v))
		copy(out, v)
		return out
	}
	return vek32.DivNumber(v, n)
}

// Projection is a fitted linear model y = Componentsᵀ (x - Mean).
type Projection struct {
	Kind Kind
	// Mean has length InDim.
	Mean []float64
	// Components is InDim x OutDim; column k is the k-th direction.
	Components *mat.Dense
}

// InDim returns the expected input dimension.
func (p *Projection) InDim() int {
	if p == nil || p.Components == nil {
		return 0
	}
	r, _ := p.Components.Dims()
	return r
}

// OutDim returns the number of output components.
func (p *Projection) OutDim() int {
	if p == nil || p.Components == nil {
		return 0
	}
	_, c := p.Components.Dims()
	return c
}

// Apply projects v.
func (p *Projection) Apply(v []float32) ([]float32, error) {
	if p == nil || p.Components == nil {
		return nil, ErrNotFitted
	}
	in := p.InDim()
	if len(v) != in {
		return nil, &DimensionError{Stage: string(p.Kind), Expected: in, Actual: len(v)}
	}

	centered := make([]float64, in)
	for i, x := range v {
		centered[i] = float64(x) - p.Mean[i]
	}

	var y mat.VecDense
	y.MulVec(p.Components.T(), mat.NewVecDense(in, centered))

	out := make([]float32, y.Len())
	for i := range out {
		out[i] = float32(y.AtVec(i))
	}
	return out, nil
}

// Truncate returns a projection keeping the first n components. The result
// shares storage with p. n is clamped to OutDim.
func (p *Projection) Truncate(n int) *Projection {
	n = max(1, min(n, p.OutDim()))
	return &Projection{
		Kind:       p.Kind,
		Mean:       p.Mean,
		Components: p.Components.Slice(0, p.InDim(), 0, n).(*mat.Dense),
	}
}
