package transform

import "fmt"

// Variant describes the shape of a chain.
type Variant int

const (
	// VariantNone emits the (optionally normalized) raw vector.
	VariantNone Variant = iota
	// VariantPCA applies a single PCA projection.
	VariantPCA
	// VariantLDA applies one or more LDA projections.
	VariantLDA
	// VariantPCALDA applies PCA, then one or more LDA projections.
	VariantPCALDA
	// VariantPCAEnsemble applies several truncations of one PCA fit.
	VariantPCAEnsemble
)

func (v Variant) String() string {
	switch v {
	case VariantNone:
		return "none"
	case VariantPCA:
		return "pca"
	case VariantLDA:
		return "lda"
	case VariantPCALDA:
		return "pca+lda"
	case VariantPCAEnsemble:
		return "pca-ensemble"
	default:
		return fmt.Sprintf("Variant(%d)", int(v))
	}
}

// Chain is the immutable transform configuration shared by all workers.
//
// Apply runs Normalize, then PCA, then every Ensemble member. Each ensemble
// output is renormalized when Renormalize is set.
type Chain struct {
	Normalize   bool
	PCA         *Projection
	Ensemble    []*Projection
	Renormalize bool
}

// Variant reports the chain's shape.
func (c *Chain) Variant() Variant {
	if c == nil {
		return VariantNone
	}
	switch {
	case len(c.Ensemble) == 0 && c.PCA == nil:
		return VariantNone
	case len(c.Ensemble) == 0:
		return VariantPCA
	case c.PCA != nil:
		return VariantPCALDA
	case c.Ensemble[0].Kind == KindPCA:
		return VariantPCAEnsemble
	default:
		return VariantLDA
	}
}

// Outputs returns the number of codes Apply emits per vector.
func (c *Chain) Outputs() int {
	if c == nil || len(c.Ensemble) == 0 {
		return 1
	}
	return len(c.Ensemble)
}

// OutputDims returns the dimension of each output for raw input of rawDim.
func (c *Chain) OutputDims(rawDim int) []int {
	if c == nil {
		return []int{rawDim}
	}
	if len(c.Ensemble) == 0 {
		if c.PCA != nil {
			return []int{c.PCA.OutDim()}
		}
		return []int{rawDim}
	}
	dims := make([]int, len(c.Ensemble))
	for i, p := range c.Ensemble {
		dims[i] = p.OutDim()
	}
	return dims
}

// Validate checks that the stages fit together for raw input of rawDim.
// rawDim <= 0 skips the raw input check.
func (c *Chain) Validate(rawDim int) error {
	if c == nil {
		return nil
	}
	dim := rawDim
	if c.PCA != nil {
		if dim > 0 && c.PCA.InDim() != dim {
			return &DimensionError{Stage: "pca", Expected: c.PCA.InDim(), Actual: dim}
		}
		dim = c.PCA.OutDim()
	}
	for i, p := range c.Ensemble {
		if p == nil || p.Components == nil {
			return fmt.Errorf("ensemble member %d: %w", i, ErrNotFitted)
		}
		if dim > 0 && p.InDim() != dim {
			return &DimensionError{Stage: fmt.Sprintf("ensemble[%d]", i), Expected: p.InDim(), Actual: dim}
		}
	}
	return nil
}

// Apply maps one raw vector onto the configured outputs.
func (c *Chain) Apply(v []float32) ([][]float32, error) {
	if c == nil {
		return [][]float32{v}, nil
	}

	code := v
	if c.Normalize {
		code = Normalize(code)
	}
	if c.PCA != nil {
		var err error
		if code, err = c.PCA.Apply(code); err != nil {
			return nil, err
		}
	}
	if len(c.Ensemble) == 0 {
		return [][]float32{code}, nil
	}

	outs := make([][]float32, len(c.Ensemble))
	for i, p := range c.Ensemble {
		y, err := p.Apply(code)
		if err != nil {
			return nil, err
		}
		if c.Renormalize {
			y = Normalize(y)
		}
		outs[i] = y
	}
	return outs, nil
}
