package transform

import (
	"context"
	"encoding/json"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/hupe1980/coverid/blobstore"
	"github.com/hupe1980/coverid/codec"
)

type projectionModel struct {
	Kind       Kind      `json:"kind"`
	InDim      int       `json:"in_dim"`
	OutDim     int       `json:"out_dim"`
	Mean       []float64 `json:"mean"`
	Components []float64 `json:"components"` // row-major InDim x OutDim
}

// MarshalJSON implements json.Marshaler.
func (p *Projection) MarshalJSON() ([]byte, error) {
	in, out := p.InDim(), p.OutDim()
	m := projectionModel{
		Kind:       p.Kind,
		InDim:      in,
		OutDim:     out,
		Mean:       p.Mean,
		Components: make([]float64, 0, in*out),
	}
	for i := range in {
		for j := range out {
			m.Components = append(m.Components, p.Components.At(i, j))
		}
	}
	return json.Marshal(m)
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Projection) UnmarshalJSON(data []byte) error {
	var m projectionModel
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	if m.InDim <= 0 || m.OutDim <= 0 {
		return fmt.Errorf("transform: model has shape %dx%d", m.InDim, m.OutDim)
	}
	if len(m.Mean) != m.InDim || len(m.Components) != m.InDim*m.OutDim {
		return fmt.Errorf("transform: model data does not match shape %dx%d", m.InDim, m.OutDim)
	}
	p.Kind = m.Kind
	p.Mean = m.Mean
	p.Components = mat.NewDense(m.InDim, m.OutDim, m.Components)
	return nil
}

// SaveProjection writes p to store under name.
func SaveProjection(ctx context.Context, store blobstore.BlobStore, name string, p *Projection) error {
	data, err := codec.Default.Marshal(p)
	if err != nil {
		return err
	}
	return store.Put(ctx, name, data)
}

// LoadProjection reads a projection written by SaveProjection.
func LoadProjection(ctx context.Context, store blobstore.BlobStore, name string) (*Projection, error) {
	data, err := blobstore.ReadAll(ctx, store, name)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", name, err)
	}
	p := &Projection{}
	if err := codec.Default.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("load model %s: %w", name, err)
	}
	return p, nil
}

// SaveEnsemble writes an ordered list of projections under name.
func SaveEnsemble(ctx context.Context, store blobstore.BlobStore, name string, ps []*Projection) error {
	data, err := codec.Default.Marshal(ps)
	if err != nil {
		return err
	}
	return store.Put(ctx, name, data)
}

// LoadEnsemble reads projections written by SaveEnsemble.
func LoadEnsemble(ctx context.Context, store blobstore.BlobStore, name string) ([]*Projection, error) {
	data, err := blobstore.ReadAll(ctx, store, name)
	if err != nil {
		return nil, fmt.Errorf("load ensemble %s: %w", name, err)
	}
	var ps []*Projection
	if err := codec.Default.Unmarshal(data, &ps); err != nil {
		return nil, fmt.Errorf("load ensemble %s: %w", name, err)
	}
	if len(ps) == 0 {
		return nil, fmt.Errorf("load ensemble %s: empty", name)
	}
	return ps, nil
}

// ChainConfig names the persisted models that make up a Chain.
type ChainConfig struct {
	Normalize bool
	// PCAModel is a projection blob applied first. PCADims > 0 truncates it and
	// must not exceed its OutDim.
	PCAModel string
	PCADims  int
	// EnsembleModel is an ensemble blob applied after PCA. When it holds a
	// single projection and EnsembleDims is set, the member is truncated at
	// each listed dimension, none of which may exceed its OutDim.
	EnsembleModel string
	EnsembleDims  []int
	Renormalize   bool
}

// LoadChain loads every model named in cfg and assembles the Chain.
func LoadChain(ctx context.Context, store blobstore.BlobStore, cfg ChainConfig) (*Chain, error) {
	c := &Chain{
		Normalize:   cfg.Normalize,
		Renormalize: cfg.Renormalize,
	}

	if cfg.PCAModel != "" {
		p, err := LoadProjection(ctx, store, cfg.PCAModel)
		if err != nil {
			return nil, err
		}
		if cfg.PCADims > 0 {
			if cfg.PCADims > p.OutDim() {
				return nil, &DimensionError{Stage: "pca_dims", Expected: p.OutDim(), Actual: cfg.PCADims}
			}
			p = p.Truncate(cfg.PCADims)
		}
		c.PCA = p
	}

	if cfg.EnsembleModel != "" {
		ps, err := LoadEnsemble(ctx, store, cfg.EnsembleModel)
		if err != nil {
			return nil, err
		}
		if len(ps) == 1 && len(cfg.EnsembleDims) > 0 {
			base := ps[0]
			ps = make([]*Projection, len(cfg.EnsembleDims))
			for i, d := range cfg.EnsembleDims {
				if d > base.OutDim() {
					return nil, &DimensionError{Stage: fmt.Sprintf("ensemble_dims[%d]", i), Expected: base.OutDim(), Actual: d}
				}
				ps[i] = base.Truncate(d)
			}
		}
		c.Ensemble = ps
	}

	if err := c.Validate(0); err != nil {
		return nil, err
	}
	return c, nil
}
