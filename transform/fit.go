package transform

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

var (
	// ErrFitFailed is returned when a factorization does not converge.
	ErrFitFailed = errors.New("transform: fit failed")
	// ErrTooFewClasses is returned when LDA sees fewer than two labels.
	ErrTooFewClasses = errors.New("transform: lda needs at least two classes")
)

// DefaultLDARegularization is added to the within-class scatter diagonal.
const DefaultLDARegularization = 1e-6

func columnMeans(x mat.Matrix) []float64 {
	r, c := x.Dims()
	means := make([]float64, c)
	col := make([]float64, r)
	for j := range c {
		mat.Col(col, j, x)
		means[j] = stat.Mean(col, nil)
	}
	return means
}

// FitPCA fits n principal components to the rows of x.
func FitPCA(x *mat.Dense, n int) (*Projection, error) {
	r, d := x.Dims()
	if n <= 0 || n > min(r, d) {
		return nil, fmt.Errorf("transform: pca with %d components on %dx%d data", n, r, d)
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(x, nil); !ok {
		return nil, fmt.Errorf("%w: pca svd", ErrFitFailed)
	}

	var vecs mat.Dense
	pc.VectorsTo(&vecs)

	comps := mat.NewDense(d, n, nil)
	comps.Copy(vecs.Slice(0, d, 0, n))

	return &Projection{
		Kind:       KindPCA,
		Mean:       columnMeans(x),
		Components: comps,
	}, nil
}

// FitLDA fits n linear discriminants to the rows of x with the given class
// labels. n is bounded by classes-1 and the input dimension. reg is added to
// the within-class scatter diagonal; reg <= 0 selects
// DefaultLDARegularization.
func FitLDA(x *mat.Dense, labels []int, n int, reg float64) (*Projection, error) {
	r, d := x.Dims()
	if len(labels) != r {
		return nil, fmt.Errorf("transform: %d labels for %d rows", len(labels), r)
	}
	if reg <= 0 {
		reg = DefaultLDARegularization
	}

	groups := make(map[int][]int)
	for i, l := range labels {
		groups[l] = append(groups[l], i)
	}
	if len(groups) < 2 {
		return nil, ErrTooFewClasses
	}
	if n <= 0 || n > min(len(groups)-1, d) {
		return nil, fmt.Errorf("transform: lda with %d components, %d classes, dim %d", n, len(groups), d)
	}

	mean := columnMeans(x)
	sw := mat.NewSymDense(d, nil)
	sb := mat.NewSymDense(d, nil)

	classes := make([]int, 0, len(groups))
	for c := range groups {
		classes = append(classes, c)
	}
	sort.Ints(classes)

	diff := mat.NewVecDense(d, nil)
	for _, c := range classes {
		rows := groups[c]
		cls := mat.NewDense(len(rows), d, nil)
		for k, i := range rows {
			cls.SetRow(k, x.RawRowView(i))
		}
		cm := columnMeans(cls)

		for k := range rows {
			row := cls.RawRowView(k)
			for j := range d {
				row[j] -= cm[j]
			}
		}
		sw.SymRankK(sw, 1, cls.T())

		for j := range d {
			diff.SetVec(j, cm[j]-mean[j])
		}
		sb.SymRankOne(sb, float64(len(rows)), diff)
	}
	for j := range d {
		sw.SetSym(j, j, sw.At(j, j)+reg)
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(sw); !ok {
		return nil, fmt.Errorf("%w: within-class scatter not positive definite", ErrFitFailed)
	}
	var l, linv mat.TriDense
	chol.LTo(&l)
	if err := linv.InverseTri(&l); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
			return nil, fmt.Errorf("%w: %v", ErrFitFailed, err)
		}
	}

	// Whitened between-class scatter L⁻¹ Sb L⁻ᵀ.
	var tmp, m mat.Dense
	tmp.Mul(&linv, sb)
	m.Mul(&tmp, linv.T())
	ms := mat.NewSymDense(d, nil)
	for i := range d {
		for j := i; j < d; j++ {
			ms.SetSym(i, j, (m.At(i, j)+m.At(j, i))/2)
		}
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(ms, true); !ok {
		return nil, fmt.Errorf("%w: eigen decomposition", ErrFitFailed)
	}
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	order := make([]int, d)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return vals[order[a]] > vals[order[b]] })

	// Map back to input space: w = L⁻ᵀ v.
	var w mat.Dense
	w.Mul(linv.T(), &vecs)

	comps := mat.NewDense(d, n, nil)
	col := make([]float64, d)
	for k := range n {
		mat.Col(col, order[k], &w)
		var norm float64
		for _, v := range col {
			norm += v * v
		}
		norm = math.Sqrt(norm)
		if norm == 0 {
			norm = 1
		}
		for j := range d {
			comps.Set(j, k, col[j]/norm)
		}
	}

	return &Projection{
		Kind:       KindLDA,
		Mean:       mean,
		Components: comps,
	}, nil
}

// Dense copies row vectors into a gonum matrix.
func Dense(rows [][]float64) *mat.Dense {
	if len(rows) == 0 {
		return nil
	}
	d := len(rows[0])
	m := mat.NewDense(len(rows), d, nil)
	for i, r := range rows {
		m.SetRow(i, r)
	}
	return m
}
