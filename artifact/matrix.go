package artifact

import "fmt"

// Matrix is a dense row-major float32 matrix.
type Matrix struct {
	Rows int
	Dim  int
	Data []float32
}

// NewMatrix allocates a zeroed rows x dim matrix.
func NewMatrix(rows, dim int) *Matrix {
	return &Matrix{
		Rows: rows,
		Dim:  dim,
		Data: make([]float32, rows*dim),
	}
}

// MatrixFromRows copies equally sized rows into a new matrix.
func MatrixFromRows(rows [][]float32) (*Matrix, error) {
	if len(rows) == 0 {
		return NewMatrix(0, 0), nil
	}
	m := NewMatrix(len(rows), len(rows[0]))
	for i, r := range rows {
		if err := m.SetRow(i, r); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Row returns row i. The slice aliases the matrix storage.
func (m *Matrix) Row(i int) []float32 {
	return m.Data[i*m.Dim : (i+1)*m.Dim : (i+1)*m.Dim]
}

// SetRow copies v into row i.
func (m *Matrix) SetRow(i int, v []float32) error {
	if len(v) != m.Dim {
		return fmt.Errorf("artifact: row of dimension %d, matrix has %d", len(v), m.Dim)
	}
	if i < 0 || i >= m.Rows {
		return fmt.Errorf("artifact: row %d out of range [0,%d)", i, m.Rows)
	}
	copy(m.Data[i*m.Dim:], v)
	return nil
}

// Append concatenates the rows of o below m. Dimensions must match unless m
// is empty.
func (m *Matrix) Append(o *Matrix) error {
	if o == nil || o.Rows == 0 {
		return nil
	}
	if m.Rows == 0 {
		m.Dim = o.Dim
	}
	if m.Dim != o.Dim {
		return fmt.Errorf("artifact: append dimension %d to matrix of dimension %d", o.Dim, m.Dim)
	}
	m.Data = append(m.Data, o.Data...)
	m.Rows += o.Rows
	return nil
}

// Select returns a new matrix holding the listed rows in order.
func (m *Matrix) Select(rows []int) *Matrix {
	out := NewMatrix(len(rows), m.Dim)
	for k, i := range rows {
		copy(out.Data[k*m.Dim:], m.Row(i))
	}
	return out
}
