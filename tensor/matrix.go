package tensor

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Matrix represents a dense matrix with a flat data slice for performance.
// Every concrete value in the module is a Matrix; scalars are 1x1.
type Matrix struct {
	rows, cols int
	data       []float64
	dense      *mat.Dense
}

// -------- CONSTRUCTORS ------- //
func NewMatrix(rows, cols int) *Matrix {
	data := make([]float64, rows*cols)
	return &Matrix{
		rows:  rows,
		cols:  cols,
		data:  data,
		dense: mat.NewDense(rows, cols, data),
	}
}

// NewMatrixFromSlice wraps data without copying it.
func NewMatrixFromSlice(rows, cols int, data []float64) *Matrix {
	if len(data) != rows*cols {
		panic(fmt.Sprintf("tensor: slice length %d does not match %dx%d", len(data), rows, cols))
	}

	return &Matrix{
		rows:  rows,
		cols:  cols,
		data:  data,
		dense: mat.NewDense(rows, cols, data),
	}
}

// FromRows copies a row-major block into a new matrix. All rows must share one length.
func FromRows(block [][]float64) (*Matrix, error) {
	if len(block) == 0 {
		return nil, fmt.Errorf("tensor: empty block")
	}
	cols := len(block[0])
	if cols == 0 {
		return nil, fmt.Errorf("tensor: block has zero columns")
	}
	m := NewMatrix(len(block), cols)
	if err := m.CopyRows(block); err != nil {
		return nil, err
	}
	return m, nil
}

func Scalar(v float64) *Matrix {
	return NewMatrixFromSlice(1, 1, []float64{v})
}

func Filled(rows, cols int, v float64) *Matrix {
	m := NewMatrix(rows, cols)
	m.Fill(v)
	return m
}

// ------- ACCESSORS ------ //
func (m *Matrix) Rows() int         { return m.rows }
func (m *Matrix) Cols() int         { return m.cols }
func (m *Matrix) Data() []float64   { return m.data }
func (m *Matrix) Dense() *mat.Dense { return m.dense }

func (m *Matrix) At(i, j int) float64 {
	return m.data[i*m.cols+j]
}

func (m *Matrix) Set(i, j int, v float64) {
	m.data[i*m.cols+j] = v
}

// Row returns a view of row i.
func (m *Matrix) Row(i int) []float64 {
	return m.data[i*m.cols : (i+1)*m.cols]
}

// Value returns the single element of a 1x1 matrix.
func (m *Matrix) Value() float64 {
	if m.rows != 1 || m.cols != 1 {
		panic(fmt.Sprintf("tensor: Value on %dx%d matrix", m.rows, m.cols))
	}
	return m.data[0]
}

func (m *Matrix) SameShape(b *Matrix) bool {
	return m.rows == b.rows && m.cols == b.cols
}

func (m *Matrix) String() string {
	return fmt.Sprintf("Matrix[%dx%d]", m.rows, m.cols)
}

// ------- MATRIX METHODS ------ //
func (m *Matrix) Clone() *Matrix {
	out := NewMatrix(m.rows, m.cols)
	copy(out.data, m.data)
	return out
}

// CopyRows writes a row-major block into m. The block must match m's shape.
func (m *Matrix) CopyRows(block [][]float64) error {
	if len(block) != m.rows {
		return fmt.Errorf("tensor: block has %d rows, want %d", len(block), m.rows)
	}
	for i, row := range block {
		if len(row) != m.cols {
			return fmt.Errorf("tensor: row %d has %d values, want %d", i, len(row), m.cols)
		}
		copy(m.data[i*m.cols:], row)
	}
	return nil
}

func (m *Matrix) Reset() {
	for i := range m.data {
		m.data[i] = 0.0
	}
}

func (m *Matrix) Fill(v float64) {
	for i := range m.data {
		m.data[i] = v
	}
}

func (m *Matrix) Add(b *Matrix) {
	m.dense.Add(m.dense, b.dense)
}

func (m *Matrix) Subtract(b *Matrix) {
	m.dense.Sub(m.dense, b.dense)
}

func (m *Matrix) Scale(s float64) {
	floats.Scale(s, m.data)
}

// AddScaled performs m += alpha * b.
func (m *Matrix) AddScaled(alpha float64, b *Matrix) {
	floats.AddScaled(m.data, alpha, b.data)
}

// MulElem performs element-wise multiplication in place.
func (m *Matrix) MulElem(b *Matrix) {
	floats.Mul(m.data, b.data)
}

func (m *Matrix) AddVector(v *Matrix) {
	for i := 0; i < m.rows; i++ {
		floats.Add(m.data[i*m.cols:(i+1)*m.cols], v.data)
	}
}

func (m *Matrix) ApplyFunc(fn func(float64) float64) {
	for i := range m.data {
		m.data[i] = fn(m.data[i])
	}
}

func (m *Matrix) Sum() float64 {
	return floats.Sum(m.data)
}

func (m *Matrix) Mean() float64 {
	if len(m.data) == 0 {
		return 0
	}
	return floats.Sum(m.data) / float64(len(m.data))
}

// ColumnSums reduces over rows, returning a 1 x cols matrix.
func (m *Matrix) ColumnSums() *Matrix {
	out := NewMatrix(1, m.cols)
	for i := 0; i < m.rows; i++ {
		floats.Add(out.data, m.data[i*m.cols:(i+1)*m.cols])
	}
	return out
}

// ArgMaxRow returns the column index of the largest value in row i.
func (m *Matrix) ArgMaxRow(i int) int {
	return floats.MaxIdx(m.Row(i))
}

// ------ UTILITY FUNCTIONS ------
func MatMul(a, b mat.Matrix, out *Matrix) {
	out.dense.Mul(a, b)
}

// Product allocates and returns op(a) * op(b), where op transposes when requested.
func Product(a, b *Matrix, transA, transB bool) *Matrix {
	var am, bm mat.Matrix = a.dense, b.dense
	if transA {
		am = a.dense.T()
	}
	if transB {
		bm = b.dense.T()
	}
	r, _ := am.Dims()
	_, c := bm.Dims()
	out := NewMatrix(r, c)
	MatMul(am, bm, out)
	return out
}

// Equal reports whether a and b have the same shape and values within tol.
func Equal(a, b *Matrix, tol float64) bool {
	return a.SameShape(b) && floats.EqualApprox(a.data, b.data, tol)
}
