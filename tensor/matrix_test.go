package tensor

import (
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/floats"
)

// naiveMatMul is the standard O(N^3) multiplication, used as a reference.
func naiveMatMul(a, b, out *Matrix) {
	out.Reset()
	for i := 0; i < a.rows; i++ {
		for k := 0; k < a.cols; k++ {
			scalar := a.data[i*a.cols+k]
			for j := 0; j < b.cols; j++ {
				out.data[i*out.cols+j] += scalar * b.data[k*b.cols+j]
			}
		}
	}
}

func randomMatrix(rng *rand.Rand, rows, cols int) *Matrix {
	m := NewMatrix(rows, cols)
	for i := range m.data {
		m.data[i] = rng.Float64()*2 - 1
	}
	return m
}

func transpose(m *Matrix) *Matrix {
	out := NewMatrix(m.cols, m.rows)
	for i := 0; i < m.rows; i++ {
		for j := 0; j < m.cols; j++ {
			out.Set(j, i, m.At(i, j))
		}
	}
	return out
}

func TestMatMulMatchesNaive(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	a := randomMatrix(rng, 7, 5)
	b := randomMatrix(rng, 5, 3)

	want := NewMatrix(7, 3)
	naiveMatMul(a, b, want)
	got := NewMatrix(7, 3)
	MatMul(a.Dense(), b.Dense(), got)

	if !Equal(got, want, 1e-12) {
		t.Fatalf("expected %v, got %v", want.Data(), got.Data())
	}
}

func TestProductTransposes(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	a := randomMatrix(rng, 4, 6)
	b := randomMatrix(rng, 4, 2)

	// a^T * b
	want := NewMatrix(6, 2)
	naiveMatMul(transpose(a), b, want)
	if got := Product(a, b, true, false); !Equal(got, want, 1e-12) {
		t.Fatalf("a^T b: expected %v, got %v", want.Data(), got.Data())
	}

	// b * b^T
	want = NewMatrix(4, 4)
	naiveMatMul(b, transpose(b), want)
	if got := Product(b, b, false, true); !Equal(got, want, 1e-12) {
		t.Fatalf("b b^T: expected %v, got %v", want.Data(), got.Data())
	}
}

func TestFromRows(t *testing.T) {
	m, err := FromRows([][]float64{{1, 2, 3}, {4, 5, 6}})
	if err != nil {
		t.Fatalf("FromRows: %v", err)
	}
	if m.Rows() != 2 || m.Cols() != 3 {
		t.Fatalf("expected 2x3, got %dx%d", m.Rows(), m.Cols())
	}
	if m.At(1, 2) != 6 {
		t.Fatalf("expected 6 at (1,2), got %v", m.At(1, 2))
	}

	if _, err := FromRows([][]float64{{1, 2}, {3}}); err == nil {
		t.Fatalf("expected error for ragged block")
	}
	if _, err := FromRows(nil); err == nil {
		t.Fatalf("expected error for empty block")
	}
}

func TestReductions(t *testing.T) {
	m := NewMatrixFromSlice(2, 3, []float64{1, 5, 2, 7, 0, 3})

	if got := m.Sum(); got != 18 {
		t.Fatalf("expected sum 18, got %v", got)
	}
	if got := m.Mean(); got != 3 {
		t.Fatalf("expected mean 3, got %v", got)
	}
	if got := m.ColumnSums().Data(); !floats.Equal(got, []float64{8, 5, 5}) {
		t.Fatalf("expected column sums [8 5 5], got %v", got)
	}
	if got := m.ArgMaxRow(0); got != 1 {
		t.Fatalf("expected argmax 1 in row 0, got %d", got)
	}
	if got := m.ArgMaxRow(1); got != 0 {
		t.Fatalf("expected argmax 0 in row 1, got %d", got)
	}
}

func TestElementwise(t *testing.T) {
	m := NewMatrixFromSlice(2, 2, []float64{1, 2, 3, 4})
	b := Filled(2, 2, 2)

	c := m.Clone()
	c.MulElem(b)
	c.Subtract(m)
	c.AddScaled(0.5, b)
	if !floats.Equal(c.Data(), []float64{2, 3, 4, 5}) {
		t.Fatalf("expected [2 3 4 5], got %v", c.Data())
	}
	if !floats.Equal(m.Data(), []float64{1, 2, 3, 4}) {
		t.Fatalf("clone shares storage with source: %v", m.Data())
	}

	c.AddVector(NewMatrixFromSlice(1, 2, []float64{10, 20}))
	if !floats.Equal(c.Data(), []float64{12, 23, 14, 25}) {
		t.Fatalf("expected [12 23 14 25], got %v", c.Data())
	}
}

func TestValuePanicsOnNonScalar(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	NewMatrix(2, 1).Value()
}

// --- Benchmarks: Matrix Multiplication ---

var resultMat *Matrix // Global variable to prevent compiler optimizations

func benchmarkMatMul(b *testing.B, size int, method string) {
	rng := rand.New(rand.NewPCG(1, 1))
	m1 := randomMatrix(rng, size, size)
	m2 := randomMatrix(rng, size, size)
	out := NewMatrix(size, size)

	b.ResetTimer()

	for n := 0; n < b.N; n++ {
		if method == "naive" {
			naiveMatMul(m1, m2, out)
		} else {
			MatMul(m1.dense, m2.dense, out)
		}
	}
	resultMat = out
}

func BenchmarkMatMul_Naive_64(b *testing.B)  { benchmarkMatMul(b, 64, "naive") }
func BenchmarkMatMul_Gonum_64(b *testing.B)  { benchmarkMatMul(b, 64, "gonum") }
func BenchmarkMatMul_Naive_256(b *testing.B) { benchmarkMatMul(b, 256, "naive") }
func BenchmarkMatMul_Gonum_256(b *testing.B) { benchmarkMatMul(b, 256, "gonum") }
