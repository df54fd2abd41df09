package data

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gonum.org/v1/gonum/floats"
)

func TestReadCSVSkipsHeader(t *testing.T) {
	in := "label,a,b\n1,0.5,2\n0, 1.5 ,4\n"
	X, Y, err := ReadCSV(strings.NewReader(in), 0)
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if len(X) != 2 || !floats.Equal(X[1], []float64{1.5, 4}) {
		t.Fatalf("expected two rows with features [1.5 4] last, got %v", X)
	}
	if !floats.Equal(Y, []float64{1, 0}) {
		t.Fatalf("expected labels [1 0], got %v", Y)
	}
}

func TestReadCSVLabelColumn(t *testing.T) {
	X, Y, err := ReadCSV(strings.NewReader("1,2,3\n4,5,6\n"), 2)
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if !floats.Equal(Y, []float64{3, 6}) || !floats.Equal(X[0], []float64{1, 2}) {
		t.Fatalf("expected labels from the last column, got %v %v", X, Y)
	}
}

func TestReadCSVRejects(t *testing.T) {
	for name, in := range map[string]string{
		"bad value":    "1,2\n3,x\n",
		"header only":  "a,b\n",
		"empty":        "",
		"ragged":       "1,2\n3\n",
		"label column": "1\n",
	} {
		if _, _, err := ReadCSV(strings.NewReader(in), 1); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train.csv")
	if err := os.WriteFile(path, []byte("0,1,1\n1,2,2\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	X, Y, err := LoadCSV(path, 0)
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	if len(X) != 2 || Y[1] != 1 {
		t.Fatalf("unexpected rows %v %v", X, Y)
	}
	if _, _, err := LoadCSV(filepath.Join(t.TempDir(), "missing.csv"), 0); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestMinMaxNormalize(t *testing.T) {
	X := [][]float64{{0, 5, 10}, {5, 5, 20}, {10, 5, 30}}
	MinMaxNormalize(X)
	want := [][]float64{{0, 0, 0}, {0.5, 0, 0.5}, {1, 0, 1}}
	for i := range X {
		if !floats.Equal(X[i], want[i]) {
			t.Fatalf("row %d: expected %v, got %v", i, want[i], X[i])
		}
	}
	MinMaxNormalize(nil)
}

func TestOneHot(t *testing.T) {
	Y, err := OneHot([]float64{2, 0}, 3)
	if err != nil {
		t.Fatalf("OneHot: %v", err)
	}
	if !floats.Equal(Y[0], []float64{0, 0, 1}) || !floats.Equal(Y[1], []float64{1, 0, 0}) {
		t.Fatalf("unexpected encoding %v", Y)
	}
	for _, bad := range []float64{3, -1, 0.5} {
		if _, err := OneHot([]float64{bad}, 3); err == nil {
			t.Fatalf("expected error for label %v", bad)
		}
	}
	if c := Column([]float64{4, 5}); len(c) != 2 || c[1][0] != 5 {
		t.Fatalf("unexpected column %v", c)
	}
}
