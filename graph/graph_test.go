package graph

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/pkg/errors"

	"github.com/b0tShaman/neurograph/tensor"
)

// must fails the test when declaring a node fails: must(t)(g.MatMul(a, b)).
func must(t *testing.T) func(*Node, error) *Node {
	t.Helper()
	return func(n *Node, err error) *Node {
		t.Helper()
		if err != nil {
			t.Fatalf("declare node: %v", err)
		}
		return n
	}
}

func TestApplyInfersShapes(t *testing.T) {
	g := New()
	x := must(t)(g.Placeholder("x", Float64, Shape{Rows: Unknown, Cols: 3}))
	w := must(t)(g.Variable("w", Shape{Rows: 3, Cols: 2}))
	b := must(t)(g.Variable("b", Shape{Rows: 1, Cols: 2}))

	y := must(t)(g.MatMul(x, w))
	if want := (Shape{Rows: Unknown, Cols: 2}); y.Shape() != want {
		t.Fatalf("expected %s, got %s", want, y.Shape())
	}
	z := must(t)(g.BiasAdd(y, b))
	s := must(t)(g.Activation(ActSoftmax, z))
	if s.Shape() != z.Shape() || s.DType() != Float64 {
		t.Fatalf("expected softmax to keep %s float64, got %s %s", z.Shape(), s.Shape(), s.DType())
	}

	labels := must(t)(g.Placeholder("labels", Float64, Shape{Rows: Unknown, Cols: Unknown}))
	loss := must(t)(g.MeanSquaredError(s, labels))
	if !loss.Shape().IsScalar() {
		t.Fatalf("expected scalar loss, got %s", loss.Shape())
	}
}

func TestApplyRejectsIncompatibleOperands(t *testing.T) {
	g := New()
	x := must(t)(g.Placeholder("x", Float64, Shape{Rows: Unknown, Cols: 3}))
	w := must(t)(g.Variable("w", Shape{Rows: 4, Cols: 2}))

	_, err := g.MatMul(x, w)
	var se *ShapeError
	if !errors.As(err, &se) {
		t.Fatalf("expected *ShapeError, got %v", err)
	}
	if g.Len() != 2 {
		t.Fatalf("failed declaration added a node: %d nodes", g.Len())
	}

	idx := must(t)(g.Placeholder("idx", Int64, Shape{Rows: Unknown, Cols: 1}))
	_, err = g.MatMul(idx, w)
	var te *TypeError
	if !errors.As(err, &te) || te.Got != Int64 {
		t.Fatalf("expected *TypeError for int64 operand, got %v", err)
	}

	other := New()
	v := must(t)(other.Variable("v", Shape{Rows: 3, Cols: 1}))
	if _, err := g.MatMul(x, v); err == nil {
		t.Fatalf("expected error when mixing graphs")
	}
}

func TestSparseLossRequiresIndexLabels(t *testing.T) {
	g := New()
	p := must(t)(g.Placeholder("p", Float64, Shape{Rows: Unknown, Cols: 4}))
	dense := must(t)(g.Placeholder("y", Float64, Shape{Rows: Unknown, Cols: 4}))
	if _, err := g.SparseCategoricalCrossEntropy(p, dense); err == nil {
		t.Fatalf("expected error for float64 labels")
	}
	wide := must(t)(g.Placeholder("idx", Int64, Shape{Rows: Unknown, Cols: 2}))
	if _, err := g.SparseCategoricalCrossEntropy(p, wide); err == nil {
		t.Fatalf("expected error for two-column class indices")
	}
}

func TestUniqueNames(t *testing.T) {
	g := New()
	if got := g.UniqueName("dense"); got != "dense" {
		t.Fatalf("expected dense, got %s", got)
	}
	if got := g.UniqueName("dense"); got != "dense_1" {
		t.Fatalf("expected dense_1, got %s", got)
	}
	a := must(t)(g.Fill(ScalarShape(), 1))
	b := must(t)(g.Fill(ScalarShape(), 2))
	if a.Name() != "Fill" || b.Name() != "Fill_1" {
		t.Fatalf("expected Fill and Fill_1, got %s and %s", a.Name(), b.Name())
	}
	if g.Lookup("Fill_1") != b {
		t.Fatalf("lookup did not return the declared node")
	}
}

func TestVariableNeedsKnownShape(t *testing.T) {
	g := New()
	if _, err := g.Variable("w", Shape{Rows: Unknown, Cols: 2}); err == nil {
		t.Fatalf("expected error for unknown variable shape")
	}
	w := must(t)(g.Variable("w", Shape{Rows: 2, Cols: 2}))
	wrong := must(t)(g.Fill(Shape{Rows: 2, Cols: 3}, 0))
	if _, err := g.Assign(w, wrong); err == nil {
		t.Fatalf("expected error assigning 2x3 value to 2x2 variable")
	}
	x := must(t)(g.Fill(Shape{Rows: 2, Cols: 2}, 0))
	if _, err := g.Assign(x, x); err == nil {
		t.Fatalf("expected error assigning to a non-variable")
	}
}

func TestDescribe(t *testing.T) {
	g := New()
	x := must(t)(g.Placeholder("x", Float64, Shape{Rows: Unknown, Cols: 2}))
	w := must(t)(g.Variable("w", Shape{Rows: 2, Cols: 1}))
	must(t)(g.Assign(w, must(t)(g.RandomNormal(Shape{Rows: 2, Cols: 1}, 0.1, 7))))
	must(t)(g.MatMul(x, w))

	s, err := g.Describe()
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	nodes := s.GetFields()["nodes"].GetListValue().GetValues()
	if len(nodes) != g.Len() {
		t.Fatalf("expected %d described nodes, got %d", g.Len(), len(nodes))
	}
	first := nodes[0].GetStructValue().GetFields()
	if got := first["op"].GetStringValue(); got != "Placeholder" {
		t.Fatalf("expected Placeholder, got %s", got)
	}
	shape := first["shape"].GetListValue().GetValues()
	if shape[0].GetNumberValue() != Unknown || shape[1].GetNumberValue() != 2 {
		t.Fatalf("expected shape [-1 2], got %v", shape)
	}

	js, err := g.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	var decoded struct {
		Nodes []struct {
			Name   string   `json:"name"`
			Op     string   `json:"op"`
			Inputs []string `json:"inputs"`
		} `json:"nodes"`
	}
	if err := json.Unmarshal(js, &decoded); err != nil {
		t.Fatalf("decode %s: %v", js, err)
	}
	last := decoded.Nodes[len(decoded.Nodes)-1]
	if last.Op != "MatMul" || strings.Join(last.Inputs, ",") != "x,w" {
		t.Fatalf("expected MatMul over x,w, got %s over %v", last.Op, last.Inputs)
	}
}

func TestHostDevice(t *testing.T) {
	d := HostDevice()
	if d.LogicalCores < 0 || d.String() == "" {
		t.Fatalf("unexpected device description %+v", d)
	}
}

func TestConstantCopiesValue(t *testing.T) {
	g := New()
	m := tensor.NewMatrixFromSlice(1, 2, []float64{1, 2})
	c := must(t)(g.Constant("c", m))
	m.Set(0, 0, 99)

	s, err := NewSession(g)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	defer s.Close()
	out, err := s.Run(nil, []*Node{c}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out[0].At(0, 0) != 1 {
		t.Fatalf("expected constant to keep 1, got %v", out[0].At(0, 0))
	}
}
