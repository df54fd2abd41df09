package graph

import (
	"math/rand/v2"

	"github.com/pkg/errors"

	"github.com/b0tShaman/neurograph/tensor"
)

// -------- SOURCES -------- //

type placeholderOp struct {
	shape Shape
	dtype DType
}

func (placeholderOp) Type() string { return "Placeholder" }

func (op placeholderOp) Infer([]*Node) (Shape, DType, error) {
	return op.shape, op.dtype, nil
}

func (placeholderOp) Compute(rc *RunContext, n *Node, _ []*tensor.Matrix) (*tensor.Matrix, error) {
	v, ok := rc.feeds[n]
	if !ok {
		return nil, errors.Wrapf(ErrNotFed, "placeholder %s", n.name)
	}
	return v, nil
}

// Placeholder declares an input bound to data only at Run time.
func (g *Graph) Placeholder(name string, dtype DType, shape Shape) (*Node, error) {
	if dtype == Void {
		return nil, errors.Errorf("placeholder %s: void dtype", name)
	}
	return g.Apply(placeholderOp{shape: shape, dtype: dtype}, name)
}

type variableOp struct {
	shape Shape
}

func (variableOp) Type() string { return "Variable" }

func (op variableOp) Infer([]*Node) (Shape, DType, error) {
	return op.shape, Float64, nil
}

func (variableOp) Compute(rc *RunContext, n *Node, _ []*tensor.Matrix) (*tensor.Matrix, error) {
	return rc.Variable(n)
}

// Variable declares mutable state that persists across runs of one session.
// Its shape must be fully known.
func (g *Graph) Variable(name string, shape Shape) (*Node, error) {
	if !shape.Known() || shape.Rows <= 0 || shape.Cols <= 0 {
		return nil, shapeErrorf(name, "variable shape %s must be fully known and positive", shape)
	}
	return g.Apply(variableOp{shape: shape}, name)
}

// IsVariable reports whether n was declared with Variable.
func IsVariable(n *Node) bool {
	_, ok := n.op.(variableOp)
	return ok
}

// IsPlaceholder reports whether n was declared with Placeholder.
func IsPlaceholder(n *Node) bool {
	_, ok := n.op.(placeholderOp)
	return ok
}

type constantOp struct {
	value *tensor.Matrix
}

func (constantOp) Type() string { return "Const" }

func (op constantOp) Infer([]*Node) (Shape, DType, error) {
	return Shape{Rows: op.value.Rows(), Cols: op.value.Cols()}, Float64, nil
}

func (op constantOp) Compute(*RunContext, *Node, []*tensor.Matrix) (*tensor.Matrix, error) {
	return op.value, nil
}

// Constant declares a fixed value. The matrix is copied.
func (g *Graph) Constant(name string, value *tensor.Matrix) (*Node, error) {
	if value == nil {
		return nil, errors.Errorf("constant %s: nil value", name)
	}
	return g.Apply(constantOp{value: value.Clone()}, name)
}

type fillOp struct {
	shape Shape
	value float64
}

func (fillOp) Type() string { return "Fill" }

func (op fillOp) Infer([]*Node) (Shape, DType, error) {
	return op.shape, Float64, nil
}

func (op fillOp) Compute(*RunContext, *Node, []*tensor.Matrix) (*tensor.Matrix, error) {
	return tensor.Filled(op.shape.Rows, op.shape.Cols, op.value), nil
}

func (op fillOp) Attrs() map[string]any {
	return map[string]any{"value": op.value}
}

// Fill declares a value of the given shape with every element set to v.
func (g *Graph) Fill(shape Shape, v float64) (*Node, error) {
	if !shape.Known() {
		return nil, shapeErrorf("Fill", "shape %s must be fully known", shape)
	}
	return g.Apply(fillOp{shape: shape, value: v}, "")
}

type distribution int

const (
	normal distribution = iota
	uniform
)

// randomOp draws from a generator seeded identically on every evaluation, so repeated
// initialization reproduces the same values.
type randomOp struct {
	shape Shape
	dist  distribution
	scale float64
	seed  uint64
}

func (op randomOp) Type() string {
	if op.dist == normal {
		return "RandomNormal"
	}
	return "RandomUniform"
}

func (op randomOp) Infer([]*Node) (Shape, DType, error) {
	return op.shape, Float64, nil
}

func (op randomOp) Compute(*RunContext, *Node, []*tensor.Matrix) (*tensor.Matrix, error) {
	rng := rand.New(rand.NewPCG(op.seed, op.seed^0x9e3779b97f4a7c15))
	m := tensor.NewMatrix(op.shape.Rows, op.shape.Cols)
	data := m.Data()
	for i := range data {
		if op.dist == normal {
			data[i] = rng.NormFloat64() * op.scale
		} else {
			data[i] = (rng.Float64()*2 - 1) * op.scale
		}
	}
	return m, nil
}

func (op randomOp) Attrs() map[string]any {
	return map[string]any{"scale": op.scale, "seed": float64(op.seed)}
}

// RandomNormal declares normally distributed values with the given standard deviation.
func (g *Graph) RandomNormal(shape Shape, stddev float64, seed uint64) (*Node, error) {
	if !shape.Known() {
		return nil, shapeErrorf("RandomNormal", "shape %s must be fully known", shape)
	}
	return g.Apply(randomOp{shape: shape, dist: normal, scale: stddev, seed: seed}, "")
}

// RandomUniform declares values drawn uniformly from [-limit, limit).
func (g *Graph) RandomUniform(shape Shape, limit float64, seed uint64) (*Node, error) {
	if !shape.Known() {
		return nil, shapeErrorf("RandomUniform", "shape %s must be fully known", shape)
	}
	return g.Apply(randomOp{shape: shape, dist: uniform, scale: limit, seed: seed}, "")
}

// -------- STATE -------- //

type assignOp struct {
	variable *Node
}

func (assignOp) Type() string { return "Assign" }

func (op assignOp) Infer(inputs []*Node) (Shape, DType, error) {
	value := inputs[0]
	if value.dtype != Float64 {
		return Shape{}, Void, &TypeError{Op: "Assign", Want: Float64, Got: value.dtype}
	}
	if !value.shape.Known() || value.shape != op.variable.shape {
		return Shape{}, Void, shapeErrorf("Assign", "variable %s is %s, value %s is %s",
			op.variable.name, op.variable.shape, value.name, value.shape)
	}
	return Shape{}, Void, nil
}

func (op assignOp) Compute(rc *RunContext, _ *Node, inputs []*tensor.Matrix) (*tensor.Matrix, error) {
	rc.Assign(op.variable, inputs[0].Clone())
	return nil, nil
}

func (op assignOp) Attrs() map[string]any {
	return map[string]any{"variable": op.variable.name}
}

// Assign declares a target that sets variable v to value when run.
func (g *Graph) Assign(v, value *Node) (*Node, error) {
	if v == nil || !IsVariable(v) {
		return nil, errors.New("assign target is not a variable")
	}
	if v.graph != g {
		return nil, errors.Errorf("variable %s belongs to another graph", v.name)
	}
	return g.Apply(assignOp{variable: v}, v.name+"/assign", value)
}
