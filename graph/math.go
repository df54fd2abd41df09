package graph

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/b0tShaman/neurograph/tensor"
)

func requireFloat(op string, inputs ...*Node) error {
	for _, in := range inputs {
		if in.dtype != Float64 {
			return &TypeError{Op: op, Want: Float64, Got: in.dtype}
		}
	}
	return nil
}

// -------- MATMUL -------- //

type matMulOp struct{}

func (matMulOp) Type() string { return "MatMul" }

func (matMulOp) Infer(inputs []*Node) (Shape, DType, error) {
	a, b := inputs[0], inputs[1]
	if err := requireFloat("MatMul", a, b); err != nil {
		return Shape{}, Void, err
	}
	if !dimCompatible(a.shape.Cols, b.shape.Rows) {
		return Shape{}, Void, shapeErrorf("MatMul", "%s x %s", a.shape, b.shape)
	}
	return Shape{Rows: a.shape.Rows, Cols: b.shape.Cols}, Float64, nil
}

func (matMulOp) Compute(_ *RunContext, n *Node, in []*tensor.Matrix) (*tensor.Matrix, error) {
	a, b := in[0], in[1]
	if a.Cols() != b.Rows() {
		return nil, shapeErrorf(n.name, "%dx%d x %dx%d", a.Rows(), a.Cols(), b.Rows(), b.Cols())
	}
	return tensor.Product(a, b, false, false), nil
}

func (matMulOp) Gradient(_ *Node, in []*tensor.Matrix, _, dOut *tensor.Matrix) ([]*tensor.Matrix, error) {
	a, b := in[0], in[1]
	return []*tensor.Matrix{
		tensor.Product(dOut, b, false, true),
		tensor.Product(a, dOut, true, false),
	}, nil
}

// MatMul declares the matrix product a * b.
func (g *Graph) MatMul(a, b *Node) (*Node, error) {
	return g.Apply(matMulOp{}, "", a, b)
}

// -------- BIAS -------- //

type addBiasOp struct{}

func (addBiasOp) Type() string { return "BiasAdd" }

func (addBiasOp) Infer(inputs []*Node) (Shape, DType, error) {
	x, b := inputs[0], inputs[1]
	if err := requireFloat("BiasAdd", x, b); err != nil {
		return Shape{}, Void, err
	}
	if b.shape.Rows != 1 || !dimCompatible(x.shape.Cols, b.shape.Cols) {
		return Shape{}, Void, shapeErrorf("BiasAdd", "value %s, bias %s", x.shape, b.shape)
	}
	return x.shape.Merge(Shape{Rows: Unknown, Cols: b.shape.Cols}), Float64, nil
}

func (addBiasOp) Compute(_ *RunContext, n *Node, in []*tensor.Matrix) (*tensor.Matrix, error) {
	x, b := in[0], in[1]
	if b.Rows() != 1 || b.Cols() != x.Cols() {
		return nil, shapeErrorf(n.name, "value %dx%d, bias %dx%d", x.Rows(), x.Cols(), b.Rows(), b.Cols())
	}
	out := x.Clone()
	out.AddVector(b)
	return out, nil
}

func (addBiasOp) Gradient(_ *Node, _ []*tensor.Matrix, _, dOut *tensor.Matrix) ([]*tensor.Matrix, error) {
	return []*tensor.Matrix{dOut.Clone(), dOut.ColumnSums()}, nil
}

// BiasAdd declares x + b with the 1 x cols row b broadcast over every row of x.
func (g *Graph) BiasAdd(x, b *Node) (*Node, error) {
	return g.Apply(addBiasOp{}, "", x, b)
}

// -------- ACTIVATIONS -------- //

type ActivationType int

const (
	ActLinear ActivationType = iota
	ActRelu
	ActSigmoid
	ActTanh
	ActSoftmax
)

var activationMap = map[string]ActivationType{
	"linear":  ActLinear,
	"relu":    ActRelu,
	"sigmoid": ActSigmoid,
	"tanh":    ActTanh,
	"softmax": ActSoftmax,
}

var activationNames = map[ActivationType]string{
	ActLinear:  "Identity",
	ActRelu:    "Relu",
	ActSigmoid: "Sigmoid",
	ActTanh:    "Tanh",
	ActSoftmax: "Softmax",
}

// ParseActivation maps names such as "relu" or "softmax" to an ActivationType.
func ParseActivation(name string) (ActivationType, error) {
	act, ok := activationMap[name]
	if !ok {
		return ActLinear, errors.Errorf("unknown activation %q", name)
	}
	return act, nil
}

func (a ActivationType) String() string {
	if name, ok := activationNames[a]; ok {
		return name
	}
	return "Activation"
}

type activationOp struct {
	act ActivationType
}

func (op activationOp) Type() string { return op.act.String() }

func (op activationOp) Infer(inputs []*Node) (Shape, DType, error) {
	if err := requireFloat(op.Type(), inputs[0]); err != nil {
		return Shape{}, Void, err
	}
	return inputs[0].shape, Float64, nil
}

func (op activationOp) Compute(_ *RunContext, _ *Node, in []*tensor.Matrix) (*tensor.Matrix, error) {
	out := in[0].Clone()
	switch op.act {
	case ActLinear:
	case ActRelu:
		out.ApplyFunc(Relu)
	case ActSigmoid:
		out.ApplyFunc(Sigmoid)
	case ActTanh:
		out.ApplyFunc(math.Tanh)
	case ActSoftmax:
		SoftmaxRow(out)
	}
	return out, nil
}

func (op activationOp) Gradient(_ *Node, in []*tensor.Matrix, out, dOut *tensor.Matrix) ([]*tensor.Matrix, error) {
	dx := dOut.Clone()
	x, y := in[0].Data(), out.Data()
	d := dx.Data()
	switch op.act {
	case ActLinear:
	case ActRelu:
		for i := range d {
			d[i] *= ReluDerivative(x[i])
		}
	case ActSigmoid:
		for i := range d {
			d[i] *= y[i] * (1 - y[i])
		}
	case ActTanh:
		for i := range d {
			d[i] *= 1 - y[i]*y[i]
		}
	case ActSoftmax:
		// dx = y * (dOut - <dOut, y>) row by row
		for r := 0; r < out.Rows(); r++ {
			yr, dr := out.Row(r), dx.Row(r)
			dot := floats.Dot(dr, yr)
			for j := range dr {
				dr[j] = yr[j] * (dr[j] - dot)
			}
		}
	}
	return []*tensor.Matrix{dx}, nil
}

// Activation declares an element-wise (or, for softmax, row-wise) activation of x.
func (g *Graph) Activation(act ActivationType, x *Node) (*Node, error) {
	return g.Apply(activationOp{act: act}, "", x)
}

func Relu(x float64) float64 {
	if x > 0 {
		return x
	}
	return 0
}

func ReluDerivative(x float64) float64 {
	if x > 0 {
		return 1
	}
	return 0
}

func Sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// SoftmaxRow applies softmax to each row of the matrix.
func SoftmaxRow(m *tensor.Matrix) {
	for i := 0; i < m.Rows(); i++ {
		row := m.Row(i)
		maxVal := floats.Max(row)
		sum := 0.0
		for j, v := range row {
			row[j] = math.Exp(v - maxVal)
			sum += row[j]
		}
		floats.Scale(1/sum, row)
	}
}
