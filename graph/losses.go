package graph

import (
	"math"

	"github.com/pkg/errors"

	"github.com/b0tShaman/neurograph/tensor"
)

const probEpsilon = 1e-7

func checkSameShape(name string, p, y *tensor.Matrix) error {
	if !p.SameShape(y) {
		return shapeErrorf(name, "predictions %dx%d, labels %dx%d", p.Rows(), p.Cols(), y.Rows(), y.Cols())
	}
	return nil
}

func inferDenseLabels(op string, pred, labels *Node) error {
	if err := requireFloat(op, pred, labels); err != nil {
		return err
	}
	if !pred.shape.Compatible(labels.shape) {
		return shapeErrorf(op, "predictions %s, labels %s", pred.shape, labels.shape)
	}
	return nil
}

func inferSparseLabels(op string, pred, labels *Node) error {
	if err := requireFloat(op, pred); err != nil {
		return err
	}
	if labels.dtype != Int64 {
		return &TypeError{Op: op, Want: Int64, Got: labels.dtype}
	}
	if !dimCompatible(labels.shape.Cols, 1) || !dimCompatible(pred.shape.Rows, labels.shape.Rows) {
		return shapeErrorf(op, "predictions %s, class indices %s", pred.shape, labels.shape)
	}
	return nil
}

// -------- MEAN SQUARED ERROR -------- //

type meanSquaredErrorOp struct{}

func (meanSquaredErrorOp) Type() string { return "MeanSquaredError" }

func (meanSquaredErrorOp) Infer(inputs []*Node) (Shape, DType, error) {
	if err := inferDenseLabels("MeanSquaredError", inputs[0], inputs[1]); err != nil {
		return Shape{}, Void, err
	}
	return ScalarShape(), Float64, nil
}

func (meanSquaredErrorOp) Compute(_ *RunContext, n *Node, in []*tensor.Matrix) (*tensor.Matrix, error) {
	p, y := in[0], in[1]
	if err := checkSameShape(n.name, p, y); err != nil {
		return nil, err
	}
	diff := p.Clone()
	diff.Subtract(y)
	diff.MulElem(diff)
	return tensor.Scalar(diff.Mean()), nil
}

func (meanSquaredErrorOp) Gradient(_ *Node, in []*tensor.Matrix, _, dOut *tensor.Matrix) ([]*tensor.Matrix, error) {
	p, y := in[0], in[1]
	dp := p.Clone()
	dp.Subtract(y)
	dp.Scale(2 * dOut.Value() / float64(len(dp.Data())))
	return []*tensor.Matrix{dp, nil}, nil
}

// MeanSquaredError declares mean((predictions - labels)^2) over every element.
func (g *Graph) MeanSquaredError(predictions, labels *Node) (*Node, error) {
	return g.Apply(meanSquaredErrorOp{}, "", predictions, labels)
}

// -------- CROSS ENTROPY -------- //

type crossEntropyOp struct {
	sparse bool
}

func (op crossEntropyOp) Type() string {
	if op.sparse {
		return "SparseCategoricalCrossEntropy"
	}
	return "CategoricalCrossEntropy"
}

func (op crossEntropyOp) Infer(inputs []*Node) (Shape, DType, error) {
	var err error
	if op.sparse {
		err = inferSparseLabels(op.Type(), inputs[0], inputs[1])
	} else {
		err = inferDenseLabels(op.Type(), inputs[0], inputs[1])
	}
	if err != nil {
		return Shape{}, Void, err
	}
	return ScalarShape(), Float64, nil
}

func (op crossEntropyOp) Compute(_ *RunContext, n *Node, in []*tensor.Matrix) (*tensor.Matrix, error) {
	p, y := in[0], in[1]
	rows := p.Rows()
	total := 0.0
	if op.sparse {
		if err := checkClassIndices(n.name, p, y); err != nil {
			return nil, err
		}
		for i := 0; i < rows; i++ {
			total -= math.Log(math.Max(p.At(i, int(y.At(i, 0))), probEpsilon))
		}
	} else {
		if err := checkSameShape(n.name, p, y); err != nil {
			return nil, err
		}
		pd, yd := p.Data(), y.Data()
		for i := range pd {
			if yd[i] != 0 {
				total -= yd[i] * math.Log(math.Max(pd[i], probEpsilon))
			}
		}
	}
	return tensor.Scalar(total / float64(rows)), nil
}

func (op crossEntropyOp) Gradient(_ *Node, in []*tensor.Matrix, _, dOut *tensor.Matrix) ([]*tensor.Matrix, error) {
	p, y := in[0], in[1]
	scale := dOut.Value() / float64(p.Rows())
	dp := tensor.NewMatrix(p.Rows(), p.Cols())
	if op.sparse {
		for i := 0; i < p.Rows(); i++ {
			c := int(y.At(i, 0))
			dp.Set(i, c, -scale/math.Max(p.At(i, c), probEpsilon))
		}
	} else {
		pd, yd, d := p.Data(), y.Data(), dp.Data()
		for i := range d {
			d[i] = -scale * yd[i] / math.Max(pd[i], probEpsilon)
		}
	}
	return []*tensor.Matrix{dp, nil}, nil
}

// CategoricalCrossEntropy declares the mean cross entropy between probability rows and one-hot labels.
func (g *Graph) CategoricalCrossEntropy(predictions, labels *Node) (*Node, error) {
	return g.Apply(crossEntropyOp{}, "", predictions, labels)
}

// SparseCategoricalCrossEntropy is CategoricalCrossEntropy with int64 class indices of shape [?, 1].
func (g *Graph) SparseCategoricalCrossEntropy(predictions, labels *Node) (*Node, error) {
	return g.Apply(crossEntropyOp{sparse: true}, "", predictions, labels)
}

func checkClassIndices(name string, p, y *tensor.Matrix) error {
	if y.Cols() != 1 || y.Rows() != p.Rows() {
		return shapeErrorf(name, "predictions %dx%d, class indices %dx%d", p.Rows(), p.Cols(), y.Rows(), y.Cols())
	}
	for i := 0; i < y.Rows(); i++ {
		if c := int(y.At(i, 0)); c < 0 || c >= p.Cols() {
			return errors.Errorf("%s: class index %d out of range [0, %d)", name, c, p.Cols())
		}
	}
	return nil
}

// -------- ACCURACY -------- //

// accuracyOp compares predicted classes against labels. Labels may be one-hot rows,
// int64 class indices, or, for single-column predictions, 0/1 targets thresholded at 0.5.
type accuracyOp struct{}

func (accuracyOp) Type() string { return "Accuracy" }

func (accuracyOp) Infer(inputs []*Node) (Shape, DType, error) {
	pred, labels := inputs[0], inputs[1]
	var err error
	if labels.dtype == Int64 {
		err = inferSparseLabels("Accuracy", pred, labels)
	} else {
		err = inferDenseLabels("Accuracy", pred, labels)
	}
	if err != nil {
		return Shape{}, Void, err
	}
	return ScalarShape(), Float64, nil
}

func (accuracyOp) Compute(_ *RunContext, n *Node, in []*tensor.Matrix) (*tensor.Matrix, error) {
	p, y := in[0], in[1]
	sparse := n.inputs[1].dtype == Int64
	if sparse {
		if err := checkClassIndices(n.name, p, y); err != nil {
			return nil, err
		}
	} else if err := checkSameShape(n.name, p, y); err != nil {
		return nil, err
	}

	correct := 0
	for i := 0; i < p.Rows(); i++ {
		var hit bool
		switch {
		case sparse:
			hit = p.ArgMaxRow(i) == int(y.At(i, 0))
		case p.Cols() == 1:
			hit = (p.At(i, 0) >= 0.5) == (y.At(i, 0) >= 0.5)
		default:
			hit = p.ArgMaxRow(i) == y.ArgMaxRow(i)
		}
		if hit {
			correct++
		}
	}
	return tensor.Scalar(float64(correct) / float64(p.Rows())), nil
}

// Accuracy declares the fraction of rows whose predicted class matches the label.
func (g *Graph) Accuracy(predictions, labels *Node) (*Node, error) {
	return g.Apply(accuracyOp{}, "", predictions, labels)
}
