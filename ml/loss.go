package ml

import (
	"github.com/pkg/errors"

	"github.com/b0tShaman/neurograph/graph"
)

// Loss builds the scalar objective the optimizer minimises. LabelDType decides the
// element type of the label placeholder created at compile time.
type Loss interface {
	Build(g *graph.Graph, predictions, labels *graph.Node) (*graph.Node, error)
	LabelDType() graph.DType
}

// MeanSquaredError is mean((p - y)^2) over every element of the batch.
type MeanSquaredError struct{}

func (MeanSquaredError) Build(g *graph.Graph, predictions, labels *graph.Node) (*graph.Node, error) {
	return g.MeanSquaredError(predictions, labels)
}

func (MeanSquaredError) LabelDType() graph.DType { return graph.Float64 }

// CategoricalCrossEntropy expects probability rows (softmax output) and one-hot labels.
type CategoricalCrossEntropy struct{}

func (CategoricalCrossEntropy) Build(g *graph.Graph, predictions, labels *graph.Node) (*graph.Node, error) {
	return g.CategoricalCrossEntropy(predictions, labels)
}

func (CategoricalCrossEntropy) LabelDType() graph.DType { return graph.Float64 }

// SparseCategoricalCrossEntropy expects probability rows and one int64 class index per row.
type SparseCategoricalCrossEntropy struct{}

func (SparseCategoricalCrossEntropy) Build(g *graph.Graph, predictions, labels *graph.Node) (*graph.Node, error) {
	return g.SparseCategoricalCrossEntropy(predictions, labels)
}

func (SparseCategoricalCrossEntropy) LabelDType() graph.DType { return graph.Int64 }

var lossMap = map[string]Loss{
	"mse":                             MeanSquaredError{},
	"mean_squared_error":              MeanSquaredError{},
	"categorical_crossentropy":        CategoricalCrossEntropy{},
	"sparse_categorical_crossentropy": SparseCategoricalCrossEntropy{},
}

func ParseLoss(name string) (Loss, error) {
	l, ok := lossMap[name]
	if !ok {
		return nil, errors.Errorf("unknown loss %q", name)
	}
	return l, nil
}
