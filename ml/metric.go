package ml

import (
	"github.com/pkg/errors"

	"github.com/b0tShaman/neurograph/graph"
)

// Metric declares a scalar that is reported but never optimised.
type Metric interface {
	Name() string
	Apply(g *graph.Graph, predictions, labels *graph.Node) (*graph.Node, error)
}

// Accuracy is the fraction of rows whose predicted class matches the label.
type Accuracy struct{}

func (Accuracy) Name() string { return "accuracy" }

func (Accuracy) Apply(g *graph.Graph, predictions, labels *graph.Node) (*graph.Node, error) {
	return g.Accuracy(predictions, labels)
}

// MeanSquaredErrorMetric reports the mean squared error alongside another loss.
type MeanSquaredErrorMetric struct{}

func (MeanSquaredErrorMetric) Name() string { return "mse" }

func (MeanSquaredErrorMetric) Apply(g *graph.Graph, predictions, labels *graph.Node) (*graph.Node, error) {
	return g.MeanSquaredError(predictions, labels)
}

func ParseMetric(name string) (Metric, error) {
	switch name {
	case "accuracy", "acc":
		return Accuracy{}, nil
	case "mse":
		return MeanSquaredErrorMetric{}, nil
	}
	return nil, errors.Errorf("unknown metric %q", name)
}
