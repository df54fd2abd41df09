package ml

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/b0tShaman/neurograph/graph"
)

// State is the lifecycle position of a Sequential model.
type State int

const (
	Uncompiled State = iota
	Compiled
	Initialized
	TrainingEpoch
	EvaluatingEpoch
	Completed
	Failed
)

var stateNames = [...]string{"uncompiled", "compiled", "initialized", "training", "evaluating", "completed", "failed"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// CompileOptions selects the objective, the update rule and the reported metrics.
type CompileOptions struct {
	Optimizer Optimizer
	Loss      Loss
	Metrics   []Metric
}

// Sequential is a linear stack of layers. The first layer receives no input and must
// declare the placeholder that batches are fed into.
type Sequential struct {
	layers []Layer
	state  State

	g           *graph.Graph
	input       *graph.Node
	labels      *graph.Node
	outputs     []*graph.Node
	loss        *graph.Node
	metrics     []*graph.Node
	metricNames []string
	targets     []*graph.Node
	optimizer   Optimizer
}

// NewSequential creates a model whose first layer is first. first may be nil, in which
// case Compile fails until a model is rebuilt with one.
func NewSequential(first Layer, layers ...Layer) *Sequential {
	m := &Sequential{}
	if first != nil {
		m.layers = append(m.layers, first)
		m.layers = append(m.layers, layers...)
	}
	return m
}

// Add appends layers before compilation.
func (m *Sequential) Add(layers ...Layer) error {
	if m.state != Uncompiled {
		return errors.WithStack(ErrAlreadyCompiled)
	}
	m.layers = append(m.layers, layers...)
	return nil
}

func (m *Sequential) State() State                 { return m.state }
func (m *Sequential) Graph() *graph.Graph          { return m.g }
func (m *Sequential) Input() *graph.Node           { return m.input }
func (m *Sequential) Labels() *graph.Node          { return m.labels }
func (m *Sequential) Loss() *graph.Node            { return m.loss }
func (m *Sequential) Optimizer() Optimizer         { return m.optimizer }
func (m *Sequential) MetricNames() []string        { return append([]string(nil), m.metricNames...) }
func (m *Sequential) Metrics() []*graph.Node       { return append([]*graph.Node(nil), m.metrics...) }
func (m *Sequential) UpdateTargets() []*graph.Node { return append([]*graph.Node(nil), m.targets...) }

func (m *Sequential) Layers() []Layer {
	return append([]Layer(nil), m.layers...)
}

// Output returns the final layer's symbolic output, or nil before compilation.
func (m *Sequential) Output() *graph.Node {
	if len(m.outputs) == 0 {
		return nil
	}
	return m.outputs[len(m.outputs)-1]
}

// compilation collects everything Compile produces so a failure leaves the model untouched.
type compilation struct {
	input       *graph.Node
	labels      *graph.Node
	outputs     []*graph.Node
	loss        *graph.Node
	metrics     []*graph.Node
	metricNames []string
	targets     []*graph.Node
}

// Compile extends g with the layer stack, the loss, one optimizer update target per layer
// after the first, and every metric. On failure the model moves to Failed and keeps none
// of the partially built nodes.
func (m *Sequential) Compile(g *graph.Graph, opts CompileOptions) error {
	switch m.state {
	case Uncompiled:
	case Failed:
		return &CompileError{Err: ErrCompileFailed}
	default:
		return &CompileError{Err: ErrAlreadyCompiled}
	}

	c, err := m.compile(g, opts)
	if err != nil {
		m.state = Failed
		return err
	}

	m.g = g
	m.input = c.input
	m.labels = c.labels
	m.outputs = c.outputs
	m.loss = c.loss
	m.metrics = c.metrics
	m.metricNames = c.metricNames
	m.targets = c.targets
	m.optimizer = opts.Optimizer
	m.state = Compiled
	return nil
}

func (m *Sequential) compile(g *graph.Graph, opts CompileOptions) (*compilation, error) {
	switch {
	case g == nil:
		return nil, &CompileError{Err: errors.New("nil graph")}
	case len(m.layers) == 0 || m.layers[0] == nil:
		return nil, &CompileError{Err: ErrMissingInput}
	case opts.Loss == nil:
		return nil, &CompileError{Err: errors.New("no loss")}
	case opts.Optimizer == nil:
		return nil, &CompileError{Err: errors.New("no optimizer")}
	}

	c := &compilation{}

	// 1. Input placeholder
	first := m.layers[0]
	x, err := first.Build(g, nil)
	if err != nil {
		return nil, &CompileError{Layer: first.Name(), Err: err}
	}
	if x == nil || !graph.IsPlaceholder(x) {
		return nil, &CompileError{Layer: first.Name(), Err: errors.New("first layer must declare an input placeholder")}
	}
	c.input = x
	c.outputs = append(c.outputs, x)

	// 2. Labels
	c.labels, err = g.Placeholder("labels", opts.Loss.LabelDType(), graph.Shape{Rows: graph.Unknown, Cols: graph.Unknown})
	if err != nil {
		return nil, &CompileError{Err: errors.Wrap(err, "label placeholder")}
	}

	// 3. Thread each layer through the previous output
	out := x
	for i, layer := range m.layers[1:] {
		if layer == nil {
			return nil, &CompileError{Err: errors.Errorf("layer %d is nil", i+1)}
		}
		if out, err = layer.Build(g, out); err != nil {
			return nil, &CompileError{Layer: layer.Name(), Err: err}
		}
		if out == nil {
			return nil, &CompileError{Layer: layer.Name(), Err: errors.New("build returned no output")}
		}
		c.outputs = append(c.outputs, out)
	}

	// 4. Loss
	if c.loss, err = opts.Loss.Build(g, out, c.labels); err != nil {
		return nil, &CompileError{Err: errors.Wrap(err, "loss")}
	}
	if err := requireScalar(c.loss); err != nil {
		return nil, &CompileError{Err: errors.Wrap(err, "loss")}
	}

	// 5. One update target per layer
	for _, layer := range m.layers[1:] {
		target, err := opts.Optimizer.Build(g, layer.Params().Trainable(), c.loss)
		if err != nil {
			return nil, &CompileError{Layer: layer.Name(), Err: errors.Wrap(err, "optimizer")}
		}
		c.targets = append(c.targets, target)
	}

	// 6. Metrics, all kept in order
	for _, metric := range opts.Metrics {
		if metric == nil {
			return nil, &CompileError{Err: errors.New("nil metric")}
		}
		node, err := metric.Apply(g, out, c.labels)
		if err != nil {
			return nil, &CompileError{Err: errors.Wrapf(err, "metric %s", metric.Name())}
		}
		if err := requireScalar(node); err != nil {
			return nil, &CompileError{Err: errors.Wrapf(err, "metric %s", metric.Name())}
		}
		c.metrics = append(c.metrics, node)
		c.metricNames = append(c.metricNames, metric.Name())
	}
	return c, nil
}

func requireScalar(n *graph.Node) error {
	if n == nil {
		return errors.New("no node returned")
	}
	if n.DType() != graph.Float64 || !n.Shape().IsScalar() {
		return &graph.ShapeError{Op: n.Name(), Detail: fmt.Sprintf("want a float64 scalar, got %s %s", n.DType(), n.Shape())}
	}
	return nil
}

// initTargets lists every parameter initializer across all layers.
func (m *Sequential) initTargets() []*graph.Node {
	var out []*graph.Node
	for _, layer := range m.layers {
		out = append(out, layer.Params().Initializers()...)
	}
	return out
}

// CountParams returns the number of trainable scalars in the model.
func (m *Sequential) CountParams() int {
	total := 0
	for _, layer := range m.layers {
		for _, v := range layer.Params().Trainable() {
			s := v.Shape()
			total += s.Rows * s.Cols
		}
	}
	return total
}

// Summary returns a human-readable model summary
func (m *Sequential) Summary() string {
	if m.state == Uncompiled || m.state == Failed {
		return "Model not compiled"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Model Summary:\n")
	fmt.Fprintf(&sb, "Input Shape: %s\n", m.input.Shape())
	fmt.Fprintf(&sb, "Output Shape: %s\n", m.Output().Shape())
	fmt.Fprintf(&sb, "Total Parameters: %d\n", m.CountParams())
	fmt.Fprintf(&sb, "Layers: %d\n\n", len(m.layers))

	for i, layer := range m.layers {
		params := 0
		for _, v := range layer.Params().Trainable() {
			params += v.Shape().Rows * v.Shape().Cols
		}
		fmt.Fprintf(&sb, "Layer %d: %s\n", i+1, layer.Name())
		fmt.Fprintf(&sb, "  Output: %s\n", m.outputs[i].Shape())
		fmt.Fprintf(&sb, "  Params: %d\n", params)
	}
	fmt.Fprintf(&sb, "\nLoss: %s\n", m.loss.Op().Type())
	if len(m.metricNames) > 0 {
		fmt.Fprintf(&sb, "Metrics: %s\n", strings.Join(m.metricNames, ", "))
	}
	return sb.String()
}
