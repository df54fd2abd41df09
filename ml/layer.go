package ml

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/b0tShaman/neurograph/graph"
)

// -------- TYPE DEFINITIONS -------- //

// Layer is one building block of a Sequential model. Build extends g with the layer's
// computation over input and must be called at most once per layer.
type Layer interface {
	Name() string
	Build(g *graph.Graph, input *graph.Node) (*graph.Node, error)
	Params() *Weights
}

type LayerOption func(*LayerConfig)

// LayerConfig holds the blueprint for a layer
type LayerConfig struct {
	Name       string
	Neurons    int
	InputDim   int // Declared input width, 0 = take it from the previous layer
	BatchSize  int // Input layers only, 0 = any batch size
	Activation string
	UseBias    bool
	KernelInit Initializer
	BiasInit   Initializer
}

// Weights holds a layer's trainable variables and the initializer target of each,
// in creation order. Names are unique within a layer.
type Weights struct {
	names []string
	vars  map[string]*graph.Node
	inits map[string]*graph.Node
}

// Add declares variable scope/name with the given shape and an Assign target that
// sets it from init.
func (w *Weights) Add(g *graph.Graph, scope, name string, shape graph.Shape, init Initializer) (*graph.Node, error) {
	if w.vars == nil {
		w.vars = make(map[string]*graph.Node)
		w.inits = make(map[string]*graph.Node)
	}
	if _, dup := w.vars[name]; dup {
		return nil, errors.Errorf("duplicate parameter %q", name)
	}
	if init == nil {
		init = Zeros{}
	}

	v, err := g.Variable(scope+"/"+name, shape)
	if err != nil {
		return nil, err
	}
	value, err := init.Initialize(g, shape, uint64(v.ID())+1)
	if err != nil {
		return nil, errors.Wrapf(err, "initializer for %s", v.Name())
	}
	assign, err := g.Assign(v, value)
	if err != nil {
		return nil, err
	}

	w.names = append(w.names, name)
	w.vars[name] = v
	w.inits[name] = assign
	return v, nil
}

func (w *Weights) Len() int {
	if w == nil {
		return 0
	}
	return len(w.names)
}

func (w *Weights) Names() []string {
	return append([]string(nil), w.names...)
}

func (w *Weights) Variable(name string) *graph.Node    { return w.vars[name] }
func (w *Weights) Initializer(name string) *graph.Node { return w.inits[name] }

// Trainable returns the variables in creation order. A nil Weights has none.
func (w *Weights) Trainable() []*graph.Node {
	if w == nil {
		return nil
	}
	out := make([]*graph.Node, len(w.names))
	for i, name := range w.names {
		out[i] = w.vars[name]
	}
	return out
}

// Initializers returns the initializer targets in creation order.
func (w *Weights) Initializers() []*graph.Node {
	if w == nil {
		return nil
	}
	out := make([]*graph.Node, len(w.names))
	for i, name := range w.names {
		out[i] = w.inits[name]
	}
	return out
}

// ------- LAYER CONFIG HELPERS ------- //

func Activation(activation string) LayerOption {
	return func(lc *LayerConfig) {
		lc.Activation = activation
	}
}

// InputShape declares the width a layer expects from its predecessor. A mismatch
// fails compilation.
func InputShape(dim int) LayerOption {
	return func(lc *LayerConfig) {
		lc.InputDim = dim
	}
}

// BatchSize fixes the batch dimension of an input layer.
func BatchSize(size int) LayerOption {
	return func(lc *LayerConfig) {
		lc.BatchSize = size
	}
}

func Name(name string) LayerOption {
	return func(lc *LayerConfig) {
		lc.Name = name
	}
}

func KernelInitializer(init Initializer) LayerOption {
	return func(lc *LayerConfig) {
		lc.KernelInit = init
	}
}

func BiasInitializer(init Initializer) LayerOption {
	return func(lc *LayerConfig) {
		lc.BiasInit = init
	}
}

func NoBias() LayerOption {
	return func(lc *LayerConfig) {
		lc.UseBias = false
	}
}

func layerName(cfg LayerConfig, resolved, fallback string) string {
	switch {
	case resolved != "":
		return resolved
	case cfg.Name != "":
		return cfg.Name
	}
	return fallback
}

// -------- INPUT -------- //

// InputLayer defines the model's input placeholder. It has no parameters.
type InputLayer struct {
	cfg         LayerConfig
	name        string
	weights     Weights
	placeholder *graph.Node
}

// Input defines the entry point dimensions
func Input(size int, opts ...LayerOption) *InputLayer {
	cfg := LayerConfig{
		Neurons:    size,
		Activation: "linear",
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &InputLayer{cfg: cfg}
}

func (l *InputLayer) Name() string        { return layerName(l.cfg, l.name, "input") }
func (l *InputLayer) Params() *Weights    { return &l.weights }
func (l *InputLayer) Config() LayerConfig { return l.cfg }

// Placeholder returns the input placeholder, or nil before Build.
func (l *InputLayer) Placeholder() *graph.Node { return l.placeholder }

// Build creates the input placeholder. input must be nil.
func (l *InputLayer) Build(g *graph.Graph, input *graph.Node) (*graph.Node, error) {
	if l.placeholder != nil {
		return nil, ErrAlreadyBuilt
	}
	if input != nil {
		return nil, errors.New("input layer does not take an input")
	}
	if l.cfg.Neurons <= 0 {
		return nil, errors.Errorf("input size must be > 0 (got %d)", l.cfg.Neurons)
	}
	rows := graph.Unknown
	if l.cfg.BatchSize > 0 {
		rows = l.cfg.BatchSize
	}

	l.name = g.UniqueName(layerName(l.cfg, "", "input"))
	ph, err := g.Placeholder(l.name+"/x", graph.Float64, graph.Shape{Rows: rows, Cols: l.cfg.Neurons})
	if err != nil {
		return nil, err
	}
	l.placeholder = ph
	return ph, nil
}

// -------- DENSE -------- //

// DenseLayer is a fully connected layer: activation(x * kernel + bias).
type DenseLayer struct {
	cfg     LayerConfig
	name    string
	weights Weights
	built   bool
}

// Dense defines a fully connected layer.
func Dense(size int, opts ...LayerOption) *DenseLayer {
	d := LayerConfig{
		Neurons:    size,
		Activation: "relu", // Default for hidden layers
		UseBias:    true,
		KernelInit: HeNormal{},
		BiasInit:   Zeros{},
	}

	for _, opt := range opts {
		opt(&d)
	}
	return &DenseLayer{cfg: d}
}

func (l *DenseLayer) Name() string        { return layerName(l.cfg, l.name, "dense") }
func (l *DenseLayer) Params() *Weights    { return &l.weights }
func (l *DenseLayer) Config() LayerConfig { return l.cfg }

func (l *DenseLayer) Build(g *graph.Graph, input *graph.Node) (*graph.Node, error) {
	if l.built {
		return nil, ErrAlreadyBuilt
	}
	if input == nil {
		return nil, errors.New("dense layer needs an input")
	}
	if l.cfg.Neurons <= 0 {
		return nil, errors.Errorf("units must be > 0 (got %d)", l.cfg.Neurons)
	}
	act, err := graph.ParseActivation(l.cfg.Activation)
	if err != nil {
		return nil, err
	}

	inDim := input.Shape().Cols
	if l.cfg.InputDim > 0 {
		if inDim != graph.Unknown && inDim != l.cfg.InputDim {
			return nil, &graph.ShapeError{
				Op:     layerName(l.cfg, "", "dense"),
				Detail: fmt.Sprintf("declared input width %d, previous layer produces %s", l.cfg.InputDim, input.Shape()),
			}
		}
		inDim = l.cfg.InputDim
	}
	if inDim == graph.Unknown {
		return nil, errors.Errorf("cannot infer input width from %s", input.Shape())
	}

	l.name = g.UniqueName(layerName(l.cfg, "", "dense"))
	kernel, err := l.weights.Add(g, l.name, "kernel", graph.Shape{Rows: inDim, Cols: l.cfg.Neurons}, l.cfg.KernelInit)
	if err != nil {
		return nil, err
	}
	out, err := g.MatMul(input, kernel)
	if err != nil {
		return nil, err
	}
	if l.cfg.UseBias {
		bias, err := l.weights.Add(g, l.name, "bias", graph.Shape{Rows: 1, Cols: l.cfg.Neurons}, l.cfg.BiasInit)
		if err != nil {
			return nil, err
		}
		if out, err = g.BiasAdd(out, bias); err != nil {
			return nil, err
		}
	}
	if act != graph.ActLinear {
		if out, err = g.Activation(act, out); err != nil {
			return nil, err
		}
	}

	l.built = true
	return out, nil
}
