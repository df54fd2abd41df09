// Package graph is a small symbolic computation backend: nodes are declared on an explicit
// Graph value, shapes and element types are inferred at declaration time, and a Session
// evaluates fetches and side-effecting targets against fed data.
package graph

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"github.com/b0tShaman/neurograph/tensor"
)

// Op is the computation behind a Node.
type Op interface {
	// Type names the operation, e.g. "MatMul".
	Type() string
	// Infer validates the inputs and returns the shape and type of the output.
	Infer(inputs []*Node) (Shape, DType, error)
	// Compute produces the output value. Ops with a Void output return nil.
	Compute(rc *RunContext, n *Node, inputs []*tensor.Matrix) (*tensor.Matrix, error)
}

// Differentiable ops can propagate a gradient from their output to their inputs.
// Gradient returns one entry per input; nil entries stop propagation.
type Differentiable interface {
	Gradient(n *Node, inputs []*tensor.Matrix, output, dOut *tensor.Matrix) ([]*tensor.Matrix, error)
}

// Attributer exposes op parameters for graph descriptions.
type Attributer interface {
	Attrs() map[string]any
}

// Node is a typed value in a not-yet-executed computation.
type Node struct {
	id     int
	name   string
	op     Op
	inputs []*Node
	shape  Shape
	dtype  DType
	graph  *Graph
}

func (n *Node) ID() int       { return n.id }
func (n *Node) Name() string  { return n.name }
func (n *Node) Op() Op        { return n.op }
func (n *Node) Shape() Shape  { return n.shape }
func (n *Node) DType() DType  { return n.dtype }
func (n *Node) Graph() *Graph { return n.graph }

func (n *Node) Inputs() []*Node {
	out := make([]*Node, len(n.inputs))
	copy(out, n.inputs)
	return out
}

func (n *Node) String() string {
	return fmt.Sprintf("%s:%s%s", n.name, n.op.Type(), n.shape)
}

// Graph holds the nodes declared so far. Nodes only ever reference earlier nodes,
// so declaration order is a topological order.
type Graph struct {
	mu     sync.Mutex
	nodes  []*Node
	byName map[string]*Node
	counts map[string]int
	owner  *Session
}

func New() *Graph {
	return &Graph{
		byName: make(map[string]*Node),
		counts: make(map[string]int),
	}
}

// Apply declares a node computing op over inputs. An empty name defaults to the op type;
// names are made unique by suffixing a counter.
func (g *Graph) Apply(op Op, name string, inputs ...*Node) (*Node, error) {
	if op == nil {
		return nil, errors.New("nil op")
	}
	for i, in := range inputs {
		if in == nil {
			return nil, errors.Errorf("%s: input %d is nil", op.Type(), i)
		}
		if in.graph != g {
			return nil, errors.Errorf("%s: input %s belongs to another graph", op.Type(), in.name)
		}
	}

	shape, dtype, err := op.Infer(inputs)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if name == "" {
		name = op.Type()
	}
	n := &Node{
		id:     len(g.nodes),
		name:   g.uniqueNameLocked(name),
		op:     op,
		inputs: append([]*Node(nil), inputs...),
		shape:  shape,
		dtype:  dtype,
		graph:  g,
	}
	g.nodes = append(g.nodes, n)
	g.byName[n.name] = n
	return n, nil
}

// UniqueName returns prefix if unused, otherwise prefix_N for the next free N.
// The returned name is reserved.
func (g *Graph) UniqueName(prefix string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.uniqueNameLocked(prefix)
}

func (g *Graph) uniqueNameLocked(prefix string) string {
	name := prefix
	for {
		if _, taken := g.byName[name]; !taken {
			break
		}
		g.counts[prefix]++
		name = fmt.Sprintf("%s_%d", prefix, g.counts[prefix])
	}
	g.byName[name] = nil
	return name
}

// Lookup returns the node with the given name, or nil.
func (g *Graph) Lookup(name string) *Node {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.byName[name]
}

// Nodes returns every node in declaration order.
func (g *Graph) Nodes() []*Node {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

func (g *Graph) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.nodes)
}
