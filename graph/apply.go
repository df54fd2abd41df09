package graph

import (
	"github.com/pkg/errors"

	"github.com/b0tShaman/neurograph/tensor"
)

// UpdateRule mutates param in place given its gradient. Per-variable optimizer state
// lives in slots, which persist for the lifetime of a session.
type UpdateRule interface {
	Update(slots *Slots, param, grad *tensor.Matrix)
}

// Slots is the optimizer state attached to one variable.
type Slots struct {
	rows, cols int
	mats       map[string]*tensor.Matrix
	counters   map[string]int
}

func newSlots(rows, cols int) *Slots {
	return &Slots{
		rows:     rows,
		cols:     cols,
		mats:     make(map[string]*tensor.Matrix),
		counters: make(map[string]int),
	}
}

// Get returns the named slot, creating a zero matrix shaped like the variable on first use.
func (s *Slots) Get(name string) *tensor.Matrix {
	m, ok := s.mats[name]
	if !ok {
		m = tensor.NewMatrix(s.rows, s.cols)
		s.mats[name] = m
	}
	return m
}

// Next increments the named counter and returns its new value.
func (s *Slots) Next(name string) int {
	s.counters[name]++
	return s.counters[name]
}

func (s *Slots) clone() *Slots {
	out := newSlots(s.rows, s.cols)
	for k, m := range s.mats {
		out.mats[k] = m.Clone()
	}
	for k, c := range s.counters {
		out.counters[k] = c
	}
	return out
}

type applyGradientsOp struct {
	params []*Node
	rule   UpdateRule
}

func (applyGradientsOp) Type() string { return "ApplyGradients" }

func (op applyGradientsOp) Infer(inputs []*Node) (Shape, DType, error) {
	loss := inputs[0]
	if loss.dtype != Float64 {
		return Shape{}, Void, &TypeError{Op: "ApplyGradients", Want: Float64, Got: loss.dtype}
	}
	if !loss.shape.IsScalar() {
		return Shape{}, Void, shapeErrorf("ApplyGradients", "loss %s is %s, want a scalar", loss.name, loss.shape)
	}
	for _, p := range op.params {
		if p == nil || !IsVariable(p) {
			return Shape{}, Void, errors.New("ApplyGradients: parameter is not a variable")
		}
		if p.graph != loss.graph {
			return Shape{}, Void, errors.Errorf("ApplyGradients: variable %s belongs to another graph", p.name)
		}
	}
	return Shape{}, Void, nil
}

func (op applyGradientsOp) Compute(rc *RunContext, n *Node, _ []*tensor.Matrix) (*tensor.Matrix, error) {
	if len(op.params) == 0 {
		return nil, nil
	}
	grads, err := rc.Gradients(n.inputs[0], op.params)
	if err != nil {
		return nil, err
	}
	for i, p := range op.params {
		cur, err := rc.Variable(p)
		if err != nil {
			return nil, err
		}
		next := cur.Clone()
		slots := rc.Slots(p)
		op.rule.Update(slots, next, grads[i])
		rc.Assign(p, next)
	}
	return nil, nil
}

func (op applyGradientsOp) Attrs() map[string]any {
	names := make([]any, len(op.params))
	for i, p := range op.params {
		names[i] = p.name
	}
	return map[string]any{"variables": names}
}

// ApplyGradients declares a target that, when run, differentiates loss with respect to
// params and updates each of them with rule. An empty params list yields a target that
// changes nothing.
func (g *Graph) ApplyGradients(name string, loss *Node, params []*Node, rule UpdateRule) (*Node, error) {
	if rule == nil {
		return nil, errors.New("ApplyGradients: nil update rule")
	}
	return g.Apply(applyGradientsOp{params: append([]*Node(nil), params...), rule: rule}, name, loss)
}
