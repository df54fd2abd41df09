package graph

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/b0tShaman/neurograph/tensor"
)

// Gradients returns d(loss)/d(w) for every w, evaluated at this run's values.
// The backward pass for a given loss is computed once per run and shared by every caller.
// A w that does not influence loss gets a zero gradient.
func (rc *RunContext) Gradients(loss *Node, wrt []*Node) ([]*tensor.Matrix, error) {
	table, ok := rc.grads[loss]
	if !ok {
		var err error
		table, err = rc.backward(loss)
		if err != nil {
			return nil, err
		}
		rc.grads[loss] = table
	}

	out := make([]*tensor.Matrix, len(wrt))
	for i, w := range wrt {
		if g, ok := table[w]; ok {
			out[i] = g
			continue
		}
		v, err := rc.Value(w)
		if err != nil {
			return nil, err
		}
		out[i] = tensor.NewMatrix(v.Rows(), v.Cols())
	}
	return out, nil
}

func (rc *RunContext) backward(loss *Node) (map[*Node]*tensor.Matrix, error) {
	if loss.dtype != Float64 {
		return nil, &TypeError{Op: "Gradients", Want: Float64, Got: loss.dtype}
	}
	lv, err := rc.Value(loss)
	if err != nil {
		return nil, err
	}

	// Node ids grow with declaration order, so descending id is a reverse topological order.
	reach := map[*Node]bool{}
	stack := []*Node{loss}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if reach[n] {
			continue
		}
		reach[n] = true
		stack = append(stack, n.inputs...)
	}
	order := make([]*Node, 0, len(reach))
	for n := range reach {
		order = append(order, n)
	}
	sort.Slice(order, func(i, j int) bool { return order[i].id > order[j].id })

	table := map[*Node]*tensor.Matrix{
		loss: tensor.Filled(lv.Rows(), lv.Cols(), 1),
	}
	for _, n := range order {
		dOut, ok := table[n]
		if !ok {
			continue
		}
		d, ok := n.op.(Differentiable)
		if !ok {
			continue
		}
		inputs := make([]*tensor.Matrix, len(n.inputs))
		for i, in := range n.inputs {
			inputs[i] = rc.values[in]
		}
		dIns, err := d.Gradient(n, inputs, rc.values[n], dOut)
		if err != nil {
			return nil, errors.Wrapf(err, "gradient of %s", n.name)
		}
		for i, g := range dIns {
			if g == nil {
				continue
			}
			in := n.inputs[i]
			if prev, ok := table[in]; ok {
				sum := prev.Clone()
				sum.Add(g)
				table[in] = sum
			} else {
				table[in] = g
			}
		}
	}
	return table, nil
}
