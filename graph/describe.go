package graph

import (
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Describe returns a protobuf description of every node: name, op type, dtype, shape,
// input names and op attributes. Unknown dimensions are encoded as -1.
func (g *Graph) Describe() (*structpb.Struct, error) {
	nodes := g.Nodes()
	list := make([]any, 0, len(nodes))
	for _, n := range nodes {
		inputs := make([]any, len(n.inputs))
		for i, in := range n.inputs {
			inputs[i] = in.name
		}
		entry := map[string]any{
			"name":   n.name,
			"op":     n.op.Type(),
			"dtype":  n.dtype.String(),
			"shape":  []any{n.shape.Rows, n.shape.Cols},
			"inputs": inputs,
		}
		if a, ok := n.op.(Attributer); ok {
			entry["attrs"] = a.Attrs()
		}
		list = append(list, entry)
	}

	s, err := structpb.NewStruct(map[string]any{"nodes": list})
	if err != nil {
		return nil, errors.Wrap(err, "describe graph")
	}
	return s, nil
}

// MarshalJSON renders Describe as JSON.
func (g *Graph) MarshalJSON() ([]byte, error) {
	s, err := g.Describe()
	if err != nil {
		return nil, err
	}
	return protojson.Marshal(s)
}
