package ml

import (
	"math"

	"github.com/pkg/errors"

	"github.com/b0tShaman/neurograph/graph"
)

// Initializer declares the value a variable of the given shape starts from. fallbackSeed
// is used by random initializers that were not given a seed of their own; it is stable
// for a given graph, so re-initializing reproduces the same values.
type Initializer interface {
	Initialize(g *graph.Graph, shape graph.Shape, fallbackSeed uint64) (*graph.Node, error)
}

type Zeros struct{}

func (Zeros) Initialize(g *graph.Graph, shape graph.Shape, _ uint64) (*graph.Node, error) {
	return g.Fill(shape, 0)
}

type Ones struct{}

func (Ones) Initialize(g *graph.Graph, shape graph.Shape, _ uint64) (*graph.Node, error) {
	return g.Fill(shape, 1)
}

type Constant struct {
	Value float64
}

func (c Constant) Initialize(g *graph.Graph, shape graph.Shape, _ uint64) (*graph.Node, error) {
	return g.Fill(shape, c.Value)
}

// HeNormal draws from N(0, 2/fan_in), suited to relu layers.
type HeNormal struct {
	Seed uint64
}

func (h HeNormal) Initialize(g *graph.Graph, shape graph.Shape, fallbackSeed uint64) (*graph.Node, error) {
	scale := math.Sqrt(2.0 / float64(shape.Rows))
	return g.RandomNormal(shape, scale, pickSeed(h.Seed, fallbackSeed))
}

// GlorotUniform draws from U(-limit, limit) with limit = sqrt(6 / (fan_in + fan_out)).
type GlorotUniform struct {
	Seed uint64
}

func (x GlorotUniform) Initialize(g *graph.Graph, shape graph.Shape, fallbackSeed uint64) (*graph.Node, error) {
	limit := math.Sqrt(6.0 / float64(shape.Rows+shape.Cols))
	return g.RandomUniform(shape, limit, pickSeed(x.Seed, fallbackSeed))
}

type RandomUniform struct {
	Limit float64
	Seed  uint64
}

func (r RandomUniform) Initialize(g *graph.Graph, shape graph.Shape, fallbackSeed uint64) (*graph.Node, error) {
	return g.RandomUniform(shape, r.Limit, pickSeed(r.Seed, fallbackSeed))
}

func pickSeed(seed, fallback uint64) uint64 {
	if seed != 0 {
		return seed
	}
	return fallback
}

var initializerMap = map[string]Initializer{
	"zeros":          Zeros{},
	"ones":           Ones{},
	"he_normal":      HeNormal{},
	"glorot_uniform": GlorotUniform{},
}

// ParseInitializer maps names such as "zeros" or "glorot_uniform" to an Initializer.
func ParseInitializer(name string) (Initializer, error) {
	init, ok := initializerMap[name]
	if !ok {
		return nil, errors.Errorf("unknown initializer %q", name)
	}
	return init, nil
}
