package ml

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/b0tShaman/neurograph/graph"
	"github.com/b0tShaman/neurograph/tensor"
)

const (
	OptSGD      OptimizerType = "sgd"
	OptMomentum OptimizerType = "momentum"
	OptAdam     OptimizerType = "adam"
)

// Default settings generally recommended for Adam
var DefaultAdamConfig = AdamConfig{
	Beta1:        0.9,
	Beta2:        0.999,
	Epsilon:      1e-8,
	LearningRate: 0.001,
}

type OptimizerType string
type AdamConfig struct {
	Beta1        float64
	Beta2        float64
	Epsilon      float64
	LearningRate float64
}

// Optimizer turns a layer's trainable parameters and the scalar loss into one update
// target. Running the target applies a single optimisation step to those parameters.
type Optimizer interface {
	Build(g *graph.Graph, params []*graph.Node, loss *graph.Node) (*graph.Node, error)
}

type SGDOptimizer struct {
	LearningRate float64
}

type MomentumOptimizer struct {
	LearningRate float64
	Mu           float64 // Momentum Factor (usually 0.9)
}

// AdamOptimizer keeps its moment estimates and time step in per-variable session slots,
// so a new session starts from t = 0.
type AdamOptimizer struct {
	cfg AdamConfig
}

func NewOptimizer(cfg TrainingConfig) Optimizer {
	switch cfg.Optimizer {
	case OptAdam:
		// Set defaults if 0
		beta1 := cfg.AdamBeta1
		if beta1 == 0 {
			beta1 = 0.9
		}
		beta2 := cfg.AdamBeta2
		if beta2 == 0 {
			beta2 = 0.999
		}
		eps := cfg.AdamEps
		if eps == 0 {
			eps = 1e-8
		}

		adamCfg := AdamConfig{
			Beta1:        beta1,
			Beta2:        beta2,
			Epsilon:      eps,
			LearningRate: cfg.LearningRate,
		}
		return NewAdamOptimizer(adamCfg)

	case OptMomentum:
		return NewMomentumOptimizer(cfg.LearningRate, cfg.MomentumMu)

	default:
		return &SGDOptimizer{LearningRate: cfg.LearningRate}
	}
}

func NewAdamOptimizer(cfg AdamConfig) *AdamOptimizer {
	return &AdamOptimizer{cfg: cfg}
}

func NewMomentumOptimizer(lr, mu float64) *MomentumOptimizer {
	if mu == 0 {
		mu = 0.9
	} // Default
	return &MomentumOptimizer{LearningRate: lr, Mu: mu}
}

// ------ ADAM OPTIMIZER METHODS ------ //

func (opt *AdamOptimizer) Config() AdamConfig { return opt.cfg }

func (opt *AdamOptimizer) Build(g *graph.Graph, params []*graph.Node, loss *graph.Node) (*graph.Node, error) {
	return g.ApplyGradients("adam", loss, params, opt)
}

// Update applies the Adam update rule to one parameter
func (opt *AdamOptimizer) Update(slots *graph.Slots, param, grad *tensor.Matrix) {
	// 1. Increment Time Step
	t := float64(slots.Next("t"))

	// 2. Pre-calculate Correction Factors
	correction1 := 1.0 - math.Pow(opt.cfg.Beta1, t)
	correction2 := 1.0 - math.Pow(opt.cfg.Beta2, t)

	beta1 := opt.cfg.Beta1
	beta2 := opt.cfg.Beta2
	eps := opt.cfg.Epsilon
	lr := opt.cfg.LearningRate

	params, grads := param.Data(), grad.Data()
	m, v := slots.Get("m").Data(), slots.Get("v").Data()
	for i := range params {
		g := grads[i]

		// m_t = beta1 * m_{t-1} + (1 - beta1) * g
		m[i] = beta1*m[i] + (1.0-beta1)*g
		// v_t = beta2 * v_{t-1} + (1 - beta2) * g^2
		v[i] = beta2*v[i] + (1.0-beta2)*(g*g)

		mHat := m[i] / correction1
		vHat := v[i] / correction2

		// theta = theta - lr * mHat / (sqrt(vHat) + eps)
		params[i] -= lr * mHat / (math.Sqrt(vHat) + eps)
	}
}

// ------ MOMENTUM OPTIMIZER METHODS ------ //

func (opt *MomentumOptimizer) Build(g *graph.Graph, params []*graph.Node, loss *graph.Node) (*graph.Node, error) {
	return g.ApplyGradients("momentum", loss, params, opt)
}

// v = mu * v - lr * grad
// w = w + v
func (opt *MomentumOptimizer) Update(slots *graph.Slots, param, grad *tensor.Matrix) {
	velocity := slots.Get("velocity").Data()
	floats.Scale(opt.Mu, velocity)
	floats.AddScaled(velocity, -opt.LearningRate, grad.Data())
	floats.Add(param.Data(), velocity)
}

// ------ SGD OPTIMIZER METHODS ------ //

func (opt *SGDOptimizer) Build(g *graph.Graph, params []*graph.Node, loss *graph.Node) (*graph.Node, error) {
	return g.ApplyGradients("sgd", loss, params, opt)
}

// Simple update: W = W - (lr * gradient)
func (opt *SGDOptimizer) Update(_ *graph.Slots, param, grad *tensor.Matrix) {
	floats.AddScaled(param.Data(), -opt.LearningRate, grad.Data())
}
