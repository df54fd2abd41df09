package ml

import (
	"github.com/pkg/errors"
)

// DefaultMaxLiveTensors bounds the batch tensors alive at once: one input and one label block.
const DefaultMaxLiveTensors = 2

type TrainingConfig struct {
	Epochs       int
	BatchSize    int
	LearningRate float64
	VerboseEvery int // How often to log progress (in epochs)

	// Upper bound on live batch tensors, 0 = DefaultMaxLiveTensors
	MaxLiveTensors int

	// Optimizer Selection
	Optimizer OptimizerType

	// Optimizer Hyperparameters (Zero values will use defaults)
	MomentumMu float64 // For Momentum (usually 0.9)
	AdamBeta1  float64 // For Adam (usually 0.9)
	AdamBeta2  float64 // For Adam (usually 0.999)
	AdamEps    float64 // For Adam (usually 1e-8)
}

func DefaultTrainingConfig() TrainingConfig {
	return TrainingConfig{
		Epochs:         10,
		BatchSize:      32,
		LearningRate:   0.01,
		VerboseEvery:   1,
		MaxLiveTensors: DefaultMaxLiveTensors,
		Optimizer:      OptSGD,
	}
}

// Validate verifies the config is runnable and fills in zero-valued defaults.
func (c *TrainingConfig) Validate() error {
	if c == nil {
		return errors.New("training config is nil")
	}
	if c.Epochs < 0 {
		return errors.Errorf("epochs must be >= 0 (got %d)", c.Epochs)
	}
	if c.BatchSize <= 0 {
		return errors.Errorf("batch_size must be > 0 (got %d)", c.BatchSize)
	}
	if c.LearningRate <= 0 {
		return errors.Errorf("learning_rate must be > 0 (got %g)", c.LearningRate)
	}
	switch c.Optimizer {
	case "":
		c.Optimizer = OptSGD
	case OptSGD, OptMomentum, OptAdam:
	default:
		return errors.Errorf("unknown optimizer %q", c.Optimizer)
	}
	if c.MomentumMu < 0 || c.MomentumMu >= 1 {
		return errors.Errorf("momentum must be in [0, 1) (got %g)", c.MomentumMu)
	}
	if c.MaxLiveTensors < 0 {
		return errors.Errorf("max_live_tensors must be >= 0 (got %d)", c.MaxLiveTensors)
	}
	if c.MaxLiveTensors == 0 {
		c.MaxLiveTensors = DefaultMaxLiveTensors
	}
	if c.VerboseEvery <= 0 {
		c.VerboseEvery = 1
	}
	return nil
}
