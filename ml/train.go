package ml

import (
	"log"
	"os"

	"github.com/pkg/errors"

	"github.com/b0tShaman/neurograph/data"
	"github.com/b0tShaman/neurograph/graph"
)

// PhaseStats is the running average of one phase of an epoch. Every batch weighs
// the same regardless of its size. A phase with no batches reports zeros.
type PhaseStats struct {
	Loss    float64
	Metrics []float64 // in compile order
	Batches int
}

// Metric returns the i-th metric, or 0 if there is none.
func (p PhaseStats) Metric(i int) float64 {
	if i < 0 || i >= len(p.Metrics) {
		return 0
	}
	return p.Metrics[i]
}

type EpochStats struct {
	Epoch int
	Train PhaseStats
	Test  PhaseStats
}

// History records every finished epoch of one Fit.
type History struct {
	MetricNames []string
	Epochs      []EpochStats
}

// Last returns the final epoch, if any ran.
func (h *History) Last() (EpochStats, bool) {
	if len(h.Epochs) == 0 {
		return EpochStats{}, false
	}
	return h.Epochs[len(h.Epochs)-1], true
}

type FitOption func(*fitConfig)

type fitConfig struct {
	reporter     Reporter
	logger       *log.Logger
	maxLive      int
	verboseEvery int
}

// WithReporter replaces the default LogReporter.
func WithReporter(r Reporter) FitOption {
	return func(c *fitConfig) { c.reporter = r }
}

func WithLogger(l *log.Logger) FitOption {
	return func(c *fitConfig) { c.logger = l }
}

// WithTensorLimit bounds the live batch tensors. Each batch needs two.
func WithTensorLimit(n int) FitOption {
	return func(c *fitConfig) { c.maxLive = n }
}

func WithVerboseEvery(n int) FitOption {
	return func(c *fitConfig) { c.verboseEvery = n }
}

// WithConfig applies the logging and resource settings of cfg.
func WithConfig(cfg TrainingConfig) FitOption {
	return func(c *fitConfig) {
		c.maxLive = cfg.MaxLiveTensors
		c.verboseEvery = cfg.VerboseEvery
	}
}

// Fit trains the compiled model for epochs passes over ds. Each call opens a fresh session,
// so all parameters and optimizer state are re-initialized and training restarts at epoch 0.
// The session is closed on every return path.
func (m *Sequential) Fit(ds data.Dataset, epochs, batchSize int, opts ...FitOption) (*History, error) {
	switch m.state {
	case Compiled, Completed:
	case Uncompiled:
		return nil, errors.WithStack(ErrNotCompiled)
	case Failed:
		return nil, errors.WithStack(ErrCompileFailed)
	default:
		return nil, errors.Errorf("fit called while model is %s", m.state)
	}
	if ds == nil {
		return nil, errors.New("nil dataset")
	}
	if epochs < 0 {
		return nil, errors.Errorf("epochs must be >= 0 (got %d)", epochs)
	}
	if batchSize <= 0 {
		return nil, errors.Errorf("batch size must be > 0 (got %d)", batchSize)
	}

	cfg := fitConfig{verboseEvery: 1}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = log.New(os.Stdout, "", log.LstdFlags)
	}
	if cfg.reporter == nil {
		cfg.reporter = &LogReporter{Logger: cfg.logger, Every: cfg.verboseEvery, MetricNames: m.metricNames}
	}

	// 1. Batches
	var train, test []data.Split
	if epochs > 0 {
		var err error
		if train, err = ds.TrainBatches(batchSize); err != nil {
			return nil, errors.Wrap(err, "train batches")
		}
		if test, err = ds.TestBatches(batchSize); err != nil {
			return nil, errors.Wrap(err, "test batches")
		}
	}

	// 2. Session
	engine, err := OpenEngine(m.g, m.initTargets(), EngineOptions{MaxLiveTensors: cfg.maxLive, Logger: cfg.logger})
	if err != nil {
		return nil, err
	}
	defer engine.Close()

	// A failed fit leaves the model ready for another attempt.
	ok := false
	defer func() {
		if !ok {
			m.state = Compiled
		}
	}()

	// 3. Initialize once
	if err := engine.Initialize(); err != nil {
		return nil, err
	}
	m.state = Initialized
	cfg.logger.Printf("fitting %d epochs: %d train / %d test batches of %d", epochs, len(train), len(test), batchSize)

	fetches := append(m.Metrics(), m.loss)
	history := &History{MetricNames: m.MetricNames()}

	// 4. Epochs
	for epoch := 0; epoch < epochs; epoch++ {
		m.state = TrainingEpoch
		trainStats, err := m.runPhase(engine, train, fetches, m.targets)
		if err != nil {
			return nil, errors.Wrapf(err, "epoch %d: train", epoch)
		}

		m.state = EvaluatingEpoch
		testStats, err := m.runPhase(engine, test, fetches, nil)
		if err != nil {
			return nil, errors.Wrapf(err, "epoch %d: test", epoch)
		}

		history.Epochs = append(history.Epochs, EpochStats{Epoch: epoch, Train: trainStats, Test: testStats})
		cfg.reporter.EpochEnd(epoch, testStats)
	}

	m.state = Completed
	ok = true
	return history, nil
}

// runPhase evaluates every split in order and reports the mean of the fetched values,
// every batch weighing the same. fetches ends with the loss.
func (m *Sequential) runPhase(engine *Engine, splits []data.Split, fetches, targets []*graph.Node) (PhaseStats, error) {
	stats := PhaseStats{Metrics: make([]float64, len(fetches)-1)}
	for i, split := range splits {
		values, err := engine.RunBatch(m.input, m.labels, split, fetches, targets)
		if err != nil {
			return PhaseStats{}, errors.Wrapf(m.attributeLabels(err, split), "batch %d", i)
		}
		// Running mean, exact when every batch reports the same value.
		n := float64(i + 1)
		for j := range stats.Metrics {
			stats.Metrics[j] += (values[j].Value() - stats.Metrics[j]) / n
		}
		stats.Loss += (values[len(values)-1].Value() - stats.Loss) / n
		stats.Batches++
	}
	return stats, nil
}

// attributeLabels points a shape failure raised inside the graph at the labels feed.
// The input placeholder is checked on feed, so only the labels can disagree with the
// output they are compared against.
func (m *Sequential) attributeLabels(err error, split data.Split) error {
	var fe *FeedShapeError
	if !errors.As(err, &fe) || fe.Op == "" {
		return err
	}
	fe.Placeholder = m.labels.Name()
	fe.Got = graph.Shape{Rows: len(split.Y), Cols: graph.Unknown}
	if len(split.Y) > 0 {
		fe.Got.Cols = len(split.Y[0])
	}
	fe.Want = graph.Shape{Rows: len(split.X), Cols: 1}
	if m.labels.DType() != graph.Int64 {
		fe.Want.Cols = m.Output().Shape().Cols
	}
	return err
}
