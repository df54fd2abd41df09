package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"

	"github.com/pkg/errors"

	"github.com/b0tShaman/neurograph/data"
	"github.com/b0tShaman/neurograph/graph"
	. "github.com/b0tShaman/neurograph/ml"
)

type options struct {
	csvPath  string
	imageDir string
	imgSize  int
	hidden   int
	describe string
	cfg      TrainingConfig
}

// -------- MAIN -------- //
func main() {
	opts := options{cfg: DefaultTrainingConfig()}
	flag.StringVar(&opts.csvPath, "csv", "", "CSV file with the class label in column 0 (synthetic data if empty)")
	flag.StringVar(&opts.imageDir, "images", "", "directory of <class>/<image> files")
	flag.IntVar(&opts.imgSize, "img-size", 28, "images are resized to img-size x img-size")
	flag.IntVar(&opts.hidden, "hidden", 32, "units in the hidden layer")
	flag.StringVar(&opts.describe, "describe", "", "write the compiled graph as JSON to this file")
	flag.IntVar(&opts.cfg.Epochs, "epochs", opts.cfg.Epochs, "training epochs")
	flag.IntVar(&opts.cfg.BatchSize, "batch", opts.cfg.BatchSize, "batch size")
	flag.Float64Var(&opts.cfg.LearningRate, "lr", opts.cfg.LearningRate, "learning rate")
	flag.IntVar(&opts.cfg.VerboseEvery, "verbose-every", opts.cfg.VerboseEvery, "log every n epochs")
	optimizer := flag.String("optimizer", string(opts.cfg.Optimizer), "sgd, momentum or adam")
	flag.Parse()
	opts.cfg.Optimizer = OptimizerType(*optimizer)

	logger := log.New(os.Stdout, "", log.LstdFlags)
	if _, err := run(opts, logger); err != nil {
		logger.Fatalf("%+v", err)
	}
}

func run(opts options, logger *log.Logger) (*History, error) {
	cfg := opts.cfg
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger.Printf("TrainingConfig: %+v", cfg)

	// 1. Load Data
	X, labels, classes, err := loadData(opts)
	if err != nil {
		return nil, err
	}
	Y, err := data.OneHot(labels, classes)
	if err != nil {
		return nil, err
	}
	ds, err := data.NewHoldoutDataset(X, Y, 0.2, data.Shuffle(1))
	if err != nil {
		return nil, err
	}
	logger.Printf("Loaded dataset: %d samples, %d input features, %d classes", len(X), len(X[0]), classes)

	// 2. Build & Compile
	model := NewSequential(
		Input(len(X[0])),
		Dense(opts.hidden),
		Dense(classes, Activation("softmax"), KernelInitializer(GlorotUniform{})),
	)
	g := graph.New()
	err = model.Compile(g, CompileOptions{
		Optimizer: NewOptimizer(cfg),
		Loss:      CategoricalCrossEntropy{},
		Metrics:   []Metric{Accuracy{}},
	})
	if err != nil {
		return nil, err
	}
	logger.Print(model.Summary())

	if opts.describe != "" {
		js, err := g.MarshalJSON()
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(opts.describe, js, 0o644); err != nil {
			return nil, errors.Wrap(err, "write graph description")
		}
	}

	// 3. Train
	history, err := model.Fit(ds, cfg.Epochs, cfg.BatchSize, WithConfig(cfg), WithLogger(logger))
	if err != nil {
		return nil, err
	}
	if last, ok := history.Last(); ok {
		logger.Printf("Training Complete. Train loss %.4f, test loss %.4f, test acc %.2f%%",
			last.Train.Loss, last.Test.Loss, last.Test.Metric(0)*100)
	}
	return history, nil
}

func loadData(opts options) ([][]float64, []float64, int, error) {
	switch {
	case opts.imageDir != "":
		X, Y, classes, err := data.LoadImageFolder(opts.imageDir, opts.imgSize, opts.imgSize)
		return X, Y, len(classes), err

	case opts.csvPath != "":
		X, Y, err := data.LoadCSV(opts.csvPath, 0)
		if err != nil {
			return nil, nil, 0, err
		}
		data.MinMaxNormalize(X)
		classes := 0
		for _, y := range Y {
			classes = max(classes, int(y)+1)
		}
		return X, Y, classes, nil

	default:
		X, Y := syntheticBlobs(600, 3, 4, 7)
		return X, Y, 3, nil
	}
}

// syntheticBlobs draws n points around one random centre per class.
func syntheticBlobs(n, classes, dim int, seed uint64) ([][]float64, []float64) {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	centres := make([][]float64, classes)
	for c := range centres {
		centres[c] = make([]float64, dim)
		for j := range centres[c] {
			centres[c][j] = rng.Float64()*8 - 4
		}
	}

	X := make([][]float64, n)
	Y := make([]float64, n)
	for i := range X {
		c := i % classes
		X[i] = make([]float64, dim)
		for j := range X[i] {
			X[i][j] = centres[c][j] + rng.NormFloat64()*0.5
		}
		Y[i] = float64(c)
	}
	return X, Y
}

func init() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags]\n\nTrains a small classifier and reports per-epoch test loss and accuracy.\n\n", os.Args[0])
		flag.PrintDefaults()
	}
}
