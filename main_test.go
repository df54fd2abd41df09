package main

import (
	"encoding/json"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	. "github.com/b0tShaman/neurograph/ml"
)

func TestSyntheticBlobs(t *testing.T) {
	X, Y := syntheticBlobs(30, 3, 4, 7)
	if len(X) != 30 || len(Y) != 30 || len(X[0]) != 4 {
		t.Fatalf("expected 30x4 samples, got %dx%d", len(X), len(X[0]))
	}
	for i, y := range Y {
		if int(y) != i%3 {
			t.Fatalf("sample %d: expected class %d, got %v", i, i%3, y)
		}
	}

	again, _ := syntheticBlobs(30, 3, 4, 7)
	if again[5][2] != X[5][2] {
		t.Fatalf("expected the same seed to reproduce the data")
	}
}

func TestRunSynthetic(t *testing.T) {
	cfg := DefaultTrainingConfig()
	cfg.Epochs = 10
	cfg.Optimizer = OptAdam
	cfg.LearningRate = 0.02

	describe := filepath.Join(t.TempDir(), "graph.json")
	history, err := run(options{hidden: 16, describe: describe, cfg: cfg}, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	last, ok := history.Last()
	if !ok || len(history.Epochs) != 10 {
		t.Fatalf("expected 10 epochs, got %d", len(history.Epochs))
	}
	if acc := last.Test.Metric(0); acc < 0.8 {
		t.Fatalf("expected test accuracy >= 0.8 on separated blobs, got %.4f", acc)
	}

	js, err := os.ReadFile(describe)
	if err != nil {
		t.Fatalf("read description: %v", err)
	}
	var decoded struct {
		Nodes []json.RawMessage `json:"nodes"`
	}
	if err := json.Unmarshal(js, &decoded); err != nil || len(decoded.Nodes) == 0 {
		t.Fatalf("expected a graph description, got %s (%v)", js, err)
	}
}

func TestRunCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	rows := "label,x1,x2\n"
	for i := 0; i < 40; i++ {
		if i%2 == 0 {
			rows += "0,1,9\n"
		} else {
			rows += "1,9,1\n"
		}
	}
	if err := os.WriteFile(path, []byte(rows), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg := DefaultTrainingConfig()
	cfg.Epochs = 2
	cfg.BatchSize = 8
	if _, err := run(options{csvPath: path, hidden: 4, cfg: cfg}, log.New(io.Discard, "", 0)); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultTrainingConfig()
	cfg.BatchSize = 0
	if _, err := run(options{hidden: 4, cfg: cfg}, log.New(io.Discard, "", 0)); err == nil {
		t.Fatalf("expected error for zero batch size")
	}
}

func BenchmarkRunSynthetic(b *testing.B) {
	cfg := DefaultTrainingConfig()
	cfg.Epochs = 1
	logger := log.New(io.Discard, "", 0)
	for n := 0; n < b.N; n++ {
		if _, err := run(options{hidden: 32, cfg: cfg}, logger); err != nil {
			b.Fatalf("run: %v", err)
		}
	}
}
