package ml

import (
	"testing"

	"github.com/pkg/errors"

	"github.com/b0tShaman/neurograph/data"
	"github.com/b0tShaman/neurograph/graph"
	"github.com/b0tShaman/neurograph/tensor"
)

type linearGraph struct {
	g            *graph.Graph
	x, y, w      *graph.Node
	pred, loss   *graph.Node
	init, update *graph.Node
}

// newLinearGraph declares pred = x * w with w starting at ones, and an SGD step on
// the squared error.
func newLinearGraph(t *testing.T) linearGraph {
	t.Helper()
	g := graph.New()
	var lg linearGraph
	var err error
	step := func(n *graph.Node, err error) *graph.Node {
		t.Helper()
		if err != nil {
			t.Fatalf("declare: %v", err)
		}
		return n
	}
	lg.g = g
	lg.x = step(g.Placeholder("x", graph.Float64, graph.Shape{Rows: graph.Unknown, Cols: 2}))
	lg.y = step(g.Placeholder("y", graph.Float64, graph.Shape{Rows: graph.Unknown, Cols: 1}))
	lg.w = step(g.Variable("w", graph.Shape{Rows: 2, Cols: 1}))
	lg.init = step(g.Assign(lg.w, step(g.Fill(graph.Shape{Rows: 2, Cols: 1}, 1))))
	lg.pred = step(g.MatMul(lg.x, lg.w))
	lg.loss = step(g.MeanSquaredError(lg.pred, lg.y))
	lg.update, err = (&SGDOptimizer{LearningRate: 0.1}).Build(g, []*graph.Node{lg.w}, lg.loss)
	if err != nil {
		t.Fatalf("optimizer: %v", err)
	}
	return lg
}

func openEngine(t *testing.T, lg linearGraph, limit int) *Engine {
	t.Helper()
	e, err := OpenEngine(lg.g, []*graph.Node{lg.init}, EngineOptions{MaxLiveTensors: limit, Logger: quiet})
	if err != nil {
		t.Fatalf("OpenEngine: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

func TestEngineInitializesOnce(t *testing.T) {
	lg := newLinearGraph(t)
	e := openEngine(t, lg, 0)

	if _, err := e.Evaluate(nil, []*graph.Node{lg.w}, nil); !errors.Is(err, graph.ErrUninitialized) {
		t.Fatalf("expected ErrUninitialized before Initialize, got %v", err)
	}
	if err := e.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := e.Initialize(); !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("expected ErrAlreadyInitialized, got %v", err)
	}
	out, err := e.Evaluate(nil, []*graph.Node{lg.w}, nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if out[0].At(0, 0) != 1 || out[0].At(1, 0) != 1 {
		t.Fatalf("expected w = [1 1], got %v", out[0].Data())
	}
}

func TestEngineRunBatch(t *testing.T) {
	lg := newLinearGraph(t)
	e := openEngine(t, lg, 0)
	if err := e.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	split := data.Split{
		X: [][]float64{{1, 2}, {3, 4}},
		Y: [][]float64{{3}, {7}},
	}
	out, err := e.RunBatch(lg.x, lg.y, split, []*graph.Node{lg.pred, lg.loss}, []*graph.Node{lg.update})
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	// w = [1 1] fits exactly, so the step leaves it unchanged.
	if out[0].At(0, 0) != 3 || out[0].At(1, 0) != 7 || out[1].Value() != 0 {
		t.Fatalf("expected predictions [3 7] and loss 0, got %v and %v", out[0].Data(), out[1].Value())
	}
	if live := e.Pool().Live(); live != 0 {
		t.Fatalf("expected batch tensors released, %d still live", live)
	}
	if e.Pool().Peak() != DefaultMaxLiveTensors {
		t.Fatalf("expected peak %d, got %d", DefaultMaxLiveTensors, e.Pool().Peak())
	}

	// The next batch reuses the released buffers; earlier results must not change.
	split = data.Split{X: [][]float64{{0, 0}, {0, 0}}, Y: [][]float64{{0}, {0}}}
	if _, err := e.RunBatch(lg.x, lg.y, split, []*graph.Node{lg.pred}, nil); err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if out[0].At(1, 0) != 7 {
		t.Fatalf("fetched value changed after buffers were reused: %v", out[0].Data())
	}
}

func TestEngineRejectsFeedsAndStaysUsable(t *testing.T) {
	lg := newLinearGraph(t)
	e := openEngine(t, lg, 0)
	if err := e.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	bad := data.Split{X: [][]float64{{1, 2, 3}}, Y: [][]float64{{1}}}
	_, err := e.RunBatch(lg.x, lg.y, bad, []*graph.Node{lg.loss}, []*graph.Node{lg.update})
	var fe *FeedShapeError
	if !errors.As(err, &fe) || fe.Placeholder != "x" {
		t.Fatalf("expected *FeedShapeError for x, got %v", err)
	}
	if e.Pool().Live() != 0 {
		t.Fatalf("rejected batch leaked %d tensors", e.Pool().Live())
	}

	out, err := e.Evaluate(nil, []*graph.Node{lg.w}, nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if out[0].At(0, 0) != 1 {
		t.Fatalf("rejected batch updated w: %v", out[0].Data())
	}
}

func TestEngineTensorLimit(t *testing.T) {
	lg := newLinearGraph(t)
	e := openEngine(t, lg, 1)
	if err := e.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	split := data.Split{X: [][]float64{{1, 2}}, Y: [][]float64{{3}}}
	_, err := e.RunBatch(lg.x, lg.y, split, []*graph.Node{lg.loss}, nil)
	var re *ResourceError
	if !errors.As(err, &re) || re.Resource != "batch labels" {
		t.Fatalf("expected *ResourceError for batch labels, got %v", err)
	}
	if e.Pool().Live() != 0 {
		t.Fatalf("failed batch leaked %d tensors", e.Pool().Live())
	}
}

func TestEngineOwnsSession(t *testing.T) {
	lg := newLinearGraph(t)
	e := openEngine(t, lg, 0)

	_, err := OpenEngine(lg.g, nil, EngineOptions{Logger: quiet})
	var re *ResourceError
	if !errors.As(err, &re) || !errors.Is(err, graph.ErrSessionBusy) {
		t.Fatalf("expected busy session *ResourceError, got %v", err)
	}

	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if !e.Session().Closed() {
		t.Fatalf("expected session to be closed")
	}
	openEngine(t, lg, 0)
}

func TestEngineUnboundedPool(t *testing.T) {
	lg := newLinearGraph(t)
	e := openEngine(t, lg, -1)
	if err := e.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	held := make([]*tensor.Matrix, 0, 4)
	for i := 0; i < 4; i++ {
		m, err := e.Pool().Acquire(1, 1)
		if err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
		held = append(held, m)
	}
	for _, m := range held {
		e.Pool().Release(m)
	}
}
