package ml

import (
	"io"
	"log"

	"github.com/pkg/errors"

	"github.com/b0tShaman/neurograph/data"
	"github.com/b0tShaman/neurograph/graph"
	"github.com/b0tShaman/neurograph/tensor"
)

type EngineOptions struct {
	MaxLiveTensors int // 0 = DefaultMaxLiveTensors, < 0 = unbounded
	Logger         *log.Logger
}

// Engine wraps the one session bound to a compiled graph for the duration of a fit.
// It runs the initializers once and then evaluates batches, acquiring each batch's
// tensors from a bounded pool right before the run and releasing them right after.
type Engine struct {
	sess        *graph.Session
	pool        *tensor.Pool
	inits       []*graph.Node
	initialized bool
	logger      *log.Logger
}

// OpenEngine opens a session on g. initTargets are the variable initializers run by Initialize.
func OpenEngine(g *graph.Graph, initTargets []*graph.Node, opts EngineOptions) (*Engine, error) {
	sess, err := graph.NewSession(g)
	if err != nil {
		return nil, &ResourceError{Resource: "session", Err: err}
	}

	limit := opts.MaxLiveTensors
	if limit == 0 {
		limit = DefaultMaxLiveTensors
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	logger.Printf("session opened on %s (%d nodes)", sess.Device(), g.Len())

	return &Engine{
		sess:   sess,
		pool:   tensor.NewPool(limit),
		inits:  append([]*graph.Node(nil), initTargets...),
		logger: logger,
	}, nil
}

func (e *Engine) Session() *graph.Session { return e.sess }
func (e *Engine) Pool() *tensor.Pool      { return e.pool }

// Initialize runs every initializer in a single run with no fetches. It may be called once.
func (e *Engine) Initialize() error {
	if e.initialized {
		return errors.WithStack(ErrAlreadyInitialized)
	}
	if _, err := e.sess.Run(nil, nil, e.inits); err != nil {
		return errors.Wrap(err, "initialize variables")
	}
	e.initialized = true
	return nil
}

// Evaluate binds feeds, runs targets for their effect and returns the fetched values in
// request order. A rejected feed fails with *FeedShapeError and leaves the session usable.
func (e *Engine) Evaluate(feeds graph.Feeds, fetches, targets []*graph.Node) ([]*tensor.Matrix, error) {
	out, err := e.sess.Run(feeds, fetches, targets)
	if err != nil {
		return nil, asFeedShapeError(err)
	}
	return out, nil
}

// RunBatch feeds one split into input and labels. Fetched values are copied out before the
// batch tensors go back to the pool.
func (e *Engine) RunBatch(input, labels *graph.Node, split data.Split, fetches, targets []*graph.Node) ([]*tensor.Matrix, error) {
	x, err := e.acquire("batch input", split.X)
	if err != nil {
		return nil, err
	}
	defer e.pool.Release(x)

	y, err := e.acquire("batch labels", split.Y)
	if err != nil {
		return nil, err
	}
	defer e.pool.Release(y)

	out, err := e.Evaluate(graph.Feeds{input: x, labels: y}, fetches, targets)
	if err != nil {
		return nil, err
	}
	for i, v := range out {
		out[i] = v.Clone()
	}
	return out, nil
}

func (e *Engine) acquire(resource string, block [][]float64) (*tensor.Matrix, error) {
	m, err := e.pool.AcquireRows(block)
	if errors.Is(err, tensor.ErrPoolExhausted) {
		return nil, &ResourceError{Resource: resource, Err: err}
	}
	if err != nil {
		return nil, errors.Wrap(err, resource)
	}
	return m, nil
}

// Close releases the session. Calling it again is a no-op.
func (e *Engine) Close() error {
	if e.sess.Closed() {
		return nil
	}
	e.logger.Printf("session closed after %d runs (peak live batch tensors: %d)", e.sess.Runs(), e.pool.Peak())
	return e.sess.Close()
}
