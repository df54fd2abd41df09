package graph

import (
	"math"

	"github.com/pkg/errors"

	"github.com/b0tShaman/neurograph/tensor"
)

// Feeds binds placeholders to concrete values for one Run.
type Feeds map[*Node]*tensor.Matrix

// Session owns the variable state of a graph. Only one session per graph may be open
// at a time; Close releases the graph for the next one.
type Session struct {
	graph  *Graph
	device Device
	vars   map[*Node]*tensor.Matrix
	slots  map[*Node]*Slots
	runs   int
	closed bool
}

// NewSession opens a session on g. It fails with ErrSessionBusy if another session
// on g has not been closed.
func NewSession(g *Graph) (*Session, error) {
	if g == nil {
		return nil, errors.New("nil graph")
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.owner != nil {
		return nil, errors.WithStack(ErrSessionBusy)
	}
	s := &Session{
		graph:  g,
		device: HostDevice(),
		vars:   make(map[*Node]*tensor.Matrix),
		slots:  make(map[*Node]*Slots),
	}
	g.owner = s
	return s, nil
}

func (s *Session) Graph() *Graph  { return s.graph }
func (s *Session) Device() Device { return s.device }
func (s *Session) Runs() int      { return s.runs }
func (s *Session) Closed() bool   { return s.closed }

// Close drops all variable state and releases the graph. Closing twice is a no-op.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.graph.mu.Lock()
	if s.graph.owner == s {
		s.graph.owner = nil
	}
	s.graph.mu.Unlock()

	s.closed = true
	s.vars = nil
	s.slots = nil
	return nil
}

// Run binds feeds, evaluates fetches and targets, and returns the fetched values in
// request order. Fetches observe variable values from before this run; variable writes
// made by targets are staged and committed together only if the whole run succeeds.
func (s *Session) Run(feeds Feeds, fetches []*Node, targets []*Node) ([]*tensor.Matrix, error) {
	if s.closed {
		return nil, errors.WithStack(ErrSessionClosed)
	}
	if err := s.checkFeeds(feeds); err != nil {
		return nil, err
	}
	for _, n := range append(append([]*Node(nil), fetches...), targets...) {
		if n == nil {
			return nil, errors.New("nil node in run request")
		}
		if n.graph != s.graph {
			return nil, errors.Errorf("node %s belongs to another graph", n.name)
		}
	}

	rc := newRunContext(s, feeds)
	out := make([]*tensor.Matrix, len(fetches))
	for i, f := range fetches {
		if f.dtype == Void {
			return nil, errors.Errorf("cannot fetch %s: %s produces no value", f.name, f.op.Type())
		}
		v, err := rc.Value(f)
		if err != nil {
			return nil, err
		}
		// Fed and stored values are owned elsewhere; hand out a copy.
		if IsPlaceholder(f) || IsVariable(f) {
			v = v.Clone()
		}
		out[i] = v
	}
	for _, t := range targets {
		if _, err := rc.Value(t); err != nil {
			return nil, err
		}
	}

	rc.commit()
	s.runs++
	return out, nil
}

func (s *Session) checkFeeds(feeds Feeds) error {
	for n, v := range feeds {
		if n == nil {
			return errors.New("feed for nil placeholder")
		}
		if n.graph != s.graph {
			return errors.Errorf("cannot feed %s: belongs to another graph", n.name)
		}
		if !IsPlaceholder(n) {
			return errors.Errorf("cannot feed %s: %s is not a placeholder", n.name, n.op.Type())
		}
		if v == nil {
			return &FeedError{Placeholder: n.name, Want: n.shape, Reason: "nil value"}
		}
		got := Shape{Rows: v.Rows(), Cols: v.Cols()}
		if !n.shape.Accepts(v.Rows(), v.Cols()) {
			return &FeedError{Placeholder: n.name, Want: n.shape, Got: got, Reason: "shape mismatch"}
		}
		if n.dtype == Int64 {
			for _, x := range v.Data() {
				if x != math.Trunc(x) {
					return &FeedError{Placeholder: n.name, Want: n.shape, Got: got, Reason: "non-integral value for int64 placeholder"}
				}
			}
		}
	}
	return nil
}

// RunContext is the state of a single Session.Run. Op implementations use it to read
// other values, variables and gradients, and to stage variable writes.
type RunContext struct {
	sess   *Session
	feeds  Feeds
	values map[*Node]*tensor.Matrix
	grads  map[*Node]map[*Node]*tensor.Matrix

	staged      map[*Node]*tensor.Matrix
	stagedSlots map[*Node]*Slots
}

func newRunContext(s *Session, feeds Feeds) *RunContext {
	return &RunContext{
		sess:        s,
		feeds:       feeds,
		values:      make(map[*Node]*tensor.Matrix),
		grads:       make(map[*Node]map[*Node]*tensor.Matrix),
		staged:      make(map[*Node]*tensor.Matrix),
		stagedSlots: make(map[*Node]*Slots),
	}
}

// Value evaluates n at most once per run.
func (rc *RunContext) Value(n *Node) (*tensor.Matrix, error) {
	if v, ok := rc.values[n]; ok {
		return v, nil
	}
	inputs := make([]*tensor.Matrix, len(n.inputs))
	for i, in := range n.inputs {
		v, err := rc.Value(in)
		if err != nil {
			return nil, err
		}
		if v == nil {
			return nil, errors.Errorf("%s: input %s produces no value", n.name, in.name)
		}
		inputs[i] = v
	}
	v, err := n.op.Compute(rc, n, inputs)
	if err != nil {
		return nil, err
	}
	if n.dtype != Void && v == nil {
		return nil, errors.Errorf("%s: %s returned no value", n.name, n.op.Type())
	}
	rc.values[n] = v
	return v, nil
}

// Variable returns the committed value of variable v.
func (rc *RunContext) Variable(v *Node) (*tensor.Matrix, error) {
	m, ok := rc.sess.vars[v]
	if !ok {
		return nil, errors.Wrapf(ErrUninitialized, "variable %s", v.name)
	}
	return m, nil
}

// Assign stages value as the next value of variable v.
func (rc *RunContext) Assign(v *Node, value *tensor.Matrix) {
	rc.staged[v] = value
}

// Slots returns a staged copy of v's optimizer state.
func (rc *RunContext) Slots(v *Node) *Slots {
	if s, ok := rc.stagedSlots[v]; ok {
		return s
	}
	var s *Slots
	if cur, ok := rc.sess.slots[v]; ok {
		s = cur.clone()
	} else {
		s = newSlots(v.shape.Rows, v.shape.Cols)
	}
	rc.stagedSlots[v] = s
	return s
}

func (rc *RunContext) commit() {
	for v, m := range rc.staged {
		rc.sess.vars[v] = m
	}
	for v, s := range rc.stagedSlots {
		rc.sess.slots[v] = s
	}
}
