package ml

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/b0tShaman/neurograph/graph"
)

// These are the global errors that may be returned while compiling or fitting.
var (
	ErrNotCompiled        = errors.New("model is not compiled")
	ErrAlreadyCompiled    = errors.New("model is already compiled")
	ErrCompileFailed      = errors.New("model failed to compile and must be rebuilt")
	ErrMissingInput       = errors.New("model has no input layer")
	ErrAlreadyBuilt       = errors.New("layer is already built")
	ErrAlreadyInitialized = errors.New("engine is already initialized")
)

// CompileError reports why a layer stack could not be compiled. Layer is empty when
// the failure is not tied to one layer.
type CompileError struct {
	Layer string
	Err   error
}

func (e *CompileError) Error() string {
	if e.Layer == "" {
		return "compile: " + e.Err.Error()
	}
	return fmt.Sprintf("compile: layer %s: %v", e.Layer, e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }

// FeedShapeError reports a batch whose concrete shape disagrees with the placeholder it
// is bound to. Op names the operation that rejected the value when the placeholder itself
// accepted it. The session stays usable.
type FeedShapeError struct {
	Placeholder string
	Op          string
	Want        graph.Shape
	Got         graph.Shape
	Err         error
}

func (e *FeedShapeError) Error() string {
	if e.Op == "" && e.Err != nil {
		return e.Err.Error()
	}
	msg := fmt.Sprintf("feed %s: expected %s, got %s", e.Placeholder, e.Want, e.Got)
	if e.Op != "" {
		msg += " (rejected by " + e.Op + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FeedShapeError) Unwrap() error { return e.Err }

// ResourceError reports a session or batch tensor that could not be acquired.
type ResourceError struct {
	Resource string
	Err      error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("acquire %s: %v", e.Resource, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }

// asFeedShapeError translates backend shape failures seen while evaluating a batch.
// Compile-time inference already proved the graph consistent, so any shape disagreement
// at run time comes from the fed data. Without knowing which feed reached op, the
// placeholder and shapes stay unknown until the caller fills them in.
func asFeedShapeError(err error) error {
	var fe *graph.FeedError
	if errors.As(err, &fe) {
		return &FeedShapeError{Placeholder: fe.Placeholder, Want: fe.Want, Got: fe.Got, Err: err}
	}
	var se *graph.ShapeError
	if errors.As(err, &se) {
		return &FeedShapeError{
			Op:   se.Op,
			Want: graph.Shape{Rows: graph.Unknown, Cols: graph.Unknown},
			Got:  graph.Shape{Rows: graph.Unknown, Cols: graph.Unknown},
			Err:  err,
		}
	}
	return err
}
