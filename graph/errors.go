package graph

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrSessionBusy   = errors.New("graph already has an open session")
	ErrSessionClosed = errors.New("session is closed")
	ErrUninitialized = errors.New("variable is not initialized")
	ErrNotFed        = errors.New("placeholder was not fed")
)

// ShapeError reports operands whose shapes cannot be combined by an operation.
type ShapeError struct {
	Op     string
	Detail string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: incompatible shapes: %s", e.Op, e.Detail)
}

// TypeError reports an operand of the wrong element type.
type TypeError struct {
	Op   string
	Want DType
	Got  DType
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("%s: expected %s operand, got %s", e.Op, e.Want, e.Got)
}

// FeedError reports a value that cannot be bound to a placeholder.
type FeedError struct {
	Placeholder string
	Want        Shape
	Got         Shape
	Reason      string
}

func (e *FeedError) Error() string {
	return fmt.Sprintf("feed %s: %s (placeholder %s, value %s)", e.Placeholder, e.Reason, e.Want, e.Got)
}

func shapeErrorf(op, format string, args ...any) error {
	return &ShapeError{Op: op, Detail: fmt.Sprintf(format, args...)}
}
