package graph

import (
	"fmt"
	"strconv"
)

// Unknown marks a dimension that is only fixed when data is fed, usually the batch dimension.
const Unknown = -1

// DType is the element type a node produces.
type DType int

const (
	// Void is produced by operations evaluated only for their side effect.
	Void DType = iota
	Float64
	// Int64 values are carried as float64 but must be integral, e.g. class indices.
	Int64
)

func (d DType) String() string {
	switch d {
	case Void:
		return "void"
	case Float64:
		return "float64"
	case Int64:
		return "int64"
	}
	return fmt.Sprintf("dtype(%d)", int(d))
}

// Shape is the rank-2 shape of a symbolic value. Either dimension may be Unknown.
type Shape struct {
	Rows, Cols int
}

func ScalarShape() Shape {
	return Shape{Rows: 1, Cols: 1}
}

func (s Shape) IsScalar() bool {
	return s.Rows == 1 && s.Cols == 1
}

// Known reports whether both dimensions are fixed.
func (s Shape) Known() bool {
	return s.Rows != Unknown && s.Cols != Unknown
}

// Compatible reports whether s and o can describe the same value.
func (s Shape) Compatible(o Shape) bool {
	return dimCompatible(s.Rows, o.Rows) && dimCompatible(s.Cols, o.Cols)
}

// Accepts reports whether a concrete rows x cols value fits s.
func (s Shape) Accepts(rows, cols int) bool {
	return s.Compatible(Shape{Rows: rows, Cols: cols})
}

// Merge returns the most specific shape compatible with both s and o.
func (s Shape) Merge(o Shape) Shape {
	out := s
	if out.Rows == Unknown {
		out.Rows = o.Rows
	}
	if out.Cols == Unknown {
		out.Cols = o.Cols
	}
	return out
}

func (s Shape) String() string {
	return "[" + dimString(s.Rows) + ", " + dimString(s.Cols) + "]"
}

func dimCompatible(a, b int) bool {
	return a == Unknown || b == Unknown || a == b
}

func dimString(d int) string {
	if d == Unknown {
		return "?"
	}
	return strconv.Itoa(d)
}
