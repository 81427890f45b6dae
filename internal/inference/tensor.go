package inference

import "context"

// DType identifies the element type of a Tensor.
type DType int

const (
	Float32 DType = iota
	Float64
	Int64
)

func (d DType) String() string {
	switch d {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Int64:
		return "int64"
	default:
		return "unknown"
	}
}

// Tensor is a named session input or output. Only the slice matching DType
// is populated.
type Tensor struct {
	DType   DType
	Shape   []int
	Float32 []float32
	Float64 []float64
	Int64   []int64
}

// Len returns the number of elements held by the tensor.
func (t Tensor) Len() int {
	switch t.DType {
	case Float32:
		return len(t.Float32)
	case Float64:
		return len(t.Float64)
	case Int64:
		return len(t.Int64)
	}
	return 0
}

// Runtime turns a model payload into a runnable Session.
type Runtime interface {
	NewSession(ctx context.Context, payload []byte) (Session, error)
}

// Session executes a loaded model. Implementations must be safe to call from
// multiple goroutines.
type Session interface {
	Run(ctx context.Context, inputs map[string]Tensor) (map[string]Tensor, error)
}
