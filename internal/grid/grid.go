package grid

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidEncoding is returned for malformed sparse input: an odd
	// number of values or a coordinate outside the grid.
	ErrInvalidEncoding = errors.New("grid: invalid coordinate encoding")

	// ErrShapeMismatch is returned when a dense buffer's length disagrees
	// with the declared grid dimensions.
	ErrShapeMismatch = errors.New("grid: buffer length does not match dimensions")

	// ErrInvalidDims is returned when a grid side is not positive.
	ErrInvalidDims = errors.New("grid: dimensions must be > 0")
)

// Dims is the fixed size of a grid. It never changes for the lifetime of a
// pipeline.
type Dims struct {
	Rows int `json:"rows"`
	Cols int `json:"cols"`
}

// DefaultDims is the 16x16 grid used by the shipped model (16 steps by 16
// drum pads).
var DefaultDims = Dims{Rows: 16, Cols: 16}

// Validate reports ErrInvalidDims when either side is not positive.
func (d Dims) Validate() error {
	if d.Rows <= 0 || d.Cols <= 0 {
		return fmt.Errorf("%dx%d: %w", d.Rows, d.Cols, ErrInvalidDims)
	}
	return nil
}

// Cells returns Rows*Cols.
func (d Dims) Cells() int {
	return d.Rows * d.Cols
}

func (d Dims) String() string {
	return fmt.Sprintf("%dx%d", d.Rows, d.Cols)
}

// checkShape validates a dense buffer length against d.
func checkShape(n int, d Dims) error {
	if n != d.Cells() {
		return fmt.Errorf("got %d values for %s grid: %w", n, d, ErrShapeMismatch)
	}
	return nil
}
