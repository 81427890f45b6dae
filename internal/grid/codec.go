package grid

import "fmt"

// DecodeSparse builds a binary dense buffer from a sparse 1-based coordinate
// list. Repeated pairs set the same cell once.
func DecodeSparse(coords []int, d Dims) ([]int, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if len(coords)%2 != 0 {
		return nil, fmt.Errorf("odd coordinate count %d: %w", len(coords), ErrInvalidEncoding)
	}

	dense := make([]int, d.Cells())
	for i := 0; i < len(coords); i += 2 {
		row, col := coords[i], coords[i+1]
		if row < 1 || row > d.Rows || col < 1 || col > d.Cols {
			return nil, fmt.Errorf("pair %d (%d,%d) outside %s grid: %w", i/2, row, col, d, ErrInvalidEncoding)
		}
		dense[(row-1)*d.Cols+(col-1)] = 1
	}
	return dense, nil
}

// EncodeDense scans dense in row-major order and emits the 1-based
// coordinates of every cell equal to 1. Output is ordered by row, then col.
func EncodeDense(dense []int, d Dims) ([]int, error) {
	if err := checkShape(len(dense), d); err != nil {
		return nil, err
	}

	coords := make([]int, 0)
	for row := 0; row < d.Rows; row++ {
		for col := 0; col < d.Cols; col++ {
			if dense[row*d.Cols+col] == 1 {
				coords = append(coords, row+1, col+1)
			}
		}
	}
	return coords, nil
}

// FlipHorizontal returns a copy of dense with the cells of each row in
// reverse order. Row order is unchanged.
func FlipHorizontal[T any](dense []T, d Dims) ([]T, error) {
	if err := checkShape(len(dense), d); err != nil {
		return nil, err
	}

	flipped := make([]T, len(dense))
	for row := 0; row < d.Rows; row++ {
		start := row * d.Cols
		for col := 0; col < d.Cols; col++ {
			flipped[start+col] = dense[start+d.Cols-1-col]
		}
	}
	return flipped, nil
}

// Count returns the number of cells set to 1.
func Count(dense []int) int {
	n := 0
	for _, v := range dense {
		if v == 1 {
			n++
		}
	}
	return n
}
