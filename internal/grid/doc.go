// Package grid converts between the sparse coordinate lists exchanged with
// callers and the dense row-major buffers fed to the inference engine.
//
// Sparse lists are flattened 1-based (row, col) pairs. Dense buffers hold
// Rows*Cols cells with index = row*Cols + col. Every function here is pure:
// no shared state, no I/O, and inputs are never modified in place.
//
// Errors are package sentinels; callers match them with errors.Is.
package grid
