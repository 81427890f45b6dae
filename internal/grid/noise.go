package grid

import "math/rand"

// InjectNoise adds symmetric uniform noise of amplitude level to every cell.
//
// A fresh source is seeded once per call and one sample is drawn per cell in
// row-major order, so identical (dense, level, seed) always yield identical
// output.
func InjectNoise(dense []int, level float32, seed int64) []float32 {
	rng := rand.New(rand.NewSource(seed))
	noisy := make([]float32, len(dense))
	for i, v := range dense {
		noisy[i] = float32(v) + level*(rng.Float32()*2-1)
	}
	return noisy
}

// ApplyThreshold maps each cell to 1 when it is strictly greater than
// threshold and to 0 otherwise. A cell equal to threshold maps to 0.
func ApplyThreshold(dense []float32, threshold float32) []int {
	out := make([]int, len(dense))
	for i, v := range dense {
		if v > threshold {
			out[i] = 1
		}
	}
	return out
}
