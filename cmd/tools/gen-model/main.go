// Command gen-model trains a small denoising network on random drum patterns
// and writes it as a loom JSON bundle that the dice server can embed or load
// with --model.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/openfluke/loom/nn"

	"github.com/banshee-data/dice/internal/grid"
	"github.com/banshee-data/dice/internal/inference"
)

var (
	out     = flag.String("out", "internal/model/artifacts/model.json", "Output path for the model bundle")
	modelID = flag.String("id", inference.DefaultModelID, "Model ID stored in the bundle")
	rows    = flag.Int("rows", grid.DefaultDims.Rows, "Grid rows (steps)")
	cols    = flag.Int("cols", grid.DefaultDims.Cols, "Grid columns (pads)")
	hidden  = flag.Int("hidden", 128, "Hidden layer width")
	samples = flag.Int("samples", 2000, "Number of training patterns")
	density = flag.Float64("density", 0.15, "Probability that a cell is active in a training pattern")
	noise   = flag.Float64("noise", 0.2, "Noise level applied to training inputs")
	epochs  = flag.Int("epochs", 30, "Training epochs")
	rate    = flag.Float64("lr", 0.01, "Learning rate")
	seed    = flag.Int64("seed", 1, "Random seed for pattern generation")
	verbose = flag.Bool("v", false, "Log training progress")
)

func networkJSON(id string, cells, hidden int) string {
	return fmt.Sprintf(`{
		"id": %q,
		"batch_size": 1,
		"grid_rows": 1,
		"grid_cols": 1,
		"layers_per_cell": 2,
		"layers": [
			{"type": "dense", "activation": "relu", "input_height": %d, "output_height": %d},
			{"type": "dense", "activation": "sigmoid", "input_height": %d, "output_height": %d}
		]
	}`, id, cells, hidden, hidden, cells)
}

// trainingBatches builds (noisy, clean) pairs in the orientation the server
// feeds the model: rows flipped before noise is added.
func trainingBatches(d grid.Dims, n int, density, level float64, seed int64) ([]nn.TrainingBatch, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(seed))
	batches := make([]nn.TrainingBatch, 0, n)
	for i := 0; i < n; i++ {
		dense := make([]int, d.Cells())
		for c := range dense {
			if rng.Float64() < density {
				dense[c] = 1
			}
		}
		flipped, err := grid.FlipHorizontal(dense, d)
		if err != nil {
			return nil, err
		}
		target := make([]float32, len(flipped))
		for c, v := range flipped {
			target[c] = float32(v)
		}
		batches = append(batches, nn.TrainingBatch{
			Input:  grid.InjectNoise(flipped, float32(level), rng.Int63()),
			Target: target,
		})
	}
	return batches, nil
}

func main() {
	flag.Parse()

	d := grid.Dims{Rows: *rows, Cols: *cols}
	batches, err := trainingBatches(d, *samples, *density, *noise, *seed)
	if err != nil {
		log.Fatalf("failed to generate training data: %v", err)
	}

	net, err := nn.BuildNetworkFromJSON(networkJSON(*modelID, d.Cells(), *hidden))
	if err != nil {
		log.Fatalf("failed to build network: %v", err)
	}
	net.InitializeWeights()
	net.BatchSize = 1

	log.Printf("[GenModel] training %s network on %d patterns for %d epochs", d, len(batches), *epochs)
	result, err := net.Train(batches, &nn.TrainingConfig{
		Epochs:       *epochs,
		LearningRate: float32(*rate),
		UseGPU:       false,
		LossType:     "mse",
		Verbose:      *verbose,
	})
	if err != nil {
		log.Fatalf("training failed: %v", err)
	}
	log.Printf("[GenModel] final loss %.6f", result.FinalLoss)

	bundle, err := net.SaveModelToString(*modelID)
	if err != nil {
		log.Fatalf("failed to serialise model: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(*out), 0o755); err != nil {
		log.Fatalf("failed to create output directory: %v", err)
	}
	if err := os.WriteFile(*out, []byte(bundle), 0o644); err != nil {
		log.Fatalf("failed to write model: %v", err)
	}
	log.Printf("[GenModel] wrote %s (%d bytes)", *out, len(bundle))
}
