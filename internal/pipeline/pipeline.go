// Package pipeline sequences one transform request: decode, flip, add noise,
// infer, threshold, flip back and encode.
package pipeline

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/dice/internal/grid"
	"github.com/banshee-data/dice/internal/monitoring"
)

// Inferer runs the model on one dense float buffer. *inference.Engine
// satisfies it.
type Inferer interface {
	Infer(ctx context.Context, input []float32) ([]float32, error)
}

// Recorder persists completed transforms, successful or not.
type Recorder interface {
	RecordTransform(ctx context.Context, r Result) error
}

// Result describes one transform request and every intermediate buffer.
type Result struct {
	ID       string        `json:"id"`
	Time     time.Time     `json:"time"`
	Dims     grid.Dims     `json:"dims"`
	Params   Params        `json:"params"`
	Input    []int         `json:"input"`
	Output   []int         `json:"output,omitempty"`
	Dense    []int         `json:"-"`
	Noisy    []float32     `json:"-"`
	Raw      []float32     `json:"-"`
	Binary   []int         `json:"-"`
	Mean     float64       `json:"mean"`
	StdDev   float64       `json:"stddev"`
	Active   int           `json:"active"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
	Error    string        `json:"error,omitempty"`
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithRecorder sends every Result to r.
func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

// Pipeline owns the grid shape, the parameter store and the model. Requests
// are serialised: one inference at a time, completed in arrival order.
type Pipeline struct {
	dims     grid.Dims
	engine   Inferer
	params   *ParamStore
	recorder Recorder

	mu sync.Mutex // held for the duration of a request

	lastMu sync.RWMutex
	last   *Result
}

// New builds a pipeline for a fixed grid. A nil params store gets
// DefaultParams.
func New(dims grid.Dims, engine Inferer, params *ParamStore, opts ...Option) (*Pipeline, error) {
	if err := dims.Validate(); err != nil {
		return nil, err
	}
	if engine == nil {
		return nil, fmt.Errorf("pipeline: nil inference engine")
	}
	if params == nil {
		params = NewParamStore(DefaultParams())
	}
	p := &Pipeline{dims: dims, engine: engine, params: params}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Dims returns the grid shape.
func (p *Pipeline) Dims() grid.Dims { return p.dims }

// Params returns the parameter store shared with the transports.
func (p *Pipeline) Params() *ParamStore { return p.params }

// Transform maps a sparse coordinate list to the model's sparse response.
// Any failure aborts the request and no coordinates are returned.
func (p *Pipeline) Transform(ctx context.Context, coords []int) ([]int, error) {
	res, err := p.TransformDetailed(ctx, coords)
	if err != nil {
		return nil, err
	}
	return res.Output, nil
}

// TransformDetailed is Transform returning the full Result.
func (p *Pipeline) TransformDetailed(ctx context.Context, coords []int) (Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	res := Result{
		ID:     uuid.NewString(),
		Time:   start,
		Dims:   p.dims,
		Params: p.params.Snapshot(),
		Input:  append([]int(nil), coords...),
	}
	res.Err = p.run(ctx, &res)
	res.Duration = time.Since(start)
	if res.Err != nil {
		res.Output = nil
		res.Error = res.Err.Error()
	} else {
		p.lastMu.Lock()
		last := res
		p.last = &last
		p.lastMu.Unlock()
	}

	if p.recorder != nil {
		if err := p.recorder.RecordTransform(context.WithoutCancel(ctx), res); err != nil {
			monitoring.Logf("[Pipeline] failed to record transform %s: %v", res.ID, err)
		}
	}
	return res, res.Err
}

func (p *Pipeline) run(ctx context.Context, res *Result) error {
	d := p.dims
	dense, err := grid.DecodeSparse(res.Input, d)
	if err != nil {
		return err
	}
	res.Dense = dense

	flipped, err := grid.FlipHorizontal(dense, d)
	if err != nil {
		return err
	}
	res.Noisy = grid.InjectNoise(flipped, float32(res.Params.NoiseLevel), res.Params.Seed)

	raw, err := p.engine.Infer(ctx, res.Noisy)
	if err != nil {
		return err
	}
	res.Raw = raw

	binary, err := grid.FlipHorizontal(grid.ApplyThreshold(raw, float32(res.Params.Threshold)), d)
	if err != nil {
		return err
	}
	res.Binary = binary
	res.Active = grid.Count(binary)

	out, err := grid.EncodeDense(binary, d)
	if err != nil {
		return err
	}
	res.Output = out
	res.Mean, res.StdDev = summarise(raw)
	return nil
}

// summarise returns the mean and standard deviation of the model output,
// substituting 0 for values that are not finite so Results stay encodable.
func summarise(raw []float32) (float64, float64) {
	if len(raw) == 0 {
		return 0, 0
	}
	x := make([]float64, len(raw))
	for i, v := range raw {
		x[i] = float64(v)
	}
	mean, std := stat.MeanStdDev(x, nil)
	return finite(mean), finite(std)
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// Handle runs Transform for callers without a structured error channel. On
// failure the reason goes to the operator diagnostics and ok is false.
func (p *Pipeline) Handle(ctx context.Context, coords []int) ([]int, bool) {
	out, err := p.Transform(ctx, coords)
	if err != nil {
		monitoring.Errorf("transform of %d coordinates failed: %v", len(coords), err)
		return nil, false
	}
	return out, true
}

// Last returns the most recent successful Result.
func (p *Pipeline) Last() (Result, bool) {
	p.lastMu.RLock()
	defer p.lastMu.RUnlock()
	if p.last == nil {
		return Result{}, false
	}
	return *p.last, true
}
