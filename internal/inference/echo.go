package inference

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
)

// EchoRuntime builds sessions that copy the input tensor to the output
// tensor. The zero value echoes "input" to "output" as float32.
//
// OutputDType, DropOutput, RunErr and LoadErr let tests exercise every
// engine failure path.
type EchoRuntime struct {
	InputName   string
	OutputName  string
	OutputDType DType
	DropOutput  bool
	RunErr      error
	LoadErr     error
	// Block, when non-nil, stalls every run until it is closed.
	Block chan struct{}

	loads atomic.Int64
	runs  atomic.Int64
}

// Loads reports how many sessions were requested.
func (r *EchoRuntime) Loads() int64 { return r.loads.Load() }

// Runs reports how many session runs started.
func (r *EchoRuntime) Runs() int64 { return r.runs.Load() }

func (r *EchoRuntime) NewSession(ctx context.Context, payload []byte) (Session, error) {
	r.loads.Add(1)
	if r.LoadErr != nil {
		return nil, r.LoadErr
	}
	if len(payload) == 0 {
		return nil, errors.New("empty model payload")
	}
	return &echoSession{rt: r}, nil
}

type echoSession struct {
	rt *EchoRuntime
}

func (s *echoSession) Run(ctx context.Context, inputs map[string]Tensor) (map[string]Tensor, error) {
	r := s.rt
	r.runs.Add(1)
	if r.Block != nil {
		select {
		case <-r.Block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if r.RunErr != nil {
		return nil, r.RunErr
	}

	inName := nameOr(r.InputName, DefaultInputName)
	in, ok := inputs[inName]
	if !ok {
		return nil, fmt.Errorf("missing input tensor %q", inName)
	}
	if r.DropOutput {
		return map[string]Tensor{}, nil
	}

	out := Tensor{DType: r.OutputDType, Shape: append([]int(nil), in.Shape...)}
	switch r.OutputDType {
	case Float32:
		out.Float32 = append([]float32(nil), in.Float32...)
	case Float64:
		out.Float64 = make([]float64, len(in.Float32))
		for i, v := range in.Float32 {
			out.Float64[i] = float64(v)
		}
	case Int64:
		out.Int64 = make([]int64, len(in.Float32))
		for i, v := range in.Float32 {
			out.Int64[i] = int64(v)
		}
	}
	return map[string]Tensor{nameOr(r.OutputName, DefaultOutputName): out}, nil
}
