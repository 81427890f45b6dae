package inference

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/openfluke/loom/nn"
)

// DefaultModelID is the model identifier looked up in a loom bundle when
// none is configured.
const DefaultModelID = "dice"

// LoomRuntime loads loom JSON model bundles and runs them on the CPU.
type LoomRuntime struct {
	ModelID    string
	InputName  string
	OutputName string
}

// NewLoomRuntime returns a runtime using the default model ID and tensor
// names.
func NewLoomRuntime() *LoomRuntime {
	return &LoomRuntime{
		ModelID:    DefaultModelID,
		InputName:  DefaultInputName,
		OutputName: DefaultOutputName,
	}
}

// NewSession parses payload as a loom bundle and builds the network named by
// ModelID.
func (r *LoomRuntime) NewSession(ctx context.Context, payload []byte) (session Session, err error) {
	defer func() {
		if p := recover(); p != nil {
			session, err = nil, fmt.Errorf("loom panic while loading model: %v", p)
		}
	}()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	body := strings.TrimSpace(string(payload))
	if body == "" {
		return nil, errors.New("empty model payload")
	}

	id := r.ModelID
	if id == "" {
		id = DefaultModelID
	}
	net, err := nn.LoadModelFromString(body, id)
	if err != nil {
		return nil, fmt.Errorf("load loom model %q: %w", id, err)
	}
	if net == nil {
		return nil, fmt.Errorf("load loom model %q: empty network", id)
	}

	return &loomSession{
		net:        net,
		inputName:  nameOr(r.InputName, DefaultInputName),
		outputName: nameOr(r.OutputName, DefaultOutputName),
	}, nil
}

func nameOr(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}

// loomSession serialises forward passes; loom networks keep per-pass
// activations on the network value.
type loomSession struct {
	mu         sync.Mutex
	net        *nn.Network
	inputName  string
	outputName string
}

func (s *loomSession) Run(ctx context.Context, inputs map[string]Tensor) (map[string]Tensor, error) {
	in, ok := inputs[s.inputName]
	if !ok {
		return nil, fmt.Errorf("missing input tensor %q", s.inputName)
	}
	if in.DType != Float32 {
		return nil, fmt.Errorf("input tensor %q is %s, want float32", s.inputName, in.DType)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out, _ := s.net.ForwardCPU(in.Float32)
	if len(out) == 0 {
		return nil, errors.New("forward pass produced no output")
	}
	return map[string]Tensor{
		s.outputName: {DType: Float32, Shape: []int{len(out)}, Float32: out},
	}, nil
}
