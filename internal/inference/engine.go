package inference

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	ErrLoad            = errors.New("inference: failed to create session")
	ErrNotInitialized  = errors.New("inference: session is not initialized")
	ErrExecutionFailed = errors.New("inference: failed to run session")
	ErrMissingOutput   = errors.New("inference: missing output tensor")
	ErrUnexpectedType  = errors.New("inference: unexpected output tensor type")
	ErrTimeout         = errors.New("inference: session run timed out")
)

// State is the lifecycle state of an Engine.
type State int

const (
	Uninitialized State = iota
	Ready
)

func (s State) String() string {
	if s == Ready {
		return "ready"
	}
	return "uninitialized"
}

const (
	DefaultInputName  = "input"
	DefaultOutputName = "output"
)

// Option configures an Engine.
type Option func(*Engine)

// WithTensorNames sets the session input and output tensor names.
func WithTensorNames(input, output string) Option {
	return func(e *Engine) {
		e.inputName = input
		e.outputName = output
	}
}

// WithTimeout bounds every session run. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.timeout = d
	}
}

// Engine wraps a single session created from a fixed payload.
type Engine struct {
	runtime    Runtime
	payload    []byte
	inputName  string
	outputName string
	timeout    time.Duration

	loadOnce sync.Once
	loadErr  error

	mu      sync.RWMutex
	session Session
}

// NewEngine returns an Uninitialized engine for payload.
func NewEngine(rt Runtime, payload []byte, opts ...Option) *Engine {
	e := &Engine{
		runtime:    rt,
		payload:    payload,
		inputName:  DefaultInputName,
		outputName: DefaultOutputName,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Load creates the session. Only the first call does any work; later calls
// return the first outcome, so a failed load is never retried.
func (e *Engine) Load(ctx context.Context) error {
	e.loadOnce.Do(func() {
		if e.runtime == nil {
			e.loadErr = fmt.Errorf("%w: no runtime configured", ErrLoad)
			return
		}
		session, err := e.runtime.NewSession(ctx, e.payload)
		if err != nil {
			e.loadErr = fmt.Errorf("%w: %v", ErrLoad, err)
			return
		}
		if session == nil {
			e.loadErr = fmt.Errorf("%w: runtime returned no session", ErrLoad)
			return
		}
		e.mu.Lock()
		e.session = session
		e.mu.Unlock()
	})
	return e.loadErr
}

// State reports whether a session is available.
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.session == nil {
		return Uninitialized
	}
	return Ready
}

// LoadErr returns the error from the first Load call, if any.
func (e *Engine) LoadErr() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.session != nil {
		return nil
	}
	return e.loadErr
}

// Infer runs input through the session and returns a copy of the output
// tensor. It never returns partial results.
func (e *Engine) Infer(ctx context.Context, input []float32) ([]float32, error) {
	e.mu.RLock()
	session := e.session
	e.mu.RUnlock()
	if session == nil {
		return nil, ErrNotInitialized
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	in := make([]float32, len(input))
	copy(in, input)
	inputs := map[string]Tensor{
		e.inputName: {DType: Float32, Shape: []int{len(in)}, Float32: in},
	}

	outputs, err := e.run(ctx, session, inputs)
	if err != nil {
		return nil, err
	}

	tensor, ok := outputs[e.outputName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissingOutput, e.outputName)
	}
	if tensor.DType != Float32 {
		return nil, fmt.Errorf("%w: %q is %s", ErrUnexpectedType, e.outputName, tensor.DType)
	}

	out := make([]float32, len(tensor.Float32))
	copy(out, tensor.Float32)
	return out, nil
}

type runResult struct {
	outputs map[string]Tensor
	err     error
}

// run executes the session on its own goroutine so that a hung runtime can
// be abandoned when ctx expires. An abandoned call's result is discarded.
func (e *Engine) run(ctx context.Context, session Session, inputs map[string]Tensor) (map[string]Tensor, error) {
	done := make(chan runResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- runResult{err: fmt.Errorf("runtime panic: %v", r)}
			}
		}()
		outputs, err := session.Run(ctx, inputs)
		done <- runResult{outputs: outputs, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			if errors.Is(res.err, context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: %w", ErrTimeout, res.err)
			}
			return nil, fmt.Errorf("%w: %w", ErrExecutionFailed, res.err)
		}
		return res.outputs, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %w", ErrTimeout, ctx.Err())
		}
		return nil, fmt.Errorf("%w: %w", ErrExecutionFailed, ctx.Err())
	}
}

// Run infers input and hands the output to consume, returning its result.
// consume is only called when the run fully succeeds.
func Run[R any](ctx context.Context, e *Engine, input []float32, consume func([]float32) R) (R, error) {
	var zero R
	output, err := e.Infer(ctx, input)
	if err != nil {
		return zero, err
	}
	return consume(output), nil
}
