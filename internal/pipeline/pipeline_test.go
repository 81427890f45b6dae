package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/dice/internal/grid"
	"github.com/banshee-data/dice/internal/inference"
	"github.com/banshee-data/dice/internal/monitoring"
)

func loadedEngine(t *testing.T, rt inference.Runtime, opts ...inference.Option) *inference.Engine {
	t.Helper()
	e := inference.NewEngine(rt, []byte("echo"), opts...)
	require.NoError(t, e.Load(context.Background()))
	return e
}

func newEchoPipeline(t *testing.T, opts ...Option) *Pipeline {
	t.Helper()
	p, err := New(grid.DefaultDims, loadedEngine(t, &inference.EchoRuntime{}), nil, opts...)
	require.NoError(t, err)
	return p
}

type memRecorder struct {
	mu      sync.Mutex
	results []Result
	err     error
}

func (m *memRecorder) RecordTransform(ctx context.Context, r Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, r)
	return m.err
}

func TestTransform_EchoModelPreservesPattern(t *testing.T) {
	p := newEchoPipeline(t)

	tests := []struct {
		name   string
		params Params
		in     []int
		want   []int
	}{
		{"corners default params", DefaultParams(), []int{1, 1, 16, 16}, []int{1, 1, 16, 16}},
		{"no noise", Params{Threshold: 0.5}, []int{3, 4, 2, 9}, []int{2, 9, 3, 4}},
		{"empty input", DefaultParams(), []int{}, []int{}},
		{"duplicates collapse", Params{Threshold: 0.5, NoiseLevel: 0.1, Seed: 3}, []int{5, 5, 5, 5}, []int{5, 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, p.Params().Restore(tt.params))
			got, err := p.Transform(context.Background(), tt.in)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Transform() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTransform_ThresholdAboveSignalClearsGrid(t *testing.T) {
	p := newEchoPipeline(t)
	require.NoError(t, p.Params().Restore(Params{Threshold: 1.5, NoiseLevel: 0.2}))

	got, err := p.Transform(context.Background(), []int{1, 1, 8, 8})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestTransform_Deterministic(t *testing.T) {
	p := newEchoPipeline(t)
	require.NoError(t, p.Params().Restore(Params{Threshold: 0.1, NoiseLevel: 0.5, Seed: 77}))

	in := []int{1, 2, 3, 4, 16, 1}
	first, err := p.TransformDetailed(context.Background(), in)
	require.NoError(t, err)
	second, err := p.TransformDetailed(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, first.Output, second.Output)
	assert.Equal(t, first.Noisy, second.Noisy)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestTransformDetailed_Buffers(t *testing.T) {
	p := newEchoPipeline(t)
	require.NoError(t, p.Params().Restore(Params{Threshold: 0.5}))

	res, err := p.TransformDetailed(context.Background(), []int{1, 1, 16, 16})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Dense[0])
	assert.Equal(t, 1, res.Dense[255])
	// noise is injected into the flipped buffer
	assert.Equal(t, float32(1), res.Noisy[15])
	assert.Equal(t, float32(1), res.Noisy[240])
	assert.Len(t, res.Raw, 256)
	assert.Equal(t, 2, res.Active)
	assert.InDelta(t, 2.0/256.0, res.Mean, 1e-9)
	assert.Greater(t, res.StdDev, 0.0)
	assert.Empty(t, res.Error)
	assert.Equal(t, grid.DefaultDims, res.Dims)
}

func TestTransform_Errors(t *testing.T) {
	tests := []struct {
		name    string
		rt      *inference.EchoRuntime
		in      []int
		wantErr error
	}{
		{"odd length", &inference.EchoRuntime{}, []int{1, 2, 3}, grid.ErrInvalidEncoding},
		{"out of bounds", &inference.EchoRuntime{}, []int{17, 1}, grid.ErrInvalidEncoding},
		{"execution failure", &inference.EchoRuntime{RunErr: errors.New("boom")}, []int{1, 1}, inference.ErrExecutionFailed},
		{"missing output", &inference.EchoRuntime{DropOutput: true}, []int{1, 1}, inference.ErrMissingOutput},
		{"wrong output type", &inference.EchoRuntime{OutputDType: inference.Int64}, []int{1, 1}, inference.ErrUnexpectedType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &memRecorder{}
			p, err := New(grid.DefaultDims, loadedEngine(t, tt.rt), nil, WithRecorder(rec))
			require.NoError(t, err)

			got, err := p.Transform(context.Background(), tt.in)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, got)

			_, ok := p.Last()
			assert.False(t, ok, "failed transforms must not replace Last")

			require.Len(t, rec.results, 1)
			assert.NotEmpty(t, rec.results[0].Error)
			assert.Nil(t, rec.results[0].Output)
		})
	}
}

func TestTransform_NotInitialized(t *testing.T) {
	e := inference.NewEngine(&inference.EchoRuntime{}, []byte("echo"))
	p, err := New(grid.DefaultDims, e, nil)
	require.NoError(t, err)

	_, err = p.Transform(context.Background(), []int{1, 1})
	assert.ErrorIs(t, err, inference.ErrNotInitialized)
}

func TestTransform_ShapeMismatchFromModel(t *testing.T) {
	small := grid.Dims{Rows: 2, Cols: 2}
	p, err := New(small, shortModel{}, nil)
	require.NoError(t, err)

	_, err = p.Transform(context.Background(), []int{1, 1})
	assert.ErrorIs(t, err, grid.ErrShapeMismatch)
}

type shortModel struct{}

func (shortModel) Infer(ctx context.Context, in []float32) ([]float32, error) {
	return in[:len(in)-1], nil
}

func TestTransform_Timeout(t *testing.T) {
	rt := &inference.EchoRuntime{Block: make(chan struct{})}
	defer close(rt.Block)
	p, err := New(grid.DefaultDims, loadedEngine(t, rt, inference.WithTimeout(20*time.Millisecond)), nil)
	require.NoError(t, err)

	_, err = p.Transform(context.Background(), []int{1, 1})
	assert.ErrorIs(t, err, inference.ErrTimeout)
}

func TestTransform_RecordsSuccess(t *testing.T) {
	rec := &memRecorder{err: errors.New("disk full")}
	p := newEchoPipeline(t, WithRecorder(rec))

	out, err := p.Transform(context.Background(), []int{2, 2})
	require.NoError(t, err, "recorder failures must not fail the request")
	assert.Equal(t, []int{2, 2}, out)

	require.Len(t, rec.results, 1)
	assert.Equal(t, []int{2, 2}, rec.results[0].Output)
	assert.Equal(t, DefaultParams(), rec.results[0].Params)

	last, ok := p.Last()
	require.True(t, ok)
	assert.Equal(t, rec.results[0].ID, last.ID)
}

func TestTransform_UsesOneParamSnapshot(t *testing.T) {
	// The hook fires while a request is blocked in the model; the request
	// must still finish with the values it started with.
	rt := &inference.EchoRuntime{Block: make(chan struct{})}
	p, err := New(grid.DefaultDims, loadedEngine(t, rt), NewParamStore(Params{Threshold: 0.5}))
	require.NoError(t, err)

	done := make(chan Result, 1)
	go func() {
		res, _ := p.TransformDetailed(context.Background(), []int{4, 4})
		done <- res
	}()

	require.Eventually(t, func() bool { return rt.Runs() == 1 }, time.Second, time.Millisecond)
	require.NoError(t, p.Params().SetThreshold(5))
	close(rt.Block)

	res := <-done
	require.NoError(t, res.Err)
	assert.Equal(t, 0.5, res.Params.Threshold)
	assert.Equal(t, []int{4, 4}, res.Output)
}

func TestTransform_Serialised(t *testing.T) {
	rt := &inference.EchoRuntime{Block: make(chan struct{})}
	p, err := New(grid.DefaultDims, loadedEngine(t, rt), nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 1; i <= 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = p.Transform(context.Background(), []int{i, i})
		}(i)
	}

	require.Eventually(t, func() bool { return rt.Runs() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int64(1), rt.Runs(), "only one inference may be in flight")

	close(rt.Block)
	wg.Wait()
	assert.Equal(t, int64(3), rt.Runs())
}

func TestHandle(t *testing.T) {
	original := monitoring.Logf
	defer func() { monitoring.Logf = original }()
	var logged []string
	monitoring.SetLogger(func(format string, v ...interface{}) {
		logged = append(logged, fmt.Sprintf(format, v...))
	})

	p := newEchoPipeline(t)

	out, ok := p.Handle(context.Background(), []int{1, 1, 16, 16})
	assert.True(t, ok)
	assert.Equal(t, []int{1, 1, 16, 16}, out)
	assert.Empty(t, logged)

	out, ok = p.Handle(context.Background(), []int{1})
	assert.False(t, ok)
	assert.Nil(t, out)
	require.Len(t, logged, 1)
	assert.Contains(t, logged[0], "dice error:")
	assert.Contains(t, logged[0], "invalid coordinate encoding")
}

func TestNew_Validation(t *testing.T) {
	e := inference.NewEngine(&inference.EchoRuntime{}, []byte("x"))

	_, err := New(grid.Dims{Rows: 0, Cols: 4}, e, nil)
	assert.ErrorIs(t, err, grid.ErrInvalidDims)

	_, err = New(grid.DefaultDims, nil, nil)
	assert.Error(t, err)

	p, err := New(grid.Dims{Rows: 4, Cols: 8}, e, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultParams(), p.Params().Snapshot())
	assert.Equal(t, grid.Dims{Rows: 4, Cols: 8}, p.Dims())
}
