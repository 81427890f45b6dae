package pipeline

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"
)

// ErrInvalidParams is returned when a parameter value cannot be used by the
// pipeline.
var ErrInvalidParams = errors.New("pipeline: invalid parameters")

// Params are the three caller-tunable scalars applied to every transform.
type Params struct {
	Threshold  float64 `json:"threshold"`
	NoiseLevel float64 `json:"noise_level"`
	Seed       int64   `json:"seed"`
}

// DefaultParams returns threshold 0.5, noise level 0.2 and seed 0.
func DefaultParams() Params {
	return Params{Threshold: 0.5, NoiseLevel: 0.2, Seed: 0}
}

// Validate rejects non-finite values and a negative noise level.
func (p Params) Validate() error {
	if math.IsNaN(p.Threshold) || math.IsInf(p.Threshold, 0) {
		return fmt.Errorf("%w: threshold must be finite, got %v", ErrInvalidParams, p.Threshold)
	}
	if math.IsNaN(p.NoiseLevel) || math.IsInf(p.NoiseLevel, 0) || p.NoiseLevel < 0 {
		return fmt.Errorf("%w: noise level must be finite and non-negative, got %v", ErrInvalidParams, p.NoiseLevel)
	}
	return nil
}

// ParamStore guards Params against concurrent access from the transports.
// Requests read one Snapshot at start, so a request never observes a mix of
// old and new values.
type ParamStore struct {
	// hookMu orders updates end to end so hooks see them in commit order.
	hookMu sync.Mutex
	mu     sync.RWMutex
	p      Params
	hooks  []func(Params)
}

// NewParamStore returns a store holding p.
func NewParamStore(p Params) *ParamStore {
	return &ParamStore{p: p}
}

// OnChange registers f to be called with the new values after every
// successful update. Hooks run on the updating goroutine, outside the value
// lock but before the next update commits. A hook must not update the store.
func (s *ParamStore) OnChange(f func(Params)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, f)
}

// Snapshot returns a consistent copy of all three parameters.
func (s *ParamStore) Snapshot() Params {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.p
}

// Restore replaces all parameters at once.
func (s *ParamStore) Restore(p Params) error {
	_, err := s.Update(func(cur *Params) { *cur = p })
	return err
}

func (s *ParamStore) Threshold() float64 { return s.Snapshot().Threshold }

func (s *ParamStore) NoiseLevel() float64 { return s.Snapshot().NoiseLevel }

func (s *ParamStore) Seed() int64 { return s.Snapshot().Seed }

func (s *ParamStore) SetThreshold(v float64) error {
	_, err := s.Update(func(cur *Params) { cur.Threshold = v })
	return err
}

func (s *ParamStore) SetNoiseLevel(v float64) error {
	_, err := s.Update(func(cur *Params) { cur.NoiseLevel = v })
	return err
}

func (s *ParamStore) SetSeed(v int64) {
	_, _ = s.Update(func(cur *Params) { cur.Seed = v })
}

// Update applies apply to a copy of the current values and stores the result
// if it validates. The read, change and write happen under one lock.
func (s *ParamStore) Update(apply func(*Params)) (Params, error) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()

	s.mu.Lock()
	next := s.p
	apply(&next)
	if err := next.Validate(); err != nil {
		cur := s.p
		s.mu.Unlock()
		return cur, err
	}
	s.p = next
	hooks := slices.Clone(s.hooks)
	s.mu.Unlock()

	for _, f := range hooks {
		f(next)
	}
	return next, nil
}
