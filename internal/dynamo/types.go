package dynamo

import (
	"context"
	"math"

	"gonum.org/v1/gonum/floats"
)

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Sum returns the total over all compartments.
func (s State) Sum() float64 {
	return floats.Sum(s)
}

func (s State) Norm() float64 {
	return floats.Norm(s, 2)
}

func (s State) Sub(other State) State {
	result := make(State, len(s))
	for i := range s {
		if i < len(other) {
			result[i] = s[i] - other[i]
		} else {
			result[i] = s[i]
		}
	}
	return result
}

// System is an autonomous or time-dependent ODE right-hand side.
// Derive must be pure: no side effects, no hidden state, valid for any real t.
type System interface {
	Derive(x State, t float64) State
	StateDim() int
}

type Integrator interface {
	Step(dyn System, x State, t float64, dt float64) State
}

// Stats reports the work done by a Solver.
type Stats struct {
	Steps       int
	Rejected    int
	Evaluations int
}

// Solver integrates across a grid of sample times, choosing its own internal
// steps. The grid may be increasing or decreasing but must be monotonic.
// The returned slice has one state per sample time; the first equals x0.
type Solver interface {
	Integrator
	Solve(ctx context.Context, dyn System, x0 State, times []float64) ([]State, Stats, error)
}

type Metric interface {
	Name() string
	Observe(x State, t float64)
	Value() float64
	Reset()
}
