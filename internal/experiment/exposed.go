package experiment

import (
	"context"
	"errors"
	"math"

	"github.com/san-kum/episim/internal/dynamo"
	"github.com/san-kum/episim/internal/epidemic"
	"github.com/san-kum/episim/internal/integrators"
)

// ResolveInitial returns the state at t=0 for m. When derive is set and m is
// SEIR, E(0) is replaced by the growing-mode value for a window starting at
// tmin.
func ResolveInitial(ctx context.Context, m epidemic.Model, in epidemic.Initial, derive bool, tmin float64) (dynamo.State, epidemic.Initial, error) {
	if seir, ok := m.(*epidemic.SEIR); ok && derive {
		exposed, err := growingExposed(ctx, seir, in, tmin)
		if err != nil {
			return nil, in, err
		}
		in.Exposed = exposed
	}
	x0, err := m.InitialState(in)
	return x0, in, err
}

// growingExposed searches E(0) so that the backward solution reaches tmin on
// the growing mode, where E/I is Params.ExposedRatio at the susceptible
// share found there. Backward in time the decaying mode grows like
// exp((α+γ+r)·|tmin|), so any E(0) off this value swamps the series.
// The closed-form estimate is returned when there is nothing to integrate.
func growingExposed(ctx context.Context, m *epidemic.SEIR, in epidemic.Initial, tmin float64) (float64, error) {
	guess := m.GrowingExposed(in)
	if in.Infected == 0 || tmin >= 0 {
		return guess, nil
	}

	p := m.Params()
	solver := integrators.NewDOPRI5()
	times := []float64{0, tmin}

	// mismatch is positive when E(tmin) lies above the growing mode.
	mismatch := func(e float64) (float64, error) {
		start := in
		start.Exposed = e
		x0, err := m.InitialState(start)
		if err != nil {
			return 0, err
		}
		states, _, err := solver.Solve(ctx, m, x0, times)
		var se *dynamo.SimulationError
		if errors.As(err, &se) && len(se.State) == len(x0) {
			// ran away along the decaying mode; E carries its sign
			return se.State[1], nil
		}
		if err != nil {
			return 0, err
		}
		x := states[1]
		d := x[1] - p.ExposedRatio(x[0]/p.Population)*x[2]
		if math.IsNaN(d) {
			return x[1], nil
		}
		return d, nil
	}

	lo := 0.0
	d, err := mismatch(lo)
	if err != nil {
		return 0, err
	}
	if d >= 0 {
		return lo, nil
	}

	ceiling := 0.999 * (p.Population - in.Infected - in.Recovered)
	hi := math.Min(2*guess, ceiling)
	for {
		d, err := mismatch(hi)
		if err != nil {
			return 0, err
		}
		if d >= 0 {
			break
		}
		if hi >= ceiling {
			return guess, nil
		}
		hi = math.Min(2*hi, ceiling)
	}

	for range 200 {
		mid := lo + (hi-lo)/2
		if mid <= lo || mid >= hi || hi-lo <= 1e-12*hi {
			break
		}
		d, err := mismatch(mid)
		if err != nil {
			return 0, err
		}
		if d >= 0 {
			hi = mid
		} else {
			lo = mid
		}
	}
	return lo + (hi-lo)/2, nil
}
