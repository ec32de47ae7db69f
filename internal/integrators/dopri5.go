package integrators

import (
	"context"
	"math"

	"github.com/san-kum/episim/internal/dynamo"
)

// Dormand-Prince coefficients (RK45)
var (
	a2 = 1.0 / 5.0
	a3 = 3.0 / 10.0
	a4 = 4.0 / 5.0
	a5 = 8.0 / 9.0

	b21 = 1.0 / 5.0
	b31 = 3.0 / 40.0
	b32 = 9.0 / 40.0
	b41 = 44.0 / 45.0
	b42 = -56.0 / 15.0
	b43 = 32.0 / 9.0
	b51 = 19372.0 / 6561.0
	b52 = -25360.0 / 2187.0
	b53 = 64448.0 / 6561.0
	b54 = -212.0 / 729.0
	b61 = 9017.0 / 3168.0
	b62 = -355.0 / 33.0
	b63 = 46732.0 / 5247.0
	b64 = 49.0 / 176.0
	b65 = -5103.0 / 18656.0

	c1 = 35.0 / 384.0
	c3 = 500.0 / 1113.0
	c4 = 125.0 / 192.0
	c5 = -2187.0 / 6784.0
	c6 = 11.0 / 84.0

	dc1 = c1 - 5179.0/57600.0
	dc3 = c3 - 7571.0/16695.0
	dc4 = c4 - 393.0/640.0
	dc5 = c5 - -92097.0/339200.0
	dc6 = c6 - 187.0/2100.0
	dc7 = -1.0 / 40.0
)

const (
	DefaultRelTol   = 1e-8
	DefaultAbsTol   = 1e-6
	DefaultMaxSteps = 100000

	// stages evaluated per attempt; k1 is carried over from the previous step
	evalsPerAttempt = 6
)

// DOPRI5 is an adaptive Dormand-Prince 5(4) solver with embedded error
// control. Tolerances are mixed: each component is scaled by
// AbsTol + RelTol*|x|.
type DOPRI5 struct {
	RelTol float64
	AbsTol float64
	// MaxSteps bounds the attempts, accepted or rejected, between two
	// consecutive sample times.
	MaxSteps int

	safety   float64
	minScale float64
	maxScale float64
}

func NewDOPRI5() *DOPRI5 {
	return &DOPRI5{
		RelTol:   DefaultRelTol,
		AbsTol:   DefaultAbsTol,
		MaxSteps: DefaultMaxSteps,
		safety:   0.9,
		minScale: 0.2,
		maxScale: 10.0,
	}
}

// Step advances one fixed step of size dt using the fifth-order solution.
func (d *DOPRI5) Step(dyn dynamo.System, x dynamo.State, t, dt float64) dynamo.State {
	xNew, _, _ := d.attempt(dyn, x, dyn.Derive(x, t), t, dt)
	return xNew
}

// Solve integrates x0 across times. Output states land exactly on the sample
// times; internal steps are truncated at each sample instead of interpolated.
func (d *DOPRI5) Solve(ctx context.Context, dyn dynamo.System, x0 dynamo.State, times []float64) ([]dynamo.State, dynamo.Stats, error) {
	var stats dynamo.Stats

	if len(x0) != dyn.StateDim() {
		return nil, stats, dynamo.ErrDimensionMismatch
	}
	if len(times) == 0 {
		return nil, stats, nil
	}
	dir, err := direction(times)
	if err != nil {
		return nil, stats, err
	}

	out := make([]dynamo.State, len(times))
	out[0] = x0.Clone()
	if len(times) == 1 || len(x0) == 0 {
		for i := 1; i < len(out); i++ {
			out[i] = x0.Clone()
		}
		return out, stats, nil
	}

	x := x0.Clone()
	t := times[0]
	f := dyn.Derive(x, t)
	stats.Evaluations++
	if !f.IsValid() {
		return nil, stats, d.fail(stats, t, x, dynamo.ErrInvalidState)
	}
	h := d.initialStep(dyn, x, f, t, dir, &stats)

	for i := 1; i < len(times); i++ {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}

		target := times[i]
		nonFinite := false
		attempts := 0
		for (target-t)*dir > 0 {
			if attempts >= d.MaxSteps {
				return nil, stats, d.fail(stats, t, x, dynamo.ErrStepLimit)
			}
			if math.Abs(h) < minStep(t) {
				if nonFinite {
					return nil, stats, d.fail(stats, t, x, dynamo.ErrInvalidState)
				}
				return nil, stats, d.fail(stats, t, x, dynamo.ErrStepTooSmall)
			}

			nominal := h
			last := (t+h-target)*dir >= 0
			if last {
				h = target - t
			}

			xNew, fNew, errNorm := d.attempt(dyn, x, f, t, h)
			stats.Evaluations += evalsPerAttempt
			attempts++

			if math.IsNaN(errNorm) || math.IsInf(errNorm, 0) || !xNew.IsValid() || !fNew.IsValid() {
				nonFinite = true
				stats.Rejected++
				h *= d.minScale
				continue
			}
			nonFinite = false

			if errNorm > 1 {
				stats.Rejected++
				h *= math.Max(d.minScale, d.safety*math.Pow(errNorm, -0.2))
				continue
			}

			stats.Steps++
			if last {
				t = target
			} else {
				t += h
			}
			x, f = xNew, fNew

			scale := d.maxScale
			if errNorm > 0 {
				scale = math.Min(d.maxScale, d.safety*math.Pow(errNorm, -0.2))
			}
			next := h * scale
			if last && math.Abs(nominal) > math.Abs(next) {
				// a truncated step says nothing about how large the next may be
				next = nominal
			}
			h = next
		}

		out[i] = x.Clone()
	}

	return out, stats, nil
}

// attempt performs one trial step from (t, x) with slope k1. It returns the
// fifth-order solution, the slope there (the next step's k1), and the scaled
// RMS error norm; a norm <= 1 means the step is acceptable.
func (d *DOPRI5) attempt(dyn dynamo.System, x, k1 dynamo.State, t, h float64) (dynamo.State, dynamo.State, float64) {
	n := len(x)
	tmp := make(dynamo.State, n)

	for i := 0; i < n; i++ {
		tmp[i] = x[i] + h*b21*k1[i]
	}
	k2 := dyn.Derive(tmp, t+a2*h)

	for i := 0; i < n; i++ {
		tmp[i] = x[i] + h*(b31*k1[i]+b32*k2[i])
	}
	k3 := dyn.Derive(tmp, t+a3*h)

	for i := 0; i < n; i++ {
		tmp[i] = x[i] + h*(b41*k1[i]+b42*k2[i]+b43*k3[i])
	}
	k4 := dyn.Derive(tmp, t+a4*h)

	for i := 0; i < n; i++ {
		tmp[i] = x[i] + h*(b51*k1[i]+b52*k2[i]+b53*k3[i]+b54*k4[i])
	}
	k5 := dyn.Derive(tmp, t+a5*h)

	for i := 0; i < n; i++ {
		tmp[i] = x[i] + h*(b61*k1[i]+b62*k2[i]+b63*k3[i]+b64*k4[i]+b65*k5[i])
	}
	k6 := dyn.Derive(tmp, t+h)

	xNew := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		xNew[i] = x[i] + h*(c1*k1[i]+c3*k3[i]+c4*k4[i]+c5*k5[i]+c6*k6[i])
	}
	k7 := dyn.Derive(xNew, t+h)

	if n == 0 {
		return xNew, k7, 0
	}

	sum := 0.0
	for i := 0; i < n; i++ {
		errEst := h * (dc1*k1[i] + dc3*k3[i] + dc4*k4[i] + dc5*k5[i] + dc6*k6[i] + dc7*k7[i])
		sc := d.AbsTol + d.RelTol*math.Max(math.Abs(x[i]), math.Abs(xNew[i]))
		r := errEst / sc
		sum += r * r
	}

	return xNew, k7, math.Sqrt(sum / float64(n))
}

// initialStep picks a starting step from the local scale of x and its slope.
func (d *DOPRI5) initialStep(dyn dynamo.System, x, f dynamo.State, t, dir float64, stats *dynamo.Stats) float64 {
	n := float64(len(x))

	var d0, d1 float64
	for i := range x {
		sc := d.AbsTol + d.RelTol*math.Abs(x[i])
		d0 += (x[i] / sc) * (x[i] / sc)
		d1 += (f[i] / sc) * (f[i] / sc)
	}
	d0 = math.Sqrt(d0 / n)
	d1 = math.Sqrt(d1 / n)

	h0 := 1e-6
	if d0 >= 1e-5 && d1 >= 1e-5 {
		h0 = 0.01 * d0 / d1
	}

	x1 := make(dynamo.State, len(x))
	for i := range x {
		x1[i] = x[i] + dir*h0*f[i]
	}
	f1 := dyn.Derive(x1, t+dir*h0)
	stats.Evaluations++

	var d2 float64
	for i := range x {
		sc := d.AbsTol + d.RelTol*math.Abs(x[i])
		r := (f1[i] - f[i]) / sc
		d2 += r * r
	}
	d2 = math.Sqrt(d2/n) / h0

	var h1 float64
	if m := math.Max(d1, d2); m <= 1e-15 {
		h1 = math.Max(1e-6, h0*1e-3)
	} else {
		h1 = math.Pow(0.01/m, 0.2)
	}

	h := math.Min(100*h0, h1)
	if !(h > 0) || math.IsInf(h, 0) {
		h = 1e-6
	}
	return dir * h
}

func (d *DOPRI5) fail(stats dynamo.Stats, t float64, x dynamo.State, cause error) error {
	return &dynamo.SimulationError{Step: stats.Steps, Time: t, State: x.Clone(), Wrapped: cause}
}

func minStep(t float64) float64 {
	const eps = 2.220446049250313e-16
	return 64 * eps * math.Max(1, math.Abs(t))
}

// direction returns +1 or -1 for a strictly monotonic grid.
func direction(times []float64) (float64, error) {
	for _, t := range times {
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0, dynamo.InvalidParam("time", t, "sample times must be finite")
		}
	}
	if len(times) < 2 {
		return 1, nil
	}

	dir := 1.0
	if times[1] < times[0] {
		dir = -1.0
	}
	for i := 1; i < len(times); i++ {
		if (times[i]-times[i-1])*dir <= 0 {
			return 0, dynamo.InvalidParam("time", times[i], "sample times must be strictly monotonic")
		}
	}
	return dir, nil
}
