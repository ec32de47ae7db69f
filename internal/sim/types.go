package sim

import (
	"math"

	"github.com/san-kum/episim/internal/dynamo"
)

// MinResolution is one minute, expressed in days.
const MinResolution = 1.0 / 1440

// Config describes the sample window of a run relative to the epoch t=0.
type Config struct {
	// TMin and TMax bound the half-open window [TMin, TMax).
	TMin int
	TMax int
	// Resolution is the spacing between samples, in days.
	Resolution float64
	// FixedDt is the internal step used when the integrator is not a
	// dynamo.Solver.
	FixedDt float64
}

func DefaultConfig() Config {
	return Config{
		TMin:       -20,
		TMax:       150,
		Resolution: 1,
		FixedDt:    0.1,
	}
}

// Validate rejects windows that do not contain the epoch or are empty.
func (c Config) Validate() error {
	if c.TMin > 0 {
		return dynamo.InvalidParam("t_min", float64(c.TMin), "must be <= 0")
	}
	if c.TMax < 0 {
		return dynamo.InvalidParam("t_max", float64(c.TMax), "must be >= 0")
	}
	if c.TMax == c.TMin {
		return dynamo.InvalidParam("t_max", float64(c.TMax), "window is empty")
	}
	if math.IsNaN(c.Resolution) || math.IsInf(c.Resolution, 0) || c.Resolution < MinResolution {
		return dynamo.InvalidParam("resolution", c.Resolution, "must be finite and at least one minute")
	}
	if math.IsNaN(c.FixedDt) || math.IsInf(c.FixedDt, 0) || c.FixedDt < 1e-6 {
		return dynamo.InvalidParam("fixed_dt", c.FixedDt, "must be finite and at least 1e-6")
	}
	return nil
}

// ForwardTimes returns 0, h, 2h, ... strictly below TMax.
func (c Config) ForwardTimes() []float64 {
	return grid(float64(c.TMax), c.Resolution, func(t float64) bool { return t < float64(c.TMax) })
}

// BackwardTimes returns 0, -h, -2h, ... down to and including TMin.
func (c Config) BackwardTimes() []float64 {
	return grid(float64(c.TMin), -c.Resolution, func(t float64) bool { return t >= float64(c.TMin) })
}

// SampleCount is the number of samples in the merged series.
func (c Config) SampleCount() int {
	n := len(c.ForwardTimes())
	if back := len(c.BackwardTimes()); back > 1 {
		n += back - 1
	}
	return n
}

// grid steps from zero by h while keep holds. Times are i*h, not a running
// sum, so integer resolutions produce exact integers.
func grid(bound, h float64, keep func(float64) bool) []float64 {
	const slack = 1e-9
	if !(math.Abs(h) > 0) || math.IsInf(h, 0) {
		return nil
	}
	n := int(math.Abs(bound/h)) + 2
	times := make([]float64, 0, n)
	for i := 0; ; i++ {
		t := float64(i) * h
		if math.Abs(t-bound) < slack*math.Abs(h) {
			t = bound
		}
		if !keep(t) {
			break
		}
		times = append(times, t)
	}
	return times
}

// Result is a merged, strictly increasing time series.
type Result struct {
	Compartments []string
	Times        []float64
	States       []dynamo.State
	Metrics      map[string]float64
	Stats        dynamo.Stats
}

func (r *Result) Len() int { return len(r.Times) }

// Column returns the trajectory of compartment idx.
func (r *Result) Column(idx int) []float64 {
	col := make([]float64, len(r.States))
	for i, s := range r.States {
		if idx < len(s) {
			col[i] = s[idx]
		}
	}
	return col
}

// Series returns the trajectory of the named compartment.
func (r *Result) Series(name string) ([]float64, bool) {
	for i, c := range r.Compartments {
		if c == name {
			return r.Column(i), true
		}
	}
	return nil, false
}

// IndexOf returns the sample index for time t, or -1.
func (r *Result) IndexOf(t float64) int {
	lo, hi := 0, len(r.Times)
	for lo < hi {
		mid := (lo + hi) / 2
		if r.Times[mid] < t {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(r.Times) && math.Abs(r.Times[lo]-t) < 1e-9 {
		return lo
	}
	return -1
}
