package sim

import (
	"context"
	"math"

	"github.com/san-kum/episim/internal/dynamo"
)

// Simulator integrates a system both ways from t=0 and merges the halves.
// Every Run allocates its own buffers. Metrics carry running state, so a
// Simulator with metrics attached must not run concurrently.
type Simulator struct {
	dyn          dynamo.System
	integrator   dynamo.Integrator
	compartments []string
	metrics      []dynamo.Metric
}

func New(dyn dynamo.System, integrator dynamo.Integrator) *Simulator {
	return &Simulator{
		dyn:        dyn,
		integrator: integrator,
		metrics:    make([]dynamo.Metric, 0),
	}
}

func (s *Simulator) AddMetric(m dynamo.Metric) { s.metrics = append(s.metrics, m) }

// SetCompartments names the state components in results.
func (s *Simulator) SetCompartments(names []string) { s.compartments = names }

// Run returns the samples on [cfg.TMin, cfg.TMax). The forward half starts at
// t=0 and supplies the t=0 sample; the backward half is integrated from the
// same x0 with a negative step, reversed, and placed in front of it.
func (s *Simulator) Run(ctx context.Context, x0 dynamo.State, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(x0) != s.dyn.StateDim() {
		return nil, dynamo.ErrDimensionMismatch
	}
	if !x0.IsValid() {
		return nil, dynamo.InvalidParam("initial_state", firstInvalid(x0), "must be finite")
	}

	fwdTimes := cfg.ForwardTimes()
	bwdTimes := cfg.BackwardTimes()

	result := &Result{
		Compartments: s.compartments,
		Times:        make([]float64, 0, cfg.SampleCount()),
		States:       make([]dynamo.State, 0, cfg.SampleCount()),
		Metrics:      make(map[string]float64),
	}

	if len(bwdTimes) > 1 {
		states, stats, err := s.integrate(ctx, x0, bwdTimes, cfg)
		if err != nil {
			return nil, err
		}
		addStats(&result.Stats, stats)
		for i := len(states) - 1; i >= 1; i-- {
			result.Times = append(result.Times, bwdTimes[i])
			result.States = append(result.States, states[i])
		}
	}

	if len(fwdTimes) > 0 {
		states, stats, err := s.integrate(ctx, x0, fwdTimes, cfg)
		if err != nil {
			return nil, err
		}
		addStats(&result.Stats, stats)
		result.Times = append(result.Times, fwdTimes...)
		result.States = append(result.States, states...)
	}

	for _, m := range s.metrics {
		m.Reset()
	}
	for i, x := range result.States {
		for _, m := range s.metrics {
			m.Observe(x, result.Times[i])
		}
	}
	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}

	return result, nil
}

func (s *Simulator) integrate(ctx context.Context, x0 dynamo.State, times []float64, cfg Config) ([]dynamo.State, dynamo.Stats, error) {
	if solver, ok := s.integrator.(dynamo.Solver); ok {
		return solver.Solve(ctx, s.dyn, x0, times)
	}
	return s.fixedSteps(ctx, x0, times, cfg.FixedDt)
}

// fixedSteps drives a plain Integrator with equal substeps of at most dt
// between consecutive sample times.
func (s *Simulator) fixedSteps(ctx context.Context, x0 dynamo.State, times []float64, dt float64) ([]dynamo.State, dynamo.Stats, error) {
	var stats dynamo.Stats
	out := make([]dynamo.State, len(times))
	x := x0.Clone()
	out[0] = x.Clone()

	for i := 1; i < len(times); i++ {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}

		span := times[i] - times[i-1]
		n := int(math.Ceil(math.Abs(span)/dt - 1e-9))
		if n < 1 {
			n = 1
		}
		h := span / float64(n)
		t := times[i-1]

		for k := 0; k < n; k++ {
			x = s.integrator.Step(s.dyn, x, t, h)
			t = times[i-1] + float64(k+1)*h
			stats.Steps++
			if !x.IsValid() {
				return nil, stats, &dynamo.SimulationError{Step: stats.Steps, Time: t, State: x, Wrapped: dynamo.ErrInvalidState}
			}
		}
		out[i] = x.Clone()
	}

	return out, stats, nil
}

func addStats(dst *dynamo.Stats, src dynamo.Stats) {
	dst.Steps += src.Steps
	dst.Rejected += src.Rejected
	dst.Evaluations += src.Evaluations
}

func firstInvalid(x dynamo.State) float64 {
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return v
		}
	}
	return 0
}
