package experiment

import (
	"context"
	"fmt"

	"github.com/san-kum/episim/internal/dynamo"
	"github.com/san-kum/episim/internal/epidemic"
	"github.com/san-kum/episim/internal/observe"
	"github.com/san-kum/episim/internal/sim"
)

// Config is a fully resolved scenario.
type Config struct {
	Model      string
	Integrator string
	Params     epidemic.Params
	Initial    epidemic.Initial
	// DeriveExposed replaces Initial.Exposed, for SEIR, with the value that
	// starts the run on the epidemic's growing mode. SIR ignores it.
	DeriveExposed bool
	Window        sim.Config
	// Epoch is the calendar date of t=0.
	Epoch observe.Date
	// Observations are optional; when present they are aligned to Epoch.
	Observations *observe.Set
}

// Outcome is the model series together with the aligned observations.
type Outcome struct {
	Model  epidemic.Variant
	Params epidemic.Params
	// Initial is the condition at t=0, with any derived E(0) filled in.
	Initial      epidemic.Initial
	Epoch        observe.Date
	Result       *sim.Result
	Observations []observe.Point
	Dataset      string
}

// DateAt returns the calendar date of sample time t, truncated to whole days.
func (o *Outcome) DateAt(t float64) observe.Date {
	day := int(t)
	if float64(day) > t {
		day--
	}
	return o.Epoch.AddDays(day)
}

type Experiment struct {
	cfg       Config
	model     epidemic.Model
	simulator *sim.Simulator
	x0        dynamo.State
}

// New resolves the model and integrator and validates every input, so a
// returned Experiment only fails at Run for numerical reasons.
func New(reg *Registry, cfg Config) (*Experiment, error) {
	model, err := reg.GetModel(cfg.Model, cfg.Params)
	if err != nil {
		return nil, err
	}
	integ, err := reg.GetIntegrator(cfg.Integrator)
	if err != nil {
		return nil, err
	}
	if err := cfg.Window.Validate(); err != nil {
		return nil, err
	}
	seir, isSEIR := model.(*epidemic.SEIR)
	if cfg.DeriveExposed && isSEIR {
		cfg.Initial.Exposed = seir.GrowingExposed(cfg.Initial)
	}
	x0, err := model.InitialState(cfg.Initial)
	if err != nil {
		return nil, err
	}
	if cfg.Observations != nil && cfg.Epoch.IsZero() {
		return nil, fmt.Errorf("observations %q need an epoch date", cfg.Observations.Name)
	}

	s := sim.New(model, integ)
	s.SetCompartments(model.Compartments())
	for _, m := range reg.DefaultMetrics(model) {
		s.AddMetric(m)
	}

	return &Experiment{cfg: cfg, model: model, simulator: s, x0: x0}, nil
}

func (e *Experiment) Model() epidemic.Model { return e.model }

// Run integrates the scenario. An Experiment must not be run concurrently.
func (e *Experiment) Run(ctx context.Context) (*Outcome, error) {
	x0, initial := e.x0, e.cfg.Initial
	if e.cfg.DeriveExposed && e.cfg.Window.TMin < 0 {
		var err error
		x0, initial, err = ResolveInitial(ctx, e.model, initial, true, float64(e.cfg.Window.TMin))
		if err != nil {
			return nil, err
		}
	}

	res, err := e.simulator.Run(ctx, x0, e.cfg.Window)
	if err != nil {
		return nil, err
	}
	res.Metrics["herd_immunity_threshold"] = e.cfg.Params.HerdImmunityThreshold()

	out := &Outcome{
		Model:   e.model.Variant(),
		Params:  e.cfg.Params,
		Initial: initial,
		Epoch:   e.cfg.Epoch,
		Result:  res,
	}
	if e.cfg.Observations != nil {
		out.Observations = e.cfg.Observations.Align(e.cfg.Epoch)
		out.Dataset = e.cfg.Observations.Name
	}
	return out, nil
}
