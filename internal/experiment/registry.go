package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/episim/internal/dynamo"
	"github.com/san-kum/episim/internal/epidemic"
	"github.com/san-kum/episim/internal/integrators"
	"github.com/san-kum/episim/internal/metrics"
)

// DefaultIntegrator is the adaptive solver used when none is named.
const DefaultIntegrator = "dopri5"

type Registry struct {
	models      map[string]func(epidemic.Params) (epidemic.Model, error)
	integrators map[string]func() dynamo.Integrator
}

func NewRegistry() *Registry {
	r := &Registry{
		models:      make(map[string]func(epidemic.Params) (epidemic.Model, error)),
		integrators: make(map[string]func() dynamo.Integrator),
	}

	r.models[string(epidemic.VariantSIR)] = func(p epidemic.Params) (epidemic.Model, error) { return epidemic.NewSIR(p) }
	r.models[string(epidemic.VariantSEIR)] = func(p epidemic.Params) (epidemic.Model, error) { return epidemic.NewSEIR(p) }

	r.integrators["dopri5"] = func() dynamo.Integrator { return integrators.NewDOPRI5() }
	r.integrators["rk4"] = func() dynamo.Integrator { return integrators.NewRK4() }
	r.integrators["euler"] = func() dynamo.Integrator { return integrators.NewEuler() }

	return r
}

func (r *Registry) GetModel(name string, p epidemic.Params) (epidemic.Model, error) {
	v, err := epidemic.ParseVariant(name)
	if err != nil {
		return nil, err
	}
	return r.models[string(v)](p)
}

func (r *Registry) GetIntegrator(name string) (dynamo.Integrator, error) {
	if name == "" {
		name = DefaultIntegrator
	}
	fn, ok := r.integrators[name]
	if !ok {
		return nil, fmt.Errorf("unknown integrator: %s", name)
	}
	return fn(), nil
}

func (r *Registry) ListModels() []string { return sortedKeys(r.models) }

func (r *Registry) ListIntegrators() []string { return sortedKeys(r.integrators) }

// DefaultMetrics returns fresh summary metrics for m.
func (r *Registry) DefaultMetrics(m epidemic.Model) []dynamo.Metric {
	n := m.Params().Population
	infected := epidemic.Index(m, epidemic.Infectious)
	removed := epidemic.Index(m, epidemic.Removed)

	return []dynamo.Metric{
		metrics.NewPeak("peak_infected", infected),
		metrics.NewPeakTime("peak_day", infected),
		metrics.NewFinalShare("attack_rate", removed, n),
		metrics.NewConservationDrift(n),
	}
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
