// Package epidemic provides compartmental epidemic models for simulation.
//
// Each model implements the [dynamo.System] interface, defining the
// mass-action differential equations governing the flow of individuals
// between compartments:
//
//   - [SIR]: Susceptible → Infectious → Removed
//   - [SEIR]: Susceptible → Exposed → Infectious → Removed
//
// Rates are derived from [Params]: the removal rate γ = 1/D for an infectious
// duration D, the transmission rate β = R0·γ, and for SEIR the incubation
// rate α = 1/incubation. There are no births, deaths or waning immunity.
//
// # Conservation
//
// The flows cancel pairwise, so the sum of all compartments stays at the
// population N for every t. This holds by construction and is not enforced:
//
//	m, _ := epidemic.NewSIR(params)
//	x0, _ := m.InitialState(epidemic.Initial{Infected: 7750, Recovered: 100})
//	dx := m.Derive(x0, 0) // dx.Sum() == 0 up to rounding
//
// Constructors validate parameters, so a model value can never divide by a
// zero population.
package epidemic
