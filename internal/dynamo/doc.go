// Package dynamo provides core simulation primitives for compartmental models.
//
// The package defines the fundamental interfaces and types shared by the
// models, integrators and the simulator:
//
//   - [State]: vector of compartment quantities
//   - [System]: interface for ODE systems (dX/dt = f(X, t))
//   - [Integrator]: single fixed-step integrator
//   - [Solver]: integrator that controls its own internal step size
//   - [Metric]: per-sample observer summarised into one value
//
// # Errors
//
// Every failure reported by the core belongs to one of two classes that
// callers can tell apart with errors.Is:
//
//	errors.Is(err, dynamo.ErrInvalidParameter) // rejected before integration
//	errors.Is(err, dynamo.ErrNumerical)        // trajectory became degenerate
//
// # Thread Safety
//
// Systems and integrators are immutable after construction and may be shared
// between goroutines. Metrics carry running state and must not be shared.
package dynamo
