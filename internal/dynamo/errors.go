package dynamo

import (
	"errors"
	"fmt"
)

// Error classes. Concrete errors wrap exactly one of these.
var (
	// ErrInvalidParameter indicates the run was rejected before integration.
	ErrInvalidParameter = errors.New("dynamo: invalid parameter")

	// ErrNumerical indicates the parameters were accepted but the solver failed.
	ErrNumerical = errors.New("dynamo: numerical failure")
)

var (
	// ErrInvalidState indicates a state vector containing NaN or Inf.
	ErrInvalidState = fmt.Errorf("%w: state contains NaN or Inf", ErrNumerical)

	// ErrStepTooSmall indicates adaptive timestep became too small.
	ErrStepTooSmall = fmt.Errorf("%w: adaptive timestep below minimum", ErrNumerical)

	// ErrStepLimit indicates the solver exhausted its step budget.
	ErrStepLimit = fmt.Errorf("%w: step budget exhausted", ErrNumerical)

	// ErrDimensionMismatch indicates mismatched state and system dimensions.
	ErrDimensionMismatch = fmt.Errorf("%w: dimension mismatch between state and system", ErrInvalidParameter)
)

// ParamError describes a rejected input value.
type ParamError struct {
	Field  string
	Value  float64
	Reason string
}

// InvalidParam returns a *ParamError for field.
func InvalidParam(field string, value float64, reason string) error {
	return &ParamError{Field: field, Value: value, Reason: reason}
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("dynamo: invalid parameter %s=%g: %s", e.Field, e.Value, e.Reason)
}

func (e *ParamError) Unwrap() error {
	return ErrInvalidParameter
}

// SimulationError wraps an error with simulation context.
type SimulationError struct {
	Step    int
	Time    float64
	State   State
	Wrapped error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %v", e.Step, e.Time, e.Wrapped)
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}

// IsInvalidParameter reports whether err was raised while validating inputs.
func IsInvalidParameter(err error) bool {
	return errors.Is(err, ErrInvalidParameter)
}

// IsNumerical reports whether err was raised by a failing integration.
func IsNumerical(err error) bool {
	return errors.Is(err, ErrNumerical)
}
