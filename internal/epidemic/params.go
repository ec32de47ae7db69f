package epidemic

import (
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/episim/internal/dynamo"
)

type Variant string

const (
	VariantSIR  Variant = "sir"
	VariantSEIR Variant = "seir"
)

// ParseVariant accepts a case-insensitive model name.
func ParseVariant(name string) (Variant, error) {
	switch v := Variant(strings.ToLower(strings.TrimSpace(name))); v {
	case VariantSIR, VariantSEIR:
		return v, nil
	default:
		return "", fmt.Errorf("unknown model: %s", name)
	}
}

// Compartment names.
const (
	Susceptible = "S"
	Exposed     = "E"
	Infectious  = "I"
	Removed     = "R"
)

// Params holds the epidemiological inputs of a run.
type Params struct {
	Population     float64 `json:"population" yaml:"population"`
	R0             float64 `json:"r0" yaml:"r0"`
	InfectiousDays float64 `json:"infectious_days" yaml:"infectious_days"`
	IncubationDays float64 `json:"incubation_days,omitempty" yaml:"incubation_days,omitempty"`
}

// RemovalRate is γ, the per-day rate of leaving the infectious compartment.
func (p Params) RemovalRate() float64 {
	return 1 / p.InfectiousDays
}

// TransmissionRate is β = R0·γ.
func (p Params) TransmissionRate() float64 {
	return p.R0 * p.RemovalRate()
}

// IncubationRate is α, the per-day rate of becoming infectious.
func (p Params) IncubationRate() float64 {
	return 1 / p.IncubationDays
}

// HerdImmunityThreshold is the immune fraction 1 - 1/R0 above which the
// epidemic declines. It is zero when R0 <= 1.
func (p Params) HerdImmunityThreshold() float64 {
	if p.R0 <= 1 {
		return 0
	}
	return 1 - 1/p.R0
}

// GrowthRate is the per-day exponential growth rate r of the linearised
// SEIR system while a share s of the population is susceptible: the largest
// root of (r+α)(r+γ) = αβs. It is negative when R0·s < 1.
func (p Params) GrowthRate(s float64) float64 {
	a, g := p.IncubationRate(), p.RemovalRate()
	b := a + g
	c := a*g - a*p.TransmissionRate()*s
	return (-b + math.Sqrt(b*b-4*c)) / 2
}

// ExposedRatio is E/I along the growing mode at susceptible share s.
func (p Params) ExposedRatio(s float64) float64 {
	return (p.GrowthRate(s) + p.RemovalRate()) / p.IncubationRate()
}

// Validate checks the parameters required by variant v.
func (p Params) Validate(v Variant) error {
	if err := positive("population", p.Population); err != nil {
		return err
	}
	if err := positive("r0", p.R0); err != nil {
		return err
	}
	if err := positive("infectious_days", p.InfectiousDays); err != nil {
		return err
	}
	if v == VariantSEIR {
		if err := positive("incubation_days", p.IncubationDays); err != nil {
			return err
		}
	}
	return nil
}

// Initial holds the caller-supplied initial compartments. The susceptible
// compartment is derived as N minus the others.
type Initial struct {
	Exposed   float64 `json:"exposed,omitempty" yaml:"exposed,omitempty"`
	Infected  float64 `json:"infected" yaml:"infected"`
	Recovered float64 `json:"recovered" yaml:"recovered"`
}

func (in Initial) validate() error {
	if err := nonNegative("exposed", in.Exposed); err != nil {
		return err
	}
	if err := nonNegative("infected", in.Infected); err != nil {
		return err
	}
	return nonNegative("recovered", in.Recovered)
}

// susceptible returns N - E - I - R, rejecting a negative result.
func susceptible(n float64, in Initial) (float64, error) {
	s := n - in.Exposed - in.Infected - in.Recovered
	if s < 0 {
		return 0, dynamo.InvalidParam("susceptible", s, "initial compartments exceed population")
	}
	return s, nil
}

func positive(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return dynamo.InvalidParam(field, v, "must be positive and finite")
	}
	return nil
}

func nonNegative(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return dynamo.InvalidParam(field, v, "must be non-negative and finite")
	}
	return nil
}
