package epidemic

import (
	"fmt"

	"github.com/san-kum/episim/internal/dynamo"
)

// Model is a compartmental system with named compartments.
type Model interface {
	dynamo.System
	Variant() Variant
	Params() Params
	Compartments() []string
	InitialState(in Initial) (dynamo.State, error)
}

// New builds the model for variant v.
func New(v Variant, p Params) (Model, error) {
	switch v {
	case VariantSIR:
		return NewSIR(p)
	case VariantSEIR:
		return NewSEIR(p)
	default:
		return nil, fmt.Errorf("unknown model: %s", v)
	}
}

// Index returns the position of compartment name in m's state vector, or -1.
func Index(m Model, name string) int {
	for i, c := range m.Compartments() {
		if c == name {
			return i
		}
	}
	return -1
}
