package epidemic

import (
	"github.com/san-kum/episim/internal/dynamo"
)

// SIR state is (S, I, R).
type SIR struct {
	params Params
	n      float64
	beta   float64
	gamma  float64
}

func NewSIR(p Params) (*SIR, error) {
	if err := p.Validate(VariantSIR); err != nil {
		return nil, err
	}
	return &SIR{
		params: p,
		n:      p.Population,
		beta:   p.TransmissionRate(),
		gamma:  p.RemovalRate(),
	}, nil
}

func (m *SIR) Variant() Variant       { return VariantSIR }
func (m *SIR) Params() Params         { return m.params }
func (m *SIR) StateDim() int          { return 3 }
func (m *SIR) Compartments() []string { return []string{Susceptible, Infectious, Removed} }

// Derive returns dS = -βSI/N, dI = βSI/N - γI, dR = γI.
func (m *SIR) Derive(x dynamo.State, _ float64) dynamo.State {
	s, i := x[0], x[1]

	infection := m.beta * s * i / m.n
	recovery := m.gamma * i

	return dynamo.State{-infection, infection - recovery, recovery}
}

func (m *SIR) InitialState(in Initial) (dynamo.State, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if in.Exposed != 0 {
		return nil, dynamo.InvalidParam("exposed", in.Exposed, "SIR has no exposed compartment")
	}
	s, err := susceptible(m.n, in)
	if err != nil {
		return nil, err
	}
	return dynamo.State{s, in.Infected, in.Recovered}, nil
}
