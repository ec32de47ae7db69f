package epidemic

import (
	"github.com/san-kum/episim/internal/dynamo"
)

// SEIR state is (S, E, I, R). The exposed compartment delays infectiousness
// by a mean of IncubationDays.
type SEIR struct {
	params Params
	n      float64
	beta   float64
	gamma  float64
	alpha  float64
}

func NewSEIR(p Params) (*SEIR, error) {
	if err := p.Validate(VariantSEIR); err != nil {
		return nil, err
	}
	return &SEIR{
		params: p,
		n:      p.Population,
		beta:   p.TransmissionRate(),
		gamma:  p.RemovalRate(),
		alpha:  p.IncubationRate(),
	}, nil
}

func (m *SEIR) Variant() Variant { return VariantSEIR }
func (m *SEIR) Params() Params   { return m.params }
func (m *SEIR) StateDim() int    { return 4 }
func (m *SEIR) Compartments() []string {
	return []string{Susceptible, Exposed, Infectious, Removed}
}

func (m *SEIR) Derive(x dynamo.State, _ float64) dynamo.State {
	s, e, i := x[0], x[1], x[2]

	infection := m.beta * s * i / m.n
	onset := m.alpha * e
	recovery := m.gamma * i

	return dynamo.State{-infection, infection - onset, onset - recovery, recovery}
}

func (m *SEIR) InitialState(in Initial) (dynamo.State, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	s, err := susceptible(m.n, in)
	if err != nil {
		return nil, err
	}
	return dynamo.State{s, in.Exposed, in.Infected, in.Recovered}, nil
}

// GrowingExposed returns the E(0) that puts in.Infected on the growing mode
// of the linearised system, where E = ExposedRatio(s)·I. The susceptible
// share s depends on E itself, so the estimate is refined a few times.
// in.Exposed is ignored.
func (m *SEIR) GrowingExposed(in Initial) float64 {
	e := 0.0
	for range 4 {
		s := (m.n - e - in.Infected - in.Recovered) / m.n
		e = m.params.ExposedRatio(s) * in.Infected
	}
	return e
}
