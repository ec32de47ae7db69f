package metrics

import (
	"math"

	"github.com/san-kum/episim/internal/dynamo"
)

// FinalShare is the fraction of the population in one compartment at the
// latest observed time. With the removed compartment it is the attack rate.
type FinalShare struct {
	name       string
	index      int
	population float64
	latest     float64
	value      float64
	seen       bool
}

func NewFinalShare(name string, index int, population float64) *FinalShare {
	return &FinalShare{name: name, index: index, population: population}
}

func (f *FinalShare) Name() string { return f.name }

func (f *FinalShare) Observe(x dynamo.State, t float64) {
	if f.index >= len(x) {
		return
	}
	if !f.seen || t >= f.latest {
		f.latest = t
		f.value = x[f.index]
		f.seen = true
	}
}

func (f *FinalShare) Value() float64 {
	if !f.seen || f.population == 0 {
		return math.NaN()
	}
	return f.value / f.population
}

func (f *FinalShare) Reset() {
	f.latest, f.value, f.seen = 0, 0, false
}
