package metrics

import (
	"math"

	"github.com/san-kum/episim/internal/dynamo"
)

// ConservationDrift is the largest relative deviation of the compartment
// total from the population over all samples.
type ConservationDrift struct {
	name       string
	population float64
	maxDrift   float64
}

func NewConservationDrift(population float64) *ConservationDrift {
	return &ConservationDrift{name: "conservation_drift", population: population}
}

func (c *ConservationDrift) Name() string { return c.name }

func (c *ConservationDrift) Observe(x dynamo.State, t float64) {
	if c.population == 0 {
		return
	}
	drift := math.Abs(x.Sum()-c.population) / c.population
	c.maxDrift = math.Max(c.maxDrift, drift)
}

func (c *ConservationDrift) Value() float64 { return c.maxDrift }

func (c *ConservationDrift) Reset() { c.maxDrift = 0 }
