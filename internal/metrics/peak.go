package metrics

import (
	"math"

	"github.com/san-kum/episim/internal/dynamo"
)

// Peak records the largest value of one compartment.
type Peak struct {
	name  string
	index int
	value float64
	time  float64
	seen  bool
}

func NewPeak(name string, index int) *Peak {
	return &Peak{name: name, index: index}
}

func (p *Peak) Name() string { return p.name }

func (p *Peak) Observe(x dynamo.State, t float64) {
	if p.index >= len(x) {
		return
	}
	if !p.seen || x[p.index] > p.value {
		p.value = x[p.index]
		p.time = t
		p.seen = true
	}
}

func (p *Peak) Value() float64 {
	if !p.seen {
		return math.NaN()
	}
	return p.value
}

// Time is the earliest time at which the peak was reached.
func (p *Peak) Time() float64 {
	if !p.seen {
		return math.NaN()
	}
	return p.time
}

func (p *Peak) Reset() {
	p.value, p.time, p.seen = 0, 0, false
}

// PeakTime reports the time of a Peak as its own metric.
type PeakTime struct {
	*Peak
	name string
}

func NewPeakTime(name string, index int) *PeakTime {
	return &PeakTime{Peak: NewPeak(name, index), name: name}
}

func (p *PeakTime) Name() string   { return p.name }
func (p *PeakTime) Value() float64 { return p.Peak.Time() }
