package export

import (
	"encoding/json"
	"io"
	"math"

	"github.com/san-kum/episim/internal/dynamo"
	"github.com/san-kum/episim/internal/epidemic"
	"github.com/san-kum/episim/internal/experiment"
	"github.com/san-kum/episim/internal/observe"
)

type Report struct {
	Model        string               `json:"model"`
	Integrator   string               `json:"integrator,omitempty"`
	Params       epidemic.Params      `json:"params"`
	Epoch        string               `json:"epoch,omitempty"`
	Compartments []string             `json:"compartments"`
	Times        []float64            `json:"times"`
	Series       map[string][]float64 `json:"series"`
	Metrics      map[string]float64   `json:"metrics"`
	Stats        Stats                `json:"stats"`
	Observations *Observations        `json:"observations,omitempty"`
}

type Stats struct {
	Steps       int `json:"steps"`
	Rejected    int `json:"rejected"`
	Evaluations int `json:"evaluations"`
}

// Observations are already aligned: Days count from the epoch.
type Observations struct {
	Dataset string          `json:"dataset"`
	Points  []observe.Point `json:"points"`
}

// NewReport flattens an outcome into per-compartment series. Metrics that
// are not finite are left out since JSON cannot carry them.
func NewReport(out *experiment.Outcome, integrator string) Report {
	res := out.Result
	r := Report{
		Model:        string(out.Model),
		Integrator:   integrator,
		Params:       out.Params,
		Compartments: res.Compartments,
		Times:        res.Times,
		Series:       make(map[string][]float64, len(res.Compartments)),
		Metrics:      make(map[string]float64, len(res.Metrics)),
		Stats:        fromStats(res.Stats),
	}
	if !out.Epoch.IsZero() {
		r.Epoch = out.Epoch.String()
	}
	for i, name := range res.Compartments {
		r.Series[name] = res.Column(i)
	}
	for k, v := range res.Metrics {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			r.Metrics[k] = v
		}
	}
	if out.Dataset != "" {
		r.Observations = &Observations{Dataset: out.Dataset, Points: out.Observations}
	}
	return r
}

func fromStats(s dynamo.Stats) Stats {
	return Stats{Steps: s.Steps, Rejected: s.Rejected, Evaluations: s.Evaluations}
}

func WriteJSON(w io.Writer, r Report) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}
