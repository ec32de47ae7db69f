package server

import (
	"fmt"
	"math"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/san-kum/episim/internal/config"
	"github.com/san-kum/episim/internal/dynamo"
	"github.com/san-kum/episim/internal/observe"
)

// applyQuery overrides cfg with the request parameters. Names follow the
// public API: N, I_0, E_0, R_0, R0, D, incubation, t_min, t_max, epoch,
// model, resolution, dataset, integrator, detection_rate and y_max.
func applyQuery(cfg *config.Config, q url.Values) error {
	floatParams := []struct {
		name string
		dst  *float64
	}{
		{"N", &cfg.Population},
		{"R0", &cfg.R0},
		{"D", &cfg.InfectiousDays},
		{"incubation", &cfg.IncubationDays},
		{"R_0", &cfg.Initial.Recovered},
		{"resolution", &cfg.Window.Resolution},
		{"detection_rate", &cfg.DetectionRate},
		{"y_max", &cfg.YMax},
	}
	for _, p := range floatParams {
		if err := parseFloat(q, p.name, p.dst); err != nil {
			return err
		}
	}

	if q.Has("I_0") {
		var v float64
		if err := parseFloat(q, "I_0", &v); err != nil {
			return err
		}
		cfg.SetInfected(v)
	}
	if q.Has("E_0") {
		var v float64
		if err := parseFloat(q, "E_0", &v); err != nil {
			return err
		}
		cfg.SetExposed(v)
	}
	if err := parseInt(q, "t_min", &cfg.Window.TMin); err != nil {
		return err
	}
	if err := parseInt(q, "t_max", &cfg.Window.TMax); err != nil {
		return err
	}

	if v := strings.TrimSpace(q.Get("model")); v != "" {
		cfg.Model = v
	}
	if v := strings.TrimSpace(q.Get("integrator")); v != "" {
		cfg.Integrator = v
	}
	if v := strings.TrimSpace(q.Get("epoch")); v != "" {
		cfg.Epoch = v
	}
	if q.Has("dataset") {
		name := strings.TrimSpace(q.Get("dataset"))
		// Only built-in sets; a request must never name a file.
		if name != "" && !slices.Contains(observe.Datasets(), name) {
			return fmt.Errorf("unknown dataset %q", name)
		}
		cfg.Dataset = name
	}
	return nil
}

func parseFloat(q url.Values, name string, dst *float64) error {
	if !q.Has(name) {
		return nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(q.Get(name)), 64)
	if err != nil {
		return dynamo.InvalidParam(name, math.NaN(), "not a number")
	}
	*dst = v
	return nil
}

func parseInt(q url.Values, name string, dst *int) error {
	if !q.Has(name) {
		return nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(q.Get(name)))
	if err != nil {
		return dynamo.InvalidParam(name, math.NaN(), "not an integer")
	}
	*dst = v
	return nil
}
