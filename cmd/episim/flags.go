package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/san-kum/episim/internal/config"
)

var (
	configFile string
	preset     string

	model         string
	integrator    string
	population    float64
	r0            float64
	infectious    float64
	incubation    float64
	infected      float64
	exposed       float64
	recovered     float64
	tMin          int
	tMax          int
	resolution    float64
	epoch         string
	dataset       string
	detectionRate float64
	yMax          float64
)

// addScenarioFlags registers the flags that override a scenario. Defaults
// shown in help come from config.DefaultConfig; a flag only takes effect
// when set explicitly.
func addScenarioFlags(cmd *cobra.Command) {
	d := config.DefaultConfig()
	f := cmd.Flags()
	f.StringVar(&configFile, "config", "", "scenario file (yaml)")
	f.StringVar(&preset, "preset", "", "start from a named preset")
	f.StringVar(&model, "model", d.Model, "compartment model (sir, seir)")
	f.StringVar(&integrator, "integrator", d.Integrator, "integrator (dopri5, rk4, euler)")
	f.Float64VarP(&population, "population", "N", d.Population, "population size")
	f.Float64Var(&r0, "r0", d.R0, "basic reproduction number")
	f.Float64VarP(&infectious, "infectious-days", "D", d.InfectiousDays, "mean infectious period in days")
	f.Float64Var(&incubation, "incubation", d.IncubationDays, "mean incubation period in days (seir)")
	f.Float64Var(&infected, "i0", 0, "initial infected (default: latest observation / detection rate)")
	f.Float64Var(&exposed, "e0", 0, "initial exposed (seir); derived from the growth rate when unset")
	f.Float64Var(&recovered, "r-initial", d.Initial.Recovered, "initial recovered")
	f.IntVar(&tMin, "t-min", d.Window.TMin, "first day relative to the epoch")
	f.IntVar(&tMax, "t-max", d.Window.TMax, "end of the window (exclusive)")
	f.Float64Var(&resolution, "resolution", d.Window.Resolution, "sample spacing in days")
	f.StringVar(&epoch, "epoch", "", "calendar date of t=0 (default: latest observation)")
	f.StringVar(&dataset, "dataset", d.Dataset, "observation set: built-in name or CSV path, empty for none")
	f.Float64Var(&detectionRate, "detection-rate", d.DetectionRate, "share of infections that are observed")
	f.Float64Var(&yMax, "y-max", 0, "upper bound of the plot")
}

// loadScenario layers defaults, preset, scenario file, environment and
// explicitly set flags, in that order.
func loadScenario(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}
	if configFile != "" {
		loaded, err := config.Load(configFile, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	cmd.Flags().Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "model":
			cfg.Model = model
		case "integrator":
			cfg.Integrator = integrator
		case "population":
			cfg.Population = population
		case "r0":
			cfg.R0 = r0
		case "infectious-days":
			cfg.InfectiousDays = infectious
		case "incubation":
			cfg.IncubationDays = incubation
		case "i0":
			cfg.SetInfected(infected)
		case "e0":
			cfg.SetExposed(exposed)
		case "r-initial":
			cfg.Initial.Recovered = recovered
		case "t-min":
			cfg.Window.TMin = tMin
		case "t-max":
			cfg.Window.TMax = tMax
		case "resolution":
			cfg.Window.Resolution = resolution
		case "epoch":
			cfg.Epoch = epoch
		case "dataset":
			cfg.Dataset = dataset
		case "detection-rate":
			cfg.DetectionRate = detectionRate
		case "y-max":
			cfg.YMax = yMax
		}
	})
	return cfg, nil
}
