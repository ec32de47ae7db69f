package config

import (
	"fmt"
	"math"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/episim/internal/dynamo"
	"github.com/san-kum/episim/internal/epidemic"
	"github.com/san-kum/episim/internal/experiment"
	"github.com/san-kum/episim/internal/observe"
	"github.com/san-kum/episim/internal/sim"
)

// EnvPrefix namespaces every environment override.
const EnvPrefix = "EPISIM_"

const (
	DefaultPopulation     = 9e6
	DefaultR0             = 2.0
	DefaultInfectiousDays = 10.0
	DefaultIncubationDays = 5.2
	DefaultRecovered      = 100.0
	DefaultDetectionRate  = 0.1
	DefaultDataset        = "sweden"
)

type Config struct {
	Model          string        `yaml:"model" env:"MODEL"`
	Integrator     string        `yaml:"integrator" env:"INTEGRATOR"`
	Population     float64       `yaml:"population" env:"POPULATION"`
	R0             float64       `yaml:"r0" env:"R0"`
	InfectiousDays float64       `yaml:"infectious_days" env:"INFECTIOUS_DAYS"`
	IncubationDays float64       `yaml:"incubation_days" env:"INCUBATION_DAYS"`
	Initial        InitialConfig `yaml:"initial" envPrefix:"INITIAL_"`
	Window         WindowConfig  `yaml:"window" envPrefix:"WINDOW_"`
	// Epoch is the date of t=0. Empty means the latest observation.
	Epoch   string `yaml:"epoch,omitempty" env:"EPOCH"`
	Dataset string `yaml:"dataset,omitempty" env:"DATASET"`
	// DetectionRate is the share of infections that show up in the dataset.
	DetectionRate float64 `yaml:"detection_rate" env:"DETECTION_RATE"`
	YMax          float64 `yaml:"y_max,omitempty" env:"Y_MAX"`
}

type InitialConfig struct {
	// Exposed is derived from the growth of the SEIR epidemic when nil.
	Exposed *float64 `yaml:"exposed,omitempty" env:"EXPOSED"`
	// Infected is derived from the dataset when nil.
	Infected  *float64 `yaml:"infected,omitempty" env:"INFECTED"`
	Recovered float64  `yaml:"recovered" env:"RECOVERED"`
}

type WindowConfig struct {
	TMin       int     `yaml:"t_min" env:"T_MIN"`
	TMax       int     `yaml:"t_max" env:"T_MAX"`
	Resolution float64 `yaml:"resolution" env:"RESOLUTION"`
}

func DefaultConfig() *Config {
	w := sim.DefaultConfig()
	return &Config{
		Model:          string(epidemic.VariantSIR),
		Integrator:     experiment.DefaultIntegrator,
		Population:     DefaultPopulation,
		R0:             DefaultR0,
		InfectiousDays: DefaultInfectiousDays,
		IncubationDays: DefaultIncubationDays,
		Initial:        InitialConfig{Recovered: DefaultRecovered},
		Window:         WindowConfig{TMin: w.TMin, TMax: w.TMax, Resolution: w.Resolution},
		Dataset:        DefaultDataset,
		DetectionRate:  DefaultDetectionRate,
	}
}

// Load reads a YAML scenario over base, or over the defaults when base is nil.
func Load(path string, base *Config) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if base != nil {
		cfg = base.Clone()
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ApplyEnv overrides fields from EPISIM_* variables.
func (c *Config) ApplyEnv() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func (c *Config) Clone() *Config {
	cp := *c
	cp.Initial.Exposed = clonePtr(c.Initial.Exposed)
	cp.Initial.Infected = clonePtr(c.Initial.Infected)
	return &cp
}

func clonePtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// SetInfected fixes I(0) instead of deriving it from the dataset.
func (c *Config) SetInfected(v float64) {
	c.Initial.Infected = &v
}

// SetExposed fixes E(0) instead of deriving it.
func (c *Config) SetExposed(v float64) {
	c.Initial.Exposed = &v
}

// Experiment resolves the dataset, epoch and initial infected count.
func (c *Config) Experiment() (experiment.Config, error) {
	cfg := experiment.Config{
		Model:      c.Model,
		Integrator: c.Integrator,
		Params: epidemic.Params{
			Population:     c.Population,
			R0:             c.R0,
			InfectiousDays: c.InfectiousDays,
			IncubationDays: c.IncubationDays,
		},
		Initial: epidemic.Initial{
			Recovered: c.Initial.Recovered,
		},
		DeriveExposed: c.Initial.Exposed == nil,
		Window: sim.Config{
			TMin:       c.Window.TMin,
			TMax:       c.Window.TMax,
			Resolution: c.Window.Resolution,
			FixedDt:    sim.DefaultConfig().FixedDt,
		},
	}

	if c.Initial.Exposed != nil {
		cfg.Initial.Exposed = *c.Initial.Exposed
	}

	var set *observe.Set
	if c.Dataset != "" {
		s, err := observe.Dataset(c.Dataset, observe.Date{})
		if err != nil {
			return cfg, err
		}
		set = &s
		cfg.Observations = set
	}

	switch {
	case c.Epoch != "":
		d, err := observe.ParseDate(c.Epoch)
		if err != nil {
			return cfg, err
		}
		cfg.Epoch = d
	case set != nil:
		if d, _, ok := set.Latest(); ok {
			cfg.Epoch = d
		}
	}

	if c.Initial.Infected != nil {
		cfg.Initial.Infected = *c.Initial.Infected
		return cfg, nil
	}
	infected, err := c.derivedInfected(set, cfg.Epoch)
	if err != nil {
		return cfg, err
	}
	cfg.Initial.Infected = infected
	return cfg, nil
}

// derivedInfected scales the count observed on epoch, or the last count
// before it, by the detection rate.
func (c *Config) derivedInfected(set *observe.Set, epoch observe.Date) (float64, error) {
	if math.IsNaN(c.DetectionRate) || c.DetectionRate <= 0 || c.DetectionRate > 1 {
		return 0, dynamo.InvalidParam("detection_rate", c.DetectionRate, "must be in (0, 1]")
	}
	if set == nil || set.Len() == 0 {
		return 0, dynamo.InvalidParam("infected", math.NaN(), "not set and no observations to derive it from")
	}

	var count float64
	found := false
	for _, p := range set.Points() {
		if epoch.IsZero() || !epoch.Before(set.DateOf(p)) {
			count = p.Count
			found = true
		}
	}
	if !found {
		return 0, dynamo.InvalidParam("infected", math.NaN(), "no observation on or before epoch "+epoch.String())
	}
	return count / c.DetectionRate, nil
}
