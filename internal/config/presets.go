package config

import "sort"

func infected(v float64) *float64 { return &v }

var Presets = map[string]*Config{
	"default": DefaultConfig(),
	// Sweden on 13 March 2020: 775 confirmed cases at a 10% detection rate.
	"sweden-march": {
		Model: "sir", Integrator: "dopri5",
		Population: 1e7, R0: 2.5, InfectiousDays: 17.5, IncubationDays: DefaultIncubationDays,
		Initial:       InitialConfig{Infected: infected(7750), Recovered: 100},
		Window:        WindowConfig{TMin: 0, TMax: 300, Resolution: 1},
		Epoch:         "2020-03-13",
		Dataset:       DefaultDataset,
		DetectionRate: DefaultDetectionRate,
	},
	"seir-covid": {
		Model: "seir", Integrator: "dopri5",
		Population: DefaultPopulation, R0: 2.4, InfectiousDays: 7, IncubationDays: DefaultIncubationDays,
		Initial:       InitialConfig{Recovered: DefaultRecovered},
		Window:        WindowConfig{TMin: -20, TMax: 200, Resolution: 1},
		Dataset:       DefaultDataset,
		DetectionRate: DefaultDetectionRate,
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(name string) *Config {
	cfg, ok := Presets[name]
	if !ok {
		return nil
	}
	return cfg.Clone()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
