package config

import "sort"

type Preset struct {
	Description string
	Controller  string
	Seed        int64
	InitState   *InitStateConfig
}

var Presets = map[string]Preset{
	"canonical": {
		Description: "canonical (1,1,1,1) start, terminates on the first step",
		Controller:  "constant",
	},
	"upright": {
		Description: "pole upright at rest, linear state feedback",
		Controller:  "lqr",
		InitState:   &InitStateConfig{},
	},
	"tilted": {
		Description: "pole tilted 0.1 rad, PID on the angle",
		Controller:  "pid",
		InitState:   &InitStateConfig{Theta: 0.1},
	},
	"random": {
		Description: "pole upright at rest, uniformly random pushes",
		Controller:  "random",
		Seed:        1,
		InitState:   &InitStateConfig{},
	},
}

// GetPreset returns DefaultConfig with the named preset applied, or nil.
func GetPreset(name string) *Config {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	p.Apply(cfg)
	return cfg
}

// Apply overlays the preset onto cfg.
func (p Preset) Apply(cfg *Config) {
	cfg.Controller = p.Controller
	cfg.Seed = p.Seed
	if p.InitState != nil {
		s := *p.InitState
		cfg.InitState = &s
	} else {
		cfg.InitState = nil
	}
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
