package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/cartpole/internal/bridge"
	"github.com/san-kum/cartpole/internal/cartpole"
	"github.com/san-kum/cartpole/internal/episode"
)

const (
	DefaultController  = "lqr"
	DefaultEpisodes    = 100
	DefaultKp          = 10.0
	DefaultKd          = 2.0
	DefaultStoreKind   = "file"
	DefaultStorePath   = ".cartpole"
	DefaultIdleTimeout = 5 * time.Minute
)

type Config struct {
	Controller       string           `yaml:"controller"`
	Episodes         int              `yaml:"episodes"`
	MaxSteps         int              `yaml:"max_steps"`
	Seed             int64            `yaml:"seed"`
	Substeps         int              `yaml:"substeps,omitempty"`
	InitState        *InitStateConfig `yaml:"init_state,omitempty"`
	ControllerParams ControllerConfig `yaml:"controller_params"`
	Solved           SolvedConfig     `yaml:"solved"`
	Server           ServerConfig     `yaml:"server"`
	Store            StoreConfig      `yaml:"store"`
}

// InitStateConfig replaces the canonical (1,1,1,1) reset snapshot.
type InitStateConfig struct {
	X        float64 `yaml:"x"`
	XDot     float64 `yaml:"x_dot"`
	Theta    float64 `yaml:"theta"`
	ThetaDot float64 `yaml:"theta_dot"`
}

type ControllerConfig struct {
	Kp     float64    `yaml:"kp"`
	Ki     float64    `yaml:"ki"`
	Kd     float64    `yaml:"kd"`
	Target float64    `yaml:"target"`
	Gains  [4]float64 `yaml:"gains"`
	Action int        `yaml:"action"`
}

type SolvedConfig struct {
	Window    int     `yaml:"window"`
	Threshold float64 `yaml:"threshold"`
}

type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	MaxSessions  int           `yaml:"max_sessions"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	MaxLineBytes int           `yaml:"max_line_bytes,omitempty"`
}

type StoreConfig struct {
	Kind string `yaml:"kind"`
	Path string `yaml:"path"`
}

func DefaultConfig() *Config {
	return &Config{
		Controller: DefaultController,
		Episodes:   DefaultEpisodes,
		MaxSteps:   episode.DefaultMaxSteps,
		ControllerParams: ControllerConfig{
			Kp:     DefaultKp,
			Kd:     DefaultKd,
			Gains:  [4]float64{0, 0, 10, 2},
			Action: int(cartpole.PushRight),
		},
		Solved: SolvedConfig{
			Window:    episode.DefaultSolvedWindow,
			Threshold: episode.DefaultSolvedThreshold,
		},
		Server: ServerConfig{
			Addr:        bridge.DefaultAddr,
			IdleTimeout: DefaultIdleTimeout,
		},
		Store: StoreConfig{
			Kind: DefaultStoreKind,
			Path: DefaultStorePath,
		},
	}
}

// Load reads a YAML file over DefaultConfig, so omitted keys keep their
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
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

func (c *Config) Validate() error {
	if c.Episodes <= 0 {
		return fmt.Errorf("episodes must be positive, got %d", c.Episodes)
	}
	if c.MaxSteps < 0 {
		return fmt.Errorf("max_steps must not be negative, got %d", c.MaxSteps)
	}
	if c.Substeps < 0 {
		return fmt.Errorf("substeps must not be negative, got %d", c.Substeps)
	}
	if _, err := cartpole.ParseAction(c.ControllerParams.Action); err != nil {
		return fmt.Errorf("controller_params.action: %w", err)
	}
	if c.Solved.Window < 0 {
		return fmt.Errorf("solved.window must not be negative, got %d", c.Solved.Window)
	}
	if c.Server.MaxSessions < 0 {
		return fmt.Errorf("server.max_sessions must not be negative, got %d", c.Server.MaxSessions)
	}
	if c.Server.MaxLineBytes < 0 {
		return fmt.Errorf("server.max_line_bytes must not be negative, got %d", c.Server.MaxLineBytes)
	}
	if c.Server.IdleTimeout < 0 {
		return fmt.Errorf("server.idle_timeout must not be negative, got %s", c.Server.IdleTimeout)
	}
	switch c.Store.Kind {
	case "", "file", "sqlite":
	default:
		return fmt.Errorf("store.kind must be file or sqlite, got %q", c.Store.Kind)
	}
	return nil
}

// SimulatorOptions returns the construction options for every simulator
// this configuration builds. No init_state means the canonical instance.
func (c *Config) SimulatorOptions() []cartpole.Option {
	var opts []cartpole.Option
	if s := c.InitState; s != nil {
		opts = append(opts, cartpole.WithInitialState(s.X, s.XDot, s.Theta, s.ThetaDot))
	}
	if c.Substeps > 1 {
		opts = append(opts, cartpole.WithSubsteps(c.Substeps))
	}
	return opts
}

func (c *Config) GetControllerParams() map[string]float64 {
	p := c.ControllerParams
	return map[string]float64{
		"kp":     p.Kp,
		"ki":     p.Ki,
		"kd":     p.Kd,
		"target": p.Target,
		"k0":     p.Gains[0],
		"k1":     p.Gains[1],
		"k2":     p.Gains[2],
		"k3":     p.Gains[3],
		"action": float64(p.Action),
		"seed":   float64(c.Seed),
	}
}

func (c *Config) EpisodeConfig() episode.Config {
	return episode.Config{
		Episodes:        c.Episodes,
		MaxSteps:        c.MaxSteps,
		SolvedWindow:    c.Solved.Window,
		SolvedThreshold: c.Solved.Threshold,
	}
}

func (c *Config) BridgeConfig() bridge.Config {
	return bridge.Config{
		Addr:         c.Server.Addr,
		MaxSessions:  c.Server.MaxSessions,
		IdleTimeout:  c.Server.IdleTimeout,
		MaxLineBytes: c.Server.MaxLineBytes,
	}
}
