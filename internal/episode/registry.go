package episode

import (
	"fmt"
	"sort"

	"github.com/san-kum/cartpole/internal/cartpole"
	"github.com/san-kum/cartpole/internal/controllers"
)

// Registry builds controllers by name from a flat parameter map.
type Registry struct {
	controllers map[string]func(map[string]float64) (controllers.Controller, error)
}

func NewRegistry() *Registry {
	r := &Registry{
		controllers: make(map[string]func(map[string]float64) (controllers.Controller, error)),
	}

	r.controllers["constant"] = func(params map[string]float64) (controllers.Controller, error) {
		action, err := cartpole.ParseAction(int(params["action"]))
		if err != nil {
			return nil, err
		}
		return controllers.NewConstant(action), nil
	}
	r.controllers["random"] = func(params map[string]float64) (controllers.Controller, error) {
		return controllers.NewRandom(int64(params["seed"])), nil
	}
	r.controllers["linear"] = func(params map[string]float64) (controllers.Controller, error) {
		return controllers.NewLinear([cartpole.NumObservations]float64{
			params["k0"], params["k1"], params["k2"], params["k3"],
		}), nil
	}
	r.controllers["lqr"] = func(params map[string]float64) (controllers.Controller, error) {
		return controllers.NewCartPoleLQR(), nil
	}
	r.controllers["qlearning"] = func(params map[string]float64) (controllers.Controller, error) {
		cfg := controllers.DefaultQLearningConfig()
		cfg.Seed = int64(params["seed"])
		if v, ok := params["alpha"]; ok && v > 0 {
			cfg.Alpha = v
		}
		if v, ok := params["gamma"]; ok && v > 0 {
			cfg.Gamma = v
		}
		return controllers.NewQLearning(cfg), nil
	}
	r.controllers["pid"] = func(params map[string]float64) (controllers.Controller, error) {
		return controllers.NewPID(params["kp"], params["ki"], params["kd"], params["target"]), nil
	}

	return r
}

func (r *Registry) GetController(name string, params map[string]float64) (controllers.Controller, error) {
	fn, ok := r.controllers[name]
	if !ok {
		return nil, fmt.Errorf("unknown controller: %s", name)
	}
	return fn(params)
}

func (r *Registry) ListControllers() []string {
	names := make([]string, 0, len(r.controllers))
	for name := range r.controllers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
