package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/san-kum/cartpole/internal/bridge"
	"github.com/san-kum/cartpole/internal/cartpole"
	"github.com/san-kum/cartpole/internal/config"
	"github.com/san-kum/cartpole/internal/controllers"
	"github.com/san-kum/cartpole/internal/episode"
	"github.com/san-kum/cartpole/internal/metrics"
	"github.com/san-kum/cartpole/internal/optim"
	"github.com/san-kum/cartpole/internal/report"
	"github.com/san-kum/cartpole/internal/storage"
)

// resolveConfig layers defaults, the config file, the preset and finally
// any flag set on the command line.
func resolveConfig(cmd *cobra.Command, presetName string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if presetName != "" {
		p, ok := config.Presets[presetName]
		if !ok {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", presetName, config.ListPresets())
		}
		p.Apply(cfg)
	}

	flags := cmd.Flags()
	changed := func(name string) bool {
		return flags.Lookup(name) != nil && flags.Changed(name)
	}

	if changed("controller") {
		cfg.Controller = controller
	}
	if changed("episodes") {
		cfg.Episodes = episodes
	}
	if changed("max-steps") {
		cfg.MaxSteps = maxSteps
	}
	if changed("seed") {
		cfg.Seed = seed
	}
	if changed("init") {
		if len(initState) != cartpole.NumObservations {
			return nil, fmt.Errorf("--init needs %d values, got %d", cartpole.NumObservations, len(initState))
		}
		cfg.InitState = &config.InitStateConfig{
			X: initState[0], XDot: initState[1], Theta: initState[2], ThetaDot: initState[3],
		}
	}
	if changed("kp") {
		cfg.ControllerParams.Kp = kp
	}
	if changed("ki") {
		cfg.ControllerParams.Ki = ki
	}
	if changed("kd") {
		cfg.ControllerParams.Kd = kd
	}
	if changed("target") {
		cfg.ControllerParams.Target = target
	}
	if changed("gains") {
		if len(gains) != cartpole.NumObservations {
			return nil, fmt.Errorf("--gains needs %d values, got %d", cartpole.NumObservations, len(gains))
		}
		copy(cfg.ControllerParams.Gains[:], gains)
	}
	if changed("addr") {
		cfg.Server.Addr = addr
	}
	if changed("max-sessions") {
		cfg.Server.MaxSessions = maxSessions
	}
	if changed("idle-timeout") {
		cfg.Server.IdleTimeout = idleTimeout
	}
	if changed("data") || configFile == "" {
		cfg.Store.Path = dataDir
	}
	if changed("store") || configFile == "" {
		cfg.Store.Kind = storeKind
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openStore(ctx context.Context, kind, path string) (storage.Store, error) {
	st, err := storage.NewStore(kind, path)
	if err != nil {
		return nil, err
	}
	if err := st.Init(ctx); err != nil {
		return nil, fmt.Errorf("open %s store at %s: %w", kind, path, err)
	}
	return st, nil
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

func serve(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, preset)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	server := bridge.NewServer(cfg.BridgeConfig(), logger, cfg.SimulatorOptions()...)
	return server.ListenAndServe(ctx)
}

func initSlice(cfg *config.Config) []float64 {
	if cfg.InitState == nil {
		return nil
	}
	s := cfg.InitState
	return []float64{s.X, s.XDot, s.Theta, s.ThetaDot}
}

func runEpisodes(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, preset)
	if err != nil {
		return err
	}
	if remote != "" && runs > 1 {
		return fmt.Errorf("--runs cannot be combined with --remote")
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	st, err := openStore(ctx, cfg.Store.Kind, cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	reg := episode.NewRegistry()
	ecfg := cfg.EpisodeConfig()
	ecfg.Record = record
	ecfg.StopWhenSolved = stopSolved

	if runs > 1 {
		return runEnsemble(ctx, cfg, reg, ecfg, st)
	}

	var env episode.Env
	meta := storage.RunMetadata{
		Controller: cfg.Controller,
		Seed:       cfg.Seed,
		MaxSteps:   cfg.MaxSteps,
	}
	if remote != "" {
		if cfg.InitState != nil {
			logger.Warn("initial state is set by the server, ignoring --init", "remote", remote)
		}
		client, err := bridge.Dial(ctx, remote)
		if err != nil {
			return err
		}
		defer client.Close()
		env = client
		meta.Remote = remote
	} else {
		env = episode.Local(cartpole.New(cfg.SimulatorOptions()...))
		meta.InitState = initSlice(cfg)
	}

	ctrl, err := reg.GetController(cfg.Controller, cfg.GetControllerParams())
	if err != nil {
		return err
	}

	r := episode.New(env, ctrl, logger)
	for _, m := range metrics.Defaults() {
		r.AddMetric(m)
	}

	logger.Info("running episodes", "controller", cfg.Controller, "episodes", ecfg.Episodes, "remote", remote)
	start := time.Now()
	result, runErr := r.Run(ctx, ecfg)
	if result == nil {
		return runErr
	}
	if runErr != nil {
		if len(result.Episodes) == 0 {
			return runErr
		}
		logger.Warn("run interrupted, saving completed episodes", "err", runErr, "episodes", len(result.Episodes))
	}
	elapsed := time.Since(start)

	return saveAndShow(context.WithoutCancel(ctx), st, meta, result, elapsed)
}

func runEnsemble(ctx context.Context, cfg *config.Config, reg *episode.Registry, ecfg episode.Config, st storage.Store) error {
	params := cfg.GetControllerParams()
	factory := func(seed int64) (episode.Env, controllers.Controller, error) {
		p := make(map[string]float64, len(params))
		for k, v := range params {
			p[k] = v
		}
		p["seed"] = float64(seed)
		ctrl, err := reg.GetController(cfg.Controller, p)
		if err != nil {
			return nil, nil, err
		}
		return episode.Local(cartpole.New(cfg.SimulatorOptions()...)), ctrl, nil
	}

	logger.Info("running ensemble", "controller", cfg.Controller, "runs", runs, "episodes", ecfg.Episodes)
	start := time.Now()
	results, err := episode.NewEnsemble(factory, runs, cfg.Seed, logger).Run(ctx, ecfg)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	for i, result := range results {
		meta := storage.RunMetadata{
			Controller: cfg.Controller,
			Seed:       cfg.Seed + int64(i),
			MaxSteps:   cfg.MaxSteps,
			InitState:  initSlice(cfg),
		}
		if err := saveAndShow(ctx, st, meta, result, elapsed); err != nil {
			return err
		}
	}
	return nil
}

func saveAndShow(ctx context.Context, st storage.Store, meta storage.RunMetadata, result *episode.Result, elapsed time.Duration) error {
	runID, err := st.Save(ctx, meta, result)
	if err != nil {
		return err
	}
	saved, err := st.Load(ctx, runID)
	if err != nil {
		return err
	}

	logger.Info("run saved", "run", runID, "steps", result.TotalSteps, "elapsed", elapsed, "window_full", result.WindowFull)
	fmt.Println(report.Summary(saved))
	return nil
}

func tune(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, tunePreset)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	reg := episode.NewRegistry()
	base := cfg.GetControllerParams()
	build := func(params map[string]float64) (*episode.Runner, error) {
		p := make(map[string]float64, len(base))
		for k, v := range base {
			p[k] = v
		}
		for k, v := range params {
			p[k] = v
		}
		ctrl, err := reg.GetController("linear", p)
		if err != nil {
			return nil, err
		}
		r := episode.New(episode.Local(cartpole.New(cfg.SimulatorOptions()...)), ctrl, logger)
		for _, m := range metrics.Defaults() {
			r.AddMetric(m)
		}
		return r, nil
	}

	g := optim.NewGridSearch(
		[]string{"k2", "k3"},
		[][]float64{k2Range, k3Range},
		episode.Config{Episodes: tuneEpisodes, MaxSteps: cfg.MaxSteps},
	)
	logger.Info("tuning linear gains", "candidates", g.Candidates(), "metric", tuneMetric, "preset", tunePreset)

	best, value, err := g.Search(ctx, build, tuneMetric)
	if err != nil {
		return err
	}

	fmt.Println(report.Title.Render("best linear gains"))
	fmt.Printf("%s %s\n", report.Label.Render("k2"), report.Value.Render(fmt.Sprintf("%g", best["k2"])))
	fmt.Printf("%s %s\n", report.Label.Render("k3"), report.Value.Render(fmt.Sprintf("%g", best["k3"])))
	fmt.Printf("%s %s\n", report.Label.Render(tuneMetric), report.Value.Render(fmt.Sprintf("%.4f", value)))
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st, err := openStore(cmd.Context(), storeKind, dataDir)
	if err != nil {
		return err
	}
	defer st.Close()

	stored, err := st.List(cmd.Context())
	if err != nil {
		return err
	}

	if len(stored) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	fmt.Print(report.RunTable(stored))
	return nil
}

func showRun(cmd *cobra.Command, args []string) error {
	st, err := openStore(cmd.Context(), storeKind, dataDir)
	if err != nil {
		return err
	}
	defer st.Close()

	meta, err := st.Load(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Println(report.Summary(meta))
	return nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st, err := openStore(cmd.Context(), storeKind, dataDir)
	if err != nil {
		return err
	}
	defer st.Close()

	meta, err := st.Load(cmd.Context(), runID)
	if err != nil {
		return err
	}
	eps, err := st.LoadEpisodes(cmd.Context(), runID)
	if err != nil {
		return err
	}

	chart, err := report.LengthChart(eps, window, 80, 12)
	if err != nil {
		return err
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("controller: %s\n", meta.Controller)
	fmt.Printf("episodes: %s\n\n", humanize.Comma(int64(len(eps))))
	fmt.Println(chart)

	if pngPath != "" {
		if err := report.SavePNG(pngPath, meta.ID, eps, window, threshold); err != nil {
			return err
		}
		fmt.Printf("\nwrote %s\n", pngPath)
	}
	return nil
}

func exportJSON(cmd *cobra.Command, args []string) error {
	st, err := openStore(cmd.Context(), storeKind, dataDir)
	if err != nil {
		return err
	}
	defer st.Close()

	if outFile == "" {
		return storage.ExportJSON(cmd.Context(), st, args[0], os.Stdout)
	}

	f, err := os.Create(outFile)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := storage.ExportJSON(cmd.Context(), st, args[0], f); err != nil {
		return err
	}
	return f.Close()
}

func initConfig(cmd *cobra.Command, args []string) error {
	path := args[0]
	cfg := config.DefaultConfig()
	if initPreset != "" {
		cfg = config.GetPreset(initPreset)
		if cfg == nil {
			return fmt.Errorf("unknown preset: %s (available: %v)", initPreset, config.ListPresets())
		}
	}
	if _, err := os.Stat(path); err == nil && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := config.Save(path, cfg); err != nil {
		return err
	}
	logger.Info("config written", "path", path, "preset", initPreset)
	return nil
}

func listPresets(cmd *cobra.Command, args []string) error {
	fmt.Println(report.Title.Render("presets"))
	for _, name := range config.ListPresets() {
		p := config.Presets[name]
		fmt.Printf("  %-10s %-9s %s\n", name, p.Controller, report.Subtle.Render(p.Description))
	}
	return nil
}

func bench(cmd *cobra.Command, args []string) error {
	if benchSteps <= 0 {
		return fmt.Errorf("--steps must be positive, got %d", benchSteps)
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return err
	}
	server := bridge.NewServer(bridge.Config{}, nil)
	serveCtx, cancel := context.WithCancel(ctx)
	errc := make(chan error, 1)
	go func() { errc <- server.Serve(serveCtx, ln) }()
	defer func() {
		cancel()
		<-errc
	}()

	client, err := bridge.Dial(ctx, ln.Addr().String())
	if err != nil {
		return err
	}
	defer client.Close()

	envs := []struct {
		name  string
		env   episode.Env
		steps int
	}{
		{"local", episode.Local(cartpole.New(cartpole.WithInitialState(0, 0, 0, 0))), benchSteps},
		{"bridge", client, benchSteps / 100},
	}

	fmt.Printf("benchmarking %s steps locally, %s over the bridge\n\n",
		humanize.Comma(int64(benchSteps)), humanize.Comma(int64(benchSteps/100)))
	fmt.Printf("%-8s  %12s  %12s  %14s\n", "env", "steps", "time", "steps/sec")

	for _, e := range envs {
		if e.steps == 0 {
			continue
		}
		elapsed, err := benchEnv(ctx, e.env, e.steps)
		if err != nil {
			return fmt.Errorf("%s: %w", e.name, err)
		}
		rate := float64(e.steps) / elapsed.Seconds()
		fmt.Printf("%-8s  %12s  %12s  %14s\n",
			e.name, humanize.Comma(int64(e.steps)), elapsed.Round(time.Microsecond), humanize.Commaf(float64(int64(rate))))
	}
	return nil
}

func benchEnv(ctx context.Context, env episode.Env, steps int) (time.Duration, error) {
	ctrl := controllers.NewRandom(42)
	state, err := env.Reset(ctx)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	for i := 0; i < steps; i++ {
		state, err = env.Step(ctx, ctrl.Act(state))
		if err != nil {
			return 0, err
		}
		if state.Done {
			if state, err = env.Reset(ctx); err != nil {
				return 0, err
			}
		}
	}
	return time.Since(start), nil
}
