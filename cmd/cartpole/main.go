package main

import (
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/san-kum/cartpole/internal/bridge"
	"github.com/san-kum/cartpole/internal/config"
	"github.com/san-kum/cartpole/internal/episode"
)

var (
	dataDir   string
	storeKind string
	logLevel  string
	logger    *log.Logger

	configFile  string
	preset      string
	controller  string
	remote      string
	episodes    int
	maxSteps    int
	runs        int
	seed        int64
	initState   []float64
	kp          float64
	ki          float64
	kd          float64
	target      float64
	gains       []float64
	record      bool
	stopSolved  bool
	addr        string
	maxSessions int
	idleTimeout time.Duration

	tunePreset   string
	tuneEpisodes int
	tuneMetric   string
	k2Range      []float64
	k3Range      []float64

	pngPath   string
	window    int
	threshold float64
	outFile   string

	benchSteps int

	initPreset string
	initForce  bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "cartpole",
		Short:         "cart-pole simulator, bridge and episode runner",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			lvl, err := log.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			logger = log.NewWithOptions(os.Stderr, log.Options{
				Level:           lvl,
				ReportTimestamp: true,
				Prefix:          "cartpole",
			})
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", config.DefaultStorePath, "data directory")
	rootCmd.PersistentFlags().StringVar(&storeKind, "store", config.DefaultStoreKind, "store backend (file, sqlite)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "serve one simulator per connection over TCP",
		Args:  cobra.NoArgs,
		RunE:  serve,
	}
	serveCmd.Flags().StringVar(&addr, "addr", bridge.DefaultAddr, "listen address")
	serveCmd.Flags().IntVar(&maxSessions, "max-sessions", 0, "maximum concurrent sessions (0 = unlimited)")
	serveCmd.Flags().DurationVar(&idleTimeout, "idle-timeout", config.DefaultIdleTimeout, "close sessions idle for this long (0 = never)")
	serveCmd.Flags().Float64SliceVar(&initState, "init", nil, "initial state x,x_dot,theta,theta_dot")
	serveCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	serveCmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run episodes locally or against a bridge",
		Args:  cobra.NoArgs,
		RunE:  runEpisodes,
	}
	runCmd.Flags().StringVar(&controller, "controller", config.DefaultController, "controller")
	runCmd.Flags().StringVar(&remote, "remote", "", "bridge address to run against instead of a local simulator")
	runCmd.Flags().IntVar(&episodes, "episodes", config.DefaultEpisodes, "number of episodes")
	runCmd.Flags().IntVar(&maxSteps, "max-steps", episode.DefaultMaxSteps, "steps before an episode is truncated")
	runCmd.Flags().IntVar(&runs, "runs", 1, "independent runs over consecutive seeds (local only)")
	runCmd.Flags().Int64Var(&seed, "seed", 0, "random seed")
	runCmd.Flags().Float64SliceVar(&initState, "init", nil, "initial state x,x_dot,theta,theta_dot")
	runCmd.Flags().Float64Var(&kp, "kp", config.DefaultKp, "pid kp")
	runCmd.Flags().Float64Var(&ki, "ki", 0, "pid ki")
	runCmd.Flags().Float64Var(&kd, "kd", config.DefaultKd, "pid kd")
	runCmd.Flags().Float64Var(&target, "target", 0, "pid target angle")
	runCmd.Flags().Float64SliceVar(&gains, "gains", nil, "linear gains k0,k1,k2,k3")
	runCmd.Flags().BoolVar(&record, "record", false, "store every step")
	runCmd.Flags().BoolVar(&stopSolved, "stop-when-solved", false, "stop at the first solved episode")
	runCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	runCmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")

	tuneCmd := &cobra.Command{
		Use:   "tune",
		Short: "grid search the linear controller gains",
		Args:  cobra.NoArgs,
		RunE:  tune,
	}
	tuneCmd.Flags().StringVar(&tunePreset, "preset", "upright", "preset supplying the initial state")
	tuneCmd.Flags().StringVar(&tuneMetric, "metric", "episode_length", "metric to maximize")
	tuneCmd.Flags().IntVar(&tuneEpisodes, "episodes", 5, "episodes per candidate")
	tuneCmd.Flags().Float64SliceVar(&k2Range, "k2", []float64{1, 5, 10, 20}, "angle gains to try")
	tuneCmd.Flags().Float64SliceVar(&k3Range, "k3", []float64{0, 1, 2, 4}, "angular velocity gains to try")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "show a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot episode lengths of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&pngPath, "png", "", "also write the chart to this PNG file")
	plotCmd.Flags().IntVar(&window, "window", episode.DefaultSolvedWindow, "moving average window")
	plotCmd.Flags().Float64Var(&threshold, "threshold", episode.DefaultSolvedThreshold, "solved threshold drawn on the PNG")

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run data to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}
	exportJSONCmd.Flags().StringVarP(&outFile, "out", "o", "", "output file (default stdout)")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Args:  cobra.NoArgs,
		RunE:  listPresets,
	}

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "measure simulator throughput locally and over the bridge",
		Args:  cobra.NoArgs,
		RunE:  bench,
	}
	benchCmd.Flags().IntVar(&benchSteps, "steps", 100000, "steps per measurement")

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "manage configuration files",
	}
	configInitCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "write a config file from the defaults or a preset",
		Args:  cobra.ExactArgs(1),
		RunE:  initConfig,
	}
	configInitCmd.Flags().StringVar(&initPreset, "preset", "", "preset to start from")
	configInitCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing file")
	configCmd.AddCommand(configInitCmd)

	rootCmd.AddCommand(serveCmd, runCmd, tuneCmd, listCmd, showCmd, plotCmd, exportJSONCmd, presetsCmd, benchCmd, configCmd)

	if err := rootCmd.Execute(); err != nil {
		if logger == nil {
			logger = log.New(os.Stderr)
		}
		logger.Error(err.Error())
		os.Exit(1)
	}
}
