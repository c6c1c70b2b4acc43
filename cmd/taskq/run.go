package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/utkarsh5026/taskq/internal/config"
	"github.com/utkarsh5026/taskq/internal/logger"
)

var (
	runConfigPath  string
	runTasks       int
	runOrder       string
	runMaxSleep    time.Duration
	runTimeout     time.Duration
	runCancelAfter time.Duration
	runFailEvery   int
	runMetrics     bool
	runDebug       bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a collection of sleep tasks on the worker pool",
	Long: `Run builds a worker pool from the configuration, adds a collection of
tasks that each sleep for a random duration and replays their results in the
requested order. Flags override the values of the configuration file.`,
	Example: `  taskq run --tasks 50 --order reverse
  taskq run --tasks 20 --timeout 80ms --max-sleep 150ms
  taskq run --config taskq.toml --cancel-after 200ms --metrics`,
	RunE: runHandler,
}

func init() {
	f := runCmd.Flags()
	f.StringVarP(&runConfigPath, "config", "c", "", "path to a TOML configuration file")
	f.IntVarP(&runTasks, "tasks", "n", 0, "number of tasks to run")
	f.StringVarP(&runOrder, "order", "o", "", "result order: ordered, reverse or unordered")
	f.DurationVar(&runMaxSleep, "max-sleep", 0, "upper bound of the random sleep of each task")
	f.DurationVar(&runTimeout, "timeout", 0, "time limit of every task (0 disables it)")
	f.DurationVar(&runCancelAfter, "cancel-after", 0, "cancel the whole collection after this long (0 disables it)")
	f.IntVar(&runFailEvery, "fail-every", 0, "make every n-th task fail (0 disables it)")
	f.BoolVar(&runMetrics, "metrics", false, "print the collected Prometheus metrics after the run")
	f.BoolVarP(&runDebug, "debug", "d", false, "enable debug logging")
}

func runHandler(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(runConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	applyRunFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed:\n%w", err)
	}

	log, closeLog, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = closeLog() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return execute(ctx, cfg, log, cmd.OutOrStdout())
}

// applyRunFlags copies the flags that were set on the command line over cfg.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("tasks") {
		cfg.Run.Tasks = runTasks
	}
	if f.Changed("order") {
		cfg.Run.Order = runOrder
	}
	if f.Changed("max-sleep") {
		cfg.Run.MaxSleep = runMaxSleep
	}
	if f.Changed("timeout") {
		cfg.Run.Timeout = runTimeout
	}
	if f.Changed("cancel-after") {
		cfg.Run.CancelAfter = runCancelAfter
	}
	if f.Changed("fail-every") {
		cfg.Run.FailEvery = runFailEvery
	}
	if f.Changed("metrics") {
		cfg.Run.Metrics = runMetrics
	}
	if runDebug {
		cfg.Log.Level = "debug"
	}
}
