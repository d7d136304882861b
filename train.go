package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samuelfneumann/statecover/experiment"
	"github.com/samuelfneumann/statecover/experiment/pool"
	"github.com/samuelfneumann/statecover/experiment/tracker"
	"github.com/samuelfneumann/statecover/experiment/trackers"
	"github.com/spf13/cobra"
)

var trainFlags struct {
	config string
	cfg    experiment.Config
	exec   string
}

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train towards full state-space coverage",
	Long: `Runs batches of episodes in parallel, steering each batch towards
the bins of the state space no episode has visited yet.

Flags override the values of the configuration file. With --resume the
run continues from the newest valid checkpoint.`,
	Args: cobra.NoArgs,
	RunE: runTrain,
}

func init() {
	c := &trainFlags.cfg
	*c = experiment.DefaultConfig()

	f := trainCmd.Flags()
	f.StringVar(&trainFlags.config, "config", "", "YAML configuration file")
	f.StringVar(&c.World, "world", c.World, "World to train in")
	f.IntVar(&c.Episodes, "episodes", c.Episodes,
		"Episodes to run in this invocation")
	f.Uint64Var(&c.Seed, "seed", c.Seed, "Seed of the scenario generator")
	f.IntVar(&c.Workers, "workers", c.Workers, "Episodes run in parallel")
	f.StringVar(&trainFlags.exec, "executor", string(c.Executor),
		"Executor: thread or process")
	f.BoolVar(&c.Merge, "merge", c.Merge,
		"Merge episode value tables into the shared table")

	f.IntVar(&c.Batch.Size, "batch-size", c.Batch.Size,
		"Episodes per batch, initial size when adaptive")
	f.BoolVar(&c.Batch.Adaptive, "adaptive-batch", c.Batch.Adaptive,
		"Adapt the batch size to the target batch duration")
	f.IntVar(&c.Batch.Min, "batch-min", c.Batch.Min, "Smallest adaptive batch")
	f.IntVar(&c.Batch.Max, "batch-max", c.Batch.Max, "Largest adaptive batch")
	f.DurationVar(&c.Batch.Target, "batch-target", c.Batch.Target,
		"Target batch duration")
	f.Float64Var(&c.Batch.Alpha, "batch-ema-alpha", c.Batch.Alpha,
		"Smoothing of batch durations, in (0, 1]")

	f.Float64Var(&c.Exploration.Epsilon, "epsilon", c.Exploration.Epsilon,
		"Base exploration rate")
	f.Float64Var(&c.Exploration.Ceiling, "epsilon-max",
		c.Exploration.Ceiling, "Ceiling of the exploration rate")
	f.Float64Var(&c.Learning.LearningRate, "learning-rate",
		c.Learning.LearningRate, "Learning rate")
	f.Float64Var(&c.Learning.Discount, "discount", c.Learning.Discount,
		"Discount factor")

	f.StringVar(&c.Checkpoint.Dir, "checkpoint-dir", c.Checkpoint.Dir,
		"Checkpoint location, empty to disable checkpoints")
	f.IntVar(&c.Checkpoint.Every, "checkpoint-every", c.Checkpoint.Every,
		"Episodes between checkpoints")
	f.IntVar(&c.Checkpoint.Keep, "checkpoint-keep", c.Checkpoint.Keep,
		"Checkpoints to retain, 0 keeps all")
	f.StringVar(&c.Checkpoint.Backend, "checkpoint-backend",
		c.Checkpoint.Backend, "Checkpoint store: dir or badger")
	f.BoolVar(&c.Checkpoint.Resume, "resume", c.Checkpoint.Resume,
		"Resume from the newest valid checkpoint")

	f.StringVar(&c.Metrics.CSV, "metrics-csv", c.Metrics.CSV,
		"CSV file receiving one row per batch")
	f.StringVar(&c.Metrics.DB, "metrics-db", c.Metrics.DB,
		"SQLite database receiving one row per batch")
	f.StringVar(&c.Metrics.Addr, "metrics-addr", c.Metrics.Addr,
		"Address serving Prometheus metrics at /metrics")
	f.StringVar(&c.Metrics.Returns, "metrics-returns", c.Metrics.Returns,
		"File receiving the mean return of every batch")
	f.StringVar(&c.Metrics.Lengths, "metrics-lengths", c.Metrics.Lengths,
		"File receiving the mean decisions per episode of every batch")

	f.BoolVar(&c.Progress, "progress", c.Progress, "Show a progress bar")
}

// loadTrainConfig returns the configuration file overridden by every
// flag set on the command line
func loadTrainConfig(cmd *cobra.Command) (experiment.Config, error) {
	flags := trainFlags.cfg
	flags.Executor = pool.Kind(trainFlags.exec)
	if trainFlags.config == "" {
		return flags, flags.Validate()
	}

	c, err := experiment.LoadConfig(trainFlags.config)
	if err != nil {
		return c, err
	}

	set := func(name string, apply func()) {
		if cmd.Flags().Changed(name) {
			apply()
		}
	}
	set("world", func() { c.World = flags.World })
	set("episodes", func() { c.Episodes = flags.Episodes })
	set("seed", func() { c.Seed = flags.Seed })
	set("workers", func() { c.Workers = flags.Workers })
	set("executor", func() { c.Executor = flags.Executor })
	set("merge", func() { c.Merge = flags.Merge })
	set("batch-size", func() { c.Batch.Size = flags.Batch.Size })
	set("adaptive-batch", func() { c.Batch.Adaptive = flags.Batch.Adaptive })
	set("batch-min", func() { c.Batch.Min = flags.Batch.Min })
	set("batch-max", func() { c.Batch.Max = flags.Batch.Max })
	set("batch-target", func() { c.Batch.Target = flags.Batch.Target })
	set("batch-ema-alpha", func() { c.Batch.Alpha = flags.Batch.Alpha })
	set("epsilon", func() { c.Exploration.Epsilon = flags.Exploration.Epsilon })
	set("epsilon-max", func() { c.Exploration.Ceiling = flags.Exploration.Ceiling })
	set("learning-rate", func() { c.Learning.LearningRate = flags.Learning.LearningRate })
	set("discount", func() { c.Learning.Discount = flags.Learning.Discount })
	set("checkpoint-dir", func() { c.Checkpoint.Dir = flags.Checkpoint.Dir })
	set("checkpoint-every", func() { c.Checkpoint.Every = flags.Checkpoint.Every })
	set("checkpoint-keep", func() { c.Checkpoint.Keep = flags.Checkpoint.Keep })
	set("checkpoint-backend", func() { c.Checkpoint.Backend = flags.Checkpoint.Backend })
	set("resume", func() { c.Checkpoint.Resume = flags.Checkpoint.Resume })
	set("metrics-csv", func() { c.Metrics.CSV = flags.Metrics.CSV })
	set("metrics-db", func() { c.Metrics.DB = flags.Metrics.DB })
	set("metrics-addr", func() { c.Metrics.Addr = flags.Metrics.Addr })
	set("metrics-returns", func() { c.Metrics.Returns = flags.Metrics.Returns })
	set("metrics-lengths", func() { c.Metrics.Lengths = flags.Metrics.Lengths })
	set("progress", func() { c.Progress = flags.Progress })

	return c, c.Validate()
}

func runTrain(cmd *cobra.Command, args []string) error {
	logger := slog.Default()
	cfg, err := loadTrainConfig(cmd)
	if err != nil {
		return err
	}

	deps := experiment.Deps{Logger: logger, Progress: os.Stderr}
	if cfg.Executor == pool.Process {
		if deps.WorkerPath, err = os.Executable(); err != nil {
			return fmt.Errorf("locate worker binary: %w", err)
		}
	}

	if cfg.Checkpoint.Dir != "" {
		store, err := cfg.Checkpoint.OpenStore(logger)
		if err != nil {
			return fmt.Errorf("open checkpoint store: %w", err)
		}
		defer store.Close()
		deps.Store = store
	}

	deps.Trackers, err = openTrackers(cfg.Metrics)
	all := tracker.Multi(deps.Trackers)
	defer func() {
		if err := all.Close(); err != nil {
			logger.Error("could not close metrics", slog.String("error",
				err.Error()))
		}
	}()
	if err != nil {
		return err
	}

	if cfg.Metrics.Addr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector())
		deps.Trackers = append(deps.Trackers, trackers.NewPrometheus(reg))

		stop := serveMetrics(cfg.Metrics.Addr, reg, logger)
		defer stop()
	}

	cov, err := experiment.NewCoverage(cfg, deps)
	if err != nil {
		return err
	}

	sum, err := cov.Run(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "run %s stopped (%s) after episode %d\n",
		sum.RunID, sum.Reason, sum.Episode)
	fmt.Fprintln(cmd.OutOrStdout(), sum.Coverage)
	return nil
}

// openTrackers opens every metrics sink named in c. The sinks opened so
// far are returned even on error so that they can be closed.
func openTrackers(c experiment.MetricsConfig) ([]tracker.Tracker, error) {
	var out []tracker.Tracker
	if c.CSV != "" {
		t, err := trackers.NewCSV(c.CSV)
		if err != nil {
			return out, fmt.Errorf("open metrics csv: %w", err)
		}
		out = append(out, t)
	}
	if c.DB != "" {
		t, err := trackers.NewSQLite(c.DB)
		if err != nil {
			return out, fmt.Errorf("open metrics db: %w", err)
		}
		out = append(out, t)
	}
	if c.Returns != "" {
		t, err := trackers.NewReturn(c.Returns)
		if err != nil {
			return out, fmt.Errorf("open metrics returns: %w", err)
		}
		out = append(out, t)
	}
	if c.Lengths != "" {
		t, err := trackers.NewEpisodeLength(c.Lengths)
		if err != nil {
			return out, fmt.Errorf("open metrics lengths: %w", err)
		}
		out = append(out, t)
	}
	return out, nil
}

// serveMetrics serves reg on addr until the returned function is called
func serveMetrics(addr string, reg *prometheus.Registry,
	logger *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("serving metrics", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", slog.String("error",
				err.Error()))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}
