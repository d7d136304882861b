package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/samuelfneumann/statecover/coverage"
	"github.com/samuelfneumann/statecover/coverage/plot"
	"github.com/samuelfneumann/statecover/environment"
	"github.com/samuelfneumann/statecover/experiment"
	"github.com/samuelfneumann/statecover/experiment/checkpointer"
	"github.com/samuelfneumann/statecover/experiment/tracker"
	"github.com/samuelfneumann/statecover/experiment/trackers"
	"github.com/samuelfneumann/statecover/scenario"
	"github.com/samuelfneumann/statecover/state"
	"github.com/spf13/cobra"
)

var reportFlags struct {
	world   string
	dir     string
	backend string
	plot    string
	db      string
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Report the coverage of the newest checkpoint",
	Args:  cobra.NoArgs,
	RunE:  runReport,
}

func init() {
	d := experiment.DefaultConfig()
	f := reportCmd.Flags()
	f.StringVar(&reportFlags.world, "world", d.World, "World of the run")
	f.StringVar(&reportFlags.dir, "checkpoint-dir", d.Checkpoint.Dir,
		"Checkpoint location")
	f.StringVar(&reportFlags.backend, "checkpoint-backend",
		d.Checkpoint.Backend, "Checkpoint store: dir or badger")
	f.StringVar(&reportFlags.plot, "plot", "",
		"Write a per-dimension coverage chart to this PNG file")
	f.StringVar(&reportFlags.db, "metrics-db", "",
		"Also summarize the batches recorded in this SQLite database")
}

func runReport(cmd *cobra.Command, args []string) error {
	logger := slog.Default()
	factory, err := environment.Lookup(reportFlags.world)
	if err != nil {
		return err
	}

	cfg := experiment.CheckpointConfig{
		Dir:     reportFlags.dir,
		Backend: reportFlags.backend,
	}
	store, err := cfg.OpenStore(logger)
	if err != nil {
		return fmt.Errorf("open checkpoint store: %w", err)
	}
	defer store.Close()

	snap, ok, err := checkpointer.NewManager(store, 0, logger).LoadLatest()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no valid checkpoint in %s", reportFlags.dir)
	}

	space, err := state.NewSpace(snap.Dims...)
	if err != nil {
		return err
	}
	codec := factory.Codec()
	if !space.Equal(codec.Space()) {
		return fmt.Errorf("checkpoint dims %v do not match world %q",
			snap.Dims, reportFlags.world)
	}

	set := coverage.NewSet(space)
	for _, i := range snap.Coverage {
		set.Add(i)
	}
	writeReport(cmd.OutOrStdout(), snap, set, codec.Names())

	if reportFlags.db != "" {
		records, err := trackers.ReadSQLite(reportFlags.db)
		if err != nil {
			return err
		}
		writeBatches(cmd.OutOrStdout(), snap.RunID, records)
	}

	if reportFlags.plot != "" {
		if err := plot.Render(set, codec.Names(), reportFlags.plot); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "coverage chart written to %s\n",
			reportFlags.plot)
	}
	return nil
}

func writeReport(w io.Writer, snap checkpointer.Snapshot, set *coverage.Set,
	names []string) {
	report := coverage.Summarize(set)
	plan := scenario.NewAnalyzer(nil).Plan(set)

	fmt.Fprintf(w, "run:        %s\n", snap.RunID)
	fmt.Fprintf(w, "episode:    %d (saved %s)\n", snap.Episode,
		snap.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "epsilon:    %.3f\n", snap.Epsilon)
	fmt.Fprintf(w, "q states:   %d\n", snap.Table.Len())
	fmt.Fprintf(w, "coverage:   %s\n", report)

	space := set.Space()
	fmt.Fprintln(w, "dimensions:")
	for d, n := range report.PerDim {
		fmt.Fprintf(w, "  %-22s %2d/%2d bins", names[d], n, space.Bins(d))
		if len(plan.Missing[d]) > 0 {
			fmt.Fprintf(w, "  missing %v", plan.Missing[d])
		}
		fmt.Fprintln(w)
	}
	if plan.Gaps() {
		fmt.Fprintf(w, "states in missing bins: ~%d\n", plan.EstimatedMissing)
	}
}

// writeBatches summarizes the recorded batches of a run
func writeBatches(w io.Writer, runID string, records []tracker.Record) {
	var (
		batches, failures, updates int
		seconds                    float64
		last                       tracker.Record
	)
	for _, r := range records {
		if r.RunID != runID {
			continue
		}
		batches++
		failures += r.Failures
		updates += r.Updates
		seconds += r.BatchSeconds
		last = r
	}
	if batches == 0 {
		fmt.Fprintf(w, "no batches recorded for run %s\n", runID)
		return
	}

	fmt.Fprintf(w, "batches:    %d, last ending at episode %d\n", batches,
		last.BatchEnd)
	fmt.Fprintf(w, "failures:   %d\n", failures)
	fmt.Fprintf(w, "q updates:  %d\n", updates)
	fmt.Fprintf(w, "mean batch: %.2fs (last size %d, ema %.2fs)\n",
		seconds/float64(batches), last.BatchSize, last.EMASeconds)
}
