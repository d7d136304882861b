package main

import (
	"fmt"
	"os"

	"github.com/samuelfneumann/statecover/experiment"
	"github.com/samuelfneumann/statecover/experiment/episode"
	"github.com/spf13/cobra"
)

var workerCfg = experiment.DefaultConfig()

// workerCmd serves episodes for a process executor. Jobs arrive gob
// encoded on standard input and Results leave on standard output.
var workerCmd = &cobra.Command{
	Use:    "worker",
	Short:  "Serve episodes over standard input and output",
	Hidden: true,
	Args:   cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		runner, err := workerCfg.Runner()
		if err != nil {
			return err
		}
		if err := runner.Validate(); err != nil {
			return fmt.Errorf("worker: %w", err)
		}
		return episode.Serve(cmd.Context(), os.Stdin, os.Stdout, runner)
	},
}

func init() {
	f := workerCmd.Flags()
	f.StringVar(&workerCfg.World, "world", workerCfg.World, "World to run")
	f.Float64Var(&workerCfg.Learning.LearningRate, "learning-rate",
		workerCfg.Learning.LearningRate, "Learning rate")
	f.Float64Var(&workerCfg.Learning.Discount, "discount",
		workerCfg.Learning.Discount, "Discount factor")
	f.IntVar(&workerCfg.Episode.Ticks, "ticks", workerCfg.Episode.Ticks,
		"Ticks per episode")
	f.IntVar(&workerCfg.Episode.TickStride, "tick-stride",
		workerCfg.Episode.TickStride, "Ticks between decision rounds")
	f.IntVar(&workerCfg.Episode.DecisionsMin, "decisions-min",
		workerCfg.Episode.DecisionsMin, "Fewest decisions per round")
	f.IntVar(&workerCfg.Episode.DecisionsMax, "decisions-max",
		workerCfg.Episode.DecisionsMax, "Most decisions per round")
}
