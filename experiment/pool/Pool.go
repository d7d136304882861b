// Package pool executes batches of episodes in parallel, either on
// goroutines of the current process or in child worker processes
package pool

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samuelfneumann/statecover/experiment/episode"
)

// Executor runs batches of episodes. Execute blocks until every Job has
// a Result, and returns exactly one Result per Job in no particular
// order. Failed episodes are reported through their Result. An error is
// returned only if the Executor itself could not run, in which case the
// Results must be discarded.
//
// If ctx is cancelled, Jobs not yet started fail with the context's
// error while running episodes finish normally.
type Executor interface {
	Execute(ctx context.Context, jobs []episode.Job) ([]episode.Result, error)
}

// Kind is a kind of Executor
type Kind string

const (
	Thread  Kind = "thread"
	Process Kind = "process"
)

// Options configures a new Executor
type Options struct {
	Kind    Kind
	Workers int

	// Runner runs episodes of a thread Executor
	Runner *episode.Runner

	// Path and Args give the command which starts a worker process. The
	// worker must serve Jobs on its standard input and output as
	// episode.Serve does.
	Path string
	Args []string
	Env  []string

	Logger *slog.Logger
}

// New returns a new Executor
func New(o Options) (Executor, error) {
	if o.Workers < 1 {
		return nil, fmt.Errorf("new: workers %d < 1", o.Workers)
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}

	switch o.Kind {
	case Thread:
		if o.Runner == nil {
			return nil, fmt.Errorf("new: thread executor needs a runner")
		}
		return &ThreadPool{Runner: o.Runner, Workers: o.Workers}, nil

	case Process:
		if o.Path == "" {
			return nil, fmt.Errorf("new: process executor needs a worker " +
				"command")
		}
		return &ProcessPool{
			Path:    o.Path,
			Args:    o.Args,
			Env:     o.Env,
			Workers: o.Workers,
			Logger:  o.Logger,
		}, nil
	}

	return nil, fmt.Errorf("new: no such executor %q", o.Kind)
}

// cancelled returns the Result of a Job which was never started
func cancelled(job episode.Job, err error) episode.Result {
	return episode.Result{
		Episode:    job.Episode,
		Err:        fmt.Sprintf("not started: %v", err),
		NotStarted: true,
	}
}
