package pool

import (
	"context"
	"fmt"

	"github.com/samuelfneumann/statecover/experiment/episode"
	"golang.org/x/sync/errgroup"
)

// ThreadPool runs episodes on at most Workers goroutines
type ThreadPool struct {
	Runner  *episode.Runner
	Workers int
}

// Execute implements the Executor interface
func (t *ThreadPool) Execute(ctx context.Context,
	jobs []episode.Job) ([]episode.Result, error) {
	if t.Workers < 1 {
		return nil, fmt.Errorf("execute: workers %d < 1", t.Workers)
	}
	if t.Runner == nil {
		return nil, fmt.Errorf("execute: no runner")
	}
	results := make([]episode.Result, len(jobs))

	var g errgroup.Group
	g.SetLimit(t.Workers)
	for i, job := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = cancelled(job, err)
				return nil
			}
			results[i] = t.Runner.Run(job)
			return nil
		})
	}

	return results, g.Wait()
}
