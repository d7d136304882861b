// Package episode runs single training episodes in isolated worlds. An
// episode learns into a private value table, so episodes can run in
// parallel and their results be merged afterwards.
package episode

import (
	"fmt"
	"math/rand/v2"
	"runtime/debug"
	"sort"
	"time"

	"github.com/samuelfneumann/statecover/agent"
	"github.com/samuelfneumann/statecover/environment"
	"github.com/samuelfneumann/statecover/qtable"
	"github.com/samuelfneumann/statecover/scenario"
	"github.com/samuelfneumann/statecover/state"
	"github.com/samuelfneumann/statecover/timestep"
)

// Defaults for a Runner
const (
	DefaultTicks        = 200
	DefaultTickStride   = 3
	DefaultDecisionsMin = 12
	DefaultDecisionsMax = 20
)

// Job describes a single episode to run
type Job struct {
	Episode  int
	Scenario scenario.Config
	Epsilon  float64
	Seed     uint64
}

// Result is the outcome of a single episode. A failed episode has a
// non-empty Err and no Fragment or Visited states.
type Result struct {
	Episode   int
	Fragment  *qtable.Table
	Visited   []state.Index // Sorted, without duplicates
	Updates   int
	Decisions int
	Return    float64
	Err       string
	Duration  time.Duration

	// NotStarted is set on failed Results of Jobs which an executor
	// never began, so that they can be scheduled again
	NotStarted bool
}

// Failed returns whether the episode failed
func (r Result) Failed() bool {
	return r.Err != ""
}

// Error returns the failure of the episode as an error, or nil if the
// episode succeeded
func (r Result) Error() error {
	if !r.Failed() {
		return nil
	}
	return fmt.Errorf("episode %d: %s", r.Episode, r.Err)
}

// Runner runs episodes of worlds created by a Factory
type Runner struct {
	Factory environment.Factory

	// Learning creates each episode's agent. The exploration rate is
	// taken from each Job instead.
	Learning agent.Config

	// Decisions are made every TickStride ticks, up to Ticks ticks. Each
	// time, between DecisionsMin and DecisionsMax decisions are made by
	// randomly chosen actors.
	Ticks        int
	TickStride   int
	DecisionsMin int
	DecisionsMax int
}

// NewRunner returns a new Runner with the default episode length
func NewRunner(f environment.Factory, learning agent.Config) *Runner {
	return &Runner{
		Factory:      f,
		Learning:     learning,
		Ticks:        DefaultTicks,
		TickStride:   DefaultTickStride,
		DecisionsMin: DefaultDecisionsMin,
		DecisionsMax: DefaultDecisionsMax,
	}
}

// Validate returns an error if the Runner is misconfigured
func (r *Runner) Validate() error {
	switch {
	case r.Factory == nil:
		return fmt.Errorf("runner: no world factory")
	case r.Learning == nil:
		return fmt.Errorf("runner: no agent configuration")
	case r.Ticks < 1 || r.TickStride < 1:
		return fmt.Errorf("runner: ticks (%d) and stride (%d) must be "+
			"positive", r.Ticks, r.TickStride)
	case r.DecisionsMin < 0 || r.DecisionsMax < r.DecisionsMin:
		return fmt.Errorf("runner: decisions [%d, %d] invalid",
			r.DecisionsMin, r.DecisionsMax)
	}
	if err := r.Learning.Validate(); err != nil {
		return fmt.Errorf("runner: %w", err)
	}
	return nil
}

// Run runs a single episode. Errors and panics during the episode are
// recorded in the Result rather than returned.
func (r *Runner) Run(job Job) (res Result) {
	start := time.Now()
	res.Episode = job.Episode

	defer func() {
		if p := recover(); p != nil {
			res = Result{
				Episode: job.Episode,
				Err:     fmt.Sprintf("panic: %v\n%s", p, debug.Stack()),
			}
		}
		res.Duration = time.Since(start)
	}()

	if err := r.run(job, &res); err != nil {
		res = Result{Episode: job.Episode, Err: err.Error()}
	}
	return res
}

func (r *Runner) run(job Job, res *Result) error {
	world, err := r.Factory.New(job.Scenario)
	if err != nil {
		return fmt.Errorf("create world: %w", err)
	}

	if job.Epsilon < 0 || job.Epsilon > 1 {
		return fmt.Errorf("epsilon %v outside of [0, 1]", job.Epsilon)
	}
	learner, err := r.Learning.CreateAgent(r.Factory.Actions(), job.Seed)
	if err != nil {
		return fmt.Errorf("create learner: %w", err)
	}
	learner.SetEpsilon(job.Epsilon)

	space := r.Factory.Codec().Space()
	rng := rand.New(rand.NewPCG(job.Seed, uint64(job.Episode)))
	visited := make(map[state.Index]struct{})
	n := 0

	for tick := 0; tick < r.Ticks; tick += r.TickStride {
		world.Tick()
		actors := world.Actors()
		if len(actors) == 0 {
			continue
		}

		decisions := r.DecisionsMin
		if r.DecisionsMax > r.DecisionsMin {
			decisions += rng.IntN(r.DecisionsMax - r.DecisionsMin + 1)
		}

		for d := 0; d < decisions; d++ {
			actor := actors[rng.IntN(len(actors))]
			prev, ok := world.State(actor)
			if !ok {
				continue
			}
			s, err := space.Index(prev)
			if err != nil {
				return fmt.Errorf("state of actor %d: %w", actor, err)
			}

			visited[s] = struct{}{}
			learner.Visit(s)
			action := learner.SelectAction(s)

			effect, err := world.Execute(action, actor)
			if err != nil {
				return fmt.Errorf("execute action %d: %w", action, err)
			}
			res.Decisions++

			next, ok := world.State(actor)
			if !ok {
				res.Return += world.Reward(effect, prev, nil)
				continue
			}
			reward := world.Reward(effect, prev, next)
			res.Return += reward

			nextIndex, err := space.Index(next)
			if err != nil {
				return fmt.Errorf("next state of actor %d: %w", actor, err)
			}
			learner.Step(timestep.New(n, s, action, reward, nextIndex))
			n++
		}
	}

	res.Visited = make([]state.Index, 0, len(visited))
	for s := range visited {
		res.Visited = append(res.Visited, s)
	}
	sort.Slice(res.Visited, func(i, j int) bool {
		return res.Visited[i] < res.Visited[j]
	})
	res.Fragment = learner.Table()
	res.Updates = learner.Updates()
	return nil
}
