// Package experiment implements the coverage training loop: batches of
// episodes are scheduled towards unvisited states, run in parallel, and
// merged into a single value table and coverage set.
package experiment

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/samuelfneumann/statecover/adapt"
	"github.com/samuelfneumann/statecover/coverage"
	"github.com/samuelfneumann/statecover/environment"
	"github.com/samuelfneumann/statecover/experiment/checkpointer"
	"github.com/samuelfneumann/statecover/experiment/episode"
	"github.com/samuelfneumann/statecover/experiment/pool"
	"github.com/samuelfneumann/statecover/experiment/tracker"
	"github.com/samuelfneumann/statecover/qtable"
	"github.com/samuelfneumann/statecover/scenario"
	"github.com/samuelfneumann/statecover/state"
	"github.com/samuelfneumann/statecover/utils/floatutils"
	"github.com/samuelfneumann/statecover/utils/progressbar"
	"gonum.org/v1/gonum/stat/distuv"
)

// maxLoggedFailures is the number of failed episodes per batch logged in
// full. The rest are only counted.
const maxLoggedFailures = 3

// Bounds of the per-episode exploration rate once jitter is added
const (
	minEpisodeEpsilon = 0.05
	maxEpisodeEpsilon = 0.95
)

// StopReason records why a run ended
type StopReason string

const (
	StopBudget    StopReason = "budget"
	StopComplete  StopReason = "complete"
	StopCancelled StopReason = "cancelled"
)

// Deps holds the collaborators of a Coverage run. The caller owns the
// Store and Trackers and must close them after the run.
type Deps struct {
	// Executor runs batches. If nil, one is built from the Config; a
	// process executor then re-invokes WorkerPath with Config.WorkerArgs.
	Executor   pool.Executor
	WorkerPath string

	// Store holds checkpoints. If nil, no checkpoints are saved or
	// loaded.
	Store checkpointer.Store

	Trackers []tracker.Tracker
	Logger   *slog.Logger

	// Progress receives a progress bar if Config.Progress is set
	Progress io.Writer
}

// Summary describes a finished run
type Summary struct {
	RunID    string
	Start    int // Episode count when the run started
	Episode  int // Episode count when the run ended
	Failures int
	Updates  int
	Epsilon  float64
	Elapsed  time.Duration
	Reason   StopReason
	Coverage coverage.Report
}

// Coverage trains a single shared value table while driving episodes
// towards unvisited states
type Coverage struct {
	cfg      Config
	factory  environment.Factory
	executor pool.Executor
	analyzer *scenario.Analyzer
	blend    qtable.Blend
	plateau  *adapt.Plateau
	sizer    *adapt.BatchSizer
	manager  *checkpointer.Manager
	nstep    *checkpointer.NStep
	trackers tracker.Multi
	logger   *slog.Logger
	progress io.Writer
	rng      *rand.Rand

	runID   string
	table   *qtable.Table
	tracker *coverage.Tracker
	report  coverage.Report
	episode int
	saved   int // Episode of the last checkpoint saved or loaded
}

// NewCoverage returns a new Coverage run. If the configuration asks to
// resume, the newest valid checkpoint is loaded.
func NewCoverage(cfg Config, deps Deps) (*Coverage, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("newCoverage: %w", err)
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	factory, err := environment.Lookup(cfg.World)
	if err != nil {
		return nil, fmt.Errorf("newCoverage: %w", err)
	}

	executor := deps.Executor
	if executor == nil {
		runner, err := cfg.Runner()
		if err != nil {
			return nil, fmt.Errorf("newCoverage: %w", err)
		}
		executor, err = pool.New(pool.Options{
			Kind:    cfg.Executor,
			Workers: cfg.Workers,
			Runner:  runner,
			Path:    deps.WorkerPath,
			Args:    cfg.WorkerArgs(),
			Logger:  logger,
		})
		if err != nil {
			return nil, fmt.Errorf("newCoverage: %w", err)
		}
	}

	biaser, _ := factory.(scenario.Biaser)
	analyzer := scenario.NewAnalyzer(biaser)
	analyzer.TargetFraction = cfg.TargetFraction

	space := factory.Codec().Space()
	seed := rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)
	c := &Coverage{
		cfg:      cfg,
		factory:  factory,
		executor: executor,
		analyzer: analyzer,
		blend:    qtable.Blend{Existing: cfg.MergeExisting},
		plateau:  cfg.Plateau(),
		sizer:    cfg.BatchSizer(),
		trackers: tracker.Multi(deps.Trackers),
		logger:   logger,
		progress: deps.Progress,
		rng:      rand.New(seed),
		runID:    uuid.NewString(),
		table:    qtable.New(factory.Actions()),
		tracker:  coverage.NewTracker(coverage.NewSet(space)),
	}
	c.report = coverage.Summarize(c.tracker.Set())

	if deps.Store != nil {
		c.manager = checkpointer.NewManager(deps.Store, cfg.Checkpoint.Keep,
			logger)
		c.nstep = checkpointer.NewNStep(cfg.Checkpoint.Every, c.manager,
			c.Snapshot)
	}

	if cfg.Checkpoint.Resume {
		if c.manager == nil {
			return nil, fmt.Errorf("newCoverage: %w: resume needs a "+
				"checkpoint store", ErrInvalidConfig)
		}
		if err := c.resume(); err != nil {
			return nil, fmt.Errorf("newCoverage: %w", err)
		}
	}

	return c, nil
}

// resume restores the run from the newest valid checkpoint, if any
func (c *Coverage) resume() error {
	snap, ok, err := c.manager.LoadLatest()
	if err != nil {
		return err
	}
	if !ok {
		c.logger.Info("no checkpoint to resume from, starting fresh")
		return nil
	}

	space := c.factory.Codec().Space()
	saved, err := state.NewSpace(snap.Dims...)
	if err != nil || !space.Equal(saved) {
		return fmt.Errorf("%w: checkpoint dims %v do not match world %q "+
			"dims %v", ErrInvalidConfig, snap.Dims, c.cfg.World, space.Dims())
	}
	if snap.Actions != c.factory.Actions() {
		return fmt.Errorf("%w: checkpoint has %d actions, world %q has %d",
			ErrInvalidConfig, snap.Actions, c.cfg.World, c.factory.Actions())
	}

	set := coverage.NewSet(space)
	for _, i := range snap.Coverage {
		set.Add(i)
	}

	if snap.RunID != "" {
		c.runID = snap.RunID
	}
	c.table = snap.Table
	c.tracker = coverage.NewTracker(set)
	c.report = coverage.Summarize(set)
	c.episode = snap.Episode
	c.saved = snap.Episode
	c.plateau.Restore(snap.Epsilon, snap.Episode, set.Len())
	if snap.BatchSize > 0 {
		c.sizer.Restore(snap.BatchSize)
	}

	c.logger.Info("resumed from checkpoint",
		slog.String("run_id", c.runID),
		slog.Int("episode", c.episode),
		slog.Int("states", c.table.Len()),
		slog.Int("covered", set.Len()),
		slog.Float64("epsilon", c.plateau.Rate()),
	)
	return nil
}

// RunID returns the identifier stamped on checkpoints and metrics
func (c *Coverage) RunID() string {
	return c.runID
}

// Episode returns the number of episodes run so far, including those of
// resumed runs
func (c *Coverage) Episode() int {
	return c.episode
}

// Table returns the shared value table
func (c *Coverage) Table() *qtable.Table {
	return c.table
}

// Report returns the current coverage
func (c *Coverage) Report() coverage.Report {
	return c.report
}

// Snapshot returns the current state of the run. The Snapshot shares the
// value table with the run and must be used before the next batch.
func (c *Coverage) Snapshot() checkpointer.Snapshot {
	return checkpointer.Snapshot{
		Version:    checkpointer.FormatVersion,
		KeyVersion: state.KeyVersion,
		RunID:      c.runID,
		Episode:    c.episode,
		Epsilon:    c.plateau.Rate(),
		Dims:       c.factory.Codec().Space().Dims(),
		Actions:    c.factory.Actions(),
		Table:      c.table,
		Coverage:   c.tracker.Set().Indices(),
		BatchSize:  c.sizer.Size(),
		CreatedAt:  time.Now().UTC(),
	}
}

// Run runs batches until the configured number of episodes has been run,
// every state has been visited, or ctx is cancelled. A final checkpoint
// is saved when the run ends.
func (c *Coverage) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	sum := Summary{RunID: c.runID, Start: c.episode, Reason: StopBudget}
	end := c.episode + c.cfg.Episodes

	var bar *progressbar.ManualProgressBar
	if c.cfg.Progress && c.progress != nil {
		bar = progressbar.NewManualProgressBar(c.progress, 40, c.cfg.Episodes)
		defer bar.Close()
	}

	c.logger.Info("training started",
		slog.String("run_id", c.runID),
		slog.String("world", c.cfg.World),
		slog.Int("episode", c.episode),
		slog.Int("episodes", c.cfg.Episodes),
		slog.Uint64("states", c.report.Size),
		slog.Int("covered", c.report.Distinct),
	)

	for c.episode < end {
		if ctx.Err() != nil {
			sum.Reason = StopCancelled
			break
		}
		if c.report.Complete() {
			sum.Reason = StopComplete
			break
		}

		rec, err := c.RunBatch(ctx, min(c.sizer.Size(), end-c.episode))
		if err != nil {
			return c.finish(sum, start), err
		}
		sum.Failures += rec.Failures
		sum.Updates += rec.Updates

		if bar != nil {
			bar.Set(c.episode - sum.Start)
			bar.Display(fmt.Sprintf("%d states (%.4f%%) ε=%.2f",
				rec.Cumulative, rec.CoveragePercent, c.plateau.Rate()))
		}
	}
	if sum.Reason == StopBudget && c.report.Complete() {
		sum.Reason = StopComplete
	}

	if err := c.save(); err != nil {
		return c.finish(sum, start), err
	}

	sum = c.finish(sum, start)
	c.logger.Info("training finished",
		slog.String("reason", string(sum.Reason)),
		slog.Int("episode", sum.Episode),
		slog.Int("failures", sum.Failures),
		slog.Duration("elapsed", sum.Elapsed),
		slog.String("coverage", sum.Coverage.String()),
	)
	return sum, nil
}

func (c *Coverage) finish(sum Summary, start time.Time) Summary {
	sum.Episode = c.episode
	sum.Epsilon = c.plateau.Rate()
	sum.Elapsed = time.Since(start)
	sum.Coverage = c.report
	return sum
}

// save saves a checkpoint of the current episode unless one exists
func (c *Coverage) save() error {
	if c.manager == nil || c.episode == c.saved {
		return nil
	}
	if err := c.manager.Save(c.Snapshot()); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	c.saved = c.episode
	return nil
}

// RunBatch runs a single batch of n episodes and returns its metrics.
// Episodes which the executor never started, after ctx is cancelled, are
// not counted.
func (c *Coverage) RunBatch(ctx context.Context, n int) (tracker.Record,
	error) {
	if n < 1 {
		return tracker.Record{}, fmt.Errorf("runBatch: batch size %d < 1", n)
	}
	start := time.Now()

	// Schedule towards the gaps of the current coverage
	plan := c.analyzer.Plan(c.tracker.Set())
	configs := plan.Sample(n, c.rng)
	if plan.Gaps() {
		c.logger.Debug("coverage gaps",
			slog.Any("missing", plan.Names(c.factory.Codec().Names())),
			slog.Uint64("estimated_missing", plan.EstimatedMissing),
		)
	}
	epsilon := c.plateau.Rate()
	jobs := make([]episode.Job, n)
	for i, cfg := range configs {
		jobs[i] = episode.Job{
			Episode:  c.episode + i,
			Scenario: cfg,
			Epsilon:  c.jitter(epsilon),
			Seed:     c.rng.Uint64(),
		}
	}

	results, err := c.executor.Execute(ctx, jobs)
	if err != nil {
		return tracker.Record{}, fmt.Errorf("runBatch: %w", err)
	}
	if len(results) != len(jobs) {
		return tracker.Record{}, fmt.Errorf("runBatch: %d results for %d "+
			"episodes", len(results), len(jobs))
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Episode < results[j].Episode
	})

	var (
		fragments []*qtable.Table
		visited   [][]state.Index
		failures  []error
		started   int
		updates   int
		ret       float64
		decisions float64
	)
	for _, r := range results {
		if r.NotStarted {
			continue
		}
		started++
		if r.Failed() {
			failures = append(failures, r.Error())
			continue
		}
		if r.Fragment != nil {
			fragments = append(fragments, r.Fragment)
		}
		visited = append(visited, r.Visited)
		updates += r.Updates
		ret += r.Return
		decisions += float64(r.Decisions)
	}
	if ok := started - len(failures); ok > 0 {
		ret /= float64(ok)
		decisions /= float64(ok)
	}
	c.logFailures(failures)

	if c.cfg.Merge {
		stats, err := c.blend.Merge(c.table, fragments...)
		if err != nil {
			return tracker.Record{}, fmt.Errorf("runBatch: %w", err)
		}
		c.logger.Debug("fragments merged",
			slog.Int("fragments", len(fragments)),
			slog.Int("inserted", stats.Inserted),
			slog.Int("blended", stats.Blended),
		)
	}

	c.report = c.tracker.Absorb(visited...)
	if c.report.Skipped > 0 {
		c.logger.Warn("visited states outside of the state space",
			slog.Int("skipped", c.report.Skipped))
	}

	prev := c.episode
	c.episode += started
	if started < n {
		c.logger.Warn("batch cut short",
			slog.Int("started", started),
			slog.Int("planned", n),
		)
	}

	if c.plateau.Observe(c.episode, c.report.Distinct) {
		c.logger.Info("coverage plateau, exploration raised",
			slog.Int("episode", c.episode),
			slog.Float64("epsilon", c.plateau.Rate()),
			slog.String("mode", c.plateau.Mode().String()),
		)
	}

	elapsed := time.Since(start)
	next := c.sizer.Size()
	if started == n {
		next = c.sizer.Observe(elapsed)
	}

	rec := tracker.Record{
		RunID:           c.runID,
		BatchStart:      prev,
		BatchEnd:        c.episode,
		BatchSize:       started,
		NewStates:       c.report.New,
		BatchSeconds:    elapsed.Seconds(),
		EMASeconds:      c.sizer.EMA().Seconds(),
		Cumulative:      c.report.Distinct,
		CoveragePercent: c.report.Percent(),
		Updates:         updates,
		Failures:        len(failures),
		Epsilon:         epsilon,
		Return:          ret,
		Decisions:       decisions,
	}
	if s := elapsed.Seconds(); s > 0 {
		rec.StatesPerSecond = float64(rec.NewStates) / s
	}

	if err := c.trackers.Track(rec); err != nil {
		c.logger.Warn("could not record metrics", slog.String("error",
			err.Error()))
	}

	c.logger.Info("batch finished",
		slog.Int("episodes", rec.BatchEnd),
		slog.Int("new", rec.NewStates),
		slog.Int("covered", rec.Cumulative),
		slog.Float64("coverage_percent", rec.CoveragePercent),
		slog.Int("missing_bins", len(plan.Targets())),
		slog.Float64("epsilon", epsilon),
		slog.Duration("elapsed", elapsed),
		slog.Int("next_batch", next),
	)

	if c.nstep != nil && c.nstep.Due(prev, c.episode) {
		if err := c.nstep.Checkpoint(prev, c.episode); err != nil {
			return rec, fmt.Errorf("runBatch: checkpoint: %w", err)
		}
		c.saved = c.episode
	}

	return rec, nil
}

// jitter returns the exploration rate of a single episode
func (c *Coverage) jitter(epsilon float64) float64 {
	if c.cfg.Exploration.Jitter == 0 {
		return epsilon
	}
	n := distuv.Normal{Mu: epsilon, Sigma: c.cfg.Exploration.Jitter,
		Src: c.rng}
	return floatutils.Clip(n.Rand(), minEpisodeEpsilon, maxEpisodeEpsilon)
}

func (c *Coverage) logFailures(failures []error) {
	if len(failures) == 0 {
		return
	}
	for _, err := range failures[:min(len(failures), maxLoggedFailures)] {
		c.logger.Error("episode failed", slog.String("error", err.Error()))
	}
	c.logger.Warn("episodes failed in batch",
		slog.Int("failures", len(failures)),
		slog.String("first", failures[0].Error()),
	)
}
