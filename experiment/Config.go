package experiment

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/samuelfneumann/statecover/adapt"
	"github.com/samuelfneumann/statecover/agent/tabular/qlearning"
	"github.com/samuelfneumann/statecover/environment"
	"github.com/samuelfneumann/statecover/experiment/checkpointer"
	"github.com/samuelfneumann/statecover/experiment/episode"
	"github.com/samuelfneumann/statecover/experiment/pool"
	"github.com/samuelfneumann/statecover/qtable"
	"github.com/samuelfneumann/statecover/scenario"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is wrapped by every configuration error
var ErrInvalidConfig = errors.New("invalid configuration")

// Checkpoint store backends
const (
	BackendDir    = "dir"
	BackendBadger = "badger"
)

// Config configures a coverage training run
type Config struct {
	// World names the registered environment.Factory to train in
	World string `yaml:"world"`

	// Episodes is the number of episodes to run in this invocation. When
	// resuming, episodes continue from the checkpointed count.
	Episodes int    `yaml:"episodes"`
	Seed     uint64 `yaml:"seed"`

	Workers  int       `yaml:"workers"`
	Executor pool.Kind `yaml:"executor"`

	// Merge controls whether episode value tables are merged into the
	// shared table. Coverage is tracked either way.
	Merge         bool    `yaml:"merge"`
	MergeExisting float64 `yaml:"merge_existing"`

	// TargetFraction is the share of each batch aimed at coverage gaps
	TargetFraction float64 `yaml:"target_fraction"`

	Learning    LearningConfig    `yaml:"learning"`
	Exploration ExplorationConfig `yaml:"exploration"`
	Batch       BatchConfig       `yaml:"batch"`
	Episode     EpisodeConfig     `yaml:"episode"`
	Checkpoint  CheckpointConfig  `yaml:"checkpoint"`
	Metrics     MetricsConfig     `yaml:"metrics"`

	Progress bool `yaml:"progress"`
}

// LearningConfig configures the value updates of each episode
type LearningConfig struct {
	LearningRate float64 `yaml:"learning_rate"`
	Discount     float64 `yaml:"discount"`
}

// ExplorationConfig configures the plateau-driven exploration rate
type ExplorationConfig struct {
	Epsilon float64 `yaml:"epsilon"`

	// Jitter is the standard deviation of the per-episode noise added to
	// the exploration rate
	Jitter float64 `yaml:"jitter"`

	Ceiling   float64 `yaml:"ceiling"`
	Increment float64 `yaml:"increment"`
	Window    int     `yaml:"window"`
	MinNew    int     `yaml:"min_new"`
}

// BatchConfig configures the number of episodes per batch
type BatchConfig struct {
	Size     int           `yaml:"size"`
	Adaptive bool          `yaml:"adaptive"`
	Min      int           `yaml:"min"`
	Max      int           `yaml:"max"`
	Target   time.Duration `yaml:"target"`
	Alpha    float64       `yaml:"ema_alpha"`
}

// EpisodeConfig configures the length of each episode
type EpisodeConfig struct {
	Ticks        int `yaml:"ticks"`
	TickStride   int `yaml:"tick_stride"`
	DecisionsMin int `yaml:"decisions_min"`
	DecisionsMax int `yaml:"decisions_max"`
}

// CheckpointConfig configures where and how often checkpoints are saved.
// An empty Dir disables checkpointing.
type CheckpointConfig struct {
	Dir     string `yaml:"dir"`
	Backend string `yaml:"backend"`
	Every   int    `yaml:"every"`
	Keep    int    `yaml:"keep"`
	Resume  bool   `yaml:"resume"`
}

// MetricsConfig configures the metrics sinks. Empty fields disable the
// corresponding sink.
type MetricsConfig struct {
	CSV     string `yaml:"csv"`
	DB      string `yaml:"db"`
	Addr    string `yaml:"addr"`
	Returns string `yaml:"returns"`
	Lengths string `yaml:"lengths"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	learning := qlearning.DefaultConfig()
	return Config{
		World:          "tribal",
		Episodes:       5000,
		Seed:           1,
		Workers:        8,
		Executor:       pool.Thread,
		Merge:          true,
		MergeExisting:  qtable.DefaultBlend.Existing,
		TargetFraction: scenario.DefaultTargetFraction,
		Learning: LearningConfig{
			LearningRate: learning.LearningRate,
			Discount:     learning.Discount,
		},
		Exploration: ExplorationConfig{
			Epsilon:   0.55,
			Jitter:    0.05,
			Ceiling:   adapt.DefaultCeiling,
			Increment: adapt.DefaultIncrement,
			Window:    adapt.DefaultWindow,
			MinNew:    adapt.DefaultMinNew,
		},
		Batch: BatchConfig{
			Size:     50,
			Adaptive: true,
			Min:      adapt.DefaultMin,
			Max:      adapt.DefaultMax,
			Target:   adapt.DefaultTarget,
			Alpha:    adapt.DefaultAlpha,
		},
		Episode: EpisodeConfig{
			Ticks:        episode.DefaultTicks,
			TickStride:   episode.DefaultTickStride,
			DecisionsMin: episode.DefaultDecisionsMin,
			DecisionsMax: episode.DefaultDecisionsMax,
		},
		Checkpoint: CheckpointConfig{
			Dir:     "checkpoints",
			Backend: BackendDir,
			Every:   500,
		},
	}
}

// LoadConfig reads a YAML configuration file over the defaults. Fields
// missing from the file keep their default values.
func LoadConfig(path string) (Config, error) {
	c := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("load config: %w", err)
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("load config: %w: %v", ErrInvalidConfig, err)
	}

	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("load config: %w", err)
	}
	return c, nil
}

// Validate returns an error wrapping ErrInvalidConfig if the
// configuration cannot be run
func (c Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig,
			fmt.Sprintf(format, args...))
	}

	if _, err := environment.Lookup(c.World); err != nil {
		return invalid("%v", err)
	}

	switch {
	case c.Episodes < 1:
		return invalid("episodes %d < 1", c.Episodes)
	case c.Workers < 1:
		return invalid("workers %d < 1", c.Workers)
	case c.Executor != pool.Thread && c.Executor != pool.Process:
		return invalid("no such executor %q", c.Executor)
	case c.TargetFraction < 0 || c.TargetFraction > 1:
		return invalid("target fraction %v not in [0, 1]", c.TargetFraction)
	case c.Exploration.Jitter < 0:
		return invalid("exploration jitter %v < 0", c.Exploration.Jitter)
	case c.Checkpoint.Backend != BackendDir &&
		c.Checkpoint.Backend != BackendBadger:
		return invalid("no such checkpoint backend %q", c.Checkpoint.Backend)
	case c.Checkpoint.Every < 0 || c.Checkpoint.Keep < 0:
		return invalid("checkpoint interval %d and retention %d must not "+
			"be negative", c.Checkpoint.Every, c.Checkpoint.Keep)
	case c.Checkpoint.Resume && c.Checkpoint.Dir == "":
		return invalid("cannot resume without a checkpoint directory")
	}

	if err := (qtable.Blend{Existing: c.MergeExisting}).Validate(); err != nil {
		return invalid("%v", err)
	}
	if err := c.Plateau().Validate(); err != nil {
		return invalid("%v", err)
	}
	if err := c.BatchSizer().Validate(); err != nil {
		return invalid("%v", err)
	}

	runner, err := c.Runner()
	if err != nil {
		return err
	}
	if err := runner.Validate(); err != nil {
		return invalid("%v", err)
	}
	return nil
}

// Runner returns the episode Runner described by the configuration
func (c Config) Runner() (*episode.Runner, error) {
	f, err := environment.Lookup(c.World)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	r := episode.NewRunner(f, qlearning.Config{
		Epsilon:      c.Exploration.Epsilon,
		LearningRate: c.Learning.LearningRate,
		Discount:     c.Learning.Discount,
	})
	r.Ticks = c.Episode.Ticks
	r.TickStride = c.Episode.TickStride
	r.DecisionsMin = c.Episode.DecisionsMin
	r.DecisionsMax = c.Episode.DecisionsMax
	return r, nil
}

// Plateau returns the exploration controller described by the
// configuration
func (c Config) Plateau() *adapt.Plateau {
	p := adapt.NewPlateau(c.Exploration.Epsilon)
	p.Ceiling = c.Exploration.Ceiling
	p.Increment = c.Exploration.Increment
	p.Window = c.Exploration.Window
	p.MinNew = c.Exploration.MinNew
	return p
}

// BatchSizer returns the batch size controller described by the
// configuration
func (c Config) BatchSizer() *adapt.BatchSizer {
	b := adapt.NewBatchSizer(c.Batch.Size)
	b.Min = c.Batch.Min
	b.Max = c.Batch.Max
	b.Target = c.Batch.Target
	b.Alpha = c.Batch.Alpha
	b.Enabled = c.Batch.Adaptive
	return b
}

// WorkerArgs returns the arguments with which the statecover binary
// serves episodes as a worker process for this configuration
func (c Config) WorkerArgs() []string {
	float := func(f float64) string {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return []string{
		"worker",
		"--world", c.World,
		"--learning-rate", float(c.Learning.LearningRate),
		"--discount", float(c.Learning.Discount),
		"--ticks", strconv.Itoa(c.Episode.Ticks),
		"--tick-stride", strconv.Itoa(c.Episode.TickStride),
		"--decisions-min", strconv.Itoa(c.Episode.DecisionsMin),
		"--decisions-max", strconv.Itoa(c.Episode.DecisionsMax),
	}
}

// OpenStore opens the checkpoint store described by the configuration
func (c CheckpointConfig) OpenStore(logger *slog.Logger) (checkpointer.Store,
	error) {
	switch c.Backend {
	case BackendBadger:
		b, err := checkpointer.OpenBadger(c.Dir, logger)
		if err != nil {
			return nil, err
		}
		return b, nil

	case BackendDir:
		d, err := checkpointer.NewDir(c.Dir)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
	return nil, fmt.Errorf("%w: no such checkpoint backend %q",
		ErrInvalidConfig, c.Backend)
}
