package qlearning

import (
	"fmt"

	"github.com/samuelfneumann/statecover/agent"
)

// Config represents a configuration for the QLearning agent
type Config struct {
	Epsilon      float64 `yaml:"epsilon"` // epislon for behaviour policy
	LearningRate float64 `yaml:"learning_rate"`
	Discount     float64 `yaml:"discount"`
}

// DefaultConfig returns the step size and discount used by the trainer.
// Epsilon is usually overridden per episode.
func DefaultConfig() Config {
	return Config{Epsilon: 0.3, LearningRate: 0.25, Discount: 0.9}
}

// CreateAgent creates the agent from the Config. Action values always
// start at zero.
func (c Config) CreateAgent(actions int, seed uint64) (agent.Agent, error) {
	q, err := New(actions, c, seed)
	if err != nil {
		return nil, err
	}
	return q, nil
}

// Validate ensures that the Config is valid
func (c Config) Validate() error {
	if c.Epsilon < 0 || c.Epsilon > 1 {
		return fmt.Errorf("epsilon must be in [0, 1], got %v", c.Epsilon)
	}
	if c.LearningRate <= 0 || c.LearningRate > 1 {
		return fmt.Errorf("learning rate must be in (0, 1], got %v",
			c.LearningRate)
	}
	if c.Discount < 0 || c.Discount > 1 {
		return fmt.Errorf("discount must be in [0, 1], got %v", c.Discount)
	}
	return nil
}
