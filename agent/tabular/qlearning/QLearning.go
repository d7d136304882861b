// Package qlearning implements the tabular Q-Learning algorithm.
//
// Every QLearning agent owns its table exclusively. When many agents are
// trained in parallel, their tables are merged into a shared table
// afterwards rather than being written concurrently.
package qlearning

import (
	"fmt"

	"github.com/samuelfneumann/statecover/agent/tabular/policy"
	"github.com/samuelfneumann/statecover/qtable"
)

// QLearning implements the Q-Learning algorithm
type QLearning struct {
	*QLearner
	*policy.EGreedy
	seed uint64
}

// New creates a new QLearning agent over a fresh, private table with the
// given number of actions
func New(actions int, c Config, seed uint64) (*QLearning, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}
	if actions < 1 {
		return nil, fmt.Errorf("new: need at least one action, got %d",
			actions)
	}

	table := qtable.New(actions)
	behaviour := policy.NewEGreedy(c.Epsilon, seed, table)
	learner := NewQLearner(table, c.LearningRate, c.Discount)

	return &QLearning{learner, behaviour, seed}, nil
}
