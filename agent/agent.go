// Package agent defines an agent interface
package agent

import (
	"github.com/samuelfneumann/statecover/qtable"
	"github.com/samuelfneumann/statecover/state"
	"github.com/samuelfneumann/statecover/timestep"
)

// Agent determines the implementation details of an agent or algorithm
//
// An Agent is composed of a Learner, which learns action values, and a
// Policy which chooses actions in each state. The Policy chooses which
// actions are taken, and the Learner uses these actions to update the
// values the Policy reads.
type Agent interface {
	Learner
	Policy
}

// Learner implements a learning algorithm that defines how action values
// are updated.
//
// A Learner determines how values are changed, and therefore how a Policy
// changes over time. The Learner and Policy of an Agent should share the
// same Table so that the Learner can use the transitions chosen by the
// Policy to update the values appropriately.
type Learner interface {
	Step(t timestep.Transition) // Performs an update
	Visit(s state.Index)        // Records that a state was seen
	Table() *qtable.Table
	Updates() int // Number of updates performed
}

// Policy represents a policy that an agent can have.
type Policy interface {
	SelectAction(s state.Index) int
	SetEpsilon(float64)
	Epsilon() float64
}
