package qlearning

import (
	"github.com/samuelfneumann/statecover/qtable"
	"github.com/samuelfneumann/statecover/state"
	"github.com/samuelfneumann/statecover/timestep"
)

// QLearner implements the update rule of tabular Q-learning:
//
//	Q[s][a] ← Q[s][a] + α·(r + γ·max(Q[s']) − Q[s][a])
//
// where max(Q[s']) is 0 for unseen next states.
type QLearner struct {
	table        *qtable.Table
	learningRate float64
	discount     float64
	updates      int
}

// NewQLearner returns a new QLearner updating table
func NewQLearner(table *qtable.Table, learningRate, discount float64) *QLearner {
	return &QLearner{table: table, learningRate: learningRate,
		discount: discount}
}

// Step performs a single TD update using transition t
func (q *QLearner) Step(t timestep.Transition) {
	row := q.table.Ensure(t.State)

	target := t.Reward + q.discount*q.table.MaxValue(t.Next)
	row[t.Action] += q.learningRate * (target - row[t.Action])
	q.updates++
}

// Visit ensures that state s has a Row in the table even if no update
// is ever performed in it
func (q *QLearner) Visit(s state.Index) {
	q.table.Ensure(s)
}

// Table returns the table updated by the learner
func (q *QLearner) Table() *qtable.Table {
	return q.table
}

// Updates returns the number of updates performed
func (q *QLearner) Updates() int {
	return q.updates
}
