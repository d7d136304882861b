// Package policy implements policies over tabular action values
package policy

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/samuelfneumann/statecover/qtable"
	"github.com/samuelfneumann/statecover/state"
)

// EGreedy implements an ε-greedy policy over a qtable.Table. With
// probability ε a uniformly random action is selected, otherwise the
// action with the highest value. States missing from the table are
// treated as fully exploratory.
type EGreedy struct {
	table   *qtable.Table
	epsilon float64
	source  rand.Source // Source for random number generation
	probs   []float64
}

// NewEGreedy constructs a new EGreedy policy, where e=epislon is the
// probability with which a random action is selected, reading action
// values from table
func NewEGreedy(e float64, seed uint64, table *qtable.Table) *EGreedy {
	if e < 0 || e > 1 {
		panic(fmt.Sprintf("newEGreedy: epsilon must be in [0, 1], got %v", e))
	}
	source := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)

	return &EGreedy{
		table:   table,
		epsilon: e,
		source:  source,
		probs:   make([]float64, table.Actions()),
	}
}

// SelectAction selects an action from an ε-greedy policy
func (p *EGreedy) SelectAction(s state.Index) int {
	numActions := p.table.Actions()
	greedyAction, known := p.table.Greedy(s)

	// Calculate the ε probability of choosing any action at random
	e := p.epsilon
	if !known {
		e = 1.0
	}
	prob := e / float64(numActions)
	for i := range p.probs {
		p.probs[i] = prob
	}

	// Adjust the probability of choosing the greedy action
	p.probs[greedyAction] += 1.0 - e

	// Construct a categorical distribution over actions using action
	// probabilities and sample an action
	dist := distuv.NewCategorical(p.probs, p.source)
	return int(dist.Rand())
}

// SetEpsilon sets the probability of selecting a random action
func (p *EGreedy) SetEpsilon(e float64) {
	if e < 0 || e > 1 {
		panic(fmt.Sprintf("setEpsilon: epsilon must be in [0, 1], got %v", e))
	}
	p.epsilon = e
}

// Epsilon returns the probability of selecting a random action
func (p *EGreedy) Epsilon() float64 {
	return p.epsilon
}
