// Package timestep implements timesteps of the agent-world interaction
package timestep

import (
	"fmt"

	"github.com/samuelfneumann/statecover/state"
)

// Transition packages together a single decision: an action taken in
// some state, the reward observed, and the state that followed. Decisions
// after which the world cannot compute a next state produce no
// Transition.
type Transition struct {
	Number int
	State  state.Index
	Action int
	Reward float64
	Next   state.Index
}

// New returns a new Transition
func New(n int, s state.Index, a int, r float64, next state.Index) Transition {
	return Transition{n, s, a, r, next}
}

func (t Transition) String() string {
	str := "Transition | State: %d  |  Action: %d  |  Reward: %.2f  |  " +
		"Next: %d  |  Step Number: %v"

	return fmt.Sprintf(str, t.State, t.Action, t.Reward, t.Next, t.Number)
}
