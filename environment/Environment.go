// Package environment outlines the interfaces a simulated world must
// implement to be explored by the coverage trainer, along with a registry
// of world factories
package environment

import (
	"github.com/samuelfneumann/statecover/scenario"
	"github.com/samuelfneumann/statecover/state"
)

// Actor identifies an entity of a World which makes decisions
type Actor int

// Effect is the world-specific outcome of executing an action. The
// trainer never inspects an Effect, it only hands it back to the World
// when computing rewards.
type Effect any

// World is a single, isolated simulation built for one episode. A World
// is used by a single goroutine and never shared between episodes.
type World interface {
	// Tick advances the simulation by one tick
	Tick()

	// Actors returns the actors able to make a decision this tick
	Actors() []Actor

	// State returns the discretized state of an actor. If the state cannot
	// be computed, State returns false and the decision is skipped.
	State(a Actor) (state.Vector, bool)

	// Execute performs action for the actor
	Execute(action int, a Actor) (Effect, error)

	// Reward returns the reward of an Effect given the states of the actor
	// before and after the action
	Reward(e Effect, prev, next state.Vector) float64
}

// Factory creates Worlds from scenarios. A Factory must be safe for
// concurrent use.
type Factory interface {
	// Name returns the name the Factory is registered under
	Name() string

	// Actions returns the number of discrete actions of created Worlds
	Actions() int

	// Codec returns the codec which discretizes observations into the
	// Worlds' state space
	Codec() *state.Codec

	// New creates a new World from a scenario
	New(c scenario.Config) (World, error)
}
