// Package adapt implements the feedback controllers of the coverage
// trainer: an exploration rate which rises when discovery of new states
// plateaus, and a batch size which tracks a target batch duration.
package adapt

import (
	"fmt"
	"math"
)

// Mode is the mode of a Plateau controller
type Mode int

const (
	Normal Mode = iota
	Elevated
)

func (m Mode) String() string {
	switch m {
	case Normal:
		return "normal"
	case Elevated:
		return "elevated"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Defaults for a Plateau
const (
	DefaultWindow    = 2000
	DefaultMinNew    = 25
	DefaultIncrement = 0.05
	DefaultCeiling   = 0.85
)

// Plateau raises the exploration rate whenever fewer than MinNew new
// states are discovered within a window of Window episodes. The rate is
// never lowered and never exceeds Ceiling.
type Plateau struct {
	Base      float64
	Increment float64
	Ceiling   float64
	Window    int
	MinNew    int

	rate          float64
	mode          Mode
	windowStart   int
	distinctStart int
}

// NewPlateau returns a new Plateau starting at rate base with the default
// window, threshold, increment, and ceiling
func NewPlateau(base float64) *Plateau {
	p := &Plateau{
		Base:      base,
		Increment: DefaultIncrement,
		Ceiling:   math.Max(base, DefaultCeiling),
		Window:    DefaultWindow,
		MinNew:    DefaultMinNew,
	}
	p.Reset()
	return p
}

// Validate returns an error if the Plateau is misconfigured
func (p *Plateau) Validate() error {
	switch {
	case p.Base < 0 || p.Base > 1:
		return fmt.Errorf("plateau: base rate %v not in [0, 1]", p.Base)
	case p.Ceiling < p.Base || p.Ceiling > 1:
		return fmt.Errorf("plateau: ceiling %v not in [%v, 1]", p.Ceiling,
			p.Base)
	case p.Increment < 0:
		return fmt.Errorf("plateau: increment %v < 0", p.Increment)
	case p.Window < 1:
		return fmt.Errorf("plateau: window %d < 1", p.Window)
	case p.MinNew < 0:
		return fmt.Errorf("plateau: minimum new states %d < 0", p.MinNew)
	}
	return nil
}

// Reset resets the controller to its base rate at episode 0
func (p *Plateau) Reset() {
	p.rate = p.Base
	p.mode = Normal
	p.windowStart = 0
	p.distinctStart = 0
}

// Restore restores the controller's rate after resuming a run at the
// given episode and number of distinct states. The window restarts at
// the given episode.
func (p *Plateau) Restore(rate float64, episode, distinct int) {
	p.rate = math.Min(p.Ceiling, math.Max(p.Base, rate))
	p.mode = Normal
	if p.rate > p.Base {
		p.mode = Elevated
	}
	p.windowStart = episode
	p.distinctStart = distinct
}

// Rate returns the current exploration rate
func (p *Plateau) Rate() float64 {
	return p.rate
}

// Mode returns the current mode
func (p *Plateau) Mode() Mode {
	return p.mode
}

// Observe records the total number of distinct states after the given
// number of episodes. When a full window has elapsed, the rate is
// raised if too few new states were found within it, and a new window
// begins. Observe returns whether the rate changed.
func (p *Plateau) Observe(episode, distinct int) bool {
	if episode-p.windowStart < p.Window {
		return false
	}

	gain := distinct - p.distinctStart
	p.windowStart = episode
	p.distinctStart = distinct

	if gain >= p.MinNew {
		return false
	}

	prev := p.rate
	p.rate = math.Min(p.Ceiling, p.rate+p.Increment)
	p.mode = Elevated
	return p.rate != prev
}
