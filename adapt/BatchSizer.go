package adapt

import (
	"fmt"
	"math"
	"time"

	"github.com/samuelfneumann/statecover/utils/intutils"
)

// Defaults for a BatchSizer
const (
	DefaultAlpha  = 0.3
	DefaultTarget = 8 * time.Second
	DefaultMin    = 10
	DefaultMax    = 200
)

// BatchSizer adapts the number of episodes per batch so that batches take
// about Target to run. Batch durations are smoothed with an exponential
// moving average, and each proposal moves the batch size halfway towards
// the size that would have hit the target.
type BatchSizer struct {
	Initial int
	Min     int
	Max     int
	Target  time.Duration
	Alpha   float64
	Enabled bool

	size   int
	ema    float64
	seeded bool
}

// NewBatchSizer returns a new enabled BatchSizer with the default bounds,
// target, and smoothing
func NewBatchSizer(initial int) *BatchSizer {
	b := &BatchSizer{
		Initial: initial,
		Min:     DefaultMin,
		Max:     DefaultMax,
		Target:  DefaultTarget,
		Alpha:   DefaultAlpha,
		Enabled: true,
	}
	b.Reset()
	return b
}

// Validate returns an error if the BatchSizer is misconfigured
func (b *BatchSizer) Validate() error {
	switch {
	case b.Initial < 1:
		return fmt.Errorf("batch sizer: initial size %d < 1", b.Initial)
	case !b.Enabled:
		return nil
	case b.Min < 1 || b.Max < b.Min:
		return fmt.Errorf("batch sizer: bounds [%d, %d] invalid", b.Min,
			b.Max)
	case b.Target <= 0:
		return fmt.Errorf("batch sizer: target %v <= 0", b.Target)
	case !(b.Alpha > 0 && b.Alpha <= 1):
		return fmt.Errorf("batch sizer: smoothing %v not in (0, 1]", b.Alpha)
	}
	return nil
}

// Reset restores the initial batch size and forgets all durations
func (b *BatchSizer) Reset() {
	b.size = b.Initial
	if b.Enabled {
		b.size = intutils.Clip(b.Initial, b.Min, b.Max)
	}
	b.ema = 0
	b.seeded = false
}

// Restore sets the current batch size, e.g. after resuming a run
func (b *BatchSizer) Restore(size int) {
	if !b.Enabled {
		return
	}
	b.size = intutils.Clip(size, b.Min, b.Max)
}

// Size returns the size of the next batch
func (b *BatchSizer) Size() int {
	return b.size
}

// EMA returns the smoothed batch duration
func (b *BatchSizer) EMA() time.Duration {
	return time.Duration(b.ema * float64(time.Second))
}

// Observe records the duration of the last batch and returns the size of
// the next one. Non-positive durations are ignored, and the proposal
// always lies within [Min, Max].
func (b *BatchSizer) Observe(d time.Duration) int {
	if !b.Enabled {
		return b.size
	}

	seconds := d.Seconds()
	if seconds <= 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return b.size
	}

	if !b.seeded {
		b.ema = seconds
		b.seeded = true
	} else {
		b.ema = b.Alpha*seconds + (1-b.Alpha)*b.ema
	}

	ratio := b.Target.Seconds() / b.ema
	proposal := float64(b.size) * (0.5 + 0.5*ratio)
	if math.IsNaN(proposal) || math.IsInf(proposal, 0) ||
		proposal > float64(b.Max) {
		proposal = float64(b.Max)
	}

	b.size = intutils.Clip(int(math.Round(proposal)), b.Min, b.Max)
	return b.size
}
