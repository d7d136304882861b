package adapt

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlateauRaise(t *testing.T) {
	p := NewPlateau(0.3)
	require.NoError(t, p.Validate())
	assert.Equal(t, Normal, p.Mode())

	// Window not yet elapsed
	assert.False(t, p.Observe(1999, 0))
	assert.Equal(t, 0.3, p.Rate())

	// 24 new states over the window is a plateau
	assert.True(t, p.Observe(2000, 24))
	assert.InDelta(t, 0.35, p.Rate(), 1e-12)
	assert.Equal(t, Elevated, p.Mode())

	// Enough new states leaves the rate alone
	assert.False(t, p.Observe(4000, 24+25))
	assert.InDelta(t, 0.35, p.Rate(), 1e-12)
	assert.Equal(t, Elevated, p.Mode())
}

func TestPlateauCeiling(t *testing.T) {
	p := NewPlateau(0.3)
	prev := p.Rate()
	for ep := 2000; ep <= 2000*20; ep += 2000 {
		p.Observe(ep, 0)
		assert.GreaterOrEqual(t, p.Rate(), prev)
		assert.LessOrEqual(t, p.Rate(), DefaultCeiling)
		prev = p.Rate()
	}
	assert.InDelta(t, DefaultCeiling, p.Rate(), 1e-12)
	assert.False(t, p.Observe(2000*21, 0))
}

func TestPlateauWindowRestarts(t *testing.T) {
	p := NewPlateau(0.1)
	p.Observe(2500, 100)
	assert.Equal(t, 0.1, p.Rate())

	// Next window starts at 2500, so 4000 is too early
	assert.False(t, p.Observe(4000, 100))
	assert.True(t, p.Observe(4500, 110))
}

func TestPlateauRestore(t *testing.T) {
	p := NewPlateau(0.3)
	p.Restore(0.6, 10000, 500)
	assert.Equal(t, 0.6, p.Rate())
	assert.Equal(t, Elevated, p.Mode())
	assert.False(t, p.Observe(11999, 500))
	assert.True(t, p.Observe(12000, 510))

	p.Restore(5, 0, 0)
	assert.Equal(t, DefaultCeiling, p.Rate())
	p.Restore(0, 0, 0)
	assert.Equal(t, 0.3, p.Rate())
	assert.Equal(t, Normal, p.Mode())
}

func TestPlateauValidate(t *testing.T) {
	p := NewPlateau(0.3)
	p.Window = 0
	assert.Error(t, p.Validate())

	p = NewPlateau(0.3)
	p.Ceiling = 0.2
	assert.Error(t, p.Validate())
}

func TestBatchSizerFirstSampleSeeds(t *testing.T) {
	b := NewBatchSizer(50)
	require.NoError(t, b.Validate())

	// 16s batch with an 8s target: ratio 0.5, 50 * 0.75
	assert.Equal(t, 38, b.Observe(16*time.Second))
	assert.Equal(t, 16*time.Second, b.EMA())

	// EMA = 0.3 * 4 + 0.7 * 16 = 12.4
	got := b.Observe(4 * time.Second)
	want := int(math.Round(38 * (0.5 + 0.5*8/12.4)))
	assert.Equal(t, want, got)
}

func TestBatchSizerBounds(t *testing.T) {
	durations := []time.Duration{
		0,
		-time.Second,
		time.Nanosecond,
		time.Duration(math.MaxInt64),
		time.Hour,
		time.Millisecond,
		8 * time.Second,
	}

	b := NewBatchSizer(50)
	for i := 0; i < 100; i++ {
		size := b.Observe(durations[i%len(durations)])
		assert.GreaterOrEqual(t, size, b.Min)
		assert.LessOrEqual(t, size, b.Max)
	}

	b = NewBatchSizer(50)
	assert.Equal(t, 50, b.Observe(0))
	assert.Equal(t, DefaultMax, b.Observe(time.Nanosecond))
}

func TestBatchSizerConverges(t *testing.T) {
	b := NewBatchSizer(10)

	// Each episode takes 100ms, so 80 episodes hit the 8s target
	for i := 0; i < 50; i++ {
		b.Observe(time.Duration(b.Size()) * 100 * time.Millisecond)
	}
	assert.InDelta(t, 80, b.Size(), 2)
}

func TestBatchSizerDisabled(t *testing.T) {
	b := NewBatchSizer(500)
	b.Enabled = false
	b.Reset()
	require.NoError(t, b.Validate())

	assert.Equal(t, 500, b.Observe(time.Hour))
	b.Restore(3)
	assert.Equal(t, 500, b.Size())
}

func TestBatchSizerValidate(t *testing.T) {
	b := NewBatchSizer(0)
	assert.Error(t, b.Validate())

	b = NewBatchSizer(10)
	b.Alpha = 0
	assert.Error(t, b.Validate())
}
