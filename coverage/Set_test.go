package coverage

import (
	"math"
	"testing"

	"github.com/samuelfneumann/statecover/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSmallSpaceCoverage(t *testing.T) {
	space := state.MustSpace(3, 2)
	set := NewSet(space)
	tracker := NewTracker(set)

	i00, err := space.Index(state.Vector{0, 0})
	require.NoError(t, err)
	i11, err := space.Index(state.Vector{1, 1})
	require.NoError(t, err)

	r := tracker.Absorb([]state.Index{i00, i11})
	assert.Equal(t, 2, r.Distinct)
	assert.Equal(t, uint64(6), r.Size)
	assert.InDelta(t, 2.0/6.0, r.Ratio, 1e-12)
	assert.Equal(t, 2, r.New)
	assert.Equal(t, []int{2, 2}, r.PerDim)
	assert.False(t, r.Complete())

	missing := MissingBins(set)
	assert.Equal(t, []int{2}, missing[0])
	assert.Empty(t, missing[1])
	assert.NotNil(t, missing[1])
}

func TestAbsorbMonotonic(t *testing.T) {
	space := state.MustSpace(4, 4)
	tracker := NewTracker(NewSet(space))

	prev := 0
	batches := [][]state.Index{{0, 1, 2}, {2, 1}, {}, {15, 3, 3}, {0}}
	for _, b := range batches {
		r := tracker.Absorb(b)
		assert.GreaterOrEqual(t, r.Distinct, prev)
		assert.Equal(t, r.Distinct-prev, r.New)
		prev = r.Distinct
	}
	assert.Equal(t, 5, prev)
}

func TestAbsorbSkipsOutOfSpace(t *testing.T) {
	tracker := NewTracker(NewSet(state.MustSpace(2, 2)))
	r := tracker.Absorb([]state.Index{0, 4, 100}, []state.Index{3})
	assert.Equal(t, 2, r.Distinct)
	assert.Equal(t, 2, r.Skipped)
}

func TestComplete(t *testing.T) {
	space := state.MustSpace(2, 3)
	tracker := NewTracker(NewSet(space))

	all := make([]state.Index, space.Size())
	for i := range all {
		all[i] = state.Index(i)
	}
	r := tracker.Absorb(all)
	assert.True(t, r.Complete())
	assert.InDelta(t, 1.0, r.Entropy, 1e-12)
	assert.InDelta(t, 100.0, r.Percent(), 1e-12)
	for _, m := range MissingBins(tracker.Set()) {
		assert.Empty(t, m)
	}
}

func TestEntropy(t *testing.T) {
	space := state.MustSpace(4, 4)
	set := NewSet(space)
	_, err := set.AddVector(state.Vector{0, 0})
	require.NoError(t, err)
	_, err = set.AddVector(state.Vector{1, 0})
	require.NoError(t, err)

	r := Summarize(set)
	assert.InDelta(t, math.Log(2)/math.Log(16), r.Entropy, 1e-12)
	assert.Zero(t, Summarize(NewSet(space)).Entropy)
}

func TestSetClone(t *testing.T) {
	set := NewSet(state.MustSpace(5))
	set.Add(1)
	c := set.Clone()
	c.Add(2)
	assert.Equal(t, 1, set.Len())
	assert.Equal(t, []state.Index{1, 2}, c.Indices())
	assert.Equal(t, []state.Vector{{1}, {2}}, c.Vectors())
	assert.Panics(t, func() { set.Add(5) })
}
