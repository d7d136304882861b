package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samuelfneumann/statecover/qtable"
)

func TestGreedyWhenEpsilonZero(t *testing.T) {
	table := qtable.New(4)
	require.NoError(t, table.Set(1, qtable.Row{0, 0, 5, 1}))

	p := NewEGreedy(0, 7, table)
	for i := 0; i < 100; i++ {
		assert.Equal(t, 2, p.SelectAction(1))
	}
}

func TestUnknownStateExplores(t *testing.T) {
	table := qtable.New(3)
	p := NewEGreedy(0, 11, table)

	counts := make([]int, 3)
	for i := 0; i < 3000; i++ {
		counts[p.SelectAction(42)]++
	}
	for a, c := range counts {
		assert.Greater(t, c, 800, "action %d selected %d times", a, c)
	}
}

func TestEpsilonFrequency(t *testing.T) {
	table := qtable.New(2)
	require.NoError(t, table.Set(0, qtable.Row{1, 0}))

	p := NewEGreedy(0.5, 3, table)
	nonGreedy := 0
	const n = 10000
	for i := 0; i < n; i++ {
		if p.SelectAction(0) == 1 {
			nonGreedy++
		}
	}
	// Expected ε/|A| = 0.25
	assert.InDelta(t, 0.25, float64(nonGreedy)/n, 0.03)
}

func TestSetEpsilonPanics(t *testing.T) {
	p := NewEGreedy(0.1, 1, qtable.New(2))
	assert.Panics(t, func() { p.SetEpsilon(1.1) })
	p.SetEpsilon(0.9)
	assert.Equal(t, 0.9, p.Epsilon())
}
