package qlearning

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samuelfneumann/statecover/qtable"
	"github.com/samuelfneumann/statecover/state"
	"github.com/samuelfneumann/statecover/timestep"
)

func TestStepTDUpdate(t *testing.T) {
	q, err := New(2, Config{Epsilon: 0, LearningRate: 0.5, Discount: 0.9}, 1)
	require.NoError(t, err)

	require.NoError(t, q.Table().Set(7, qtable.Row{4, 10}))

	// Q[0][1] = 0 + 0.5 * (1 + 0.9*10 - 0) = 5
	q.Step(timestep.New(0, 0, 1, 1, 7))
	assert.InDelta(t, 5.0, q.Table().Value(0, 1), 1e-12)

	// Again: 5 + 0.5 * (10 - 5) = 7.5
	q.Step(timestep.New(1, 0, 1, 1, 7))
	assert.InDelta(t, 7.5, q.Table().Value(0, 1), 1e-12)
	assert.Equal(t, 2, q.Updates())
}

func TestStepUnseenNext(t *testing.T) {
	q, err := New(1, Config{LearningRate: 1, Discount: 1}, 1)
	require.NoError(t, err)
	require.NoError(t, q.Table().Set(0, qtable.Row{100}))

	q.Step(timestep.New(0, 3, 0, -2, 9))
	assert.Equal(t, -2.0, q.Table().Value(3, 0))
	assert.False(t, q.Table().Has(9))
}

func TestVisitCreatesRow(t *testing.T) {
	q, err := New(3, DefaultConfig(), 1)
	require.NoError(t, err)
	q.Visit(12)
	assert.True(t, q.Table().Has(12))
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.Error(t, Config{Epsilon: -1, LearningRate: 0.1}.Validate())
	assert.Error(t, Config{LearningRate: 0}.Validate())
	assert.Error(t, Config{LearningRate: 0.1, Discount: 2}.Validate())

	_, err := New(0, DefaultConfig(), 1)
	assert.Error(t, err)
}

func BenchmarkSelectAndStep(b *testing.B) {
	q, _ := New(8, DefaultConfig(), 3)
	for i := 0; i < b.N; i++ {
		s := uint64(i % 1000)
		a := q.SelectAction(stateIndex(s))
		q.Step(timestep.New(i, stateIndex(s), a, 1, stateIndex(s+1)))
	}
}

func stateIndex(s uint64) state.Index {
	return state.Index(s)
}
