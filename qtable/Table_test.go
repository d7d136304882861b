package qtable

import (
	"bytes"
	"encoding/gob"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samuelfneumann/statecover/state"
)

func TestEnsureAndGreedy(t *testing.T) {
	table := New(3)
	_, ok := table.Greedy(4)
	assert.False(t, ok)
	assert.Equal(t, 0.0, table.MaxValue(4))

	row := table.Ensure(4)
	assert.Equal(t, Row{0, 0, 0}, row)
	row[1], row[2] = 2, 2

	a, ok := table.Greedy(4)
	require.True(t, ok)
	assert.Equal(t, 1, a, "ties go to the lowest action")
	assert.Equal(t, 2.0, table.MaxValue(4))
	assert.Equal(t, 1, table.Len())
}

func TestSetChecksLength(t *testing.T) {
	table := New(2)
	assert.Error(t, table.Set(0, Row{1, 2, 3}))

	in := Row{1, 2}
	require.NoError(t, table.Set(0, in))
	in[0] = 100
	assert.Equal(t, 1.0, table.Value(0, 0), "Set must copy the row")
}

func TestKeysSorted(t *testing.T) {
	table := New(1)
	for _, k := range []state.Index{9, 2, 7, 0} {
		table.Ensure(k)
	}
	assert.Equal(t, []state.Index{0, 2, 7, 9}, table.Keys())
}

func TestCloneIsDeep(t *testing.T) {
	table := New(2)
	require.NoError(t, table.Set(1, Row{1, 1}))

	c := table.Clone()
	require.True(t, c.Equal(table))

	r, _ := c.Row(1)
	r[0] = 5
	assert.False(t, c.Equal(table))
}

func TestGobRoundTrip(t *testing.T) {
	table := New(2)
	require.NoError(t, table.Set(3, Row{0.1, -2.5}))
	require.NoError(t, table.Set(1_000_000, Row{1e-12, 7}))

	var buf bytes.Buffer
	require.NoError(t, gob.NewEncoder(&buf).Encode(table))

	got := &Table{}
	require.NoError(t, gob.NewDecoder(&buf).Decode(got))
	assert.True(t, got.Equal(table))
	assert.Equal(t, 2, got.Actions())
}

func stateIndex(k int) state.Index {
	return state.Index(k)
}
