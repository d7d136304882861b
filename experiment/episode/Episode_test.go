package episode

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"io"
	"testing"

	"github.com/samuelfneumann/statecover/agent/tabular/qlearning"
	"github.com/samuelfneumann/statecover/environment"
	"github.com/samuelfneumann/statecover/environment/tribal"
	"github.com/samuelfneumann/statecover/scenario"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testJob(episode int) Job {
	return Job{
		Episode: episode,
		Scenario: scenario.Config{
			Seed:               uint64(episode) + 100,
			Factions:           12,
			Population:         scenario.IntRange{Min: 20, Max: 800},
			ResourceMultiplier: 1,
			TerritoryRadius:    3,
			TechUnlocks:        3,
		},
		Epsilon: 0.5,
		Seed:    uint64(episode),
	}
}

func TestRun(t *testing.T) {
	runner := NewRunner(tribal.NewFactory(), qlearning.DefaultConfig())
	require.NoError(t, runner.Validate())

	res := runner.Run(testJob(1))
	require.False(t, res.Failed(), res.Err)
	assert.NoError(t, res.Error())
	assert.Equal(t, 1, res.Episode)
	assert.NotEmpty(t, res.Visited)
	assert.Positive(t, res.Decisions)
	assert.Positive(t, res.Updates)
	assert.Positive(t, res.Duration)

	// Every visited state has a row in the fragment
	require.NotNil(t, res.Fragment)
	for _, s := range res.Visited {
		assert.True(t, res.Fragment.Has(s))
	}
	assert.IsIncreasing(t, res.Visited)

	again := runner.Run(testJob(1))
	assert.Equal(t, res.Visited, again.Visited)
	assert.True(t, res.Fragment.Equal(again.Fragment))
}

type failingFactory struct {
	*tribal.Factory
	panics bool
}

func (f failingFactory) New(c scenario.Config) (environment.World, error) {
	if f.panics {
		panic("boom")
	}
	return nil, errors.New("no world")
}

func TestRunFailures(t *testing.T) {
	runner := NewRunner(failingFactory{Factory: tribal.NewFactory()},
		qlearning.DefaultConfig())
	res := runner.Run(testJob(3))
	assert.True(t, res.Failed())
	assert.Contains(t, res.Err, "no world")
	assert.Nil(t, res.Fragment)
	assert.Error(t, res.Error())

	runner.Factory = failingFactory{Factory: tribal.NewFactory(), panics: true}
	res = runner.Run(testJob(4))
	assert.True(t, res.Failed())
	assert.Contains(t, res.Err, "panic: boom")
	assert.Equal(t, 4, res.Episode)

	// Invalid scenarios fail the episode only
	runner.Factory = tribal.NewFactory()
	job := testJob(5)
	job.Scenario.Factions = 0
	res = runner.Run(job)
	assert.True(t, res.Failed())
	assert.Contains(t, res.Err, scenario.ErrInvalid.Error())

	job = testJob(6)
	job.Epsilon = 1.5
	res = runner.Run(job)
	assert.True(t, res.Failed())
	assert.Contains(t, res.Err, "epsilon")
}

func TestValidate(t *testing.T) {
	runner := NewRunner(tribal.NewFactory(), qlearning.DefaultConfig())
	runner.DecisionsMax = 1
	assert.Error(t, runner.Validate())

	runner = NewRunner(nil, qlearning.DefaultConfig())
	assert.Error(t, runner.Validate())

	runner = NewRunner(tribal.NewFactory(), nil)
	assert.Error(t, runner.Validate())
}

func TestServe(t *testing.T) {
	runner := NewRunner(tribal.NewFactory(), qlearning.DefaultConfig())
	runner.Ticks = 30

	var in bytes.Buffer
	enc := gob.NewEncoder(&in)
	for ep := 0; ep < 3; ep++ {
		require.NoError(t, enc.Encode(testJob(ep)))
	}

	var out bytes.Buffer
	require.NoError(t, Serve(context.Background(), &in, &out, runner))

	size := tribal.NewFactory().Codec().Space().Size()
	dec := gob.NewDecoder(&out)
	for ep := 0; ep < 3; ep++ {
		var res Result
		require.NoError(t, dec.Decode(&res))
		assert.Equal(t, ep, res.Episode)
		require.False(t, res.Failed(), res.Err)
		assert.Equal(t, runner.Run(testJob(ep)).Visited, res.Visited)
		assert.Equal(t, tribal.NewFactory().Actions(), res.Fragment.Actions())
		for _, s := range res.Visited {
			assert.Less(t, uint64(s), size)
		}
	}
	var res Result
	assert.ErrorIs(t, dec.Decode(&res), io.EOF)
}

func TestServeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	runner := NewRunner(tribal.NewFactory(), qlearning.DefaultConfig())
	err := Serve(ctx, &bytes.Buffer{}, io.Discard, runner)
	assert.ErrorIs(t, err, context.Canceled)
}
