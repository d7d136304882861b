package scenario

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/samuelfneumann/statecover/coverage"
	"github.com/samuelfneumann/statecover/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed+1))
}

func TestUniformValid(t *testing.T) {
	rng := newRand(1)
	u := DefaultUniform()
	for i := 0; i < 1000; i++ {
		c := u.Sample(rng)
		require.NoError(t, c.Validate(), c.String())
		assert.Nil(t, c.Target)
	}
}

func TestUniformDeterministic(t *testing.T) {
	u := DefaultUniform()
	assert.Equal(t, u.Sample(newRand(7)), u.Sample(newRand(7)))
}

func TestValidate(t *testing.T) {
	valid := DefaultUniform().Sample(newRand(3))

	tests := map[string]func(c *Config){
		"factions low":  func(c *Config) { c.Factions = 2 },
		"factions high": func(c *Config) { c.Factions = 33 },
		"population":    func(c *Config) { c.Population = IntRange{10, 5} },
		"population max": func(c *Config) {
			c.Population = IntRange{1, MaxPopulation + 1}
		},
		"resources zero": func(c *Config) { c.ResourceMultiplier = 0 },
		"resources high": func(c *Config) { c.ResourceMultiplier = 10.5 },
		"radius":         func(c *Config) { c.TerritoryRadius = 13 },
		"tech":           func(c *Config) { c.TechUnlocks = -1 },
		"diplomacy":      func(c *Config) { c.DiplomaticBias = 2 },
	}

	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			c := valid
			mutate(&c)
			err := c.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalid))
		})
	}
}

type radiusBiaser struct{}

func (radiusBiaser) Bias(c Config, target Target, _ *rand.Rand) Config {
	c.TerritoryRadius = target.Bin
	return c
}

func TestPlan(t *testing.T) {
	space := state.MustSpace(3, 2)
	set := coverage.NewSet(space)
	for _, v := range []state.Vector{{0, 0}, {1, 1}} {
		_, err := set.AddVector(v)
		require.NoError(t, err)
	}

	plan := NewAnalyzer(radiusBiaser{}).Plan(set)
	assert.Equal(t, []int{2}, plan.Missing[0])
	assert.Empty(t, plan.Missing[1])
	assert.Equal(t, uint64(2), plan.EstimatedMissing)
	assert.Equal(t, []Target{{Dim: 0, Bin: 2}}, plan.Targets())
	assert.True(t, plan.Gaps())
	assert.Equal(t, map[string][]int{"power": {2}},
		plan.Names([]string{"power", "tech"}))

	configs := plan.Sample(10, newRand(5))
	require.Len(t, configs, 10)
	targeted := 0
	for _, c := range configs {
		require.NoError(t, c.Validate())
		if c.Target != nil {
			targeted++
			assert.Equal(t, Target{Dim: 0, Bin: 2}, *c.Target)
			assert.Equal(t, 2, c.TerritoryRadius)
		}
	}
	assert.Equal(t, 8, targeted)
}

func TestPlanNoGaps(t *testing.T) {
	space := state.MustSpace(2, 2)
	set := coverage.NewSet(space)
	set.Add(0)
	set.Add(3)

	plan := NewAnalyzer(nil).Plan(set)
	assert.False(t, plan.Gaps())
	assert.Zero(t, plan.EstimatedMissing)
	for _, c := range plan.Sample(20, newRand(9)) {
		assert.Nil(t, c.Target)
	}
}

func TestPlanEmptySet(t *testing.T) {
	space := state.MustSpace(3, 4)
	plan := NewAnalyzer(nil).Plan(coverage.NewSet(space))
	assert.Equal(t, []int{0, 1, 2}, plan.Missing[0])
	assert.Equal(t, []int{0, 1, 2, 3}, plan.Missing[1])
	assert.Equal(t, uint64(3*4+4*3), plan.EstimatedMissing)
	assert.Len(t, plan.Targets(), 7)
}
