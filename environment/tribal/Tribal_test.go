package tribal

import (
	"math/rand/v2"
	"testing"

	"github.com/samuelfneumann/statecover/environment"
	"github.com/samuelfneumann/statecover/scenario"
	"github.com/samuelfneumann/statecover/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testScenario(seed uint64) scenario.Config {
	return scenario.Config{
		Seed:               seed,
		Factions:           12,
		Population:         scenario.IntRange{Min: 20, Max: 800},
		ResourceMultiplier: 1,
		TerritoryRadius:    4,
		TechUnlocks:        4,
		DiplomaticBias:     0,
	}
}

func TestRegistered(t *testing.T) {
	f, err := environment.Lookup(Name)
	require.NoError(t, err)
	assert.Equal(t, 8, f.Actions())
	assert.Equal(t, uint64(645120), f.Codec().Space().Size())
	assert.Equal(t, "power_ratio", f.Codec().Names()[PowerRatio])
}

func TestInvalidScenario(t *testing.T) {
	c := testScenario(1)
	c.Factions = 1
	_, err := NewFactory().New(c)
	assert.ErrorIs(t, err, scenario.ErrInvalid)
}

func TestDeterministic(t *testing.T) {
	run := func() []state.Vector {
		w, err := NewFactory().New(testScenario(42))
		require.NoError(t, err)

		var states []state.Vector
		for tick := 0; tick < 20; tick++ {
			w.Tick()
			for i, a := range w.Actors() {
				s, ok := w.State(a)
				if !ok {
					continue
				}
				states = append(states, s)
				_, err := w.Execute(i%8, a)
				require.NoError(t, err)
			}
		}
		return states
	}

	first := run()
	require.NotEmpty(t, first)
	assert.Equal(t, first, run())
}

func TestStatesInSpace(t *testing.T) {
	f := NewFactory()
	space := f.Codec().Space()
	rng := rand.New(rand.NewPCG(3, 4))
	sampler := scenario.DefaultUniform()

	for n := 0; n < 20; n++ {
		w, err := f.New(sampler.Sample(rng))
		require.NoError(t, err)
		for tick := 0; tick < 30; tick++ {
			w.Tick()
			for _, a := range w.Actors() {
				prev, ok := w.State(a)
				if !ok {
					continue
				}
				require.True(t, space.Contains(prev), prev.String())

				e, err := w.Execute(rng.IntN(f.Actions()), a)
				require.NoError(t, err)
				if next, ok := w.State(a); ok {
					require.True(t, space.Contains(next), next.String())
					_ = w.Reward(e, prev, next)
				}
			}
		}
	}
}

func TestExecuteErrors(t *testing.T) {
	w, err := NewFactory().New(testScenario(1))
	require.NoError(t, err)

	_, err = w.Execute(8, 0)
	assert.Error(t, err)
	_, err = w.Execute(0, 99)
	assert.Error(t, err)
}

func TestReward(t *testing.T) {
	prev := state.Vector{3, 0, 0, 0, 0, 2}
	next := state.Vector{4, 0, 0, 0, 0, 3}

	tests := map[string]struct {
		o    Outcome
		want float64
	}{
		"successful attack": {
			o: Outcome{Action: AggressiveAttack, Success: true, Combat: true,
				Territory: 2, Captured: 50, Casualties: 10, Diplomacy: -0.3},
			want: 50 + 20 + 100 - 50 + 20 + 15 - 7.5,
		},
		"failed attack": {
			o: Outcome{Action: AggressiveAttack, Combat: true,
				Casualties: 10, Diplomacy: -0.1},
			want: -30 - 50 + 20 + 15 - 2.5 - 20,
		},
		"peaceful": {
			o:    Outcome{Action: PeacefulApproach, Success: true, Diplomacy: 0.2},
			want: 20 + 15 + 5 + 10,
		},
		"tech": {
			o:    Outcome{Action: TechInvestment, Success: true},
			want: 20 + 15 + 15,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.InDelta(t, test.want, reward(test.o, prev, next), 1e-9)
		})
	}

	assert.InDelta(t, 15.0, reward(Outcome{Action: TechInvestment}, nil, nil),
		1e-9)
}

func TestResourceAvailability(t *testing.T) {
	tests := []struct {
		total float64
		want  float64
	}{
		{0, 0},
		{50, 0.2},
		{100, 0.4},
		{550, 0.7},
		{1000, 1.0},
		{5500, 1.3},
		{10000, 1.6},
		{35000, 1.8},
		{1e9, 2.0},
	}
	for _, test := range tests {
		f := &faction{food: test.total}
		assert.InDelta(t, test.want, f.resourceAvailability(), 1e-9,
			"total %v", test.total)
		if test.total > 0 && test.want < 2 {
			assert.InDelta(t, test.total, resourcesFor(test.want), 1e-6)
		}
	}
}

func TestBias(t *testing.T) {
	f := NewFactory()
	rng := rand.New(rand.NewPCG(1, 2))
	sampler := scenario.DefaultUniform()
	space := f.Codec().Space()

	for d := 0; d < space.Len(); d++ {
		for b := 0; b < space.Bins(d); b++ {
			c := f.Bias(sampler.Sample(rng), scenario.Target{Dim: d, Bin: b}, rng)
			require.NoError(t, c.Validate(), "dim %d bin %d", d, b)
		}
	}

	c := f.Bias(sampler.Sample(rng),
		scenario.Target{Dim: DiplomaticStatus, Bin: 0}, rng)
	assert.InDelta(t, -0.875, c.DiplomaticBias, 1e-9)

	c = f.Bias(sampler.Sample(rng),
		scenario.Target{Dim: TerritoryControl, Bin: 0}, rng)
	assert.Equal(t, 0, c.TerritoryRadius)
}

func TestRadiusFor(t *testing.T) {
	for r := 0; r <= 8; r++ {
		assert.Equal(t, r, radiusFor(float64(territoryCells(r))))
	}
	assert.Equal(t, 0, radiusFor(0))
}

func TestActionName(t *testing.T) {
	assert.Equal(t, "aggressive_attack", ActionName(AggressiveAttack))
	assert.Equal(t, "peaceful_approach", ActionName(PeacefulApproach))
	assert.Equal(t, "action(9)", ActionName(9))
}
