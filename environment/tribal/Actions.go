package tribal

import (
	"fmt"
	"math"

	"github.com/samuelfneumann/statecover/environment"
	"github.com/samuelfneumann/statecover/state"
	"github.com/samuelfneumann/statecover/utils/floatutils"
)

// Outcome is the Effect of a faction's action
type Outcome struct {
	Action     int
	Success    bool
	Combat     bool
	Casualties int
	Territory  int
	Captured   float64
	Diplomacy  float64
}

// Execute implements the environment.World interface
func (w *world) Execute(action int, a environment.Actor) (environment.Effect, error) {
	if action < 0 || action >= len(actionNames) {
		return nil, fmt.Errorf("execute: action %d not in [0, %d)", action,
			len(actionNames))
	}
	if !w.valid(a) {
		return nil, fmt.Errorf("execute: actor %d cannot act", a)
	}

	f := w.factions[a]
	o := Outcome{Action: action, Success: true}
	w.acted[a] = true

	switch action {
	case AggressiveAttack:
		w.attack(a, &o)

	case DefensivePosture:
		o.Diplomacy = 0.1
		f.defense = math.Min(0.2, f.defense+0.2)

	case StrategicRetreat:
		o.Casualties = between(w.rng, 1, 5)
		o.Diplomacy = -0.05
		if f.radius > 0 {
			f.radius--
			f.cells = territoryCells(f.radius)
		}
		f.morale = math.Min(1, f.morale+0.05)

	case ForceReinforcement:
		f.population += float64(between(w.rng, 10, 30))
		f.spend(float64(between(w.rng, 100, 300)))

	case TechInvestment:
		f.research += between(w.rng, 5, 15)
		f.spend(float64(between(w.rng, 200, 500)))
		if f.research >= researchCost {
			f.research -= researchCost
			w.unlock(f)
		}

	case DiplomaticPressure:
		if len(w.rivals[a]) == 0 {
			o.Success = false
			break
		}
		o.Success = w.rng.Float64() < 0.7
		o.Diplomacy = uniform(w.rng, -0.2, 0.3)

	case SiegePreparation:
		f.siege = math.Min(0.3, f.siege+0.3)
		f.spend(float64(between(w.rng, 150, 400)))

	case PeacefulApproach:
		o.Diplomacy = 0.2
		f.population *= 1.015
		f.food *= 1.15
	}

	f.population = math.Max(0, f.population-float64(o.Casualties))
	if o.Diplomacy != 0 {
		for _, r := range w.rivals[a] {
			w.relate(int(a), r, o.Diplomacy)
		}
	}

	return o, nil
}

// attack attacks the weakest of the actor's rivals
func (w *world) attack(a environment.Actor, o *Outcome) {
	o.Combat = true
	f := w.factions[a]

	rivals := w.rivals[a]
	if len(rivals) == 0 {
		o.Success = false
		return
	}
	target := rivals[0]
	for _, r := range rivals[1:] {
		if w.factions[r].power() < w.factions[target].power() {
			target = r
		}
	}
	enemy := w.factions[target]

	prob := 0.5
	if p := enemy.power(); p > 0 {
		prob = math.Min(0.9, f.power()/p)
	}
	o.Success = w.rng.Float64() < prob
	f.siege = 0

	if !o.Success {
		o.Casualties = between(w.rng, 10, 30)
		o.Diplomacy = -0.1
		f.morale = math.Max(0, f.morale-0.2)
		return
	}

	o.Territory = between(w.rng, 1, 3)
	o.Captured = math.Min(enemy.food, float64(between(w.rng, 50, 200)))
	o.Casualties = between(w.rng, 5, 20)
	o.Diplomacy = -0.3

	f.cells += o.Territory
	enemy.cells = max(1, enemy.cells-o.Territory)
	f.food += o.Captured
	enemy.food -= o.Captured
	enemy.population = math.Max(0, enemy.population-float64(o.Casualties))
	enemy.morale = math.Max(0, enemy.morale-0.1)
	f.morale = math.Min(1, f.morale+0.05)
}

// unlock unlocks a random technology the faction does not yet have
func (w *world) unlock(f *faction) {
	var locked []int
	for i, ok := range f.unlocked {
		if !ok {
			locked = append(locked, i)
		}
	}
	if len(locked) > 0 {
		f.unlocked[locked[w.rng.IntN(len(locked))]] = true
	}
}

// relate changes the symmetric relationship between two factions
func (w *world) relate(i, j int, delta float64) {
	rel := floatutils.Clip(w.factions[i].relations[j]+delta, -1, 1)
	w.factions[i].relations[j] = rel
	w.factions[j].relations[i] = rel
}

// Reward implements the environment.World interface
func (w *world) Reward(e environment.Effect, prev, next state.Vector) float64 {
	o, ok := e.(Outcome)
	if !ok {
		return 0
	}
	return reward(o, prev, next)
}

func reward(o Outcome, prev, next state.Vector) float64 {
	r := 0.0
	if o.Combat {
		if o.Success {
			r += 50
			r += float64(o.Territory) * 10
			r += o.Captured * 2
		} else {
			r -= 30
		}
	}
	r -= float64(o.Casualties) * 5

	if len(prev) > TerritoryControl && len(next) > TerritoryControl {
		r += float64(next[PowerRatio]-prev[PowerRatio]) * 20
		r += float64(next[TerritoryControl]-prev[TerritoryControl]) * 15
	}

	r += o.Diplomacy * 25

	switch o.Action {
	case PeacefulApproach:
		r += 10
	case TechInvestment:
		r += 15
	case AggressiveAttack:
		if !o.Success {
			r -= 20
		}
	}
	return r
}
