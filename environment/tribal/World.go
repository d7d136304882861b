package tribal

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/samuelfneumann/statecover/environment"
	"github.com/samuelfneumann/statecover/scenario"
	"github.com/samuelfneumann/statecover/state"
	"github.com/samuelfneumann/statecover/utils/floatutils"
)

// tech is a technology a faction may unlock
type tech struct {
	name      string
	value     float64 // Trade value, counts towards the technology level
	combat    float64 // Combat power multiplier bonus
	readiness float64 // Force readiness bonus
}

var techs = []tech{
	{"weapons", 150, 0.10, 0},
	{"iron_weapons", 300, 0.15, 0.10},
	{"steel_weapons", 600, 0.25, 0.15},
	{"military_organization", 400, 0.10, 0.15},
	{"siege_engineering", 500, 0.10, 0},
	{"horseback_riding", 250, 0.10, 0.10},
	{"archery", 180, 0.10, 0},
	{"shield_making", 120, 0.05, 0},
	{"castle_building", 450, 0, 0},
	{"naval_warfare", 350, 0.05, 0},
	{"gunpowder", 850, 0.30, 0.20},
	{"cannon", 750, 0.30, 0},
}

// archetype resource multipliers of created factions
var archetypes = []float64{0.3, 0.6, 1.2, 2.0, 2.6, 4.2, 5.0, 7.5}

// researchCost is the research progress needed to unlock a technology
const researchCost = 30

// faction is a single faction of the world
type faction struct {
	population float64
	food       float64
	wood       float64
	ore        float64
	radius     int
	cells      int
	unlocked   []bool
	research   int
	relations  []float64 // Relationship with every other faction, in [-1, 1]
	morale     float64   // In [0, 1]
	defense    float64
	siege      float64
	noise      float64 // Per-faction readiness offset
}

func (f *faction) alive() bool {
	return f.population >= 1
}

func (f *faction) resources() float64 {
	return f.food + f.wood + f.ore
}

// spend removes cost from the faction's resources, proportionally to
// what it holds
func (f *faction) spend(cost float64) {
	total := f.resources()
	if total <= 0 {
		return
	}
	frac := math.Min(1, cost/total)
	f.food -= f.food * frac
	f.wood -= f.wood * frac
	f.ore -= f.ore * frac
}

func (f *faction) power() float64 {
	bonus := 0.0
	for i, ok := range f.unlocked {
		if ok {
			bonus += techs[i].combat
		}
	}
	return f.population * 0.1 * (1 + bonus + f.siege)
}

func (f *faction) techLevel() float64 {
	level := 0.0
	for i, ok := range f.unlocked {
		if ok {
			level += techs[i].value / 1000
		}
	}
	return level
}

func (f *faction) readiness() float64 {
	r := 0.3*f.morale + math.Min(0.3, f.population/2000) + f.noise +
		f.defense
	for i, ok := range f.unlocked {
		if ok {
			r += techs[i].readiness
		}
	}
	return math.Min(1, r)
}

// resourceAvailability scales total resources piecewise into [0, 2] so
// that poor, medium, wealthy, and very wealthy factions spread evenly
// over the range
func (f *faction) resourceAvailability() float64 {
	total := f.resources()
	switch {
	case total <= 0:
		return 0
	case total < 100:
		return total / 100 * 0.4
	case total < 1000:
		return 0.4 + (total-100)/900*0.6
	case total < 10000:
		return 1.0 + (total-1000)/9000*0.6
	default:
		return 1.6 + math.Min(0.4, (total-10000)/50000*0.4)
	}
}

func (f *faction) territoryControl() float64 {
	return math.Min(1, math.Sqrt(float64(f.cells))/10)
}

// world implements environment.World
type world struct {
	codec    *state.Codec
	rng      *rand.Rand
	factions []*faction
	rivals   [][]int // Last sampled rivals of each faction
	acted    []bool  // Whether a faction acted since its rivals were sampled
	tick     int
}

func newWorld(codec *state.Codec, c scenario.Config) (*world, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("newWorld: %w", err)
	}

	rng := rand.New(rand.NewPCG(c.Seed, c.Seed^0x5851f42d4c957f2d))
	w := &world{
		codec:    codec,
		rng:      rng,
		factions: make([]*faction, c.Factions),
		rivals:   make([][]int, c.Factions),
		acted:    make([]bool, c.Factions),
	}

	for i := range w.factions {
		w.factions[i] = newFaction(rng, c, len(w.factions))
	}

	// Relationships are symmetric and centred on the scenario's bias
	for i := range w.factions {
		for j := i + 1; j < len(w.factions); j++ {
			rel := floatutils.Clip(c.DiplomaticBias+uniform(rng, -0.2, 0.2),
				-1, 1)
			w.factions[i].relations[j] = rel
			w.factions[j].relations[i] = rel
		}
	}

	return w, nil
}

func newFaction(rng *rand.Rand, c scenario.Config, n int) *faction {
	arch := archetypes[rng.IntN(len(archetypes))]
	base := math.Max(10, math.Floor(float64(between(rng, 10, 100))*
		c.ResourceMultiplier*arch))
	third := int(base / 3)

	f := &faction{
		population: float64(between(rng, c.Population.Min, c.Population.Max)),
		food:       float64(between(rng, 1, max(10, third))) + base*uniform(rng, 0.5, 2),
		wood:       float64(between(rng, 1, max(10, third))) + base*uniform(rng, 0.5, 2),
		ore:        float64(between(rng, 1, max(5, third/2))) + base*uniform(rng, 0.5, 2),
		radius:     c.TerritoryRadius,
		cells:      territoryCells(c.TerritoryRadius),
		unlocked:   make([]bool, len(techs)),
		relations:  make([]float64, n),
		morale:     uniform(rng, 0.5, 1),
		noise:      rng.Float64() * 0.2,
	}

	unlocks := between(rng, 0, c.TechUnlocks)
	for _, i := range rng.Perm(len(techs))[:unlocks] {
		f.unlocked[i] = true
	}
	return f
}

// Tick implements the environment.World interface
func (w *world) Tick() {
	w.tick++
	for _, f := range w.factions {
		if !f.alive() {
			continue
		}
		cells := float64(f.cells)
		f.food += cells*uniform(w.rng, 0.5, 1.5) - f.population*0.02
		f.wood += cells * 0.2
		f.ore += cells * 0.1

		if f.food < 0 {
			f.population *= 0.97
			f.morale = math.Max(0, f.morale-0.05)
			f.food = 0
		} else if f.food > f.population {
			f.population *= 1.01
		}

		f.morale = math.Min(1, f.morale+0.01)
		f.defense = math.Max(0, f.defense-0.01)
		for j := range f.relations {
			f.relations[j] *= 0.99
		}
	}
}

// Actors implements the environment.World interface. No actor may make
// a decision unless at least three factions are alive.
func (w *world) Actors() []environment.Actor {
	var actors []environment.Actor
	for i, f := range w.factions {
		if f.alive() {
			actors = append(actors, environment.Actor(i))
		}
	}
	if len(actors) < 3 {
		return nil
	}
	return actors
}

// State implements the environment.World interface. A faction's state
// is relative to a sample of three to seven rivals, which its next action
// is directed at. A new sample is drawn on every call except the first
// call after an action, which observes the outcome against the same
// rivals.
func (w *world) State(a environment.Actor) (state.Vector, bool) {
	if !w.valid(a) {
		return nil, false
	}
	if w.acted[a] {
		w.acted[a] = false
		return w.observe(a)
	}

	var pool []int
	for i, f := range w.factions {
		if i != int(a) && f.alive() {
			pool = append(pool, i)
		}
	}
	if len(pool) < 2 {
		return nil, false
	}
	w.rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	w.rivals[a] = pool[:min(len(pool), between(w.rng, 3, 7))]

	return w.observe(a)
}

// observe returns the discretized state of an actor with respect to its
// current rivals
func (w *world) observe(a environment.Actor) (state.Vector, bool) {
	f := w.factions[a]
	rivals := w.rivals[a]
	if len(rivals) == 0 {
		return nil, false
	}

	var enemyPower, enemyTech, diplomacy float64
	for _, r := range rivals {
		enemyPower += w.factions[r].power()
		enemyTech += w.factions[r].techLevel()
		diplomacy += f.relations[r]
	}
	n := float64(len(rivals))
	enemyPower /= n

	ratio := 3.0
	if enemyPower > 0 {
		ratio = f.power() / enemyPower
	}

	obs := []float64{
		ratio,
		f.techLevel() - enemyTech/n,
		diplomacy / n,
		f.resourceAvailability(),
		f.readiness(),
		f.territoryControl(),
	}
	v, err := w.codec.Encode(obs)
	if err != nil {
		return nil, false
	}
	return v, true
}

func (w *world) valid(a environment.Actor) bool {
	return int(a) >= 0 && int(a) < len(w.factions) && w.factions[a].alive()
}

// between returns a uniform random integer in [lo, hi]
func between(rng *rand.Rand, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + rng.IntN(hi-lo+1)
}

// uniform returns a uniform random float in [lo, hi)
func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}
