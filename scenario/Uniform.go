package scenario

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// Uniform samples every field of a Config uniformly at random within its
// own ranges
type Uniform struct {
	Factions       IntRange
	PopulationLow  IntRange // Range of the lower population bound
	PopulationHigh int      // Largest upper population bound
	Resources      [2]float64
	Radius         IntRange
	Tech           IntRange
	Diplomacy      [2]float64
}

// DefaultUniform returns the sampler used for broad exploration
func DefaultUniform() Uniform {
	return Uniform{
		Factions:       IntRange{12, 20},
		PopulationLow:  IntRange{5, 400},
		PopulationHigh: 2000,
		Resources:      [2]float64{0.2, 8.0},
		Radius:         IntRange{1, 12},
		Tech:           IntRange{0, 12},
		Diplomacy:      [2]float64{-MaxDiplomacy, MaxDiplomacy},
	}
}

// Sample draws a new Config using rng. The Config's Seed is drawn from
// rng as well, so equal rng states produce equal Configs.
func (u Uniform) Sample(rng *rand.Rand) Config {
	low := intBetween(rng, u.PopulationLow)
	high := intBetween(rng, IntRange{low, max(low, u.PopulationHigh)})

	return Config{
		Seed:               rng.Uint64(),
		Factions:           intBetween(rng, u.Factions),
		Population:         IntRange{low, high},
		ResourceMultiplier: floatBetween(rng, u.Resources),
		TerritoryRadius:    intBetween(rng, u.Radius),
		TechUnlocks:        intBetween(rng, u.Tech),
		DiplomaticBias:     floatBetween(rng, u.Diplomacy),
	}
}

func floatBetween(rng *rand.Rand, r [2]float64) float64 {
	if r[0] >= r[1] {
		return r[0]
	}
	d := distuv.Uniform{Min: r[0], Max: r[1], Src: rng}
	return d.Rand()
}

func intBetween(rng *rand.Rand, r IntRange) int {
	if r.Min >= r.Max {
		return r.Min
	}
	d := distuv.Uniform{Min: float64(r.Min), Max: float64(r.Max + 1), Src: rng}
	return min(r.Max, int(math.Floor(d.Rand())))
}
