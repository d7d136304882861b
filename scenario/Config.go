// Package scenario describes the randomized initial conditions of a
// training episode and plans scenario batches that target coverage gaps.
package scenario

import (
	"errors"
	"fmt"
)

// ErrInvalid is returned when a Config has a field outside its range
var ErrInvalid = errors.New("invalid scenario")

const (
	MinFactions   = 3
	MaxFactions   = 32
	MaxPopulation = 5000
	MaxResources  = 10.0
	MaxRadius     = 12
	MaxTech       = 12
	MaxDiplomacy  = 1.5
)

// IntRange is an inclusive range of integers
type IntRange struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

func (r IntRange) String() string {
	return fmt.Sprintf("[%d, %d]", r.Min, r.Max)
}

// Target is a (dimension, bin) pair a scenario was generated to reach.
// A Target is informational only: nothing guarantees the episode
// actually visits it.
type Target struct {
	Dim int
	Bin int
}

func (t Target) String() string {
	return fmt.Sprintf("dim %d bin %d", t.Dim, t.Bin)
}

// Config is the set of initial conditions for one episode's world
type Config struct {
	Seed               uint64
	Factions           int
	Population         IntRange
	ResourceMultiplier float64
	TerritoryRadius    int
	TechUnlocks        int
	DiplomaticBias     float64
	Target             *Target
}

// Validate returns an error wrapping ErrInvalid if any field of the
// Config is out of range
func (c Config) Validate() error {
	switch {
	case c.Factions < MinFactions || c.Factions > MaxFactions:
		return fmt.Errorf("%w: factions %d not in [%d, %d]", ErrInvalid,
			c.Factions, MinFactions, MaxFactions)

	case c.Population.Min < 1 || c.Population.Min > c.Population.Max ||
		c.Population.Max > MaxPopulation:
		return fmt.Errorf("%w: population %v must satisfy 1 <= min <= "+
			"max <= %d", ErrInvalid, c.Population, MaxPopulation)

	case !(c.ResourceMultiplier > 0) || c.ResourceMultiplier > MaxResources:
		return fmt.Errorf("%w: resource multiplier %v not in (0, %v]",
			ErrInvalid, c.ResourceMultiplier, MaxResources)

	case c.TerritoryRadius < 0 || c.TerritoryRadius > MaxRadius:
		return fmt.Errorf("%w: territory radius %d not in [0, %d]",
			ErrInvalid, c.TerritoryRadius, MaxRadius)

	case c.TechUnlocks < 0 || c.TechUnlocks > MaxTech:
		return fmt.Errorf("%w: tech unlocks %d not in [0, %d]", ErrInvalid,
			c.TechUnlocks, MaxTech)

	case !(c.DiplomaticBias >= -MaxDiplomacy && c.DiplomaticBias <= MaxDiplomacy):
		return fmt.Errorf("%w: diplomatic bias %v not in [%v, %v]",
			ErrInvalid, c.DiplomaticBias, -MaxDiplomacy, MaxDiplomacy)
	}
	return nil
}

func (c Config) String() string {
	target := "none"
	if c.Target != nil {
		target = c.Target.String()
	}
	return fmt.Sprintf("Scenario(seed: %d, factions: %d, population: %v, "+
		"resources: %.2f, radius: %d, tech: %d, diplomacy: %.2f, target: %s)",
		c.Seed, c.Factions, c.Population, c.ResourceMultiplier,
		c.TerritoryRadius, c.TechUnlocks, c.DiplomaticBias, target)
}
