// Package tribal implements a world of competing factions whose leaders
// decide on military actions. The state of a faction is described by six
// features: its power ratio, technology advantage and diplomatic status
// with respect to a sample of rival factions, as well as its resource
// availability, force readiness, and territory control.
package tribal

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/samuelfneumann/statecover/environment"
	"github.com/samuelfneumann/statecover/scenario"
	"github.com/samuelfneumann/statecover/state"
)

// Name is the name the tribal Factory is registered under
const Name = "tribal"

// Actions available to each faction
const (
	AggressiveAttack int = iota
	DefensivePosture
	StrategicRetreat
	ForceReinforcement
	TechInvestment
	DiplomaticPressure
	SiegePreparation
	PeacefulApproach
)

var actionNames = []string{
	"aggressive_attack",
	"defensive_posture",
	"strategic_retreat",
	"force_reinforcement",
	"tech_investment",
	"diplomatic_pressure",
	"siege_preparation",
	"peaceful_approach",
}

// ActionName returns the name of an action
func ActionName(a int) string {
	if a < 0 || a >= len(actionNames) {
		return fmt.Sprintf("action(%d)", a)
	}
	return actionNames[a]
}

// Feature indices into a state Vector
const (
	PowerRatio = iota
	TechAdvantage
	DiplomaticStatus
	ResourceAvailability
	ForceReadiness
	TerritoryControl
)

func init() {
	environment.Register(NewFactory())
}

// Factory creates tribal Worlds
type Factory struct {
	codec *state.Codec
}

// NewFactory returns a new tribal Factory. The state space has
// 15 × 12 × 8 × 8 × 7 × 8 = 645,120 states.
func NewFactory() *Factory {
	codec, err := state.NewCodec(
		state.Feature{Name: "power_ratio", Binner: state.NewUniform(0, 3, 15)},
		state.Feature{Name: "tech_advantage", Binner: state.NewUniform(-2, 2, 12)},
		state.Feature{Name: "diplomatic_status", Binner: state.NewUniform(-1, 1, 8)},
		state.Feature{Name: "resource_availability", Binner: state.NewUniform(0, 2, 8)},
		state.Feature{Name: "force_readiness", Binner: state.NewUniform(0, 1, 7)},
		state.Feature{Name: "territory_control", Binner: state.NewUniform(0, 1, 8)},
	)
	if err != nil {
		panic(fmt.Sprintf("newFactory: %v", err))
	}
	return &Factory{codec: codec}
}

// Name implements the environment.Factory interface
func (f *Factory) Name() string {
	return Name
}

// Actions implements the environment.Factory interface
func (f *Factory) Actions() int {
	return len(actionNames)
}

// Codec implements the environment.Factory interface
func (f *Factory) Codec() *state.Codec {
	return f.codec
}

// New implements the environment.Factory interface
func (f *Factory) New(c scenario.Config) (environment.World, error) {
	return newWorld(f.codec, c)
}

// Bias adjusts a scenario so that created worlds tend to produce states
// in the target bin
func (f *Factory) Bias(c scenario.Config, t scenario.Target,
	rng *rand.Rand) scenario.Config {
	space := f.codec.Space()
	if t.Dim < 0 || t.Dim >= space.Len() || t.Bin < 0 ||
		t.Bin >= space.Bins(t.Dim) {
		return c
	}
	// Relative position of the bin within its dimension, in (0, 1)
	pos := (float64(t.Bin) + 0.5) / float64(space.Bins(t.Dim))

	switch t.Dim {
	case PowerRatio:
		// Ratios far from 1 need factions of very different sizes
		c.Population = scenario.IntRange{Min: 5, Max: scenario.MaxPopulation}
		c.Factions = scenario.MaxFactions / 2
		if pos > 0.5 {
			c.TechUnlocks = scenario.MaxTech
		}

	case TechAdvantage:
		c.TechUnlocks = scenario.MaxTech
		if math.Abs(pos-0.5) < 0.2 {
			c.TechUnlocks = rng.IntN(4)
		}

	case DiplomaticStatus:
		c.DiplomaticBias = -1 + 2*pos

	case ResourceAvailability:
		total := resourcesFor(2 * pos)
		c.ResourceMultiplier = min(scenario.MaxResources,
			max(0.01, total/resourceScale))

	case ForceReadiness:
		if pos < 0.5 {
			c.Population = scenario.IntRange{Min: 5, Max: 100}
			c.TechUnlocks = 0
		} else {
			c.Population = scenario.IntRange{Min: 800, Max: scenario.MaxPopulation}
			c.TechUnlocks = scenario.MaxTech
		}

	case TerritoryControl:
		cells := math.Pow(10*pos, 2)
		c.TerritoryRadius = radiusFor(cells)
	}

	return c
}

// resourceScale approximates the total resources of a faction created
// with a resource multiplier of 1
const resourceScale = 600.0

// resourcesFor inverts the resource availability scaling
func resourcesFor(availability float64) float64 {
	switch {
	case availability < 0.4:
		return availability / 0.4 * 100
	case availability < 1.0:
		return 100 + (availability-0.4)/0.6*900
	case availability < 1.6:
		return 1000 + (availability-1.0)/0.6*9000
	default:
		return 10000 + (availability-1.6)/0.4*50000
	}
}

// radiusFor returns the territory radius whose diamond-shaped territory
// has closest to the given number of cells
func radiusFor(cells float64) int {
	r := (-2 + math.Sqrt(4-8*(1-cells))) / 4
	if math.IsNaN(r) || r < 0 {
		return 0
	}
	return min(scenario.MaxRadius, int(math.Round(r)))
}

// territoryCells returns the number of cells within a diamond of radius r
func territoryCells(r int) int {
	return 2*r*r + 2*r + 1
}
