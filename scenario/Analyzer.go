package scenario

import (
	"fmt"
	"math/rand/v2"

	"github.com/samuelfneumann/statecover/coverage"
)

// DefaultTargetFraction is the share of a batch generated to target a
// coverage gap when gaps exist
const DefaultTargetFraction = 0.8

// Biaser adjusts a Config so that the resulting world is more likely to
// produce states in the target bin. Bias must return a valid Config.
type Biaser interface {
	Bias(c Config, target Target, rng *rand.Rand) Config
}

// Analyzer plans batches of scenarios from the current coverage
type Analyzer struct {
	Sampler        Uniform
	Biaser         Biaser // May be nil
	TargetFraction float64
}

// NewAnalyzer returns a new Analyzer with the default sampler and target
// fraction
func NewAnalyzer(biaser Biaser) *Analyzer {
	return &Analyzer{
		Sampler:        DefaultUniform(),
		Biaser:         biaser,
		TargetFraction: DefaultTargetFraction,
	}
}

// Plan is the gap analysis of a coverage Set, from which scenarios can be
// sampled
type Plan struct {
	// Missing holds, for each dimension, the bins no visited state falls
	// into
	Missing [][]int

	// EstimatedMissing is the sum, over every missing bin, of the number
	// of states sharing that bin. States are counted once per missing bin
	// they contain, so this overestimates when several dimensions have
	// gaps.
	EstimatedMissing uint64

	targets  []Target
	analyzer *Analyzer
}

// Plan computes the coverage gaps of set. Plans are cheap and should be
// recomputed each time a batch is scheduled.
func (a *Analyzer) Plan(set *coverage.Set) Plan {
	space := set.Space()
	missing := coverage.MissingBins(set)

	var targets []Target
	var estimate uint64
	for d, bins := range missing {
		others := space.Size() / uint64(space.Bins(d))
		for _, bin := range bins {
			targets = append(targets, Target{Dim: d, Bin: bin})
			estimate += others
		}
	}

	return Plan{
		Missing:          missing,
		EstimatedMissing: estimate,
		targets:          targets,
		analyzer:         a,
	}
}

// Targets returns the (dimension, bin) pairs still missing
func (p Plan) Targets() []Target {
	return append([]Target(nil), p.targets...)
}

// Gaps returns whether any dimension has a missing bin
func (p Plan) Gaps() bool {
	return len(p.targets) > 0
}

// Sample returns n scenarios. When gaps exist, a TargetFraction of them
// each target a random missing (dimension, bin) pair and the rest are
// uniform; otherwise all are uniform.
func (p Plan) Sample(n int, rng *rand.Rand) []Config {
	out := make([]Config, n)

	targeted := 0
	if p.Gaps() {
		targeted = int(p.analyzer.TargetFraction*float64(n) + 0.5)
		targeted = min(max(targeted, 0), n)
	}

	for i := range out {
		c := p.analyzer.Sampler.Sample(rng)
		if i < targeted {
			target := p.targets[rng.IntN(len(p.targets))]
			if p.analyzer.Biaser != nil {
				c = p.analyzer.Biaser.Bias(c, target, rng)
			}
			c.Target = &target
		}
		out[i] = c
	}

	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// Names returns a readable name for each missing dimension, for logging
func (p Plan) Names(names []string) map[string][]int {
	out := make(map[string][]int)
	for d, bins := range p.Missing {
		if len(bins) == 0 {
			continue
		}
		name := fmt.Sprintf("dim %d", d)
		if d < len(names) {
			name = names[d]
		}
		out[name] = bins
	}
	return out
}
