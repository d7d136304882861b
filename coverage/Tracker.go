package coverage

import (
	"fmt"
	"math"
	"strings"

	"github.com/samuelfneumann/statecover/state"
)

// Report summarizes coverage after a batch of episodes. Reports are
// derived from a Set and never stored.
type Report struct {
	Distinct int     // Distinct states ever visited
	Size     uint64  // Theoretical number of states
	Ratio    float64 // Distinct / Size
	PerDim   []int   // Distinct bins visited along each dimension
	New      int     // States first visited in the last batch
	Skipped  int     // Indices of the last batch outside of the space

	// Entropy is log(ΠPerDim) / log(ΠDims), a proxy for how evenly the
	// dimensions have been opened up. It is 1 once every bin of every
	// dimension has been seen.
	Entropy float64
}

// Percent returns the coverage ratio as a percentage
func (r Report) Percent() float64 {
	return r.Ratio * 100
}

// Complete reports whether every state of the space has been visited
func (r Report) Complete() bool {
	return uint64(r.Distinct) >= r.Size
}

func (r Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d/%d states (%.4f%%) | new: %d | dims: %v | "+
		"entropy: %.3f", r.Distinct, r.Size, r.Percent(), r.New, r.PerDim,
		r.Entropy)
	return b.String()
}

// Tracker absorbs the states visited by each batch of episodes into a
// Set
type Tracker struct {
	set *Set
}

// NewTracker returns a new Tracker which adds to set
func NewTracker(set *Set) *Tracker {
	return &Tracker{set: set}
}

// Set returns the tracked Set
func (t *Tracker) Set() *Set {
	return t.set
}

// Absorb unions every visited-state list of a batch into the Set and
// returns the resulting Report. Indices outside of the Set's space are
// skipped and counted in Report.Skipped.
func (t *Tracker) Absorb(visited ...[]state.Index) Report {
	added, skipped := 0, 0
	size := t.set.space.Size()
	for _, batch := range visited {
		for _, i := range batch {
			if uint64(i) >= size {
				skipped++
				continue
			}
			if t.set.Add(i) {
				added++
			}
		}
	}

	r := Summarize(t.set)
	r.New = added
	r.Skipped = skipped
	return r
}

// Summarize computes the Report of a Set. The New field is left zero.
func Summarize(s *Set) Report {
	space := s.space
	perDim := make([]int, space.Len())
	for d, counts := range s.BinCounts() {
		for _, c := range counts {
			if c > 0 {
				perDim[d]++
			}
		}
	}

	entropy := 0.0
	if s.Len() > 0 && space.LogSize() > 0 {
		logProd := 0.0
		for _, c := range perDim {
			logProd += math.Log(float64(c))
		}
		entropy = logProd / space.LogSize()
	}

	return Report{
		Distinct: s.Len(),
		Size:     space.Size(),
		Ratio:    float64(s.Len()) / float64(space.Size()),
		PerDim:   perDim,
		Entropy:  entropy,
	}
}
