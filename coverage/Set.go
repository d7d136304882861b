// Package coverage tracks which states of a discretized state space have
// been visited and reports how much of the space has been explored.
package coverage

import (
	"fmt"
	"sort"

	"github.com/samuelfneumann/statecover/state"
)

// Set is a set of visited states of a single Space. A Set only grows.
type Set struct {
	space   *state.Space
	members map[state.Index]struct{}
}

// NewSet returns a new empty Set over space
func NewSet(space *state.Space) *Set {
	return &Set{space: space, members: make(map[state.Index]struct{})}
}

// Space returns the Space of the Set
func (s *Set) Space() *state.Space {
	return s.space
}

// Add adds i to the set, returning whether it was new. Add panics if i
// is not an index of the Set's Space.
func (s *Set) Add(i state.Index) bool {
	if uint64(i) >= s.space.Size() {
		panic(fmt.Sprintf("add: index %d out of range for %v", i, s.space))
	}
	if _, ok := s.members[i]; ok {
		return false
	}
	s.members[i] = struct{}{}
	return true
}

// AddVector adds a Vector to the set, returning whether it was new
func (s *Set) AddVector(v state.Vector) (bool, error) {
	i, err := s.space.Index(v)
	if err != nil {
		return false, fmt.Errorf("addVector: %w", err)
	}
	return s.Add(i), nil
}

// Has reports whether i has been visited
func (s *Set) Has(i state.Index) bool {
	_, ok := s.members[i]
	return ok
}

// Len returns the number of distinct visited states
func (s *Set) Len() int {
	return len(s.members)
}

// Indices returns all visited states in increasing order
func (s *Set) Indices() []state.Index {
	out := make([]state.Index, 0, len(s.members))
	for i := range s.members {
		out = append(out, i)
	}
	sort.Slice(out, func(a, b int) bool { return out[a] < out[b] })
	return out
}

// Vectors returns all visited states as Vectors in increasing index order
func (s *Set) Vectors() []state.Vector {
	indices := s.Indices()
	out := make([]state.Vector, len(indices))
	for n, i := range indices {
		out[n] = s.space.Vector(i)
	}
	return out
}

// Clone returns a copy of the Set
func (s *Set) Clone() *Set {
	c := &Set{space: s.space, members: make(map[state.Index]struct{},
		len(s.members))}
	for i := range s.members {
		c.members[i] = struct{}{}
	}
	return c
}

// BinCounts returns, for every dimension, how many visited states fall
// into each bin of that dimension
func (s *Set) BinCounts() [][]int {
	counts := make([][]int, s.space.Len())
	for d := range counts {
		counts[d] = make([]int, s.space.Bins(d))
	}
	for i := range s.members {
		for d := range counts {
			counts[d][s.space.Coordinate(i, d)]++
		}
	}
	return counts
}

// MissingBins returns, for every dimension, the bins which no visited
// state falls into, in increasing order. A dimension with every bin
// covered has an empty, non-nil slice.
func MissingBins(s *Set) [][]int {
	counts := s.BinCounts()
	missing := make([][]int, len(counts))
	for d, dimCounts := range counts {
		missing[d] = []int{}
		for bin, c := range dimCounts {
			if c == 0 {
				missing[d] = append(missing[d], bin)
			}
		}
	}
	return missing
}
