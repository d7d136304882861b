package state

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r1"

	"github.com/samuelfneumann/statecover/utils/floatutils"
)

// Binner maps a single continuous feature onto a bin index. Binners must
// be deterministic and must clamp out-of-range inputs to the nearest
// valid bin.
type Binner interface {
	Bin(x float64) int
	Bins() int
}

// Uniform partitions a closed interval into equal-width bins.
//
// As with tile coding, values are first offset by the interval minimum
// and scaled by the bin width; the integer part of the result is the bin.
// Values below the interval fall into the first bin and values at or
// above the interval maximum fall into the last bin.
type Uniform struct {
	r1.Interval
	N int
}

// NewUniform returns a new Uniform binner over [min, max] with n bins
func NewUniform(min, max float64, n int) Uniform {
	if n < 1 || n > MaxBins {
		panic(fmt.Sprintf("newUniform: bins must be in [1, %d], got %d",
			MaxBins, n))
	}
	if !(max > min) {
		panic(fmt.Sprintf("newUniform: empty interval [%v, %v]", min, max))
	}
	return Uniform{Interval: r1.Interval{Min: min, Max: max}, N: n}
}

// Bins returns the number of bins
func (u Uniform) Bins() int {
	return u.N
}

// Bin returns the bin of x
func (u Uniform) Bin(x float64) int {
	binLength := (u.Max - u.Min) / float64(u.N)
	tile := math.Floor((floatutils.ClipInterval(x, u.Interval) - u.Min) /
		binLength)

	return int(floatutils.Clip(tile, 0, float64(u.N-1)))
}

// Edges partitions the real line using domain-specific, strictly
// increasing inner edges. With k edges there are k+1 bins: bin 0 holds
// values below edges[0] and bin k holds values at or above edges[k-1].
type Edges []float64

// NewEdges returns a new Edges binner, panicking if the edges are not
// strictly increasing
func NewEdges(edges ...float64) Edges {
	if len(edges)+1 > MaxBins {
		panic(fmt.Sprintf("newEdges: too many edges %d", len(edges)))
	}
	for i := 1; i < len(edges); i++ {
		if !(edges[i] > edges[i-1]) {
			panic(fmt.Sprintf("newEdges: edges not strictly increasing at "+
				"%d: %v", i, edges))
		}
	}
	e := make(Edges, len(edges))
	copy(e, edges)
	return e
}

// Bins returns the number of bins
func (e Edges) Bins() int {
	return len(e) + 1
}

// Bin returns the bin of x
func (e Edges) Bin(x float64) int {
	if math.IsNaN(x) {
		return 0
	}
	return sort.Search(len(e), func(i int) bool { return e[i] > x })
}
