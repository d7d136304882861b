// Package state implements the discretized decision state space: vectors
// of bin coordinates, their packed indices, and the codecs which bin
// continuous observations into them.
package state

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
	"strconv"
	"strings"
)

// KeyVersion identifies the Index packing scheme. It is stored with every
// persisted table so that indices are never decoded with a different
// scheme than the one that produced them.
const KeyVersion = 1

// MaxBins is the largest number of bins a single dimension may have
const MaxBins = 255

// ErrOutOfSpace is returned when a Vector does not belong to a Space
var ErrOutOfSpace = errors.New("state: vector outside of space")

// Vector is a discretized state: one bin coordinate per dimension.
// Vectors are used as lookup keys and are never mutated once produced.
type Vector []int

// Clone returns a copy of the Vector
func (v Vector) Clone() Vector {
	out := make(Vector, len(v))
	copy(out, v)
	return out
}

// Equal reports whether two Vectors hold the same coordinates
func (v Vector) Equal(o Vector) bool {
	if len(v) != len(o) {
		return false
	}
	for i := range v {
		if v[i] != o[i] {
			return false
		}
	}
	return true
}

// String returns the tuple form of the Vector, e.g. (1, 0, 7)
func (v Vector) String() string {
	parts := make([]string, len(v))
	for i, c := range v {
		parts[i] = strconv.Itoa(c)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Index is the packed, fixed-width encoding of a Vector within a Space.
// Indices are mixed-radix numbers where dimension 0 is the most
// significant digit.
type Index uint64

// Space describes a discretized state space by the number of bins along
// each dimension.
type Space struct {
	dims    []int
	strides []uint64
	size    uint64
}

// NewSpace returns a new Space with the given per-dimension
// cardinalities. Each cardinality must be in [1, MaxBins] and the total
// number of states must fit in 64 bits.
func NewSpace(dims ...int) (*Space, error) {
	if len(dims) == 0 {
		return nil, fmt.Errorf("newSpace: space must have at least one " +
			"dimension")
	}

	strides := make([]uint64, len(dims))
	size := uint64(1)
	for i := len(dims) - 1; i >= 0; i-- {
		if dims[i] < 1 || dims[i] > MaxBins {
			return nil, fmt.Errorf("newSpace: dimension %d has %d bins, "+
				"want [1, %d]", i, dims[i], MaxBins)
		}
		strides[i] = size

		hi, lo := bits.Mul64(size, uint64(dims[i]))
		if hi != 0 {
			return nil, fmt.Errorf("newSpace: space size overflows uint64")
		}
		size = lo
	}

	d := make([]int, len(dims))
	copy(d, dims)
	return &Space{dims: d, strides: strides, size: size}, nil
}

// MustSpace is like NewSpace but panics on error
func MustSpace(dims ...int) *Space {
	s, err := NewSpace(dims...)
	if err != nil {
		panic(err)
	}
	return s
}

// Size returns the theoretical number of states in the space, the
// product of all per-dimension cardinalities
func (s *Space) Size() uint64 {
	return s.size
}

// Len returns the number of dimensions in the space
func (s *Space) Len() int {
	return len(s.dims)
}

// Dims returns a copy of the per-dimension cardinalities
func (s *Space) Dims() []int {
	d := make([]int, len(s.dims))
	copy(d, s.dims)
	return d
}

// Bins returns the cardinality of dimension dim
func (s *Space) Bins(dim int) int {
	return s.dims[dim]
}

// Equal reports whether two spaces have identical dimensions
func (s *Space) Equal(o *Space) bool {
	return Vector(s.dims).Equal(Vector(o.dims))
}

// Contains reports whether v is a valid Vector of the space
func (s *Space) Contains(v Vector) bool {
	if len(v) != len(s.dims) {
		return false
	}
	for i, c := range v {
		if c < 0 || c >= s.dims[i] {
			return false
		}
	}
	return true
}

// Index packs v into its Index
func (s *Space) Index(v Vector) (Index, error) {
	if !s.Contains(v) {
		return 0, fmt.Errorf("index %v in space %v: %w", v, s.dims,
			ErrOutOfSpace)
	}

	var index uint64
	for i, c := range v {
		index += uint64(c) * s.strides[i]
	}
	return Index(index), nil
}

// Vector unpacks an Index into its Vector. Vector panics if the index is
// not smaller than Size().
func (s *Space) Vector(i Index) Vector {
	if uint64(i) >= s.size {
		panic(fmt.Sprintf("vector: index %d out of range for space of "+
			"size %d", i, s.size))
	}

	v := make(Vector, len(s.dims))
	rem := uint64(i)
	for d := range s.dims {
		v[d] = int(rem / s.strides[d])
		rem %= s.strides[d]
	}
	return v
}

// Coordinate returns the bin along dimension dim of the state with
// index i without unpacking the full Vector
func (s *Space) Coordinate(i Index, dim int) int {
	return int((uint64(i) / s.strides[dim]) % uint64(s.dims[dim]))
}

// LogSize returns the natural logarithm of Size()
func (s *Space) LogSize() float64 {
	total := 0.0
	for _, d := range s.dims {
		total += math.Log(float64(d))
	}
	return total
}

// String returns a description of the space
func (s *Space) String() string {
	return fmt.Sprintf("Space%v (%d states)", s.dims, s.size)
}
