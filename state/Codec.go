package state

import "fmt"

// Feature is a single named dimension of a Codec
type Feature struct {
	Name string
	Binner
}

// Codec discretizes raw observations into Vectors. Each feature of an
// observation is binned independently by its own Binner.
type Codec struct {
	features []Feature
	space    *Space
}

// NewCodec returns a new Codec over the given features
func NewCodec(features ...Feature) (*Codec, error) {
	dims := make([]int, len(features))
	for i, f := range features {
		if f.Binner == nil {
			return nil, fmt.Errorf("newCodec: feature %d (%q) has no binner",
				i, f.Name)
		}
		dims[i] = f.Bins()
	}

	space, err := NewSpace(dims...)
	if err != nil {
		return nil, fmt.Errorf("newCodec: %w", err)
	}

	fs := make([]Feature, len(features))
	copy(fs, features)
	return &Codec{features: fs, space: space}, nil
}

// Space returns the Space of Vectors produced by the Codec
func (c *Codec) Space() *Space {
	return c.space
}

// Names returns the feature names in dimension order
func (c *Codec) Names() []string {
	names := make([]string, len(c.features))
	for i, f := range c.features {
		names[i] = f.Name
	}
	return names
}

// Encode discretizes a raw observation. The only error is a mismatch
// between the observation length and the number of features; values
// outside of a feature's domain are clamped.
func (c *Codec) Encode(obs []float64) (Vector, error) {
	if len(obs) != len(c.features) {
		return nil, fmt.Errorf("encode: observation has %d features, "+
			"codec expects %d", len(obs), len(c.features))
	}

	v := make(Vector, len(obs))
	for i, x := range obs {
		v[i] = c.features[i].Bin(x)
	}
	return v, nil
}

// EncodeIndex discretizes a raw observation and packs it into an Index
func (c *Codec) EncodeIndex(obs []float64) (Index, error) {
	v, err := c.Encode(obs)
	if err != nil {
		return 0, err
	}
	return c.space.Index(v)
}
