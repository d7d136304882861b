package environment

import (
	"errors"
	"testing"

	"github.com/samuelfneumann/statecover/scenario"
	"github.com/samuelfneumann/statecover/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFactory struct{ name string }

func (s *stubFactory) Name() string { return s.name }
func (s *stubFactory) Actions() int { return 2 }
func (s *stubFactory) Codec() *state.Codec { return nil }
func (s *stubFactory) New(scenario.Config) (World, error) {
	return nil, errors.New("stub")
}

func TestRegistry(t *testing.T) {
	f := &stubFactory{name: "registry-test"}
	Register(f)
	Register(f)

	got, err := Lookup("registry-test")
	require.NoError(t, err)
	assert.Same(t, f, got)
	assert.Contains(t, Names(), "registry-test")

	_, err = Lookup("registry-test-missing")
	assert.True(t, errors.Is(err, ErrUnknown))

	assert.Panics(t, func() { Register(&stubFactory{name: "registry-test"}) })
}
