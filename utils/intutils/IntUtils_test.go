package intutils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMinMax(t *testing.T) {
	assert.Equal(t, -3, Min(4, -3, 7))
	assert.Equal(t, 7, Max(4, -3, 7))
}

func TestClip(t *testing.T) {
	assert.Equal(t, 10, Clip(2, 10, 200))
	assert.Equal(t, 200, Clip(5000, 10, 200))
	assert.Equal(t, 50, Clip(50, 10, 200))
}
