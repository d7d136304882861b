package progressbar

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestManualProgressBar(t *testing.T) {
	var buf bytes.Buffer
	p := NewManualProgressBar(&buf, 10, 200)

	p.Increment(50)
	assert.InDelta(t, 0.25, p.Progress(), 1e-12)
	bar := p.String("ε=0.30")
	assert.Equal(t, 3, strings.Count(bar, "█"))
	assert.Contains(t, bar, "[25.00% |")
	assert.True(t, strings.HasSuffix(bar, " ε=0.30"))

	p.Set(1000)
	assert.Equal(t, 1.0, p.Progress())
	p.Set(-1)
	assert.Equal(t, 0.0, p.Progress())

	p.Display("")
	p.Close()
	assert.Contains(t, buf.String(), "\033[K|")
	assert.True(t, strings.HasSuffix(buf.String(), "\n"))
}
