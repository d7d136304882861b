package plot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/samuelfneumann/statecover/coverage"
	"github.com/samuelfneumann/statecover/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	set := coverage.NewSet(state.MustSpace(3, 2, 4, 5))
	set.Add(0)
	set.Add(7)
	set.Add(42)

	path := filepath.Join(t.TempDir(), "coverage.png")
	require.NoError(t, Render(set, []string{"a", "b"}, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	dc := Draw(set, nil)
	assert.Equal(t, int(3*panelW+2*margin), dc.Width())
	assert.Equal(t, int(2*panelH+3*margin), dc.Height())
}

func TestRenderBadPath(t *testing.T) {
	set := coverage.NewSet(state.MustSpace(2))
	err := Render(set, nil, filepath.Join(t.TempDir(), "missing", "x.png"))
	assert.Error(t, err)
}
