// Package plot renders per-dimension bin coverage as a PNG bar chart
package plot

import (
	"fmt"
	"image/color"

	"github.com/fogleman/gg"
	"github.com/samuelfneumann/statecover/coverage"
)

const (
	panelW   = 320.0
	panelH   = 220.0
	margin   = 30.0
	maxPanel = 3
)

var (
	background = color.RGBA{R: 250, G: 250, B: 250, A: 255}
	covered    = color.RGBA{R: 61, G: 53, B: 122, A: 255}
	missing    = color.RGBA{R: 255, G: 166, B: 0, A: 255}
	ink        = color.Black
)

// Render draws one panel per dimension of set. Each panel shows how many
// visited states fall into every bin of that dimension, with unvisited
// bins drawn as short orange markers. The image is saved as a PNG at path.
func Render(set *coverage.Set, names []string, path string) error {
	dc := Draw(set, names)
	if err := dc.SavePNG(path); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	return nil
}

// Draw draws the coverage chart of set into a new context
func Draw(set *coverage.Set, names []string) *gg.Context {
	counts := set.BinCounts()
	report := coverage.Summarize(set)

	cols := maxPanel
	if len(counts) < cols {
		cols = len(counts)
	}
	if cols == 0 {
		cols = 1
	}
	rows := (len(counts) + cols - 1) / cols

	w := int(float64(cols)*panelW + 2*margin)
	h := int(float64(rows)*panelH + 3*margin)
	dc := gg.NewContext(w, h)
	dc.SetColor(background)
	dc.Clear()

	dc.SetColor(ink)
	dc.DrawStringAnchored(report.String(), float64(w)/2, margin, 0.5, 0.5)

	for d, dimCounts := range counts {
		x := margin + float64(d%cols)*panelW
		y := 2*margin + float64(d/cols)*panelH
		name := fmt.Sprintf("dim %d", d)
		if d < len(names) {
			name = names[d]
		}
		drawPanel(dc, x, y, name, dimCounts)
	}
	return dc
}

func drawPanel(dc *gg.Context, x, y float64, name string, counts []int) {
	innerW := panelW - margin
	innerH := panelH - 2*margin
	baseline := y + innerH + margin/2

	maxCount := 1
	hit := 0
	for _, c := range counts {
		if c > maxCount {
			maxCount = c
		}
		if c > 0 {
			hit++
		}
	}

	dc.SetColor(ink)
	dc.DrawStringAnchored(fmt.Sprintf("%s (%d/%d)", name, hit, len(counts)),
		x+innerW/2, y+margin/4, 0.5, 0.5)

	barW := innerW / float64(len(counts))
	for bin, c := range counts {
		bx := x + float64(bin)*barW
		if c == 0 {
			dc.SetColor(missing)
			dc.DrawRectangle(bx+1, baseline-4, barW-2, 4)
			dc.Fill()
			continue
		}
		bh := innerH * float64(c) / float64(maxCount)
		dc.SetColor(covered)
		dc.DrawRectangle(bx+1, baseline-bh, barW-2, bh)
		dc.Fill()
	}

	dc.ClearPath()
	dc.SetColor(ink)
	dc.SetLineWidth(1.0)
	dc.DrawLine(x, baseline, x+innerW, baseline)
	dc.Stroke()
}
