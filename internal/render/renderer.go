// Package render paints a magnitude snapshot onto a Canvas: a dark
// background, a decibel/frequency grid, and either bars or a line.
package render

import (
	"fmt"
	"image/color"
	"math"
)

const (
	// GridDivisions is the number of bands between horizontal grid lines.
	GridDivisions = 5
	// DecibelStep is the label increment per horizontal grid line. The scale
	// is linear in byte magnitude and not calibrated.
	DecibelStep = 20

	MinFrequency = 20.0
	MaxFrequency = 20000.0

	// BarWidthFactor widens bars beyond width/bins; the highest bins fall off
	// the right edge and are not drawn.
	BarWidthFactor = 2.5
	LineWidth      = 2.0
	GridLineWidth  = 0.5
)

// Landmarks are the frequencies marked by vertical grid lines.
var Landmarks = []float64{20, 50, 100, 200, 500, 1000, 2000, 5000, 10000, 20000}

// Theme holds the colors used for a frame.
type Theme struct {
	Background color.Color
	GridLine   color.Color
	GridText   color.Color
	Spectrum   []Stop
}

func DefaultTheme() Theme {
	return Theme{
		Background: color.RGBA{0x12, 0x12, 0x12, 0xff},
		GridLine:   color.RGBA{0x33, 0x33, 0x33, 0xff},
		GridText:   color.RGBA{0x66, 0x66, 0x66, 0xff},
		Spectrum: []Stop{
			{0, color.RGBA{0x00, 0xff, 0xcc, 0xff}},
			{0.5, color.RGBA{0x00, 0xaa, 0xff, 0xff}},
			{1, color.RGBA{0x00, 0x66, 0xff, 0xff}},
		},
	}
}

type Renderer struct {
	Theme Theme
}

func New() *Renderer {
	return &Renderer{Theme: DefaultTheme()}
}

// Draw paints one frame. A nil canvas skips the frame.
func (r *Renderer) Draw(c Canvas, data []uint8, mode Mode) {
	if c == nil {
		return
	}
	if f, ok := c.(Framer); ok {
		f.BeginFrame()
		defer f.EndFrame()
	}

	w, h := c.ClientSize()
	c.Resize(w, h)

	c.FillRect(0, 0, w, h, Solid(r.Theme.Background))
	r.DrawGrid(c, w, h)

	switch mode {
	case Line:
		r.DrawLine(c, w, h, data)
	default:
		r.DrawBars(c, w, h, data)
	}
}

// DrawGrid draws the horizontal decibel lines and the vertical frequency
// landmarks with their labels.
func (r *Renderer) DrawGrid(c Canvas, w, h float64) {
	line := Solid(r.Theme.GridLine)
	text := Solid(r.Theme.GridText)

	for i := 0; i <= GridDivisions; i++ {
		y := h - float64(i)*h/GridDivisions
		c.StrokeLine(0, y, w, y, GridLineWidth, line)
		c.FillText(fmt.Sprintf("%ddB", i*DecibelStep), 5, y-5, text)
	}

	for _, f := range Landmarks {
		x := FrequencyX(f, w)
		c.StrokeLine(x, 0, x, h, GridLineWidth, line)
		c.FillText(FrequencyLabel(f), x-10, h-5, text)
	}
}

// DrawBars draws one bar per bin from the left edge until the bars reach
// the right edge.
func (r *Renderer) DrawBars(c Canvas, w, h float64, data []uint8) {
	n := len(data)
	if n == 0 {
		return
	}
	fill := LinearGradient(0, h, 0, 0, r.Theme.Spectrum...)

	barWidth := w / float64(n) * BarWidthFactor
	x := 0.0
	for i := 0; i < n; i++ {
		barHeight := Magnitude(data[i]) * h
		c.FillRect(x, h-barHeight, barWidth-1, barHeight, fill)

		x += barWidth
		if x >= w {
			break
		}
	}
}

// DrawLine strokes a single path through the bins, evenly spaced across the
// width.
func (r *Renderer) DrawLine(c Canvas, w, h float64, data []uint8) {
	n := len(data)
	if n == 0 {
		return
	}
	stroke := LinearGradient(0, 0, w, 0, r.Theme.Spectrum...)

	slice := w / float64(n)
	pts := make([]Point, 0, n)
	x := 0.0
	for i := 0; i < n; i++ {
		pts = append(pts, Point{X: x, Y: h - Magnitude(data[i])*h})

		x += slice
		if x >= w {
			break
		}
	}
	c.StrokePath(pts, LineWidth, stroke)
}

// Magnitude maps a byte magnitude onto [0, 1].
func Magnitude(v uint8) float64 {
	return float64(v) / 255
}

// FrequencyX places f on a log10 axis spanning 20 Hz to 20 kHz over width w.
func FrequencyX(f, w float64) float64 {
	logMin := math.Log10(MinFrequency)
	logMax := math.Log10(MaxFrequency)
	return (math.Log10(f) - logMin) / (logMax - logMin) * w
}

// FrequencyLabel formats a landmark, using "k" for thousands.
func FrequencyLabel(f float64) string {
	if f >= 1000 {
		return fmt.Sprintf("%gk", f/1000)
	}
	return fmt.Sprintf("%g", f)
}
