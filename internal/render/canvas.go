package render

import (
	"image/color"

	"github.com/fogleman/gg"
)

// Point is a position in canvas units, origin top-left.
type Point struct {
	X, Y float64
}

// Paint is anything that yields a color per pixel: a solid color or a
// linear gradient.
type Paint = gg.Pattern

// Stop is one color stop of a gradient, Offset in [0, 1].
type Stop struct {
	Offset float64
	Color  color.Color
}

// Solid returns a single-color paint.
func Solid(c color.Color) Paint {
	return gg.NewSolidPattern(c)
}

// LinearGradient returns a paint that blends the stops along the line from
// (x0, y0) to (x1, y1).
func LinearGradient(x0, y0, x1, y1 float64, stops ...Stop) Paint {
	g := gg.NewLinearGradient(x0, y0, x1, y1)
	for _, s := range stops {
		g.AddColorStop(s.Offset, s.Color)
	}
	return g
}

// Canvas is the 2D drawing surface the renderer paints on.
type Canvas interface {
	// ClientSize is the size the surface currently occupies on screen.
	ClientSize() (w, h float64)
	// Resize sets the drawing buffer size.
	Resize(w, h float64)
	FillRect(x, y, w, h float64, p Paint)
	StrokeLine(x0, y0, x1, y1, width float64, p Paint)
	StrokePath(pts []Point, width float64, p Paint)
	// FillText draws text with its baseline at y.
	FillText(text string, x, y float64, p Paint)
}

// Framer is implemented by canvases that need to know where a frame starts
// and ends, e.g. to lock a buffer or flush to the screen.
type Framer interface {
	BeginFrame()
	EndFrame()
}

// Normalize flips a rectangle with negative width or height so that w and h
// are non-negative and it covers the same area.
func Normalize(x, y, w, h float64) (float64, float64, float64, float64) {
	if w < 0 {
		x, w = x+w, -w
	}
	if h < 0 {
		y, h = y+h, -h
	}
	return x, y, w, h
}
