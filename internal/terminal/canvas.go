// Package terminal hosts the visualizer in a tcell screen: a cell-based
// canvas for the renderer and a keyboard-driven view around it.
package terminal

import (
	"math"
	"sync"

	"github.com/gdamore/tcell/v2"

	"github.com/petems/spectral-canvas/internal/render"
)

// One cell is CellWidth x CellHeight canvas units. Each cell shows two
// square pixels stacked with an upper half block, so one pixel is
// CellWidth units on both axes.
const (
	CellWidth  = 8.0
	CellHeight = 16.0
	pixelSize  = CellWidth

	halfBlock = '▀'
)

// Canvas draws onto a rectangular region of a tcell screen.
type Canvas struct {
	screen tcell.Screen

	mu     sync.Mutex
	x, y   int
	cols   int
	rows   int
	pw, ph int
	pixels []tcell.Color
	text   []rune
	textFg []tcell.Color
	frames int
}

func NewCanvas(screen tcell.Screen) *Canvas {
	return &Canvas{screen: screen}
}

// SetRegion places the canvas at column x, row y, spanning cols x rows cells.
func (c *Canvas) SetRegion(x, y, cols, rows int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.x, c.y = x, y
	c.cols, c.rows = max(cols, 0), max(rows, 0)
}

// Region returns the cells the canvas occupies.
func (c *Canvas) Region() (x, y, cols, rows int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.x, c.y, c.cols, c.rows
}

// BeginFrame locks the canvas and clears the text layer.
func (c *Canvas) BeginFrame() {
	c.mu.Lock()
	for i := range c.text {
		c.text[i] = 0
	}
}

// EndFrame copies the frame to the screen and shows it.
func (c *Canvas) EndFrame() {
	c.flushLocked()
	c.frames++
	c.mu.Unlock()
	c.screen.Show()
}

func (c *Canvas) Frames() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frames
}

func (c *Canvas) ClientSize() (float64, float64) {
	return float64(c.cols) * CellWidth, float64(c.rows) * CellHeight
}

func (c *Canvas) Resize(w, h float64) {
	pw := int(math.Round(w / pixelSize))
	ph := int(math.Round(h / pixelSize))
	if pw == c.pw && ph == c.ph && c.pixels != nil {
		return
	}
	c.pw, c.ph = pw, ph
	c.pixels = make([]tcell.Color, pw*ph)
	cells := pw * ((ph + 1) / 2)
	c.text = make([]rune, cells)
	c.textFg = make([]tcell.Color, cells)
}

func (c *Canvas) FillRect(x, y, w, h float64, p render.Paint) {
	x, y, w, h = render.Normalize(x, y, w, h)
	x0 := int(math.Floor(x / pixelSize))
	x1 := int(math.Ceil((x + w) / pixelSize))
	y0 := int(math.Floor(y / pixelSize))
	y1 := int(math.Ceil((y + h) / pixelSize))
	for py := max(y0, 0); py < min(y1, c.ph); py++ {
		for px := max(x0, 0); px < min(x1, c.pw); px++ {
			c.set(px, py, p)
		}
	}
}

// StrokeLine plots a one-pixel line. End points on the far edges are pulled
// inside so border lines stay visible.
func (c *Canvas) StrokeLine(x0, y0, x1, y1, width float64, p render.Paint) {
	c.plotLine(c.pixel(x0, y0), c.pixel(x1, y1), p)
}

func (c *Canvas) StrokePath(pts []render.Point, width float64, p render.Paint) {
	if len(pts) == 0 {
		return
	}
	prev := c.pixel(pts[0].X, pts[0].Y)
	c.set(prev[0], prev[1], p)
	for _, pt := range pts[1:] {
		next := c.pixel(pt.X, pt.Y)
		c.plotLine(prev, next, p)
		prev = next
	}
}

// FillText writes text into the cell row holding the baseline y.
func (c *Canvas) FillText(s string, x, y float64, p render.Paint) {
	row := int(math.Floor((y - 1) / CellHeight))
	rows := (c.ph + 1) / 2
	if row < 0 || row >= rows {
		return
	}
	col := int(math.Floor(x / CellWidth))
	fg := tcell.FromImageColor(p.ColorAt(int(x), int(y)))
	for _, r := range s {
		if col >= c.pw {
			return
		}
		if col >= 0 {
			c.text[row*c.pw+col] = r
			c.textFg[row*c.pw+col] = fg
		}
		col++
	}
}

// pixel converts canvas units to a pixel clamped into the buffer.
func (c *Canvas) pixel(x, y float64) [2]int {
	px := int(math.Floor(x / pixelSize))
	py := int(math.Floor(y / pixelSize))
	return [2]int{clamp(px, 0, c.pw-1), clamp(py, 0, c.ph-1)}
}

// plotLine is Bresenham's algorithm over pixels.
func (c *Canvas) plotLine(from, to [2]int, p render.Paint) {
	x0, y0, x1, y1 := from[0], from[1], to[0], to[1]
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		c.set(x0, y0, p)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func (c *Canvas) set(px, py int, p render.Paint) {
	if px < 0 || py < 0 || px >= c.pw || py >= c.ph {
		return
	}
	ux := int(float64(px)*pixelSize + pixelSize/2)
	uy := int(float64(py)*pixelSize + pixelSize/2)
	c.pixels[py*c.pw+px] = tcell.FromImageColor(p.ColorAt(ux, uy))
}

func (c *Canvas) at(px, py int) tcell.Color {
	if py >= c.ph {
		return tcell.ColorDefault
	}
	return c.pixels[py*c.pw+px]
}

func (c *Canvas) flushLocked() {
	cols := min(c.cols, c.pw)
	rows := min(c.rows, (c.ph+1)/2)
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			top := c.at(col, 2*row)
			bottom := c.at(col, 2*row+1)
			if r := c.text[row*c.pw+col]; r != 0 {
				style := tcell.StyleDefault.Foreground(c.textFg[row*c.pw+col]).Background(bottom)
				c.screen.SetContent(c.x+col, c.y+row, r, nil, style)
				continue
			}
			style := tcell.StyleDefault.Foreground(top).Background(bottom)
			c.screen.SetContent(c.x+col, c.y+row, halfBlock, nil, style)
		}
	}
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	return max(lo, min(v, hi))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
