package render

import (
	"image"
	"image/draw"
	"io"
	"math"
	"os"
	"sync"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"
)

// Raster is an offscreen RGBA canvas. It is used for headless snapshots.
type Raster struct {
	mu         sync.Mutex
	dc         *gg.Context
	clientW    int
	clientH    int
	frameCount int
}

// NewRaster returns a canvas whose on-screen size is w x h pixels.
func NewRaster(w, h int) *Raster {
	r := &Raster{clientW: w, clientH: h}
	r.dc = newContext(w, h)
	return r
}

func newContext(w, h int) *gg.Context {
	dc := gg.NewContext(w, h)
	dc.SetFontFace(basicfont.Face7x13)
	return dc
}

// SetClientSize changes the size the next frame resizes to, the way a
// layout change would.
func (r *Raster) SetClientSize(w, h int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clientW, r.clientH = w, h
}

func (r *Raster) BeginFrame() { r.mu.Lock() }

func (r *Raster) EndFrame() {
	r.frameCount++
	r.mu.Unlock()
}

// Frames returns how many frames were drawn.
func (r *Raster) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frameCount
}

func (r *Raster) ClientSize() (float64, float64) {
	return float64(r.clientW), float64(r.clientH)
}

// Resize reallocates the buffer when the size changed. Like a canvas
// element, a resized buffer starts out cleared.
func (r *Raster) Resize(w, h float64) {
	iw, ih := int(math.Round(w)), int(math.Round(h))
	if iw == r.dc.Width() && ih == r.dc.Height() {
		return
	}
	if iw < 1 {
		iw = 1
	}
	if ih < 1 {
		ih = 1
	}
	r.dc = newContext(iw, ih)
}

// FillRect accepts negative sizes and fills towards the origin, as a 2D
// canvas does.
func (r *Raster) FillRect(x, y, w, h float64, p Paint) {
	x, y, w, h = Normalize(x, y, w, h)
	if w == 0 || h == 0 {
		return
	}
	r.dc.DrawRectangle(x, y, w, h)
	r.dc.SetFillStyle(p)
	r.dc.Fill()
}

func (r *Raster) StrokeLine(x0, y0, x1, y1, width float64, p Paint) {
	r.dc.SetLineWidth(width)
	r.dc.SetStrokeStyle(p)
	r.dc.DrawLine(x0, y0, x1, y1)
	r.dc.Stroke()
}

func (r *Raster) StrokePath(pts []Point, width float64, p Paint) {
	if len(pts) == 0 {
		return
	}
	r.dc.SetLineWidth(width)
	r.dc.SetStrokeStyle(p)
	r.dc.MoveTo(pts[0].X, pts[0].Y)
	for _, pt := range pts[1:] {
		r.dc.LineTo(pt.X, pt.Y)
	}
	r.dc.Stroke()
}

func (r *Raster) FillText(text string, x, y float64, p Paint) {
	r.dc.SetColor(p.ColorAt(int(x), int(y)))
	r.dc.DrawString(text, x, y)
}

// Image returns a copy of the current buffer.
func (r *Raster) Image() image.Image {
	r.mu.Lock()
	defer r.mu.Unlock()
	src := r.dc.Image()
	dst := image.NewRGBA(src.Bounds())
	draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
	return dst
}

// EncodePNG writes the current buffer as PNG.
func (r *Raster) EncodePNG(w io.Writer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dc.EncodePNG(w)
}

// SavePNG writes the current buffer to path.
func (r *Raster) SavePNG(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := r.EncodePNG(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
