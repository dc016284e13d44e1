package terminal

import (
	"context"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rs/zerolog"

	"github.com/petems/spectral-canvas/internal/devices"
	"github.com/petems/spectral-canvas/internal/notify"
	"github.com/petems/spectral-canvas/internal/render"
)

const (
	Title    = "Spectral Sound Canvas"
	Subtitle = "Real-time audio frequency visualization"
	Help     = "←/→ device   b bars   l line   space start/stop   q quit"

	toastTTL = 4 * time.Second
)

// Rows above and below the canvas.
const (
	headerRows = 3
	footerRows = 1
)

// Controller is what the view drives. *app.App implements it.
type Controller interface {
	Devices() []devices.Device
	Selected() string
	StepDevice(delta int) (devices.Device, error)
	Mode() render.Mode
	SetMode(m render.Mode) error
	Toggle(ctx context.Context) error
	IsAnalyzing() bool
	Prompt() string
}

var (
	styleTitle   = tcell.StyleDefault.Bold(true)
	styleDim     = tcell.StyleDefault.Foreground(tcell.NewHexColor(0x666666))
	styleActive  = tcell.StyleDefault.Reverse(true)
	styleSuccess = tcell.StyleDefault.Foreground(tcell.ColorGreen)
	styleInfo    = tcell.StyleDefault.Foreground(tcell.ColorTeal)
	styleError   = tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true)
	styleOverlay = tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(tcell.NewHexColor(0x121212))
)

// View owns the screen: header with the device selector, mode and start
// toggle, a status line for notices, the canvas and a key help line.
type View struct {
	screen   tcell.Screen
	canvas   *Canvas
	renderer *render.Renderer
	ctl      Controller
	log      zerolog.Logger
	now      func() time.Time

	mu      sync.Mutex
	toast   notify.Notice
	toastAt time.Time
}

func NewView(screen tcell.Screen, renderer *render.Renderer, log zerolog.Logger) *View {
	return &View{
		screen:   screen,
		canvas:   NewCanvas(screen),
		renderer: renderer,
		log:      log,
		now:      time.Now,
	}
}

// SetController sets the controller (for circular dependency resolution:
// the controller needs the view as its canvas and notifier).
func (v *View) SetController(ctl Controller) {
	v.ctl = ctl
}

// Canvas is the surface the frame loop draws on.
func (v *View) Canvas() *Canvas { return v.canvas }

func (v *View) Success(msg string) { v.show(notify.LevelSuccess, msg) }
func (v *View) Info(msg string)    { v.show(notify.LevelInfo, msg) }
func (v *View) Error(msg string)   { v.show(notify.LevelError, msg) }

// show records a notice and asks the event loop to redraw. It may be called
// from any goroutine, including with the session locked.
func (v *View) show(level notify.Level, msg string) {
	v.mu.Lock()
	v.toast = notify.Notice{Level: level, Message: msg}
	v.toastAt = v.now()
	v.mu.Unlock()

	v.wake()
	time.AfterFunc(toastTTL, v.wake)
}

func (v *View) wake() {
	_ = v.screen.PostEvent(tcell.NewEventInterrupt(nil))
}

// Toast returns the notice currently on the status line.
func (v *View) Toast() (notify.Notice, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.toast.Message == "" || v.now().Sub(v.toastAt) >= toastTTL {
		return notify.Notice{}, false
	}
	return v.toast, true
}

// Run handles input until ctx is cancelled or the user quits.
func (v *View) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, v.wake)
	defer stop()

	v.layout()
	v.draw()

	for {
		if ctx.Err() != nil {
			return nil
		}
		ev := v.screen.PollEvent()
		if ev == nil {
			return nil
		}

		switch ev := ev.(type) {
		case *tcell.EventResize:
			v.screen.Sync()
			v.layout()
		case *tcell.EventKey:
			if v.handleKey(ctx, ev) {
				return nil
			}
		}
		v.draw()
	}
}

// handleKey applies one key press and reports whether the user quit.
func (v *View) handleKey(ctx context.Context, ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return true
	case tcell.KeyLeft, tcell.KeyUp:
		v.step(-1)
	case tcell.KeyRight, tcell.KeyDown:
		v.step(1)
	case tcell.KeyEnter:
		v.toggle(ctx)
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'q', 'Q':
			return true
		case ' ':
			v.toggle(ctx)
		case 'b', 'B':
			v.setMode(render.Bars)
		case 'l', 'L':
			v.setMode(render.Line)
		}
	}
	return false
}

func (v *View) step(delta int) {
	if _, err := v.ctl.StepDevice(delta); err != nil {
		v.log.Debug().Err(err).Msg("Device selection ignored")
	}
}

func (v *View) toggle(ctx context.Context) {
	if err := v.ctl.Toggle(ctx); err != nil {
		v.log.Debug().Err(err).Msg("Toggle failed")
	}
}

func (v *View) setMode(m render.Mode) {
	if err := v.ctl.SetMode(m); err != nil {
		v.log.Error().Err(err).Str("mode", m.String()).Msg("Failed to save visualization mode")
	}
}

// layout sizes the canvas to the screen, leaving room for header and footer.
func (v *View) layout() {
	w, h := v.screen.Size()
	v.canvas.SetRegion(0, headerRows, w, h-headerRows-footerRows)
}

// draw repaints everything around the canvas. While idle it also paints an
// empty grid with the prompt over it; while running the frame loop owns the
// canvas.
func (v *View) draw() {
	w, h := v.screen.Size()
	v.clearRow(0, w)
	v.clearRow(1, w)
	v.clearRow(2, w)
	v.clearRow(h-1, w)

	x := putString(v.screen, 1, 0, Title, styleTitle)
	putString(v.screen, x+2, 0, Subtitle, styleDim)

	v.drawControls()
	v.drawToast()
	putString(v.screen, 1, h-1, Help, styleDim)

	if !v.ctl.IsAnalyzing() {
		v.renderer.Draw(v.canvas, nil, v.ctl.Mode())
		v.drawOverlay(v.ctl.Prompt())
	}
	v.screen.Show()
}

func (v *View) drawControls() {
	running := v.ctl.IsAnalyzing()

	x := putString(v.screen, 1, 1, "Audio Input: ", tcell.StyleDefault)
	label := "No devices"
	for _, d := range v.ctl.Devices() {
		if d.ID == v.ctl.Selected() {
			label = d.Label
		}
	}
	deviceStyle := tcell.StyleDefault
	if running {
		deviceStyle = styleDim
	}
	x = putString(v.screen, x, 1, "◀ "+label+" ▶", deviceStyle)

	x = putString(v.screen, x+3, 1, "Visualization: ", tcell.StyleDefault)
	for _, m := range []render.Mode{render.Bars, render.Line} {
		style := tcell.StyleDefault
		if m == v.ctl.Mode() {
			style = styleActive
		}
		x = putString(v.screen, x, 1, " "+m.Title()+" ", style)
	}

	button := "[ Start Analysis ]"
	if running {
		button = "[ Stop Analysis ]"
	}
	putString(v.screen, x+3, 1, button, styleTitle)
}

func (v *View) drawToast() {
	n, ok := v.Toast()
	if !ok {
		return
	}
	style := styleInfo
	switch n.Level {
	case notify.LevelSuccess:
		style = styleSuccess
	case notify.LevelError:
		style = styleError
	}
	putString(v.screen, 1, 2, n.Message, style)
}

// drawOverlay centers msg on the canvas.
func (v *View) drawOverlay(msg string) {
	if msg == "" {
		return
	}
	cx, cy, cols, rows := v.canvas.Region()
	if rows <= 0 {
		return
	}
	text := " " + msg + " "
	x := cx + max((cols-len([]rune(text)))/2, 0)
	y := cy + rows/2
	putString(v.screen, x, y, text, styleOverlay)
}

func (v *View) clearRow(y, w int) {
	for x := 0; x < w; x++ {
		v.screen.SetContent(x, y, ' ', nil, tcell.StyleDefault)
	}
}

// putString writes s from column x and returns the column after it.
func putString(s tcell.Screen, x, y int, str string, style tcell.Style) int {
	for _, r := range str {
		s.SetContent(x, y, r, nil, style)
		x++
	}
	return x
}
