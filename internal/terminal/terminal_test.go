package terminal

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petems/spectral-canvas/internal/devices"
	"github.com/petems/spectral-canvas/internal/notify"
	"github.com/petems/spectral-canvas/internal/render"
)

func newScreen(t *testing.T, w, h int) tcell.SimulationScreen {
	t.Helper()
	s := tcell.NewSimulationScreen("UTF-8")
	require.NoError(t, s.Init())
	s.SetSize(w, h)
	t.Cleanup(s.Fini)
	return s
}

func filled(n int, v uint8) []uint8 {
	out := make([]uint8, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func colors(s tcell.Screen, x, y int) (rune, tcell.Color, tcell.Color) {
	r, _, style, _ := s.GetContent(x, y)
	fg, bg, _ := style.Decompose()
	return r, fg, bg
}

func rowText(s tcell.Screen, y int) string {
	w, _ := s.Size()
	var b strings.Builder
	for x := 0; x < w; x++ {
		r, _, _, _ := s.GetContent(x, y)
		b.WriteRune(r)
	}
	return b.String()
}

func TestCanvasClientSizeFollowsRegion(t *testing.T) {
	c := NewCanvas(newScreen(t, 80, 24))
	c.SetRegion(0, 3, 40, 10)

	w, h := c.ClientSize()
	assert.Equal(t, 40*CellWidth, w)
	assert.Equal(t, 10*CellHeight, h)
}

func TestCanvasDrawsGridAndLabels(t *testing.T) {
	s := newScreen(t, 40, 10)
	c := NewCanvas(s)
	c.SetRegion(0, 0, 40, 10)

	render.New().Draw(c, nil, render.Line)
	assert.Equal(t, 1, c.Frames())

	// Pixel row 8 holds the 60dB line; row 9 is background.
	r, fg, bg := colors(s, 20, 4)
	assert.Equal(t, halfBlock, r)
	assert.Equal(t, tcell.NewHexColor(0x333333), fg)
	assert.Equal(t, tcell.NewHexColor(0x121212), bg)

	assert.True(t, strings.HasPrefix(rowText(s, 7), "20dB"), rowText(s, 7))
	assert.True(t, strings.HasPrefix(rowText(s, 9), "0dB"), rowText(s, 9))
	_, fg, _ = colors(s, 0, 7)
	assert.Equal(t, tcell.NewHexColor(0x666666), fg)
}

func TestCanvasDrawsFullScaleBars(t *testing.T) {
	s := newScreen(t, 40, 10)
	c := NewCanvas(s)
	c.SetRegion(0, 0, 40, 10)

	render.New().Draw(c, filled(1024, 255), render.Bars)

	for _, col := range []int{5, 20, 39} {
		r, fg, bg := colors(s, col, 8)
		require.Equal(t, halfBlock, r)
		for _, color := range []tcell.Color{fg, bg} {
			red, green, blue := color.RGB()
			assert.Zero(t, red)
			assert.Greater(t, green, int32(0x60))
			assert.Greater(t, blue, int32(0xc0))
		}
	}
}

func TestCanvasOffsetRegion(t *testing.T) {
	s := newScreen(t, 30, 12)
	c := NewCanvas(s)
	c.SetRegion(0, 3, 30, 8)

	render.New().Draw(c, nil, render.Bars)

	r, _, _ := colors(s, 10, 2)
	assert.Equal(t, ' ', r)
	r, _, _ = colors(s, 10, 3)
	assert.Equal(t, halfBlock, r)
	r, _, _ = colors(s, 10, 11)
	assert.Equal(t, ' ', r)
}

type fakeController struct {
	mu       sync.Mutex
	devices  []devices.Device
	selected int
	mode     render.Mode
	running  bool
	toggles  int
}

func (f *fakeController) Devices() []devices.Device {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]devices.Device(nil), f.devices...)
}

func (f *fakeController) Selected() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.devices) == 0 {
		return ""
	}
	return f.devices[f.selected].ID
}

func (f *fakeController) StepDevice(delta int) (devices.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running || len(f.devices) == 0 {
		return devices.Device{}, assert.AnError
	}
	n := len(f.devices)
	f.selected = ((f.selected+delta)%n + n) % n
	return f.devices[f.selected], nil
}

func (f *fakeController) Mode() render.Mode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mode
}

func (f *fakeController) SetMode(m render.Mode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mode = m
	return nil
}

func (f *fakeController) Toggle(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.devices) == 0 {
		return assert.AnError
	}
	f.running = !f.running
	f.toggles++
	return nil
}

func (f *fakeController) IsAnalyzing() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *fakeController) Prompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case f.running:
		return ""
	case len(f.devices) == 0:
		return "Please select an audio input device"
	default:
		return "Press Space to start analysis"
	}
}

func (f *fakeController) state() (int, render.Mode, bool, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.selected, f.mode, f.running, f.toggles
}

func runView(t *testing.T, s tcell.SimulationScreen, ctl Controller) (*View, context.CancelFunc, <-chan error) {
	t.Helper()
	v := NewView(s, render.New(), zerolog.Nop())
	v.SetController(ctl)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- v.Run(ctx) }()
	t.Cleanup(cancel)
	return v, cancel, done
}

func screenContains(s tcell.Screen, text string) func() bool {
	return func() bool {
		_, h := s.Size()
		for y := 0; y < h; y++ {
			if strings.Contains(rowText(s, y), text) {
				return true
			}
		}
		return false
	}
}

func TestViewKeys(t *testing.T) {
	s := newScreen(t, 100, 20)
	ctl := &fakeController{
		devices: []devices.Device{{ID: "a", Label: "Built-in"}, {ID: "b", Label: "USB Mic"}},
		mode:    render.Bars,
	}
	_, _, done := runView(t, s, ctl)

	require.Eventually(t, screenContains(s, "Press Space to start analysis"), time.Second, 5*time.Millisecond)
	assert.True(t, screenContains(s, "◀ Built-in ▶")())

	s.InjectKey(tcell.KeyRight, 0, tcell.ModNone)
	require.Eventually(t, screenContains(s, "◀ USB Mic ▶"), time.Second, 5*time.Millisecond)

	s.InjectKey(tcell.KeyRune, 'l', tcell.ModNone)
	require.Eventually(t, func() bool { _, m, _, _ := ctl.state(); return m == render.Line }, time.Second, 5*time.Millisecond)

	s.InjectKey(tcell.KeyRune, ' ', tcell.ModNone)
	require.Eventually(t, screenContains(s, "[ Stop Analysis ]"), time.Second, 5*time.Millisecond)

	// Device changes are refused while running.
	s.InjectKey(tcell.KeyLeft, 0, tcell.ModNone)
	s.InjectKey(tcell.KeyEnter, 0, tcell.ModNone)
	require.Eventually(t, screenContains(s, "[ Start Analysis ]"), time.Second, 5*time.Millisecond)
	selected, _, running, toggles := ctl.state()
	assert.Equal(t, 1, selected)
	assert.False(t, running)
	assert.Equal(t, 2, toggles)

	s.InjectKey(tcell.KeyRune, 'q', tcell.ModNone)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("view did not quit")
	}
}

func TestViewPromptsForDeviceWhenNoneAvailable(t *testing.T) {
	s := newScreen(t, 100, 20)
	ctl := &fakeController{mode: render.Bars}
	_, _, done := runView(t, s, ctl)

	require.Eventually(t, screenContains(s, "Please select an audio input device"), time.Second, 5*time.Millisecond)
	assert.True(t, screenContains(s, "No devices")())

	s.InjectKey(tcell.KeyEscape, 0, tcell.ModNone)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("view did not quit")
	}
	_, _, running, _ := ctl.state()
	assert.False(t, running)
}

func TestViewStopsOnCancel(t *testing.T) {
	s := newScreen(t, 80, 20)
	_, cancel, done := runView(t, s, &fakeController{mode: render.Bars})

	require.Eventually(t, screenContains(s, Title), time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("view did not stop")
	}
}

func TestViewToastExpires(t *testing.T) {
	s := newScreen(t, 80, 20)
	v := NewView(s, render.New(), zerolog.Nop())
	now := time.Unix(1000, 0)
	v.now = func() time.Time { return now }

	v.Error("Could not access audio devices. Please check your permissions.")
	n, ok := v.Toast()
	require.True(t, ok)
	assert.Equal(t, notify.LevelError, n.Level)

	v.Success("Audio analysis started")
	n, _ = v.Toast()
	assert.Equal(t, notify.Notice{Level: notify.LevelSuccess, Message: "Audio analysis started"}, n)

	now = now.Add(toastTTL)
	_, ok = v.Toast()
	assert.False(t, ok)
}
