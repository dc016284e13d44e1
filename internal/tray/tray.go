package tray

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/getlantern/systray"
	"github.com/rs/zerolog"

	"github.com/petems/spectral-canvas/internal/app"
	"github.com/petems/spectral-canvas/internal/render"
)

type status string

const (
	statusIdle    status = "idle"
	statusRunning status = "running"
	statusError   status = "error"
)

type UI struct {
	app     *app.App
	version string
	commit  string
	log     zerolog.Logger
	quit    func()
	ctx     context.Context
	ready   atomic.Bool

	// Menu items
	mStartStop *systray.MenuItem
	mBars      *systray.MenuItem
	mLine      *systray.MenuItem
	mDevices   *systray.MenuItem
	deviceItem map[string]*systray.MenuItem
}

// Status update methods for the app to call
func (u *UI) SetIdle() {
	u.updateStatus(statusIdle)
}

func (u *UI) SetRunning() {
	u.updateStatus(statusRunning)
}

func (u *UI) SetError() {
	u.updateStatus(statusError)
}

// SetDevice moves the microphone checkmark to id, whichever surface changed
// the selection.
func (u *UI) SetDevice(id string) {
	if !u.ready.Load() {
		return
	}
	for devID, item := range u.deviceItem {
		if devID == id {
			item.Check()
		} else {
			item.Uncheck()
		}
	}
}

// New builds the tray. quit is called when the user picks Quit.
func New(application *app.App, version, commit string, quit func(), log zerolog.Logger) *UI {
	return &UI{
		app:     application,
		version: version,
		commit:  commit,
		log:     log,
		quit:    quit,
	}
}

// Run shows the tray icon and blocks until ctx is cancelled or the user
// quits. It must be called from the main goroutine.
func (u *UI) Run(ctx context.Context) error {
	u.ctx = ctx
	go func() {
		<-ctx.Done()
		systray.Quit()
	}()
	systray.Run(u.onReady, u.onExit)
	return nil
}

func (u *UI) onReady() {
	systray.SetTooltip("Spectral Sound Canvas " + u.version)

	u.mStartStop = systray.AddMenuItem(startStopTitle(false), "Start or stop the spectrum analyzer")
	systray.AddSeparator()

	mMode := systray.AddMenuItem("Visualization", "Bars or line")
	u.mBars = mMode.AddSubMenuItemCheckbox(render.Bars.Title(), "Frequency bars", u.app.Mode() == render.Bars)
	u.mLine = mMode.AddSubMenuItemCheckbox(render.Line.Title(), "Frequency line", u.app.Mode() == render.Line)

	u.mDevices = systray.AddMenuItem("Microphone", "Select audio device")
	u.buildDeviceMenu()

	systray.AddSeparator()
	mAbout := systray.AddMenuItem(fmt.Sprintf("Spectral Sound Canvas %s (%s)", u.version, u.commit), "Version")
	mAbout.Disable()
	mQuit := systray.AddMenuItem("Quit", "Exit application")

	u.ready.Store(true)
	u.updateStatus(statusIdle)

	// Event loop
	go u.handleEvents(mQuit)
}

func (u *UI) handleEvents(mQuit *systray.MenuItem) {
	for {
		select {
		case <-u.mStartStop.ClickedCh:
			u.toggle()
		case <-u.mBars.ClickedCh:
			u.setMode(render.Bars)
		case <-u.mLine.ClickedCh:
			u.setMode(render.Line)
		case <-mQuit.ClickedCh:
			u.log.Info().Msg("Quit from tray")
			if u.quit != nil {
				u.quit()
			}
			systray.Quit()
			return
		}
	}
}

func (u *UI) toggle() {
	ctx := u.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if err := u.app.Toggle(ctx); err != nil {
		u.log.Error().Err(err).Msg("Toggle from tray failed")
	}
}

func (u *UI) setMode(m render.Mode) {
	if err := u.app.SetMode(m); err != nil {
		u.log.Error().Err(err).Msg("Failed to save visualization mode")
	}
	if m == render.Bars {
		u.mBars.Check()
		u.mLine.Uncheck()
	} else {
		u.mLine.Check()
		u.mBars.Uncheck()
	}
}

func (u *UI) buildDeviceMenu() {
	devices := u.app.Devices()
	if len(devices) == 0 {
		item := u.mDevices.AddSubMenuItem("No input devices", "")
		item.Disable()
		return
	}

	u.deviceItem = make(map[string]*systray.MenuItem)
	selected := u.app.Selected()

	for _, dev := range devices {
		item := u.mDevices.AddSubMenuItemCheckbox(dev.Label, "", dev.ID == selected)
		u.deviceItem[dev.ID] = item

		// Checkmarks follow through SetDevice.
		go func(deviceID, deviceName string, menuItem *systray.MenuItem) {
			for range menuItem.ClickedCh {
				if err := u.app.SelectDevice(deviceID); err != nil {
					u.log.Warn().Err(err).Str("device", deviceName).Msg("Device change refused")
				}
			}
		}(dev.ID, dev.Label, item)
	}
}

func (u *UI) onExit() {
	u.log.Debug().Msg("Tray exited")
}

// updateStatus sets the tray title with chart emoji and status indicator
func (u *UI) updateStatus(s status) {
	if !u.ready.Load() {
		return
	}
	running := s == statusRunning
	systray.SetTitle(fmt.Sprintf("📊 %s", emojiForStatus(s)))
	if u.mStartStop != nil {
		u.mStartStop.SetTitle(startStopTitle(running))
	}
	// The device can only change while idle.
	for _, item := range u.deviceItem {
		if running {
			item.Disable()
		} else {
			item.Enable()
		}
	}
}

// emojiForStatus returns the appropriate status emoji
func emojiForStatus(s status) string {
	switch s {
	case statusRunning:
		return "🔴" // Red - analysing
	case statusError:
		return "⚪️" // White - error
	default:
		return "🟢" // Green - ready/idle
	}
}

func startStopTitle(running bool) string {
	if running {
		return "Stop Analysis"
	}
	return "Start Analysis"
}
