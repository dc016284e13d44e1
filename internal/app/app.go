// Package app is the spectrum visualizer: it ties device selection, the
// capture session and the renderer together behind one start/stop toggle.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/petems/spectral-canvas/internal/analysis"
	"github.com/petems/spectral-canvas/internal/audio"
	"github.com/petems/spectral-canvas/internal/config"
	"github.com/petems/spectral-canvas/internal/devices"
	"github.com/petems/spectral-canvas/internal/frame"
	"github.com/petems/spectral-canvas/internal/notify"
	"github.com/petems/spectral-canvas/internal/render"
	"github.com/petems/spectral-canvas/internal/session"
)

// Overlay prompts shown over the canvas while idle.
const (
	PromptStart    = "Press Space to start analysis"
	PromptNoDevice = "Please select an audio input device"
)

var (
	ErrRunning       = errors.New("cannot change device while analysis is running")
	ErrUnknownDevice = errors.New("unknown audio input device")
)

// StatusUpdater is an interface for updating status (e.g., tray icon)
type StatusUpdater interface {
	SetIdle()
	SetRunning()
	SetError()
	SetDevice(id string)
}

type Config struct {
	Backend       audio.Backend
	Context       *audio.Context
	Frames        frame.Scheduler
	Canvas        render.Canvas
	Renderer      *render.Renderer
	Notifier      notify.Notifier
	Config        *config.Config
	Logger        zerolog.Logger
	StatusUpdater StatusUpdater // Optional - can be nil
}

type App struct {
	devices  *devices.Enumerator
	session  *session.Session
	renderer *render.Renderer
	canvas   render.Canvas
	cfg      *config.Config
	log      zerolog.Logger

	// ctl serializes start, stop and device changes so a running session
	// always matches the selection.
	ctl sync.Mutex

	mu     sync.Mutex
	mode   render.Mode
	status StatusUpdater
}

func New(cfg Config) *App {
	mode, err := render.ParseMode(cfg.Config.Render.Mode)
	if err != nil {
		cfg.Logger.Warn().Err(err).Msg("Falling back to bars")
		mode = render.Bars
	}

	renderer := cfg.Renderer
	if renderer == nil {
		renderer = render.New()
	}

	a := &App{
		devices:  devices.New(cfg.Backend, cfg.Notifier, cfg.Logger),
		renderer: renderer,
		canvas:   cfg.Canvas,
		cfg:      cfg.Config,
		log:      cfg.Logger,
		mode:     mode,
		status:   cfg.StatusUpdater,
	}

	a.session = session.New(session.Config{
		Backend:  cfg.Backend,
		Context:  cfg.Context,
		Devices:  a.devices,
		Frames:   cfg.Frames,
		Analyser: analyserOptions(cfg.Config.Analyser),
		Draw:     a.draw,
		Notifier: cfg.Notifier,
		Logger:   cfg.Logger,
	})
	return a
}

func analyserOptions(c config.AnalyserConfig) analysis.Options {
	return analysis.Options{
		FFTSize:     c.FFTSize,
		Smoothing:   c.Smoothing,
		MinDecibels: c.MinDecibels,
		MaxDecibels: c.MaxDecibels,
	}
}

// SetStatusUpdater sets the status surface (for circular dependency
// resolution with the tray).
func (a *App) SetStatusUpdater(s StatusUpdater) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.status = s
}

// Load enumerates input devices, preferring the configured one. A failure
// has already been shown to the user; the app stays usable with start
// disabled.
func (a *App) Load(ctx context.Context) error {
	a.ctl.Lock()
	defer a.ctl.Unlock()
	if err := a.devices.Load(ctx, a.cfg.Audio.DeviceID); err != nil {
		a.setStatus(StatusUpdater.SetError)
		return fmt.Errorf("load devices: %w", err)
	}
	a.log.Debug().Str("selected", a.devices.Selected()).Msg("Audio inputs loaded")
	a.setStatus(StatusUpdater.SetIdle)
	return nil
}

// Start begins analysis on the selected device.
func (a *App) Start(ctx context.Context) error {
	a.ctl.Lock()
	defer a.ctl.Unlock()
	return a.startLocked(ctx)
}

func (a *App) startLocked(ctx context.Context) error {
	if err := a.session.Start(ctx, a.devices.Selected()); err != nil {
		if !errors.Is(err, session.ErrAlreadyRunning) {
			a.setStatus(StatusUpdater.SetError)
		}
		return err
	}
	a.setStatus(StatusUpdater.SetRunning)
	return nil
}

// Stop ends analysis. It is a no-op when idle.
func (a *App) Stop() error {
	a.ctl.Lock()
	defer a.ctl.Unlock()
	return a.stopLocked()
}

func (a *App) stopLocked() error {
	err := a.session.Stop()
	a.setStatus(StatusUpdater.SetIdle)
	return err
}

// Toggle starts when idle and stops when running.
func (a *App) Toggle(ctx context.Context) error {
	a.ctl.Lock()
	defer a.ctl.Unlock()
	if a.session.Running() {
		return a.stopLocked()
	}
	return a.startLocked(ctx)
}

func (a *App) IsAnalyzing() bool {
	return a.session.Running()
}

// CanStart reports whether a device is selected, i.e. whether the start
// control is enabled.
func (a *App) CanStart() bool {
	return a.devices.Selected() != ""
}

// Prompt is the overlay text for the idle canvas, or "" while running.
func (a *App) Prompt() string {
	switch {
	case a.IsAnalyzing():
		return ""
	case a.CanStart():
		return PromptStart
	default:
		return PromptNoDevice
	}
}

func (a *App) Devices() []devices.Device {
	return a.devices.Devices()
}

func (a *App) Selected() string {
	return a.devices.Selected()
}

// SelectDevice changes the input device. It is refused while running.
func (a *App) SelectDevice(id string) error {
	a.ctl.Lock()
	defer a.ctl.Unlock()
	if a.IsAnalyzing() {
		return ErrRunning
	}
	if !a.devices.Select(id) {
		return fmt.Errorf("%w: %s", ErrUnknownDevice, id)
	}
	a.saveDevice(id)
	return nil
}

// StepDevice moves the selection through the device list. It is refused
// while running.
func (a *App) StepDevice(delta int) (devices.Device, error) {
	a.ctl.Lock()
	defer a.ctl.Unlock()
	if a.IsAnalyzing() {
		return devices.Device{}, ErrRunning
	}
	d, ok := a.devices.Step(delta)
	if !ok {
		return devices.Device{}, ErrUnknownDevice
	}
	a.saveDevice(d.ID)
	return d, nil
}

func (a *App) saveDevice(id string) {
	a.mu.Lock()
	a.cfg.Audio.DeviceID = id
	if err := a.cfg.Save(); err != nil {
		a.log.Error().Err(err).Msg("Failed to save config")
	}
	a.mu.Unlock()

	a.log.Info().Str("device", id).Msg("Changed audio device")
	a.setStatus(func(s StatusUpdater) { s.SetDevice(id) })
}

func (a *App) Mode() render.Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mode
}

// SetMode switches the plot. It takes effect on the next frame and is
// allowed while running.
func (a *App) SetMode(m render.Mode) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.mode == m {
		return nil
	}
	a.log.Info().Str("from", a.mode.String()).Str("to", m.String()).Msg("Changed visualization mode")
	a.mode = m
	a.cfg.Render.Mode = m.String()
	return a.cfg.Save()
}

// draw runs once per frame with the session locked.
func (a *App) draw(snapshot []uint8) {
	a.renderer.Draw(a.canvas, snapshot, a.Mode())
}

// Shutdown is the teardown hook: it stops a running session.
func (a *App) Shutdown(ctx context.Context) error {
	a.ctl.Lock()
	defer a.ctl.Unlock()
	if err := a.session.Close(); err != nil {
		a.log.Error().Err(err).Msg("Error releasing audio session")
		return err
	}
	a.setStatus(StatusUpdater.SetIdle)
	return nil
}

func (a *App) setStatus(fn func(StatusUpdater)) {
	a.mu.Lock()
	s := a.status
	a.mu.Unlock()
	if s != nil {
		fn(s)
	}
}
