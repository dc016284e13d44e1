// Package session owns one capture session at a time: the input stream, the
// analysis node fed by it, and the frame loop that reads the node. A session
// is either Idle or Running; Stop releases everything Start acquired.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/petems/spectral-canvas/internal/analysis"
	"github.com/petems/spectral-canvas/internal/audio"
	"github.com/petems/spectral-canvas/internal/devices"
	"github.com/petems/spectral-canvas/internal/frame"
	"github.com/petems/spectral-canvas/internal/notify"
)

// Notice texts shown to the user.
const (
	MsgNoDevice    = "Please select an audio input device."
	MsgStarted     = "Audio analysis started"
	MsgStartFailed = "Failed to start audio analyzer. Please check your permissions."
	MsgStopped     = "Audio analysis stopped"
)

var (
	ErrNoDevice       = errors.New("no audio input device selected")
	ErrAlreadyRunning = errors.New("analysis already running")
)

type State int

const (
	Idle State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "idle"
}

// DrawFunc receives the magnitude snapshot for one frame. It runs with the
// session locked and must not call back into the session.
type DrawFunc func(snapshot []uint8)

// Opener opens capture streams.
type Opener interface {
	OpenStream(ctx context.Context, deviceID string, c audio.Constraints) (audio.Stream, error)
}

// DeviceLookup resolves enumerated devices.
type DeviceLookup interface {
	Lookup(id string) (devices.Device, bool)
}

type Config struct {
	Backend  Opener
	Context  *audio.Context
	Devices  DeviceLookup
	Frames   frame.Scheduler
	Analyser analysis.Options
	Draw     DrawFunc
	Notifier notify.Notifier
	Logger   zerolog.Logger
}

type Session struct {
	backend  Opener
	audioCtx *audio.Context
	devices  DeviceLookup
	frames   frame.Scheduler
	opts     analysis.Options
	draw     DrawFunc
	notify   notify.Notifier
	log      zerolog.Logger

	mu       sync.Mutex
	state    State
	deviceID string
	stream   audio.Stream
	source   *audio.Source
	analyser *analysis.Analyser
	pending  frame.Handle
	snapshot []uint8
}

func New(cfg Config) *Session {
	return &Session{
		backend:  cfg.Backend,
		audioCtx: cfg.Context,
		devices:  cfg.Devices,
		frames:   cfg.Frames,
		opts:     cfg.Analyser,
		draw:     cfg.Draw,
		notify:   cfg.Notifier,
		log:      cfg.Logger,
	}
}

// Start opens deviceID, builds the analysis node and starts the frame loop.
func (s *Session) Start(ctx context.Context, deviceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Running {
		return ErrAlreadyRunning
	}

	if deviceID == "" {
		s.notify.Error(MsgNoDevice)
		return ErrNoDevice
	}
	if _, ok := s.devices.Lookup(deviceID); !ok {
		s.notify.Error(MsgNoDevice)
		return fmt.Errorf("%w: %s", ErrNoDevice, deviceID)
	}

	if err := s.acquireLocked(ctx, deviceID); err != nil {
		s.log.Error().Err(err).Str("device", deviceID).Msg("Error starting analyzer")
		s.notify.Error(MsgStartFailed)
		return fmt.Errorf("start analyzer: %w", err)
	}

	s.state = Running
	s.deviceID = deviceID
	s.snapshot = make([]uint8, s.analyser.FrequencyBinCount())
	s.pending = s.frames.RequestFrame(s.frame)

	s.log.Info().
		Str("device", deviceID).
		Strs("tracks", audio.Labels(s.stream)).
		Float64("sample_rate", s.stream.SampleRate()).
		Int("fft_size", s.analyser.FFTSize()).
		Msg("Analysis started")
	s.notify.Success(MsgStarted)
	return nil
}

// acquireLocked builds the capture graph. On failure everything it acquired
// is released again.
func (s *Session) acquireLocked(ctx context.Context, deviceID string) (err error) {
	stream, err := s.backend.OpenStream(ctx, deviceID, audio.RawConstraints())
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			audio.StopAll(stream)
		}
	}()

	analyser, err := s.audioCtx.CreateAnalyser(s.opts)
	if err != nil {
		return err
	}

	source, err := s.audioCtx.CreateStreamSource(stream)
	if err != nil {
		return err
	}

	if err := s.audioCtx.Resume(); err != nil {
		return err
	}
	if err := source.Connect(analyser); err != nil {
		s.audioCtx.Suspend()
		return err
	}

	s.stream = stream
	s.source = source
	s.analyser = analyser
	return nil
}

// Stop releases the session. It is a no-op when idle.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Running {
		return nil
	}

	err := s.releaseLocked()
	s.log.Info().Str("device", s.deviceID).Msg("Analysis stopped")
	s.notify.Info(MsgStopped)
	return err
}

// Close is the teardown hook for the hosting view.
func (s *Session) Close() error {
	return s.Stop()
}

func (s *Session) releaseLocked() error {
	var errs []error

	if s.pending != 0 {
		s.frames.CancelFrame(s.pending)
		s.pending = 0
	}

	if s.source != nil {
		s.source.Disconnect()
		s.source = nil
	}

	if s.stream != nil {
		if err := audio.StopAll(s.stream); err != nil {
			errs = append(errs, fmt.Errorf("stop tracks: %w", err))
		}
		s.stream = nil
	}

	if err := s.audioCtx.Suspend(); err != nil && !errors.Is(err, audio.ErrContextClosed) {
		errs = append(errs, fmt.Errorf("suspend context: %w", err))
	}

	s.analyser = nil
	s.state = Idle
	return errors.Join(errs...)
}

func (s *Session) frame() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Running || s.analyser == nil {
		return
	}

	s.analyser.ByteFrequencyData(s.snapshot)
	if s.draw != nil {
		s.draw(s.snapshot)
	}
	s.pending = s.frames.RequestFrame(s.frame)
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Running() bool {
	return s.State() == Running
}

// DeviceID returns the device of the running session, or "" when idle.
func (s *Session) DeviceID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Running {
		return ""
	}
	return s.deviceID
}
