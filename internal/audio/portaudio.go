package audio

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"

	"github.com/petems/spectral-canvas/internal/config"
	"github.com/petems/spectral-canvas/internal/permissions"
)

// deviceNamespace scopes the name-based UUIDs handed out as device IDs, so an
// ID stays the same across runs as long as the host API and name do.
var deviceNamespace = uuid.MustParse("6f1d3f0e-8f5b-4a53-9d9b-5b8f3c2a7e41")

type portAudioBackend struct {
	cfg config.AudioConfig
	log zerolog.Logger
}

// New creates a new PortAudio-based backend
func New(cfg config.AudioConfig, log zerolog.Logger) (Backend, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return &portAudioBackend{cfg: cfg, log: log}, nil
}

func (p *portAudioBackend) RequestPermission(ctx context.Context) error {
	return permissions.EnsureMicrophone()
}

func (p *portAudioBackend) ListDevices() ([]Device, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	defaultIn, _ := portaudio.DefaultInputDevice()
	defaultOut, _ := portaudio.DefaultOutputDevice()

	result := make([]Device, 0, len(devices))
	for _, d := range devices {
		if d.MaxInputChannels > 0 {
			result = append(result, Device{
				ID:      deviceID(KindAudioInput, d),
				Kind:    KindAudioInput,
				Label:   d.Name,
				Default: d == defaultIn,
			})
		}
		if d.MaxOutputChannels > 0 {
			result = append(result, Device{
				ID:      deviceID(KindAudioOutput, d),
				Kind:    KindAudioOutput,
				Label:   d.Name,
				Default: d == defaultOut,
			})
		}
	}

	return result, nil
}

func deviceID(kind Kind, d *portaudio.DeviceInfo) string {
	host := ""
	if d.HostApi != nil {
		host = d.HostApi.Name
	}
	return uuid.NewSHA1(deviceNamespace, []byte(string(kind)+"/"+host+"/"+d.Name)).String()
}

func (p *portAudioBackend) findInput(id string) (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}
	for _, d := range devices {
		if d.MaxInputChannels > 0 && deviceID(KindAudioInput, d) == id {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
}

func (p *portAudioBackend) OpenStream(ctx context.Context, id string, c Constraints) (Stream, error) {
	// PortAudio hands back the raw device signal; it has no processing to enable.
	if c.EchoCancellation || c.NoiseSuppression || c.AutoGainControl {
		return nil, fmt.Errorf("%w: %+v", ErrUnsupportedConstraint, c)
	}

	device, err := p.findInput(id)
	if err != nil {
		return nil, err
	}

	sampleRate := p.cfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = device.DefaultSampleRate
	}
	frames := p.cfg.FramesPerBuffer
	if frames <= 0 {
		frames = 512
	}

	// Open stream: mono, float32
	buffer := make([]float32, frames)
	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: 1,
			Latency:  device.DefaultLowInputLatency,
		},
		SampleRate:      sampleRate,
		FramesPerBuffer: len(buffer),
	}, buffer)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("failed to start audio stream: %w", err)
	}

	p.log.Debug().
		Str("device", device.Name).
		Float64("sample_rate", sampleRate).
		Int("frames_per_buffer", frames).
		Msg("Opened capture stream")

	s := &paStream{stream: stream, buffer: buffer, sampleRate: sampleRate}
	s.track = &paTrack{label: device.Name, s: s}
	return s, nil
}

func (p *portAudioBackend) Close() error {
	return portaudio.Terminate()
}

type paStream struct {
	mu         sync.Mutex
	stream     *portaudio.Stream
	buffer     []float32
	sampleRate float64
	stopped    bool
	track      *paTrack
}

func (s *paStream) Tracks() []Track { return []Track{s.track} }

func (s *paStream) SampleRate() float64 { return s.sampleRate }

func (s *paStream) Read(ctx context.Context) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// The lock is held across the blocking read so Stop never closes the
	// stream underneath it; a read lasts one buffer at most.
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil, ErrStreamStopped
	}

	if err := s.stream.Read(); err != nil && err != portaudio.InputOverflowed {
		return nil, fmt.Errorf("failed to read audio stream: %w", err)
	}

	// Copy buffer and send
	samples := make([]float32, len(s.buffer))
	copy(samples, s.buffer)
	return samples, nil
}

func (s *paStream) stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true

	err := s.stream.Stop()
	if cerr := s.stream.Close(); err == nil {
		err = cerr
	}
	return err
}

type paTrack struct {
	label string
	s     *paStream
}

func (t *paTrack) Label() string { return t.label }

func (t *paTrack) Stop() error { return t.s.stop() }

func (t *paTrack) Live() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return !t.s.stopped
}
