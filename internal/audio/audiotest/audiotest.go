// Package audiotest provides an in-memory audio.Backend for tests.
package audiotest

import (
	"context"
	"sync"

	"github.com/petems/spectral-canvas/internal/audio"
)

// Backend is a scripted audio.Backend. Set the exported error fields to
// make the matching call fail.
type Backend struct {
	mu sync.Mutex

	Devices       []audio.Device
	PermissionErr error
	ListErr       error
	OpenErr       error
	SampleRate    float64

	PermissionCalls int
	ListCalls       int
	OpenCalls       int
	LastConstraints audio.Constraints
	Streams         []*Stream
	Closed          bool
}

func (b *Backend) RequestPermission(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.PermissionCalls++
	return b.PermissionErr
}

func (b *Backend) ListDevices() ([]audio.Device, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ListCalls++
	if b.ListErr != nil {
		return nil, b.ListErr
	}
	out := make([]audio.Device, len(b.Devices))
	copy(out, b.Devices)
	return out, nil
}

func (b *Backend) OpenStream(ctx context.Context, deviceID string, c audio.Constraints) (audio.Stream, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.OpenCalls++
	b.LastConstraints = c
	if b.OpenErr != nil {
		return nil, b.OpenErr
	}

	found := false
	for _, d := range b.Devices {
		if d.ID == deviceID && d.Kind == audio.KindAudioInput {
			found = true
			break
		}
	}
	if !found {
		return nil, audio.ErrDeviceNotFound
	}

	rate := b.SampleRate
	if rate == 0 {
		rate = 48000
	}
	s := NewStream(deviceID, rate)
	b.Streams = append(b.Streams, s)
	return s, nil
}

func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Closed = true
	return nil
}

// Opens returns how many streams were requested.
func (b *Backend) Opens() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.OpenCalls
}

// LiveTracks counts tracks that have not been stopped across every stream
// the backend has opened.
func (b *Backend) LiveTracks() int {
	b.mu.Lock()
	streams := append([]*Stream(nil), b.Streams...)
	b.mu.Unlock()

	n := 0
	for _, s := range streams {
		for _, t := range s.Tracks() {
			if t.Live() {
				n++
			}
		}
	}
	return n
}

// Stream delivers buffers pushed with Push.
type Stream struct {
	label      string
	sampleRate float64
	buffers    chan []float32
	track      *Track
}

func NewStream(label string, sampleRate float64) *Stream {
	s := &Stream{
		label:      label,
		sampleRate: sampleRate,
		buffers:    make(chan []float32, 16),
	}
	s.track = &Track{label: label, stopped: make(chan struct{})}
	return s
}

func (s *Stream) Tracks() []audio.Track { return []audio.Track{s.track} }

func (s *Stream) SampleRate() float64 { return s.sampleRate }

// Push queues a buffer for the next Read.
func (s *Stream) Push(samples []float32) {
	s.buffers <- samples
}

// Queued reports buffers pushed but not yet read.
func (s *Stream) Queued() int { return len(s.buffers) }

func (s *Stream) Read(ctx context.Context) ([]float32, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.track.stopped:
		return nil, audio.ErrStreamStopped
	case b := <-s.buffers:
		return b, nil
	}
}

type Track struct {
	label string
	once  sync.Once
	mu    sync.Mutex
	stops int

	stopped chan struct{}
}

func (t *Track) Label() string { return t.label }

func (t *Track) Stop() error {
	t.mu.Lock()
	t.stops++
	t.mu.Unlock()
	t.once.Do(func() { close(t.stopped) })
	return nil
}

func (t *Track) Live() bool {
	select {
	case <-t.stopped:
		return false
	default:
		return true
	}
}

// Stops returns how many times Stop was called.
func (t *Track) Stops() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stops
}

// Track returns the stream's single track.
func (s *Stream) Track() *Track { return s.track }

// Input returns an input device with the given id and label.
func Input(id, label string) audio.Device {
	return audio.Device{ID: id, Kind: audio.KindAudioInput, Label: label}
}

// Output returns an output device with the given id and label.
func Output(id, label string) audio.Device {
	return audio.Device{ID: id, Kind: audio.KindAudioOutput, Label: label}
}
