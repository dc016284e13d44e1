package audio

import (
	"context"
	"errors"
)

var (
	ErrDeviceNotFound        = errors.New("audio device not found")
	ErrStreamStopped         = errors.New("audio stream stopped")
	ErrUnsupportedConstraint = errors.New("unsupported capture constraint")
	ErrContextClosed         = errors.New("audio context closed")
)

// Kind distinguishes capture endpoints from playback endpoints.
type Kind string

const (
	KindAudioInput  Kind = "audioinput"
	KindAudioOutput Kind = "audiooutput"
)

// Device represents an audio endpoint
type Device struct {
	ID      string
	Kind    Kind
	Label   string
	Default bool
}

// Constraints are the processing switches requested when opening a stream.
// The analyzer wants the raw signal, so every switch is off.
type Constraints struct {
	EchoCancellation bool
	NoiseSuppression bool
	AutoGainControl  bool
}

// RawConstraints disables all input processing.
func RawConstraints() Constraints {
	return Constraints{}
}

// Track is one source of samples inside a stream. Stopping it releases the
// underlying hardware.
type Track interface {
	Label() string
	Stop() error
	Live() bool
}

// Stream is an open capture stream.
type Stream interface {
	Tracks() []Track
	SampleRate() float64
	// Read blocks for the next buffer of mono samples. It returns
	// ErrStreamStopped once every track has been stopped.
	Read(ctx context.Context) ([]float32, error)
}

// Backend defines the interface for device discovery and capture
type Backend interface {
	RequestPermission(ctx context.Context) error
	ListDevices() ([]Device, error)
	OpenStream(ctx context.Context, deviceID string, c Constraints) (Stream, error)
	Close() error
}

// StopAll stops every track of s and returns the first error.
func StopAll(s Stream) error {
	var first error
	for _, t := range s.Tracks() {
		if err := t.Stop(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Labels lists the track labels of s.
func Labels(s Stream) []string {
	tracks := s.Tracks()
	labels := make([]string, 0, len(tracks))
	for _, t := range tracks {
		labels = append(labels, t.Label())
	}
	return labels
}
