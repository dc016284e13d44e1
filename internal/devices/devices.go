// Package devices discovers audio input endpoints once at start-up and keeps
// the user's selection as a reference into that snapshot.
package devices

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/petems/spectral-canvas/internal/audio"
	"github.com/petems/spectral-canvas/internal/notify"
)

const MsgUnavailable = "Could not access audio devices. Please check your permissions."

var ErrNoInputs = errors.New("no audio input devices")

// Device is a selectable input endpoint.
type Device struct {
	ID    string
	Label string
}

// Lister is the part of audio.Backend the enumerator needs.
type Lister interface {
	RequestPermission(ctx context.Context) error
	ListDevices() ([]audio.Device, error)
}

type Enumerator struct {
	backend Lister
	notify  notify.Notifier
	log     zerolog.Logger

	mu       sync.RWMutex
	devices  []Device
	selected string
}

func New(backend Lister, n notify.Notifier, log zerolog.Logger) *Enumerator {
	return &Enumerator{backend: backend, notify: n, log: log}
}

// Load asks for microphone permission, then lists input devices and selects
// the first one. preferred, when it names a listed device, is selected
// instead. Failures, including a system without inputs, leave the list empty
// and raise one notice.
func (e *Enumerator) Load(ctx context.Context, preferred string) error {
	if err := e.backend.RequestPermission(ctx); err != nil {
		e.log.Error().Err(err).Msg("Error accessing media devices")
		e.notify.Error(MsgUnavailable)
		return err
	}

	all, err := e.backend.ListDevices()
	if err != nil {
		e.log.Error().Err(err).Msg("Error accessing media devices")
		e.notify.Error(MsgUnavailable)
		return err
	}

	inputs := make([]Device, 0, len(all))
	for _, d := range all {
		if d.Kind != audio.KindAudioInput {
			continue
		}
		inputs = append(inputs, Device{ID: d.ID, Label: DisplayLabel(d)})
	}
	if len(inputs) == 0 {
		e.mu.Lock()
		e.devices = nil
		e.selected = ""
		e.mu.Unlock()
		e.log.Warn().Int("endpoints", len(all)).Msg("No audio input devices found")
		e.notify.Error(MsgUnavailable)
		return ErrNoInputs
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.devices = inputs
	e.selected = inputs[0].ID
	for _, d := range inputs {
		if preferred != "" && d.ID == preferred {
			e.selected = d.ID
		}
	}

	e.log.Info().Int("count", len(inputs)).Str("selected", e.selected).Msg("Enumerated audio inputs")
	return nil
}

// DisplayLabel falls back to a shortened identifier when the device has no
// label.
func DisplayLabel(d audio.Device) string {
	if d.Label != "" {
		return d.Label
	}
	id := d.ID
	if len(id) > 5 {
		id = id[:5]
	}
	return "Microphone " + id + "..."
}

// Devices returns the enumerated inputs.
func (e *Enumerator) Devices() []Device {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Device, len(e.devices))
	copy(out, e.devices)
	return out
}

// Selected returns the selected device ID, or "" when nothing is selected.
func (e *Enumerator) Selected() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.selected
}

// Lookup finds an enumerated device by ID.
func (e *Enumerator) Lookup(id string) (Device, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, d := range e.devices {
		if d.ID == id {
			return d, true
		}
	}
	return Device{}, false
}

// Select changes the selection. Unknown IDs are ignored and reported false.
func (e *Enumerator) Select(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, d := range e.devices {
		if d.ID == id {
			e.selected = id
			return true
		}
	}
	return false
}

// Step moves the selection by delta positions, wrapping around the list.
func (e *Enumerator) Step(delta int) (Device, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := len(e.devices)
	if n == 0 {
		return Device{}, false
	}

	idx := 0
	for i, d := range e.devices {
		if d.ID == e.selected {
			idx = i
			break
		}
	}
	idx = ((idx+delta)%n + n) % n
	e.selected = e.devices[idx].ID
	return e.devices[idx], true
}
