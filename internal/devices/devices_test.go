package devices

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petems/spectral-canvas/internal/audio"
	"github.com/petems/spectral-canvas/internal/audio/audiotest"
	"github.com/petems/spectral-canvas/internal/notify"
)

func TestLoadFiltersInputsAndSelectsFirst(t *testing.T) {
	backend := &audiotest.Backend{Devices: []audio.Device{
		audiotest.Output("speaker", "Speakers"),
		audiotest.Input("mic-a", "USB Mic"),
		audiotest.Input("mic-b", "Built-in"),
	}}
	rec := &notify.Recorder{}
	e := New(backend, rec, zerolog.Nop())

	require.NoError(t, e.Load(context.Background(), ""))

	assert.Equal(t, 1, backend.PermissionCalls)
	assert.Equal(t, []Device{
		{ID: "mic-a", Label: "USB Mic"},
		{ID: "mic-b", Label: "Built-in"},
	}, e.Devices())
	assert.Equal(t, "mic-a", e.Selected())
	assert.Empty(t, rec.All())
}

func TestLoadPrefersConfiguredDevice(t *testing.T) {
	backend := &audiotest.Backend{Devices: []audio.Device{
		audiotest.Input("mic-a", "USB Mic"),
		audiotest.Input("mic-b", "Built-in"),
	}}
	e := New(backend, &notify.Recorder{}, zerolog.Nop())

	require.NoError(t, e.Load(context.Background(), "mic-b"))
	assert.Equal(t, "mic-b", e.Selected())

	require.NoError(t, e.Load(context.Background(), "unplugged"))
	assert.Equal(t, "mic-a", e.Selected())
}

func TestLoadLabelFallback(t *testing.T) {
	backend := &audiotest.Backend{Devices: []audio.Device{
		audiotest.Input("0123456789abcdef", ""),
		audiotest.Input("ab", ""),
	}}
	e := New(backend, &notify.Recorder{}, zerolog.Nop())
	require.NoError(t, e.Load(context.Background(), ""))

	devs := e.Devices()
	assert.Equal(t, "Microphone 01234...", devs[0].Label)
	assert.Equal(t, "Microphone ab...", devs[1].Label)
}

func TestLoadFailuresNotifyOnce(t *testing.T) {
	tests := []struct {
		name    string
		backend *audiotest.Backend
	}{
		{"permission denied", &audiotest.Backend{PermissionErr: errors.New("denied")}},
		{"list error", &audiotest.Backend{ListErr: errors.New("boom")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &notify.Recorder{}
			e := New(tt.backend, rec, zerolog.Nop())

			assert.Error(t, e.Load(context.Background(), ""))
			assert.Empty(t, e.Devices())
			assert.Equal(t, "", e.Selected())
			assert.Equal(t, []notify.Notice{{Level: notify.LevelError, Message: MsgUnavailable}}, rec.All())
		})
	}
}

func TestZeroDevicesLeavesNothingSelected(t *testing.T) {
	tests := []struct {
		name    string
		devices []audio.Device
	}{
		{"no endpoints", nil},
		{"outputs only", []audio.Device{audiotest.Output("speaker", "Speakers")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &notify.Recorder{}
			e := New(&audiotest.Backend{Devices: tt.devices}, rec, zerolog.Nop())

			assert.ErrorIs(t, e.Load(context.Background(), ""), ErrNoInputs)
			assert.Empty(t, e.Devices())
			assert.Equal(t, "", e.Selected())
			_, ok := e.Step(1)
			assert.False(t, ok)
			assert.Equal(t, []notify.Notice{{Level: notify.LevelError, Message: MsgUnavailable}}, rec.All())
		})
	}
}

func TestReloadWithoutInputsClearsSelection(t *testing.T) {
	backend := &audiotest.Backend{Devices: []audio.Device{audiotest.Input("mic", "Mic")}}
	e := New(backend, &notify.Recorder{}, zerolog.Nop())
	require.NoError(t, e.Load(context.Background(), ""))
	require.Equal(t, "mic", e.Selected())

	backend.Devices = nil
	assert.ErrorIs(t, e.Load(context.Background(), "mic"), ErrNoInputs)
	assert.Equal(t, "", e.Selected())
}

func TestSelectAndStep(t *testing.T) {
	backend := &audiotest.Backend{Devices: []audio.Device{
		audiotest.Input("a", "A"),
		audiotest.Input("b", "B"),
		audiotest.Input("c", "C"),
	}}
	e := New(backend, &notify.Recorder{}, zerolog.Nop())
	require.NoError(t, e.Load(context.Background(), ""))

	assert.False(t, e.Select("missing"))
	assert.Equal(t, "a", e.Selected())

	assert.True(t, e.Select("c"))
	d, ok := e.Step(1)
	require.True(t, ok)
	assert.Equal(t, "a", d.ID)

	d, _ = e.Step(-1)
	assert.Equal(t, "c", d.ID)

	got, ok := e.Lookup("b")
	require.True(t, ok)
	assert.Equal(t, "B", got.Label)
}
