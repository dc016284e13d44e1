package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petems/spectral-canvas/internal/analysis"
	"github.com/petems/spectral-canvas/internal/audio"
	"github.com/petems/spectral-canvas/internal/audio/audiotest"
	"github.com/petems/spectral-canvas/internal/devices"
	"github.com/petems/spectral-canvas/internal/frame"
	"github.com/petems/spectral-canvas/internal/notify"
)

type harness struct {
	backend  *audiotest.Backend
	audioCtx *audio.Context
	frames   *frame.Ticker
	notices  *notify.Recorder
	draws    [][]uint8
	session  *Session
}

func newHarness(t *testing.T, devs ...audio.Device) *harness {
	t.Helper()
	h := &harness{
		backend:  &audiotest.Backend{Devices: devs},
		audioCtx: audio.NewContext(zerolog.Nop()),
		frames:   frame.NewTicker(60),
		notices:  &notify.Recorder{},
	}

	enum := devices.New(h.backend, &notify.Recorder{}, zerolog.Nop())
	require.NoError(t, enum.Load(context.Background(), ""))

	h.session = New(Config{
		Backend:  h.backend,
		Context:  h.audioCtx,
		Devices:  enum,
		Frames:   h.frames,
		Analyser: analysis.DefaultOptions(),
		Draw: func(snapshot []uint8) {
			cp := make([]uint8, len(snapshot))
			copy(cp, snapshot)
			h.draws = append(h.draws, cp)
		},
		Notifier: h.notices,
		Logger:   zerolog.Nop(),
	})
	return h
}

func TestStartWithoutDeviceHasNoSideEffects(t *testing.T) {
	for _, id := range []string{"", "unknown"} {
		t.Run("id="+id, func(t *testing.T) {
			h := newHarness(t, audiotest.Input("mic", "Mic"))

			err := h.session.Start(context.Background(), id)
			assert.ErrorIs(t, err, ErrNoDevice)

			assert.Equal(t, 0, h.backend.Opens())
			assert.Equal(t, []notify.Notice{{Level: notify.LevelError, Message: MsgNoDevice}}, h.notices.All())
			assert.Equal(t, Idle, h.session.State())
			assert.Equal(t, 0, h.frames.Pending())
		})
	}
}

func TestStartOpensRawStreamAndArmsOneFrame(t *testing.T) {
	h := newHarness(t, audiotest.Input("mic", "Mic"))
	require.NoError(t, h.audioCtx.Suspend())

	require.NoError(t, h.session.Start(context.Background(), "mic"))

	assert.Equal(t, Running, h.session.State())
	assert.Equal(t, "mic", h.session.DeviceID())
	assert.Equal(t, audio.RawConstraints(), h.backend.LastConstraints)
	assert.Equal(t, audio.StateRunning, h.audioCtx.State())
	assert.Equal(t, 1, h.frames.Pending())
	assert.Equal(t, 1, h.backend.LiveTracks())
	assert.Equal(t, []notify.Notice{{Level: notify.LevelSuccess, Message: MsgStarted}}, h.notices.All())
}

func TestStartLogsStreamDetails(t *testing.T) {
	h := newHarness(t, audiotest.Input("mic", "Mic"))
	h.backend.SampleRate = 44100
	var buf bytes.Buffer
	h.session.log = zerolog.New(&buf)

	require.NoError(t, h.session.Start(context.Background(), "mic"))
	defer h.session.Stop()

	var entry struct {
		Message    string   `json:"message"`
		Tracks     []string `json:"tracks"`
		SampleRate float64  `json:"sample_rate"`
		FFTSize    int      `json:"fft_size"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Analysis started", entry.Message)
	assert.Equal(t, []string{"mic"}, entry.Tracks)
	assert.Equal(t, 44100.0, entry.SampleRate)
	assert.Equal(t, 2048, entry.FFTSize)
}

func TestFrameLoopDrawsAndRearms(t *testing.T) {
	h := newHarness(t, audiotest.Input("mic", "Mic"))
	require.NoError(t, h.session.Start(context.Background(), "mic"))

	for i := 1; i <= 3; i++ {
		h.frames.Tick()
		require.Len(t, h.draws, i)
		assert.Len(t, h.draws[i-1], 1024)
		assert.Equal(t, 1, h.frames.Pending(), "exactly one frame pending per running session")
	}
}

func TestStopReleasesEverythingAndIsIdempotent(t *testing.T) {
	h := newHarness(t, audiotest.Input("mic", "Mic"))
	require.NoError(t, h.session.Start(context.Background(), "mic"))
	h.frames.Tick()

	require.NoError(t, h.session.Stop())

	assert.Equal(t, Idle, h.session.State())
	assert.Equal(t, "", h.session.DeviceID())
	assert.Equal(t, 0, h.backend.LiveTracks())
	assert.Equal(t, 0, h.frames.Pending())
	assert.Equal(t, audio.StateSuspended, h.audioCtx.State())

	draws := len(h.draws)
	h.frames.Tick()
	assert.Len(t, h.draws, draws, "no frame runs after stop")

	notices := h.notices.All()
	assert.Equal(t, notify.Notice{Level: notify.LevelInfo, Message: MsgStopped}, notices[len(notices)-1])

	require.NoError(t, h.session.Stop())
	assert.Equal(t, notices, h.notices.All(), "second stop is a no-op")
	assert.Equal(t, 1, h.backend.Streams[0].Track().Stops())
}

func TestStopWhenNeverStarted(t *testing.T) {
	h := newHarness(t, audiotest.Input("mic", "Mic"))

	require.NoError(t, h.session.Stop())
	assert.Empty(t, h.notices.All())
	assert.Equal(t, audio.StateRunning, h.audioCtx.State())
}

func TestStartWhileRunningIsRefused(t *testing.T) {
	h := newHarness(t, audiotest.Input("mic", "Mic"))
	require.NoError(t, h.session.Start(context.Background(), "mic"))

	err := h.session.Start(context.Background(), "mic")
	assert.ErrorIs(t, err, ErrAlreadyRunning)
	assert.Equal(t, 1, h.backend.Opens())
	assert.Equal(t, 1, h.frames.Pending())
}

func TestStartFailureStaysIdle(t *testing.T) {
	h := newHarness(t, audiotest.Input("mic", "Mic"))
	h.backend.OpenErr = errors.New("device busy")

	err := h.session.Start(context.Background(), "mic")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device busy")

	assert.Equal(t, Idle, h.session.State())
	assert.Equal(t, 0, h.frames.Pending())
	assert.Equal(t, []notify.Notice{{Level: notify.LevelError, Message: MsgStartFailed}}, h.notices.All())
}

func TestStartFailureAfterOpenStopsTracks(t *testing.T) {
	h := newHarness(t, audiotest.Input("mic", "Mic"))
	require.NoError(t, h.audioCtx.Close())

	err := h.session.Start(context.Background(), "mic")
	assert.ErrorIs(t, err, audio.ErrContextClosed)
	assert.Equal(t, 1, h.backend.Opens())
	assert.Equal(t, 0, h.backend.LiveTracks())
	assert.Equal(t, Idle, h.session.State())
}

func TestRestartReusesContext(t *testing.T) {
	h := newHarness(t, audiotest.Input("mic", "Mic"))
	require.NoError(t, h.session.Start(context.Background(), "mic"))
	require.NoError(t, h.session.Stop())
	require.NoError(t, h.session.Start(context.Background(), "mic"))

	assert.Equal(t, audio.StateRunning, h.audioCtx.State())
	assert.Equal(t, 2, h.backend.Opens())
	assert.Equal(t, 1, h.backend.LiveTracks())
	assert.False(t, h.backend.Streams[0].Track().Live())
}

func TestCloseWhileRunningLeavesNoLiveTracks(t *testing.T) {
	h := newHarness(t, audiotest.Input("mic", "Mic"))
	require.NoError(t, h.session.Start(context.Background(), "mic"))

	require.NoError(t, h.session.Close())
	assert.Equal(t, 0, h.backend.LiveTracks())
	assert.Equal(t, 0, h.frames.Pending())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "running", Running.String())
}
