package tray

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/petems/spectral-canvas/internal/app"
)

// TestEmojiForStatus verifies the tray title indicator for each status.
func TestEmojiForStatus(t *testing.T) {
	tests := []struct {
		name   string
		status status
		want   string
	}{
		{name: "idle", status: statusIdle, want: "🟢"},
		{name: "running", status: statusRunning, want: "🔴"},
		{name: "error", status: statusError, want: "⚪️"},
		{name: "unknown falls back to idle", status: status("other"), want: "🟢"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := emojiForStatus(tt.status); got != tt.want {
				t.Errorf("emojiForStatus(%q) = %q, want %q", tt.status, got, tt.want)
			}
		})
	}
}

func TestStartStopTitle(t *testing.T) {
	if got := startStopTitle(false); got != "Start Analysis" {
		t.Errorf("idle title = %q", got)
	}
	if got := startStopTitle(true); got != "Stop Analysis" {
		t.Errorf("running title = %q", got)
	}
}

// TestStatusUpdatesBeforeReady verifies that status updates arriving before
// the tray is shown are dropped instead of touching systray.
// TestUIIsStatusUpdater verifies the tray can be handed to the app.
func TestUIIsStatusUpdater(t *testing.T) {
	var _ app.StatusUpdater = (*UI)(nil)
}

func TestStatusUpdatesBeforeReady(t *testing.T) {
	u := New(nil, "dev", "none", nil, zerolog.Nop())

	u.SetIdle()
	u.SetRunning()
	u.SetError()
	u.SetDevice("mic")

	if u.ready.Load() {
		t.Error("tray should not be ready before Run")
	}
}
