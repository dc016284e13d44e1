package permissions

import "errors"

var (
	ErrNotGranted = errors.New("microphone permission not granted yet")
	ErrDenied     = errors.New("microphone permission denied")
)
