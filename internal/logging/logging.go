package logging

import (
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls where log output goes.
type Options struct {
	Level string
	// Console writes human-readable output to stderr. The terminal view
	// owns the screen, so it turns this off and keeps only the file.
	Console bool
}

// New creates a new zerolog logger with console and file output
func New() zerolog.Logger {
	return NewWithOptions(Options{Level: "info", Console: true})
}

// NewWithLevel creates a console and file logger at the given level.
func NewWithLevel(level string) zerolog.Logger {
	return NewWithOptions(Options{Level: level, Console: true})
}

// NewWithOptions builds the logger described by opts.
func NewWithOptions(opts Options) zerolog.Logger {
	logPath := LogPath()

	// Ensure directory exists
	os.MkdirAll(filepath.Dir(logPath), 0755)

	file := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}

	writers := []io.Writer{file}
	if opts.Console {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	multi := zerolog.MultiLevelWriter(writers...)

	return zerolog.New(multi).Level(ParseLevel(opts.Level)).With().Timestamp().Caller().Logger()
}

// ParseLevel maps a config level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// LogPath returns platform-specific log file path
func LogPath() string {
	var base string

	switch runtime.GOOS {
	case "darwin":
		base = os.Getenv("HOME") + "/Library/Logs"
	case "windows":
		base = os.Getenv("LOCALAPPDATA")
	default:
		if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
			base = xdg
		} else {
			base = os.Getenv("HOME") + "/.local/state"
		}
	}

	return filepath.Join(base, "spectral-canvas", "spectral-canvas.log")
}
