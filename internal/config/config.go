package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Visualization modes accepted in render.mode.
const (
	ModeBars = "bars"
	ModeLine = "line"
)

type Config struct {
	LogLevel string         `json:"log_level" mapstructure:"log_level"`
	Audio    AudioConfig    `json:"audio" mapstructure:"audio"`
	Analyser AnalyserConfig `json:"analyser" mapstructure:"analyser"`
	Render   RenderConfig   `json:"render" mapstructure:"render"`
	Tray     bool           `json:"tray" mapstructure:"tray"`
	Snapshot SnapshotConfig `json:"snapshot" mapstructure:"snapshot"`
}

type AudioConfig struct {
	DeviceID        string  `json:"device_id" mapstructure:"device_id"`
	SampleRate      float64 `json:"sample_rate" mapstructure:"sample_rate"`
	FramesPerBuffer int     `json:"frames_per_buffer" mapstructure:"frames_per_buffer"`
}

type AnalyserConfig struct {
	FFTSize     int     `json:"fft_size" mapstructure:"fft_size"`
	Smoothing   float64 `json:"smoothing" mapstructure:"smoothing"`
	MinDecibels float64 `json:"min_decibels" mapstructure:"min_decibels"`
	MaxDecibels float64 `json:"max_decibels" mapstructure:"max_decibels"`
}

type RenderConfig struct {
	Mode string `json:"mode" mapstructure:"mode"` // "bars" or "line"
	FPS  int    `json:"fps" mapstructure:"fps"`
}

// SnapshotConfig drives the headless mode: when Path is set the app renders
// into an offscreen canvas for Duration and writes the last frame as PNG.
type SnapshotConfig struct {
	Path     string        `json:"path" mapstructure:"path"`
	Duration time.Duration `json:"duration" mapstructure:"duration"`
	Width    int           `json:"width" mapstructure:"width"`
	Height   int           `json:"height" mapstructure:"height"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Audio: AudioConfig{
			DeviceID:        "",
			SampleRate:      48000,
			FramesPerBuffer: 512,
		},
		Analyser: AnalyserConfig{
			FFTSize:     2048,
			Smoothing:   0.85,
			MinDecibels: -100,
			MaxDecibels: -30,
		},
		Render: RenderConfig{
			Mode: ModeBars,
			FPS:  60,
		},
		Tray: false,
		Snapshot: SnapshotConfig{
			Duration: 2 * time.Second,
			Width:    1024,
			Height:   400,
		},
	}
}

// Flags returns the command-line flags understood by Load.
func Flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("spectral-canvas", pflag.ContinueOnError)
	fs.String("device", "", "audio input device ID")
	fs.String("mode", "", `visualization mode ("bars" or "line")`)
	fs.Int("fps", 0, "frames per second")
	fs.String("log-level", "", "log level (debug, info, warn, error)")
	fs.Bool("tray", false, "show system tray controls")
	fs.String("snapshot", "", "render headless and write the last frame to this PNG file")
	fs.Duration("duration", 0, "how long to analyse before writing the snapshot")
	return fs
}

var flagKeys = map[string]string{
	"device":    "audio.device_id",
	"mode":      "render.mode",
	"fps":       "render.fps",
	"log-level": "log_level",
	"tray":      "tray",
	"snapshot":  "snapshot.path",
	"duration":  "snapshot.duration",
}

// Load reads the config from disk, applies SPECTRAL_* environment variables
// and any flags that were explicitly set. fs may be nil.
func Load(fs *pflag.FlagSet) (*Config, error) {
	return load(configPath(), fs)
}

func load(path string, fs *pflag.FlagSet) (*Config, error) {
	v, err := readFile(path)
	if err != nil {
		return nil, err
	}

	v.SetEnvPrefix("SPECTRAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, err
				}
			}
		}
	}

	return decode(v)
}

// readFile layers the config file over the defaults, without env or flags.
func readFile(path string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, err
		}
	}
	return v, nil
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	cfg.Render.Mode = strings.ToLower(cfg.Render.Mode)
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("audio.device_id", d.Audio.DeviceID)
	v.SetDefault("audio.sample_rate", d.Audio.SampleRate)
	v.SetDefault("audio.frames_per_buffer", d.Audio.FramesPerBuffer)
	v.SetDefault("analyser.fft_size", d.Analyser.FFTSize)
	v.SetDefault("analyser.smoothing", d.Analyser.Smoothing)
	v.SetDefault("analyser.min_decibels", d.Analyser.MinDecibels)
	v.SetDefault("analyser.max_decibels", d.Analyser.MaxDecibels)
	v.SetDefault("render.mode", d.Render.Mode)
	v.SetDefault("render.fps", d.Render.FPS)
	v.SetDefault("tray", d.Tray)
	v.SetDefault("snapshot.path", d.Snapshot.Path)
	v.SetDefault("snapshot.duration", d.Snapshot.Duration)
	v.SetDefault("snapshot.width", d.Snapshot.Width)
	v.SetDefault("snapshot.height", d.Snapshot.Height)
}

// Save persists the settings the user changes at runtime, the selected
// device and the visualization mode. Everything else is written back as it
// was in the file, so env and flag overrides stay one-off.
func (c *Config) Save() error {
	return c.saveTo(configPath())
}

func (c *Config) saveTo(path string) error {
	v, err := readFile(path)
	if err != nil {
		return err
	}
	v.Set("audio.device_id", c.Audio.DeviceID)
	v.Set("render.mode", c.Render.Mode)

	stored, err := decode(v)
	if err != nil {
		return err
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// configPath returns the platform-specific config file path
func configPath() string {
	var base string

	switch runtime.GOOS {
	case "darwin":
		base = os.Getenv("HOME") + "/Library/Application Support"
	case "windows":
		base = os.Getenv("APPDATA")
	default: // linux
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = xdg
		} else {
			base = os.Getenv("HOME") + "/.config"
		}
	}

	return filepath.Join(base, "spectral-canvas", "config.json")
}
