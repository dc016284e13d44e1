// Package analysis implements the frequency-analysis node: a ring buffer of
// the most recent mono samples, a Blackman-windowed FFT and exponential
// smoothing of successive magnitude frames, exposed as bytes (0-255 per
// bin) or decibels.
package analysis

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"sync"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
	"gonum.org/v1/gonum/floats"
)

const (
	MinFFTSize = 32
	MaxFFTSize = 32768

	DefaultFFTSize     = 2048
	DefaultSmoothing   = 0.85
	DefaultMinDecibels = -100.0
	DefaultMaxDecibels = -30.0
)

var (
	ErrInvalidFFTSize   = errors.New("fft size must be a power of two between 32 and 32768")
	ErrInvalidSmoothing = errors.New("smoothing time constant must be between 0 and 1")
	ErrInvalidDecibels  = errors.New("min decibels must be below max decibels")
)

// Options configures an Analyser. Start from DefaultOptions.
type Options struct {
	FFTSize     int
	Smoothing   float64
	MinDecibels float64
	MaxDecibels float64
}

// DefaultOptions returns a 2048-point analyser smoothed at 0.85.
func DefaultOptions() Options {
	return Options{
		FFTSize:     DefaultFFTSize,
		Smoothing:   DefaultSmoothing,
		MinDecibels: DefaultMinDecibels,
		MaxDecibels: DefaultMaxDecibels,
	}
}

type Analyser struct {
	mu sync.Mutex

	fftSize   int
	smoothing float64
	minDB     float64
	maxDB     float64

	ring   []float64 // last fftSize samples, oldest at pos
	pos    int
	window []float64
	frame  []float64

	mag      []float64
	smoothed []float64
}

// New builds an analyser after validating opts.
func New(opts Options) (*Analyser, error) {
	if opts.FFTSize < MinFFTSize || opts.FFTSize > MaxFFTSize || opts.FFTSize&(opts.FFTSize-1) != 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidFFTSize, opts.FFTSize)
	}
	if opts.Smoothing < 0 || opts.Smoothing > 1 || math.IsNaN(opts.Smoothing) {
		return nil, fmt.Errorf("%w: got %g", ErrInvalidSmoothing, opts.Smoothing)
	}
	if opts.MinDecibels >= opts.MaxDecibels {
		return nil, fmt.Errorf("%w: %g >= %g", ErrInvalidDecibels, opts.MinDecibels, opts.MaxDecibels)
	}

	n := opts.FFTSize
	return &Analyser{
		fftSize:   n,
		smoothing: opts.Smoothing,
		minDB:     opts.MinDecibels,
		maxDB:     opts.MaxDecibels,
		ring:      make([]float64, n),
		window:    window.Blackman(n),
		frame:     make([]float64, n),
		mag:       make([]float64, n/2),
		smoothed:  make([]float64, n/2),
	}, nil
}

func (a *Analyser) FFTSize() int { return a.fftSize }

// FrequencyBinCount is half the FFT size.
func (a *Analyser) FrequencyBinCount() int { return a.fftSize / 2 }

func (a *Analyser) SmoothingTimeConstant() float64 { return a.smoothing }

func (a *Analyser) MinDecibels() float64 { return a.minDB }

func (a *Analyser) MaxDecibels() float64 { return a.maxDB }

// Write appends mono samples to the ring buffer. Only the newest fftSize
// samples are kept.
func (a *Analyser) Write(samples []float32) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(samples) > a.fftSize {
		samples = samples[len(samples)-a.fftSize:]
	}
	for _, s := range samples {
		a.ring[a.pos] = float64(s)
		a.pos = (a.pos + 1) % a.fftSize
	}
}

// ByteFrequencyData computes the current spectrum and writes one byte per
// bin into dst, scaled linearly from [min, max] decibels onto [0, 255].
// Extra bins or extra dst space are left untouched.
func (a *Analyser) ByteFrequencyData(dst []uint8) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.computeLocked()

	scale := 255 / (a.maxDB - a.minDB)
	for i := 0; i < len(dst) && i < len(a.smoothed); i++ {
		db := 20 * math.Log10(a.smoothed[i])
		v := math.Floor(scale * (db - a.minDB))
		switch {
		case v < 0 || math.IsNaN(v):
			dst[i] = 0
		case v > 255:
			dst[i] = 255
		default:
			dst[i] = uint8(v)
		}
	}
}

// FloatFrequencyData computes the current spectrum in decibels.
func (a *Analyser) FloatFrequencyData(dst []float32) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.computeLocked()

	for i := 0; i < len(dst) && i < len(a.smoothed); i++ {
		dst[i] = float32(20 * math.Log10(a.smoothed[i]))
	}
}

// ByteTimeDomainData writes the buffered waveform, oldest first, mapping
// [-1, 1] onto [0, 255] with 128 as silence.
func (a *Analyser) ByteTimeDomainData(dst []uint8) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := 0; i < len(dst) && i < a.fftSize; i++ {
		x := a.ring[(a.pos+i)%a.fftSize]
		v := math.Floor(128 * (1 + x))
		switch {
		case v < 0:
			dst[i] = 0
		case v > 255:
			dst[i] = 255
		default:
			dst[i] = uint8(v)
		}
	}
}

func (a *Analyser) computeLocked() {
	n := a.fftSize

	// Unroll the ring so the oldest sample comes first.
	copy(a.frame, a.ring[a.pos:])
	copy(a.frame[n-a.pos:], a.ring[:a.pos])
	floats.Mul(a.frame, a.window)

	spectrum := fft.FFTReal(a.frame)
	for k := range a.mag {
		a.mag[k] = cmplx.Abs(spectrum[k])
	}
	floats.Scale(1/float64(n), a.mag)

	floats.Scale(a.smoothing, a.smoothed)
	floats.AddScaled(a.smoothed, 1-a.smoothing, a.mag)

	for k, v := range a.smoothed {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			a.smoothed[k] = 0
		}
	}
}
