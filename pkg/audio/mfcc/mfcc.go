// Package mfcc computes mel-frequency cepstral coefficients from PCM frames.
//
// The pipeline per frame is:
//
//	pre-emphasis → window → |FFT|² → mel filterbank → log → DCT-II
//
// and the first NumCoefficients DCT outputs form the descriptor.
//
// Default parameters:
//
//	SampleRate:      16000
//	WindowSize:      512 (32 ms)
//	NumCoefficients: 20
//	NumFilters:      26
//	LowFreq:         0
//	HighFreq:        SampleRate / 2
//	Window:          hann
//
// No floor is applied before the log by default, so an all-zero frame
// produces non-finite coefficients and Extract reports ErrNonFinite. Callers
// treat that as a skipped frame.
package mfcc

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Sentinel errors.
var (
	// ErrExtraction is returned when a single frame cannot be described.
	ErrExtraction = errors.New("mfcc: extraction failed")

	// ErrNonFinite is returned when a frame yields NaN or infinite
	// coefficients, typically a silent frame. It wraps ErrExtraction.
	ErrNonFinite = fmt.Errorf("%w: non-finite coefficients", ErrExtraction)

	// ErrConfig is returned by New for unusable parameters.
	ErrConfig = errors.New("mfcc: invalid config")
)

// Config controls MFCC extraction.
type Config struct {
	SampleRate      int        // audio sample rate in Hz (default 16000)
	WindowSize      int        // frame length in samples, also the FFT size (default 512)
	NumCoefficients int        // descriptor length (default 20)
	NumFilters      int        // number of mel bands (default 26)
	LowFreq         float64    // lowest filter edge in Hz (default 0)
	HighFreq        float64    // highest filter edge in Hz (0 means Nyquist)
	Window          WindowFunc // frame taper (default hann)
	PreEmphasis     float64    // pre-emphasis coefficient, 0 disables
	LogFloor        float64    // minimum mel energy before log, 0 disables
}

// DefaultConfig returns the 16 kHz speech defaults.
func DefaultConfig() Config {
	return Config{
		SampleRate:      16000,
		WindowSize:      512,
		NumCoefficients: 20,
		NumFilters:      26,
		Window:          WindowHann,
	}
}

// Validate checks the config, filling nothing in.
func (c Config) Validate() error {
	switch {
	case c.SampleRate <= 0:
		return fmt.Errorf("%w: sample rate %d", ErrConfig, c.SampleRate)
	case c.WindowSize < 2:
		return fmt.Errorf("%w: window size %d", ErrConfig, c.WindowSize)
	case c.NumFilters < 1 || c.NumFilters+2 > c.WindowSize/2+1:
		return fmt.Errorf("%w: %d filters for window size %d", ErrConfig, c.NumFilters, c.WindowSize)
	case c.NumCoefficients < 1 || c.NumCoefficients > c.NumFilters:
		return fmt.Errorf("%w: %d coefficients with %d filters", ErrConfig, c.NumCoefficients, c.NumFilters)
	case c.LowFreq < 0 || c.highFreq() <= c.LowFreq || c.highFreq() > float64(c.SampleRate)/2:
		return fmt.Errorf("%w: frequency range [%g, %g]", ErrConfig, c.LowFreq, c.highFreq())
	case c.PreEmphasis < 0 || c.PreEmphasis >= 1:
		return fmt.Errorf("%w: pre-emphasis %g", ErrConfig, c.PreEmphasis)
	case c.LogFloor < 0:
		return fmt.Errorf("%w: log floor %g", ErrConfig, c.LogFloor)
	}
	switch c.Window {
	case "", WindowHann, WindowHamming, WindowRect:
	default:
		return fmt.Errorf("%w: window %q", ErrConfig, c.Window)
	}
	return nil
}

func (c Config) highFreq() float64 {
	if c.HighFreq == 0 {
		return float64(c.SampleRate) / 2
	}
	return c.HighFreq
}

// Extractor computes MFCC descriptors for frames of a fixed length.
// It is safe for concurrent use.
type Extractor struct {
	cfg     Config
	window  []float64
	melBank [][]float64
	dct     [][]float64
	ffts    sync.Pool
}

// New creates an Extractor with precomputed window, filterbank and DCT tables.
func New(cfg Config) (*Extractor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	n := cfg.WindowSize
	e := &Extractor{
		cfg:     cfg,
		window:  makeWindow(cfg.Window, n),
		melBank: melFilterBank(cfg.NumFilters, n, cfg.SampleRate, cfg.LowFreq, cfg.highFreq()),
		dct:     dctTable(cfg.NumCoefficients, cfg.NumFilters),
	}
	e.ffts.New = func() any { return fourier.NewFFT(n) }
	return e, nil
}

// Config returns the extractor's configuration.
func (e *Extractor) Config() Config {
	return e.cfg
}

// Dimension returns the descriptor length.
func (e *Extractor) Dimension() int {
	return e.cfg.NumCoefficients
}

// Extract computes the descriptor of one frame. The frame must contain
// exactly WindowSize samples.
func (e *Extractor) Extract(frame []float64) ([]float64, error) {
	cfg := e.cfg
	if len(frame) != cfg.WindowSize {
		return nil, fmt.Errorf("%w: frame has %d samples, want %d", ErrExtraction, len(frame), cfg.WindowSize)
	}

	// Pre-emphasis + windowing
	buf := make([]float64, cfg.WindowSize)
	for i, s := range frame {
		if i > 0 && cfg.PreEmphasis > 0 {
			s -= cfg.PreEmphasis * frame[i-1]
		}
		buf[i] = s * e.window[i]
	}

	fft := e.ffts.Get().(*fourier.FFT)
	coeffs := fft.Coefficients(nil, buf)
	e.ffts.Put(fft)

	// Power spectrum
	power := make([]float64, len(coeffs))
	for k, c := range coeffs {
		power[k] = real(c)*real(c) + imag(c)*imag(c)
	}

	// Log mel energies
	logMel := make([]float64, cfg.NumFilters)
	for m, filter := range e.melBank {
		sum := 0.0
		for k, w := range filter {
			sum += w * power[k]
		}
		if sum < cfg.LogFloor {
			sum = cfg.LogFloor
		}
		logMel[m] = math.Log(sum)
	}

	// DCT-II
	out := make([]float64, cfg.NumCoefficients)
	for k, row := range e.dct {
		sum := 0.0
		for m, c := range row {
			sum += c * logMel[m]
		}
		if math.IsNaN(sum) || math.IsInf(sum, 0) {
			return nil, fmt.Errorf("%w (coefficient %d)", ErrNonFinite, k)
		}
		out[k] = sum
	}
	return out, nil
}
