// Package transcode prepares recordings for the embedding pipeline: a mono
// 16-bit WAV at the pipeline's sample rate.
//
// The pipeline never calls a Transcoder itself. Callers run one ahead of
// embedding when their sources do not already match the configured rate.
package transcode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	resampling "github.com/tphakala/go-audio-resampling"

	"github.com/haivivi/voxprint/pkg/audio/pcm"
	"github.com/haivivi/voxprint/pkg/audio/wav"
)

// ErrTranscode is returned when a source cannot be converted.
var ErrTranscode = errors.New("transcode: failed")

// Transcoder converts the audio file at src into a mono 16-bit WAV at dst.
type Transcoder interface {
	Transcode(ctx context.Context, src, dst string) error
}

// Option configures a Resampler.
type Option func(*Resampler)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resampler) {
		if l != nil {
			r.logger = l
		}
	}
}

// Resampler is a Transcoder for WAV sources of any rate. Multi-channel
// sources keep only their first channel, matching how the pipeline reads
// samples.
type Resampler struct {
	rate   int
	logger *slog.Logger
}

var _ Transcoder = (*Resampler)(nil)

// NewResampler creates a Resampler producing audio at rate Hz.
func NewResampler(rate int, opts ...Option) (*Resampler, error) {
	if rate <= 0 {
		return nil, fmt.Errorf("%w: target rate %d", ErrTranscode, rate)
	}
	r := &Resampler{
		rate:   rate,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Rate returns the target sample rate.
func (r *Resampler) Rate() int { return r.rate }

// Transcode reads the WAV file src and writes the converted file to dst.
// dst is written to a temporary file first and renamed into place.
func (r *Resampler) Transcode(ctx context.Context, src, dst string) error {
	sig, err := (&wav.Decoder{Logger: r.logger}).DecodeFile(src)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrTranscode, src, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	out, err := r.Convert(sig)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrTranscode, src, err)
	}
	if err := writeWAV(dst, out); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrTranscode, dst, err)
	}
	r.logger.Debug("transcode: done",
		"src", src, "dst", dst,
		"from", sig.SampleRate, "to", out.SampleRate,
		"channels", sig.Channels, "duration", out.Duration())
	return nil
}

// Convert resamples a decoded signal to the target rate. A signal already
// at the target rate is returned as a mono copy.
func (r *Resampler) Convert(sig *pcm.Signal) (*pcm.Signal, error) {
	if sig.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: source rate %d", ErrTranscode, sig.SampleRate)
	}
	out := &pcm.Signal{SampleRate: r.rate, Channels: 1}
	if sig.SampleRate == r.rate || len(sig.Samples) == 0 {
		out.Samples = append([]float64(nil), sig.Samples...)
		return out, nil
	}

	rs, err := resampling.New(&resampling.Config{
		InputRate:  float64(sig.SampleRate),
		OutputRate: float64(r.rate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("create resampler: %w", err)
	}
	samples, err := rs.Process(sig.Samples)
	if err != nil {
		return nil, fmt.Errorf("resample: %w", err)
	}
	out.Samples = samples
	return out, nil
}

func writeWAV(dst string, sig *pcm.Signal) (err error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(f.Name())
		}
	}()
	if err := wav.Encode(f, pcm.L16Mono(sig.SampleRate), pcm.Denormalize(sig.Samples)); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), dst)
}
