package voiceprint

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/haivivi/voxprint/pkg/audio/mfcc"
	"github.com/haivivi/voxprint/pkg/audio/pcm"
	"github.com/haivivi/voxprint/pkg/audio/wav"
)

// cancelCheckInterval is how many frames are processed between context checks.
const cancelCheckInterval = 64

// Config controls a Pipeline.
type Config struct {
	// MFCC holds the per-frame extraction parameters. MFCC.SampleRate is
	// also the rate the decoder expects.
	MFCC mfcc.Config

	// HopSize is the frame advance in samples (default 256). It must not
	// exceed MFCC.WindowSize.
	HopSize int

	Mode          Mode
	Normalization Normalization

	// DeltaOrder is the regression half-width (default 2).
	DeltaOrder int

	// StoreDimension, when positive, is the dimension of the vector store
	// the embeddings are destined for. New fails with ErrConfig if the
	// pipeline would emit vectors of another size.
	StoreDimension int
}

// DefaultConfig returns the 16 kHz defaults: 512-sample windows with a
// 256-sample hop, 20 coefficients, per-frame normalization, sequence mode.
func DefaultConfig() Config {
	return Config{
		MFCC:          mfcc.DefaultConfig(),
		HopSize:       256,
		Mode:          ModeSequence,
		Normalization: NormPerFrame,
		DeltaOrder:    DefaultDeltaOrder,
	}
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger for skipped frames and rate warnings.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// Pipeline converts recordings into embeddings. It is safe for concurrent
// use; every call works on its own buffers.
type Pipeline struct {
	cfg       Config
	extractor *mfcc.Extractor
	assembler *Assembler
	logger    *slog.Logger
}

// New validates cfg and builds a Pipeline. All configuration errors are
// reported here, before any audio is read.
func New(cfg Config, opts ...Option) (*Pipeline, error) {
	if cfg.HopSize <= 0 || cfg.HopSize > cfg.MFCC.WindowSize {
		return nil, fmt.Errorf("%w: hop size %d for window size %d", ErrConfig, cfg.HopSize, cfg.MFCC.WindowSize)
	}
	if cfg.DeltaOrder < 1 {
		return nil, fmt.Errorf("%w: delta order %d", ErrConfig, cfg.DeltaOrder)
	}
	ext, err := mfcc.New(cfg.MFCC)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	asm, err := NewAssembler(ext.Dimension(), cfg.Mode, cfg.Normalization)
	if err != nil {
		return nil, err
	}
	if cfg.StoreDimension > 0 {
		if err := asm.CheckDimension(cfg.StoreDimension); err != nil {
			return nil, err
		}
	}
	cfg.Mode = asm.Mode()
	cfg.Normalization = asm.Normalization()

	p := &Pipeline{
		cfg:       cfg,
		extractor: ext,
		assembler: asm,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Config returns the effective configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// Dimension returns the length of every vector the pipeline emits.
func (p *Pipeline) Dimension() int { return p.assembler.Dimension() }

// Embedding is the result of one pipeline run.
type Embedding struct {
	Mode Mode `json:"mode" yaml:"mode"`

	// Frames holds one combined vector per surviving frame (sequence mode).
	Frames []Combined `json:"frames,omitempty" yaml:"frames,omitempty"`

	// Vector is the pooled vector (aggregate mode).
	Vector []float64 `json:"vector,omitempty" yaml:"vector,omitempty"`

	// SampleRate is the rate declared by the source. Frame timing is
	// derived from it even when it differs from the configured rate.
	SampleRate int `json:"sample_rate" yaml:"sample_rate"`

	// RateMismatch reports that SampleRate differs from the configured rate.
	RateMismatch bool `json:"rate_mismatch,omitempty" yaml:"rate_mismatch,omitempty"`

	// FrameCount is the number of frames the signal was cut into.
	FrameCount int `json:"frame_count" yaml:"frame_count"`

	// Skipped lists frame indexes whose descriptor could not be computed.
	Skipped []int `json:"skipped,omitempty" yaml:"skipped,omitempty"`

	hop int
}

// Vectors returns the embedding's vectors as float32, ready for a vector
// store: one per frame in sequence mode, a single vector in aggregate mode.
func (e *Embedding) Vectors() [][]float32 {
	if e.Mode == ModeAggregate {
		if e.Vector == nil {
			return nil
		}
		return [][]float32{toFloat32(e.Vector)}
	}
	out := make([][]float32, len(e.Frames))
	for i, c := range e.Frames {
		out[i] = toFloat32(c.Vector)
	}
	return out
}

// Offset returns the start time of the given frame.
func (e *Embedding) Offset(frame int) time.Duration {
	if e.SampleRate <= 0 {
		return 0
	}
	return time.Duration(int64(frame) * int64(e.hop) * int64(time.Second) / int64(e.SampleRate))
}

// Embed decodes a WAV stream and embeds it.
func (p *Pipeline) Embed(ctx context.Context, r io.Reader) (*Embedding, error) {
	dec := wav.Decoder{ExpectedRate: p.cfg.MFCC.SampleRate, Logger: p.logger}
	sig, err := dec.Decode(r)
	if err != nil {
		return nil, err
	}
	return p.EmbedSignal(ctx, sig)
}

// EmbedFile decodes and embeds the named WAV file.
func (p *Pipeline) EmbedFile(ctx context.Context, path string) (*Embedding, error) {
	dec := wav.Decoder{ExpectedRate: p.cfg.MFCC.SampleRate, Logger: p.logger}
	sig, err := dec.DecodeFile(path)
	if err != nil {
		return nil, err
	}
	return p.EmbedSignal(ctx, sig)
}

// EmbedSignal embeds an already decoded signal.
func (p *Pipeline) EmbedSignal(ctx context.Context, sig *pcm.Signal) (*Embedding, error) {
	window := p.cfg.MFCC.WindowSize
	emb := &Embedding{
		Mode:         p.assembler.Mode(),
		SampleRate:   sig.SampleRate,
		RateMismatch: sig.SampleRate != p.cfg.MFCC.SampleRate,
		FrameCount:   mfcc.FrameCount(len(sig.Samples), window, p.cfg.HopSize),
		hop:          p.cfg.HopSize,
	}

	frames := make([]int, 0, emb.FrameCount)
	static := make([][]float64, 0, emb.FrameCount)
	for f := range mfcc.Frames(sig.Samples, window, p.cfg.HopSize) {
		if f.Index%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		desc, err := p.extractor.Extract(f.Samples)
		if err != nil {
			if !errors.Is(err, mfcc.ErrExtraction) {
				return nil, err
			}
			emb.Skipped = append(emb.Skipped, f.Index)
			p.logger.Debug("voiceprint: frame skipped", "frame", f.Index, "err", err)
			continue
		}
		frames = append(frames, f.Index)
		static = append(static, desc)
	}
	if len(static) == 0 {
		return nil, fmt.Errorf("%w: %d frames, %d skipped", ErrEmptySequence, emb.FrameCount, len(emb.Skipped))
	}

	normed, err := p.assembler.Normalize(static)
	if err != nil {
		return nil, err
	}
	delta, err := Delta(normed, p.cfg.DeltaOrder)
	if err != nil {
		return nil, err
	}
	combined, err := p.assembler.Combine(frames, normed, delta)
	if err != nil {
		return nil, err
	}

	if emb.Mode == ModeAggregate {
		emb.Vector, err = p.assembler.Pool(combined)
		if err != nil {
			return nil, err
		}
	} else {
		emb.Frames = combined
	}
	if len(emb.Skipped) > 0 {
		p.logger.Debug("voiceprint: embedded with skipped frames",
			"frames", emb.FrameCount, "skipped", len(emb.Skipped))
	}
	return emb, nil
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
