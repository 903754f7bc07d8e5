// Package voiceprint turns speech recordings into fixed-dimension embeddings
// for nearest-neighbor speaker comparison.
//
// # Pipeline
//
//  1. wav.Decoder: WAV bytes → normalized first-channel samples
//  2. mfcc.Frames: samples → fixed-length overlapping frames
//  3. mfcc.Extractor: frame → NumCoefficients cepstral descriptor
//  4. Assembler.Normalize: descriptor matrix → unit scale
//  5. Delta: descriptor sequence → first-order regression dynamics
//  6. Assembler.Combine: static ‖ delta per frame (2×NumCoefficients)
//  7. Assembler.Pool (aggregate mode): mean ‖ std across frames (4×NumCoefficients)
//
// Frames whose descriptor is not finite (for example digital silence) are
// skipped and reported in [Embedding.Skipped]. If no frame survives, the
// pipeline fails with [ErrEmptySequence].
//
// # Modes
//
// The output [Mode] is fixed when the [Pipeline] is built: sequence mode
// yields one vector per frame, aggregate mode one vector per recording. The
// vector store must be created with the matching [Pipeline.Dimension].
package voiceprint

import "errors"

// Sentinel errors.
var (
	// ErrConfig is returned for invalid configuration, including an output
	// dimension that does not match the declared vector store dimension.
	ErrConfig = errors.New("voiceprint: invalid config")

	// ErrEmptySequence is returned when no frame of a signal produced a
	// usable descriptor.
	ErrEmptySequence = errors.New("voiceprint: no usable frames")

	// ErrDimension is returned when descriptor rows disagree in length.
	ErrDimension = errors.New("voiceprint: dimension mismatch")
)
