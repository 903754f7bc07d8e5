// Package pcm provides types and utilities for working with linear PCM audio.
//
// Key types:
//   - Format: sample rate, channel count and bit depth of interleaved PCM,
//     with byte/sample/duration arithmetic
//   - Signal: a decoded single-channel sample sequence normalized to [-1, 1]
//
// Example usage:
//
//	format := pcm.L16Mono(16000)
//
//	// Bytes needed for 10 seconds of audio
//	n := format.BytesInDuration(10 * time.Second)
//
//	// Convert raw little-endian int16 bytes to normalized samples
//	samples := pcm.Normalize(data, format.Channels)
package pcm
