package pcm

import (
	"fmt"
	"time"
)

// Format describes interleaved linear PCM audio.
type Format struct {
	SampleRate int `json:"sampleRate" yaml:"sample_rate" msgpack:"sample_rate"`
	Channels   int `json:"channels" yaml:"channels" msgpack:"channels"`
	BitDepth   int `json:"bitDepth" yaml:"bit_depth" msgpack:"bit_depth"`
}

// L16Mono returns a 16-bit mono format at the given sample rate.
func L16Mono(sampleRate int) Format {
	return Format{SampleRate: sampleRate, Channels: 1, BitDepth: 16}
}

// Valid reports whether all fields are positive and the bit depth is a whole
// number of bytes.
func (f Format) Valid() bool {
	return f.SampleRate > 0 && f.Channels > 0 && f.BitDepth > 0 && f.BitDepth%8 == 0
}

// SampleBytes returns the size of one sample of one channel.
func (f Format) SampleBytes() int {
	return f.BitDepth / 8
}

// FrameBytes returns the size of one sample across all channels
// (the WAV block align).
func (f Format) FrameBytes() int {
	return f.SampleBytes() * f.Channels
}

// Samples returns the number of per-channel samples in the given number of bytes.
// Trailing bytes that do not form a full frame are ignored.
func (f Format) Samples(bytes int64) int64 {
	return bytes / int64(f.FrameBytes())
}

// SamplesInDuration returns the number of per-channel samples in the given
// duration, rounded down.
func (f Format) SamplesInDuration(d time.Duration) int64 {
	return int64(time.Duration(f.SampleRate) * d / time.Second)
}

// BytesInDuration returns the number of bytes in the given duration.
func (f Format) BytesInDuration(d time.Duration) int64 {
	return f.SamplesInDuration(d) * int64(f.FrameBytes())
}

// Duration returns the duration of the given number of bytes.
func (f Format) Duration(bytes int64) time.Duration {
	return time.Duration(f.Samples(bytes)) * time.Second / time.Duration(f.SampleRate)
}

// BytesRate returns the byte rate of the audio data.
func (f Format) BytesRate() int {
	return f.SampleRate * f.FrameBytes()
}

// String returns a MIME-like description, e.g. "audio/L16; rate=16000; channels=1".
func (f Format) String() string {
	return fmt.Sprintf("audio/L%d; rate=%d; channels=%d", f.BitDepth, f.SampleRate, f.Channels)
}
