package pcm

import (
	"encoding/binary"
	"math"
	"time"
)

// Signal is a decoded, single-channel sample sequence normalized to [-1, 1].
//
// Channels records the channel count of the source; Samples always holds the
// first channel only. A Signal must not be modified after it is produced.
type Signal struct {
	Samples    []float64
	SampleRate int
	Channels   int
}

// Len returns the number of samples.
func (s *Signal) Len() int {
	return len(s.Samples)
}

// Duration returns the playback duration of the signal.
func (s *Signal) Duration() time.Duration {
	if s.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(s.Samples)) * time.Second / time.Duration(s.SampleRate)
}

// Normalize converts interleaved little-endian int16 PCM into float samples
// of the first channel, dividing by 32768. Trailing bytes that do not form a
// full frame are ignored.
func Normalize(data []byte, channels int) []float64 {
	if channels < 1 {
		channels = 1
	}
	stride := 2 * channels
	n := len(data) / stride
	out := make([]float64, n)
	for i := range n {
		s := int16(binary.LittleEndian.Uint16(data[i*stride:]))
		out[i] = float64(s) / 32768.0
	}
	return out
}

// Denormalize converts float samples back to little-endian int16 mono PCM.
// Values are rounded to the nearest integer and clamped to the int16 range,
// so Normalize followed by Denormalize reproduces the original samples.
func Denormalize(samples []float64) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := math.Round(s * 32768.0)
		if v > math.MaxInt16 {
			v = math.MaxInt16
		} else if v < math.MinInt16 {
			v = math.MinInt16
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v)))
	}
	return out
}
