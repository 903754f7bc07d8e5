package wav

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/haivivi/voxprint/pkg/audio/pcm"
)

// Decoder reads a complete WAV stream into a pcm.Signal.
//
// The zero value is usable and performs no sample-rate check.
type Decoder struct {
	// ExpectedRate is the sample rate the caller assumes. A stream declaring
	// a different rate is still decoded at its own rate, and a warning is
	// logged. Zero disables the check.
	ExpectedRate int

	// Logger receives the sample-rate warning. Defaults to slog.Default().
	Logger *slog.Logger
}

// Decode reads r to the end and returns the first channel as a normalized
// signal. Header problems return an error wrapping ErrDecode.
func (d *Decoder) Decode(r io.Reader) (*pcm.Signal, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("wav: read: %w", err)
	}
	h, err := ParseHeader(data, true)
	if err != nil {
		return nil, err
	}

	body := data[h.DataOffset:]
	if h.DataSize >= 0 && int64(len(body)) > h.DataSize {
		body = body[:h.DataSize]
	}

	if d.ExpectedRate > 0 && h.Format.SampleRate != d.ExpectedRate {
		d.logger().Warn("wav: sample rate differs from expected; timing uses the actual rate",
			"rate", h.Format.SampleRate,
			"expected", d.ExpectedRate)
	}

	return &pcm.Signal{
		Samples:    pcm.Normalize(body, h.Format.Channels),
		SampleRate: h.Format.SampleRate,
		Channels:   h.Format.Channels,
	}, nil
}

// DecodeFile opens and decodes the named file.
func (d *Decoder) DecodeFile(path string) (*pcm.Signal, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return d.Decode(f)
}

func (d *Decoder) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}
