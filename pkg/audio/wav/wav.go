// Package wav reads and writes RIFF/WAVE containers holding 16-bit linear PCM.
//
// Only the container is handled here; samples are converted with package pcm.
// Any bit depth other than 16 is rejected with [ErrUnsupported]. Multi-channel
// input is accepted but only the first channel is decoded.
package wav

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/haivivi/voxprint/pkg/audio/pcm"
)

// Sentinel errors.
var (
	// ErrDecode is returned for malformed, truncated or absent headers.
	ErrDecode = errors.New("wav: decode error")

	// ErrUnsupported is returned for well-formed headers describing audio
	// this package does not handle. It wraps ErrDecode.
	ErrUnsupported = fmt.Errorf("%w: unsupported format", ErrDecode)

	// ErrShortHeader is returned by ParseHeader when more bytes are needed
	// to finish parsing. It is never returned once eof is true.
	ErrShortHeader = errors.New("wav: short header")
)

// MaxHeaderSize bounds how many bytes may precede the data chunk.
const MaxHeaderSize = 1 << 20

// HeaderSize is the size of the canonical header written by WriteHeader.
const HeaderSize = 44

const (
	tagPCM        = 0x0001
	tagExtensible = 0xFFFE
)

// Header is the parsed prefix of a WAV stream.
type Header struct {
	Format pcm.Format

	// DataOffset is the byte offset of the first sample.
	DataOffset int64

	// DataSize is the declared size of the data chunk, or -1 when the
	// writer left it unset (streamed WAV).
	DataSize int64
}

// ParseHeader parses the RIFF header, the fmt chunk and the data chunk
// header from the beginning of b. Chunks other than fmt and data are skipped.
//
// When b ends before the data chunk begins, ParseHeader returns
// ErrShortHeader if eof is false and an error wrapping ErrDecode otherwise.
func ParseHeader(b []byte, eof bool) (Header, error) {
	short := func(what string) (Header, error) {
		if eof || len(b) >= MaxHeaderSize {
			return Header{}, fmt.Errorf("%w: truncated %s", ErrDecode, what)
		}
		return Header{}, ErrShortHeader
	}

	if len(b) < 12 {
		return short("RIFF header")
	}
	if string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return Header{}, fmt.Errorf("%w: not a RIFF/WAVE stream", ErrDecode)
	}

	var (
		h      Header
		hasFmt bool
		pos    = int64(12)
		le     = binary.LittleEndian
	)
	for {
		if int64(len(b)) < pos+8 {
			return short("chunk header")
		}
		id := string(b[pos : pos+4])
		size := int64(le.Uint32(b[pos+4:]))
		body := pos + 8

		switch id {
		case "data":
			if !hasFmt {
				return Header{}, fmt.Errorf("%w: data chunk before fmt chunk", ErrDecode)
			}
			h.DataOffset = body
			h.DataSize = size
			if size == 0 || size == 0xFFFFFFFF {
				h.DataSize = -1
			}
			return h, nil

		case "fmt ":
			if int64(len(b)) < body+size {
				return short("fmt chunk")
			}
			f, err := parseFmt(b[body : body+size])
			if err != nil {
				return Header{}, err
			}
			h.Format = f
			hasFmt = true
		}

		pos = body + size + size&1
		if pos > MaxHeaderSize {
			return Header{}, fmt.Errorf("%w: no data chunk within %d bytes", ErrDecode, MaxHeaderSize)
		}
	}
}

func parseFmt(c []byte) (pcm.Format, error) {
	if len(c) < 16 {
		return pcm.Format{}, fmt.Errorf("%w: fmt chunk too small (%d bytes)", ErrDecode, len(c))
	}
	le := binary.LittleEndian
	tag := le.Uint16(c[0:])
	f := pcm.Format{
		Channels:   int(le.Uint16(c[2:])),
		SampleRate: int(le.Uint32(c[4:])),
		BitDepth:   int(le.Uint16(c[14:])),
	}
	if tag == tagExtensible {
		if len(c) < 26 {
			return pcm.Format{}, fmt.Errorf("%w: extensible fmt chunk too small", ErrDecode)
		}
		// The sub-format GUID starts with the actual format tag.
		tag = le.Uint16(c[24:])
	}
	if f.Channels == 0 || f.SampleRate == 0 {
		return pcm.Format{}, fmt.Errorf("%w: invalid fmt (channels=%d, rate=%d)", ErrDecode, f.Channels, f.SampleRate)
	}
	if tag != tagPCM {
		return pcm.Format{}, fmt.Errorf("%w: format tag 0x%04x is not linear PCM", ErrUnsupported, tag)
	}
	if f.BitDepth != 16 {
		return pcm.Format{}, fmt.Errorf("%w: %d-bit samples (only 16-bit PCM)", ErrUnsupported, f.BitDepth)
	}
	return f, nil
}
