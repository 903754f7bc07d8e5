package wav

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/haivivi/voxprint/pkg/audio/pcm"
)

// WriteHeader writes a canonical 44-byte PCM header for dataSize bytes of
// sample data in format f.
func WriteHeader(w io.Writer, f pcm.Format, dataSize int64) error {
	if !f.Valid() {
		return fmt.Errorf("wav: invalid format %+v", f)
	}
	if dataSize < 0 || dataSize > math.MaxUint32-36 {
		return fmt.Errorf("wav: data size %d out of range", dataSize)
	}

	var hdr [HeaderSize]byte
	le := binary.LittleEndian
	copy(hdr[0:], "RIFF")
	le.PutUint32(hdr[4:], uint32(36+dataSize))
	copy(hdr[8:], "WAVE")
	copy(hdr[12:], "fmt ")
	le.PutUint32(hdr[16:], 16)
	le.PutUint16(hdr[20:], tagPCM)
	le.PutUint16(hdr[22:], uint16(f.Channels))
	le.PutUint32(hdr[24:], uint32(f.SampleRate))
	le.PutUint32(hdr[28:], uint32(f.BytesRate()))
	le.PutUint16(hdr[32:], uint16(f.FrameBytes()))
	le.PutUint16(hdr[34:], uint16(f.BitDepth))
	copy(hdr[36:], "data")
	le.PutUint32(hdr[40:], uint32(dataSize))

	_, err := w.Write(hdr[:])
	return err
}

// Encode writes a complete WAV stream: header followed by data.
// An odd-sized data chunk is padded with one zero byte.
func Encode(w io.Writer, f pcm.Format, data []byte) error {
	if err := WriteHeader(w, f, int64(len(data))); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	if len(data)%2 == 1 {
		_, err := w.Write([]byte{0})
		return err
	}
	return nil
}
