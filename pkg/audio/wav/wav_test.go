package wav

import (
	"bytes"
	"encoding/binary"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/haivivi/voxprint/pkg/audio/pcm"
)

func encodeSamples(t *testing.T, f pcm.Format, samples []int16) []byte {
	t.Helper()
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}
	var buf bytes.Buffer
	if err := Encode(&buf, f, data); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestEncodeParseRoundTrip(t *testing.T) {
	f := pcm.L16Mono(16000)
	b := encodeSamples(t, f, []int16{1, 2, 3, 4})

	if len(b) != HeaderSize+8 {
		t.Fatalf("len = %d, want %d", len(b), HeaderSize+8)
	}
	h, err := ParseHeader(b, true)
	if err != nil {
		t.Fatal(err)
	}
	if h.Format != f {
		t.Errorf("format = %+v, want %+v", h.Format, f)
	}
	if h.DataOffset != HeaderSize {
		t.Errorf("DataOffset = %d, want %d", h.DataOffset, HeaderSize)
	}
	if h.DataSize != 8 {
		t.Errorf("DataSize = %d, want 8", h.DataSize)
	}
}

func TestParseHeaderShort(t *testing.T) {
	b := encodeSamples(t, pcm.L16Mono(16000), []int16{1, 2})

	for _, n := range []int{0, 4, 12, 20, 36, 40} {
		_, err := ParseHeader(b[:n], false)
		if !errors.Is(err, ErrShortHeader) {
			t.Errorf("prefix %d, eof=false: err = %v, want ErrShortHeader", n, err)
		}
		_, err = ParseHeader(b[:n], true)
		if !errors.Is(err, ErrDecode) {
			t.Errorf("prefix %d, eof=true: err = %v, want ErrDecode", n, err)
		}
	}
}

func TestParseHeaderSkipsUnknownChunks(t *testing.T) {
	le := binary.LittleEndian
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, le, uint32(0))
	buf.WriteString("WAVE")
	// LIST chunk with odd size (padded)
	buf.WriteString("LIST")
	binary.Write(&buf, le, uint32(3))
	buf.Write([]byte{'a', 'b', 'c', 0})
	// fmt chunk
	buf.WriteString("fmt ")
	binary.Write(&buf, le, uint32(16))
	binary.Write(&buf, le, uint16(1))
	binary.Write(&buf, le, uint16(2))
	binary.Write(&buf, le, uint32(8000))
	binary.Write(&buf, le, uint32(32000))
	binary.Write(&buf, le, uint16(4))
	binary.Write(&buf, le, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, le, uint32(0xFFFFFFFF))

	h, err := ParseHeader(buf.Bytes(), true)
	if err != nil {
		t.Fatal(err)
	}
	if h.Format.Channels != 2 || h.Format.SampleRate != 8000 {
		t.Errorf("format = %+v", h.Format)
	}
	if h.DataSize != -1 {
		t.Errorf("DataSize = %d, want -1 for streamed WAV", h.DataSize)
	}
	if h.DataOffset != int64(buf.Len()) {
		t.Errorf("DataOffset = %d, want %d", h.DataOffset, buf.Len())
	}
}

func TestParseHeaderErrors(t *testing.T) {
	good := encodeSamples(t, pcm.L16Mono(16000), nil)

	notRIFF := bytes.Clone(good)
	copy(notRIFF, "RIFX")

	bits24 := bytes.Clone(good)
	binary.LittleEndian.PutUint16(bits24[34:], 24)

	float := bytes.Clone(good)
	binary.LittleEndian.PutUint16(float[20:], 3)

	zeroRate := bytes.Clone(good)
	binary.LittleEndian.PutUint32(zeroRate[24:], 0)

	dataFirst := bytes.Clone(good)
	copy(dataFirst[12:], "data")

	tests := []struct {
		name        string
		b           []byte
		unsupported bool
	}{
		{"not riff", notRIFF, false},
		{"24-bit", bits24, true},
		{"float", float, true},
		{"zero rate", zeroRate, false},
		{"data before fmt", dataFirst, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseHeader(tt.b, true)
			if !errors.Is(err, ErrDecode) {
				t.Fatalf("err = %v, want ErrDecode", err)
			}
			if got := errors.Is(err, ErrUnsupported); got != tt.unsupported {
				t.Errorf("errors.Is(err, ErrUnsupported) = %v, want %v", got, tt.unsupported)
			}
		})
	}
}

func TestDecodeNormalizes(t *testing.T) {
	b := encodeSamples(t, pcm.L16Mono(16000), []int16{0, 16384, -32768, 32767})

	var d Decoder
	sig, err := d.Decode(bytes.NewReader(b))
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{0, 0.5, -1, 32767.0 / 32768.0}
	if sig.Len() != len(want) {
		t.Fatalf("len = %d, want %d", sig.Len(), len(want))
	}
	for i := range want {
		if sig.Samples[i] != want[i] {
			t.Errorf("sample %d = %v, want %v", i, sig.Samples[i], want[i])
		}
	}
	if sig.SampleRate != 16000 || sig.Channels != 1 {
		t.Errorf("signal rate=%d channels=%d", sig.SampleRate, sig.Channels)
	}
}

func TestDecodeUsesFirstChannel(t *testing.T) {
	f := pcm.Format{SampleRate: 16000, Channels: 2, BitDepth: 16}
	b := encodeSamples(t, f, []int16{100, -5, 200, -5, 300, -5})

	var d Decoder
	sig, err := d.Decode(bytes.NewReader(b))
	if err != nil {
		t.Fatal(err)
	}
	if sig.Len() != 3 {
		t.Fatalf("len = %d, want 3", sig.Len())
	}
	for i, v := range []int16{100, 200, 300} {
		if sig.Samples[i] != float64(v)/32768 {
			t.Errorf("sample %d = %v", i, sig.Samples[i])
		}
	}
	if sig.Channels != 2 {
		t.Errorf("Channels = %d, want source channel count 2", sig.Channels)
	}
}

func TestDecodeHonorsDataSize(t *testing.T) {
	b := encodeSamples(t, pcm.L16Mono(16000), []int16{1, 2})
	b = append(b, []byte("LIST\x04\x00\x00\x00abcd")...)

	var d Decoder
	sig, err := d.Decode(bytes.NewReader(b))
	if err != nil {
		t.Fatal(err)
	}
	if sig.Len() != 2 {
		t.Errorf("len = %d, want 2 (trailing chunk is not audio)", sig.Len())
	}
}

func TestDecodeWarnsOnRateMismatch(t *testing.T) {
	b := encodeSamples(t, pcm.L16Mono(8000), []int16{1, 2, 3})

	var logs bytes.Buffer
	d := Decoder{
		ExpectedRate: 16000,
		Logger:       slog.New(slog.NewTextHandler(&logs, nil)),
	}
	sig, err := d.Decode(bytes.NewReader(b))
	if err != nil {
		t.Fatal(err)
	}
	if sig.SampleRate != 8000 {
		t.Errorf("SampleRate = %d, want actual rate 8000", sig.SampleRate)
	}
	if !strings.Contains(logs.String(), "level=WARN") {
		t.Errorf("expected a warning, got %q", logs.String())
	}
}

func TestDecodeTruncated(t *testing.T) {
	var d Decoder
	_, err := d.Decode(strings.NewReader("RIFF\x00\x00"))
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("err = %v, want ErrDecode", err)
	}
}
