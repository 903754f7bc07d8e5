package chunker

import (
	"errors"
	"fmt"
	"time"

	"github.com/haivivi/voxprint/pkg/audio/pcm"
	"github.com/haivivi/voxprint/pkg/audio/wav"
)

// Sentinel errors.
var (
	// ErrConfig is returned for invalid chunking parameters.
	ErrConfig = errors.New("chunker: invalid config")

	// ErrIO is returned when a chunk artifact cannot be written.
	ErrIO = errors.New("chunker: write failed")

	// ErrFinished is returned by Advance or Finish on a Done state.
	ErrFinished = errors.New("chunker: stream already finished")
)

// Config controls chunking.
type Config struct {
	// ChunkDuration is the length of every full chunk (default 10s).
	ChunkDuration time.Duration `yaml:"chunk_duration" json:"chunk_duration"`

	// MinDuration is the shortest trailing remainder that still becomes a
	// final chunk (default 1s).
	MinDuration time.Duration `yaml:"min_duration" json:"min_duration"`

	// TemporalInterval is the spacing between materialized chunks. It must
	// be an integer multiple of ChunkDuration (default 10s, every chunk).
	TemporalInterval time.Duration `yaml:"temporal_interval" json:"temporal_interval"`

	// MaxChunks caps materialized full chunks per recording (default 100).
	// It is only enforced when EnforceMaxChunks is set. The final chunk is
	// never capped.
	MaxChunks        int  `yaml:"max_chunks_per_speaker" json:"max_chunks_per_speaker"`
	EnforceMaxChunks bool `yaml:"enforce_max_chunks" json:"enforce_max_chunks"`

	// Prefix is the FileStore directory chunk artifacts are written under.
	Prefix string `yaml:"prefix" json:"prefix"`
}

// DefaultConfig returns the default chunking parameters.
func DefaultConfig() Config {
	return Config{
		ChunkDuration:    10 * time.Second,
		MinDuration:      time.Second,
		TemporalInterval: 10 * time.Second,
		MaxChunks:        100,
	}
}

// Validate checks the durations and the stride relation.
func (c Config) Validate() error {
	switch {
	case c.ChunkDuration <= 0:
		return fmt.Errorf("%w: chunk duration %v", ErrConfig, c.ChunkDuration)
	case c.MinDuration < 0:
		return fmt.Errorf("%w: min duration %v", ErrConfig, c.MinDuration)
	case c.TemporalInterval <= 0:
		return fmt.Errorf("%w: temporal interval %v", ErrConfig, c.TemporalInterval)
	case c.TemporalInterval%c.ChunkDuration != 0:
		return fmt.Errorf("%w: temporal interval %v is not a multiple of chunk duration %v",
			ErrConfig, c.TemporalInterval, c.ChunkDuration)
	case c.MaxChunks < 0:
		return fmt.Errorf("%w: max chunks %d", ErrConfig, c.MaxChunks)
	}
	return nil
}

// Stride is the number of chunk slots per materialized chunk.
func (c Config) Stride() int {
	return int(c.TemporalInterval / c.ChunkDuration)
}

// Phase is the position of a State in the stream.
type Phase int

const (
	// PhaseIdle accumulates bytes until the WAV header is complete.
	PhaseIdle Phase = iota
	// PhaseStreaming cuts sample data into chunks.
	PhaseStreaming
	// PhaseDone follows Finish; the State accepts no more input.
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseStreaming:
		return "streaming"
	case PhaseDone:
		return "done"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// Action says what to do with a chunk slot.
type Action int

const (
	Materialize Action = iota
	Skip
)

func (a Action) String() string {
	if a == Materialize {
		return "materialize"
	}
	return "skip"
}

// Skip reasons.
const (
	ReasonStride = "stride"
	ReasonCap    = "cap"
	ReasonShort  = "short"
)

// Event is one chunk slot decided by the state machine.
type Event struct {
	Action    Action
	Reason    string // why the slot was skipped; empty for Materialize
	Index     int
	StartTime time.Duration
	Duration  time.Duration
	Final     bool
	Format    pcm.Format
	Data      []byte // sample bytes, Materialize only
}

// State is the chunking state machine. The zero value is an Idle state
// ready for the first bytes of a WAV stream.
//
// State is a value: Advance and Finish return the successor and leave the
// receiver unchanged for inspection. Only the returned State should be
// advanced further.
type State struct {
	Phase  Phase
	Format pcm.Format

	// Index is the next chunk index. It counts skipped slots too.
	Index int

	// Materialized counts Materialize events emitted so far.
	Materialized int

	header        []byte
	pending       []byte
	remaining     int64 // declared data bytes left, -1 if unknown
	bytesPerChunk int64
}

// BytesPerChunk reports the sample bytes in a full chunk, or 0 before the
// header has been parsed.
func (s State) BytesPerChunk() int64 { return s.bytesPerChunk }

// Buffered reports the sample bytes held for the next chunk.
func (s State) Buffered() int { return len(s.pending) }

// Advance feeds the next bytes of the stream and returns the events for
// every chunk slot completed by them.
func (s State) Advance(cfg Config, data []byte) (State, []Event, error) {
	if err := cfg.Validate(); err != nil {
		return s, nil, err
	}
	switch s.Phase {
	case PhaseDone:
		return s, nil, ErrFinished
	case PhaseIdle:
		s.header = append(s.header[:len(s.header):len(s.header)], data...)
		h, err := wav.ParseHeader(s.header, false)
		if errors.Is(err, wav.ErrShortHeader) {
			return s, nil, nil
		}
		if err != nil {
			return s, nil, err
		}
		bpc := h.Format.SamplesInDuration(cfg.ChunkDuration) * int64(h.Format.FrameBytes())
		if bpc <= 0 {
			return s, nil, fmt.Errorf("%w: chunk duration %v holds no samples at %s",
				ErrConfig, cfg.ChunkDuration, h.Format)
		}
		data = s.header[h.DataOffset:]
		s.header = nil
		s.Phase = PhaseStreaming
		s.Format = h.Format
		s.remaining = h.DataSize
		s.bytesPerChunk = bpc
	}

	if s.remaining >= 0 {
		if int64(len(data)) > s.remaining {
			data = data[:s.remaining]
		}
		s.remaining -= int64(len(data))
	}
	if len(data) == 0 {
		return s, nil, nil
	}

	buf := make([]byte, 0, len(s.pending)+len(data))
	buf = append(append(buf, s.pending...), data...)

	var events []Event
	for int64(len(buf)) >= s.bytesPerChunk {
		var ev Event
		s, ev = s.slot(cfg, buf[:s.bytesPerChunk], false)
		events = append(events, ev)
		buf = buf[s.bytesPerChunk:]
	}
	s.pending = append([]byte(nil), buf...)
	return s, events, nil
}

// Finish ends the stream. A frame-aligned remainder of at least
// cfg.MinDuration becomes a final chunk regardless of stride. Finishing
// before a complete header has been seen returns an error wrapping
// wav.ErrDecode.
func (s State) Finish(cfg Config) (State, []Event, error) {
	switch s.Phase {
	case PhaseDone:
		return s, nil, ErrFinished
	case PhaseIdle:
		if _, err := wav.ParseHeader(s.header, true); err != nil {
			return s, nil, err
		}
		return s, nil, fmt.Errorf("%w: missing header", wav.ErrDecode)
	}

	s.Phase = PhaseDone
	n := len(s.pending) - len(s.pending)%s.Format.FrameBytes()
	rest := s.pending[:n]
	s.pending = nil
	if n == 0 {
		return s, nil, nil
	}

	dur := s.Format.Duration(int64(n))
	if dur < cfg.MinDuration {
		ev := Event{
			Action:    Skip,
			Reason:    ReasonShort,
			Index:     s.Index,
			StartTime: time.Duration(s.Index) * cfg.ChunkDuration,
			Duration:  dur,
			Final:     true,
			Format:    s.Format,
		}
		s.Index++
		return s, []Event{ev}, nil
	}
	s, ev := s.slot(cfg, rest, true)
	return s, []Event{ev}, nil
}

// slot decides the chunk at s.Index and advances the index.
func (s State) slot(cfg Config, data []byte, final bool) (State, Event) {
	ev := Event{
		Index:     s.Index,
		StartTime: time.Duration(s.Index) * cfg.ChunkDuration,
		Duration:  cfg.ChunkDuration,
		Final:     final,
		Format:    s.Format,
	}
	if final {
		ev.Duration = s.Format.Duration(int64(len(data)))
	}
	s.Index++

	switch {
	case !final && ev.Index%cfg.Stride() != 0:
		ev.Action, ev.Reason = Skip, ReasonStride
	case !final && cfg.EnforceMaxChunks && cfg.MaxChunks > 0 && s.Materialized >= cfg.MaxChunks:
		ev.Action, ev.Reason = Skip, ReasonCap
	default:
		ev.Action = Materialize
		ev.Data = append([]byte(nil), data...)
		s.Materialized++
	}
	return s, ev
}
