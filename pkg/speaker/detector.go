package speaker

import "fmt"

// Status classifies a window of consecutive speaker observations.
type Status int

const (
	// StatusUnknown means no speaker dominates the window.
	StatusUnknown Status = iota
	// StatusSingle means one speaker dominates the window.
	StatusSingle
	// StatusOverlap means two speakers together dominate the window.
	StatusOverlap
)

func (s Status) String() string {
	switch s {
	case StatusUnknown:
		return "unknown"
	case StatusSingle:
		return "single"
	case StatusOverlap:
		return "overlap"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// MarshalText renders the status name, for JSON and YAML output.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a status name written by MarshalText.
func (s *Status) UnmarshalText(b []byte) error {
	switch string(b) {
	case "unknown":
		*s = StatusUnknown
	case "single":
		*s = StatusSingle
	case "overlap":
		*s = StatusOverlap
	default:
		return fmt.Errorf("speaker: unknown status %q", b)
	}
	return nil
}

// Turn is the Detector's view of the current window.
type Turn struct {
	Status Status `json:"status" yaml:"status"`

	// Speaker is the dominant speaker; empty for StatusUnknown.
	Speaker string `json:"speaker,omitempty" yaml:"speaker,omitempty"`

	// Candidates lists the dominant speaker, or both speakers for
	// StatusOverlap.
	Candidates []string `json:"candidates,omitempty" yaml:"candidates,omitempty"`

	// Confidence is the window share of the dominant speaker (single or
	// unknown) or of the top two speakers (overlap).
	Confidence float32 `json:"confidence" yaml:"confidence"`
}

// Detector keeps a sliding window of the most recent speaker observations,
// typically one per chunk of a long recording, and classifies it.
//
// A speaker holding at least the minimum ratio of the window is a single
// speaker. Otherwise, if the top two together reach it, the window is an
// overlap. Anything else is unknown.
type Detector struct {
	window   []string // circular buffer
	pos      int
	filled   int
	minRatio float32
}

// DetectorOption configures a Detector.
type DetectorOption func(*Detector)

// WithWindowSize sets the sliding window size (default 5).
func WithWindowSize(n int) DetectorOption {
	return func(d *Detector) {
		if n > 0 {
			d.window = make([]string, n)
		}
	}
}

// WithMinRatio sets the dominance ratio in (0, 1] (default 0.6).
func WithMinRatio(r float32) DetectorOption {
	return func(d *Detector) {
		if r > 0 && r <= 1 {
			d.minRatio = r
		}
	}
}

// NewDetector creates a Detector.
func NewDetector(opts ...DetectorOption) *Detector {
	d := &Detector{
		window:   make([]string, 5),
		minRatio: 0.6,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Feed records the next observed speaker and classifies the window. It
// returns nil until the window holds two observations.
func (d *Detector) Feed(speaker string) *Turn {
	d.window[d.pos] = speaker
	d.pos = (d.pos + 1) % len(d.window)
	if d.filled < len(d.window) {
		d.filled++
	}
	if d.filled < 2 {
		return nil
	}

	counts := make(map[string]int, 4)
	order := make([]string, 0, 4)
	for i := range d.filled {
		s := d.window[(d.pos-d.filled+i+len(d.window))%len(d.window)]
		if counts[s] == 0 {
			order = append(order, s)
		}
		counts[s]++
	}

	// Ties go to the speaker seen first in the window.
	var top1, top2 string
	var c1, c2 int
	for _, s := range order {
		switch c := counts[s]; {
		case c > c1:
			top2, c2 = top1, c1
			top1, c1 = s, c
		case c > c2:
			top2, c2 = s, c
		}
	}

	total := float32(d.filled)
	if float32(c1)/total >= d.minRatio {
		return &Turn{
			Status:     StatusSingle,
			Speaker:    top1,
			Candidates: []string{top1},
			Confidence: float32(c1) / total,
		}
	}
	if c2 > 0 {
		if r := float32(c1+c2) / total; r >= d.minRatio {
			return &Turn{
				Status:     StatusOverlap,
				Speaker:    top1,
				Candidates: []string{top1, top2},
				Confidence: r,
			}
		}
	}
	return &Turn{Status: StatusUnknown, Confidence: float32(c1) / total}
}

// Reset clears the window.
func (d *Detector) Reset() {
	d.pos, d.filled = 0, 0
	clear(d.window)
}
