package voiceprint

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Mode selects the embedding granularity.
type Mode string

const (
	// ModeSequence emits one combined vector per frame.
	ModeSequence Mode = "sequence"

	// ModeAggregate emits one pooled vector per recording.
	ModeAggregate Mode = "aggregate"
)

// ParseMode validates a mode name. The empty string selects ModeSequence.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeSequence:
		return ModeSequence, nil
	case ModeAggregate:
		return ModeAggregate, nil
	}
	return "", fmt.Errorf("%w: unknown mode %q", ErrConfig, s)
}

// Normalization selects how descriptors are scaled before combining.
type Normalization string

const (
	// NormPerFrame scales every frame's descriptor to unit L2 norm.
	NormPerFrame Normalization = "per_frame"

	// NormGlobal divides every entry by the Frobenius norm of the whole
	// descriptor matrix. Frames of different energy keep their relative
	// scale. Kept for compatibility with existing vector collections.
	NormGlobal Normalization = "global"

	// NormNone leaves descriptors unscaled.
	NormNone Normalization = "none"
)

// ParseNormalization validates a normalization name. The empty string
// selects NormPerFrame.
func ParseNormalization(s string) (Normalization, error) {
	switch Normalization(s) {
	case "", NormPerFrame:
		return NormPerFrame, nil
	case NormGlobal, NormNone:
		return Normalization(s), nil
	}
	return "", fmt.Errorf("%w: unknown normalization %q", ErrConfig, s)
}

// Combined is the concatenation of a frame's static descriptor and its delta.
type Combined struct {
	Frame  int       `json:"frame" yaml:"frame"`
	Vector []float64 `json:"vector" yaml:"vector"`
}

// Assembler normalizes descriptors and combines static and delta
// coefficients into embedding vectors.
type Assembler struct {
	numCoeffs int
	mode      Mode
	norm      Normalization
}

// NewAssembler creates an Assembler for descriptors of numCoeffs values.
func NewAssembler(numCoeffs int, mode Mode, norm Normalization) (*Assembler, error) {
	if numCoeffs < 1 {
		return nil, fmt.Errorf("%w: %d coefficients", ErrConfig, numCoeffs)
	}
	mode, err := ParseMode(string(mode))
	if err != nil {
		return nil, err
	}
	norm, err = ParseNormalization(string(norm))
	if err != nil {
		return nil, err
	}
	return &Assembler{numCoeffs: numCoeffs, mode: mode, norm: norm}, nil
}

// Mode returns the configured output mode.
func (a *Assembler) Mode() Mode { return a.mode }

// Normalization returns the configured normalization.
func (a *Assembler) Normalization() Normalization { return a.norm }

// Dimension returns the length of each emitted vector: 2×coefficients in
// sequence mode, 4×coefficients in aggregate mode.
func (a *Assembler) Dimension() int {
	if a.mode == ModeAggregate {
		return 4 * a.numCoeffs
	}
	return 2 * a.numCoeffs
}

// CheckDimension reports ErrConfig if storeDim differs from Dimension.
func (a *Assembler) CheckDimension(storeDim int) error {
	if storeDim != a.Dimension() {
		return fmt.Errorf("%w: pipeline emits %d-dimensional %s vectors but the vector store expects %d",
			ErrConfig, a.Dimension(), a.mode, storeDim)
	}
	return nil
}

// Normalize returns a scaled copy of the descriptor matrix. Rows with zero
// norm (or a zero-norm matrix under NormGlobal) are copied unscaled.
func (a *Assembler) Normalize(static [][]float64) ([][]float64, error) {
	if err := a.checkRows(static); err != nil {
		return nil, err
	}
	out := make([][]float64, len(static))
	switch a.norm {
	case NormGlobal:
		sq := 0.0
		for _, row := range static {
			n := floats.Norm(row, 2)
			sq += n * n
		}
		scale := 1.0
		if g := math.Sqrt(sq); g > 0 {
			scale = 1 / g
		}
		for t, row := range static {
			out[t] = floats.ScaleTo(make([]float64, len(row)), scale, row)
		}
	case NormNone:
		for t, row := range static {
			out[t] = append([]float64(nil), row...)
		}
	default:
		for t, row := range static {
			scale := 1.0
			if n := floats.Norm(row, 2); n > 0 {
				scale = 1 / n
			}
			out[t] = floats.ScaleTo(make([]float64, len(row)), scale, row)
		}
	}
	return out, nil
}

// Combine concatenates static[i] and delta[i] for every i. frames gives the
// source frame index of each row.
func (a *Assembler) Combine(frames []int, static, delta [][]float64) ([]Combined, error) {
	if len(static) != len(delta) || len(static) != len(frames) {
		return nil, fmt.Errorf("%w: %d frames, %d static rows, %d delta rows",
			ErrDimension, len(frames), len(static), len(delta))
	}
	if err := a.checkRows(static); err != nil {
		return nil, err
	}
	if err := a.checkRows(delta); err != nil {
		return nil, err
	}
	out := make([]Combined, len(static))
	for i := range static {
		v := make([]float64, 0, 2*a.numCoeffs)
		v = append(v, static[i]...)
		v = append(v, delta[i]...)
		out[i] = Combined{Frame: frames[i], Vector: v}
	}
	return out, nil
}

// Pool computes the per-dimension mean followed by the per-dimension
// population standard deviation across all combined vectors.
func (a *Assembler) Pool(combined []Combined) ([]float64, error) {
	if len(combined) == 0 {
		return nil, ErrEmptySequence
	}
	dim := 2 * a.numCoeffs
	col := make([]float64, len(combined))
	out := make([]float64, 2*dim)
	for k := range dim {
		for t, c := range combined {
			if len(c.Vector) != dim {
				return nil, fmt.Errorf("%w: frame %d has %d values, want %d", ErrDimension, c.Frame, len(c.Vector), dim)
			}
			col[t] = c.Vector[k]
		}
		out[k], out[dim+k] = stat.PopMeanStdDev(col, nil)
	}
	return out, nil
}

func (a *Assembler) checkRows(rows [][]float64) error {
	for t, row := range rows {
		if len(row) != a.numCoeffs {
			return fmt.Errorf("%w: row %d has %d values, want %d", ErrDimension, t, len(row), a.numCoeffs)
		}
	}
	return nil
}
