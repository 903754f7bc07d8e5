package voiceprint

import "fmt"

// DefaultDeltaOrder is the regression half-width N used for delta features.
const DefaultDeltaOrder = 2

// Delta computes first-order regression coefficients over a descriptor
// sequence:
//
//	delta[t][k] = Σ_{n=1..N} n·(desc[t+n][k] − desc[t−n][k]) / (2·Σ_{n=1..N} n²)
//
// Neighbor indexes are clamped to [0, len(desc)-1], so boundary frames are
// replicated rather than zero-padded. The input is not modified; the result
// has the same length and row dimension.
func Delta(desc [][]float64, order int) ([][]float64, error) {
	if order < 1 {
		return nil, fmt.Errorf("%w: delta order %d", ErrConfig, order)
	}
	if len(desc) == 0 {
		return [][]float64{}, nil
	}
	dim := len(desc[0])
	for t, row := range desc {
		if len(row) != dim {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d", ErrDimension, t, len(row), dim)
		}
	}

	denom := 0.0
	for n := 1; n <= order; n++ {
		denom += float64(n * n)
	}
	denom *= 2

	last := len(desc) - 1
	out := make([][]float64, len(desc))
	for t := range desc {
		d := make([]float64, dim)
		for n := 1; n <= order; n++ {
			next := desc[min(last, t+n)]
			prev := desc[max(0, t-n)]
			for k := range d {
				d[k] += float64(n) * (next[k] - prev[k])
			}
		}
		for k := range d {
			d[k] /= denom
		}
		out[t] = d
	}
	return out, nil
}
