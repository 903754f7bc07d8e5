package speaker

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
)

// Hasher projects embedding vectors into compact locality-sensitive hashes
// using random hyperplanes.
//
// Each of the bits hyperplanes contributes one bit: 1 if the vector lies on
// its positive side. The bits are rendered as uppercase hex, so 16 bits
// yield four characters such as "A3F8". Nearby embeddings share hashes with
// high probability, and truncating a hash gives a coarser bucket:
//
//	"A3F8"  16-bit
//	"A3F"   12-bit
//	"A3"     8-bit
type Hasher struct {
	dim    int
	planes [][]float64 // bits × dim, unit rows
}

// NewHasher creates a Hasher for dim-dimensional vectors. bits must be a
// positive multiple of 4. The same seed always yields the same hyperplanes.
func NewHasher(dim, bits int, seed uint64) (*Hasher, error) {
	if bits <= 0 || bits%4 != 0 {
		return nil, fmt.Errorf("%w: %d bits is not a positive multiple of 4", ErrHasher, bits)
	}
	if dim <= 0 {
		return nil, fmt.Errorf("%w: dimension %d", ErrHasher, dim)
	}

	rng := rand.New(rand.NewPCG(seed, seed^0xdeadbeef))
	planes := make([][]float64, bits)
	for i := range planes {
		plane := make([]float64, dim)
		var norm float64
		for j := range plane {
			plane[j] = rng.NormFloat64()
			norm += plane[j] * plane[j]
		}
		if norm = math.Sqrt(norm); norm > 0 {
			for j := range plane {
				plane[j] /= norm
			}
		}
		planes[i] = plane
	}
	return &Hasher{dim: dim, planes: planes}, nil
}

// Hash returns the uppercase hex hash of v.
func (h *Hasher) Hash(v []float32) (string, error) {
	if len(v) != h.dim {
		return "", fmt.Errorf("%w: vector has %d values, hasher expects %d", ErrHasher, len(v), h.dim)
	}
	var sb strings.Builder
	sb.Grow(len(h.planes) / 4)
	for i := 0; i < len(h.planes); i += 4 {
		nibble := 0
		for b := range 4 {
			var dot float64
			for j, p := range h.planes[i+b] {
				dot += p * float64(v[j])
			}
			if dot > 0 {
				nibble |= 1 << (3 - b)
			}
		}
		sb.WriteByte("0123456789ABCDEF"[nibble])
	}
	return sb.String(), nil
}

// Label returns the voice label of v, e.g. "voice:A3F8".
func (h *Hasher) Label(v []float32) (string, error) {
	hash, err := h.Hash(v)
	if err != nil {
		return "", err
	}
	return VoiceLabel(hash), nil
}

// Bits returns the number of hash bits.
func (h *Hasher) Bits() int { return len(h.planes) }

// Dim returns the expected vector dimension.
func (h *Hasher) Dim() int { return h.dim }

// VoiceLabel prefixes a hash as a voice label.
func VoiceLabel(hash string) string {
	return "voice:" + hash
}
