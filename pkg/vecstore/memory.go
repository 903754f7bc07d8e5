package vecstore

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"sync"
)

// Memory is a brute-force in-memory Store.
type Memory struct {
	dim int

	mu     sync.RWMutex
	points map[string]Point
	closed bool
}

// NewMemory creates an empty store for vectors of length dim.
func NewMemory(dim int) (*Memory, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("%w: dimension %d", ErrDimension, dim)
	}
	return &Memory{dim: dim, points: make(map[string]Point)}, nil
}

func (m *Memory) Dimension() int { return m.dim }

func (m *Memory) Upsert(_ context.Context, points []Point) error {
	if err := checkPoints(m.dim, points); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	for _, p := range points {
		p.Vector = slices.Clone(p.Vector)
		m.points[p.ID] = p
	}
	return nil
}

// Search scans every point. Ties are ordered by ID.
func (m *Memory) Search(ctx context.Context, query []float32, limit int) ([]Match, error) {
	if len(query) != m.dim {
		return nil, fmt.Errorf("%w: query has %d values, store expects %d", ErrDimension, len(query), m.dim)
	}
	if limit <= 0 {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	matches := make([]Match, 0, len(m.points))
	for _, p := range m.points {
		matches = append(matches, Match{
			ID:      p.ID,
			Score:   CosineSimilarity(query, p.Vector),
			Payload: p.Payload,
		})
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	slices.SortFunc(matches, func(a, b Match) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return matches[:min(limit, len(matches))], nil
}

func (m *Memory) Delete(_ context.Context, ids ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	for _, id := range ids {
		delete(m.points, id)
	}
	return nil
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.points)
}

// Get returns the point with the given ID.
func (m *Memory) Get(id string) (Point, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.points[id]
	return p, ok
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.points = nil
	m.mu.Unlock()
	return nil
}

var _ Store = (*Memory)(nil)

// CosineSimilarity returns the cosine of the angle between a and b, in
// [-1, 1]. It returns 0 if either vector has zero norm or the lengths differ.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		ai, bi := float64(a[i]), float64(b[i])
		dot += ai * bi
		na += ai * ai
		nb += bi * bi
	}
	if na == 0 || nb == 0 {
		return 0
	}
	s := dot / (math.Sqrt(na) * math.Sqrt(nb))
	return float32(max(-1, min(1, s)))
}
