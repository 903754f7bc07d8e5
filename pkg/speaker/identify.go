package speaker

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/haivivi/voxprint/pkg/vecstore"
)

// Options tunes enrollment and identification.
type Options struct {
	// Hasher, if set, labels enrolled points and verdicts with a voice hash.
	Hasher *Hasher

	// MinScore discards nearest matches scoring below it; their votes go
	// to Unknown. Zero counts every match.
	MinScore float32

	// NewID generates point IDs. Defaults to random UUIDs.
	NewID func() string
}

func (o Options) newID() string {
	if o.NewID != nil {
		return o.NewID()
	}
	return uuid.NewString()
}

// Points builds one store point per vector for the given speaker.
func Points(speaker, source string, vectors [][]float32, opts Options) ([]vecstore.Point, error) {
	if len(vectors) == 0 {
		return nil, ErrEmpty
	}
	points := make([]vecstore.Point, len(vectors))
	for i, v := range vectors {
		p := vecstore.Point{
			ID:     opts.newID(),
			Vector: v,
			Payload: vecstore.Payload{
				Speaker: speaker,
				Source:  source,
				Index:   i,
			},
		}
		if opts.Hasher != nil {
			label, err := opts.Hasher.Label(v)
			if err != nil {
				return nil, err
			}
			p.Payload.Label = label
		}
		points[i] = p
	}
	return points, nil
}

// Enroll stores every vector of a recording under the given speaker and
// returns the stored points.
func Enroll(ctx context.Context, store vecstore.Store, speaker, source string, vectors [][]float32, opts Options) ([]vecstore.Point, error) {
	points, err := Points(speaker, source, vectors, opts)
	if err != nil {
		return nil, err
	}
	if err := store.Upsert(ctx, points); err != nil {
		return nil, fmt.Errorf("speaker: enroll %s: %w", speaker, err)
	}
	return points, nil
}

// Verdict is the outcome of Identify.
type Verdict struct {
	// Speaker is the speaker with the most votes.
	Speaker string `json:"speaker" yaml:"speaker"`

	// Share is Speaker's fraction of all votes.
	Share float64 `json:"share" yaml:"share"`

	// Votes counts nearest-neighbor votes per speaker.
	Votes map[string]int `json:"votes" yaml:"votes"`

	// Total is the number of query vectors.
	Total int `json:"total" yaml:"total"`

	// Label is the voice hash label of the mean query vector, if a Hasher
	// was configured.
	Label string `json:"label,omitempty" yaml:"label,omitempty"`
}

// Ranking returns speakers ordered by descending votes, ties by name.
func (v *Verdict) Ranking() []string {
	names := make([]string, 0, len(v.Votes))
	for name := range v.Votes {
		names = append(names, name)
	}
	slices.SortFunc(names, func(a, b string) int {
		if c := cmp.Compare(v.Votes[b], v.Votes[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	return names
}

// Identify finds the nearest stored point for every query vector and
// returns the speaker with the most votes.
func Identify(ctx context.Context, store vecstore.Store, vectors [][]float32, opts Options) (*Verdict, error) {
	if len(vectors) == 0 {
		return nil, ErrEmpty
	}
	v := &Verdict{Votes: make(map[string]int), Total: len(vectors)}
	for i, q := range vectors {
		matches, err := store.Search(ctx, q, 1)
		if err != nil {
			return nil, fmt.Errorf("speaker: search vector %d: %w", i, err)
		}
		if len(matches) == 0 {
			return nil, ErrNoMatch
		}
		name := matches[0].Payload.Speaker
		if name == "" || matches[0].Score < opts.MinScore {
			name = Unknown
		}
		v.Votes[name]++
	}

	v.Speaker = v.Ranking()[0]
	v.Share = float64(v.Votes[v.Speaker]) / float64(v.Total)

	if opts.Hasher != nil {
		label, err := opts.Hasher.Label(Mean(vectors))
		if err != nil {
			return nil, err
		}
		v.Label = label
	}
	return v, nil
}

// Mean returns the element-wise mean of vectors, sized by the first one.
// It returns nil for no vectors.
func Mean(vectors [][]float32) []float32 {
	if len(vectors) == 0 {
		return nil
	}
	out := make([]float32, len(vectors[0]))
	for _, v := range vectors {
		for i, x := range v {
			if i < len(out) {
				out[i] += x
			}
		}
	}
	n := float32(len(vectors))
	for i := range out {
		out[i] /= n
	}
	return out
}
