// Package vecstore stores embedding vectors with speaker payloads and
// answers nearest-neighbor queries under cosine similarity.
//
// [Memory] is a brute-force in-memory store. [Persistent] keeps the same
// in-memory view and writes every point through to a kv.Store, msgpack
// encoded under {collection}:pt:{id}, so a collection survives restarts.
//
// Every store has a fixed dimension chosen at construction. Upserting or
// searching with a vector of another length fails with ErrDimension.
package vecstore

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrDimension is returned for vectors whose length differs from the
	// store dimension.
	ErrDimension = errors.New("vecstore: dimension mismatch")

	// ErrInvalidPoint is returned for points without an ID.
	ErrInvalidPoint = errors.New("vecstore: invalid point")

	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("vecstore: closed")
)

// Payload is the metadata attached to a stored vector.
type Payload struct {
	Speaker string `msgpack:"speaker" json:"speaker" yaml:"speaker"`
	Source  string `msgpack:"source" json:"source" yaml:"source"` // recording the vector came from
	Index   int    `msgpack:"index" json:"index" yaml:"index"`    // vector position within the recording
	Label   string `msgpack:"label,omitempty" json:"label,omitempty" yaml:"label,omitempty"`
}

// Point is a stored vector.
type Point struct {
	ID      string    `msgpack:"id" json:"id" yaml:"id"`
	Vector  []float32 `msgpack:"vector" json:"vector" yaml:"vector"`
	Payload Payload   `msgpack:"payload" json:"payload" yaml:"payload"`
}

// Match is a search result.
type Match struct {
	ID string `json:"id" yaml:"id"`

	// Score is the cosine similarity to the query, in [-1, 1]. Higher is
	// closer; 1 means the same direction.
	Score float32 `json:"score" yaml:"score"`

	Payload Payload `json:"payload" yaml:"payload"`
}

// Store is a vector collection. Implementations are safe for concurrent use.
type Store interface {
	// Dimension returns the required vector length.
	Dimension() int

	// Upsert inserts points, replacing points with the same ID.
	Upsert(ctx context.Context, points []Point) error

	// Search returns up to limit matches ordered by descending score.
	Search(ctx context.Context, query []float32, limit int) ([]Match, error)

	// Delete removes points by ID. Unknown IDs are ignored.
	Delete(ctx context.Context, ids ...string) error

	// Len returns the number of stored points.
	Len() int

	Close() error
}

func checkPoints(dim int, points []Point) error {
	for i, p := range points {
		if p.ID == "" {
			return fmt.Errorf("%w: point %d has no id", ErrInvalidPoint, i)
		}
		if len(p.Vector) != dim {
			return fmt.Errorf("%w: point %s has %d values, store expects %d", ErrDimension, p.ID, len(p.Vector), dim)
		}
	}
	return nil
}
