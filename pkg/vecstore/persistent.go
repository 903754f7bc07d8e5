package vecstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/haivivi/voxprint/pkg/kv"
)

// Persistent is a Store that writes points through to a kv.Store. Searches
// are served from memory.
//
// Layout:
//
//	{collection}:meta     → dimension (decimal)
//	{collection}:pt:{id}  → msgpack-encoded Point
type Persistent struct {
	kv         kv.Store
	collection string
	mem        *Memory
}

// OpenPersistent loads the named collection from store, creating it with
// dimension dim if it does not exist. An existing collection of another
// dimension fails with ErrDimension. The caller keeps ownership of store.
func OpenPersistent(ctx context.Context, store kv.Store, collection string, dim int) (*Persistent, error) {
	if err := (kv.Key{collection}).Validate(); err != nil {
		return nil, fmt.Errorf("vecstore: collection %q: %w", collection, err)
	}
	mem, err := NewMemory(dim)
	if err != nil {
		return nil, err
	}
	p := &Persistent{kv: store, collection: collection, mem: mem}

	raw, err := store.Get(ctx, p.metaKey())
	switch {
	case errors.Is(err, kv.ErrNotFound):
		if err := store.Set(ctx, p.metaKey(), []byte(strconv.Itoa(dim))); err != nil {
			return nil, fmt.Errorf("vecstore: create collection %s: %w", collection, err)
		}
		return p, nil
	case err != nil:
		return nil, fmt.Errorf("vecstore: open collection %s: %w", collection, err)
	}
	stored, err := strconv.Atoi(string(raw))
	if err != nil {
		return nil, fmt.Errorf("vecstore: collection %s: corrupt meta %q", collection, raw)
	}
	if stored != dim {
		return nil, fmt.Errorf("%w: collection %s holds %d-dimensional vectors, want %d",
			ErrDimension, collection, stored, dim)
	}

	var points []Point
	for e, err := range store.List(ctx, kv.Key{collection, "pt"}) {
		if err != nil {
			return nil, fmt.Errorf("vecstore: load collection %s: %w", collection, err)
		}
		var pt Point
		if err := msgpack.Unmarshal(e.Value, &pt); err != nil {
			return nil, fmt.Errorf("vecstore: decode %s: %w", e.Key, err)
		}
		points = append(points, pt)
	}
	if err := mem.Upsert(ctx, points); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Persistent) metaKey() kv.Key { return kv.Key{p.collection, "meta"} }

func (p *Persistent) pointKey(id string) kv.Key { return kv.Key{p.collection, "pt", id} }

// Collection returns the collection name.
func (p *Persistent) Collection() string { return p.collection }

func (p *Persistent) Dimension() int { return p.mem.Dimension() }

func (p *Persistent) Upsert(ctx context.Context, points []Point) error {
	if err := checkPoints(p.mem.Dimension(), points); err != nil {
		return err
	}
	entries := make([]kv.Entry, len(points))
	for i, pt := range points {
		b, err := msgpack.Marshal(&pt)
		if err != nil {
			return fmt.Errorf("vecstore: encode %s: %w", pt.ID, err)
		}
		entries[i] = kv.Entry{Key: p.pointKey(pt.ID), Value: b}
	}
	if err := p.kv.BatchSet(ctx, entries); err != nil {
		return fmt.Errorf("vecstore: persist: %w", err)
	}
	return p.mem.Upsert(ctx, points)
}

func (p *Persistent) Search(ctx context.Context, query []float32, limit int) ([]Match, error) {
	return p.mem.Search(ctx, query, limit)
}

func (p *Persistent) Delete(ctx context.Context, ids ...string) error {
	keys := make([]kv.Key, len(ids))
	for i, id := range ids {
		keys[i] = p.pointKey(id)
	}
	if err := p.kv.BatchDelete(ctx, keys); err != nil {
		return fmt.Errorf("vecstore: delete: %w", err)
	}
	return p.mem.Delete(ctx, ids...)
}

func (p *Persistent) Len() int { return p.mem.Len() }

// Close releases the in-memory view. The kv.Store stays open.
func (p *Persistent) Close() error { return p.mem.Close() }

var _ Store = (*Persistent)(nil)
