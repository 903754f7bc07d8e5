package kv

import (
	"context"
	"iter"
	"maps"
	"slices"
	"strings"
	"sync"
)

// Memory is an in-memory Store backed by a map.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory creates an empty in-memory Store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, key Key) ([]byte, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	v, ok := m.data[key.String()]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(v), nil
}

func (m *Memory) Set(_ context.Context, key Key, value []byte) error {
	if err := key.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.data[key.String()] = slices.Clone(value)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, key Key) error {
	if err := key.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.data, key.String())
	m.mu.Unlock()
	return nil
}

// List snapshots the matching entries when called; later writes are not
// observed by the returned sequence.
func (m *Memory) List(_ context.Context, prefix Key) iter.Seq2[Entry, error] {
	p := prefixOf(prefix)

	m.mu.RLock()
	keys := slices.Sorted(maps.Keys(m.data))
	entries := make([]Entry, 0, len(keys))
	for _, k := range keys {
		if strings.HasPrefix(k, p) {
			entries = append(entries, Entry{Key: parseKey(k), Value: slices.Clone(m.data[k])})
		}
	}
	m.mu.RUnlock()

	return func(yield func(Entry, error) bool) {
		for _, e := range entries {
			if !yield(e, nil) {
				return
			}
		}
	}
}

func (m *Memory) BatchSet(_ context.Context, entries []Entry) error {
	if err := validateAll(entries); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		m.data[e.Key.String()] = slices.Clone(e.Value)
	}
	return nil
}

func (m *Memory) BatchDelete(_ context.Context, keys []Key) error {
	for _, k := range keys {
		if err := k.Validate(); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k.String())
	}
	return nil
}

func (m *Memory) Close() error { return nil }

var _ Store = (*Memory)(nil)
