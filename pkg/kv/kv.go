// Package kv provides the key-value layer beneath the persistent vector
// store. Keys are hierarchical paths such as {"speakers", "pt", "<id>"},
// encoded as "speakers:pt:<id>".
//
// Two backends are provided: Badger (badger/v4, on disk or in memory) and
// Memory (a map, for tests and ephemeral runs).
package kv

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
)

// Separator joins key segments in the encoded form.
const Separator = ":"

// Sentinel errors.
var (
	// ErrNotFound is returned when a key does not exist in the store.
	ErrNotFound = errors.New("kv: not found")

	// ErrInvalidKey is returned for empty keys or segments containing the
	// separator.
	ErrInvalidKey = errors.New("kv: invalid key")
)

// Key is a hierarchical path of string segments.
type Key []string

// String returns the encoded key.
func (k Key) String() string {
	return strings.Join(k, Separator)
}

// Validate reports ErrInvalidKey if k cannot be encoded unambiguously.
func (k Key) Validate() error {
	if len(k) == 0 {
		return fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	for _, seg := range k {
		if seg == "" || strings.Contains(seg, Separator) {
			return fmt.Errorf("%w: segment %q in %v", ErrInvalidKey, seg, []string(k))
		}
	}
	return nil
}

// parseKey splits an encoded key.
func parseKey(s string) Key {
	return Key(strings.Split(s, Separator))
}

// prefixOf returns the encoded prefix used to list keys under k. An empty
// prefix lists everything.
func prefixOf(k Key) string {
	if len(k) == 0 {
		return ""
	}
	return k.String() + Separator
}

// Entry is a key-value pair returned by List and used by BatchSet.
type Entry struct {
	Key   Key
	Value []byte
}

// Store is a key-value store with path-based keys. Implementations are safe
// for concurrent use.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key Key) ([]byte, error)

	// Set stores a value, overwriting any existing one.
	Set(ctx context.Context, key Key, value []byte) error

	// Delete removes a key. Missing keys are not an error.
	Delete(ctx context.Context, key Key) error

	// List iterates over entries strictly below prefix in lexicographic
	// order of the encoded key.
	List(ctx context.Context, prefix Key) iter.Seq2[Entry, error]

	// BatchSet stores several entries in one write.
	BatchSet(ctx context.Context, entries []Entry) error

	// BatchDelete removes several keys in one write.
	BatchDelete(ctx context.Context, keys []Key) error

	Close() error
}

// Config selects a Store backend.
type Config struct {
	Backend string `yaml:"backend" json:"backend"` // "memory" (default) or "badger"
	Dir     string `yaml:"dir" json:"dir"`         // badger data directory
}

// Open creates the Store described by cfg. logger receives badger's
// warnings and errors; nil means slog.Default().
func Open(cfg Config, logger *slog.Logger) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemory(), nil
	case "badger":
		return NewBadger(BadgerOptions{Dir: cfg.Dir, Logger: logger})
	}
	return nil, fmt.Errorf("kv: unknown backend %q", cfg.Backend)
}

func validateAll(entries []Entry) error {
	for _, e := range entries {
		if err := e.Key.Validate(); err != nil {
			return err
		}
	}
	return nil
}
