package kv

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	badger "github.com/dgraph-io/badger/v4"
)

// Badger is a Store backed by BadgerDB v4.
type Badger struct {
	db *badger.DB
}

// BadgerOptions configures NewBadger.
type BadgerOptions struct {
	// Dir is the data directory. Required unless InMemory is set.
	Dir string

	// InMemory keeps all data in memory (tests).
	InMemory bool

	// Logger receives badger's warnings and errors. Defaults to
	// slog.Default(). Info and debug output is discarded.
	Logger *slog.Logger
}

// NewBadger opens a BadgerDB-backed Store.
func NewBadger(opts BadgerOptions) (*Badger, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("kv: badger needs a directory")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dbOpts := badger.DefaultOptions(opts.Dir).
		WithLogger(badgerLogger{logger.With("component", "badger")})
	if opts.InMemory {
		dbOpts = dbOpts.WithDir("").WithValueDir("").WithInMemory(true)
	}
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("kv: open badger: %w", err)
	}
	return &Badger{db: db}, nil
}

func (b *Badger) Get(_ context.Context, key Key) ([]byte, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	var val []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key.String()))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	return val, err
}

func (b *Badger) Set(_ context.Context, key Key, value []byte) error {
	if err := key.Validate(); err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key.String()), value)
	})
}

func (b *Badger) Delete(_ context.Context, key Key) error {
	if err := key.Validate(); err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key.String()))
	})
}

// List iterates inside a single read transaction; the sequence must be
// consumed before writes that should not be observed.
func (b *Badger) List(ctx context.Context, prefix Key) iter.Seq2[Entry, error] {
	p := []byte(prefixOf(prefix))
	return func(yield func(Entry, error) bool) {
		stopped := false
		err := b.db.View(func(txn *badger.Txn) error {
			itOpts := badger.DefaultIteratorOptions
			itOpts.Prefix = p
			it := txn.NewIterator(itOpts)
			defer it.Close()

			for it.Seek(p); it.ValidForPrefix(p); it.Next() {
				if err := ctx.Err(); err != nil {
					return err
				}
				item := it.Item()
				val, err := item.ValueCopy(nil)
				if err != nil {
					return err
				}
				if !yield(Entry{Key: parseKey(string(item.Key())), Value: val}, nil) {
					stopped = true
					return nil
				}
			}
			return nil
		})
		if err != nil && !stopped {
			yield(Entry{}, err)
		}
	}
}

func (b *Badger) BatchSet(_ context.Context, entries []Entry) error {
	if err := validateAll(entries); err != nil {
		return err
	}
	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	for _, e := range entries {
		if err := wb.Set([]byte(e.Key.String()), e.Value); err != nil {
			return err
		}
	}
	return wb.Flush()
}

func (b *Badger) BatchDelete(_ context.Context, keys []Key) error {
	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := k.Validate(); err != nil {
			return err
		}
		if err := wb.Delete([]byte(k.String())); err != nil {
			return err
		}
	}
	return wb.Flush()
}

func (b *Badger) Close() error {
	return b.db.Close()
}

var _ Store = (*Badger)(nil)

// badgerLogger forwards badger warnings and errors to slog.
type badgerLogger struct{ l *slog.Logger }

func (b badgerLogger) Errorf(f string, v ...any) {
	b.l.Error(strings.TrimSpace(fmt.Sprintf(f, v...)))
}

func (b badgerLogger) Warningf(f string, v ...any) {
	b.l.Warn(strings.TrimSpace(fmt.Sprintf(f, v...)))
}

func (badgerLogger) Infof(string, ...any)  {}
func (badgerLogger) Debugf(string, ...any) {}
