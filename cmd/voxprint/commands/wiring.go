package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/haivivi/voxprint/pkg/kv"
	"github.com/haivivi/voxprint/pkg/speaker"
	"github.com/haivivi/voxprint/pkg/storage"
	"github.com/haivivi/voxprint/pkg/vecstore"
	"github.com/haivivi/voxprint/pkg/voiceprint"
)

const (
	// Voice labels use 16 hyperplanes; the seed keeps labels stable
	// across runs and machines.
	labelBits = 16
	labelSeed = 0x766f78

	maxUpsertRetries = 5
)

func newPipeline() (*voiceprint.Pipeline, error) {
	pc, err := globalConfig.Pipeline()
	if err != nil {
		return nil, err
	}
	return voiceprint.New(pc, voiceprint.WithLogger(logger))
}

func newFileStore() (storage.FileStore, error) {
	return storage.Open(globalConfig.FileStore())
}

// vectorStore is the configured collection plus the key-value store it
// persists to.
type vectorStore struct {
	*vecstore.Persistent
	kv kv.Store
}

func (s *vectorStore) Close() error {
	return errors.Join(s.Persistent.Close(), s.kv.Close())
}

func openVectorStore(ctx context.Context, dim int) (*vectorStore, error) {
	kvs, err := kv.Open(globalConfig.KV(), logger)
	if err != nil {
		return nil, err
	}
	p, err := vecstore.OpenPersistent(ctx, kvs, globalConfig.Store.Collection, dim)
	if err != nil {
		kvs.Close()
		return nil, fmt.Errorf("open collection %q: %w", globalConfig.Store.Collection, err)
	}
	logger.Debug("vector store opened",
		"backend", globalConfig.Store.Backend,
		"collection", globalConfig.Store.Collection,
		"dimension", dim,
		"points", p.Len())
	return &vectorStore{Persistent: p, kv: kvs}, nil
}

func speakerOptions(dim int, minScore float32) (speaker.Options, error) {
	h, err := speaker.NewHasher(dim, labelBits, labelSeed)
	if err != nil {
		return speaker.Options{}, err
	}
	return speaker.Options{Hasher: h, MinScore: minScore}, nil
}

// retry runs op with exponential backoff until it succeeds, returns a
// permanent error, or ctx is done.
func retry(ctx context.Context, op func() error) error {
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxUpsertRetries), ctx)
	return backoff.Retry(func() error {
		err := op()
		switch {
		case err == nil:
			return nil
		case errors.Is(err, vecstore.ErrDimension),
			errors.Is(err, vecstore.ErrInvalidPoint),
			errors.Is(err, speaker.ErrEmpty),
			errors.Is(err, context.Canceled):
			return backoff.Permanent(err)
		}
		logger.Warn("store write failed, retrying", "error", err)
		return err
	}, b)
}

// collectWAVs expands directories into the .wav files below them. Plain
// file arguments are kept as given, whatever their extension.
func collectWAVs(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		err := filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if path == arg || strings.EqualFold(filepath.Ext(path), ".wav") {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .wav files in %s", strings.Join(args, ", "))
	}
	return files, nil
}

// Failure records a file a batch command could not process.
type Failure struct {
	File  string `json:"file" yaml:"file"`
	Error string `json:"error" yaml:"error"`
}

// forEachFile runs fn over files with at most workers in flight. A failing
// file is logged and recorded; the others still run. Results keep the
// order of files. It returns an error only when ctx is cancelled or every
// file failed.
func forEachFile[T any](ctx context.Context, files []string, fn func(ctx context.Context, file string) (T, error)) ([]T, []Failure, error) {
	results := make([]*T, len(files))
	var (
		mu       sync.Mutex
		failures []Failure
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(globalConfig.Workers)
	for i, file := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := fn(gctx, file)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				logger.Error("file failed", "file", file, "error", err)
				mu.Lock()
				failures = append(failures, Failure{File: file, Error: err.Error()})
				mu.Unlock()
				return nil
			}
			results[i] = &r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	out := make([]T, 0, len(files))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	slices.SortFunc(failures, func(a, b Failure) int { return strings.Compare(a.File, b.File) })
	if len(out) == 0 {
		return nil, failures, fmt.Errorf("all %d files failed; first: %s: %s", len(files), failures[0].File, failures[0].Error)
	}
	return out, failures, nil
}
