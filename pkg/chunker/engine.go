package chunker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/haivivi/voxprint/pkg/audio/wav"
	"github.com/haivivi/voxprint/pkg/storage"
)

const (
	readSize   = 32 * 1024
	writeQueue = 4
)

// Result summarizes a chunking run.
type Result struct {
	// Chunks lists the artifacts written, in index order. After a failed
	// run it holds what was written before the failure.
	Chunks []Chunk `json:"chunks" yaml:"chunks"`

	// Slots is the number of chunk indexes consumed, written or skipped.
	Slots int `json:"slots" yaml:"slots"`

	// Skipped counts skip events by reason.
	Skipped map[string]int `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock overrides the time source used for chunk timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// Engine runs the chunking state machine over WAV streams and writes the
// resulting chunks to a FileStore. An Engine may run several streams
// concurrently; each run has its own state and writer.
type Engine struct {
	cfg    Config
	store  storage.FileStore
	logger *slog.Logger
	now    func() time.Time
}

// NewEngine validates cfg and returns an Engine writing to store.
func NewEngine(cfg Config, store storage.FileStore, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, fmt.Errorf("%w: nil store", ErrConfig)
	}
	e := &Engine{
		cfg:    cfg,
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// Run reads src to the end and writes every materialized chunk. Chunks are
// written by a single goroutine in index order while reading continues.
//
// The first write failure stops the run with an error wrapping ErrIO. The
// returned Result is non-nil whenever a header was read, and lists the
// chunks already written so the caller can Remove them. Cancellation does
// not remove written chunks.
func (e *Engine) Run(ctx context.Context, src io.Reader) (*Result, error) {
	res := &Result{Skipped: make(map[string]int)}
	queue := make(chan Event, writeQueue)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(queue)
		return e.produce(gctx, src, queue, res)
	})
	g.Go(func() error {
		for ev := range queue {
			if err := gctx.Err(); err != nil {
				return err
			}
			c, err := e.write(gctx, ev)
			if err != nil {
				return err
			}
			res.Chunks = append(res.Chunks, c)
		}
		return nil
	})
	err := g.Wait()
	if err != nil {
		e.logger.Warn("chunker: run aborted", "written", len(res.Chunks), "err", err)
		return res, err
	}
	e.logger.Debug("chunker: run complete",
		"chunks", len(res.Chunks), "slots", res.Slots, "skipped", res.Skipped)
	return res, nil
}

func (e *Engine) produce(ctx context.Context, src io.Reader, queue chan<- Event, res *Result) error {
	var (
		st     State
		warned bool
		buf    = make([]byte, readSize)
	)
	emit := func(events []Event) error {
		for _, ev := range events {
			res.Slots = ev.Index + 1
			if ev.Action == Skip {
				res.Skipped[ev.Reason]++
				continue
			}
			if !warned && !e.cfg.EnforceMaxChunks && e.cfg.MaxChunks > 0 && st.Materialized > e.cfg.MaxChunks {
				warned = true
				e.logger.Warn("chunker: chunk count exceeds max_chunks_per_speaker",
					"max", e.cfg.MaxChunks)
			}
			select {
			case queue <- ev:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	}

	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			var (
				events []Event
				err    error
			)
			st, events, err = st.Advance(e.cfg, buf[:n])
			if err != nil {
				return err
			}
			if err := emit(events); err != nil {
				return err
			}
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			return fmt.Errorf("chunker: read: %w", rerr)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	st, events, err := st.Finish(e.cfg)
	if err != nil {
		return err
	}
	return emit(events)
}

func (e *Engine) write(ctx context.Context, ev Event) (Chunk, error) {
	ts := e.now()
	c := Chunk{
		Index:     ev.Index,
		Path:      ChunkPath(e.cfg.Prefix, ts, ev.Index),
		Timestamp: ts,
		StartTime: ev.StartTime,
		Duration:  ev.Duration,
		Final:     ev.Final,
		Format:    ev.Format,
	}
	w, err := e.store.Write(ctx, c.Path)
	if err != nil {
		return c, fmt.Errorf("%w: %s: %w", ErrIO, c.Path, err)
	}
	if err := wav.Encode(w, ev.Format, ev.Data); err != nil {
		w.Close()
		e.discard(c.Path)
		return c, fmt.Errorf("%w: %s: %w", ErrIO, c.Path, err)
	}
	if err := w.Close(); err != nil {
		e.discard(c.Path)
		return c, fmt.Errorf("%w: %s: %w", ErrIO, c.Path, err)
	}
	e.logger.Debug("chunker: chunk written",
		"index", c.Index, "path", c.Path, "start", c.StartTime, "duration", c.Duration)
	return c, nil
}

// discard removes a partially written artifact.
func (e *Engine) discard(path string) {
	if err := e.store.Delete(context.Background(), path); err != nil {
		e.logger.Warn("chunker: remove partial chunk", "path", path, "err", err)
	}
}

// Remove deletes the given chunk artifacts, continuing past failures.
func (e *Engine) Remove(ctx context.Context, chunks []Chunk) error {
	var errs []error
	for _, c := range chunks {
		if err := e.store.Delete(ctx, c.Path); err != nil {
			errs = append(errs, fmt.Errorf("%w: remove %s: %w", ErrIO, c.Path, err))
		}
	}
	return errors.Join(errs...)
}
