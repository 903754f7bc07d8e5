package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidPath is returned for paths that would resolve outside the
// store root.
var ErrInvalidPath = errors.New("storage: invalid path")

// Local implements FileStore on a directory tree.
//
// Writes go to a temporary file in the destination directory and are
// renamed into place on Close, so readers never observe a partially
// written artifact.
type Local struct {
	root string
}

// NewLocal creates a Local store rooted at dir, creating it if needed.
func NewLocal(dir string) (*Local, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	return &Local{root: abs}, nil
}

// Root returns the absolute root directory.
func (l *Local) Root() string { return l.root }

// resolve maps a storage path to a filesystem path under the root.
func (l *Local) resolve(path string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(path))
	if clean == "." || filepath.IsAbs(clean) || clean == ".." ||
		strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	return filepath.Join(l.root, clean), nil
}

// Read opens the named file for reading.
func (l *Local) Read(_ context.Context, path string) (io.ReadCloser, error) {
	full, err := l.resolve(path)
	if err != nil {
		return nil, err
	}
	return os.Open(full)
}

// Write creates the named file. Data becomes visible under path only
// when Close succeeds.
func (l *Local) Write(_ context.Context, path string) (io.WriteCloser, error) {
	full, err := l.resolve(path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(full), "."+filepath.Base(full)+".*")
	if err != nil {
		return nil, err
	}
	return &localWriter{f: tmp, dst: full}, nil
}

// Delete removes the named file. Missing files are not an error.
func (l *Local) Delete(_ context.Context, path string) error {
	full, err := l.resolve(path)
	if err != nil {
		return err
	}
	err = os.Remove(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Exists reports whether the named file exists.
func (l *Local) Exists(_ context.Context, path string) (bool, error) {
	full, err := l.resolve(path)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(full)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// localWriter renames its temporary file into place on Close.
type localWriter struct {
	f      *os.File
	dst    string
	werr   error
	closed bool
}

func (w *localWriter) Write(p []byte) (int, error) {
	n, err := w.f.Write(p)
	if err != nil && w.werr == nil {
		w.werr = err
	}
	return n, err
}

func (w *localWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	err := w.f.Close()
	if w.werr != nil {
		err = w.werr
	}
	if err == nil {
		err = os.Rename(w.f.Name(), w.dst)
	}
	if err != nil {
		os.Remove(w.f.Name())
	}
	return err
}

var _ FileStore = (*Local)(nil)
