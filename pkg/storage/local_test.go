package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func newTestLocal(t *testing.T) *Local {
	t.Helper()
	s, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func writeFile(t *testing.T, s FileStore, path, data string) {
	t.Helper()
	w, err := s.Write(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := io.WriteString(w, data); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
}

func readFile(t *testing.T, s FileStore, path string) string {
	t.Helper()
	r, err := s.Read(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	b, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func TestLocalWriteAndRead(t *testing.T) {
	s := newTestLocal(t)
	writeFile(t, s, "alice/chunk-1-0.wav", "RIFF....WAVE")
	if got := readFile(t, s, "alice/chunk-1-0.wav"); got != "RIFF....WAVE" {
		t.Fatalf("got %q", got)
	}
	if _, err := os.Stat(filepath.Join(s.Root(), "alice", "chunk-1-0.wav")); err != nil {
		t.Fatal(err)
	}
}

func TestLocalWriteVisibleOnlyAfterClose(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()

	w, err := s.Write(ctx, "chunk.wav")
	if err != nil {
		t.Fatal(err)
	}
	io.WriteString(w, "partial")

	ok, err := s.Exists(ctx, "chunk.wav")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("file visible before Close")
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if ok, _ := s.Exists(ctx, "chunk.wav"); !ok {
		t.Fatal("file missing after Close")
	}

	entries, err := os.ReadDir(s.Root())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("root holds %d entries, want 1 (temp file left behind?)", len(entries))
	}
}

func TestLocalReadNotExist(t *testing.T) {
	s := newTestLocal(t)
	_, err := s.Read(context.Background(), "no-such-file")
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected os.ErrNotExist, got %v", err)
	}
}

func TestLocalDeleteIdempotent(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()

	if err := s.Delete(ctx, "ghost.wav"); err != nil {
		t.Fatal(err)
	}
	writeFile(t, s, "tmp.wav", "x")
	if err := s.Delete(ctx, "tmp.wav"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := s.Exists(ctx, "tmp.wav"); ok {
		t.Fatal("file should be gone after delete")
	}
	if err := s.Delete(ctx, "tmp.wav"); err != nil {
		t.Fatal(err)
	}
}

func TestLocalWriteTruncates(t *testing.T) {
	s := newTestLocal(t)
	writeFile(t, s, "f", "long content here")
	writeFile(t, s, "f", "short")
	if got := readFile(t, s, "f"); got != "short" {
		t.Fatalf("got %q, want %q", got, "short")
	}
}

func TestLocalRejectsEscapingPaths(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()
	for _, p := range []string{"../outside.wav", "a/../../x", "/etc/passwd", ""} {
		if _, err := s.Write(ctx, p); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("Write(%q) err = %v, want ErrInvalidPath", p, err)
		}
	}
	if _, err := s.Write(ctx, "a/../inside.wav"); err != nil {
		t.Errorf("path cleaned inside root rejected: %v", err)
	}
}

func TestNewLocalCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "dir")
	s, err := NewLocal(dir)
	if err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(s.Root())
	if err != nil {
		t.Fatal(err)
	}
	if !info.IsDir() {
		t.Fatal("expected directory")
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	fs, err := Open(Config{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := fs.(*Local); !ok {
		t.Fatalf("default backend = %T, want *Local", fs)
	}

	fs, err = Open(Config{Backend: "s3", Bucket: "chunks", Endpoint: "http://localhost:9000"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := fs.(*S3Store); !ok {
		t.Fatalf("s3 backend = %T, want *S3Store", fs)
	}

	for _, cfg := range []Config{
		{Backend: "local"},
		{Backend: "s3"},
		{Backend: "gcs", Bucket: "x"},
	} {
		if _, err := Open(cfg); !errors.Is(err, ErrBackend) {
			t.Errorf("Open(%+v) err = %v, want ErrBackend", cfg, err)
		}
	}
}

func TestContentType(t *testing.T) {
	tests := map[string]string{
		"a/chunk-1-0.wav": "audio/wav",
		"meta.json":       "application/json",
		"cfg.yml":         "application/yaml",
		"blob":            "application/octet-stream",
	}
	for p, want := range tests {
		if got := ContentType(p); got != want {
			t.Errorf("ContentType(%q) = %q, want %q", p, got, want)
		}
	}
}
