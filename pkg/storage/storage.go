// Package storage defines the FileStore interface used to persist chunk
// artifacts and other recording-derived files.
//
// Two backends are provided: Local (a directory tree) and S3Store (Amazon
// S3 or any S3-compatible object store). Open selects one from a Config.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
)

// ErrBackend is returned by Open for an unknown or incomplete backend
// configuration.
var ErrBackend = errors.New("storage: invalid backend")

// FileStore is a minimal interface for file-oriented storage.
//
// Paths are forward-slash separated and relative to the store root.
// Implementations must be safe for concurrent use.
type FileStore interface {
	// Read opens the named file for reading.
	// The caller must close the returned ReadCloser when done.
	// If the file does not exist, an error wrapping os.ErrNotExist is returned.
	Read(ctx context.Context, path string) (io.ReadCloser, error)

	// Write opens the named file for writing, truncating an existing one.
	// The caller must close the returned WriteCloser to flush data; the
	// error from Close reports whether the file was stored.
	Write(ctx context.Context, path string) (io.WriteCloser, error)

	// Delete removes the named file. Missing files are not an error.
	Delete(ctx context.Context, path string) error

	// Exists reports whether the named file exists.
	Exists(ctx context.Context, path string) (bool, error)
}

// Config selects and configures a FileStore backend.
type Config struct {
	Backend string `yaml:"backend" json:"backend"` // "local" (default) or "s3"

	// Dir is the Local root directory.
	Dir string `yaml:"dir" json:"dir"`

	// S3 settings.
	Bucket    string `yaml:"bucket" json:"bucket"`
	Prefix    string `yaml:"prefix" json:"prefix"`
	Region    string `yaml:"region" json:"region"`
	Endpoint  string `yaml:"endpoint" json:"endpoint"`
	AccessKey string `yaml:"-" json:"-"`
	SecretKey string `yaml:"-" json:"-"`
}

// Open builds the FileStore described by cfg.
func Open(cfg Config) (FileStore, error) {
	switch cfg.Backend {
	case "", "local":
		if cfg.Dir == "" {
			return nil, fmt.Errorf("%w: local backend needs a directory", ErrBackend)
		}
		return NewLocal(cfg.Dir)
	case "s3":
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("%w: s3 backend needs a bucket", ErrBackend)
		}
		client := NewS3Client(S3ClientConfig{
			Region:    cfg.Region,
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
		})
		return NewS3(client, cfg.Bucket, cfg.Prefix), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrBackend, cfg.Backend)
}

// ContentType returns the media type stored with a file of the given path.
func ContentType(p string) string {
	switch path.Ext(p) {
	case ".wav":
		return "audio/wav"
	case ".json":
		return "application/json"
	case ".yaml", ".yml":
		return "application/yaml"
	}
	return "application/octet-stream"
}
