// Package config loads the voxprint YAML configuration.
//
// A missing file yields the defaults. Unknown keys are rejected so typos
// surface instead of silently falling back to a default:
//
//	log:       {level: info, format: text}
//	audio:     {sample_rate: 16000, window_size: 512, hop_size: 256,
//	            num_coefficients: 20, num_filters: 26, window: hann}
//	embedding: {mode: sequence, normalization: per_frame, delta_order: 2}
//	chunking:  {chunk_duration: 10s, min_duration: 1s, temporal_interval: 10s,
//	            max_chunks_per_speaker: 100, enforce_max_chunks: false,
//	            output_dir: ./chunks}
//	store:     {backend: memory, dir: ./voxprint-db, collection: speakers,
//	            dimension: 0}
//	storage:   {backend: local, bucket: "", prefix: "", region: "", endpoint: ""}
//	workers:   4
//
// S3 credentials come from the environment (VOXPRINT_S3_ACCESS_KEY and
// VOXPRINT_S3_SECRET_KEY), optionally loaded from a .env file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/haivivi/voxprint/pkg/audio/mfcc"
	"github.com/haivivi/voxprint/pkg/chunker"
	"github.com/haivivi/voxprint/pkg/kv"
	"github.com/haivivi/voxprint/pkg/storage"
	"github.com/haivivi/voxprint/pkg/voiceprint"
)

// Environment variables holding S3 credentials.
const (
	EnvS3AccessKey = "VOXPRINT_S3_ACCESS_KEY"
	EnvS3SecretKey = "VOXPRINT_S3_SECRET_KEY"
)

// ErrInvalid is returned for configuration that parses but cannot be used.
var ErrInvalid = errors.New("config: invalid")

// Config is the root of the configuration file.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	Audio     AudioConfig     `yaml:"audio"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Store     StoreConfig     `yaml:"store"`
	Storage   StorageConfig   `yaml:"storage"`

	// Workers bounds how many files batch commands process at once.
	Workers int `yaml:"workers"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

type AudioConfig struct {
	SampleRate      int    `yaml:"sample_rate"`
	WindowSize      int    `yaml:"window_size"`
	HopSize         int    `yaml:"hop_size"`
	NumCoefficients int    `yaml:"num_coefficients"`
	NumFilters      int    `yaml:"num_filters"`
	Window          string `yaml:"window"`
}

type EmbeddingConfig struct {
	Mode          string `yaml:"mode"`
	Normalization string `yaml:"normalization"`
	DeltaOrder    int    `yaml:"delta_order"`
}

type ChunkingConfig struct {
	chunker.Config `yaml:",inline"`

	// OutputDir is the local storage root for chunk artifacts.
	OutputDir string `yaml:"output_dir"`
}

type StoreConfig struct {
	Backend    string `yaml:"backend"` // memory or badger
	Dir        string `yaml:"dir"`
	Collection string `yaml:"collection"`

	// Dimension, when positive, must equal the embedding dimension.
	Dimension int `yaml:"dimension"`
}

type StorageConfig struct {
	Backend  string `yaml:"backend"` // local or s3
	Bucket   string `yaml:"bucket"`
	Prefix   string `yaml:"prefix"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`

	accessKey string
	secretKey string
}

// Default returns the built-in configuration.
func Default() *Config {
	pc := voiceprint.DefaultConfig()
	return &Config{
		Log: LogConfig{Level: "info", Format: "text"},
		Audio: AudioConfig{
			SampleRate:      pc.MFCC.SampleRate,
			WindowSize:      pc.MFCC.WindowSize,
			HopSize:         pc.HopSize,
			NumCoefficients: pc.MFCC.NumCoefficients,
			NumFilters:      pc.MFCC.NumFilters,
			Window:          string(pc.MFCC.Window),
		},
		Embedding: EmbeddingConfig{
			Mode:          string(pc.Mode),
			Normalization: string(pc.Normalization),
			DeltaOrder:    pc.DeltaOrder,
		},
		Chunking: ChunkingConfig{
			Config:    chunker.DefaultConfig(),
			OutputDir: "./chunks",
		},
		Store: StoreConfig{
			Backend:    "memory",
			Dir:        "./voxprint-db",
			Collection: "speakers",
		},
		Storage: StorageConfig{Backend: "local"},
		Workers: min(runtime.NumCPU(), 4),
	}
}

// Load reads the file at path over the defaults. An empty path returns the
// defaults. Credentials are read from the environment after loading the
// optional env file (".env" when envFile is empty; a missing file is fine).
func Load(path, envFile string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := cfg.decode(data); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := loadEnv(envFile); err != nil {
		return nil, err
	}
	cfg.Storage.accessKey = os.Getenv(EnvS3AccessKey)
	cfg.Storage.secretKey = os.Getenv(EnvS3SecretKey)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func loadEnv(envFile string) error {
	explicit := envFile != ""
	if !explicit {
		envFile = ".env"
	}
	err := godotenv.Load(envFile)
	if err == nil || (!explicit && errors.Is(err, fs.ErrNotExist)) {
		return nil
	}
	return fmt.Errorf("config: load env %s: %w", envFile, err)
}

// Validate checks every section by building the component configs.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.Pipeline(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Chunking.Validate(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("%w: log.format %q", ErrInvalid, c.Log.Format))
	}
	switch c.Store.Backend {
	case "memory", "badger":
	default:
		errs = append(errs, fmt.Errorf("%w: store.backend %q", ErrInvalid, c.Store.Backend))
	}
	if c.Store.Collection == "" || strings.Contains(c.Store.Collection, kv.Separator) {
		errs = append(errs, fmt.Errorf("%w: store.collection %q", ErrInvalid, c.Store.Collection))
	}
	switch c.Storage.Backend {
	case "local":
	case "s3":
		if c.Storage.Bucket == "" {
			errs = append(errs, fmt.Errorf("%w: storage.bucket is required for s3", ErrInvalid))
		}
	default:
		errs = append(errs, fmt.Errorf("%w: storage.backend %q", ErrInvalid, c.Storage.Backend))
	}
	if c.Workers <= 0 {
		errs = append(errs, fmt.Errorf("%w: workers must be positive", ErrInvalid))
	}
	return errors.Join(errs...)
}

// Pipeline returns the embedding pipeline config.
func (c *Config) Pipeline() (voiceprint.Config, error) {
	mode, err := voiceprint.ParseMode(c.Embedding.Mode)
	if err != nil {
		return voiceprint.Config{}, err
	}
	norm, err := voiceprint.ParseNormalization(c.Embedding.Normalization)
	if err != nil {
		return voiceprint.Config{}, err
	}
	mc := mfcc.DefaultConfig()
	mc.SampleRate = c.Audio.SampleRate
	mc.WindowSize = c.Audio.WindowSize
	mc.NumCoefficients = c.Audio.NumCoefficients
	mc.NumFilters = c.Audio.NumFilters
	mc.Window = mfcc.WindowFunc(c.Audio.Window)
	if err := mc.Validate(); err != nil {
		return voiceprint.Config{}, err
	}
	if c.Audio.HopSize <= 0 || c.Audio.HopSize > c.Audio.WindowSize {
		return voiceprint.Config{}, fmt.Errorf("%w: audio.hop_size %d", ErrInvalid, c.Audio.HopSize)
	}
	return voiceprint.Config{
		MFCC:           mc,
		HopSize:        c.Audio.HopSize,
		Mode:           mode,
		Normalization:  norm,
		DeltaOrder:     c.Embedding.DeltaOrder,
		StoreDimension: c.Store.Dimension,
	}, nil
}

// KV returns the key-value backend config for the vector store.
func (c *Config) KV() kv.Config {
	return kv.Config{Backend: c.Store.Backend, Dir: c.Store.Dir}
}

// FileStore returns the chunk artifact storage config.
func (c *Config) FileStore() storage.Config {
	return storage.Config{
		Backend:   c.Storage.Backend,
		Dir:       c.Chunking.OutputDir,
		Bucket:    c.Storage.Bucket,
		Prefix:    c.Storage.Prefix,
		Region:    c.Storage.Region,
		Endpoint:  c.Storage.Endpoint,
		AccessKey: c.Storage.accessKey,
		SecretKey: c.Storage.secretKey,
	}
}

// LogLevel parses log.level.
func (c *Config) LogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("%w: log.level %q", ErrInvalid, c.Log.Level)
	}
	return l, nil
}

// NewLogger builds the process logger. verbose forces debug level.
func (c *Config) NewLogger(w io.Writer, verbose bool) *slog.Logger {
	level, _ := c.LogLevel()
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
