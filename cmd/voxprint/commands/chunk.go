package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/haivivi/voxprint/pkg/chunker"
	"github.com/haivivi/voxprint/pkg/cli"
)

var (
	chunkPrefix      string
	chunkKeepPartial bool
)

var chunkCmd = &cobra.Command{
	Use:   "chunk <wav>",
	Short: "Split a recording into fixed-duration WAV chunks",
	Long: `Split a WAV recording into chunks of chunking.chunk_duration.

With chunking.temporal_interval larger than the chunk duration, only every
Nth chunk is written. Chunks go to the configured storage backend under
--prefix (default: the recording's base name) as
<prefix>/chunk-<unix-ms>-<index>.wav.

On failure the chunks already written are removed unless --keep-partial
is set.`,
	Args: cobra.ExactArgs(1),
	RunE: runChunk,
}

func init() {
	chunkCmd.Flags().StringVar(&chunkPrefix, "prefix", "", "storage prefix for the chunks")
	chunkCmd.Flags().BoolVar(&chunkKeepPartial, "keep-partial", false, "keep chunks written before a failure")
	rootCmd.AddCommand(chunkCmd)
}

// ChunkReport is the output of the chunk command.
type ChunkReport struct {
	File    string          `json:"file" yaml:"file"`
	Chunks  []chunker.Chunk `json:"chunks" yaml:"chunks"`
	Slots   int             `json:"slots" yaml:"slots"`
	Skipped map[string]int  `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

func (r ChunkReport) Table() cli.Table {
	t := cli.Table{Headers: []string{"INDEX", "START", "DURATION", "PATH"}}
	for _, c := range r.Chunks {
		t.Rows = append(t.Rows, []string{
			strconv.Itoa(c.Index), cli.FormatDuration(c.StartTime), cli.FormatDuration(c.Duration), c.Path,
		})
	}
	return t
}

func runChunk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	file := args[0]

	cfg := globalConfig.Chunking.Config
	cfg.Prefix = chunkPrefix
	if cfg.Prefix == "" {
		cfg.Prefix = strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	}

	store, err := newFileStore()
	if err != nil {
		return err
	}
	engine, err := chunker.NewEngine(cfg, store, chunker.WithLogger(logger))
	if err != nil {
		return err
	}

	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	res, err := engine.Run(ctx, f)
	if err != nil {
		if res != nil && len(res.Chunks) > 0 && !chunkKeepPartial && ctx.Err() == nil {
			if rmErr := engine.Remove(ctx, res.Chunks); rmErr != nil {
				logger.Error("remove partial chunks", "error", rmErr)
			}
		}
		return fmt.Errorf("chunk %s: %w", file, err)
	}
	return output(cmd, ChunkReport{File: file, Chunks: res.Chunks, Slots: res.Slots, Skipped: res.Skipped})
}
