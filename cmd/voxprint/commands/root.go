package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/haivivi/voxprint/cmd/voxprint/internal/config"
	"github.com/haivivi/voxprint/pkg/cli"
)

var (
	// Global flags
	cfgFile      string
	envFile      string
	verbose      bool
	outputFormat string
	outputFile   string
	jqExpr       string

	// Loaded by PersistentPreRunE
	globalConfig *config.Config
	logger       *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "voxprint",
	Short: "Speaker embeddings from WAV recordings",
	Long: `voxprint - MFCC speaker embeddings, chunking and identification.

Embeddings are MFCC+delta vectors (40 values with the defaults), one per
analysis frame in sequence mode or one pooled vector per recording in
aggregate mode.
Enrolled vectors live in a badger-backed vector store; chunk artifacts are
written to a local directory or an S3 bucket.

Configuration is read from --config, or ~/.voxprint/config.yaml when present.
S3 credentials come from VOXPRINT_S3_ACCESS_KEY and VOXPRINT_S3_SECRET_KEY,
optionally loaded from a .env file.

Examples:
  # Embed a recording and count its frames
  voxprint embed talk.wav -o json --jq '.results[0].frames'

  # Enroll a directory of labeled recordings, then identify a new one
  voxprint enroll ./voices
  voxprint identify unknown.wav -o table

  # Who speaks when, in 10s chunks
  voxprint segment meeting.wav -o table`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.voxprint/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "env file with S3 credentials (default .env)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "yaml", "output format: yaml, json or table")
	rootCmd.PersistentFlags().StringVar(&outputFile, "output-file", "", "write output to a file instead of stdout")
	rootCmd.PersistentFlags().StringVar(&jqExpr, "jq", "", "jq expression applied to yaml/json output")
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	if _, err := cli.ParseOutputFormat(outputFormat); err != nil {
		return err
	}
	paths, err := cli.NewPaths()
	if err != nil {
		return fmt.Errorf("resolve home directory: %w", err)
	}
	path, err := paths.ResolveConfig(cfgFile)
	if err != nil {
		return err
	}
	cfg, err := config.Load(path, envFile)
	if err != nil {
		return err
	}
	globalConfig = cfg
	logger = cfg.NewLogger(cmd.ErrOrStderr(), verbose)
	if path != "" {
		logger.Debug("config loaded", "path", path)
	}
	return nil
}

// output renders a command result with the global output flags.
func output(cmd *cobra.Command, result any) error {
	format, err := cli.ParseOutputFormat(outputFormat)
	if err != nil {
		return err
	}
	opts := cli.OutputOptions{Format: format, JQ: jqExpr}
	if outputFile != "" {
		opts.File = outputFile
	} else {
		opts.Writer = cmd.OutOrStdout()
	}
	return cli.Output(result, opts)
}
