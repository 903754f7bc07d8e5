// Package main is the entry point for the voxprint CLI.
//
// Usage:
//
//	voxprint [flags] <command> [args]
//
// Commands:
//
//	embed     - Compute MFCC+delta embeddings for WAV files
//	chunk     - Split a WAV recording into fixed-duration chunks
//	enroll    - Add speaker embeddings to the vector store
//	identify  - Name the enrolled speaker closest to each recording
//	segment   - Identify the speaker of every chunk of a long recording
//	compare   - Print a cosine similarity matrix of recordings
//	prepare   - Convert a WAV file to the configured sample rate
//	version   - Show version information
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/haivivi/voxprint/cmd/voxprint/commands"
	"github.com/haivivi/voxprint/pkg/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := commands.Execute(ctx)
	stop()
	if err != nil {
		cli.PrintError("%v", err)
		os.Exit(1)
	}
}
