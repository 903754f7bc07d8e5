// Package cli provides common helpers for the voxprint command-line tool.
//
// This package includes:
//   - Output formatting (YAML, JSON, table) with an optional jq filter
//   - Human-readable durations and sizes
//   - The per-user directory layout (~/.voxprint)
//
// Example usage:
//
//	cli.Output(result, cli.OutputOptions{
//	    Format: cli.FormatJSON,
//	    JQ:     ".frames | length",
//	})
package cli
