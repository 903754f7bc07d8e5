package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/itchyny/gojq"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	// FormatYAML outputs as YAML (default for terminal)
	FormatYAML OutputFormat = "yaml"
	// FormatJSON outputs as JSON
	FormatJSON OutputFormat = "json"
	// FormatTable outputs as formatted table
	FormatTable OutputFormat = "table"
)

// ParseOutputFormat validates a --output flag value. Empty means YAML.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(s); f {
	case "":
		return FormatYAML, nil
	case FormatYAML, FormatJSON, FormatTable:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", s)
	}
}

// OutputOptions configures output behavior
type OutputOptions struct {
	// Format is the output format (yaml, json, table)
	Format OutputFormat

	// File is the output file path (empty for stdout)
	File string

	// Indent is the indentation for JSON output
	Indent string

	// JQ is an optional jq expression applied to the result before
	// rendering. It is ignored for table output.
	JQ string

	// Theme styles table output. Defaults to DefaultTheme.
	Theme *Theme

	// Writer is an optional custom writer (overrides File)
	Writer io.Writer
}

// Output writes the result to the configured destination
func Output(result any, opts OutputOptions) error {
	var w io.Writer = os.Stdout

	if opts.Writer != nil {
		w = opts.Writer
	} else if opts.File != "" {
		f, err := os.Create(opts.File)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if opts.Format == FormatTable {
		t, ok := result.(Tabular)
		if !ok {
			return fmt.Errorf("table output is not supported for %T", result)
		}
		theme := DefaultTheme
		if opts.Theme != nil {
			theme = *opts.Theme
		}
		_, err := io.WriteString(w, t.Table().Render(NewStyles(theme)))
		return err
	}

	if opts.JQ != "" {
		filtered, err := Filter(result, opts.JQ)
		if err != nil {
			return err
		}
		result = filtered
	}

	switch opts.Format {
	case FormatJSON:
		return outputJSON(w, result, opts.Indent)
	case FormatYAML, "":
		return outputYAML(w, result)
	default:
		return fmt.Errorf("unsupported output format: %s", opts.Format)
	}
}

// Filter runs the jq expression over result. The result is first converted
// to plain JSON values. A single output value is returned as is; several
// are returned as a slice.
func Filter(result any, expr string) (any, error) {
	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid jq expression %q: %w", expr, err)
	}

	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	var input any
	if err := json.Unmarshal(data, &input); err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}

	var out []any
	iter := query.Run(input)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := v.(error); ok {
			return nil, fmt.Errorf("jq %q: %w", expr, err)
		}
		out = append(out, v)
	}
	if len(out) == 1 {
		return out[0], nil
	}
	return out, nil
}

func outputJSON(w io.Writer, result any, indent string) error {
	enc := json.NewEncoder(w)
	if indent == "" {
		indent = "  "
	}
	enc.SetIndent("", indent)
	return enc.Encode(result)
}

func outputYAML(w io.Writer, result any) error {
	data, err := yaml.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// PrintError prints an error message to stderr
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
