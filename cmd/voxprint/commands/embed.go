package commands

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/haivivi/voxprint/pkg/cli"
	"github.com/haivivi/voxprint/pkg/voiceprint"
)

var embedVectors bool

var embedCmd = &cobra.Command{
	Use:   "embed <wav|dir>...",
	Short: "Compute MFCC+delta embeddings",
	Long: `Compute the embedding of each WAV file.

By default only a summary is printed. Use --vectors to include the frame
vectors (sequence mode) or the pooled vector (aggregate mode).`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEmbed,
}

func init() {
	embedCmd.Flags().BoolVar(&embedVectors, "vectors", false, "include the embedding vectors in the output")
	rootCmd.AddCommand(embedCmd)
}

// EmbedResult summarizes the embedding of one file.
type EmbedResult struct {
	File         string                `json:"file" yaml:"file"`
	Mode         voiceprint.Mode       `json:"mode" yaml:"mode"`
	SampleRate   int                   `json:"sample_rate" yaml:"sample_rate"`
	RateMismatch bool                  `json:"rate_mismatch,omitempty" yaml:"rate_mismatch,omitempty"`
	Dimension    int                   `json:"dimension" yaml:"dimension"`
	FrameCount   int                   `json:"frame_count" yaml:"frame_count"`
	Frames       int                   `json:"frames" yaml:"frames"`
	Skipped      int                   `json:"skipped" yaml:"skipped"`
	Vectors      []voiceprint.Combined `json:"vectors,omitempty" yaml:"vectors,omitempty"`
	Vector       []float64             `json:"vector,omitempty" yaml:"vector,omitempty"`
}

// EmbedReport is the output of the embed command.
type EmbedReport struct {
	Results  []EmbedResult `json:"results" yaml:"results"`
	Failures []Failure     `json:"failures,omitempty" yaml:"failures,omitempty"`
}

func (r EmbedReport) Table() cli.Table {
	t := cli.Table{Headers: []string{"FILE", "MODE", "RATE", "DIM", "FRAMES", "SKIPPED"}}
	for _, e := range r.Results {
		t.Rows = append(t.Rows, []string{
			e.File, string(e.Mode), strconv.Itoa(e.SampleRate),
			strconv.Itoa(e.Dimension), strconv.Itoa(e.Frames), strconv.Itoa(e.Skipped),
		})
	}
	for _, f := range r.Failures {
		t.Rows = append(t.Rows, []string{f.File, "error: " + f.Error})
	}
	return t
}

func runEmbed(cmd *cobra.Command, args []string) error {
	files, err := collectWAVs(args)
	if err != nil {
		return err
	}
	p, err := newPipeline()
	if err != nil {
		return err
	}

	results, failures, err := forEachFile(cmd.Context(), files, func(ctx context.Context, file string) (EmbedResult, error) {
		emb, err := p.EmbedFile(ctx, file)
		if err != nil {
			return EmbedResult{}, err
		}
		r := EmbedResult{
			File:         file,
			Mode:         emb.Mode,
			SampleRate:   emb.SampleRate,
			RateMismatch: emb.RateMismatch,
			Dimension:    p.Dimension(),
			FrameCount:   emb.FrameCount,
			Frames:       len(emb.Frames),
			Skipped:      len(emb.Skipped),
		}
		if emb.Mode == voiceprint.ModeAggregate {
			r.Frames = emb.FrameCount - len(emb.Skipped)
		}
		if embedVectors {
			r.Vectors = emb.Frames
			r.Vector = emb.Vector
		}
		return r, nil
	})
	if err != nil {
		return err
	}
	return output(cmd, EmbedReport{Results: results, Failures: failures})
}
