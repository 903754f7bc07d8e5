package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/haivivi/voxprint/pkg/cli"
	"github.com/haivivi/voxprint/pkg/speaker"
	"github.com/haivivi/voxprint/pkg/vecstore"
)

var compareCmd = &cobra.Command{
	Use:   "compare <wav|dir>...",
	Short: "Print a cosine similarity matrix of recordings",
	Long: `Embed each file, average its vectors into one voiceprint, and print the
pairwise cosine similarity of all voiceprints. Speakers are taken from
deepgram-<speaker>-*.wav file names when present.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCompare,
}

func init() {
	rootCmd.AddCommand(compareCmd)
}

// Voiceprint is the averaged embedding of one file.
type Voiceprint struct {
	File    string `json:"file" yaml:"file"`
	Speaker string `json:"speaker" yaml:"speaker"`
	Label   string `json:"label,omitempty" yaml:"label,omitempty"`

	vector []float32
}

// CompareReport is the output of the compare command.
type CompareReport struct {
	Voiceprints []Voiceprint `json:"voiceprints" yaml:"voiceprints"`
	// Similarity[i][j] compares Voiceprints[i] and Voiceprints[j].
	Similarity [][]float32 `json:"similarity" yaml:"similarity"`
	Failures   []Failure   `json:"failures,omitempty" yaml:"failures,omitempty"`
}

func (r CompareReport) Table() cli.Table {
	t := cli.Table{Headers: []string{"FILE", "SPEAKER"}}
	for i := range r.Voiceprints {
		t.Headers = append(t.Headers, strconv.Itoa(i))
	}
	for i, vp := range r.Voiceprints {
		row := []string{strconv.Itoa(i) + " " + filepath.Base(vp.File), vp.Speaker}
		for _, s := range r.Similarity[i] {
			row = append(row, strconv.FormatFloat(float64(s), 'f', 3, 32))
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func runCompare(cmd *cobra.Command, args []string) error {
	files, err := collectWAVs(args)
	if err != nil {
		return err
	}
	if len(files) < 2 {
		return fmt.Errorf("compare needs at least 2 wav files, found %d", len(files))
	}
	p, err := newPipeline()
	if err != nil {
		return err
	}
	opts, err := speakerOptions(p.Dimension(), 0)
	if err != nil {
		return err
	}

	prints, failures, err := forEachFile(cmd.Context(), files, func(ctx context.Context, file string) (Voiceprint, error) {
		emb, err := p.EmbedFile(ctx, file)
		if err != nil {
			return Voiceprint{}, err
		}
		v := speaker.Mean(emb.Vectors())
		label, err := opts.Hasher.Label(v)
		if err != nil {
			return Voiceprint{}, err
		}
		return Voiceprint{File: file, Speaker: speaker.SpeakerFromFilename(file), Label: label, vector: v}, nil
	})
	if err != nil {
		return err
	}

	sim := make([][]float32, len(prints))
	for i := range prints {
		sim[i] = make([]float32, len(prints))
		for j := range prints {
			sim[i][j] = vecstore.CosineSimilarity(prints[i].vector, prints[j].vector)
		}
	}
	return output(cmd, CompareReport{Voiceprints: prints, Similarity: sim, Failures: failures})
}
