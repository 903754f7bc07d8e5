package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/haivivi/voxprint/pkg/cli"
	"github.com/haivivi/voxprint/pkg/speaker"
)

var identifyMinScore float32

var identifyCmd = &cobra.Command{
	Use:   "identify <wav|dir>...",
	Short: "Name the enrolled speaker closest to each recording",
	Long: `Search the vector store with every embedding vector of each file and
tally the speaker of the nearest stored point. The speaker with the most
votes wins; share is its fraction of the votes.

Matches scoring below --min-score vote for "Unknown".`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIdentify,
}

func init() {
	identifyCmd.Flags().Float32Var(&identifyMinScore, "min-score", 0, "cosine similarity below which a match votes Unknown")
	rootCmd.AddCommand(identifyCmd)
}

// Identification is the verdict for one file.
type Identification struct {
	File    string         `json:"file" yaml:"file"`
	Speaker string         `json:"speaker" yaml:"speaker"`
	Share   float64        `json:"share" yaml:"share"`
	Votes   map[string]int `json:"votes" yaml:"votes"`
	Total   int            `json:"total" yaml:"total"`
	Label   string         `json:"label,omitempty" yaml:"label,omitempty"`

	ranking []string
}

func newIdentification(file string, v *speaker.Verdict) Identification {
	return Identification{
		File:    file,
		Speaker: v.Speaker,
		Share:   v.Share,
		Votes:   v.Votes,
		Total:   v.Total,
		Label:   v.Label,
		ranking: v.Ranking(),
	}
}

// IdentifyReport is the output of the identify command.
type IdentifyReport struct {
	Results  []Identification `json:"results" yaml:"results"`
	Failures []Failure        `json:"failures,omitempty" yaml:"failures,omitempty"`
}

func (r IdentifyReport) Table() cli.Table {
	t := cli.Table{Headers: []string{"FILE", "SPEAKER", "SHARE", "VOTES", "LABEL"}}
	for _, id := range r.Results {
		t.Rows = append(t.Rows, []string{
			id.File, id.Speaker, formatShare(id.Share), formatVotes(id.ranking, id.Votes), id.Label,
		})
	}
	for _, f := range r.Failures {
		t.Rows = append(t.Rows, []string{f.File, "error: " + f.Error})
	}
	return t
}

func formatShare(s float64) string {
	return strconv.FormatFloat(s*100, 'f', 1, 64) + "%"
}

func formatVotes(ranking []string, votes map[string]int) string {
	parts := make([]string, 0, len(ranking))
	for _, name := range ranking {
		parts = append(parts, fmt.Sprintf("%s=%d", name, votes[name]))
	}
	return strings.Join(parts, " ")
}

func runIdentify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	files, err := collectWAVs(args)
	if err != nil {
		return err
	}
	p, err := newPipeline()
	if err != nil {
		return err
	}
	store, err := openVectorStore(ctx, p.Dimension())
	if err != nil {
		return err
	}
	defer store.Close()
	if store.Len() == 0 {
		return errors.New("vector store is empty; run enroll first")
	}
	opts, err := speakerOptions(p.Dimension(), identifyMinScore)
	if err != nil {
		return err
	}

	results, failures, err := forEachFile(ctx, files, func(ctx context.Context, file string) (Identification, error) {
		emb, err := p.EmbedFile(ctx, file)
		if err != nil {
			return Identification{}, err
		}
		v, err := speaker.Identify(ctx, store, emb.Vectors(), opts)
		if err != nil {
			return Identification{}, err
		}
		logger.Debug("identified", "file", file, "speaker", v.Speaker, "share", v.Share)
		return newIdentification(file, v), nil
	})
	if err != nil {
		return err
	}
	return output(cmd, IdentifyReport{Results: results, Failures: failures})
}
