package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/haivivi/voxprint/pkg/cli"
	"github.com/haivivi/voxprint/pkg/speaker"
)

var enrollSpeaker string

var enrollCmd = &cobra.Command{
	Use:   "enroll <wav|dir>...",
	Short: "Add speaker embeddings to the vector store",
	Long: `Embed each WAV file and store its vectors under a speaker name.

The speaker is --speaker, or is taken from file names of the form
deepgram-<speaker>-*.wav; other files are enrolled as "Unknown".

Point IDs derive from the file path and vector index, so enrolling an
unchanged file again does not duplicate its points. Store writes are retried
with exponential backoff; a file that still fails is reported and skipped.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEnroll,
}

func init() {
	enrollCmd.Flags().StringVar(&enrollSpeaker, "speaker", "", "speaker name for every file")
	rootCmd.AddCommand(enrollCmd)
}

// Enrollment is one enrolled file.
type Enrollment struct {
	File    string `json:"file" yaml:"file"`
	Speaker string `json:"speaker" yaml:"speaker"`
	Points  int    `json:"points" yaml:"points"`
	Label   string `json:"label,omitempty" yaml:"label,omitempty"`
}

// EnrollReport is the output of the enroll command.
type EnrollReport struct {
	Collection string       `json:"collection" yaml:"collection"`
	Enrolled   []Enrollment `json:"enrolled" yaml:"enrolled"`
	Failures   []Failure    `json:"failures,omitempty" yaml:"failures,omitempty"`
	Total      int          `json:"total_points" yaml:"total_points"`
}

func (r EnrollReport) Table() cli.Table {
	t := cli.Table{Headers: []string{"FILE", "SPEAKER", "POINTS", "LABEL"}}
	for _, e := range r.Enrolled {
		t.Rows = append(t.Rows, []string{e.File, e.Speaker, strconv.Itoa(e.Points), e.Label})
	}
	for _, f := range r.Failures {
		t.Rows = append(t.Rows, []string{f.File, "error: " + f.Error})
	}
	return t
}

// pointIDs returns an ID generator that is deterministic per source file,
// so retries and re-enrollment overwrite instead of duplicating points.
func pointIDs(source string) func() string {
	n := 0
	return func() string {
		id := uuid.NewSHA1(uuid.NameSpaceURL, fmt.Appendf(nil, "voxprint:%s#%d", source, n))
		n++
		return id.String()
	}
}

func runEnroll(cmd *cobra.Command, args []string) error {
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
	if globalConfig.Store.Backend == "memory" {
		logger.Warn("store.backend is memory; enrolled points are discarded on exit")
	}

	opts, err := speakerOptions(p.Dimension(), 0)
	if err != nil {
		return err
	}

	enrolled, failures, err := forEachFile(ctx, files, func(ctx context.Context, file string) (Enrollment, error) {
		name := enrollSpeaker
		if name == "" {
			name = speaker.SpeakerFromFilename(file)
		}
		emb, err := p.EmbedFile(ctx, file)
		if err != nil {
			return Enrollment{}, err
		}
		vectors := emb.Vectors()
		source, err := filepath.Abs(file)
		if err != nil {
			source = file
		}

		var points int
		err = retry(ctx, func() error {
			o := opts
			o.NewID = pointIDs(source)
			pts, err := speaker.Enroll(ctx, store, name, source, vectors, o)
			points = len(pts)
			return err
		})
		if err != nil {
			return Enrollment{}, err
		}
		label, err := opts.Hasher.Label(speaker.Mean(vectors))
		if err != nil {
			logger.Warn("voice label failed", "file", file, "error", err)
		}
		logger.Info("enrolled", "file", file, "speaker", name, "points", points)
		return Enrollment{File: file, Speaker: name, Points: points, Label: label}, nil
	})
	if err != nil {
		return err
	}

	return output(cmd, EnrollReport{
		Collection: globalConfig.Store.Collection,
		Enrolled:   enrolled,
		Failures:   failures,
		Total:      store.Len(),
	})
}
