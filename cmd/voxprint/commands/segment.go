package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/haivivi/voxprint/pkg/chunker"
	"github.com/haivivi/voxprint/pkg/cli"
	"github.com/haivivi/voxprint/pkg/jsontime"
	"github.com/haivivi/voxprint/pkg/speaker"
	"github.com/haivivi/voxprint/pkg/storage"
	"github.com/haivivi/voxprint/pkg/voiceprint"
)

var (
	segmentKeep     bool
	segmentWindow   int
	segmentMinRatio float32
	segmentMinScore float32
)

var segmentCmd = &cobra.Command{
	Use:   "segment <wav>",
	Short: "Identify the speaker of every chunk of a long recording",
	Long: `Chunk a recording with the chunking settings, then embed and identify
each chunk against the vector store. A sliding window over the per-chunk
speakers classifies each point in time as a single speaker, an overlap of
two, or unknown.

Chunks are written under segments/<run-id>/ in the configured storage and
removed afterwards unless --keep is set.`,
	Args: cobra.ExactArgs(1),
	RunE: runSegment,
}

func init() {
	segmentCmd.Flags().BoolVar(&segmentKeep, "keep", false, "keep the chunk files")
	segmentCmd.Flags().IntVar(&segmentWindow, "window", 5, "chunks in the turn detection window")
	segmentCmd.Flags().Float32Var(&segmentMinRatio, "min-ratio", 0.6, "window share for a dominant speaker")
	segmentCmd.Flags().Float32Var(&segmentMinScore, "min-score", 0, "cosine similarity below which a match votes Unknown")
	rootCmd.AddCommand(segmentCmd)
}

// Segment is the identification of one chunk.
type Segment struct {
	Index     int               `json:"index" yaml:"index"`
	StartTime jsontime.Duration `json:"start_time" yaml:"start_time"`
	Duration  jsontime.Duration `json:"duration" yaml:"duration"`
	Speaker   string            `json:"speaker" yaml:"speaker"`
	Share     float64           `json:"share" yaml:"share"`
	Label     string            `json:"label,omitempty" yaml:"label,omitempty"`

	// Turn is the detector's view after this chunk; absent for the first.
	Turn *speaker.Turn `json:"turn,omitempty" yaml:"turn,omitempty"`
}

// SegmentReport is the output of the segment command.
type SegmentReport struct {
	File     string    `json:"file" yaml:"file"`
	RunID    string    `json:"run_id" yaml:"run_id"`
	Segments []Segment `json:"segments" yaml:"segments"`
}

func (r SegmentReport) Table() cli.Table {
	t := cli.Table{Headers: []string{"INDEX", "START", "DURATION", "SPEAKER", "SHARE", "TURN"}}
	for _, s := range r.Segments {
		turn := "-"
		if s.Turn != nil {
			turn = s.Turn.Status.String()
			if s.Turn.Speaker != "" {
				turn += " " + s.Turn.Speaker
			}
		}
		t.Rows = append(t.Rows, []string{
			strconv.Itoa(s.Index),
			cli.FormatDuration(s.StartTime.Std()),
			cli.FormatDuration(s.Duration.Std()),
			s.Speaker, formatShare(s.Share), turn,
		})
	}
	return t
}

func runSegment(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	file := args[0]

	p, err := newPipeline()
	if err != nil {
		return err
	}
	vs, err := openVectorStore(ctx, p.Dimension())
	if err != nil {
		return err
	}
	defer vs.Close()
	if vs.Len() == 0 {
		return errors.New("vector store is empty; run enroll first")
	}
	opts, err := speakerOptions(p.Dimension(), segmentMinScore)
	if err != nil {
		return err
	}

	fs, err := newFileStore()
	if err != nil {
		return err
	}
	runID := uuid.NewString()
	cfg := globalConfig.Chunking.Config
	cfg.Prefix = path.Join("segments", runID)
	engine, err := chunker.NewEngine(cfg, fs, chunker.WithLogger(logger))
	if err != nil {
		return err
	}

	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	res, err := engine.Run(ctx, f)
	if res != nil && !segmentKeep {
		defer func() {
			// Removal ignores cancellation.
			if rmErr := engine.Remove(context.WithoutCancel(ctx), res.Chunks); rmErr != nil {
				logger.Error("remove segment chunks", "run_id", runID, "error", rmErr)
			}
		}()
	}
	if err != nil {
		return fmt.Errorf("chunk %s: %w", file, err)
	}

	det := speaker.NewDetector(speaker.WithWindowSize(segmentWindow), speaker.WithMinRatio(segmentMinRatio))
	report := SegmentReport{File: file, RunID: runID}
	for _, c := range res.Chunks {
		seg, err := identifyChunk(ctx, p, vs, fs, c, opts)
		if err != nil {
			return fmt.Errorf("chunk %d: %w", c.Index, err)
		}
		seg.Turn = det.Feed(seg.Speaker)
		report.Segments = append(report.Segments, seg)
	}
	return output(cmd, report)
}

func identifyChunk(ctx context.Context, p *voiceprint.Pipeline, vs *vectorStore, fs storage.FileStore, c chunker.Chunk, opts speaker.Options) (Segment, error) {
	seg := Segment{
		Index:     c.Index,
		StartTime: jsontime.Duration(c.StartTime),
		Duration:  jsontime.Duration(c.Duration),
		Speaker:   speaker.Unknown,
	}

	rc, err := fs.Read(ctx, c.Path)
	if err != nil {
		return seg, err
	}
	defer rc.Close()

	emb, err := p.Embed(ctx, rc)
	if errors.Is(err, voiceprint.ErrEmptySequence) {
		// Silence: nothing to compare.
		logger.Debug("chunk has no usable frames", "index", c.Index)
		return seg, nil
	}
	if err != nil {
		return seg, err
	}

	v, err := speaker.Identify(ctx, vs, emb.Vectors(), opts)
	if err != nil {
		return seg, err
	}
	seg.Speaker = v.Speaker
	seg.Share = v.Share
	seg.Label = v.Label
	return seg, nil
}
