package commands

import (
	"github.com/spf13/cobra"

	"github.com/haivivi/voxprint/pkg/transcode"
)

var prepareCmd = &cobra.Command{
	Use:   "prepare <in.wav> <out.wav>",
	Short: "Convert a WAV file to mono 16-bit at the configured sample rate",
	Long: `Resample a 16-bit WAV file of any rate to audio.sample_rate, keeping
only the first channel, and write it as a mono 16-bit WAV file.`,
	Args: cobra.ExactArgs(2),
	RunE: runPrepare,
}

func init() {
	rootCmd.AddCommand(prepareCmd)
}

// PrepareResult is the output of the prepare command.
type PrepareResult struct {
	Source      string `json:"source" yaml:"source"`
	Destination string `json:"destination" yaml:"destination"`
	SampleRate  int    `json:"sample_rate" yaml:"sample_rate"`
}

func runPrepare(cmd *cobra.Command, args []string) error {
	r, err := transcode.NewResampler(globalConfig.Audio.SampleRate, transcode.WithLogger(logger))
	if err != nil {
		return err
	}
	if err := r.Transcode(cmd.Context(), args[0], args[1]); err != nil {
		return err
	}
	return output(cmd, PrepareResult{Source: args[0], Destination: args[1], SampleRate: r.Rate()})
}
