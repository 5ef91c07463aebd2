package commands

import (
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/dyadlab/turnline/pkg/pipeline"
	"github.com/dyadlab/turnline/pkg/trackio"
	"github.com/dyadlab/turnline/pkg/tracks"
	"github.com/dyadlab/turnline/pkg/wav"
)

var evidenceSmooth time.Duration

var evidenceCmd = &cobra.Command{
	Use:   "evidence <audio.wav> <bundle-dir>",
	Short: "Build an evidence bundle and store it on disk",
	Long: `Derive evidence tracks from a PCM16 WAV file without decoding:
smoothed energy and a soft voice-activity score from the mono mixdown,
plus a leakage likelihood when the file is stereo. The tracks are
written under <bundle-dir> together with a manifest carrying the
bundle content digest.

The bundle manifest is printed as the command result.

Examples:
  turnline evidence session.wav bundle/
  turnline evidence session.wav bundle/ --jq '.digest'`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		audio, err := wav.ReadFile(args[0])
		if err != nil {
			return err
		}
		bundle, err := pipeline.BuildBundle(audio, pipeline.Options{
			Smooth: evidenceSmooth,
			Logger: newLogger(),
		})
		if err != nil {
			return err
		}
		manifest, err := trackio.WriteDir(args[1], bundle, map[string]string{
			"source": filepath.Base(args[0]),
		})
		if err != nil {
			return err
		}
		return writeResult(manifest)
	},
}

func init() {
	evidenceCmd.Flags().DurationVar(&evidenceSmooth, "smooth", tracks.DefaultSmooth, "energy smoothing window")

	rootCmd.AddCommand(evidenceCmd)
}
