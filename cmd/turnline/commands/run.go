package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/dyadlab/turnline/pkg/artifact"
	"github.com/dyadlab/turnline/pkg/pipeline"
	"github.com/dyadlab/turnline/pkg/wav"
)

var (
	runParamsFile string
	runCacheDir   string
	runOutDir     string
	runMinIPU     time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run <audio.wav>",
	Short: "Label a recording and export run artifacts",
	Long: `Run the full pipeline on a PCM16 WAV file: build evidence tracks,
fuse and decode them into a state sequence, segment the sequence into
inter-pausal units, and export a Praat TextGrid, a unit list and a run
manifest under <out>/runs/<run id>/.

The run manifest is printed as the command result.

Examples:
  turnline run session.wav
  turnline run session.wav --params tuning.yaml --min-ipu 200ms
  turnline run session.wav --cache-dir .cache --format json --jq '.run_id'`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := loadParams(runParamsFile)
		if err != nil {
			return err
		}
		audio, err := wav.ReadFile(args[0])
		if err != nil {
			return err
		}
		store, err := openCache(runCacheDir)
		if err != nil {
			return err
		}
		if store != nil {
			defer store.Close()
		}

		res, err := pipeline.Run(cmd.Context(), audio, pipeline.Options{
			Params: params,
			MinIPU: runMinIPU,
			Cache:  store,
			Logger: newLogger(),
		})
		if err != nil {
			return err
		}

		local, err := artifact.NewLocal(runOutDir)
		if err != nil {
			return err
		}
		manifest, err := pipeline.Export(cmd.Context(), local, res, params)
		if err != nil {
			return err
		}
		return writeResult(manifest)
	},
}

func init() {
	runCmd.Flags().StringVarP(&runParamsFile, "params", "p", "", "decoder params YAML file")
	runCmd.Flags().StringVar(&runCacheDir, "cache-dir", "", "directory for the bundle and decode cache")
	runCmd.Flags().StringVar(&runOutDir, "out", ".", "root directory for run artifacts")
	runCmd.Flags().DurationVar(&runMinIPU, "min-ipu", pipeline.DefaultMinIPU, "drop units shorter than this")

	rootCmd.AddCommand(runCmd)
}
