package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/dyadlab/turnline/pkg/eval"
	"github.com/dyadlab/turnline/pkg/pipeline"
)

var (
	evalParamsFile string
	evalTolerance  time.Duration
	evalMicroMax   time.Duration
	evalWAVDir     string
	evalReport     bool
)

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Score the decoder against synthetic cases",
	Long: `Generate synthetic dyadic audio with known frame labels, run the
full pipeline on it and score the output: boundary F1, framewise
speech IoU, micro-unit rate and speaker-switch rate.

By default a styled scorecard is printed. With --report the raw
metrics are emitted via the global --format/--jq flags instead.

Examples:
  turnline eval
  turnline eval --params tuning.yaml --tolerance 20ms
  turnline eval --report --format json --jq '.[0].boundary_f1'
  turnline eval --wav-dir cases/   # also persist the case audio`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := loadParams(evalParamsFile)
		if err != nil {
			return err
		}

		if evalWAVDir != "" {
			if err := os.MkdirAll(evalWAVDir, 0o755); err != nil {
				return err
			}
		}

		cases := []*eval.Case{eval.LeakageStress()}
		results := make([]eval.Result, 0, len(cases))
		for _, c := range cases {
			if evalWAVDir != "" {
				path := filepath.Join(evalWAVDir, c.ID+".wav")
				if err := c.WriteWAV(path); err != nil {
					return err
				}
			}

			res, err := pipeline.Run(cmd.Context(), c.Audio, pipeline.Options{
				Params: params,
				Logger: newLogger(),
			})
			if err != nil {
				return fmt.Errorf("case %s: %w", c.ID, err)
			}

			tb := res.Bundle.TimeBase()
			score := eval.BoundaryF1(
				eval.Boundaries(c.Ref, tb),
				eval.Boundaries(res.States, tb),
				evalTolerance.Seconds(),
			)
			results = append(results, eval.Result{
				Case:            c.ID,
				BoundaryF1:      score.F1,
				SpeechIoU:       eval.FramewiseIoU(eval.SpeechMask(c.Ref), eval.SpeechMask(res.States)),
				MicroIPUsPerMin: eval.MicroIPUsPerMin(res.Units, c.Audio.Duration(), evalMicroMax),
				SwitchesPerMin:  eval.SpeakerSwitchesPerMin(res.States, tb),
			})
		}

		if evalReport {
			return writeResult(results)
		}
		fmt.Fprint(cmd.OutOrStdout(), eval.RenderScorecard(results))
		return nil
	},
}

func init() {
	evalCmd.Flags().StringVarP(&evalParamsFile, "params", "p", "", "decoder params YAML file")
	evalCmd.Flags().DurationVar(&evalTolerance, "tolerance", 50*time.Millisecond, "boundary match tolerance")
	evalCmd.Flags().DurationVar(&evalMicroMax, "micro-max", 200*time.Millisecond, "units shorter than this count as micro")
	evalCmd.Flags().StringVar(&evalWAVDir, "wav-dir", "", "also write the synthetic case audio to this directory")
	evalCmd.Flags().BoolVar(&evalReport, "report", false, "emit raw metrics via --format instead of the scorecard")

	rootCmd.AddCommand(evalCmd)
}
