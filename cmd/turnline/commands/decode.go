package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/dyadlab/turnline/pkg/decode"
	"github.com/dyadlab/turnline/pkg/ipu"
	"github.com/dyadlab/turnline/pkg/pipeline"
	"github.com/dyadlab/turnline/pkg/timebase"
	"github.com/dyadlab/turnline/pkg/trackio"
)

var (
	decodeParamsFile string
	decodeMinIPU     time.Duration
	decodeDiag       bool
)

// segment is one maximal run of a single state.
type segment struct {
	State string  `yaml:"state" json:"state"`
	Start float64 `yaml:"start" json:"start"`
	End   float64 `yaml:"end" json:"end"`
}

type decodeReport struct {
	Digest   string         `yaml:"digest" json:"digest"`
	Frames   int            `yaml:"frames" json:"frames"`
	Segments []segment      `yaml:"segments" json:"segments"`
	Units    []ipu.IPU      `yaml:"units" json:"units"`
	Counts   map[string]int `yaml:"frame_counts" json:"frame_counts"`

	// MeanMargin is only filled with --diagnostics.
	MeanMargin float64 `yaml:"mean_margin,omitempty" json:"mean_margin,omitempty"`
}

var decodeCmd = &cobra.Command{
	Use:   "decode <bundle-dir>",
	Short: "Decode a stored evidence bundle into states and units",
	Long: `Read an evidence bundle written by 'turnline evidence', fuse its
tracks and decode the state sequence, then segment the result into
inter-pausal units.

The report carries the state segments, the unit list and per-state
frame counts.

Examples:
  turnline decode bundle/
  turnline decode bundle/ --params tuning.yaml --format json --jq '.units'`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bundle, manifest, err := trackio.ReadDir(args[0])
		if err != nil {
			return err
		}
		bundle, err = pipeline.Canonicalize(bundle)
		if err != nil {
			return err
		}
		params, err := loadParams(decodeParamsFile)
		if err != nil {
			return err
		}

		cfg := params.Config(bundle.TimeBase())
		res, err := decode.Decode(bundle, &cfg, decode.Options{Diagnostics: decodeDiag})
		if err != nil {
			return err
		}
		units := ipu.Extract(res.States, bundle.TimeBase(), ipu.Options{
			MinDuration: decodeMinIPU,
		})

		report := decodeReport{
			Digest:   manifest.Digest,
			Frames:   len(res.States),
			Segments: stateSegments(res.States, bundle.TimeBase()),
			Units:    units,
			Counts:   stateCounts(res.States),
		}
		if res.Diagnostics != nil && len(res.Diagnostics.Margin) > 0 {
			var sum float64
			for _, m := range res.Diagnostics.Margin {
				sum += m
			}
			report.MeanMargin = sum / float64(len(res.Diagnostics.Margin))
		}
		return writeResult(report)
	},
}

func stateSegments(states []decode.State, tb timebase.TimeBase) []segment {
	var out []segment
	for i := 0; i < len(states); {
		j := i
		for j < len(states) && states[j] == states[i] {
			j++
		}
		out = append(out, segment{
			State: states[i].String(),
			Start: tb.FrameToTime(i),
			End:   tb.FrameToTime(j),
		})
		i = j
	}
	return out
}

func stateCounts(states []decode.State) map[string]int {
	counts := make(map[string]int, decode.NumStates)
	for _, s := range states {
		counts[s.String()]++
	}
	return counts
}

func init() {
	decodeCmd.Flags().StringVarP(&decodeParamsFile, "params", "p", "", "decoder params YAML file")
	decodeCmd.Flags().DurationVar(&decodeMinIPU, "min-ipu", pipeline.DefaultMinIPU, "drop units shorter than this")
	decodeCmd.Flags().BoolVar(&decodeDiag, "diagnostics", false, "include decode diagnostics in the report")

	rootCmd.AddCommand(decodeCmd)
}
