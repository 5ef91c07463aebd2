package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/dyadlab/turnline/pkg/cache"
	"github.com/dyadlab/turnline/pkg/cliout"
	"github.com/dyadlab/turnline/pkg/decode"
)

var (
	// Global flags
	verbose      bool
	outputFormat string
	outputFile   string
	jqExpr       string
)

var rootCmd = &cobra.Command{
	Use:   "turnline",
	Short: "Frame-level conversational state labeling for dyadic audio",
	Long: `turnline - label two-party audio frame by frame.

Each 10 ms frame of a recording is assigned one of five states:
silence, speaker A, speaker B, overlap, or cross-channel leakage.
Evidence tracks (energy, voice activity, leakage likelihood) are
fused per frame and decoded with duration-constrained dynamic
programming, then segmented into inter-pausal units.

Commands:
  run       Full pipeline: WAV in, TextGrid and unit list out
  evidence  Build and store an evidence bundle from a WAV file
  decode    Decode a stored evidence bundle into states and units
  runs      List exported runs
  eval      Score the decoder against synthetic cases
  version   Show version information

Examples:
  # Label a recording and export artifacts under ./runs/<id>/
  turnline run session.wav

  # Tune decoding via a params file and keep a result cache
  turnline run session.wav --params tuning.yaml --cache-dir .cache

  # Inspect the evidence tracks without decoding
  turnline evidence session.wav bundle/
  turnline decode bundle/ --format json --jq '.units'`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "yaml", "result format: yaml or json")
	rootCmd.PersistentFlags().StringVarP(&outputFile, "output", "o", "", "write the result to a file instead of stdout")
	rootCmd.PersistentFlags().StringVar(&jqExpr, "jq", "", "filter the result through a jq expression")
}

// newLogger builds the command logger. Progress events go to stderr so
// stdout stays clean for result output.
func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// writeResult prints a command result honoring the global format,
// output and jq flags.
func writeResult(result any) error {
	return cliout.Write(result, cliout.Options{
		Format: cliout.Format(outputFormat),
		File:   outputFile,
		JQ:     jqExpr,
	})
}

// loadParams reads decoder params from a YAML file, starting from the
// shipped defaults so partial files only override what they name.
func loadParams(file string) (decode.Params, error) {
	p := decode.DefaultParams()
	if file == "" {
		return p, nil
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return p, err
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("params %s: %w", file, err)
	}
	return p, nil
}

// openCache opens the Badger-backed result cache, or returns nil when
// no directory is configured.
func openCache(dir string) (cache.Store, error) {
	if dir == "" {
		return nil, nil
	}
	return cache.NewBadger(cache.BadgerOptions{Dir: dir})
}
