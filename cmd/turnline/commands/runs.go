package commands

import (
	"github.com/spf13/cobra"

	"github.com/dyadlab/turnline/pkg/artifact"
	"github.com/dyadlab/turnline/pkg/pipeline"
)

var runsOutDir string

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List exported runs",
	Long: `List the run ids present under an artifact directory, as written by
'turnline run'.

Examples:
  turnline runs
  turnline runs --out results --format json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := artifact.NewLocal(runsOutDir)
		if err != nil {
			return err
		}
		ids, err := pipeline.ListRuns(cmd.Context(), store)
		if err != nil {
			return err
		}
		return writeResult(ids)
	},
}

func init() {
	runsCmd.Flags().StringVar(&runsOutDir, "out", ".", "root directory holding run artifacts")

	rootCmd.AddCommand(runsCmd)
}
