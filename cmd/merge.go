package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// mergeCmd represents the merge command.
var mergeCmd = newMergeCmd()

func newMergeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge [dirs...]",
		Short: "Merge sharded run reports into the reports directory",
		Long: `Merge analysis runs saved by CI shards into a single reports directory.
Each argument is a shard's reports directory; its runs are re-saved under
the configured output directory.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reportsDir := viper.GetString(outputFlagName)

			merged := 0

			for _, shardDir := range args {
				runs, err := reportStore.LoadRuns(shardDir)
				if err != nil {
					return fmt.Errorf("failed to load runs from %s: %w", shardDir, err)
				}

				for i := range runs {
					if _, err := reportStore.SaveRun(reportsDir, &runs[i]); err != nil {
						return fmt.Errorf("failed to merge run %s: %w", runs[i].ID, err)
					}

					merged++
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Merged %d run(s) into %s\n", merged, reportsDir)

			return nil
		},
	}

	return cmd
}

func init() {
	rootCmd.AddCommand(mergeCmd)
}
