package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// listCmd represents the list command.
var listCmd = newListCmd()

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved analysis runs",
		Long:  "List the analysis runs saved in the reports directory, most recent first.",
		Args:  cobra.ExactArgs(0),
		RunE: func(_ *cobra.Command, _ []string) error {
			runs, err := reportStore.LoadRuns(viper.GetString(outputFlagName))
			if err != nil {
				return fmt.Errorf("failed to load runs: %w", err)
			}

			return ui.DisplayRuns(context.Background(), runs)
		},
	}

	return cmd
}

func init() {
	rootCmd.AddCommand(listCmd)
}
