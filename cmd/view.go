package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	m "flakyfence.dev/pkg/flakyfence/internal/model"
	"flakyfence.dev/pkg/flakyfence/pkg"
)

var viewTranscriptsFlag bool

// viewCmd represents the view command.
var viewCmd = newViewCmd()

func newViewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "view [run-id]",
		Short: "View a saved analysis run",
		Long:  "View one saved analysis run in detail, defaulting to the most recent.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			reportsDir := viper.GetString(outputFlagName)

			run, err := loadRequestedRun(reportsDir, args)
			if err != nil {
				return err
			}

			var transcripts []m.Transcript
			if viewTranscriptsFlag && run.Transcripts != "" {
				transcripts, err = loadTranscripts(run.Transcripts)
				if err != nil {
					return fmt.Errorf("failed to load transcripts: %w", err)
				}
			}

			return ui.DisplayRun(context.Background(), run, transcripts)
		},
	}

	cmd.Flags().BoolVar(&viewTranscriptsFlag, transcriptsFlag, false, "include the executor transcripts of the run")

	return cmd
}

func init() {
	rootCmd.AddCommand(viewCmd)
}

func loadRequestedRun(reportsDir string, args []string) (m.Run, error) {
	if len(args) == 1 {
		run, err := reportStore.LoadRun(reportsDir, args[0])
		if err != nil {
			return m.Run{}, fmt.Errorf("failed to load run %s: %w", args[0], err)
		}

		return run, nil
	}

	runs, err := reportStore.LoadRuns(reportsDir)
	if err != nil {
		return m.Run{}, fmt.Errorf("failed to load runs: %w", err)
	}

	if len(runs) == 0 {
		return m.Run{}, errors.New("no runs recorded")
	}

	return runs[0], nil
}

func loadTranscripts(path string) ([]m.Transcript, error) {
	spool, err := pkg.OpenSpool[m.Transcript](path)
	if err != nil {
		return nil, err
	}

	defer func() { _ = spool.Close() }()

	var transcripts []m.Transcript

	err = spool.Range(func(_ uint64, item m.Transcript) error {
		transcripts = append(transcripts, item)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return transcripts, nil
}
