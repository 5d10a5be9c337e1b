package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"flakyfence.dev/pkg/flakyfence/internal/adapter"
	"flakyfence.dev/pkg/flakyfence/internal/domain"
	m "flakyfence.dev/pkg/flakyfence/internal/model"
	"flakyfence.dev/pkg/flakyfence/pkg"
)

// eventBufferSize decouples the analysis loop from UI rendering.
const eventBufferSize = 16

var analyzeProjectFlag string
var analyzeLimitFlag int
var analyzeSuiteFlag string
var analyzeSarifFlag string
var analyzeJSONFlag bool
var analyzeJUnitFlag string
var analyzePythonFlag string
var analyzeProbeTimeoutFlag int64

// analyzeCmd represents the analyze command.
var analyzeCmd = newAnalyzeCmd()

func newAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze [tests...]",
		Short: "Find order-dependent test failures and their polluters",
		Long:  analyzeLongDescription,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, args)
		},
	}

	configureAnalyzeFlags(cmd)

	return cmd
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}

func configureAnalyzeFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&analyzeProjectFlag, projectFlagName, "C", viper.GetString(projectConfigKey), "project directory containing the suite")
	bindFlagToConfig(cmd.Flags().Lookup(projectFlagName), projectConfigKey)

	cmd.Flags().IntVarP(&analyzeLimitFlag, limitFlagName, "l", viper.GetInt(limitConfigKey), "maximum victims to analyze, 0 means unlimited")
	bindFlagToConfig(cmd.Flags().Lookup(limitFlagName), limitConfigKey)

	cmd.Flags().StringVar(&analyzePythonFlag, pythonFlagName, viper.GetString(pythonConfigKey), "python interpreter used to run pytest")
	bindFlagToConfig(cmd.Flags().Lookup(pythonFlagName), pythonConfigKey)

	cmd.Flags().Int64Var(&analyzeProbeTimeoutFlag, probeTimeoutFlag, viper.GetInt64(probeTimeoutKey), "per-invocation executor timeout in seconds")
	bindFlagToConfig(cmd.Flags().Lookup(probeTimeoutFlag), probeTimeoutKey)

	cmd.Flags().StringVar(&analyzeSuiteFlag, suiteFlagName, "", "suite manifest (yaml) pinning project, limit and test order")
	cmd.Flags().StringVar(&analyzeSarifFlag, sarifFlagName, "", "write findings to a SARIF file")
	cmd.Flags().BoolVar(&analyzeJSONFlag, jsonOutputFlagName, false, "print findings as JSON instead of the report")
	cmd.Flags().StringVar(&analyzeJUnitFlag, junitFlagName, "", "write findings to a JUnit XML file")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	project, limit, tests, err := resolveSuite(cmd, args)
	if err != nil {
		return err
	}

	executor := newExecutor()

	if len(tests) == 0 {
		collected, err := executor.Collect(ctx, project)
		if err != nil {
			return fmt.Errorf("failed to collect tests: %w", err)
		}

		tests = collected
	}

	tests, err = filterTests(tests, viper.GetStringSlice(excludeConfigKey))
	if err != nil {
		return err
	}

	if len(tests) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No tests found.")
		return nil
	}

	reportsDir := viper.GetString(outputFlagName)

	// Spool executor transcripts next to the reports so view --transcripts
	// can replay them later. Analysis proceeds without transcripts when the
	// spool cannot be created.
	recorder := domain.NopRecorder()
	transcriptsPath := ""

	spool, err := pkg.NewSpool[m.Transcript](reportsDir)
	if err != nil {
		slog.Warn("failed to create transcript spool", "error", err)
	} else {
		defer func() { _ = spool.Close() }()

		recorder = adapter.NewSpoolRecorder(spool)
		transcriptsPath = spool.Path()
	}

	events := make(chan m.Event, eventBufferSize)

	var group errgroup.Group

	group.Go(func() error {
		for event := range events {
			ui.HandleEvent(ctx, event)
		}

		return nil
	})

	analyzer := newAnalysis(executor, recorder, func(event m.Event) {
		events <- event
	})

	if err := ui.Start(ctx); err != nil {
		close(events)
		return fmt.Errorf("failed to start display: %w", err)
	}

	startedAt := time.Now()
	findings, analyzeErr := analyzer.Analyze(ctx, project, tests, limit)

	close(events)

	if err := group.Wait(); err != nil {
		return fmt.Errorf("failed to drain events: %w", err)
	}

	ui.Close(ctx)
	ui.Wait(ctx)

	if analyzeErr != nil {
		return fmt.Errorf("failed to analyze suite: %w", analyzeErr)
	}

	if findings == nil {
		findings = []m.Finding{}
	}

	run := m.Run{
		Project:     project,
		StartedAt:   startedAt,
		Tests:       len(tests),
		Findings:    findings,
		Transcripts: transcriptsPath,
	}
	if _, err := reportStore.SaveRun(reportsDir, &run); err != nil {
		slog.Warn("failed to save run report", "error", err)
	}

	if err := writeReports(ctx, cmd, findings); err != nil {
		return err
	}

	if len(findings) > 0 {
		cmd.SilenceErrors = true
		cmd.SilenceUsage = true

		return errPollutionFound
	}

	return nil
}

// resolveSuite determines the project, limit and test order for one
// analysis. Explicit flags win over the suite manifest, which wins over
// configuration defaults; tests given as arguments win over the manifest.
func resolveSuite(cmd *cobra.Command, args []string) (string, int, []m.TestID, error) {
	project := viper.GetString(projectConfigKey)
	limit := viper.GetInt(limitConfigKey)
	tests := parseTests(args)

	if analyzeSuiteFlag == "" {
		return project, limit, tests, nil
	}

	file, err := os.Open(analyzeSuiteFlag)
	if err != nil {
		return "", 0, nil, fmt.Errorf("failed to open suite manifest: %w", err)
	}

	defer func() { _ = file.Close() }()

	suite, err := m.LoadSuite(file)
	if err != nil {
		return "", 0, nil, fmt.Errorf("failed to read suite manifest: %w", err)
	}

	if !cmd.Flags().Changed(projectFlagName) {
		project = suite.Project
	}

	if !cmd.Flags().Changed(limitFlagName) {
		limit = suite.Limit
	}

	if len(tests) == 0 {
		tests = suite.Tests
	}

	return project, limit, tests, nil
}

// writeReports renders findings in the selected format: SARIF and JSON
// replace the human report, JUnit is written alongside either.
func writeReports(ctx context.Context, cmd *cobra.Command, findings []m.Finding) error {
	switch {
	case analyzeSarifFlag != "":
		writer := adapter.SarifWriter{ToolVersion: toolVersion()}
		if err := writer.Write(analyzeSarifFlag, findings); err != nil {
			return fmt.Errorf("failed to write SARIF report: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "📄 SARIF → %s\n", analyzeSarifFlag)
	case analyzeJSONFlag:
		data, err := json.MarshalIndent(findings, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode findings: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), string(data))
	default:
		if err := ui.DisplayFindings(ctx, findings); err != nil {
			return fmt.Errorf("failed to display findings: %w", err)
		}
	}

	if analyzeJUnitFlag != "" {
		if err := (adapter.JUnitWriter{}).Write(analyzeJUnitFlag, findings); err != nil {
			return fmt.Errorf("failed to write JUnit report: %w", err)
		}
	}

	return nil
}
