package controller

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/spf13/cobra"

	m "flakyfence.dev/pkg/flakyfence/internal/model"
)

// SimpleUI implements UI using cobra Command's output writer.
type SimpleUI struct {
	cmd *cobra.Command
}

// NewSimpleUI creates a new SimpleUI.
func NewSimpleUI(cmd *cobra.Command) *SimpleUI {
	return &SimpleUI{cmd: cmd}
}

// Start initializes the UI.
func (s *SimpleUI) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return nil
}

// Close finalizes the UI.
func (s *SimpleUI) Close(ctx context.Context) {
	if err := ctx.Err(); err != nil {
		return
	}
}

// Wait blocks until the UI is closed (no-op for SimpleUI).
func (s *SimpleUI) Wait(ctx context.Context) {
	if err := ctx.Err(); err != nil {
		return
	}
	// SimpleUI doesn't block - it just prints and continues
}

// HandleEvent prints a progress line for the milestones worth narrating.
// Individual probes stay silent to keep CI logs readable.
func (s *SimpleUI) HandleEvent(ctx context.Context, event m.Event) {
	if err := ctx.Err(); err != nil {
		return
	}

	switch event.Kind {
	case m.EventAnalysisStarted:
		s.printf("🔬 FlakyFence analyzing %d tests...\n", event.Total)
	case m.EventSuiteRun:
		if !event.Passed {
			s.printf("Suite reported %d failure(s)\n", len(event.Tests))
		}
	case m.EventVictimConfirmed:
		s.printf("🔴 %s fails in suite order but passes alone\n", event.Victim)
	case m.EventBisectStarted:
		s.printf("Bisecting %d suspect(s) for %s\n", event.Total, event.Victim)
	case m.EventLimitReached:
		s.printf("⚠️  Victim limit reached, skipping %d remaining victim(s)\n", event.Skipped)
	case m.EventProbeDone, m.EventFindingReady:
	}
}

// DisplayFindings prints the final pollution report.
func (s *SimpleUI) DisplayFindings(ctx context.Context, findings []m.Finding) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.printf("%s", renderFindings(findings))

	return nil
}

// DisplayRuns prints a table of recorded runs, most recent first.
func (s *SimpleUI) DisplayRuns(ctx context.Context, runs []m.Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if len(runs) == 0 {
		s.printf("No runs recorded.\n")
		return nil
	}

	s.printf("\n%s", renderRunsTable(runs))

	return nil
}

// DisplayRun prints one recorded run: its findings, the environment diffs
// behind them, and any replayed transcripts.
func (s *SimpleUI) DisplayRun(ctx context.Context, run m.Run, transcripts []m.Transcript) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	text, err := renderRun(run, transcripts)
	if err != nil {
		return err
	}

	s.printf("%s", text)

	return nil
}

func (s *SimpleUI) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(s.cmd.OutOrStdout(), format, args...)
}

func renderFindings(findings []m.Finding) string {
	if len(findings) == 0 {
		return "✅ No test pollution detected!\n"
	}

	var b strings.Builder

	for _, finding := range findings {
		fmt.Fprintf(&b, "🔴 %s\n", finding.Victim)
		fmt.Fprintf(&b, "   polluted by: %s\n", strings.Join(m.Strings(finding.Polluters), ", "))

		if len(finding.StateChanges) == 0 {
			continue
		}

		b.WriteString("   state changes:\n")

		for _, change := range finding.StateChanges {
			fmt.Fprintf(&b, "     %s\n", describeChange(change))
		}
	}

	return b.String()
}

func describeChange(change m.StateChange) string {
	switch change.Kind {
	case m.EnvAdded:
		return fmt.Sprintf("env_added %s=%s", change.Key, change.Value)
	case m.EnvRemoved:
		return fmt.Sprintf("env_removed %s", change.Key)
	case m.EnvChanged:
		return fmt.Sprintf("env_changed %s: %s -> %s", change.Key, change.Old, change.New)
	case m.ModuleAdded:
		return fmt.Sprintf("module_added %s", change.Module)
	}

	return string(change.Kind)
}

func renderRunsTable(runs []m.Run) string {
	var tableBuffer bytes.Buffer

	table := tablewriter.NewWriter(&tableBuffer)
	table.SetHeader([]string{"ID", "Started", "Project", "Tests", "Findings"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_CENTER,
		tablewriter.ALIGN_CENTER,
	})

	for _, run := range runs {
		table.Append([]string{
			run.ID,
			run.StartedAt.Format(time.RFC3339),
			run.Project,
			strconv.Itoa(run.Tests),
			strconv.Itoa(len(run.Findings)),
		})
	}

	table.SetFooter([]string{
		fmt.Sprintf("Total Runs %d", len(runs)), "", "", "", "",
	})
	table.Render()

	return tableBuffer.String()
}

func renderRun(run m.Run, transcripts []m.Transcript) (string, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "Run %s\n", run.ID)
	fmt.Fprintf(&b, "Project: %s | Started: %s | Tests: %d\n\n", run.Project, run.StartedAt.Format(time.RFC3339), run.Tests)
	b.WriteString(renderFindings(run.Findings))

	for _, finding := range run.Findings {
		diffs, err := renderEnvDiffs(finding)
		if err != nil {
			return "", err
		}

		if diffs != "" {
			b.WriteString("\n")
			b.WriteString(diffs)
		}
	}

	if len(transcripts) > 0 {
		b.WriteString("\n")
		b.WriteString(renderTranscripts(transcripts))
	}

	return b.String(), nil
}

// renderEnvDiffs renders every changed environment value of a finding as
// a unified diff, which keeps multi-line values like PATH readable.
func renderEnvDiffs(finding m.Finding) (string, error) {
	var b strings.Builder

	for _, change := range finding.StateChanges {
		if change.Kind != m.EnvChanged {
			continue
		}

		diff := difflib.UnifiedDiff{
			A:        difflib.SplitLines(change.Old),
			B:        difflib.SplitLines(change.New),
			FromFile: change.Key + " (before)",
			ToFile:   change.Key + " (after)",
			Context:  1,
		}

		text, err := difflib.GetUnifiedDiffString(diff)
		if err != nil {
			return "", fmt.Errorf("failed to diff %s: %w", change.Key, err)
		}

		b.WriteString(text)
	}

	return b.String(), nil
}

func renderTranscripts(transcripts []m.Transcript) string {
	var b strings.Builder

	b.WriteString("Transcripts:\n")

	for _, transcript := range transcripts {
		verdict := "passed"
		if !transcript.Passed {
			verdict = "failed"
		}

		fmt.Fprintf(&b, "-- %s [%s] %s in %s --\n",
			transcript.Stage,
			strings.Join(m.Strings(transcript.Sequence), " "),
			verdict,
			transcript.Duration.Round(time.Millisecond))

		if output := strings.TrimSpace(transcript.Output); output != "" {
			b.WriteString(output)
			b.WriteString("\n")
		}
	}

	return b.String()
}
