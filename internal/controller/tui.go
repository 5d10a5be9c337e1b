package controller

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	m "flakyfence.dev/pkg/flakyfence/internal/model"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	victimStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
)

// analysisDoneMsg tells the program the pipeline finished.
type analysisDoneMsg struct{}

// TUI implements UI with a Bubble Tea program that animates analysis
// progress on a terminal.
type TUI struct {
	output  io.Writer
	program *tea.Program
	done    chan struct{}
}

// NewTUI creates a new TUI.
func NewTUI(output io.Writer) *TUI {
	return &TUI{output: output}
}

// Start launches the interactive program in the background.
func (t *TUI) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.program = tea.NewProgram(newAnalysisModel(), tea.WithOutput(t.output))
	t.done = make(chan struct{})

	go func() {
		defer close(t.done)

		if _, err := t.program.Run(); err != nil {
			slog.Warn("Interactive display failed", "error", err)
		}
	}()

	return nil
}

// HandleEvent forwards a pipeline event into the running program.
func (t *TUI) HandleEvent(ctx context.Context, event m.Event) {
	if t.program == nil || ctx.Err() != nil {
		return
	}

	t.program.Send(event)
}

// Close tells the program the analysis is over.
func (t *TUI) Close(ctx context.Context) {
	if t.program == nil {
		return
	}

	t.program.Send(analysisDoneMsg{})
}

// Wait blocks until the program has rendered its final frame.
func (t *TUI) Wait(ctx context.Context) {
	if t.done == nil {
		return
	}

	select {
	case <-t.done:
	case <-ctx.Done():
	}
}

// DisplayFindings prints the final pollution report after the program has
// rendered its last frame.
func (t *TUI) DisplayFindings(ctx context.Context, findings []m.Finding) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := fmt.Fprint(t.output, renderFindings(findings))

	return err
}

// DisplayRuns prints the recorded runs. The listing is static, so no
// program is started for it.
func (t *TUI) DisplayRuns(ctx context.Context, runs []m.Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if len(runs) == 0 {
		_, err := fmt.Fprintln(t.output, "No runs recorded.")
		return err
	}

	_, err := fmt.Fprintf(t.output, "\n%s", renderRunsTable(runs))

	return err
}

// DisplayRun prints one recorded run.
func (t *TUI) DisplayRun(ctx context.Context, run m.Run, transcripts []m.Transcript) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	text, err := renderRun(run, transcripts)
	if err != nil {
		return err
	}

	_, err = fmt.Fprint(t.output, text)

	return err
}

// analysisModel is the Bubble Tea model for a running analysis: finished
// milestones on top, a spinner with the current activity below, and a
// probe progress bar during bisection.
type analysisModel struct {
	spinner  spinner.Model
	progress progress.Model
	total    int
	victims  int
	expected int // probes the current bisection should need
	probes   int
	current  string
	lines    []string
	done     bool
	quitting bool
}

func newAnalysisModel() analysisModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	return analysisModel{
		spinner:  sp,
		progress: progress.New(progress.WithDefaultGradient()),
		current:  "Starting analysis",
	}
}

func (am analysisModel) Init() tea.Cmd {
	return am.spinner.Tick
}

func (am analysisModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		width := msg.Width - 4
		if width > 60 {
			width = 60
		}

		if width > 0 {
			am.progress.Width = width
		}

		return am, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.String() == "q" {
			am.quitting = true
			return am, tea.Quit
		}

		return am, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		am.spinner, cmd = am.spinner.Update(msg)

		return am, cmd

	case m.Event:
		return am.applyEvent(msg), nil

	case analysisDoneMsg:
		am.done = true
		return am, tea.Quit
	}

	return am, nil
}

func (am analysisModel) applyEvent(event m.Event) analysisModel {
	switch event.Kind {
	case m.EventAnalysisStarted:
		am.total = event.Total
		am.current = fmt.Sprintf("Running full suite (%d tests)", event.Total)

	case m.EventSuiteRun:
		if event.Passed {
			am.lines = append(am.lines, "Suite passed, nothing to bisect")
			am.current = ""
		} else {
			am.lines = append(am.lines, fmt.Sprintf("Suite reported %d failure(s)", len(event.Tests)))
			am.current = "Re-running failures in isolation"
		}

	case m.EventVictimConfirmed:
		am.victims++
		am.lines = append(am.lines, victimStyle.Render(fmt.Sprintf("🔴 %s", event.Victim))+" fails in order, passes alone")

	case m.EventBisectStarted:
		am.expected = expectedProbes(event.Total)
		am.probes = 0
		am.current = fmt.Sprintf("Bisecting %d suspect(s) for %s", event.Total, event.Victim)

	case m.EventProbeDone:
		am.probes++

	case m.EventFindingReady:
		am.expected = 0
		am.current = ""

		if event.Finding != nil {
			am.lines = append(am.lines, "   polluted by: "+strings.Join(m.Strings(event.Finding.Polluters), ", "))
		}

	case m.EventLimitReached:
		am.lines = append(am.lines, fmt.Sprintf("⚠️  Victim limit reached, skipping %d remaining victim(s)", event.Skipped))
	}

	return am
}

func (am analysisModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("🔬 FlakyFence") + "\n\n")

	for _, line := range am.lines {
		b.WriteString("  " + line + "\n")
	}

	if am.done || am.quitting {
		return b.String()
	}

	if am.current != "" {
		b.WriteString("\n  " + am.spinner.View() + " " + subtleStyle.Render(am.current) + "\n")
	}

	if am.expected > 0 {
		fraction := float64(am.probes) / float64(am.expected)
		if fraction > 1 {
			fraction = 1
		}

		b.WriteString("  " + am.progress.ViewAs(fraction) + "\n")
	}

	return b.String()
}

// expectedProbes estimates how many probes halving needs: two per round,
// rounds shrinking the suspect set by half each time.
func expectedProbes(suspects int) int {
	probes := 0
	for n := suspects; n > 1; n = (n + 1) / 2 {
		probes += 2
	}

	return probes
}
