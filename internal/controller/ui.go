// Package controller renders analysis progress, findings, and stored runs
// for humans.
package controller

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	m "flakyfence.dev/pkg/flakyfence/internal/model"
)

// UI displays the lifecycle of a pollution analysis.
// Implementations can use different output methods (simple text, TUI, etc).
type UI interface {
	Start(ctx context.Context) error
	Close(ctx context.Context)
	Wait(ctx context.Context) // Wait for the UI to finish rendering
	HandleEvent(ctx context.Context, event m.Event)
	DisplayFindings(ctx context.Context, findings []m.Finding) error
	DisplayRuns(ctx context.Context, runs []m.Run) error
	DisplayRun(ctx context.Context, run m.Run, transcripts []m.Transcript) error
}

// NewUI selects the interactive TUI on a terminal and the plain printer
// everywhere else (pipes, CI, redirected output).
func NewUI(cmd *cobra.Command, interactive bool) UI {
	if interactive {
		return NewTUI(cmd.OutOrStdout())
	}

	return NewSimpleUI(cmd)
}

// IsTTY reports whether stdout is attached to a terminal.
func IsTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}
