package cmd

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "flakyfence.dev/pkg/flakyfence/internal/model"
)

func TestListCmd_DisplaysSavedRuns(t *testing.T) {
	fakeUI := stubUI(t)
	reportsDir := t.TempDir()

	for _, id := range []string{"run-1", "run-2"} {
		_, err := reportStore.SaveRun(reportsDir, &m.Run{ID: id, Project: ".", StartedAt: time.Now(), Findings: []m.Finding{}})
		require.NoError(t, err)
	}

	cmd := newRootCmd()
	cmd.AddCommand(newListCmd())
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"list", "--output", reportsDir})

	require.NoError(t, cmd.Execute())
	assert.Len(t, fakeUI.runs, 2)
}

func TestListCmd_EmptyReportsDirectory(t *testing.T) {
	fakeUI := stubUI(t)

	cmd := newRootCmd()
	cmd.AddCommand(newListCmd())
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"list", "--output", t.TempDir()})

	require.NoError(t, cmd.Execute())
	assert.Empty(t, fakeUI.runs)
}

func TestListCmd_PositionalArgsAreRejected(t *testing.T) {
	stubUI(t)

	cmd := newRootCmd()
	cmd.AddCommand(newListCmd())
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"list", "extra"})

	require.Error(t, cmd.Execute())
}
