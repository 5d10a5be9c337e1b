package cmd

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flakyfence.dev/pkg/flakyfence/internal/adapter"
	m "flakyfence.dev/pkg/flakyfence/internal/model"
)

func TestParseTests(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []m.TestID
	}{
		{"empty", []string{}, []m.TestID{}},
		{"single", []string{"tests/test_user.py::test_login"}, []m.TestID{"tests/test_user.py::test_login"}},
		{
			"multiple",
			[]string{"test_a", "test_b", "test_c"},
			[]m.TestID{"test_a", "test_b", "test_c"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseTests(tt.args)
			require.Len(t, got, len(tt.want))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFilterTests(t *testing.T) {
	suite := []m.TestID{"tests/test_db.py::test_xa", "tests/test_db.py::test_xb", "tests/test_ui.py::test_render"}

	tests := []struct {
		name     string
		patterns []string
		want     []m.TestID
	}{
		{"no patterns", nil, suite},
		{"file prefix", []string{"^tests/test_db"}, []m.TestID{"tests/test_ui.py::test_render"}},
		{"suffix", []string{"xb$"}, []m.TestID{"tests/test_db.py::test_xa", "tests/test_ui.py::test_render"}},
		{"multiple patterns", []string{"xa$", "xb$"}, []m.TestID{"tests/test_ui.py::test_render"}},
		{"all excluded", []string{"."}, []m.TestID{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := filterTests(suite, tt.patterns)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFilterTests_InvalidPattern(t *testing.T) {
	_, err := filterTests([]m.TestID{"test_a"}, []string{"(["})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "exclude pattern")
}

func TestNewRootCmd(t *testing.T) {
	cmd := newRootCmd()
	assert.Equal(t, "flakyfence", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotEmpty(t, cmd.Long)
	assert.Equal(t, rootLongDescription, cmd.Long)
}

func TestRootCmd_HelpOutput(t *testing.T) {
	cmd := newRootCmd()
	output := &bytes.Buffer{}
	cmd.SetOut(output)
	cmd.SetErr(&bytes.Buffer{})

	cmd.SetArgs([]string{})
	err := cmd.Execute()

	require.NoError(t, err)
	assert.Contains(t, output.String(), "Usage:")
	assert.Contains(t, output.String(), "pytest node IDs")
}

func TestInit(t *testing.T) {
	// Test that init() created all the necessary instances
	assert.NotNil(t, ui)
	assert.NotNil(t, reportStore)
	assert.NotNil(t, newExecutor)
	assert.NotNil(t, newAnalysis)
}

func TestDefaultExecutor_Pytest(t *testing.T) {
	executor := defaultExecutor()

	assert.IsType(t, &adapter.PytestExecutor{}, executor)
}

func TestDefaultExecutor_CustomCommand(t *testing.T) {
	viper.Set(executorCommandKey, []string{"go", "test"})
	defer viper.Set(executorCommandKey, []string{})

	executor := defaultExecutor()

	assert.IsType(t, &adapter.CommandExecutor{}, executor)
}

func TestExecute(t *testing.T) {
	// Save original rootCmd
	originalRootCmd := rootCmd

	// Create a mock command that succeeds
	mockCmd := &cobra.Command{
		Use: "test",
		RunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
	}
	mockCmd.SetOut(&bytes.Buffer{})
	mockCmd.SetErr(&bytes.Buffer{})

	rootCmd = mockCmd

	// Execute should not panic or exit
	// We can't easily test os.Exit, but we can verify no error path
	Execute()

	// Restore
	rootCmd = originalRootCmd
}

func TestExecute_WithError(t *testing.T) {
	// Save original rootCmd
	originalRootCmd := rootCmd
	defer func() {
		rootCmd = originalRootCmd
	}()

	// Create a mock command that fails
	mockCmd := &cobra.Command{
		Use: "test",
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf("command failed")
		},
	}
	mockCmd.SetOut(&bytes.Buffer{})
	mockCmd.SetErr(&bytes.Buffer{})

	rootCmd = mockCmd

	// This will cause os.Exit(1) to be called, which we can't intercept
	// So we just verify the command itself errors
	err := rootCmd.Execute()
	require.Error(t, err)
}

func TestExecute_ProcessLevel_Success(t *testing.T) {
	if os.Getenv("TEST_EXECUTE_SUBPROCESS") == "1" {
		// This runs in the subprocess
		// Mock successful command
		originalRootCmd := rootCmd
		mockCmd := &cobra.Command{
			Use: "test",
			RunE: func(cmd *cobra.Command, args []string) error {
				fmt.Println("success")
				return nil
			},
		}
		mockCmd.SetOut(os.Stdout)
		mockCmd.SetErr(os.Stderr)
		rootCmd = mockCmd
		defer func() { rootCmd = originalRootCmd }()

		Execute()
		return
	}

	// Parent process: spawn subprocess
	cmd := exec.Command(os.Args[0], "-test.run=TestExecute_ProcessLevel_Success")
	cmd.Env = append(os.Environ(), "TEST_EXECUTE_SUBPROCESS=1")
	output, err := cmd.CombinedOutput()

	require.NoError(t, err, "output: %s", output)
	assert.Contains(t, string(output), "success")

	if exitErr, ok := err.(*exec.ExitError); ok {
		assert.Equal(t, 0, exitErr.ExitCode())
	}
}

func TestExecute_ProcessLevel_Failure(t *testing.T) {
	if os.Getenv("TEST_EXECUTE_SUBPROCESS_FAIL") == "1" {
		// This runs in the subprocess
		// Mock failing command
		originalRootCmd := rootCmd
		mockCmd := &cobra.Command{
			Use: "test",
			RunE: func(cmd *cobra.Command, args []string) error {
				fmt.Fprintln(os.Stderr, "error occurred")
				return fmt.Errorf("command failed")
			},
		}
		mockCmd.SetOut(os.Stdout)
		mockCmd.SetErr(os.Stderr)
		rootCmd = mockCmd
		defer func() { rootCmd = originalRootCmd }()

		Execute() // This should call os.Exit(1)
		return
	}

	// Parent process: spawn subprocess
	cmd := exec.Command(os.Args[0], "-test.run=TestExecute_ProcessLevel_Failure")
	cmd.Env = append(os.Environ(), "TEST_EXECUTE_SUBPROCESS_FAIL=1")
	output, err := cmd.CombinedOutput()

	require.Error(t, err)

	if exitErr, ok := err.(*exec.ExitError); ok {
		assert.Equal(t, 1, exitErr.ExitCode())
	} else {
		assert.Fail(t, "expected exec.ExitError", "got %T", err)
	}

	assert.Contains(t, string(output), "error occurred")
}
