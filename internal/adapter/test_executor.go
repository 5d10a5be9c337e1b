// Package adapter provides the injected capabilities the analysis drives:
// test execution through an external framework and report persistence.
package adapter

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"

	m "flakyfence.dev/pkg/flakyfence/internal/model"
)

// TestExecutor abstracts the external test runner. The analysis core only
// ever needs "run this exact sequence and tell me whether it passed", plus
// a per-test failure list for full-suite diagnostic runs. Implementations
// run every sequence as a single session so earlier tests can pollute
// later ones the same way they do in CI.
type TestExecutor interface {
	// Collect enumerates the tests of a project in discovery order.
	Collect(ctx context.Context, project string) ([]m.TestID, error)
	// RunSequence executes tests in the given order as one session and
	// reports whether the whole run passed. An empty sequence passes
	// trivially without invoking the runner.
	RunSequence(ctx context.Context, project string, tests []m.TestID) (m.ProbeResult, error)
	// RunSuite executes tests in the given order and additionally reports
	// which tests the executor marked as failed, preserving report order.
	RunSuite(ctx context.Context, project string, tests []m.TestID) (m.SuiteResult, error)
}

const defaultRunTimeout = 30 * time.Minute

// runCommand executes argv in dir with a per-invocation timeout. A
// non-zero exit is a result, not an error: it comes back as the exit code
// with a nil error. Only spawn failures surface as errors. A run that
// outlives the timeout is killed and reported as exit code -1.
func runCommand(ctx context.Context, dir string, timeout time.Duration, argv []string) (stdout, stderr string, exitCode int, err error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir

	var outBuf, errBuf bytes.Buffer

	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	runErr := cmd.Run()

	stdout = outBuf.String()
	stderr = errBuf.String()

	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			return stdout, stderr, exitErr.ExitCode(), nil
		}
		return stdout, stderr, -1, runErr
	}
	return stdout, stderr, 0, nil
}
