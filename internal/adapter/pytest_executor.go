package adapter

import (
	"context"
	"fmt"
	"strings"
	"time"

	m "flakyfence.dev/pkg/flakyfence/internal/model"
)

// Pytest invocation profiles. Probe runs stop at the first failure since
// only the overall outcome matters; suite runs keep going so that every
// failed test shows up in the output.
var (
	pytestProbeArgs   = []string{"-m", "pytest", "-xvs", "--tb=no", "--no-header", "-p", "no:cacheprovider"}
	pytestSuiteArgs   = []string{"-m", "pytest", "-v", "--tb=no", "--no-header", "-p", "no:cacheprovider"}
	pytestCollectArgs = []string{"-m", "pytest", "--collect-only", "-q"}
)

// PytestExecutor runs tests through the pytest CLI in the project
// directory.
type PytestExecutor struct {
	python  string
	timeout time.Duration
}

// NewPytestExecutor constructs a PytestExecutor. An empty interpreter
// falls back to "python3", a non-positive timeout to 30 minutes per run.
func NewPytestExecutor(python string, timeout time.Duration) *PytestExecutor {
	if python == "" {
		python = "python3"
	}
	if timeout <= 0 {
		timeout = defaultRunTimeout
	}
	return &PytestExecutor{
		python:  python,
		timeout: timeout,
	}
}

// Collect enumerates test node IDs via pytest's collect-only mode.
func (e *PytestExecutor) Collect(ctx context.Context, project string) ([]m.TestID, error) {
	argv := append([]string{e.python}, pytestCollectArgs...)
	argv = append(argv, ".")

	stdout, _, _, err := runCommand(ctx, project, e.timeout, argv)
	if err != nil {
		return nil, fmt.Errorf("collecting tests: %w", err)
	}

	var ids []m.TestID
	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimSpace(line)
		if strings.Contains(line, "::") {
			ids = append(ids, m.TestID(line))
		}
	}
	return ids, nil
}

// RunSequence executes tests in the given order as one pytest session.
func (e *PytestExecutor) RunSequence(ctx context.Context, project string, tests []m.TestID) (m.ProbeResult, error) {
	if len(tests) == 0 {
		return m.ProbeResult{Passed: true}, nil
	}

	argv := append([]string{e.python}, pytestProbeArgs...)
	argv = append(argv, m.Strings(tests)...)

	start := time.Now()
	stdout, stderr, code, err := runCommand(ctx, project, e.timeout, argv)
	if err != nil {
		return m.ProbeResult{}, fmt.Errorf("running test sequence: %w", err)
	}

	return m.ProbeResult{
		Passed:   code == 0,
		Output:   stdout + stderr,
		Duration: time.Since(start),
	}, nil
}

// RunSuite executes tests like RunSequence and parses the per-test
// failures out of the verbose report.
func (e *PytestExecutor) RunSuite(ctx context.Context, project string, tests []m.TestID) (m.SuiteResult, error) {
	if len(tests) == 0 {
		return m.SuiteResult{Passed: true}, nil
	}

	argv := append([]string{e.python}, pytestSuiteArgs...)
	argv = append(argv, m.Strings(tests)...)

	start := time.Now()
	stdout, stderr, code, err := runCommand(ctx, project, e.timeout, argv)
	if err != nil {
		return m.SuiteResult{}, fmt.Errorf("running suite: %w", err)
	}

	result := m.SuiteResult{
		Passed:   code == 0,
		Output:   stdout + stderr,
		Duration: time.Since(start),
	}
	if !result.Passed {
		result.Failed = parseFailedTests(stdout)
	}
	return result, nil
}

// parseFailedTests extracts failed node IDs from a verbose report,
// preserving report order. Lines look like
// "tests/test_app.py::test_login FAILED [ 50%]"; the node ID is the first
// space-separated token. Output without the marker yields no failures.
func parseFailedTests(stdout string) []m.TestID {
	var failed []m.TestID
	for _, line := range strings.Split(stdout, "\n") {
		if !strings.Contains(line, " FAILED") {
			continue
		}
		tid := strings.TrimSpace(strings.SplitN(line, " ", 2)[0])
		if tid != "" {
			failed = append(failed, m.TestID(tid))
		}
	}
	return failed
}
