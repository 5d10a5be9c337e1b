package adapter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	m "flakyfence.dev/pkg/flakyfence/internal/model"
)

// ErrNoCollectCommand is returned when a command executor without a
// collect command is asked to enumerate tests.
var ErrNoCollectCommand = errors.New("no collect command configured")

// CommandExecutor drives an arbitrary test runner. The runner is given as
// an argv prefix and test identifiers are appended per invocation; exit
// code 0 means the run passed. It suits any framework whose verbose
// output marks failing tests with a recognizable token on the test's
// report line.
type CommandExecutor struct {
	argv    []string
	collect []string
	marker  string
	timeout time.Duration
}

// NewCommandExecutor constructs a CommandExecutor. The collect argv may
// be empty when the caller always supplies explicit test identifiers. An
// empty failure marker falls back to pytest's " FAILED".
func NewCommandExecutor(argv, collect []string, marker string, timeout time.Duration) (*CommandExecutor, error) {
	if len(argv) == 0 {
		return nil, errors.New("command executor needs a runner command")
	}
	if marker == "" {
		marker = " FAILED"
	}
	if timeout <= 0 {
		timeout = defaultRunTimeout
	}
	return &CommandExecutor{
		argv:    argv,
		collect: collect,
		marker:  marker,
		timeout: timeout,
	}, nil
}

// Collect runs the configured collect command and keeps one test ID per
// non-empty output line.
func (e *CommandExecutor) Collect(ctx context.Context, project string) ([]m.TestID, error) {
	if len(e.collect) == 0 {
		return nil, ErrNoCollectCommand
	}

	stdout, _, _, err := runCommand(ctx, project, e.timeout, e.collect)
	if err != nil {
		return nil, fmt.Errorf("collecting tests: %w", err)
	}

	var ids []m.TestID
	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			ids = append(ids, m.TestID(line))
		}
	}
	return ids, nil
}

// RunSequence executes tests in the given order as one runner invocation.
func (e *CommandExecutor) RunSequence(ctx context.Context, project string, tests []m.TestID) (m.ProbeResult, error) {
	if len(tests) == 0 {
		return m.ProbeResult{Passed: true}, nil
	}

	argv := append(append([]string{}, e.argv...), m.Strings(tests)...)

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

// RunSuite executes tests like RunSequence and scans the output for lines
// carrying the failure marker.
func (e *CommandExecutor) RunSuite(ctx context.Context, project string, tests []m.TestID) (m.SuiteResult, error) {
	if len(tests) == 0 {
		return m.SuiteResult{Passed: true}, nil
	}

	argv := append(append([]string{}, e.argv...), m.Strings(tests)...)

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
	if result.Passed {
		return result, nil
	}

	for _, line := range strings.Split(stdout, "\n") {
		if !strings.Contains(line, e.marker) {
			continue
		}
		tid := strings.TrimSpace(strings.SplitN(line, " ", 2)[0])
		if tid != "" {
			result.Failed = append(result.Failed, m.TestID(tid))
		}
	}
	return result, nil
}
