package domain

import (
	"context"
	"fmt"
	"log/slog"

	"flakyfence.dev/pkg/flakyfence/internal/adapter"
	m "flakyfence.dev/pkg/flakyfence/internal/model"
)

// VictimFinder identifies order-dependent failures: tests that fail in
// the full suite but pass when run on their own.
type VictimFinder interface {
	Find(ctx context.Context, dir string, tests []m.TestID) ([]m.TestID, error)
}

type victimFinder struct {
	executor adapter.TestExecutor
	recorder TranscriptRecorder
	sink     EventSink
}

// NewVictimFinder constructs a VictimFinder backed by the given executor.
// A nil recorder discards transcripts; a nil sink discards events.
func NewVictimFinder(executor adapter.TestExecutor, recorder TranscriptRecorder, sink EventSink) VictimFinder {
	if recorder == nil {
		recorder = NopRecorder()
	}

	return &victimFinder{
		executor: executor,
		recorder: recorder,
		sink:     sink,
	}
}

// Find runs the full suite once and re-runs every reported failure in
// isolation. Failures that pass alone are returned as victims, in the
// order the suite reported them. A passing suite yields no victims.
func (vf *victimFinder) Find(ctx context.Context, dir string, tests []m.TestID) ([]m.TestID, error) {
	suite, err := vf.runSuite(ctx, dir, tests)
	if err != nil {
		return nil, err
	}

	if suite.Passed {
		slog.Debug("Suite passed, no victims to analyze", "tests", len(tests))
		return []m.TestID{}, nil
	}

	slog.Debug("Suite reported failures", "failed", len(suite.Failed))

	return vf.filterVictims(ctx, dir, suite.Failed)
}

func (vf *victimFinder) runSuite(ctx context.Context, dir string, tests []m.TestID) (m.SuiteResult, error) {
	suite, err := vf.executor.RunSuite(ctx, dir, tests)
	if err != nil {
		slog.Error("Failed to run full suite", "error", err)
		return m.SuiteResult{}, fmt.Errorf("failed to run full suite: %w", err)
	}

	vf.recorder.Record(m.Transcript{
		Stage:    m.StageSuite,
		Sequence: tests,
		Passed:   suite.Passed,
		Duration: suite.Duration,
		Output:   suite.Output,
	})
	emit(vf.sink, m.Event{Kind: m.EventSuiteRun, Tests: suite.Failed, Total: len(tests), Passed: suite.Passed})

	return suite, nil
}

// filterVictims re-runs every failed test alone. Tests that pass in
// isolation depend on suite order and are victims; tests that still fail
// are genuinely broken and are skipped.
func (vf *victimFinder) filterVictims(ctx context.Context, dir string, failed []m.TestID) ([]m.TestID, error) {
	victims := []m.TestID{}

	for _, test := range failed {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		alone, err := vf.executor.RunSequence(ctx, dir, []m.TestID{test})
		if err != nil {
			slog.Error("Failed to run test in isolation", "test", test, "error", err)
			return nil, fmt.Errorf("failed to run %s in isolation: %w", test, err)
		}

		vf.recorder.Record(m.Transcript{
			Stage:    m.StageIsolation,
			Victim:   test,
			Sequence: []m.TestID{test},
			Passed:   alone.Passed,
			Duration: alone.Duration,
			Output:   alone.Output,
		})

		if !alone.Passed {
			slog.Debug("Test fails even in isolation, not a victim", "test", test)
			continue
		}

		slog.Debug("Confirmed victim", "test", test)
		emit(vf.sink, m.Event{Kind: m.EventVictimConfirmed, Victim: test})
		victims = append(victims, test)
	}

	return victims, nil
}
