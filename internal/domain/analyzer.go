package domain

import (
	"context"
	"fmt"
	"log/slog"

	"flakyfence.dev/pkg/flakyfence/internal/adapter"
	m "flakyfence.dev/pkg/flakyfence/internal/model"
)

// Analyzer coordinates the full pollution analysis: victim detection,
// polluter bisection, and state change confirmation, producing one
// Finding per analyzed victim.
type Analyzer interface {
	Analyze(ctx context.Context, dir string, tests []m.TestID, limit int) ([]m.Finding, error)
}

type analyzer struct {
	executor adapter.TestExecutor
	victims  VictimFinder
	bisector Bisector
	recorder TranscriptRecorder
	sink     EventSink
}

// NewAnalyzer constructs an Analyzer from its collaborators. A nil
// recorder discards transcripts; a nil sink discards events.
func NewAnalyzer(executor adapter.TestExecutor, victims VictimFinder, bisector Bisector, recorder TranscriptRecorder, sink EventSink) Analyzer {
	if recorder == nil {
		recorder = NopRecorder()
	}

	return &analyzer{
		executor: executor,
		victims:  victims,
		bisector: bisector,
		recorder: recorder,
		sink:     sink,
	}
}

// Analyze finds the victims in the suite and bisects each one down to a
// minimal polluter set. A limit greater than zero caps how many victims
// are analyzed; the rest are skipped with a warning.
func (a *analyzer) Analyze(ctx context.Context, dir string, tests []m.TestID, limit int) ([]m.Finding, error) {
	emit(a.sink, m.Event{Kind: m.EventAnalysisStarted, Tests: tests, Total: len(tests)})

	victims, err := a.victims.Find(ctx, dir, tests)
	if err != nil {
		return nil, err
	}

	findings := []m.Finding{}

	for i, victim := range victims {
		if limit > 0 && i >= limit {
			skipped := len(victims) - i
			slog.Warn("Victim limit reached, skipping remaining victims", "limit", limit, "skipped", skipped)
			emit(a.sink, m.Event{Kind: m.EventLimitReached, Skipped: skipped})

			break
		}

		if err := ctx.Err(); err != nil {
			return findings, err
		}

		finding, err := a.analyzeVictim(ctx, dir, tests, victim)
		if err != nil {
			return findings, err
		}

		findings = append(findings, finding)
		emit(a.sink, m.Event{Kind: m.EventFindingReady, Victim: victim, Finding: &finding})
	}

	return findings, nil
}

func (a *analyzer) analyzeVictim(ctx context.Context, dir string, tests []m.TestID, victim m.TestID) (m.Finding, error) {
	suspects := predecessors(tests, victim)

	slog.Debug("Bisecting predecessors", "victim", victim, "suspects", len(suspects))
	emit(a.sink, m.Event{Kind: m.EventBisectStarted, Victim: victim, Total: len(suspects)})

	polluters, err := a.bisector.Bisect(ctx, victim, suspects, a.probeFor(dir, victim))
	if err != nil {
		return m.Finding{}, fmt.Errorf("failed to bisect polluters of %s: %w", victim, err)
	}

	changes, err := a.confirmStateChanges(ctx, dir, victim, polluters)
	if err != nil {
		return m.Finding{}, err
	}

	return m.Finding{Victim: victim, Polluters: polluters, StateChanges: changes}, nil
}

// probeFor returns a ProbeFunc that runs the subset followed by the
// victim and reports whether the victim passed.
func (a *analyzer) probeFor(dir string, victim m.TestID) ProbeFunc {
	return func(ctx context.Context, subset []m.TestID) (bool, error) {
		sequence := append(append([]m.TestID{}, subset...), victim)

		run, err := a.executor.RunSequence(ctx, dir, sequence)
		if err != nil {
			return false, err
		}

		a.recorder.Record(m.Transcript{
			Stage:    m.StageProbe,
			Victim:   victim,
			Sequence: sequence,
			Passed:   run.Passed,
			Duration: run.Duration,
			Output:   run.Output,
		})
		emit(a.sink, m.Event{Kind: m.EventProbeDone, Victim: victim, Tests: subset, Passed: run.Passed})

		return run.Passed, nil
	}
}

// confirmStateChanges replays the minimal polluter set ahead of the
// victim one more time, snapshotting interpreter state around the run.
// The diff attributes leaked environment variables and modules to the
// polluters. The replay outcome is logged but never changes the finding,
// and a failed replay degrades to an empty change list.
func (a *analyzer) confirmStateChanges(ctx context.Context, dir string, victim m.TestID, polluters []m.TestID) ([]m.StateChange, error) {
	if len(polluters) == 0 {
		return []m.StateChange{}, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sequence := append(append([]m.TestID{}, polluters...), victim)
	before := m.Capture(nil)

	run, err := a.executor.RunSequence(ctx, dir, sequence)
	if err != nil {
		slog.Warn("Confirmation run failed, omitting state changes", "victim", victim, "error", err)
		return []m.StateChange{}, nil
	}

	after := m.Capture(nil)

	a.recorder.Record(m.Transcript{
		Stage:    m.StageConfirm,
		Victim:   victim,
		Sequence: sequence,
		Passed:   run.Passed,
		Duration: run.Duration,
		Output:   run.Output,
	})

	if run.Passed {
		slog.Debug("Confirmation run unexpectedly passed", "victim", victim, "polluters", len(polluters))
	}

	return m.Diff(before, after), nil
}

// predecessors returns every test ahead of the victim's first position
// in suite order.
func predecessors(tests []m.TestID, victim m.TestID) []m.TestID {
	suspects := []m.TestID{}

	for _, test := range tests {
		if test == victim {
			break
		}

		suspects = append(suspects, test)
	}

	return suspects
}
