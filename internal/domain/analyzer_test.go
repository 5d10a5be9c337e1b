package domain_test

import (
	"context"
	"errors"
	"os"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"flakyfence.dev/pkg/flakyfence/internal/domain"
	m "flakyfence.dev/pkg/flakyfence/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// pollutedProject fakes a suite where every victim fails whenever the
// polluter ran earlier in the same session and passes otherwise.
func pollutedProject(polluter m.TestID, victims ...m.TestID) *fakeExecutor {
	isVictim := func(test m.TestID) bool {
		for _, victim := range victims {
			if test == victim {
				return true
			}
		}

		return false
	}

	fails := func(sequence []m.TestID) []m.TestID {
		failed := []m.TestID{}
		seenPolluter := false

		for _, test := range sequence {
			if test == polluter {
				seenPolluter = true
			}

			if seenPolluter && isVictim(test) {
				failed = append(failed, test)
			}
		}

		return failed
	}

	return &fakeExecutor{
		suite: func(sequence []m.TestID) (m.SuiteResult, error) {
			failed := fails(sequence)
			return m.SuiteResult{Passed: len(failed) == 0, Failed: failed}, nil
		},
		sequence: func(sequence []m.TestID) (m.ProbeResult, error) {
			return m.ProbeResult{Passed: len(fails(sequence)) == 0}, nil
		},
	}
}

func newAnalyzer(executor *fakeExecutor, recorder domain.TranscriptRecorder, sink domain.EventSink) domain.Analyzer {
	finder := domain.NewVictimFinder(executor, recorder, sink)

	return domain.NewAnalyzer(executor, finder, domain.NewBisector(), recorder, sink)
}

func TestAnalyzer_FindsMinimalPolluterSet(t *testing.T) {
	// Arrange: test_b leaks state that breaks test_victim, test_a is innocent.
	executor := pollutedProject("test_b", "test_victim")
	analyzer := newAnalyzer(executor, nil, nil)

	// Act
	findings, err := analyzer.Analyze(context.Background(), ".", []m.TestID{"test_a", "test_b", "test_victim"}, 0)

	// Assert
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, m.TestID("test_victim"), findings[0].Victim)
	assert.Equal(t, []m.TestID{"test_b"}, findings[0].Polluters)
	assert.Empty(t, findings[0].StateChanges)
}

func TestAnalyzer_CleanSuiteYieldsNoFindings(t *testing.T) {
	executor := &fakeExecutor{
		suite: func([]m.TestID) (m.SuiteResult, error) {
			return m.SuiteResult{Passed: true}, nil
		},
	}
	analyzer := newAnalyzer(executor, nil, nil)

	findings, err := analyzer.Analyze(context.Background(), ".", []m.TestID{"test_a", "test_b"}, 0)

	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestAnalyzer_HonorsVictimLimit(t *testing.T) {
	executor := pollutedProject("polluter", "victim_1", "victim_2", "victim_3")

	var events []m.Event

	analyzer := newAnalyzer(executor, nil, func(event m.Event) {
		events = append(events, event)
	})

	findings, err := analyzer.Analyze(context.Background(), ".", []m.TestID{"polluter", "victim_1", "victim_2", "victim_3"}, 1)

	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, m.TestID("victim_1"), findings[0].Victim)

	var limited *m.Event

	for i := range events {
		if events[i].Kind == m.EventLimitReached {
			limited = &events[i]
		}
	}

	require.NotNil(t, limited, "expected a limit event")
	assert.Equal(t, 2, limited.Skipped)
}

func TestAnalyzer_ZeroLimitAnalyzesEveryVictim(t *testing.T) {
	executor := pollutedProject("polluter", "victim_1", "victim_2", "victim_3")
	analyzer := newAnalyzer(executor, nil, nil)

	findings, err := analyzer.Analyze(context.Background(), ".", []m.TestID{"polluter", "victim_1", "victim_2", "victim_3"}, 0)

	require.NoError(t, err)
	require.Len(t, findings, 3)

	for _, finding := range findings {
		assert.Equal(t, []m.TestID{"polluter"}, finding.Polluters)
	}
}

func TestAnalyzer_CapturesLeakedEnvironment(t *testing.T) {
	const leakedKey = "FLAKYFENCE_TEST_SESSION"

	executor := pollutedProject("test_b", "test_victim")
	inner := executor.sequence
	polluted := 0

	// Each polluted run bumps the leaked variable, so the confirmation
	// replay always changes it between the two snapshots.
	executor.sequence = func(sequence []m.TestID) (m.ProbeResult, error) {
		run, err := inner(sequence)
		if err == nil && !run.Passed {
			polluted++
			os.Setenv(leakedKey, strconv.Itoa(polluted))
		}

		return run, err
	}

	defer os.Unsetenv(leakedKey)

	analyzer := newAnalyzer(executor, nil, nil)

	findings, err := analyzer.Analyze(context.Background(), ".", []m.TestID{"test_a", "test_b", "test_victim"}, 0)

	require.NoError(t, err)
	require.Len(t, findings, 1)
	require.Len(t, findings[0].StateChanges, 1)
	assert.Equal(t, m.EnvChanged, findings[0].StateChanges[0].Kind)
	assert.Equal(t, leakedKey, findings[0].StateChanges[0].Key)
}

func TestAnalyzer_EmitsLifecycleEvents(t *testing.T) {
	executor := pollutedProject("test_b", "test_victim")

	var kinds []m.EventKind

	analyzer := newAnalyzer(executor, nil, func(event m.Event) {
		kinds = append(kinds, event.Kind)
	})

	_, err := analyzer.Analyze(context.Background(), ".", []m.TestID{"test_a", "test_b", "test_victim"}, 0)

	require.NoError(t, err)
	assert.Equal(t, m.EventAnalysisStarted, kinds[0])
	assert.Contains(t, kinds, m.EventSuiteRun)
	assert.Contains(t, kinds, m.EventVictimConfirmed)
	assert.Contains(t, kinds, m.EventBisectStarted)
	assert.Contains(t, kinds, m.EventProbeDone)
	assert.Equal(t, m.EventFindingReady, kinds[len(kinds)-1])
}

func TestAnalyzer_RecordsEveryStage(t *testing.T) {
	executor := pollutedProject("test_b", "test_victim")
	recorder := &memoryRecorder{}
	analyzer := newAnalyzer(executor, recorder, nil)

	_, err := analyzer.Analyze(context.Background(), ".", []m.TestID{"test_a", "test_b", "test_victim"}, 0)

	require.NoError(t, err)

	stages := recorder.stages()
	assert.Equal(t, m.StageSuite, stages[0])
	assert.Contains(t, stages, m.StageIsolation)
	assert.Contains(t, stages, m.StageProbe)
	assert.Equal(t, m.StageConfirm, stages[len(stages)-1])
}

func TestAnalyzer_PropagatesProbeErrors(t *testing.T) {
	probeErr := errors.New("runner crashed mid-bisection")
	executor := &fakeExecutor{
		suite: func([]m.TestID) (m.SuiteResult, error) {
			return m.SuiteResult{Passed: false, Failed: []m.TestID{"test_victim"}}, nil
		},
		sequence: func(sequence []m.TestID) (m.ProbeResult, error) {
			if len(sequence) == 1 {
				return m.ProbeResult{Passed: true}, nil
			}

			return m.ProbeResult{}, probeErr
		},
	}
	analyzer := newAnalyzer(executor, nil, nil)

	_, err := analyzer.Analyze(context.Background(), ".", []m.TestID{"test_a", "test_b", "test_victim"}, 0)

	require.Error(t, err)
	assert.ErrorIs(t, err, probeErr)
}

func TestAnalyzer_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	executor := pollutedProject("test_b", "test_victim")
	inner := executor.suite
	executor.suite = func(sequence []m.TestID) (m.SuiteResult, error) {
		cancel()
		return inner(sequence)
	}

	analyzer := newAnalyzer(executor, nil, nil)

	_, err := analyzer.Analyze(ctx, ".", []m.TestID{"test_a", "test_b", "test_victim"}, 0)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
