package model

// EventKind labels analysis progress events.
type EventKind string

const (
	// EventAnalysisStarted opens an analysis over a test list.
	EventAnalysisStarted EventKind = "analysis_started"
	// EventSuiteRun reports the outcome of the full diagnostic run.
	EventSuiteRun EventKind = "suite_run"
	// EventVictimConfirmed reports a test that fails in the suite but
	// passes alone.
	EventVictimConfirmed EventKind = "victim_confirmed"
	// EventBisectStarted opens the polluter search for one victim.
	EventBisectStarted EventKind = "bisect_started"
	// EventProbeDone reports one executed probe sequence.
	EventProbeDone EventKind = "probe_done"
	// EventFindingReady reports one assembled finding.
	EventFindingReady EventKind = "finding_ready"
	// EventLimitReached reports victims left unanalyzed by the reporting
	// limit.
	EventLimitReached EventKind = "limit_reached"
)

// Event is one step of a running analysis, streamed to the UI while the
// engine works through the suite.
type Event struct {
	Kind    EventKind
	Victim  TestID
	Tests   []TestID
	Total   int
	Passed  bool
	Skipped int
	Finding *Finding
}
