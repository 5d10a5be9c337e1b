package model

import "time"

// DefaultLimit caps the number of findings reported per analysis unless
// overridden. A limit of 0 lifts the cap entirely.
const DefaultLimit = 3

// Finding links one pollution victim to the minimal set of earlier tests
// whose execution reproduces its failure. Polluters is a subset of the
// tests that ran strictly before the victim, in their original order; it
// is empty only when the victim had no predecessors at all.
type Finding struct {
	Victim       TestID        `json:"victim"`
	Polluters    []TestID      `json:"polluters"`
	StateChanges []StateChange `json:"state_changes"`
}

// ProbeResult is the executor's account of one sequence run.
type ProbeResult struct {
	Passed   bool
	Output   string
	Duration time.Duration
}

// SuiteResult is the executor's account of one full-suite diagnostic run.
// Failed preserves the order in which the executor reported the failures.
type SuiteResult struct {
	Passed   bool
	Failed   []TestID
	Output   string
	Duration time.Duration
}

// Run records one completed analysis for later inspection.
type Run struct {
	ID          string    `json:"id"`
	Project     string    `json:"project"`
	StartedAt   time.Time `json:"started_at"`
	Tests       int       `json:"tests"`
	Findings    []Finding `json:"findings"`
	Transcripts string    `json:"transcripts,omitempty"`
}

// Stages of an analysis, recorded on transcripts.
const (
	StageSuite     = "suite"
	StageIsolation = "isolation"
	StageProbe     = "probe"
	StageConfirm   = "confirm"
)

// Transcript records one executor invocation during an analysis. Outputs
// can be large, so transcripts are spooled to disk rather than held in
// memory.
type Transcript struct {
	Stage    string
	Victim   TestID
	Sequence []TestID
	Passed   bool
	Duration time.Duration
	Output   string
}
