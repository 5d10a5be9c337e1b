// Package domain implements the pollution analysis pipeline: finding
// victims, bisecting their predecessors down to a minimal polluter set,
// and confirming the interpreter state the polluters leave behind.
package domain

import (
	m "flakyfence.dev/pkg/flakyfence/internal/model"
)

// EventSink receives progress events while an analysis runs. Sinks must
// be fast or buffered; the pipeline calls them synchronously.
type EventSink func(event m.Event)

// TranscriptRecorder persists the raw executor output of every probe so
// a run can be replayed after the fact.
type TranscriptRecorder interface {
	Record(transcript m.Transcript)
}

type noopRecorder struct{}

func (noopRecorder) Record(m.Transcript) {}

// NopRecorder returns a TranscriptRecorder that discards everything.
func NopRecorder() TranscriptRecorder {
	return noopRecorder{}
}

func emit(sink EventSink, event m.Event) {
	if sink != nil {
		sink(event)
	}
}
