package adapter

import (
	"log/slog"

	m "flakyfence.dev/pkg/flakyfence/internal/model"
	"flakyfence.dev/pkg/flakyfence/pkg"
)

// SpoolRecorder persists probe transcripts through a disk spool so the
// full executor output of every invocation survives the analysis without
// staying in memory.
type SpoolRecorder struct {
	spool pkg.Spool[m.Transcript]
}

// NewSpoolRecorder constructs a SpoolRecorder writing to the given spool.
func NewSpoolRecorder(spool pkg.Spool[m.Transcript]) *SpoolRecorder {
	return &SpoolRecorder{spool: spool}
}

// Record appends one transcript. Spool failures are logged, never
// propagated: losing a transcript must not fail an analysis.
func (r *SpoolRecorder) Record(transcript m.Transcript) {
	if err := r.spool.Append(transcript); err != nil {
		slog.Warn("failed to record transcript", "stage", transcript.Stage, "error", err)
	}
}

// Path returns the spool file location for persisting on the run record.
func (r *SpoolRecorder) Path() string {
	return r.spool.Path()
}
