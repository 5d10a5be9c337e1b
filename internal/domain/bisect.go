package domain

import (
	"context"
	"fmt"
	"log/slog"

	m "flakyfence.dev/pkg/flakyfence/internal/model"
)

// ProbeFunc runs a candidate subset followed by the victim and reports
// whether the victim passed; false means the pollution was reproduced.
// Implementations must preserve the order of the subset they are given.
type ProbeFunc func(ctx context.Context, subset []m.TestID) (bool, error)

// Bisector narrows a list of suspected polluters down to a minimal set
// that still makes the victim fail.
type Bisector interface {
	Bisect(ctx context.Context, victim m.TestID, suspects []m.TestID, probe ProbeFunc) ([]m.TestID, error)
}

type bisector struct{}

// NewBisector constructs the delta-debugging Bisector.
func NewBisector() Bisector {
	return &bisector{}
}

// Bisect repeatedly splits the suspects in half and keeps whichever half
// still reproduces the failure. When neither half does on its own, the
// remaining suspects only pollute in combination and are returned whole.
// A single remaining suspect is returned without a probe.
func (b *bisector) Bisect(ctx context.Context, victim m.TestID, suspects []m.TestID, probe ProbeFunc) ([]m.TestID, error) {
	for len(suspects) > 1 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		mid := len(suspects) / 2
		left, right := suspects[:mid], suspects[mid:]

		slog.Debug("Bisecting suspects", "victim", victim, "suspects", len(suspects), "left", len(left), "right", len(right))

		passed, err := probe(ctx, left)
		if err != nil {
			return nil, fmt.Errorf("failed to probe left half: %w", err)
		}

		if !passed {
			suspects = left
			continue
		}

		passed, err = probe(ctx, right)
		if err != nil {
			return nil, fmt.Errorf("failed to probe right half: %w", err)
		}

		if !passed {
			suspects = right
			continue
		}

		slog.Debug("Neither half reproduces the failure alone", "victim", victim, "suspects", len(suspects))

		return suspects, nil
	}

	return suspects, nil
}
