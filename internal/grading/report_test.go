package grading

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCascadeReportRetryable(t *testing.T) {
	skipped := func(errs ...error) *CascadeReport {
		r := &CascadeReport{}
		for _, err := range errs {
			r.Skipped = append(r.Skipped, StaleComputeSkipped{Phase: PhaseCpmk, Err: err})
		}
		return r
	}

	tests := []struct {
		name   string
		report *CascadeReport
		want   bool
	}{
		{"complete", skipped(), false},
		{"store error", skipped(errors.New("connection reset")), true},
		{"deadline", skipped(fmt.Errorf("load raw scores: %w", context.DeadlineExceeded)), true},
		{"still superseded", skipped(fmt.Errorf("%w: row v5, snapshot v4", ErrSnapshotSuperseded)), true},
		{"cpmk deleted", skipped(fmt.Errorf("%w: gone", ErrCpmkNotFound)), false},
		{"cpl behind a deleted cpmk", skipped(ErrCpmkNotFound, errUpstreamCpmkFailed), false},
		{"cpl behind a failing cpmk", skipped(errors.New("connection reset"), errUpstreamCpmkFailed), true},
		{"decoded without error", &CascadeReport{Skipped: []StaleComputeSkipped{{Reason: "x"}}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.report.Retryable())
		})
	}
}
