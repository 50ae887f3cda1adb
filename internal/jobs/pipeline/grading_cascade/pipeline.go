package grading_cascade

import (
	"fmt"

	"github.com/yungbote/obe-backend/internal/grading"
	jobrt "github.com/yungbote/obe-backend/internal/jobs/runtime"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}

	var req grading.CascadeRequest
	if err := jc.DecodePayload(&req); err != nil {
		jc.Fail("decode", err)
		return err
	}
	if err := req.Validate(); err != nil {
		jc.Fail("decode", err)
		return err
	}

	jc.Progress("cascade", 10, fmt.Sprintf("Recalculating after %s change", req.Kind))
	report, err := p.coord.Handle(jc.Ctx, req)
	if err != nil {
		jc.Fail("cascade", err)
		return err
	}

	if report.Retryable() {
		// Every compute is idempotent, so the retry reruns the whole cascade.
		err := &IncompleteError{Skipped: len(report.Skipped)}
		p.log.Warn("Cascade left computes stale; job will be retried", "job_id", jc.Job.ID, "attempt", jc.Job.Attempts, "skipped", err.Skipped)
		jc.Fail("cascade_incomplete", err)
		return err
	}

	stage := "done"
	if !report.Complete() {
		// Only skips no rerun can clear remain, such as a CPMK deleted
		// mid-cascade. The coordinator has already logged each one.
		stage = "done_with_skips"
		p.log.Warn("Cascade finished with skipped computes", "job_id", jc.Job.ID, "skipped", len(report.Skipped))
	}
	jc.Succeed(stage, report)
	return nil
}

// IncompleteError fails a run whose cascade skipped computes a retry may
// still complete.
type IncompleteError struct {
	Skipped int
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("cascade incomplete: %d computes skipped", e.Skipped)
}
