package jobrun

import (
	"fmt"
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/yungbote/obe-backend/internal/domain/jobs"
)

// Workflow runs one job_run row, identified by the workflow ID. A failed
// run fails the workflow so the start-time retry policy schedules the next
// attempt.
func Workflow(ctx workflow.Context) error {
	jobID := strings.TrimSpace(workflow.GetInfo(ctx).WorkflowExecution.ID)
	if jobID == "" {
		return temporal.NewNonRetryableApplicationError("jobrun: missing job_id", "invalid_job", nil)
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: time.Hour,
		HeartbeatTimeout:    30 * time.Second,
		// Attempts are counted on the workflow, not per activity.
		RetryPolicy: &temporal.RetryPolicy{MaximumAttempts: 1},
	})

	var out RunResult
	if err := workflow.ExecuteActivity(ctx, ActivityRun, jobID).Get(ctx, &out); err != nil {
		return err
	}
	if out.Status == jobs.StatusSucceeded {
		return nil
	}
	return fmt.Errorf("job failed (stage=%s): %s", out.Stage, out.Error)
}
