package jobrun

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/yungbote/obe-backend/internal/data/repos"
	"github.com/yungbote/obe-backend/internal/domain/jobs"
	jobrt "github.com/yungbote/obe-backend/internal/jobs/runtime"
	"github.com/yungbote/obe-backend/internal/pkg/dbctx"
	"github.com/yungbote/obe-backend/internal/pkg/logger"
	"github.com/yungbote/obe-backend/internal/services"
)

// JobObserver receives one measurement per finished run.
type JobObserver interface {
	ObserveJob(jobType, status string, dur time.Duration)
}

type Activities struct {
	Log      *logger.Logger
	Jobs     repos.JobRunRepo
	Registry *jobrt.Registry
	Notify   services.JobNotifier
	Metrics  JobObserver

	// HeartbeatEvery paces both the temporal and the job_run heartbeat.
	HeartbeatEvery time.Duration
}

// Run executes the job once. A row that already succeeded is reported as
// is, which makes a replayed activity harmless.
func (a *Activities) Run(ctx context.Context, jobID string) (RunResult, error) {
	res := RunResult{JobID: strings.TrimSpace(jobID)}
	if a == nil || a.Jobs == nil || a.Registry == nil {
		return res, fmt.Errorf("jobrun: activity not configured")
	}
	id, err := uuid.Parse(res.JobID)
	if err != nil || id == uuid.Nil {
		return res, temporal.NewNonRetryableApplicationError("jobrun: invalid job_id", "invalid_job", err)
	}

	job, err := a.Jobs.GetByID(dbctx.New(ctx), id)
	if err != nil {
		return res, err
	}
	if job == nil {
		return res, temporal.NewNonRetryableApplicationError("jobrun: job not found", "job_not_found", nil)
	}
	if job.Status == jobs.StatusSucceeded {
		return fill(res, job.Status, job.Stage, job.Progress, job.Error), nil
	}

	now := time.Now()
	if err := a.Jobs.UpdateFields(dbctx.New(ctx), id, map[string]interface{}{
		"status":       jobs.StatusRunning,
		"attempts":     job.Attempts + 1,
		"locked_at":    now,
		"heartbeat_at": now,
	}); err != nil {
		return res, fmt.Errorf("jobrun: mark running: %w", err)
	}
	job.Status = jobs.StatusRunning
	job.Attempts++
	job.LockedAt = &now
	job.HeartbeatAt = &now

	stop := a.startHeartbeat(ctx)
	defer stop()

	log := a.Log
	if log == nil {
		log = logger.Nop()
	}
	jc := jobrt.NewContext(ctx, job, a.Jobs, a.Notify, log)
	runErr := jobrt.Execute(a.Registry, jc, a.HeartbeatEvery)
	if a.Metrics != nil {
		a.Metrics.ObserveJob(job.JobType, jc.Job.Status, time.Since(now))
	}
	var missing *jobrt.MissingHandlerError
	if errors.As(runErr, &missing) {
		return res, temporal.NewNonRetryableApplicationError(runErr.Error(), "missing_handler", runErr)
	}
	return fill(res, jc.Job.Status, jc.Job.Stage, jc.Job.Progress, jc.Job.Error), nil
}

func (a *Activities) startHeartbeat(ctx context.Context) func() {
	every := a.HeartbeatEvery
	if every <= 0 {
		every = 10 * time.Second
	}
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-t.C:
				activity.RecordHeartbeat(ctx)
			}
		}
	}()
	return func() { close(done) }
}

func fill(res RunResult, status, stage string, progress int, errMsg string) RunResult {
	res.Status = status
	res.Stage = stage
	res.Progress = progress
	res.Error = errMsg
	return res
}
