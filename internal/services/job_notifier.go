package services

import (
	"context"
	"time"

	"github.com/yungbote/obe-backend/internal/clients/redis"
	types "github.com/yungbote/obe-backend/internal/domain"
	"github.com/yungbote/obe-backend/internal/pkg/logger"
)

const (
	JobEventCreated  = "job_created"
	JobEventProgress = "job_progress"
	JobEventFailed   = "job_failed"
	JobEventDone     = "job_done"
)

type JobNotifier interface {
	JobCreated(job *types.JobRun)
	JobProgress(job *types.JobRun, stage string, progress int, message string)
	JobFailed(job *types.JobRun, stage string, errorMessage string)
	JobDone(job *types.JobRun)
}

type jobNotifier struct {
	log *logger.Logger
	bus redis.JobEventBus
}

// NewJobNotifier logs every job transition and, when bus is set, fans it out
// to other processes. Clients without a subscription poll GET /api/jobs/:id.
func NewJobNotifier(baseLog *logger.Logger, bus redis.JobEventBus) JobNotifier {
	return &jobNotifier{log: baseLog.With("service", "JobNotifier"), bus: bus}
}

func (n *jobNotifier) JobCreated(job *types.JobRun) {
	if job == nil {
		return
	}
	n.log.Debug("Job created", "job_id", job.ID, "job_type", job.JobType, "requested_by", job.RequestedBy)
	n.publish(JobEventCreated, job, map[string]any{"job": job})
}

func (n *jobNotifier) JobProgress(job *types.JobRun, stage string, progress int, message string) {
	if job == nil {
		return
	}
	n.log.Debug("Job progress", "job_id", job.ID, "stage", stage, "progress", progress)
	n.publish(JobEventProgress, job, map[string]any{
		"job_type": job.JobType,
		"stage":    stage,
		"progress": progress,
		"message":  message,
	})
}

func (n *jobNotifier) JobFailed(job *types.JobRun, stage string, errorMessage string) {
	if job == nil {
		return
	}
	n.log.Warn("Job failed", "job_id", job.ID, "job_type", job.JobType, "stage", stage, "error", errorMessage)
	n.publish(JobEventFailed, job, map[string]any{
		"job_type": job.JobType,
		"stage":    stage,
		"error":    errorMessage,
	})
}

func (n *jobNotifier) JobDone(job *types.JobRun) {
	if job == nil {
		return
	}
	n.log.Info("Job done", "job_id", job.ID, "job_type", job.JobType)
	n.publish(JobEventDone, job, map[string]any{"job": job})
}

func (n *jobNotifier) publish(event string, job *types.JobRun, data map[string]any) {
	if n.bus == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ev := redis.JobEvent{Event: event, JobID: job.ID.String(), Data: data}
	if err := n.bus.Publish(ctx, ev); err != nil {
		n.log.Warn("Job event publish failed", "job_id", job.ID, "event", event, "error", err)
	}
}
