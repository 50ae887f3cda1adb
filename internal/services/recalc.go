package services

import (
	"context"
	"fmt"
	"strings"

	types "github.com/yungbote/obe-backend/internal/domain"
	"github.com/yungbote/obe-backend/internal/domain/jobs"
	"github.com/yungbote/obe-backend/internal/grading"
	"github.com/yungbote/obe-backend/internal/pkg/dbctx"
	"github.com/yungbote/obe-backend/internal/pkg/logger"
)

const (
	RecalcModeAsync = "async"
	RecalcModeSync  = "sync"
)

// RecalcOutcome carries the queued job in async mode and the finished
// report in sync mode.
type RecalcOutcome struct {
	Job    *types.JobRun          `json:"job,omitempty"`
	Report *grading.CascadeReport `json:"report,omitempty"`
}

// RecalcDispatcher runs the cascade a committed weight-side mutation made
// necessary. Cascade failures never undo the mutation.
type RecalcDispatcher interface {
	Dispatch(ctx context.Context, req grading.CascadeRequest) (*RecalcOutcome, error)
}

type recalcDispatcher struct {
	mode  string
	coord *grading.Coordinator
	jobs  JobService
	log   *logger.Logger
}

func NewRecalcDispatcher(mode string, coord *grading.Coordinator, jobSvc JobService, baseLog *logger.Logger) RecalcDispatcher {
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode != RecalcModeSync {
		mode = RecalcModeAsync
	}
	return &recalcDispatcher{
		mode:  mode,
		coord: coord,
		jobs:  jobSvc,
		log:   baseLog.With("service", "RecalcDispatcher", "mode", mode),
	}
}

func (d *recalcDispatcher) Dispatch(ctx context.Context, req grading.CascadeRequest) (*RecalcOutcome, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if d.mode == RecalcModeSync {
		report, err := d.coord.Handle(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("run cascade: %w", err)
		}
		return &RecalcOutcome{Report: report}, nil
	}

	entityType, entityID := jobs.EntityCourse, req.CourseID
	if req.Kind != grading.CascadeCourse {
		entityType, entityID = jobs.EntityCpmk, req.CpmkID
	}
	job, created, err := d.jobs.Enqueue(dbctx.New(ctx), JobSpec{
		JobType:    jobs.TypeGradingCascade,
		EntityType: entityType,
		EntityID:   &entityID,
		DedupeKey:  req.DedupeKey(),
		Payload:    req,
	})
	if err != nil {
		if job == nil {
			return nil, fmt.Errorf("enqueue cascade: %w", err)
		}
		// The row exists and is marked failed; the mutation stands.
		d.log.Warn("Cascade dispatch failed", "job_id", job.ID, "error", err)
		return &RecalcOutcome{Job: job}, nil
	}
	d.log.Debug("Cascade queued", "job_id", job.ID, "kind", req.Kind, "created", created)
	return &RecalcOutcome{Job: job}, nil
}
