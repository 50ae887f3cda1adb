package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	temporalsdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/obe-backend/internal/data/repos"
	types "github.com/yungbote/obe-backend/internal/domain"
	"github.com/yungbote/obe-backend/internal/domain/jobs"
	"github.com/yungbote/obe-backend/internal/pkg/ctxutil"
	"github.com/yungbote/obe-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/obe-backend/internal/pkg/errors"
	"github.com/yungbote/obe-backend/internal/pkg/logger"
)

// workflowName must match the name the temporal worker registers.
const workflowName = "job_run"

var ErrJobNotFound = fmt.Errorf("job %w", pkgerrors.ErrNotFound)

type JobSpec struct {
	JobType    string
	EntityType string
	EntityID   *uuid.UUID
	DedupeKey  string
	Payload    any
}

type JobService interface {
	// Enqueue returns an already queued job with the same dedupe key instead
	// of creating a second one; created reports which happened.
	Enqueue(dbc dbctx.Context, spec JobSpec) (job *types.JobRun, created bool, err error)
	Dispatch(dbc dbctx.Context, jobID uuid.UUID) error
	GetByID(dbc dbctx.Context, jobID uuid.UUID) (*types.JobRun, error)
	ListForEntity(dbc dbctx.Context, entityType string, entityID uuid.UUID, limit int) ([]*types.JobRun, error)
}

type jobService struct {
	db     *gorm.DB
	log    *logger.Logger
	repo   repos.JobRunRepo
	notify JobNotifier

	temporal          temporalsdkclient.Client
	temporalTaskQueue string
}

// NewJobService builds the queue front. With a nil temporal client jobs stay
// queued for the in-process worker pool.
func NewJobService(
	db *gorm.DB,
	baseLog *logger.Logger,
	repo repos.JobRunRepo,
	notify JobNotifier,
	tc temporalsdkclient.Client,
	taskQueue string,
) JobService {
	return &jobService{
		db:                db,
		log:               baseLog.With("service", "JobService"),
		repo:              repo,
		notify:            notify,
		temporal:          tc,
		temporalTaskQueue: strings.TrimSpace(taskQueue),
	}
}

func (s *jobService) Enqueue(dbc dbctx.Context, spec JobSpec) (*types.JobRun, bool, error) {
	if strings.TrimSpace(spec.JobType) == "" {
		return nil, false, fmt.Errorf("%w: missing job_type", pkgerrors.ErrInvalidArgument)
	}
	repoCtx := dbctx.Context{Ctx: dbc.Ctx, Tx: dbc.Conn(s.db)}
	if spec.DedupeKey != "" {
		existing, err := s.repo.FindQueuedByDedupeKey(repoCtx, spec.JobType, spec.DedupeKey)
		if err != nil {
			return nil, false, fmt.Errorf("find queued job: %w", err)
		}
		if existing != nil {
			s.log.Debug("Job already queued; reusing", "job_id", existing.ID, "job_type", spec.JobType, "dedupe_key", spec.DedupeKey)
			return existing, false, nil
		}
	}

	payload, err := encodePayload(dbc.Context(), spec.Payload)
	if err != nil {
		return nil, false, err
	}
	now := time.Now()
	job := &types.JobRun{
		ID:          uuid.New(),
		RequestedBy: ctxutil.Actor(dbc.Context()),
		JobType:     spec.JobType,
		EntityType:  spec.EntityType,
		EntityID:    spec.EntityID,
		DedupeKey:   spec.DedupeKey,
		Status:      jobs.StatusQueued,
		Stage:       jobs.StatusQueued,
		Message:     "Queued",
		Payload:     payload,
		Result:      datatypes.JSON([]byte(`{}`)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := s.repo.Create(repoCtx, []*types.JobRun{job}); err != nil {
		return nil, false, fmt.Errorf("create job: %w", err)
	}
	s.notify.JobCreated(job)

	// Inside a caller's transaction the row is not visible to a workflow yet;
	// the caller dispatches after commit.
	if isDBTransaction(dbc.Tx) {
		s.log.Debug("Job enqueued inside transaction; awaiting dispatch after commit", "job_id", job.ID, "job_type", job.JobType)
		return job, true, nil
	}
	if err := s.Dispatch(dbctx.Context{Ctx: dbc.Ctx}, job.ID); err != nil {
		return job, true, err
	}
	return job, true, nil
}

type txCommitter interface {
	Commit() error
	Rollback() error
}

func isDBTransaction(db *gorm.DB) bool {
	if db == nil || db.Statement == nil || db.Statement.ConnPool == nil {
		return false
	}
	_, ok := db.Statement.ConnPool.(txCommitter)
	return ok
}

// Dispatch starts the temporal workflow for a queued job. Without temporal
// it is a no-op: the worker pool claims queued rows on its own.
func (s *jobService) Dispatch(dbc dbctx.Context, jobID uuid.UUID) error {
	if s.temporal == nil {
		return nil
	}
	if jobID == uuid.Nil {
		return fmt.Errorf("%w: missing job id", pkgerrors.ErrInvalidArgument)
	}
	ctx := dbc.Context()

	err := s.startWorkflow(ctx, jobID)
	if err == nil {
		return nil
	}
	var already *serviceerror.WorkflowExecutionAlreadyStarted
	if errors.As(err, &already) {
		return nil
	}

	now := time.Now().UTC()
	_ = s.repo.UpdateFields(dbctx.Context{Ctx: ctx, Tx: s.db}, jobID, map[string]interface{}{
		"status":        jobs.StatusFailed,
		"stage":         "dispatch",
		"message":       "",
		"error":         err.Error(),
		"last_error_at": now,
		"locked_at":     nil,
		"updated_at":    now,
	})
	if j, rerr := s.repo.GetByID(dbctx.Context{Ctx: ctx, Tx: s.db}, jobID); rerr == nil && j != nil {
		s.notify.JobFailed(j, "dispatch", err.Error())
	}
	return fmt.Errorf("start temporal workflow: %w", err)
}

func (s *jobService) startWorkflow(ctx context.Context, jobID uuid.UUID) error {
	tq := s.temporalTaskQueue
	if tq == "" {
		tq = "obe"
	}
	opts := temporalsdkclient.StartWorkflowOptions{
		ID:                    jobID.String(),
		TaskQueue:             tq,
		WorkflowIDReusePolicy: enums.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    30 * time.Second,
			BackoffCoefficient: 1.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    5,
		},
	}
	_, err := s.temporal.ExecuteWorkflow(ctx, opts, workflowName)
	return err
}

func (s *jobService) GetByID(dbc dbctx.Context, jobID uuid.UUID) (*types.JobRun, error) {
	job, err := s.repo.GetByID(dbctx.Context{Ctx: dbc.Ctx, Tx: dbc.Conn(s.db)}, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrJobNotFound
	}
	return job, nil
}

func (s *jobService) ListForEntity(dbc dbctx.Context, entityType string, entityID uuid.UUID, limit int) ([]*types.JobRun, error) {
	return s.repo.ListByEntity(dbctx.Context{Ctx: dbc.Ctx, Tx: dbc.Conn(s.db)}, entityType, entityID, limit)
}

// encodePayload stores the request's trace ids next to the payload so the
// worker can log under the same ids.
func encodePayload(ctx context.Context, payload any) (datatypes.JSON, error) {
	m := map[string]any{}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode job payload: %w", err)
		}
		if err := json.Unmarshal(b, &m); err != nil {
			return nil, fmt.Errorf("job payload must be a JSON object: %w", err)
		}
	}
	if td := ctxutil.GetTraceData(ctx); td != nil {
		if _, ok := m["trace_id"]; !ok && td.TraceID != "" {
			m["trace_id"] = td.TraceID
		}
		if _, ok := m["request_id"]; !ok && td.RequestID != "" {
			m["request_id"] = td.RequestID
		}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}
