package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/obe-backend/internal/data/repos"
	types "github.com/yungbote/obe-backend/internal/domain"
	"github.com/yungbote/obe-backend/internal/domain/jobs"
	"github.com/yungbote/obe-backend/internal/pkg/ctxutil"
	"github.com/yungbote/obe-backend/internal/pkg/dbctx"
	"github.com/yungbote/obe-backend/internal/pkg/logger"
	"github.com/yungbote/obe-backend/internal/services"
)

/*
Context is the handle a handler gets for one claimed job run. Handlers never
write job_run themselves; every lifecycle transition goes through Progress,
Fail or Succeed so a finished row is never reopened.
*/
type Context struct {
	Ctx    context.Context
	Job    *types.JobRun
	Repo   repos.JobRunRepo
	Notify services.JobNotifier
	Log    *logger.Logger

	payload map[string]any
}

// terminal rows are never overwritten by a late writer.
var terminal = []string{jobs.StatusSucceeded}

func NewContext(ctx context.Context, job *types.JobRun, repo repos.JobRunRepo, notify services.JobNotifier, baseLog *logger.Logger) *Context {
	if ctx == nil {
		ctx = context.Background()
	}
	c := &Context{
		Ctx:    ctx,
		Job:    job,
		Repo:   repo,
		Notify: notify,
	}
	_ = c.decodePayload()
	c.applyTraceData()
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	if job != nil {
		baseLog = baseLog.With("job_id", job.ID, "job_type", job.JobType, "attempt", job.Attempts)
	}
	c.Log = baseLog
	return c
}

func (c *Context) decodePayload() error {
	c.payload = map[string]any{}
	if c.Job == nil || len(c.Job.Payload) == 0 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(c.Job.Payload, &m); err != nil {
		return err
	}
	if m != nil {
		c.payload = m
	}
	return nil
}

// applyTraceData restores the ids of the request that enqueued the job.
func (c *Context) applyTraceData() {
	traceID := c.payloadString("trace_id")
	reqID := c.payloadString("request_id")
	if traceID == "" && reqID == "" {
		return
	}
	c.Ctx = ctxutil.WithTraceData(c.Ctx, &ctxutil.TraceData{TraceID: traceID, RequestID: reqID})
	if c.Job != nil && c.Job.RequestedBy != "" {
		c.Ctx = ctxutil.WithActor(c.Ctx, c.Job.RequestedBy)
	}
}

func (c *Context) payloadString(key string) string {
	v, ok := c.Payload()[key]
	if !ok || v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// Payload never returns nil.
func (c *Context) Payload() map[string]any {
	if c.payload == nil {
		c.payload = map[string]any{}
	}
	return c.payload
}

// DecodePayload unmarshals the stored payload into dst.
func (c *Context) DecodePayload(dst any) error {
	if c.Job == nil || len(c.Job.Payload) == 0 {
		return fmt.Errorf("job has no payload")
	}
	if err := json.Unmarshal(c.Job.Payload, dst); err != nil {
		return fmt.Errorf("decode job payload: %w", err)
	}
	return nil
}

// Heartbeat keeps a long run from being reclaimed as stale.
func (c *Context) Heartbeat() {
	if c.Repo == nil || c.Job == nil {
		return
	}
	if err := c.Repo.Heartbeat(dbctx.New(c.Ctx), c.Job.ID); err != nil {
		c.Log.Debug("Heartbeat failed", "error", err)
	}
}

func (c *Context) update(fields map[string]interface{}) bool {
	if c.Repo == nil || c.Job == nil || c.Job.ID == uuid.Nil {
		return true
	}
	// Terminal writes must land even when the run's context was canceled.
	ctx := context.WithoutCancel(c.Ctx)
	ok, err := c.Repo.UpdateFieldsUnlessStatus(dbctx.New(ctx), c.Job.ID, terminal, fields)
	if err != nil {
		c.Log.Warn("Job row update failed", "error", err)
		return false
	}
	return ok
}

func (c *Context) Progress(stage string, pct int, msg string) {
	if c == nil {
		return
	}
	now := time.Now()
	if !c.update(map[string]interface{}{
		"stage":        stage,
		"progress":     pct,
		"message":      msg,
		"heartbeat_at": now,
		"updated_at":   now,
	}) {
		return
	}
	if c.Job != nil {
		c.Job.Stage = stage
		c.Job.Progress = pct
		c.Job.Message = msg
		c.Job.HeartbeatAt = &now
		c.Job.UpdatedAt = now
		if c.Notify != nil {
			c.Notify.JobProgress(c.Job, stage, pct, msg)
		}
	}
}

// Fail leaves the row retryable by the worker pool until attempts run out.
func (c *Context) Fail(stage string, err error) {
	if c == nil {
		return
	}
	now := time.Now()
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	if !c.update(map[string]interface{}{
		"status":        jobs.StatusFailed,
		"stage":         stage,
		"message":       "",
		"error":         msg,
		"last_error_at": now,
		"locked_at":     nil,
		"updated_at":    now,
	}) {
		return
	}
	if c.Job != nil {
		c.Job.Status = jobs.StatusFailed
		c.Job.Stage = stage
		c.Job.Message = ""
		c.Job.Error = msg
		c.Job.LastErrorAt = &now
		c.Job.LockedAt = nil
		c.Job.UpdatedAt = now
		c.Log.Warn("Job failed", "stage", stage, "error", msg)
		if c.Notify != nil {
			c.Notify.JobFailed(c.Job, stage, msg)
		}
	}
}

func (c *Context) Succeed(finalStage string, result any) {
	if c == nil {
		return
	}
	now := time.Now()
	res := datatypes.JSON([]byte(`{}`))
	if result != nil {
		b, err := json.Marshal(result)
		if err != nil {
			c.Fail("result", fmt.Errorf("encode job result: %w", err))
			return
		}
		res = datatypes.JSON(b)
	}
	if !c.update(map[string]interface{}{
		"status":       jobs.StatusSucceeded,
		"stage":        finalStage,
		"progress":     100,
		"message":      "",
		"error":        "",
		"result":       res,
		"locked_at":    nil,
		"heartbeat_at": now,
		"updated_at":   now,
	}) {
		return
	}
	if c.Job != nil {
		c.Job.Status = jobs.StatusSucceeded
		c.Job.Stage = finalStage
		c.Job.Progress = 100
		c.Job.Message = ""
		c.Job.Error = ""
		c.Job.Result = res
		c.Job.LockedAt = nil
		c.Job.HeartbeatAt = &now
		c.Job.UpdatedAt = now
		c.Log.Info("Job succeeded", "stage", finalStage)
		if c.Notify != nil {
			c.Notify.JobDone(c.Job)
		}
	}
}
