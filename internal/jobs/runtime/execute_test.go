package runtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/yungbote/obe-backend/internal/data/repos"
	"github.com/yungbote/obe-backend/internal/data/repos/testutil"
	types "github.com/yungbote/obe-backend/internal/domain"
	"github.com/yungbote/obe-backend/internal/domain/jobs"
	"github.com/yungbote/obe-backend/internal/pkg/ctxutil"
	"github.com/yungbote/obe-backend/internal/pkg/dbctx"
)

type funcHandler struct {
	typ string
	run func(*Context) error
}

func (h funcHandler) Type() string          { return h.typ }
func (h funcHandler) Run(jc *Context) error { return h.run(jc) }

func newRunningJob(t *testing.T, repo repos.JobRunRepo, jobType, payload string) *types.JobRun {
	t.Helper()
	job := &types.JobRun{
		ID:          uuid.New(),
		JobType:     jobType,
		Status:      jobs.StatusRunning,
		Stage:       jobs.StatusRunning,
		RequestedBy: "lecturer-1",
		Payload:     datatypes.JSON([]byte(payload)),
		Result:      datatypes.JSON([]byte(`{}`)),
	}
	_, err := repo.Create(dbctx.New(context.Background()), []*types.JobRun{job})
	require.NoError(t, err)
	return job
}

func TestExecute(t *testing.T) {
	gdb := testutil.FreshDB(t)
	log := testutil.Logger(t)
	repo := repos.NewJobRunRepo(gdb, log)
	ctx := context.Background()

	reg := NewRegistry()
	require.NoError(t, reg.Register(funcHandler{typ: "ok", run: func(jc *Context) error {
		jc.Succeed("finished", map[string]int{"n": 3})
		return nil
	}}))
	require.NoError(t, reg.Register(funcHandler{typ: "implicit", run: func(*Context) error { return nil }}))
	require.NoError(t, reg.Register(funcHandler{typ: "boom", run: func(*Context) error { panic("bad state") }}))
	require.NoError(t, reg.Register(funcHandler{typ: "err", run: func(*Context) error { return errors.New("store down") }}))
	assert.Error(t, reg.Register(funcHandler{typ: "ok"}))
	assert.Equal(t, []string{"boom", "err", "implicit", "ok"}, reg.Types())

	tests := []struct {
		jobType string
		status  string
		stage   string
		wantErr any
	}{
		{jobType: "ok", status: jobs.StatusSucceeded, stage: "finished"},
		{jobType: "implicit", status: jobs.StatusSucceeded, stage: "done"},
		{jobType: "boom", status: jobs.StatusFailed, stage: "panic", wantErr: &PanicError{}},
		{jobType: "err", status: jobs.StatusFailed, stage: "run"},
		{jobType: "unknown", status: jobs.StatusFailed, stage: "dispatch", wantErr: &MissingHandlerError{}},
	}
	for _, tt := range tests {
		t.Run(tt.jobType, func(t *testing.T) {
			job := newRunningJob(t, repo, tt.jobType, `{}`)
			jc := NewContext(ctx, job, repo, nil, log)
			err := Execute(reg, jc, time.Hour)
			switch want := tt.wantErr.(type) {
			case *PanicError:
				require.ErrorAs(t, err, &want)
			case *MissingHandlerError:
				require.ErrorAs(t, err, &want)
				assert.Equal(t, "unknown", want.JobType)
			}
			if tt.status == jobs.StatusSucceeded {
				assert.NoError(t, err)
			}

			got, err := repo.GetByID(dbctx.New(ctx), job.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.status, got.Status)
			assert.Equal(t, tt.stage, got.Stage)
		})
	}
}

func TestSucceededJobIsNotReopened(t *testing.T) {
	gdb := testutil.FreshDB(t)
	log := testutil.Logger(t)
	repo := repos.NewJobRunRepo(gdb, log)
	ctx := context.Background()

	job := newRunningJob(t, repo, "x", `{}`)
	jc := NewContext(ctx, job, repo, nil, log)
	jc.Succeed("done", nil)

	late := NewContext(ctx, job, repo, nil, log)
	late.Fail("late", errors.New("too late"))

	got, err := repo.GetByID(dbctx.New(ctx), job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusSucceeded, got.Status)
	assert.Equal(t, 100, got.Progress)
}

func TestContextPayload(t *testing.T) {
	log := testutil.Logger(t)
	id := uuid.New()
	job := &types.JobRun{
		ID:          uuid.New(),
		JobType:     "x",
		RequestedBy: "admin",
		Payload:     datatypes.JSON([]byte(`{"cpmk_id":"` + id.String() + `","trace_id":"t-1","request_id":"r-1"}`)),
	}
	jc := NewContext(context.Background(), job, nil, nil, log)

	assert.Equal(t, id.String(), jc.Payload()["cpmk_id"])

	td := ctxutil.GetTraceData(jc.Ctx)
	require.NotNil(t, td)
	assert.Equal(t, "t-1", td.TraceID)
	assert.Equal(t, "r-1", td.RequestID)
	assert.Equal(t, "admin", ctxutil.Actor(jc.Ctx))

	var dst struct {
		CpmkID uuid.UUID `json:"cpmk_id"`
	}
	require.NoError(t, jc.DecodePayload(&dst))
	assert.Equal(t, id, dst.CpmkID)

	empty := NewContext(context.Background(), &types.JobRun{ID: uuid.New()}, nil, nil, log)
	assert.Error(t, empty.DecodePayload(&dst))
	assert.NotNil(t, empty.Payload())
}
