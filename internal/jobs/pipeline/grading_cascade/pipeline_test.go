package grading_cascade

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/yungbote/obe-backend/internal/data/db"
	"github.com/yungbote/obe-backend/internal/data/repos"
	"github.com/yungbote/obe-backend/internal/data/repos/testutil"
	types "github.com/yungbote/obe-backend/internal/domain"
	"github.com/yungbote/obe-backend/internal/domain/jobs"
	"github.com/yungbote/obe-backend/internal/grading"
	jobrt "github.com/yungbote/obe-backend/internal/jobs/runtime"
	"github.com/yungbote/obe-backend/internal/pkg/dbctx"
)

// flakyRawScores fails reads while down is set.
type flakyRawScores struct {
	repos.RawScoreRepo
	down *atomic.Bool
}

func (f flakyRawScores) ListForScope(dbc dbctx.Context, scope types.Scope, ids []uuid.UUID) ([]*types.RawScore, error) {
	if f.down.Load() {
		return nil, errors.New("connection reset by peer")
	}
	return f.RawScoreRepo.ListForScope(dbc, scope, ids)
}

func TestRunRetriesIncompleteCascade(t *testing.T) {
	gdb := testutil.FreshDB(t)
	log := testutil.Logger(t)
	ctx := context.Background()
	down := &atomic.Bool{}

	stores := grading.Stores{
		Courses:    repos.NewCourseRepo(gdb, log),
		Cpmks:      repos.NewCpmkRepo(gdb, log),
		Cpls:       repos.NewCplRepo(gdb, log),
		Techniques: repos.NewTechniqueRepo(gdb, log),
		Mappings:   repos.NewMappingRepo(gdb, log),
		RawScores:  repos.NewRawScoreRepo(gdb, log),
		CpmkScores: repos.NewCpmkScoreRepo(gdb, log),
		CplScores:  repos.NewCplScoreRepo(gdb, log),
	}
	registry := grading.NewRegistry(db.NewTxRunner(gdb), stores, log)
	stores.RawScores = flakyRawScores{RawScoreRepo: stores.RawScores, down: down}
	locker := grading.NewLocalLocker()
	coord := grading.NewCoordinator(registry,
		grading.NewCpmkAggregator(stores, locker, nil, log),
		grading.NewCplAggregator(stores, locker, nil, log),
		stores, grading.CoordinatorConfig{}, nil, log)

	course := testutil.SeedCourse(t, ctx, gdb, "IF401")
	cpmk := testutil.SeedCpmk(t, ctx, gdb, course.ID, "C1")
	cpl := testutil.SeedCpl(t, ctx, gdb, "L1")
	quiz, _, err := registry.AddTechniqueWeight(ctx, cpmk.ID, "Quiz", decimal.NewFromInt(100))
	require.NoError(t, err)
	_, _, err = registry.AddCplMapping(ctx, cpmk.ID, cpl.ID, decimal.NewFromInt(100))
	require.NoError(t, err)
	scope := types.Scope{StudentID: uuid.New(), Semester: 1, AcademicTerm: "2024/2025-ganjil"}
	testutil.SeedRawScore(t, ctx, gdb, scope, quiz.ID, "75")

	jobRuns := repos.NewJobRunRepo(gdb, log)
	payload, err := json.Marshal(grading.CourseCascade(course.ID))
	require.NoError(t, err)
	job := &types.JobRun{
		ID:       uuid.New(),
		JobType:  jobs.TypeGradingCascade,
		Status:   jobs.StatusRunning,
		Stage:    jobs.StatusRunning,
		Attempts: 1,
		Payload:  datatypes.JSON(payload),
		Result:   datatypes.JSON([]byte(`{}`)),
	}
	_, err = jobRuns.Create(dbctx.New(ctx), []*types.JobRun{job})
	require.NoError(t, err)

	p := New(log, coord)
	reg := jobrt.NewRegistry()
	require.NoError(t, reg.Register(p))

	down.Store(true)
	err = jobrt.Execute(reg, jobrt.NewContext(ctx, job, jobRuns, nil, log), 0)
	var incomplete *IncompleteError
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, 2, incomplete.Skipped, "the cpmk and the cpl behind it")

	got, err := jobRuns.GetByID(dbctx.New(ctx), job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusFailed, got.Status, "left retryable for the worker")
	assert.Equal(t, "cascade_incomplete", got.Stage)
	_, err = coord.GetCplScore(ctx, scope, cpl.ID, course.ID)
	assert.ErrorIs(t, err, grading.ErrScoreNotFound)

	// The retry, once the store is back, completes the cascade.
	down.Store(false)
	got.Status = jobs.StatusRunning
	got.Attempts++
	require.NoError(t, jobrt.Execute(reg, jobrt.NewContext(ctx, got, jobRuns, nil, log), 0))

	got, err = jobRuns.GetByID(dbctx.New(ctx), job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusSucceeded, got.Status)
	assert.Equal(t, "done", got.Stage)
	score, err := coord.GetCplScore(ctx, scope, cpl.ID, course.ID)
	require.NoError(t, err)
	assert.Equal(t, "75.00", score.Score.StringFixed(2))
}
