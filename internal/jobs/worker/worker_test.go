package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/obe-backend/internal/data/db"
	"github.com/yungbote/obe-backend/internal/data/repos"
	"github.com/yungbote/obe-backend/internal/data/repos/testutil"
	types "github.com/yungbote/obe-backend/internal/domain"
	"github.com/yungbote/obe-backend/internal/domain/jobs"
	"github.com/yungbote/obe-backend/internal/grading"
	"github.com/yungbote/obe-backend/internal/jobs/pipeline/grading_cascade"
	"github.com/yungbote/obe-backend/internal/jobs/runtime"
	"github.com/yungbote/obe-backend/internal/pkg/dbctx"
	"github.com/yungbote/obe-backend/internal/services"
)

type jobCount struct {
	n      int
	status string
}

func (c *jobCount) ObserveJob(_ string, status string, _ time.Duration) {
	c.n++
	c.status = status
}

func TestWorkerRunsQueuedCascade(t *testing.T) {
	gdb := testutil.FreshDB(t)
	log := testutil.Logger(t)
	ctx := context.Background()

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
	locker := grading.NewLocalLocker()
	coord := grading.NewCoordinator(registry,
		grading.NewCpmkAggregator(stores, locker, nil, log),
		grading.NewCplAggregator(stores, locker, nil, log),
		stores, grading.CoordinatorConfig{}, nil, log)

	jobRuns := repos.NewJobRunRepo(gdb, log)
	notify := services.NewJobNotifier(log, nil)
	jobSvc := services.NewJobService(gdb, log, jobRuns, notify, nil, "")
	recalc := services.NewRecalcDispatcher(services.RecalcModeAsync, coord, jobSvc, log)

	course := testutil.SeedCourse(t, ctx, gdb, "IF201")
	cpmk := testutil.SeedCpmk(t, ctx, gdb, course.ID, "C1")
	cpl := testutil.SeedCpl(t, ctx, gdb, "L1")
	t1, _, err := registry.AddTechniqueWeight(ctx, cpmk.ID, "Quiz", decimal.NewFromInt(60))
	require.NoError(t, err)
	t2, _, err := registry.AddTechniqueWeight(ctx, cpmk.ID, "Exam", decimal.NewFromInt(40))
	require.NoError(t, err)
	_, _, err = registry.AddCplMapping(ctx, cpmk.ID, cpl.ID, decimal.NewFromInt(100))
	require.NoError(t, err)

	scope := types.Scope{StudentID: uuid.New(), Semester: 2, AcademicTerm: "2024/2025-genap"}
	testutil.SeedRawScore(t, ctx, gdb, scope, t1.ID, "100")
	testutil.SeedRawScore(t, ctx, gdb, scope, t2.ID, "50")
	_, err = coord.OnRawScoreUpserted(ctx, scope, t1.ID)
	require.NoError(t, err)

	change, err := registry.UpdateTechniqueWeight(ctx, t2.ID, decimal.NewFromInt(20))
	require.NoError(t, err)
	_, err = registry.UpdateTechniqueWeight(ctx, t1.ID, decimal.NewFromInt(80))
	require.NoError(t, err)
	out, err := recalc.Dispatch(ctx, grading.TechniqueCascade(change))
	require.NoError(t, err)
	require.NotNil(t, out.Job)

	before, err := coord.GetCpmkScore(ctx, scope, cpmk.ID)
	require.NoError(t, err)
	assert.Equal(t, "80.00", before.Score.StringFixed(2))

	handlers := runtime.NewRegistry()
	require.NoError(t, handlers.Register(grading_cascade.New(log, coord)))
	counter := &jobCount{}
	w := NewWorker(log, jobRuns, handlers, notify, counter, Config{PollInterval: 10 * time.Millisecond})

	require.True(t, w.RunOnce(ctx))
	assert.False(t, w.RunOnce(ctx))
	assert.Equal(t, 1, counter.n)
	assert.Equal(t, jobs.StatusSucceeded, counter.status)

	after, err := coord.GetCpmkScore(ctx, scope, cpmk.ID)
	require.NoError(t, err)
	assert.Equal(t, "90.00", after.Score.StringFixed(2))
	cplScore, err := coord.GetCplScore(ctx, scope, cpl.ID, course.ID)
	require.NoError(t, err)
	assert.Equal(t, "90.00", cplScore.Score.StringFixed(2))

	job, err := jobRuns.GetByID(dbctx.New(ctx), out.Job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusSucceeded, job.Status)
	assert.Equal(t, 1, job.Attempts)
	var report grading.CascadeReport
	require.NoError(t, json.Unmarshal(job.Result, &report))
	assert.Equal(t, grading.TriggerTechniqueWeightChanged, report.Trigger)
	assert.Equal(t, 1, report.CpmkRecomputed)
}

func TestWorkerFailsUnknownJobType(t *testing.T) {
	gdb := testutil.FreshDB(t)
	log := testutil.Logger(t)
	ctx := context.Background()
	jobRuns := repos.NewJobRunRepo(gdb, log)
	jobSvc := services.NewJobService(gdb, log, jobRuns, services.NewJobNotifier(log, nil), nil, "")

	job, _, err := jobSvc.Enqueue(dbctx.New(ctx), services.JobSpec{JobType: "legacy_rebuild"})
	require.NoError(t, err)

	w := NewWorker(log, jobRuns, runtime.NewRegistry(), nil, nil, Config{MaxAttempts: 1})
	require.True(t, w.RunOnce(ctx))

	got, err := jobRuns.GetByID(dbctx.New(ctx), job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusFailed, got.Status)
	assert.Equal(t, "dispatch", got.Stage)
	assert.Contains(t, got.Error, "legacy_rebuild")
	// Attempts are exhausted, so nothing is runnable.
	assert.False(t, w.RunOnce(ctx))
}

func TestWorkerStopsOnCancel(t *testing.T) {
	gdb := testutil.FreshDB(t)
	log := testutil.Logger(t)
	w := NewWorker(log, repos.NewJobRunRepo(gdb, log), runtime.NewRegistry(), nil, nil, Config{Concurrency: 2, PollInterval: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)
	time.Sleep(20 * time.Millisecond)
	cancel()

	done := make(chan struct{})
	go func() {
		w.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}
