package grading

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/obe-backend/internal/data/repos"
	types "github.com/yungbote/obe-backend/internal/domain"
	"github.com/yungbote/obe-backend/internal/pkg/dbctx"
)

func TestScenarioWeightedScores(t *testing.T) {
	e := newEngine(t, CoordinatorConfig{})
	s := e.seedScenario(t)

	e.grade(t, s.scope, s.t1.ID, "100")
	report := e.grade(t, s.scope, s.t2.ID, "50")

	assert.Equal(t, TriggerRawScoreUpserted, report.Trigger)
	assert.Equal(t, 1, report.CpmkRecomputed)
	assert.Equal(t, 1, report.CplRecomputed)
	assert.Equal(t, "80.00", e.cpmkScore(t, s.scope, s.c1.ID))
	assert.Equal(t, "80.00", e.cplScore(t, s.scope, s.l1.ID, s.course.ID))
}

func TestScenarioOverflowLeavesScoresAlone(t *testing.T) {
	e := newEngine(t, CoordinatorConfig{})
	s := e.seedScenario(t)
	ctx := context.Background()
	e.grade(t, s.scope, s.t1.ID, "100")
	e.grade(t, s.scope, s.t2.ID, "50")

	_, _, err := e.registry.AddTechniqueWeight(ctx, s.c1.ID, "T3", dec("50"))
	var overflow *WeightOverflowError
	require.ErrorAs(t, err, &overflow)
	assert.Equal(t, "100.00", overflow.CurrentTotal.StringFixed(2))

	w, err := e.registry.CpmkWeights(ctx, s.c1.ID)
	require.NoError(t, err)
	require.Len(t, w.Techniques, 2)
	t1, _ := w.Technique(s.t1.ID)
	t2, _ := w.Technique(s.t2.ID)
	assert.Equal(t, "60.00", t1.Weight.StringFixed(2))
	assert.Equal(t, "40.00", t2.Weight.StringFixed(2))
	assert.Equal(t, "80.00", e.cpmkScore(t, s.scope, s.c1.ID))
}

func TestScenarioDeletedRawScore(t *testing.T) {
	e := newEngine(t, CoordinatorConfig{})
	s := e.seedScenario(t)
	ctx := context.Background()
	e.grade(t, s.scope, s.t1.ID, "100")
	e.grade(t, s.scope, s.t2.ID, "50")

	deleted, err := e.stores.RawScores.Delete(dbctx.New(ctx), s.scope, s.t2.ID)
	require.NoError(t, err)
	require.True(t, deleted)
	report, err := e.coord.OnRawScoreDeleted(ctx, s.scope, s.t2.ID)
	require.NoError(t, err)
	assert.Equal(t, TriggerRawScoreDeleted, report.Trigger)
	assert.Empty(t, report.Skipped)

	assert.Equal(t, "60.00", e.cpmkScore(t, s.scope, s.c1.ID))
	assert.Equal(t, "60.00", e.cplScore(t, s.scope, s.l1.ID, s.course.ID))
}

// After a weight change every reachable CPL score equals a from-scratch
// recompute of the raw data.
func TestTechniqueWeightCascadeIsComplete(t *testing.T) {
	e := newEngine(t, CoordinatorConfig{Parallelism: 3})
	s := e.seedScenario(t)
	ctx := context.Background()

	scopes := []types.Scope{
		s.scope,
		newScope(1, "2024/2025-ganjil"),
		newScope(2, "2024/2025-genap"),
		{StudentID: s.scope.StudentID, Semester: 2, AcademicTerm: "2024/2025-genap"},
	}
	raws := map[types.Scope][2]string{
		scopes[0]: {"100", "50"},
		scopes[1]: {"72.5", "88"},
		scopes[2]: {"40", "0"},
		scopes[3]: {"91.25", "63.75"},
	}
	for _, sc := range scopes {
		e.grade(t, sc, s.t1.ID, raws[sc][0])
		e.grade(t, sc, s.t2.ID, raws[sc][1])
	}

	_, err := e.registry.UpdateTechniqueWeight(ctx, s.t1.ID, dec("25"))
	require.NoError(t, err)
	_, err = e.registry.UpdateCplMapping(ctx, s.mapping.ID, dec("80"))
	require.NoError(t, err)
	report, err := e.coord.OnTechniqueWeightChanged(ctx, s.c1.ID)
	require.NoError(t, err)
	require.Empty(t, report.Skipped)
	assert.Equal(t, len(scopes), report.Tuples)
	assert.Equal(t, len(scopes), report.CpmkRecomputed)
	assert.Equal(t, len(scopes), report.CplRecomputed)

	for _, sc := range scopes {
		cpmk := WeightedCpmkScore(
			[]TechniqueWeight{{ID: s.t1.ID, Weight: dec("25")}, {ID: s.t2.ID, Weight: dec("40")}},
			map[uuid.UUID]decimal.Decimal{s.t1.ID: dec(raws[sc][0]), s.t2.ID: dec(raws[sc][1])},
		)
		cpl := WeightedCplScore(
			[]MappingWeight{{CpmkID: s.c1.ID, Weight: dec("80")}},
			map[uuid.UUID]decimal.Decimal{s.c1.ID: cpmk},
		)
		assert.Equal(t, cpmk.StringFixed(2), e.cpmkScore(t, sc, s.c1.ID), sc.String())
		assert.Equal(t, cpl.StringFixed(2), e.cplScore(t, sc, s.l1.ID, s.course.ID), sc.String())
	}
}

func TestRemovedTechniqueStillRecomputesItsStudents(t *testing.T) {
	e := newEngine(t, CoordinatorConfig{})
	s := e.seedScenario(t)
	ctx := context.Background()
	only := newScope(1, "2024/2025-ganjil")
	e.grade(t, only, s.t2.ID, "100")
	require.Equal(t, "40.00", e.cpmkScore(t, only, s.c1.ID))

	change, err := e.registry.RemoveTechnique(ctx, s.t2.ID)
	require.NoError(t, err)
	report, err := e.coord.OnTechniqueWeightChanged(ctx, change.CpmkID)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Tuples)
	assert.Equal(t, "0.00", e.cpmkScore(t, only, s.c1.ID))
	assert.Equal(t, "0.00", e.cplScore(t, only, s.l1.ID, s.course.ID))
}

func TestMappingCascadeTouchesOnlyCplScores(t *testing.T) {
	e := newEngine(t, CoordinatorConfig{})
	s := e.seedScenario(t)
	ctx := context.Background()
	e.grade(t, s.scope, s.t1.ID, "100")
	e.grade(t, s.scope, s.t2.ID, "50")
	before, err := e.coord.GetCpmkScore(ctx, s.scope, s.c1.ID)
	require.NoError(t, err)

	_, err = e.registry.UpdateCplMapping(ctx, s.mapping.ID, dec("50"))
	require.NoError(t, err)
	report, err := e.coord.OnCpmkCplMappingChanged(ctx, s.c1.ID, s.l1.ID)
	require.NoError(t, err)
	assert.Zero(t, report.CpmkRecomputed)
	assert.Equal(t, 1, report.CplRecomputed)
	assert.Equal(t, "40.00", e.cplScore(t, s.scope, s.l1.ID, s.course.ID))

	after, err := e.coord.GetCpmkScore(ctx, s.scope, s.c1.ID)
	require.NoError(t, err)
	assert.Equal(t, before.WeightsVersion, after.WeightsVersion, "cpmk row untouched")
	assert.True(t, before.ComputedAt.Equal(after.ComputedAt))

	change, err := e.registry.RemoveCplMapping(ctx, s.mapping.ID)
	require.NoError(t, err)
	_, err = e.coord.OnCpmkCplMappingChanged(ctx, change.CpmkID, change.CplID)
	require.NoError(t, err)
	assert.Equal(t, "0.00", e.cplScore(t, s.scope, s.l1.ID, s.course.ID), "removed mapping contributes 0")
}

func TestRecalculateCourseIsIdempotent(t *testing.T) {
	e := newEngine(t, CoordinatorConfig{Parallelism: 2})
	s := e.seedScenario(t)
	ctx := context.Background()
	other := newScope(3, "2025/2026-ganjil")
	e.grade(t, s.scope, s.t1.ID, "100")
	e.grade(t, s.scope, s.t2.ID, "50")
	e.grade(t, other, s.t1.ID, "66.67")

	type stored struct {
		score   string
		version int64
	}
	read := func() map[string]stored {
		out := map[string]stored{}
		for _, sc := range []types.Scope{s.scope, other} {
			cpmk, err := e.coord.GetCpmkScore(ctx, sc, s.c1.ID)
			require.NoError(t, err)
			cpl, err := e.coord.GetCplScore(ctx, sc, s.l1.ID, s.course.ID)
			require.NoError(t, err)
			out["cpmk:"+sc.String()] = stored{cpmk.Score.StringFixed(2), cpmk.WeightsVersion}
			out["cpl:"+sc.String()] = stored{cpl.Score.StringFixed(2), cpl.WeightsVersion}
		}
		return out
	}

	first, err := e.coord.RecalculateCourse(ctx, s.course.ID)
	require.NoError(t, err)
	require.Empty(t, first.Skipped)
	assert.Equal(t, 2, first.Tuples)
	snapshot1 := read()

	second, err := e.coord.RecalculateCourse(ctx, s.course.ID)
	require.NoError(t, err)
	require.Empty(t, second.Skipped)
	assert.Equal(t, snapshot1, read())
	assert.Equal(t, "40.00", snapshot1["cpmk:"+other.String()].score)
}

type failingRawScores struct {
	repos.RawScoreRepo
	student uuid.UUID
}

func (f failingRawScores) ListForScope(dbc dbctx.Context, scope types.Scope, ids []uuid.UUID) ([]*types.RawScore, error) {
	if scope.StudentID == f.student {
		return nil, errors.New("corrupt raw score row")
	}
	return f.RawScoreRepo.ListForScope(dbc, scope, ids)
}

func TestCascadeIsolatesPerStudentFailures(t *testing.T) {
	bad := uuid.New()
	e := newEngineWith(t, CoordinatorConfig{Parallelism: 2}, func(s Stores) Stores {
		s.RawScores = failingRawScores{RawScoreRepo: s.RawScores, student: bad}
		return s
	})
	s := e.seedScenario(t)
	ctx := context.Background()

	good := []types.Scope{newScope(1, "2024/2025-ganjil"), newScope(1, "2024/2025-ganjil")}
	badScope := types.Scope{StudentID: bad, Semester: 1, AcademicTerm: "2024/2025-ganjil"}
	for _, sc := range good {
		e.grade(t, sc, s.t1.ID, "100")
	}
	_, err := e.stores.RawScores.Upsert(dbctx.New(ctx), rawScore(badScope, s.t1.ID, "90"))
	require.NoError(t, err)

	_, err = e.registry.UpdateTechniqueWeight(ctx, s.t1.ID, dec("50"))
	require.NoError(t, err)
	report, err := e.coord.OnTechniqueWeightChanged(ctx, s.c1.ID)
	require.NoError(t, err, "cascade failures never fail the trigger")

	assert.Equal(t, 3, report.Tuples)
	assert.Equal(t, 2, report.CpmkRecomputed)
	assert.Equal(t, 2, report.CplRecomputed)
	require.Len(t, report.Skipped, 2)
	assert.Equal(t, PhaseCpmk, report.Skipped[0].Phase)
	assert.Equal(t, PhaseCpl, report.Skipped[1].Phase)
	assert.ErrorIs(t, &report.Skipped[1], errUpstreamCpmkFailed)
	for _, sk := range report.Skipped {
		assert.Equal(t, bad, sk.StudentID)
	}
	for _, sc := range good {
		assert.Equal(t, "50.00", e.cpmkScore(t, sc, s.c1.ID))
		assert.Equal(t, "50.00", e.cplScore(t, sc, s.l1.ID, s.course.ID))
	}
	_, err = e.coord.GetCpmkScore(ctx, badScope, s.c1.ID)
	assert.ErrorIs(t, err, ErrScoreNotFound)
}

// interleavedRawScores runs during once, the first time a CPMK compute
// reads raw scores after it is armed.
type interleavedRawScores struct {
	repos.RawScoreRepo
	once   sync.Once
	during func()
}

func (r *interleavedRawScores) ListForScope(dbc dbctx.Context, scope types.Scope, ids []uuid.UUID) ([]*types.RawScore, error) {
	if r.during != nil {
		r.once.Do(r.during)
	}
	return r.RawScoreRepo.ListForScope(dbc, scope, ids)
}

// A mapping cascade that lands between a raw-score cascade's snapshot and
// its CPL write stamps the CPL row with a newer version from the old CPMK
// score. The raw-score cascade must still bring the CPL row up to date.
func TestRawScoreCascadeConvergesAfterConcurrentMappingChange(t *testing.T) {
	raws := &interleavedRawScores{}
	e := newEngineWith(t, CoordinatorConfig{}, func(s Stores) Stores {
		raws.RawScoreRepo = s.RawScores
		s.RawScores = raws
		return s
	})
	s := e.seedScenario(t)
	ctx := context.Background()
	e.grade(t, s.scope, s.t1.ID, "100")
	e.grade(t, s.scope, s.t2.ID, "50")
	require.Equal(t, "80.00", e.cplScore(t, s.scope, s.l1.ID, s.course.ID))

	var mappingReport *CascadeReport
	raws.during = func() {
		_, err := e.registry.UpdateCplMapping(ctx, s.mapping.ID, dec("50"))
		if !assert.NoError(t, err) {
			return
		}
		mappingReport, err = e.coord.OnCpmkCplMappingChanged(ctx, s.c1.ID, s.l1.ID)
		assert.NoError(t, err)
	}

	_, err := e.stores.RawScores.Upsert(dbctx.New(ctx), rawScore(s.scope, s.t2.ID, "100"))
	require.NoError(t, err)
	report, err := e.coord.OnRawScoreUpserted(ctx, s.scope, s.t2.ID)
	require.NoError(t, err)

	require.NotNil(t, mappingReport)
	assert.Equal(t, 1, mappingReport.CplRecomputed)
	assert.Empty(t, report.Skipped)
	assert.Equal(t, 1, report.CpmkRecomputed)
	assert.Equal(t, 1, report.CplRecomputed)

	assert.Equal(t, "100.00", e.cpmkScore(t, s.scope, s.c1.ID))
	assert.Equal(t, "50.00", e.cplScore(t, s.scope, s.l1.ID, s.course.ID))

	current, err := e.registry.Snapshot(ctx, s.course.ID)
	require.NoError(t, err)
	cpl, err := e.coord.GetCplScore(ctx, s.scope, s.l1.ID, s.course.ID)
	require.NoError(t, err)
	assert.Equal(t, current.Version, cpl.WeightsVersion)
	assert.Less(t, report.WeightsVersion, current.Version, "cascade started on the older snapshot")
}

type slowRawScores struct {
	repos.RawScoreRepo
	delay time.Duration
}

func (s slowRawScores) ListForScope(dbc dbctx.Context, scope types.Scope, ids []uuid.UUID) ([]*types.RawScore, error) {
	select {
	case <-time.After(s.delay):
	case <-dbc.Context().Done():
		return nil, dbc.Context().Err()
	}
	return s.RawScoreRepo.ListForScope(dbc, scope, ids)
}

func TestCascadeDeadlineReportsRemainingTuples(t *testing.T) {
	e := newEngineWith(t, CoordinatorConfig{Parallelism: 1, Timeout: 20 * time.Millisecond}, func(s Stores) Stores {
		s.RawScores = slowRawScores{RawScoreRepo: s.RawScores, delay: time.Second}
		return s
	})
	s := e.seedScenario(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := e.stores.RawScores.Upsert(dbctx.New(ctx), rawScore(newScope(1, "2024/2025-ganjil"), s.t1.ID, "80"))
		require.NoError(t, err)
	}

	report, err := e.coord.RecalculateCourse(ctx, s.course.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Tuples)
	assert.Zero(t, report.CpmkRecomputed)
	assert.Zero(t, report.CplRecomputed)
	require.Len(t, report.Skipped, 6)
	for _, sk := range report.Skipped {
		assert.ErrorIs(t, sk.Err, context.DeadlineExceeded)
	}
	assert.False(t, report.Complete())
	assert.Less(t, report.Duration(), 500*time.Millisecond)
}

func TestTriggersRejectUnknownEntities(t *testing.T) {
	e := newEngine(t, CoordinatorConfig{})
	ctx := context.Background()

	_, err := e.coord.OnRawScoreUpserted(ctx, newScope(1, "x"), uuid.New())
	assert.ErrorIs(t, err, ErrTechniqueNotFound)
	_, err = e.coord.OnTechniqueWeightChanged(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrCpmkNotFound)
	_, err = e.coord.RecalculateCourse(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrCourseNotFound)
	_, err = e.coord.GetCplScore(ctx, newScope(1, "x"), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, ErrScoreNotFound)
}
