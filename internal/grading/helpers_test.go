package grading

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yungbote/obe-backend/internal/data/db"
	"github.com/yungbote/obe-backend/internal/data/repos"
	"github.com/yungbote/obe-backend/internal/data/repos/testutil"
	types "github.com/yungbote/obe-backend/internal/domain"
	"github.com/yungbote/obe-backend/internal/pkg/dbctx"
)

type engine struct {
	db       *gorm.DB
	stores   Stores
	registry *Registry
	cpmkAgg  *CpmkAggregator
	cplAgg   *CplAggregator
	coord    *Coordinator
}

func newEngine(t *testing.T, cfg CoordinatorConfig) *engine {
	return newEngineWith(t, cfg, nil)
}

func newEngineWith(t *testing.T, cfg CoordinatorConfig, wrap func(Stores) Stores) *engine {
	t.Helper()
	gdb := testutil.FreshDB(t)
	log := testutil.Logger(t)
	stores := Stores{
		Courses:    repos.NewCourseRepo(gdb, log),
		Cpmks:      repos.NewCpmkRepo(gdb, log),
		Cpls:       repos.NewCplRepo(gdb, log),
		Techniques: repos.NewTechniqueRepo(gdb, log),
		Mappings:   repos.NewMappingRepo(gdb, log),
		RawScores:  repos.NewRawScoreRepo(gdb, log),
		CpmkScores: repos.NewCpmkScoreRepo(gdb, log),
		CplScores:  repos.NewCplScoreRepo(gdb, log),
	}
	registry := NewRegistry(db.NewTxRunner(gdb), stores, log)
	if wrap != nil {
		stores = wrap(stores)
	}
	locker := NewLocalLocker()
	cpmkAgg := NewCpmkAggregator(stores, locker, nil, log)
	cplAgg := NewCplAggregator(stores, locker, nil, log)
	return &engine{
		db:       gdb,
		stores:   stores,
		registry: registry,
		cpmkAgg:  cpmkAgg,
		cplAgg:   cplAgg,
		coord:    NewCoordinator(registry, cpmkAgg, cplAgg, stores, cfg, nil, log),
	}
}

// scenario is CPMK C1 with techniques T1 (60) and T2 (40), mapped to CPL L1
// with weight 100.
type scenario struct {
	course  *types.Course
	c1      *types.Cpmk
	l1      *types.Cpl
	t1      *types.AssessmentTechnique
	t2      *types.AssessmentTechnique
	mapping *types.CpmkCplMapping
	scope   types.Scope
}

func (e *engine) seedScenario(t *testing.T) scenario {
	t.Helper()
	ctx := context.Background()
	course := testutil.SeedCourse(t, ctx, e.db, "IF301")
	c1 := testutil.SeedCpmk(t, ctx, e.db, course.ID, "C1")
	l1 := testutil.SeedCpl(t, ctx, e.db, "L1")

	t1, _, err := e.registry.AddTechniqueWeight(ctx, c1.ID, "T1", dec("60"))
	require.NoError(t, err)
	t2, _, err := e.registry.AddTechniqueWeight(ctx, c1.ID, "T2", dec("40"))
	require.NoError(t, err)
	mapping, _, err := e.registry.AddCplMapping(ctx, c1.ID, l1.ID, dec("100"))
	require.NoError(t, err)

	return scenario{
		course:  course,
		c1:      c1,
		l1:      l1,
		t1:      t1,
		t2:      t2,
		mapping: mapping,
		scope:   newScope(1, "2024/2025-ganjil"),
	}
}

func (e *engine) grade(t *testing.T, scope types.Scope, techniqueID uuid.UUID, score string) *CascadeReport {
	t.Helper()
	ctx := context.Background()
	_, err := e.stores.RawScores.Upsert(dbctx.New(ctx), &types.RawScore{
		StudentID:    scope.StudentID,
		TechniqueID:  techniqueID,
		Semester:     scope.Semester,
		AcademicTerm: scope.AcademicTerm,
		Score:        dec(score),
	})
	require.NoError(t, err)
	report, err := e.coord.OnRawScoreUpserted(ctx, scope, techniqueID)
	require.NoError(t, err)
	require.Empty(t, report.Skipped)
	return report
}

func (e *engine) cpmkScore(t *testing.T, scope types.Scope, cpmkID uuid.UUID) string {
	t.Helper()
	row, err := e.coord.GetCpmkScore(context.Background(), scope, cpmkID)
	require.NoError(t, err)
	return row.Score.StringFixed(2)
}

func (e *engine) cplScore(t *testing.T, scope types.Scope, cplID, courseID uuid.UUID) string {
	t.Helper()
	row, err := e.coord.GetCplScore(context.Background(), scope, cplID, courseID)
	require.NoError(t, err)
	return row.Score.StringFixed(2)
}

func newScope(semester int, term string) types.Scope {
	return types.Scope{StudentID: uuid.New(), Semester: semester, AcademicTerm: term}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func rawScore(scope types.Scope, techniqueID uuid.UUID, score string) *types.RawScore {
	return &types.RawScore{
		StudentID:    scope.StudentID,
		TechniqueID:  techniqueID,
		Semester:     scope.Semester,
		AcademicTerm: scope.AcademicTerm,
		Score:        dec(score),
	}
}
