package testutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	types "github.com/yungbote/obe-backend/internal/domain"
)

func SeedCourse(tb testing.TB, ctx context.Context, tx *gorm.DB, code string) *types.Course {
	tb.Helper()
	c := &types.Course{
		ID:      uuid.New(),
		Code:    code + "-" + uuid.NewString()[:8],
		Name:    "Course " + code,
		Credits: 3,
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed course: %v", err)
	}
	return c
}

func SeedCpmk(tb testing.TB, ctx context.Context, tx *gorm.DB, courseID uuid.UUID, code string) *types.Cpmk {
	tb.Helper()
	c := &types.Cpmk{
		ID:       uuid.New(),
		CourseID: courseID,
		Code:     code,
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed cpmk: %v", err)
	}
	return c
}

func SeedCpl(tb testing.TB, ctx context.Context, tx *gorm.DB, code string) *types.Cpl {
	tb.Helper()
	c := &types.Cpl{
		ID:   uuid.New(),
		Code: code + "-" + uuid.NewString()[:8],
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed cpl: %v", err)
	}
	return c
}

func SeedTechnique(tb testing.TB, ctx context.Context, tx *gorm.DB, cpmkID uuid.UUID, name string, weight string) *types.AssessmentTechnique {
	tb.Helper()
	t := &types.AssessmentTechnique{
		ID:     uuid.New(),
		CpmkID: cpmkID,
		Name:   name,
		Weight: decimal.RequireFromString(weight),
	}
	if err := tx.WithContext(ctx).Create(t).Error; err != nil {
		tb.Fatalf("seed technique: %v", err)
	}
	return t
}

func SeedMapping(tb testing.TB, ctx context.Context, tx *gorm.DB, cpmkID, cplID uuid.UUID, weight string) *types.CpmkCplMapping {
	tb.Helper()
	m := &types.CpmkCplMapping{
		ID:     uuid.New(),
		CpmkID: cpmkID,
		CplID:  cplID,
		Weight: decimal.RequireFromString(weight),
	}
	if err := tx.WithContext(ctx).Create(m).Error; err != nil {
		tb.Fatalf("seed mapping: %v", err)
	}
	return m
}

func SeedRawScore(tb testing.TB, ctx context.Context, tx *gorm.DB, scope types.Scope, techniqueID uuid.UUID, score string) *types.RawScore {
	tb.Helper()
	r := &types.RawScore{
		ID:           uuid.New(),
		StudentID:    scope.StudentID,
		TechniqueID:  techniqueID,
		Semester:     scope.Semester,
		AcademicTerm: scope.AcademicTerm,
		Score:        decimal.RequireFromString(score),
	}
	if err := tx.WithContext(ctx).Create(r).Error; err != nil {
		tb.Fatalf("seed raw score: %v", err)
	}
	return r
}
