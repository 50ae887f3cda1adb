package grading

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/obe-backend/internal/domain"
	"github.com/yungbote/obe-backend/internal/pkg/dbctx"
	"github.com/yungbote/obe-backend/internal/pkg/logger"
)

type CpmkScoreRepo interface {
	Upsert(dbc dbctx.Context, row *types.CpmkScore) (*types.CpmkScore, error)
	Get(dbc dbctx.Context, scope types.Scope, cpmkID uuid.UUID) (*types.CpmkScore, error)
	ListForScope(dbc dbctx.Context, scope types.Scope, cpmkIDs []uuid.UUID) ([]*types.CpmkScore, error)
	ListForStudentPeriod(dbc dbctx.Context, studentID uuid.UUID, semester *int, term string) ([]*types.CpmkScore, error)
	DistinctScopesByCpmkIDs(dbc dbctx.Context, cpmkIDs []uuid.UUID) ([]types.Scope, error)
}

type cpmkScoreRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCpmkScoreRepo(db *gorm.DB, baseLog *logger.Logger) CpmkScoreRepo {
	return &cpmkScoreRepo{
		db:  db,
		log: baseLog.With("repo", "CpmkScoreRepo"),
	}
}

// Upsert overwrites the row for the (student, cpmk, semester, term) key.
func (r *cpmkScoreRepo) Upsert(dbc dbctx.Context, row *types.CpmkScore) (*types.CpmkScore, error) {
	t := dbc.Conn(r.db)
	if row == nil || row.StudentID == uuid.Nil || row.CpmkID == uuid.Nil {
		return nil, nil
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	err := t.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "student_id"},
			{Name: "cpmk_id"},
			{Name: "semester"},
			{Name: "academic_term"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"course_id",
			"score",
			"weights_version",
			"computed_at",
		}),
	}).Create(row).Error
	if err != nil {
		return nil, err
	}
	return r.Get(dbc, row.Scope(), row.CpmkID)
}

func (r *cpmkScoreRepo) Get(dbc dbctx.Context, scope types.Scope, cpmkID uuid.UUID) (*types.CpmkScore, error) {
	t := dbc.Conn(r.db)
	var row types.CpmkScore
	err := t.Where("student_id = ? AND cpmk_id = ? AND semester = ? AND academic_term = ?",
		scope.StudentID, cpmkID, scope.Semester, scope.AcademicTerm,
	).Limit(1).Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *cpmkScoreRepo) ListForScope(dbc dbctx.Context, scope types.Scope, cpmkIDs []uuid.UUID) ([]*types.CpmkScore, error) {
	t := dbc.Conn(r.db)
	var out []*types.CpmkScore
	if len(cpmkIDs) == 0 {
		return out, nil
	}
	err := t.Where("student_id = ? AND semester = ? AND academic_term = ? AND cpmk_id IN ?",
		scope.StudentID, scope.Semester, scope.AcademicTerm, cpmkIDs,
	).Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListForStudentPeriod filters by semester only when one is given; an empty
// term matches every term.
func (r *cpmkScoreRepo) ListForStudentPeriod(dbc dbctx.Context, studentID uuid.UUID, semester *int, term string) ([]*types.CpmkScore, error) {
	t := dbc.Conn(r.db)
	var out []*types.CpmkScore
	if studentID == uuid.Nil {
		return out, nil
	}
	q := t.Where("student_id = ?", studentID)
	if semester != nil {
		q = q.Where("semester = ?", *semester)
	}
	if term != "" {
		q = q.Where("academic_term = ?", term)
	}
	if err := q.Order("semester ASC, academic_term ASC, cpmk_id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *cpmkScoreRepo) DistinctScopesByCpmkIDs(dbc dbctx.Context, cpmkIDs []uuid.UUID) ([]types.Scope, error) {
	t := dbc.Conn(r.db)
	var out []types.Scope
	if len(cpmkIDs) == 0 {
		return out, nil
	}
	err := t.Model(&types.CpmkScore{}).
		Distinct("student_id", "semester", "academic_term").
		Where("cpmk_id IN ?", cpmkIDs).
		Order("student_id ASC, semester ASC, academic_term ASC").
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
