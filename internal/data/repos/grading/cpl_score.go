package grading

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/obe-backend/internal/domain"
	"github.com/yungbote/obe-backend/internal/pkg/dbctx"
	"github.com/yungbote/obe-backend/internal/pkg/logger"
)

type CplScoreRepo interface {
	Upsert(dbc dbctx.Context, row *types.CplScore) (*types.CplScore, error)
	Get(dbc dbctx.Context, scope types.Scope, cplID, courseID uuid.UUID) (*types.CplScore, error)
	ListForStudentPeriod(dbc dbctx.Context, studentID uuid.UUID, semester *int, term string) ([]*types.CplScore, error)
}

type cplScoreRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCplScoreRepo(db *gorm.DB, baseLog *logger.Logger) CplScoreRepo {
	return &cplScoreRepo{
		db:  db,
		log: baseLog.With("repo", "CplScoreRepo"),
	}
}

func (r *cplScoreRepo) Upsert(dbc dbctx.Context, row *types.CplScore) (*types.CplScore, error) {
	t := dbc.Conn(r.db)
	if row == nil || row.StudentID == uuid.Nil || row.CplID == uuid.Nil || row.CourseID == uuid.Nil {
		return nil, nil
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	err := t.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "student_id"},
			{Name: "cpl_id"},
			{Name: "course_id"},
			{Name: "semester"},
			{Name: "academic_term"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"score",
			"weights_version",
			"computed_at",
		}),
	}).Create(row).Error
	if err != nil {
		return nil, err
	}
	return r.Get(dbc, types.Scope{
		StudentID:    row.StudentID,
		Semester:     row.Semester,
		AcademicTerm: row.AcademicTerm,
	}, row.CplID, row.CourseID)
}

func (r *cplScoreRepo) Get(dbc dbctx.Context, scope types.Scope, cplID, courseID uuid.UUID) (*types.CplScore, error) {
	t := dbc.Conn(r.db)
	var row types.CplScore
	err := t.Where("student_id = ? AND cpl_id = ? AND course_id = ? AND semester = ? AND academic_term = ?",
		scope.StudentID, cplID, courseID, scope.Semester, scope.AcademicTerm,
	).Limit(1).Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *cplScoreRepo) ListForStudentPeriod(dbc dbctx.Context, studentID uuid.UUID, semester *int, term string) ([]*types.CplScore, error) {
	t := dbc.Conn(r.db)
	var out []*types.CplScore
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
	if err := q.Order("semester ASC, academic_term ASC, course_id ASC, cpl_id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
