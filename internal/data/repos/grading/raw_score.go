package grading

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/obe-backend/internal/domain"
	"github.com/yungbote/obe-backend/internal/pkg/dbctx"
	"github.com/yungbote/obe-backend/internal/pkg/logger"
)

type RawScoreRepo interface {
	Upsert(dbc dbctx.Context, row *types.RawScore) (*types.RawScore, error)
	Get(dbc dbctx.Context, scope types.Scope, techniqueID uuid.UUID) (*types.RawScore, error)
	Delete(dbc dbctx.Context, scope types.Scope, techniqueID uuid.UUID) (bool, error)
	DeleteByTechniqueID(dbc dbctx.Context, techniqueID uuid.UUID) (int64, error)
	ListForScope(dbc dbctx.Context, scope types.Scope, techniqueIDs []uuid.UUID) ([]*types.RawScore, error)
	DistinctScopesByTechniqueIDs(dbc dbctx.Context, techniqueIDs []uuid.UUID) ([]types.Scope, error)
}

type rawScoreRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRawScoreRepo(db *gorm.DB, baseLog *logger.Logger) RawScoreRepo {
	return &rawScoreRepo{
		db:  db,
		log: baseLog.With("repo", "RawScoreRepo"),
	}
}

func (r *rawScoreRepo) Upsert(dbc dbctx.Context, row *types.RawScore) (*types.RawScore, error) {
	t := dbc.Conn(r.db)
	if row == nil || row.StudentID == uuid.Nil || row.TechniqueID == uuid.Nil {
		return nil, nil
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	row.UpdatedAt = time.Now()

	err := t.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "student_id"},
			{Name: "technique_id"},
			{Name: "semester"},
			{Name: "academic_term"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"score",
			"graded_by",
			"updated_at",
		}),
	}).Create(row).Error
	if err != nil {
		return nil, err
	}
	return r.Get(dbc, row.Scope(), row.TechniqueID)
}

func (r *rawScoreRepo) Get(dbc dbctx.Context, scope types.Scope, techniqueID uuid.UUID) (*types.RawScore, error) {
	t := dbc.Conn(r.db)
	var row types.RawScore
	err := t.Where("student_id = ? AND technique_id = ? AND semester = ? AND academic_term = ?",
		scope.StudentID, techniqueID, scope.Semester, scope.AcademicTerm,
	).Limit(1).Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *rawScoreRepo) Delete(dbc dbctx.Context, scope types.Scope, techniqueID uuid.UUID) (bool, error) {
	t := dbc.Conn(r.db)
	res := t.Where("student_id = ? AND technique_id = ? AND semester = ? AND academic_term = ?",
		scope.StudentID, techniqueID, scope.Semester, scope.AcademicTerm,
	).Delete(&types.RawScore{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *rawScoreRepo) DeleteByTechniqueID(dbc dbctx.Context, techniqueID uuid.UUID) (int64, error) {
	t := dbc.Conn(r.db)
	res := t.Where("technique_id = ?", techniqueID).Delete(&types.RawScore{})
	return res.RowsAffected, res.Error
}

func (r *rawScoreRepo) ListForScope(dbc dbctx.Context, scope types.Scope, techniqueIDs []uuid.UUID) ([]*types.RawScore, error) {
	t := dbc.Conn(r.db)
	var out []*types.RawScore
	if len(techniqueIDs) == 0 {
		return out, nil
	}
	err := t.Where("student_id = ? AND semester = ? AND academic_term = ? AND technique_id IN ?",
		scope.StudentID, scope.Semester, scope.AcademicTerm, techniqueIDs,
	).Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *rawScoreRepo) DistinctScopesByTechniqueIDs(dbc dbctx.Context, techniqueIDs []uuid.UUID) ([]types.Scope, error) {
	t := dbc.Conn(r.db)
	var out []types.Scope
	if len(techniqueIDs) == 0 {
		return out, nil
	}
	err := t.Model(&types.RawScore{}).
		Distinct("student_id", "semester", "academic_term").
		Where("technique_id IN ?", techniqueIDs).
		Order("student_id ASC, semester ASC, academic_term ASC").
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
