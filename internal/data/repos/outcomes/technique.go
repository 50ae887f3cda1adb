package outcomes

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	types "github.com/yungbote/obe-backend/internal/domain"
	"github.com/yungbote/obe-backend/internal/pkg/dbctx"
	"github.com/yungbote/obe-backend/internal/pkg/logger"
)

type TechniqueRepo interface {
	Create(dbc dbctx.Context, technique *types.AssessmentTechnique) (*types.AssessmentTechnique, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.AssessmentTechnique, error)
	ListByCpmkID(dbc dbctx.Context, cpmkID uuid.UUID) ([]*types.AssessmentTechnique, error)
	ListByCpmkIDs(dbc dbctx.Context, cpmkIDs []uuid.UUID) ([]*types.AssessmentTechnique, error)
	UpdateWeight(dbc dbctx.Context, id uuid.UUID, weight decimal.Decimal) error
	Delete(dbc dbctx.Context, id uuid.UUID) error
}

type techniqueRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTechniqueRepo(db *gorm.DB, baseLog *logger.Logger) TechniqueRepo {
	return &techniqueRepo{
		db:  db,
		log: baseLog.With("repo", "TechniqueRepo"),
	}
}

func (r *techniqueRepo) Create(dbc dbctx.Context, technique *types.AssessmentTechnique) (*types.AssessmentTechnique, error) {
	t := dbc.Conn(r.db)
	if technique.ID == uuid.Nil {
		technique.ID = uuid.New()
	}
	if err := t.Create(technique).Error; err != nil {
		return nil, err
	}
	return technique, nil
}

func (r *techniqueRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.AssessmentTechnique, error) {
	t := dbc.Conn(r.db)
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.AssessmentTechnique
	if err := t.Where("id = ?", id).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *techniqueRepo) ListByCpmkID(dbc dbctx.Context, cpmkID uuid.UUID) ([]*types.AssessmentTechnique, error) {
	return r.ListByCpmkIDs(dbc, []uuid.UUID{cpmkID})
}

func (r *techniqueRepo) ListByCpmkIDs(dbc dbctx.Context, cpmkIDs []uuid.UUID) ([]*types.AssessmentTechnique, error) {
	t := dbc.Conn(r.db)
	var out []*types.AssessmentTechnique
	if len(cpmkIDs) == 0 {
		return out, nil
	}
	if err := t.Where("cpmk_id IN ?", cpmkIDs).
		Order("created_at ASC, id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *techniqueRepo) UpdateWeight(dbc dbctx.Context, id uuid.UUID, weight decimal.Decimal) error {
	t := dbc.Conn(r.db)
	res := t.Model(&types.AssessmentTechnique{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"weight":     weight,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *techniqueRepo) Delete(dbc dbctx.Context, id uuid.UUID) error {
	t := dbc.Conn(r.db)
	res := t.Where("id = ?", id).Delete(&types.AssessmentTechnique{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
