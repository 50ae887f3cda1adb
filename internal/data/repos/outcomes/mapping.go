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

type MappingRepo interface {
	Create(dbc dbctx.Context, rows []*types.CpmkCplMapping) ([]*types.CpmkCplMapping, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.CpmkCplMapping, error)
	GetByCpmkAndCpl(dbc dbctx.Context, cpmkID, cplID uuid.UUID) (*types.CpmkCplMapping, error)
	ListByCpmkIDs(dbc dbctx.Context, cpmkIDs []uuid.UUID) ([]*types.CpmkCplMapping, error)
	ListByCplID(dbc dbctx.Context, cplID uuid.UUID) ([]*types.CpmkCplMapping, error)
	UpdateWeight(dbc dbctx.Context, id uuid.UUID, weight decimal.Decimal) error
	Delete(dbc dbctx.Context, id uuid.UUID) error
}

type mappingRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMappingRepo(db *gorm.DB, baseLog *logger.Logger) MappingRepo {
	return &mappingRepo{
		db:  db,
		log: baseLog.With("repo", "MappingRepo"),
	}
}

func (r *mappingRepo) Create(dbc dbctx.Context, rows []*types.CpmkCplMapping) ([]*types.CpmkCplMapping, error) {
	t := dbc.Conn(r.db)
	if len(rows) == 0 {
		return []*types.CpmkCplMapping{}, nil
	}
	for _, m := range rows {
		if m.ID == uuid.Nil {
			m.ID = uuid.New()
		}
	}
	if err := t.Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *mappingRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.CpmkCplMapping, error) {
	t := dbc.Conn(r.db)
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.CpmkCplMapping
	if err := t.Where("id = ?", id).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *mappingRepo) GetByCpmkAndCpl(dbc dbctx.Context, cpmkID, cplID uuid.UUID) (*types.CpmkCplMapping, error) {
	t := dbc.Conn(r.db)
	var row types.CpmkCplMapping
	if err := t.Where("cpmk_id = ? AND cpl_id = ?", cpmkID, cplID).
		Limit(1).
		Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *mappingRepo) ListByCpmkIDs(dbc dbctx.Context, cpmkIDs []uuid.UUID) ([]*types.CpmkCplMapping, error) {
	t := dbc.Conn(r.db)
	var out []*types.CpmkCplMapping
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

func (r *mappingRepo) ListByCplID(dbc dbctx.Context, cplID uuid.UUID) ([]*types.CpmkCplMapping, error) {
	t := dbc.Conn(r.db)
	var out []*types.CpmkCplMapping
	if cplID == uuid.Nil {
		return out, nil
	}
	if err := t.Where("cpl_id = ?", cplID).
		Order("created_at ASC, id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *mappingRepo) UpdateWeight(dbc dbctx.Context, id uuid.UUID, weight decimal.Decimal) error {
	t := dbc.Conn(r.db)
	res := t.Model(&types.CpmkCplMapping{}).
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

func (r *mappingRepo) Delete(dbc dbctx.Context, id uuid.UUID) error {
	t := dbc.Conn(r.db)
	res := t.Where("id = ?", id).Delete(&types.CpmkCplMapping{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
