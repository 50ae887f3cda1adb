package outcomes

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/obe-backend/internal/domain"
	"github.com/yungbote/obe-backend/internal/pkg/dbctx"
	"github.com/yungbote/obe-backend/internal/pkg/logger"
)

type CplRepo interface {
	Create(dbc dbctx.Context, cpl *types.Cpl) (*types.Cpl, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Cpl, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Cpl, error)
	List(dbc dbctx.Context) ([]*types.Cpl, error)
}

type cplRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCplRepo(db *gorm.DB, baseLog *logger.Logger) CplRepo {
	return &cplRepo{
		db:  db,
		log: baseLog.With("repo", "CplRepo"),
	}
}

func (r *cplRepo) Create(dbc dbctx.Context, cpl *types.Cpl) (*types.Cpl, error) {
	t := dbc.Conn(r.db)
	if cpl.ID == uuid.Nil {
		cpl.ID = uuid.New()
	}
	if err := t.Create(cpl).Error; err != nil {
		return nil, err
	}
	return cpl, nil
}

func (r *cplRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Cpl, error) {
	t := dbc.Conn(r.db)
	if id == uuid.Nil {
		return nil, nil
	}
	var c types.Cpl
	if err := t.Where("id = ?", id).Limit(1).Find(&c).Error; err != nil {
		return nil, err
	}
	if c.ID == uuid.Nil {
		return nil, nil
	}
	return &c, nil
}

func (r *cplRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Cpl, error) {
	t := dbc.Conn(r.db)
	var out []*types.Cpl
	if len(ids) == 0 {
		return out, nil
	}
	if err := t.Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *cplRepo) List(dbc dbctx.Context) ([]*types.Cpl, error) {
	t := dbc.Conn(r.db)
	var out []*types.Cpl
	if err := t.Order("code ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
