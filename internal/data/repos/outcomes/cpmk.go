package outcomes

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/obe-backend/internal/domain"
	"github.com/yungbote/obe-backend/internal/pkg/dbctx"
	"github.com/yungbote/obe-backend/internal/pkg/logger"
)

type CpmkRepo interface {
	Create(dbc dbctx.Context, cpmk *types.Cpmk) (*types.Cpmk, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Cpmk, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Cpmk, error)
	ListByCourseID(dbc dbctx.Context, courseID uuid.UUID) ([]*types.Cpmk, error)
}

type cpmkRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCpmkRepo(db *gorm.DB, baseLog *logger.Logger) CpmkRepo {
	return &cpmkRepo{
		db:  db,
		log: baseLog.With("repo", "CpmkRepo"),
	}
}

func (r *cpmkRepo) Create(dbc dbctx.Context, cpmk *types.Cpmk) (*types.Cpmk, error) {
	t := dbc.Conn(r.db)
	if cpmk.ID == uuid.Nil {
		cpmk.ID = uuid.New()
	}
	if err := t.Create(cpmk).Error; err != nil {
		return nil, err
	}
	return cpmk, nil
}

func (r *cpmkRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Cpmk, error) {
	t := dbc.Conn(r.db)
	if id == uuid.Nil {
		return nil, nil
	}
	var c types.Cpmk
	if err := t.Where("id = ?", id).Limit(1).Find(&c).Error; err != nil {
		return nil, err
	}
	if c.ID == uuid.Nil {
		return nil, nil
	}
	return &c, nil
}

func (r *cpmkRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Cpmk, error) {
	t := dbc.Conn(r.db)
	var out []*types.Cpmk
	if len(ids) == 0 {
		return out, nil
	}
	if err := t.Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *cpmkRepo) ListByCourseID(dbc dbctx.Context, courseID uuid.UUID) ([]*types.Cpmk, error) {
	t := dbc.Conn(r.db)
	var out []*types.Cpmk
	if courseID == uuid.Nil {
		return out, nil
	}
	if err := t.Where("course_id = ?", courseID).
		Order("code ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
