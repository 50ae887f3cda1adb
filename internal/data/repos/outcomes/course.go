package outcomes

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/obe-backend/internal/domain"
	"github.com/yungbote/obe-backend/internal/pkg/dbctx"
	"github.com/yungbote/obe-backend/internal/pkg/logger"
)

type CourseRepo interface {
	Create(dbc dbctx.Context, course *types.Course) (*types.Course, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Course, error)
	List(dbc dbctx.Context) ([]*types.Course, error)
	// BumpWeightsVersion increments weights_version and returns the new value.
	// Inside a postgres transaction the UPDATE holds the course row lock until
	// commit, which serializes concurrent weight edits of one course.
	BumpWeightsVersion(dbc dbctx.Context, id uuid.UUID) (int64, error)
}

type courseRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCourseRepo(db *gorm.DB, baseLog *logger.Logger) CourseRepo {
	return &courseRepo{
		db:  db,
		log: baseLog.With("repo", "CourseRepo"),
	}
}

func (r *courseRepo) Create(dbc dbctx.Context, course *types.Course) (*types.Course, error) {
	t := dbc.Conn(r.db)
	if course.ID == uuid.Nil {
		course.ID = uuid.New()
	}
	if err := t.Create(course).Error; err != nil {
		return nil, err
	}
	return course, nil
}

func (r *courseRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Course, error) {
	t := dbc.Conn(r.db)
	if id == uuid.Nil {
		return nil, nil
	}
	var c types.Course
	if err := t.Where("id = ?", id).Limit(1).Find(&c).Error; err != nil {
		return nil, err
	}
	if c.ID == uuid.Nil {
		return nil, nil
	}
	return &c, nil
}

func (r *courseRepo) List(dbc dbctx.Context) ([]*types.Course, error) {
	t := dbc.Conn(r.db)
	var out []*types.Course
	if err := t.Order("code ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *courseRepo) BumpWeightsVersion(dbc dbctx.Context, id uuid.UUID) (int64, error) {
	t := dbc.Conn(r.db)
	res := t.Model(&types.Course{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"weights_version": gorm.Expr("weights_version + 1"),
			"updated_at":      time.Now(),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, gorm.ErrRecordNotFound
	}
	var version int64
	if err := t.Model(&types.Course{}).
		Where("id = ?", id).
		Pluck("weights_version", &version).Error; err != nil {
		return 0, err
	}
	return version, nil
}
