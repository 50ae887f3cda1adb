package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/obe-backend/internal/data/db"
	"github.com/yungbote/obe-backend/internal/data/repos"
	types "github.com/yungbote/obe-backend/internal/domain"
	"github.com/yungbote/obe-backend/internal/grading"
	"github.com/yungbote/obe-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/obe-backend/internal/pkg/errors"
	"github.com/yungbote/obe-backend/internal/pkg/logger"
)

type CreateCourseInput struct {
	Code    string `json:"code" validate:"required,max=32"`
	Name    string `json:"name" validate:"required,max=255"`
	Credits int    `json:"credits" validate:"gte=0,lte=24"`
}

type CreateCpmkInput struct {
	Code        string `json:"code" validate:"required,max=32"`
	Description string `json:"description" validate:"max=2000"`
}

type CreateCplInput struct {
	Code        string `json:"code" validate:"required,max=32"`
	Description string `json:"description" validate:"max=2000"`
}

type CourseDetail struct {
	*types.Course
	Cpmks []*types.Cpmk `json:"cpmks"`
}

// OutcomeService manages the catalogue: courses, their CPMKs and the
// program's CPLs. Weights live in WeightService.
type OutcomeService interface {
	CreateCourse(ctx context.Context, in CreateCourseInput) (*types.Course, error)
	GetCourse(ctx context.Context, courseID uuid.UUID) (*CourseDetail, error)
	ListCourses(ctx context.Context) ([]*types.Course, error)
	CreateCpmk(ctx context.Context, courseID uuid.UUID, in CreateCpmkInput) (*types.Cpmk, error)
	CreateCpl(ctx context.Context, in CreateCplInput) (*types.Cpl, error)
	ListCpls(ctx context.Context) ([]*types.Cpl, error)
}

type outcomeService struct {
	db      *gorm.DB
	log     *logger.Logger
	courses repos.CourseRepo
	cpmks   repos.CpmkRepo
	cpls    repos.CplRepo
}

func NewOutcomeService(db *gorm.DB, baseLog *logger.Logger, courses repos.CourseRepo, cpmks repos.CpmkRepo, cpls repos.CplRepo) OutcomeService {
	return &outcomeService{
		db:      db,
		log:     baseLog.With("service", "OutcomeService"),
		courses: courses,
		cpmks:   cpmks,
		cpls:    cpls,
	}
}

func (s *outcomeService) CreateCourse(ctx context.Context, in CreateCourseInput) (*types.Course, error) {
	in.Code = strings.TrimSpace(in.Code)
	in.Name = strings.TrimSpace(in.Name)
	if err := validateInput(in); err != nil {
		return nil, err
	}
	course, err := s.courses.Create(dbctx.New(ctx), &types.Course{
		ID:      uuid.New(),
		Code:    in.Code,
		Name:    in.Name,
		Credits: in.Credits,
	})
	if err != nil {
		return nil, conflictOr(err, "course code %q already exists", in.Code)
	}
	s.log.Info("Course created", "course_id", course.ID, "code", course.Code)
	return course, nil
}

func (s *outcomeService) GetCourse(ctx context.Context, courseID uuid.UUID) (*CourseDetail, error) {
	dbc := dbctx.New(ctx)
	course, err := s.courses.GetByID(dbc, courseID)
	if err != nil {
		return nil, err
	}
	if course == nil {
		return nil, grading.ErrCourseNotFound
	}
	cpmks, err := s.cpmks.ListByCourseID(dbc, courseID)
	if err != nil {
		return nil, err
	}
	return &CourseDetail{Course: course, Cpmks: cpmks}, nil
}

func (s *outcomeService) ListCourses(ctx context.Context) ([]*types.Course, error) {
	return s.courses.List(dbctx.New(ctx))
}

func (s *outcomeService) CreateCpmk(ctx context.Context, courseID uuid.UUID, in CreateCpmkInput) (*types.Cpmk, error) {
	in.Code = strings.TrimSpace(in.Code)
	if err := validateInput(in); err != nil {
		return nil, err
	}
	dbc := dbctx.New(ctx)
	course, err := s.courses.GetByID(dbc, courseID)
	if err != nil {
		return nil, err
	}
	if course == nil {
		return nil, grading.ErrCourseNotFound
	}
	cpmk, err := s.cpmks.Create(dbc, &types.Cpmk{
		ID:          uuid.New(),
		CourseID:    courseID,
		Code:        in.Code,
		Description: in.Description,
	})
	if err != nil {
		return nil, conflictOr(err, "cpmk code %q already exists in course", in.Code)
	}
	s.log.Info("Cpmk created", "cpmk_id", cpmk.ID, "course_id", courseID, "code", cpmk.Code)
	return cpmk, nil
}

func (s *outcomeService) CreateCpl(ctx context.Context, in CreateCplInput) (*types.Cpl, error) {
	in.Code = strings.TrimSpace(in.Code)
	if err := validateInput(in); err != nil {
		return nil, err
	}
	cpl, err := s.cpls.Create(dbctx.New(ctx), &types.Cpl{
		ID:          uuid.New(),
		Code:        in.Code,
		Description: in.Description,
	})
	if err != nil {
		return nil, conflictOr(err, "cpl code %q already exists", in.Code)
	}
	s.log.Info("Cpl created", "cpl_id", cpl.ID, "code", cpl.Code)
	return cpl, nil
}

func (s *outcomeService) ListCpls(ctx context.Context) ([]*types.Cpl, error) {
	return s.cpls.List(dbctx.New(ctx))
}

func conflictOr(err error, format string, args ...any) error {
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), pkgerrors.ErrConflict)
	}
	return err
}
