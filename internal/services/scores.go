package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/yungbote/obe-backend/internal/data/repos"
	types "github.com/yungbote/obe-backend/internal/domain"
	"github.com/yungbote/obe-backend/internal/grading"
	"github.com/yungbote/obe-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/obe-backend/internal/pkg/errors"
)

// StudentScores lists every computed score of a student, optionally narrowed
// to one semester or term.
type StudentScores struct {
	StudentID  uuid.UUID          `json:"student_id"`
	CpmkScores []*types.CpmkScore `json:"cpmk_scores"`
	CplScores  []*types.CplScore  `json:"cpl_scores"`
}

// ScoreService only reads; the aggregators own every computed row.
type ScoreService interface {
	GetCpmkScore(ctx context.Context, scope types.Scope, cpmkID uuid.UUID) (*types.CpmkScore, error)
	GetCplScore(ctx context.Context, scope types.Scope, cplID, courseID uuid.UUID) (*types.CplScore, error)
	ListStudentScores(ctx context.Context, studentID uuid.UUID, semester *int, term string) (*StudentScores, error)
}

type scoreService struct {
	coord      *grading.Coordinator
	cpmkScores repos.CpmkScoreRepo
	cplScores  repos.CplScoreRepo
}

func NewScoreService(coord *grading.Coordinator, cpmkScores repos.CpmkScoreRepo, cplScores repos.CplScoreRepo) ScoreService {
	return &scoreService{coord: coord, cpmkScores: cpmkScores, cplScores: cplScores}
}

func (s *scoreService) GetCpmkScore(ctx context.Context, scope types.Scope, cpmkID uuid.UUID) (*types.CpmkScore, error) {
	if err := validScope(scope); err != nil {
		return nil, err
	}
	return s.coord.GetCpmkScore(ctx, scope, cpmkID)
}

func (s *scoreService) GetCplScore(ctx context.Context, scope types.Scope, cplID, courseID uuid.UUID) (*types.CplScore, error) {
	if err := validScope(scope); err != nil {
		return nil, err
	}
	if courseID == uuid.Nil {
		return nil, fmt.Errorf("%w: course_id is required", pkgerrors.ErrInvalidArgument)
	}
	return s.coord.GetCplScore(ctx, scope, cplID, courseID)
}

func (s *scoreService) ListStudentScores(ctx context.Context, studentID uuid.UUID, semester *int, term string) (*StudentScores, error) {
	if studentID == uuid.Nil {
		return nil, fmt.Errorf("%w: student_id is required", pkgerrors.ErrInvalidArgument)
	}
	dbc := dbctx.New(ctx)
	term = normalizeTerm(term)
	cpmk, err := s.cpmkScores.ListForStudentPeriod(dbc, studentID, semester, term)
	if err != nil {
		return nil, err
	}
	cpl, err := s.cplScores.ListForStudentPeriod(dbc, studentID, semester, term)
	if err != nil {
		return nil, err
	}
	return &StudentScores{StudentID: studentID, CpmkScores: cpmk, CplScores: cpl}, nil
}

func validScope(scope types.Scope) error {
	if scope.StudentID == uuid.Nil {
		return fmt.Errorf("%w: student_id is required", pkgerrors.ErrInvalidArgument)
	}
	if scope.Semester < 1 {
		return fmt.Errorf("%w: semester must be positive", pkgerrors.ErrInvalidArgument)
	}
	if normalizeTerm(scope.AcademicTerm) == "" {
		return fmt.Errorf("%w: academic_term is required", pkgerrors.ErrInvalidArgument)
	}
	return nil
}
