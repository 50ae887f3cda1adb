package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/yungbote/obe-backend/internal/data/repos"
	types "github.com/yungbote/obe-backend/internal/domain"
	"github.com/yungbote/obe-backend/internal/grading"
	"github.com/yungbote/obe-backend/internal/pkg/ctxutil"
	"github.com/yungbote/obe-backend/internal/pkg/dbctx"
	"github.com/yungbote/obe-backend/internal/pkg/logger"
)

type RawScoreKey struct {
	StudentID    uuid.UUID `json:"student_id" validate:"required"`
	TechniqueID  uuid.UUID `json:"technique_id" validate:"required"`
	Semester     int       `json:"semester" validate:"gte=1,lte=14"`
	AcademicTerm string    `json:"academic_term" validate:"required,max=32"`
}

func (k RawScoreKey) Scope() types.Scope {
	return types.Scope{StudentID: k.StudentID, Semester: k.Semester, AcademicTerm: k.AcademicTerm}
}

type UpsertRawScoreInput struct {
	RawScoreKey
	Score decimal.NullDecimal `json:"score"`
}

// RawScoreResult pairs the write with the synchronous cascade it caused.
type RawScoreResult struct {
	RawScore *types.RawScore        `json:"raw_score,omitempty"`
	Report   *grading.CascadeReport `json:"report,omitempty"`
}

// RawScoreService records grading actions. A raw score touches one CPMK, so
// its cascade runs inside the request.
type RawScoreService interface {
	Upsert(ctx context.Context, in UpsertRawScoreInput) (*RawScoreResult, error)
	Delete(ctx context.Context, key RawScoreKey) (*RawScoreResult, error)
}

type rawScoreService struct {
	log        *logger.Logger
	techniques repos.TechniqueRepo
	rawScores  repos.RawScoreRepo
	coord      *grading.Coordinator
}

func NewRawScoreService(baseLog *logger.Logger, techniques repos.TechniqueRepo, rawScores repos.RawScoreRepo, coord *grading.Coordinator) RawScoreService {
	return &rawScoreService{
		log:        baseLog.With("service", "RawScoreService"),
		techniques: techniques,
		rawScores:  rawScores,
		coord:      coord,
	}
}

func (s *rawScoreService) Upsert(ctx context.Context, in UpsertRawScoreInput) (*RawScoreResult, error) {
	in.AcademicTerm = normalizeTerm(in.AcademicTerm)
	if err := validateInput(in); err != nil {
		return nil, err
	}
	score, err := grading.RequireScore(in.Score)
	if err != nil {
		return nil, err
	}
	dbc := dbctx.New(ctx)
	if err := s.requireTechnique(dbc, in.TechniqueID); err != nil {
		return nil, err
	}
	row, err := s.rawScores.Upsert(dbc, &types.RawScore{
		ID:           uuid.New(),
		StudentID:    in.StudentID,
		TechniqueID:  in.TechniqueID,
		Semester:     in.Semester,
		AcademicTerm: in.AcademicTerm,
		Score:        score,
		GradedBy:     ctxutil.Actor(ctx),
	})
	if err != nil {
		return nil, fmt.Errorf("upsert raw score: %w", err)
	}
	s.log.Debug("Raw score recorded", "student_id", in.StudentID, "technique_id", in.TechniqueID, "score", score.String())

	report, err := s.coord.OnRawScoreUpserted(ctx, in.Scope(), in.TechniqueID)
	if err != nil {
		s.log.Warn("Cascade after raw score failed", "technique_id", in.TechniqueID, "error", err)
	}
	return &RawScoreResult{RawScore: row, Report: report}, nil
}

func (s *rawScoreService) Delete(ctx context.Context, key RawScoreKey) (*RawScoreResult, error) {
	key.AcademicTerm = normalizeTerm(key.AcademicTerm)
	if err := validateInput(key); err != nil {
		return nil, err
	}
	dbc := dbctx.New(ctx)
	if err := s.requireTechnique(dbc, key.TechniqueID); err != nil {
		return nil, err
	}
	deleted, err := s.rawScores.Delete(dbc, key.Scope(), key.TechniqueID)
	if err != nil {
		return nil, fmt.Errorf("delete raw score: %w", err)
	}
	if !deleted {
		return nil, grading.ErrRawScoreNotFound
	}

	report, err := s.coord.OnRawScoreDeleted(ctx, key.Scope(), key.TechniqueID)
	if err != nil {
		s.log.Warn("Cascade after raw score delete failed", "technique_id", key.TechniqueID, "error", err)
	}
	return &RawScoreResult{Report: report}, nil
}

func (s *rawScoreService) requireTechnique(dbc dbctx.Context, techniqueID uuid.UUID) error {
	tech, err := s.techniques.GetByID(dbc, techniqueID)
	if err != nil {
		return err
	}
	if tech == nil {
		return grading.ErrTechniqueNotFound
	}
	return nil
}
