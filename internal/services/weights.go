package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	types "github.com/yungbote/obe-backend/internal/domain"
	"github.com/yungbote/obe-backend/internal/grading"
	"github.com/yungbote/obe-backend/internal/pkg/logger"
)

type AddTechniqueInput struct {
	Name   string              `json:"name" validate:"required,max=255"`
	Weight decimal.NullDecimal `json:"weight"`
}

type AddMappingInput struct {
	CplID  uuid.UUID           `json:"cpl_id" validate:"required"`
	Weight decimal.NullDecimal `json:"weight"`
}

// WeightResult is what every weight-side mutation returns: the committed
// change and the recalculation it started.
type WeightResult struct {
	Technique *types.AssessmentTechnique `json:"technique,omitempty"`
	Mapping   *types.CpmkCplMapping      `json:"mapping,omitempty"`
	Mappings  []*types.CpmkCplMapping    `json:"mappings,omitempty"`
	Changes   []grading.WeightChange     `json:"changes"`
	Recalc    []*RecalcOutcome           `json:"recalculations"`
}

type WeightService interface {
	AddTechnique(ctx context.Context, cpmkID uuid.UUID, in AddTechniqueInput) (*WeightResult, error)
	UpdateTechnique(ctx context.Context, techniqueID uuid.UUID, weight decimal.Decimal) (*WeightResult, error)
	RemoveTechnique(ctx context.Context, techniqueID uuid.UUID) (*WeightResult, error)
	AddMapping(ctx context.Context, cpmkID uuid.UUID, in AddMappingInput) (*WeightResult, error)
	AddMappingsBatch(ctx context.Context, inputs []grading.MappingInput) (*WeightResult, error)
	UpdateMapping(ctx context.Context, mappingID uuid.UUID, weight decimal.Decimal) (*WeightResult, error)
	RemoveMapping(ctx context.Context, mappingID uuid.UUID) (*WeightResult, error)
	CpmkWeights(ctx context.Context, cpmkID uuid.UUID) (*CpmkWeightsView, error)
	RecalculateCourse(ctx context.Context, courseID uuid.UUID) (*RecalcOutcome, error)
}

// CpmkWeightsView is the read model behind GET /cpmks/:id/weights.
type CpmkWeightsView struct {
	grading.CpmkWeights
	TechniqueTotal decimal.Decimal `json:"technique_total"`
	MappingTotal   decimal.Decimal `json:"mapping_total"`
	Limit          decimal.Decimal `json:"limit"`
}

type weightService struct {
	log      *logger.Logger
	registry *grading.Registry
	recalc   RecalcDispatcher
	outcomes OutcomeService
}

func NewWeightService(baseLog *logger.Logger, registry *grading.Registry, recalc RecalcDispatcher, outcomes OutcomeService) WeightService {
	return &weightService{
		log:      baseLog.With("service", "WeightService"),
		registry: registry,
		recalc:   recalc,
		outcomes: outcomes,
	}
}

func (s *weightService) AddTechnique(ctx context.Context, cpmkID uuid.UUID, in AddTechniqueInput) (*WeightResult, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validateInput(in); err != nil {
		return nil, err
	}
	weight, err := grading.RequireWeight(in.Weight)
	if err != nil {
		return nil, err
	}
	tech, change, err := s.registry.AddTechniqueWeight(ctx, cpmkID, in.Name, weight)
	if err != nil {
		return nil, err
	}
	res := &WeightResult{Technique: tech, Changes: []grading.WeightChange{change}}
	s.cascade(ctx, res, grading.TechniqueCascade(change))
	return res, nil
}

func (s *weightService) UpdateTechnique(ctx context.Context, techniqueID uuid.UUID, weight decimal.Decimal) (*WeightResult, error) {
	change, err := s.registry.UpdateTechniqueWeight(ctx, techniqueID, weight)
	if err != nil {
		return nil, err
	}
	res := &WeightResult{Changes: []grading.WeightChange{change}}
	s.cascade(ctx, res, grading.TechniqueCascade(change))
	return res, nil
}

func (s *weightService) RemoveTechnique(ctx context.Context, techniqueID uuid.UUID) (*WeightResult, error) {
	change, err := s.registry.RemoveTechnique(ctx, techniqueID)
	if err != nil {
		return nil, err
	}
	res := &WeightResult{Changes: []grading.WeightChange{change}}
	s.cascade(ctx, res, grading.TechniqueCascade(change))
	return res, nil
}

func (s *weightService) AddMapping(ctx context.Context, cpmkID uuid.UUID, in AddMappingInput) (*WeightResult, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	weight, err := grading.RequireWeight(in.Weight)
	if err != nil {
		return nil, err
	}
	m, change, err := s.registry.AddCplMapping(ctx, cpmkID, in.CplID, weight)
	if err != nil {
		return nil, err
	}
	res := &WeightResult{Mapping: m, Changes: []grading.WeightChange{change}}
	s.cascade(ctx, res, grading.MappingCascade(change))
	return res, nil
}

func (s *weightService) AddMappingsBatch(ctx context.Context, inputs []grading.MappingInput) (*WeightResult, error) {
	for _, in := range inputs {
		if err := validateInput(in); err != nil {
			return nil, err
		}
	}
	rows, changes, err := s.registry.AddCplMappingsBatch(ctx, inputs)
	if err != nil {
		return nil, err
	}
	res := &WeightResult{Mappings: rows, Changes: changes}
	for _, change := range changes {
		s.cascade(ctx, res, grading.MappingCascade(change))
	}
	return res, nil
}

func (s *weightService) UpdateMapping(ctx context.Context, mappingID uuid.UUID, weight decimal.Decimal) (*WeightResult, error) {
	change, err := s.registry.UpdateCplMapping(ctx, mappingID, weight)
	if err != nil {
		return nil, err
	}
	res := &WeightResult{Changes: []grading.WeightChange{change}}
	s.cascade(ctx, res, grading.MappingCascade(change))
	return res, nil
}

func (s *weightService) RemoveMapping(ctx context.Context, mappingID uuid.UUID) (*WeightResult, error) {
	change, err := s.registry.RemoveCplMapping(ctx, mappingID)
	if err != nil {
		return nil, err
	}
	res := &WeightResult{Changes: []grading.WeightChange{change}}
	s.cascade(ctx, res, grading.MappingCascade(change))
	return res, nil
}

func (s *weightService) CpmkWeights(ctx context.Context, cpmkID uuid.UUID) (*CpmkWeightsView, error) {
	w, err := s.registry.CpmkWeights(ctx, cpmkID)
	if err != nil {
		return nil, err
	}
	return &CpmkWeightsView{
		CpmkWeights:    w,
		TechniqueTotal: w.TechniqueTotal(),
		MappingTotal:   w.MappingTotal(),
		Limit:          grading.Hundred,
	}, nil
}

func (s *weightService) RecalculateCourse(ctx context.Context, courseID uuid.UUID) (*RecalcOutcome, error) {
	if _, err := s.outcomes.GetCourse(ctx, courseID); err != nil {
		return nil, err
	}
	return s.recalc.Dispatch(ctx, grading.CourseCascade(courseID))
}

// cascade runs after the mutation has committed, so its failure is logged
// and reported but never returned.
func (s *weightService) cascade(ctx context.Context, res *WeightResult, req grading.CascadeRequest) {
	out, err := s.recalc.Dispatch(ctx, req)
	if err != nil {
		s.log.Warn("Recalculation not started", "kind", req.Kind, "cpmk_id", req.CpmkID, "cpl_id", req.CplID, "error", err)
		return
	}
	for _, prev := range res.Recalc {
		if prev.Job != nil && out.Job != nil && prev.Job.ID == out.Job.ID {
			return
		}
	}
	res.Recalc = append(res.Recalc, out)
}
