package grading

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	types "github.com/yungbote/obe-backend/internal/domain"
	pkgerrors "github.com/yungbote/obe-backend/internal/pkg/errors"
)

type Trigger string

const (
	TriggerRawScoreUpserted       Trigger = "raw_score_upserted"
	TriggerRawScoreDeleted        Trigger = "raw_score_deleted"
	TriggerTechniqueWeightChanged Trigger = "technique_weight_changed"
	TriggerMappingChanged         Trigger = "cpmk_cpl_mapping_changed"
	TriggerCourseRecalculate      Trigger = "course_recalculate"
)

const (
	PhaseCpmk = "cpmk"
	PhaseCpl  = "cpl"
)

// CascadeReport summarizes one cascade. Skipped computes never fail the
// mutation that triggered the cascade.
type CascadeReport struct {
	Trigger        Trigger               `json:"trigger"`
	CourseID       uuid.UUID             `json:"course_id"`
	CpmkID         *uuid.UUID            `json:"cpmk_id,omitempty"`
	CplID          *uuid.UUID            `json:"cpl_id,omitempty"`
	WeightsVersion int64                 `json:"weights_version"`
	Tuples         int                   `json:"tuples"`
	CpmkRecomputed int                   `json:"cpmk_recomputed"`
	CplRecomputed  int                   `json:"cpl_recomputed"`
	Skipped        []StaleComputeSkipped `json:"skipped"`
	StartedAt      time.Time             `json:"started_at"`
	FinishedAt     time.Time             `json:"finished_at"`
}

func (r *CascadeReport) Complete() bool { return len(r.Skipped) == 0 }

// Retryable reports whether running the same cascade again could clear a
// skip. Missing entities and rejected input stay skipped however often it
// runs, and a CPL skipped behind its CPMK follows that CPMK's verdict.
func (r *CascadeReport) Retryable() bool {
	for _, s := range r.Skipped {
		switch {
		case s.Err == nil, errors.Is(s.Err, errUpstreamCpmkFailed):
			continue
		case errors.Is(s.Err, pkgerrors.ErrNotFound), errors.Is(s.Err, pkgerrors.ErrInvalidArgument):
			continue
		}
		return true
	}
	return false
}

func (r *CascadeReport) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

// reportBuilder is shared by the goroutines of one cascade.
type reportBuilder struct {
	mu     sync.Mutex
	report *CascadeReport
}

func (b *reportBuilder) computed(phase string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch phase {
	case PhaseCpmk:
		b.report.CpmkRecomputed++
	case PhaseCpl:
		b.report.CplRecomputed++
	}
}

func (b *reportBuilder) skip(phase, key string, scope types.Scope, err error) StaleComputeSkipped {
	s := StaleComputeSkipped{
		Phase:        phase,
		Key:          key,
		StudentID:    scope.StudentID,
		Semester:     scope.Semester,
		AcademicTerm: scope.AcademicTerm,
		Reason:       err.Error(),
		Err:          err,
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.report.Skipped = append(b.report.Skipped, s)
	return s
}
