package grading

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/yungbote/obe-backend/internal/pkg/errors"
)

var (
	ErrCourseNotFound    = fmt.Errorf("course %w", pkgerrors.ErrNotFound)
	ErrCpmkNotFound      = fmt.Errorf("cpmk %w", pkgerrors.ErrNotFound)
	ErrCplNotFound       = fmt.Errorf("cpl %w", pkgerrors.ErrNotFound)
	ErrTechniqueNotFound = fmt.Errorf("assessment technique %w", pkgerrors.ErrNotFound)
	ErrMappingNotFound   = fmt.Errorf("cpmk-cpl mapping %w", pkgerrors.ErrNotFound)
	ErrRawScoreNotFound  = fmt.Errorf("raw score %w", pkgerrors.ErrNotFound)
	ErrScoreNotFound     = fmt.Errorf("computed score %w", pkgerrors.ErrNotFound)

	ErrMappingExists = fmt.Errorf("cpmk-cpl mapping already exists: %w", pkgerrors.ErrConflict)

	ErrInvalidWeight = fmt.Errorf("weight must be within 0..100 with at most 2 decimals: %w", pkgerrors.ErrInvalidArgument)
	ErrInvalidScore  = fmt.Errorf("score must be within 0..100 with at most 2 decimals: %w", pkgerrors.ErrInvalidArgument)

	// ErrSnapshotSuperseded means a row already carries a newer weights
	// version than the snapshot being applied.
	ErrSnapshotSuperseded = errors.New("weight snapshot superseded by a newer version")
)

// WeightOverflowError is returned when a mutation would push the weight sum
// of one CPMK above 100. Nothing is written when it is returned.
type WeightOverflowError struct {
	CpmkID       uuid.UUID
	Kind         string
	CurrentTotal decimal.Decimal
	Requested    decimal.Decimal
}

func (e *WeightOverflowError) Error() string {
	return fmt.Sprintf(
		"weight overflow on cpmk %s: %s total is %s, adding %s exceeds %s",
		e.CpmkID, e.Kind, e.CurrentTotal.StringFixed(2), e.Requested.StringFixed(2), Hundred.StringFixed(0),
	)
}

func (e *WeightOverflowError) Unwrap() error { return pkgerrors.ErrValidation }

// Limit is the budget every per-CPMK weight sum is checked against.
func (e *WeightOverflowError) Limit() decimal.Decimal { return Hundred }

// StaleComputeSkipped records one compute inside a cascade that did not
// complete. The cascade carries on; the row keeps its previous value.
type StaleComputeSkipped struct {
	Phase        string    `json:"phase"`
	Key          string    `json:"key"`
	StudentID    uuid.UUID `json:"student_id"`
	Semester     int       `json:"semester"`
	AcademicTerm string    `json:"academic_term"`
	Reason       string    `json:"reason"`
	Err          error     `json:"-"`
}

func (e *StaleComputeSkipped) Error() string {
	return fmt.Sprintf("stale compute skipped (%s %s): %s", e.Phase, e.Key, e.Reason)
}

func (e *StaleComputeSkipped) Unwrap() error { return e.Err }
