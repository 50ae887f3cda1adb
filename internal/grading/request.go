package grading

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	pkgerrors "github.com/yungbote/obe-backend/internal/pkg/errors"
)

// CascadeKind selects which cascade a CascadeRequest runs.
type CascadeKind string

const (
	CascadeTechnique CascadeKind = "technique"
	CascadeMapping   CascadeKind = "mapping"
	CascadeCourse    CascadeKind = "course"
)

// CascadeRequest is the serializable form of a weight-side trigger. It is
// what a mutation hands to the job queue after it commits.
type CascadeRequest struct {
	Kind     CascadeKind `json:"kind"`
	CourseID uuid.UUID   `json:"course_id"`
	CpmkID   uuid.UUID   `json:"cpmk_id,omitempty"`
	CplID    uuid.UUID   `json:"cpl_id,omitempty"`
}

func TechniqueCascade(change WeightChange) CascadeRequest {
	return CascadeRequest{Kind: CascadeTechnique, CourseID: change.CourseID, CpmkID: change.CpmkID}
}

func MappingCascade(change WeightChange) CascadeRequest {
	return CascadeRequest{Kind: CascadeMapping, CourseID: change.CourseID, CpmkID: change.CpmkID, CplID: change.CplID}
}

func CourseCascade(courseID uuid.UUID) CascadeRequest {
	return CascadeRequest{Kind: CascadeCourse, CourseID: courseID}
}

func (r CascadeRequest) Validate() error {
	switch r.Kind {
	case CascadeTechnique:
		if r.CpmkID == uuid.Nil {
			return fmt.Errorf("%w: technique cascade needs cpmk_id", pkgerrors.ErrInvalidArgument)
		}
	case CascadeMapping:
		if r.CpmkID == uuid.Nil || r.CplID == uuid.Nil {
			return fmt.Errorf("%w: mapping cascade needs cpmk_id and cpl_id", pkgerrors.ErrInvalidArgument)
		}
	case CascadeCourse:
		if r.CourseID == uuid.Nil {
			return fmt.Errorf("%w: course cascade needs course_id", pkgerrors.ErrInvalidArgument)
		}
	default:
		return fmt.Errorf("%w: unknown cascade kind %q", pkgerrors.ErrInvalidArgument, r.Kind)
	}
	return nil
}

// DedupeKey is equal for requests that would recompute the same rows.
// A queued request already covers a later identical one because the
// snapshot is taken when the job runs, not when it is enqueued.
func (r CascadeRequest) DedupeKey() string {
	switch r.Kind {
	case CascadeTechnique:
		return fmt.Sprintf("technique:%s", r.CpmkID)
	case CascadeMapping:
		return fmt.Sprintf("mapping:%s:%s", r.CpmkID, r.CplID)
	default:
		return fmt.Sprintf("course:%s", r.CourseID)
	}
}

// Handle runs the cascade described by req.
func (c *Coordinator) Handle(ctx context.Context, req CascadeRequest) (*CascadeReport, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	switch req.Kind {
	case CascadeTechnique:
		return c.OnTechniqueWeightChanged(ctx, req.CpmkID)
	case CascadeMapping:
		return c.OnCpmkCplMappingChanged(ctx, req.CpmkID, req.CplID)
	default:
		return c.RecalculateCourse(ctx, req.CourseID)
	}
}
