package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/yungbote/obe-backend/internal/grading"
	pkgerrors "github.com/yungbote/obe-backend/internal/pkg/errors"
	"github.com/yungbote/obe-backend/internal/platform/apierr"
)

type APIError struct {
	Message string         `json:"message"`
	Code    string         `json:"code,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}

func RespondAccepted(c *gin.Context, payload any) {
	c.JSON(http.StatusAccepted, payload)
}

// RespondError renders err as an error envelope. Errors that are not
// already an *apierr.Error are classified first.
func RespondError(c *gin.Context, err error) {
	ae := Classify(err)
	msg := "unknown error"
	if ae.Err != nil {
		msg = ae.Err.Error()
	}
	if ae.Status >= http.StatusInternalServerError {
		_ = c.Error(err)
		msg = "internal error"
	}
	c.AbortWithStatusJSON(ae.Status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    ae.Code,
			Details: ae.Details,
		},
	})
}

// Classify maps domain errors onto HTTP statuses and stable codes.
func Classify(err error) *apierr.Error {
	var ae *apierr.Error
	if errors.As(err, &ae) {
		return ae
	}
	var overflow *grading.WeightOverflowError
	if errors.As(err, &overflow) {
		return apierr.New(http.StatusUnprocessableEntity, "weight_overflow", err).WithDetails(map[string]any{
			"cpmk_id":       overflow.CpmkID,
			"kind":          overflow.Kind,
			"current_total": overflow.CurrentTotal.StringFixed(2),
			"requested":     overflow.Requested.StringFixed(2),
			"limit":         overflow.Limit().StringFixed(2),
		})
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := map[string]any{}
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		return apierr.New(http.StatusBadRequest, "invalid_request", err).WithDetails(map[string]any{"fields": fields})
	}
	switch {
	case errors.Is(err, grading.ErrInvalidWeight):
		return apierr.New(http.StatusBadRequest, "invalid_weight", err)
	case errors.Is(err, grading.ErrInvalidScore):
		return apierr.New(http.StatusBadRequest, "invalid_score", err)
	case errors.Is(err, pkgerrors.ErrInvalidArgument):
		return apierr.New(http.StatusBadRequest, "invalid_argument", err)
	case errors.Is(err, grading.ErrMappingExists):
		return apierr.New(http.StatusConflict, "mapping_exists", err)
	case errors.Is(err, pkgerrors.ErrConflict):
		return apierr.New(http.StatusConflict, "conflict", err)
	case errors.Is(err, pkgerrors.ErrNotFound):
		return apierr.New(http.StatusNotFound, "not_found", err)
	case errors.Is(err, pkgerrors.ErrValidation):
		return apierr.New(http.StatusUnprocessableEntity, "validation_failed", err)
	default:
		return apierr.New(http.StatusInternalServerError, "internal", err)
	}
}
