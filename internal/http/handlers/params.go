package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	types "github.com/yungbote/obe-backend/internal/domain"
	"github.com/yungbote/obe-backend/internal/platform/apierr"
)

func uuidParam(c *gin.Context, name string) (uuid.UUID, error) {
	return parseUUID(c.Param(name), name)
}

func parseUUID(raw, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, apierr.New(http.StatusBadRequest, "invalid_"+name, fmt.Errorf("%s must be a uuid", name))
	}
	return id, nil
}

func bindJSON(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		return apierr.New(http.StatusBadRequest, "invalid_json", err)
	}
	return nil
}

// optionalSemester reads ?semester=; nil means every semester.
func optionalSemester(c *gin.Context) (*int, error) {
	raw := strings.TrimSpace(c.Query("semester"))
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return nil, apierr.New(http.StatusBadRequest, "invalid_semester", fmt.Errorf("semester must be a positive integer"))
	}
	return &n, nil
}

// scopeQuery builds the scope of a single score read. Semester and term are
// both required there.
func scopeQuery(c *gin.Context, studentID uuid.UUID) (types.Scope, error) {
	sem, err := optionalSemester(c)
	if err != nil {
		return types.Scope{}, err
	}
	if sem == nil {
		return types.Scope{}, apierr.New(http.StatusBadRequest, "invalid_semester", fmt.Errorf("semester is required"))
	}
	term := strings.TrimSpace(c.Query("term"))
	if term == "" {
		return types.Scope{}, apierr.New(http.StatusBadRequest, "invalid_term", fmt.Errorf("term is required"))
	}
	return types.Scope{StudentID: studentID, Semester: *sem, AcademicTerm: term}, nil
}
