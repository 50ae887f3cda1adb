package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/obe-backend/internal/domain/jobs"
	"github.com/yungbote/obe-backend/internal/http/response"
	"github.com/yungbote/obe-backend/internal/pkg/dbctx"
	"github.com/yungbote/obe-backend/internal/platform/apierr"
	"github.com/yungbote/obe-backend/internal/services"
)

const maxJobList = 100

type JobHandler struct {
	jobs services.JobService
}

func NewJobHandler(jobs services.JobService) *JobHandler {
	return &JobHandler{jobs: jobs}
}

// GET /api/jobs/:id
// Clients poll this after a weight edit returned a queued recalculation.
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID, err := uuidParam(c, "id")
	if err != nil {
		response.RespondError(c, err)
		return
	}
	job, err := h.jobs.GetByID(dbctx.New(c.Request.Context()), jobID)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"job": job})
}

// GET /api/jobs?entity_type=cpmk&entity_id=&limit=
func (h *JobHandler) ListJobs(c *gin.Context) {
	entityType := strings.TrimSpace(c.Query("entity_type"))
	switch entityType {
	case jobs.EntityCourse, jobs.EntityCpmk:
	default:
		response.RespondError(c, apierr.New(http.StatusBadRequest, "invalid_entity_type",
			fmt.Errorf("entity_type must be %q or %q", jobs.EntityCourse, jobs.EntityCpmk)))
		return
	}
	entityID, err := parseUUID(c.Query("entity_id"), "entity_id")
	if err != nil {
		response.RespondError(c, err)
		return
	}
	limit := 20
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxJobList {
			response.RespondError(c, apierr.New(http.StatusBadRequest, "invalid_limit",
				fmt.Errorf("limit must be between 1 and %d", maxJobList)))
			return
		}
		limit = n
	}
	list, err := h.jobs.ListForEntity(dbctx.New(c.Request.Context()), entityType, entityID, limit)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"jobs": list})
}
