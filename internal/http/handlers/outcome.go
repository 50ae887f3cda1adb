package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/obe-backend/internal/http/response"
	"github.com/yungbote/obe-backend/internal/services"
)

type OutcomeHandler struct {
	outcomes services.OutcomeService
}

func NewOutcomeHandler(outcomes services.OutcomeService) *OutcomeHandler {
	return &OutcomeHandler{outcomes: outcomes}
}

// POST /api/courses
func (h *OutcomeHandler) CreateCourse(c *gin.Context) {
	var in services.CreateCourseInput
	if err := bindJSON(c, &in); err != nil {
		response.RespondError(c, err)
		return
	}
	course, err := h.outcomes.CreateCourse(c.Request.Context(), in)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"course": course})
}

// GET /api/courses
func (h *OutcomeHandler) ListCourses(c *gin.Context) {
	courses, err := h.outcomes.ListCourses(c.Request.Context())
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"courses": courses})
}

// GET /api/courses/:id
func (h *OutcomeHandler) GetCourse(c *gin.Context) {
	courseID, err := uuidParam(c, "id")
	if err != nil {
		response.RespondError(c, err)
		return
	}
	detail, err := h.outcomes.GetCourse(c.Request.Context(), courseID)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"course": detail.Course, "cpmks": detail.Cpmks})
}

// POST /api/courses/:id/cpmks
func (h *OutcomeHandler) CreateCpmk(c *gin.Context) {
	courseID, err := uuidParam(c, "id")
	if err != nil {
		response.RespondError(c, err)
		return
	}
	var in services.CreateCpmkInput
	if err := bindJSON(c, &in); err != nil {
		response.RespondError(c, err)
		return
	}
	cpmk, err := h.outcomes.CreateCpmk(c.Request.Context(), courseID, in)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"cpmk": cpmk})
}

// POST /api/cpls
func (h *OutcomeHandler) CreateCpl(c *gin.Context) {
	var in services.CreateCplInput
	if err := bindJSON(c, &in); err != nil {
		response.RespondError(c, err)
		return
	}
	cpl, err := h.outcomes.CreateCpl(c.Request.Context(), in)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"cpl": cpl})
}

// GET /api/cpls
func (h *OutcomeHandler) ListCpls(c *gin.Context) {
	cpls, err := h.outcomes.ListCpls(c.Request.Context())
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"cpls": cpls})
}
