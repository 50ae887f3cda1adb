package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/obe-backend/internal/http/response"
	"github.com/yungbote/obe-backend/internal/services"
)

type ScoreHandler struct {
	scores services.ScoreService
}

func NewScoreHandler(scores services.ScoreService) *ScoreHandler {
	return &ScoreHandler{scores: scores}
}

// GET /api/students/:id/cpmk-scores/:cpmkId?semester=&term=
func (h *ScoreHandler) GetCpmkScore(c *gin.Context) {
	studentID, err := uuidParam(c, "id")
	if err != nil {
		response.RespondError(c, err)
		return
	}
	cpmkID, err := parseUUID(c.Param("cpmkId"), "cpmk_id")
	if err != nil {
		response.RespondError(c, err)
		return
	}
	scope, err := scopeQuery(c, studentID)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	score, err := h.scores.GetCpmkScore(c.Request.Context(), scope, cpmkID)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"score": score})
}

// GET /api/students/:id/cpl-scores/:cplId?course_id=&semester=&term=
func (h *ScoreHandler) GetCplScore(c *gin.Context) {
	studentID, err := uuidParam(c, "id")
	if err != nil {
		response.RespondError(c, err)
		return
	}
	cplID, err := parseUUID(c.Param("cplId"), "cpl_id")
	if err != nil {
		response.RespondError(c, err)
		return
	}
	courseID, err := parseUUID(c.Query("course_id"), "course_id")
	if err != nil {
		response.RespondError(c, err)
		return
	}
	scope, err := scopeQuery(c, studentID)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	score, err := h.scores.GetCplScore(c.Request.Context(), scope, cplID, courseID)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"score": score})
}

// GET /api/students/:id/scores?semester=&term=
func (h *ScoreHandler) ListStudentScores(c *gin.Context) {
	studentID, err := uuidParam(c, "id")
	if err != nil {
		response.RespondError(c, err)
		return
	}
	semester, err := optionalSemester(c)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	scores, err := h.scores.ListStudentScores(c.Request.Context(), studentID, semester, strings.TrimSpace(c.Query("term")))
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, scores)
}
