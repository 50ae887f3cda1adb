package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/obe-backend/internal/http/response"
	"github.com/yungbote/obe-backend/internal/services"
)

type RawScoreHandler struct {
	rawScores services.RawScoreService
}

func NewRawScoreHandler(rawScores services.RawScoreService) *RawScoreHandler {
	return &RawScoreHandler{rawScores: rawScores}
}

// PUT /api/raw-scores
func (h *RawScoreHandler) Upsert(c *gin.Context) {
	var in services.UpsertRawScoreInput
	if err := bindJSON(c, &in); err != nil {
		response.RespondError(c, err)
		return
	}
	res, err := h.rawScores.Upsert(c.Request.Context(), in)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, res)
}

// DELETE /api/raw-scores
func (h *RawScoreHandler) Delete(c *gin.Context) {
	var key services.RawScoreKey
	if err := bindJSON(c, &key); err != nil {
		response.RespondError(c, err)
		return
	}
	res, err := h.rawScores.Delete(c.Request.Context(), key)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, res)
}
