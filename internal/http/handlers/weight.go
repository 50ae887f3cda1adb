package handlers

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/yungbote/obe-backend/internal/grading"
	"github.com/yungbote/obe-backend/internal/http/response"
	"github.com/yungbote/obe-backend/internal/services"
)

type WeightHandler struct {
	weights services.WeightService
}

func NewWeightHandler(weights services.WeightService) *WeightHandler {
	return &WeightHandler{weights: weights}
}

type weightBody struct {
	Weight decimal.NullDecimal `json:"weight"`
}

type mappingsBatchBody struct {
	Mappings []struct {
		CpmkID uuid.UUID           `json:"cpmk_id"`
		CplID  uuid.UUID           `json:"cpl_id"`
		Weight decimal.NullDecimal `json:"weight"`
	} `json:"mappings"`
}

// inputs rejects the whole batch when any entry omits its weight.
func (b mappingsBatchBody) inputs() ([]grading.MappingInput, error) {
	out := make([]grading.MappingInput, 0, len(b.Mappings))
	for i, m := range b.Mappings {
		w, err := grading.RequireWeight(m.Weight)
		if err != nil {
			return nil, fmt.Errorf("mappings[%d]: %w", i, err)
		}
		out = append(out, grading.MappingInput{CpmkID: m.CpmkID, CplID: m.CplID, Weight: w})
	}
	return out, nil
}

func (b weightBody) weight() (decimal.Decimal, error) {
	return grading.RequireWeight(b.Weight)
}

// POST /api/cpmks/:id/techniques
func (h *WeightHandler) AddTechnique(c *gin.Context) {
	cpmkID, err := uuidParam(c, "id")
	if err != nil {
		response.RespondError(c, err)
		return
	}
	var in services.AddTechniqueInput
	if err := bindJSON(c, &in); err != nil {
		response.RespondError(c, err)
		return
	}
	res, err := h.weights.AddTechnique(c.Request.Context(), cpmkID, in)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondCreated(c, res)
}

// PATCH /api/techniques/:id
func (h *WeightHandler) UpdateTechnique(c *gin.Context) {
	techniqueID, err := uuidParam(c, "id")
	if err != nil {
		response.RespondError(c, err)
		return
	}
	var body weightBody
	if err := bindJSON(c, &body); err != nil {
		response.RespondError(c, err)
		return
	}
	weight, err := body.weight()
	if err != nil {
		response.RespondError(c, err)
		return
	}
	res, err := h.weights.UpdateTechnique(c.Request.Context(), techniqueID, weight)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, res)
}

// DELETE /api/techniques/:id
func (h *WeightHandler) RemoveTechnique(c *gin.Context) {
	techniqueID, err := uuidParam(c, "id")
	if err != nil {
		response.RespondError(c, err)
		return
	}
	res, err := h.weights.RemoveTechnique(c.Request.Context(), techniqueID)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, res)
}

// GET /api/cpmks/:id/weights
func (h *WeightHandler) CpmkWeights(c *gin.Context) {
	cpmkID, err := uuidParam(c, "id")
	if err != nil {
		response.RespondError(c, err)
		return
	}
	view, err := h.weights.CpmkWeights(c.Request.Context(), cpmkID)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, view)
}

// POST /api/cpmks/:id/mappings
func (h *WeightHandler) AddMapping(c *gin.Context) {
	cpmkID, err := uuidParam(c, "id")
	if err != nil {
		response.RespondError(c, err)
		return
	}
	var in services.AddMappingInput
	if err := bindJSON(c, &in); err != nil {
		response.RespondError(c, err)
		return
	}
	res, err := h.weights.AddMapping(c.Request.Context(), cpmkID, in)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondCreated(c, res)
}

// POST /api/mappings/batch
func (h *WeightHandler) AddMappingsBatch(c *gin.Context) {
	var body mappingsBatchBody
	if err := bindJSON(c, &body); err != nil {
		response.RespondError(c, err)
		return
	}
	inputs, err := body.inputs()
	if err != nil {
		response.RespondError(c, err)
		return
	}
	res, err := h.weights.AddMappingsBatch(c.Request.Context(), inputs)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondCreated(c, res)
}

// PATCH /api/mappings/:id
func (h *WeightHandler) UpdateMapping(c *gin.Context) {
	mappingID, err := uuidParam(c, "id")
	if err != nil {
		response.RespondError(c, err)
		return
	}
	var body weightBody
	if err := bindJSON(c, &body); err != nil {
		response.RespondError(c, err)
		return
	}
	weight, err := body.weight()
	if err != nil {
		response.RespondError(c, err)
		return
	}
	res, err := h.weights.UpdateMapping(c.Request.Context(), mappingID, weight)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, res)
}

// DELETE /api/mappings/:id
func (h *WeightHandler) RemoveMapping(c *gin.Context) {
	mappingID, err := uuidParam(c, "id")
	if err != nil {
		response.RespondError(c, err)
		return
	}
	res, err := h.weights.RemoveMapping(c.Request.Context(), mappingID)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, res)
}

// POST /api/courses/:id/recalculate
func (h *WeightHandler) RecalculateCourse(c *gin.Context) {
	courseID, err := uuidParam(c, "id")
	if err != nil {
		response.RespondError(c, err)
		return
	}
	out, err := h.weights.RecalculateCourse(c.Request.Context(), courseID)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	if out.Job != nil {
		response.RespondAccepted(c, out)
		return
	}
	response.RespondOK(c, out)
}
