package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/defense-allocation-api/internal/dto"
	appErrors "github.com/noah-isme/defense-allocation-api/pkg/errors"
	"github.com/noah-isme/defense-allocation-api/pkg/response"
)

type juryAssigner interface {
	AssignJury(ctx context.Context, req dto.AssignJuryRequest) ([]dto.JuryAssignmentSummary, error)
	ListJurorsWithSuggestion(ctx context.Context) ([]dto.JurorSuggestion, error)
}

// JuryHandler exposes jury assignment endpoints.
type JuryHandler struct {
	service juryAssigner
}

// NewJuryHandler constructs the handler.
func NewJuryHandler(svc juryAssigner) *JuryHandler {
	return &JuryHandler{service: svc}
}

// Assign godoc
// @Summary Assign jurors to defenses
// @Description With auto the two least loaded jurors of the defense area are picked. Otherwise jury_ids must contain at least two eligible jurors.
// @Tags Juries
// @Accept json
// @Produce json
// @Param payload body dto.AssignJuryRequest true "Jury assignment payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /juries/assignments [post]
func (h *JuryHandler) Assign(c *gin.Context) {
	var req dto.AssignJuryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid jury payload"))
		return
	}
	result, err := h.service.AssignJury(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Suggestions godoc
// @Summary List jurors with workload suggestion
// @Tags Juries
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /juries/suggestions [get]
func (h *JuryHandler) Suggestions(c *gin.Context) {
	result, err := h.service.ListJurorsWithSuggestion(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}
