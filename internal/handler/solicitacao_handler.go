package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vanzer80/solicitacao-materiais-api/internal/dto"
	"github.com/vanzer80/solicitacao-materiais-api/internal/service"
	appErrors "github.com/vanzer80/solicitacao-materiais-api/pkg/errors"
	"github.com/vanzer80/solicitacao-materiais-api/pkg/response"
)

// SolicitacaoHandler exposes the intake submission endpoint.
type SolicitacaoHandler struct {
	submissions *service.SubmissionService
}

// NewSolicitacaoHandler constructs SolicitacaoHandler.
func NewSolicitacaoHandler(submissions *service.SubmissionService) *SolicitacaoHandler {
	return &SolicitacaoHandler{submissions: submissions}
}

// Submit godoc
// @Summary Submit a material request
// @Tags Solicitacoes
// @Accept json
// @Produce json
// @Param payload body dto.SubmitSolicitacaoRequest true "Submission payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /solicitacoes [post]
func (h *SolicitacaoHandler) Submit(c *gin.Context) {
	var req dto.SubmitSolicitacaoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "payload inválido"))
		return
	}

	result, err := h.submissions.Submit(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}
