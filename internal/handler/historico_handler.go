package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vanzer80/solicitacao-materiais-api/internal/dto"
	"github.com/vanzer80/solicitacao-materiais-api/internal/models"
	"github.com/vanzer80/solicitacao-materiais-api/internal/service"
	appErrors "github.com/vanzer80/solicitacao-materiais-api/pkg/errors"
	"github.com/vanzer80/solicitacao-materiais-api/pkg/response"
)

// HistoricoHandler exposes the submission history endpoints.
type HistoricoHandler struct {
	historico *service.HistoricoService
	exports   *service.ExportService
}

// NewHistoricoHandler constructs HistoricoHandler. Exports may be nil when
// the feature is disabled.
func NewHistoricoHandler(historico *service.HistoricoService, exports *service.ExportService) *HistoricoHandler {
	return &HistoricoHandler{historico: historico, exports: exports}
}

// Listar godoc
// @Summary List submitted material requests
// @Tags Historico
// @Produce json
// @Param dataInicio query string false "Start date (YYYY-MM-DD)"
// @Param dataFim query string false "End date (YYYY-MM-DD)"
// @Param loja_id query int false "Filter by store"
// @Param request_id query string false "Filter by request id"
// @Param pagina query int false "Page"
// @Param limite query int false "Page size"
// @Param ordenarPor query string false "Sort order (data_desc, data_asc, loja)"
// @Success 200 {object} response.Envelope
// @Router /historico [get]
func (h *HistoricoHandler) Listar(c *gin.Context) {
	var query dto.HistoricoQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "parâmetros inválidos"))
		return
	}

	rows, pagination, err := h.historico.Listar(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, &pagination)
}

// Detalhe godoc
// @Summary Get one material request with its items
// @Tags Historico
// @Produce json
// @Param requestId path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /historico/{requestId} [get]
func (h *HistoricoHandler) Detalhe(c *gin.Context) {
	detalhe, err := h.historico.Detalhe(c.Request.Context(), c.Param("requestId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detalhe, nil)
}

// Exportar godoc
// @Summary Start an asynchronous history export
// @Tags Historico
// @Accept json
// @Produce json
// @Param payload body dto.ExportRequest true "Export parameters"
// @Success 202 {object} response.Envelope
// @Router /historico/exportacoes [post]
func (h *HistoricoHandler) Exportar(c *gin.Context) {
	if h.exports == nil {
		response.Error(c, appErrors.ErrNotFound.WithMessage("Exportações desabilitadas"))
		return
	}

	var req dto.ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "payload inválido"))
		return
	}
	if req.Formato != models.ExportFormatCSV && req.Formato != models.ExportFormatPDF {
		response.Error(c, appErrors.ErrValidation.WithMessage("formato deve ser csv ou pdf"))
		return
	}

	status, err := h.exports.Request(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, status, nil)
}

// ExportStatus godoc
// @Summary Poll an export job
// @Tags Historico
// @Produce json
// @Param id path string true "Export job ID"
// @Success 200 {object} response.Envelope
// @Router /historico/exportacoes/{id} [get]
func (h *HistoricoHandler) ExportStatus(c *gin.Context) {
	if h.exports == nil {
		response.Error(c, appErrors.ErrNotFound.WithMessage("Exportações desabilitadas"))
		return
	}

	status, err := h.exports.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// Download godoc
// @Summary Download a rendered export via signed token
// @Tags Historico
// @Produce application/octet-stream
// @Param token query string true "Signed download token"
// @Success 200 {file} binary
// @Router /historico/exportacoes/download [get]
func (h *HistoricoHandler) Download(c *gin.Context) {
	if h.exports == nil {
		response.Error(c, appErrors.ErrNotFound.WithMessage("Exportações desabilitadas"))
		return
	}

	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.ErrValidation.WithMessage("token é obrigatório"))
		return
	}

	file, job, err := h.exports.OpenDownload(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	contentType := "text/csv"
	if job.Formato == models.ExportFormatPDF {
		contentType = "application/pdf"
	}
	c.Header("Content-Disposition", `attachment; filename="historico-`+job.ID+`.`+job.Formato+`"`)
	c.Header("Content-Type", contentType)
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, file)
}
