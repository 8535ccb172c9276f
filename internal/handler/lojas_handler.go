package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vanzer80/solicitacao-materiais-api/internal/service"
	"github.com/vanzer80/solicitacao-materiais-api/pkg/response"
)

// LojasHandler exposes the store directory.
type LojasHandler struct {
	lojas *service.LojasService
}

// NewLojasHandler constructs LojasHandler.
func NewLojasHandler(lojas *service.LojasService) *LojasHandler {
	return &LojasHandler{lojas: lojas}
}

// Listar godoc
// @Summary List stores available on the intake form
// @Tags Lojas
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /lojas [get]
func (h *LojasHandler) Listar(c *gin.Context) {
	lojas, err := h.lojas.Listar(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lojas, nil)
}

// Invalidate godoc
// @Summary Drop the cached store directory
// @Tags Lojas
// @Produce json
// @Success 204
// @Router /lojas/cache [delete]
func (h *LojasHandler) Invalidate(c *gin.Context) {
	h.lojas.Invalidate(c.Request.Context())
	response.NoContent(c)
}
