package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vanzer80/solicitacao-materiais-api/internal/webhook"
	"github.com/vanzer80/solicitacao-materiais-api/pkg/response"
)

// WebhookHandler exposes operator diagnostics for the delivery endpoint.
type WebhookHandler struct {
	client *webhook.Client
}

// NewWebhookHandler constructs WebhookHandler.
func NewWebhookHandler(client *webhook.Client) *WebhookHandler {
	return &WebhookHandler{client: client}
}

// Diagnostico godoc
// @Summary Probe the spreadsheet webhook and report the raw response shape
// @Tags Webhook
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /webhook/diagnostico [post]
func (h *WebhookHandler) Diagnostico(c *gin.Context) {
	result := h.client.Diagnose(c.Request.Context())
	response.JSON(c, http.StatusOK, result, nil)
}
