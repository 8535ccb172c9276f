package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vanzer80/solicitacao-materiais-api/internal/dto"
	"github.com/vanzer80/solicitacao-materiais-api/internal/imaging"
	"github.com/vanzer80/solicitacao-materiais-api/internal/models"
	"github.com/vanzer80/solicitacao-materiais-api/internal/service"
	"github.com/vanzer80/solicitacao-materiais-api/internal/webhook"
	"github.com/vanzer80/solicitacao-materiais-api/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeCompressor struct{}

func (fakeCompressor) Compress(_ context.Context, in imaging.Input, _ bool, _ imaging.ProgressFunc) imaging.Result {
	return imaging.Result{Blob: in.Data, MimeType: "image/jpeg", OriginalSize: int64(len(in.Data)), CompressedSize: int64(len(in.Data))}
}

type fakeUploader struct{}

func (fakeUploader) Store(_ context.Context, name, _ string, _ []byte) dto.UploadResult {
	return dto.UploadResult{Success: true, URL: "http://localhost:8080/uploads/solicitacoes/" + name}
}

type fakeDeliverer struct {
	result webhook.Result
}

func (f *fakeDeliverer) Deliver(context.Context, webhook.SolicitacaoPayload) webhook.Result {
	return f.result
}

type fakeMirror struct{}

func (fakeMirror) Save(context.Context, models.MaterialRequest, []models.MaterialItem) error {
	return nil
}

func newSubmitRouter(delivery webhook.Result) *gin.Engine {
	svc := service.NewSubmissionService(fakeCompressor{}, fakeUploader{}, &fakeDeliverer{result: delivery},
		fakeMirror{}, nil, nil, zap.NewNop())
	h := NewSolicitacaoHandler(svc)

	router := gin.New()
	router.POST("/solicitacoes", h.Submit)
	return router
}

func submitBody(t *testing.T) []byte {
	t.Helper()
	body, err := json.Marshal(dto.SubmitSolicitacaoRequest{
		LojaID:                12,
		LojaLabel:             "Loja 12 - Centro",
		SolicitanteNome:       "João Silva",
		TipoEquipe:            models.TipoEquipePropria,
		TipoServico:           models.TipoServicoCorretiva,
		SistemaAfetado:        "HVAC",
		DescricaoGeralServico: "Troca de compressor",
		Items: []dto.SubmitItemInput{
			{MaterialDescricao: "Compressor", Quantidade: 1, Unidade: "un", Urgencia: models.UrgenciaAlta},
		},
	})
	require.NoError(t, err)
	return body
}

func TestSubmitHandlerSuccess(t *testing.T) {
	router := newSubmitRouter(webhook.Result{Success: true, Outcome: webhook.OutcomeSuccess, Message: "Solicitação enviada com sucesso"})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/solicitacoes", bytes.NewReader(submitBody(t)))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	data, ok := envelope.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, data["success"])
	assert.Regexp(t, models.RequestIDPattern, data["requestId"])
}

func TestSubmitHandlerRejectsMalformedJSON(t *testing.T) {
	router := newSubmitRouter(webhook.Result{Success: true})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/solicitacoes", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubmitHandlerValidationFailure(t *testing.T) {
	router := newSubmitRouter(webhook.Result{Success: true})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/solicitacoes", bytes.NewReader([]byte(`{"loja_label":"Loja"}`)))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "obrigatório")
}

func TestSubmitHandlerWebhookFailureIs502(t *testing.T) {
	router := newSubmitRouter(webhook.Result{
		Outcome: webhook.OutcomeHTMLError,
		Message: "Webhook retornou HTML — verifique URL /exec e publicação do Apps Script",
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/solicitacoes", bytes.NewReader(submitBody(t)))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "Webhook retornou HTML")
}
