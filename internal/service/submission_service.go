package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vanzer80/solicitacao-materiais-api/internal/dto"
	"github.com/vanzer80/solicitacao-materiais-api/internal/imaging"
	"github.com/vanzer80/solicitacao-materiais-api/internal/models"
	"github.com/vanzer80/solicitacao-materiais-api/internal/webhook"
	appErrors "github.com/vanzer80/solicitacao-materiais-api/pkg/errors"
)

// photoConcurrency bounds the compress-and-upload fan-out per submission.
const photoConcurrency = 4

type photoCompressor interface {
	Compress(ctx context.Context, in imaging.Input, aggressive bool, onProgress imaging.ProgressFunc) imaging.Result
}

type photoUploader interface {
	Store(ctx context.Context, name, mimeType string, data []byte) dto.UploadResult
}

type webhookDeliverer interface {
	Deliver(ctx context.Context, payload webhook.SolicitacaoPayload) webhook.Result
}

type submissionMirror interface {
	Save(ctx context.Context, request models.MaterialRequest, items []models.MaterialItem) error
}

type loaderInvalidator interface {
	Invalidate(requestID string)
}

type submissionRecorder interface {
	RecordSubmission(result string)
	RecordCompression(tier string, usedFallback bool, savedBytes int64)
}

// SubmissionService runs the intake pipeline: honeypot check, aggregated
// validation, photo compression and upload fan-out, webhook delivery and
// the best-effort local mirror write.
type SubmissionService struct {
	validate   *validator.Validate
	compressor photoCompressor
	uploader   photoUploader
	webhook    webhookDeliverer
	mirror     submissionMirror
	historico  loaderInvalidator
	metrics    submissionRecorder
	logger     *zap.Logger
	now        func() time.Time
}

// NewSubmissionService wires the pipeline. Mirror, historico and metrics
// may be nil; the pipeline degrades gracefully without them.
func NewSubmissionService(
	compressor photoCompressor,
	uploader photoUploader,
	deliverer webhookDeliverer,
	mirror submissionMirror,
	historico loaderInvalidator,
	metrics submissionRecorder,
	logger *zap.Logger,
) *SubmissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubmissionService{
		validate:   validator.New(),
		compressor: compressor,
		uploader:   uploader,
		webhook:    deliverer,
		mirror:     mirror,
		historico:  historico,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
	}
}

// Submit runs the whole pipeline for one submission. Webhook rejection
// aborts the submission with the classifier's message verbatim; a failed
// mirror write only degrades the result to success-with-warning.
func (s *SubmissionService) Submit(ctx context.Context, req dto.SubmitSolicitacaoRequest) (*dto.SubmitResult, error) {
	// Bots fill every field. Answer them exactly like a real submission
	// and do nothing.
	if strings.TrimSpace(req.Honeypot) != "" {
		s.logger.Warn("honeypot triggered, dropping submission silently",
			zap.String("solicitante", req.SolicitanteNome))
		s.recordSubmission("honeypot")
		return &dto.SubmitResult{
			Success:   true,
			RequestID: models.GenerateRequestID(),
			Message:   "Solicitação enviada com sucesso",
		}, nil
	}

	if violations := s.validateRequest(req); len(violations) > 0 {
		s.recordSubmission("rejected")
		return nil, appErrors.ErrValidation.WithMessage(strings.Join(violations, "; "))
	}

	requestID := models.GenerateRequestID()
	timestamp := s.now().UTC()

	itemPayloads, err := s.processPhotos(ctx, req, requestID)
	if err != nil {
		s.recordSubmission("rejected")
		return nil, err
	}

	payload := webhook.SolicitacaoPayload{
		RequestID:      requestID,
		TimestampEnvio: timestamp.Format(time.RFC3339),
		Header: webhook.SolicitacaoHeader{
			LojaID:                req.LojaID,
			LojaLabel:             req.LojaLabel,
			SolicitanteNome:       req.SolicitanteNome,
			SolicitanteTelefone:   req.SolicitanteTelefone,
			NumeroChamado:         req.NumeroChamado,
			TipoEquipe:            req.TipoEquipe,
			EmpresaTerceira:       req.EmpresaTerceira,
			TipoServico:           req.TipoServico,
			SistemaAfetado:        req.SistemaAfetado,
			DescricaoGeralServico: req.DescricaoGeralServico,
		},
		Items: itemPayloads,
	}

	delivery := s.webhook.Deliver(ctx, payload)
	if !delivery.Success {
		s.logger.Error("webhook rejected submission",
			zap.String("request_id", requestID),
			zap.String("outcome", string(delivery.Outcome)),
			zap.String("message", delivery.Message))
		s.recordSubmission("webhook_failed")
		return nil, appErrors.ErrWebhookDelivery.WithMessage(delivery.Message)
	}

	result := &dto.SubmitResult{
		Success:   true,
		RequestID: requestID,
		Message:   delivery.Message,
	}

	if warning := s.persistMirror(ctx, req, payload, timestamp); warning != "" {
		result.Warning = warning
	}

	if s.historico != nil {
		s.historico.Invalidate(requestID)
	}
	s.recordSubmission("success")
	s.logger.Info("submission accepted",
		zap.String("request_id", requestID),
		zap.Int("items", len(itemPayloads)),
		zap.Int("rows_written", delivery.RowsWritten),
		zap.Bool("retried", delivery.Retried))
	return result, nil
}

// validateRequest collects every violation instead of stopping at the
// first, so technicians fix the form in one round trip.
func (s *SubmissionService) validateRequest(req dto.SubmitSolicitacaoRequest) []string {
	var violations []string

	if err := s.validate.Struct(req); err != nil {
		var fieldErrors validator.ValidationErrors
		if ok := asValidationErrors(err, &fieldErrors); ok {
			for _, fe := range fieldErrors {
				violations = append(violations, describeViolation(fe))
			}
		} else {
			violations = append(violations, err.Error())
		}
	}

	if req.TipoEquipe == models.TipoEquipeTerceirizada && strings.TrimSpace(req.EmpresaTerceira) == "" {
		violations = append(violations, "empresa_terceira é obrigatória para equipe Terceirizada")
	}

	return violations
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	fieldErrors, ok := err.(validator.ValidationErrors)
	if ok {
		*target = fieldErrors
	}
	return ok
}

func describeViolation(fe validator.FieldError) string {
	field := wireFieldName(fe)
	switch fe.Tag() {
	case "required":
		return field + " é obrigatório"
	case "min":
		if fe.Kind().String() == "slice" {
			return field + " deve conter pelo menos " + fe.Param() + " item"
		}
		return field + " deve ser no mínimo " + fe.Param()
	case "oneof":
		return field + " deve ser um de: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	default:
		return field + " inválido"
	}
}

// wireFieldName lowers the struct path to the snake_case wire names the
// form actually sends.
func wireFieldName(fe validator.FieldError) string {
	switch fe.Field() {
	case "LojaID":
		return "loja_id"
	case "LojaLabel":
		return "loja_label"
	case "SolicitanteNome":
		return "solicitante_nome"
	case "SolicitanteTelefone":
		return "solicitante_telefone"
	case "NumeroChamado":
		return "numero_chamado"
	case "TipoEquipe":
		return "tipo_equipe"
	case "EmpresaTerceira":
		return "empresa_terceira"
	case "TipoServico":
		return "tipo_servico"
	case "SistemaAfetado":
		return "sistema_afetado"
	case "DescricaoGeralServico":
		return "descricao_geral_servico"
	case "Items":
		return "items"
	case "MaterialDescricao":
		return "material_descricao"
	case "Quantidade":
		return "quantidade"
	case "Unidade":
		return "unidade"
	case "Urgencia":
		return "urgencia"
	default:
		return fe.Field()
	}
}

// processPhotos compresses and uploads every attached photo concurrently.
// Photo failures never fail the submission: the affected URL stays empty
// and the material line goes through without it.
func (s *SubmissionService) processPhotos(ctx context.Context, req dto.SubmitSolicitacaoRequest, requestID string) ([]webhook.MaterialItemPayload, error) {
	payloads := make([]webhook.MaterialItemPayload, len(req.Items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(photoConcurrency)

	for i, item := range req.Items {
		payloads[i] = webhook.MaterialItemPayload{
			MaterialDescricao:     item.MaterialDescricao,
			MaterialEspecificacao: item.MaterialEspecificacao,
			Quantidade:            item.Quantidade,
			Unidade:               item.Unidade,
			Urgencia:              item.Urgencia,
		}

		photos := []struct {
			data []byte
			mime string
			dest *string
			slot string
		}{
			{item.Foto1, item.Foto1Type, &payloads[i].Foto1URL, "foto1"},
			{item.Foto2, item.Foto2Type, &payloads[i].Foto2URL, "foto2"},
		}
		for _, photo := range photos {
			if len(photo.data) == 0 {
				continue
			}
			photo := photo
			itemIndex := i
			g.Go(func() error {
				*photo.dest = s.processOnePhoto(gctx, photo.data, photo.mime,
					fmt.Sprintf("%s-item%d-%s", requestID, itemIndex+1, photo.slot), req.ConexaoLenta)
				return nil
			})
		}
	}

	// Workers only report via the payload slots; Wait is for completion.
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return payloads, nil
}

func (s *SubmissionService) processOnePhoto(ctx context.Context, data []byte, mimeType, name string, slow bool) string {
	compressed := s.compressor.Compress(ctx, imaging.Input{Data: data, MimeType: mimeType, Name: name}, slow, nil)
	if s.metrics != nil {
		tier := "normal"
		if slow {
			tier = "aggressive"
		}
		s.metrics.RecordCompression(tier, compressed.UsedFallback, compressed.OriginalSize-compressed.CompressedSize)
	}
	if compressed.UsedFallback {
		s.logger.Warn("photo compression fell back to original bytes",
			zap.String("photo", name), zap.String("reason", compressed.Error))
	}

	upload := s.uploader.Store(ctx, name, compressed.MimeType, compressed.Blob)
	if !upload.Success {
		s.logger.Warn("photo upload failed, submitting without it",
			zap.String("photo", name), zap.String("error", upload.Error))
		return ""
	}
	return upload.URL
}

// persistMirror writes the local history copy. The webhook already
// accepted the submission at this point, so failures return a warning
// string instead of an error.
func (s *SubmissionService) persistMirror(ctx context.Context, req dto.SubmitSolicitacaoRequest, payload webhook.SolicitacaoPayload, timestamp time.Time) string {
	if s.mirror == nil {
		return ""
	}

	request := models.MaterialRequest{
		RequestID:             payload.RequestID,
		TimestampEnvio:        timestamp,
		LojaID:                req.LojaID,
		LojaLabel:             req.LojaLabel,
		SolicitanteNome:       req.SolicitanteNome,
		SolicitanteTelefone:   req.SolicitanteTelefone,
		NumeroChamado:         req.NumeroChamado,
		TipoEquipe:            req.TipoEquipe,
		EmpresaTerceira:       req.EmpresaTerceira,
		TipoServico:           req.TipoServico,
		SistemaAfetado:        req.SistemaAfetado,
		DescricaoGeralServico: req.DescricaoGeralServico,
		StatusCompra:          models.StatusCompraInicial,
	}

	items := make([]models.MaterialItem, len(payload.Items))
	for i, item := range payload.Items {
		items[i] = models.MaterialItem{
			RequestID:             payload.RequestID,
			MaterialDescricao:     item.MaterialDescricao,
			MaterialEspecificacao: item.MaterialEspecificacao,
			Quantidade:            item.Quantidade,
			Unidade:               item.Unidade,
			Urgencia:              item.Urgencia,
			Foto1URL:              item.Foto1URL,
			Foto2URL:              item.Foto2URL,
		}
	}

	if err := s.mirror.Save(ctx, request, items); err != nil {
		s.logger.Error("local mirror write failed after webhook success",
			zap.String("request_id", payload.RequestID), zap.Error(err))
		return "Solicitação enviada, mas não foi possível salvar no histórico local"
	}
	return ""
}

func (s *SubmissionService) recordSubmission(result string) {
	if s.metrics != nil {
		s.metrics.RecordSubmission(result)
	}
}
