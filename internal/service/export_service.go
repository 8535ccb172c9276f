package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vanzer80/solicitacao-materiais-api/internal/dto"
	"github.com/vanzer80/solicitacao-materiais-api/internal/models"
	appErrors "github.com/vanzer80/solicitacao-materiais-api/pkg/errors"
	"github.com/vanzer80/solicitacao-materiais-api/pkg/export"
	"github.com/vanzer80/solicitacao-materiais-api/pkg/jobs"
	"github.com/vanzer80/solicitacao-materiais-api/pkg/storage"
)

const jobTypeHistoricoExport = "historico_export"

type exportJobStore interface {
	Create(ctx context.Context, job models.ExportJob) error
	FindByID(ctx context.Context, id string) (*models.ExportJob, error)
	MarkProcessing(ctx context.Context, id string) error
	MarkDone(ctx context.Context, id, filePath, downloadToken string, expiresAt time.Time) error
	MarkFailed(ctx context.Context, id, message string) error
	DeleteExpired(ctx context.Context, now time.Time) ([]string, error)
}

type exportListSource interface {
	List(ctx context.Context, filter models.SolicitacaoFilter) ([]models.MaterialRequest, int, error)
	CountItemsByRequestIDs(ctx context.Context, requestIDs []string) (map[string]int, error)
}

type exportFileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportService generates history exports asynchronously: a request
// creates a job row and enqueues rendering on the worker pool; callers
// poll the job until a signed download URL appears.
type ExportService struct {
	jobsRepo exportJobStore
	source   exportListSource
	storage  exportFileStorage
	signer   *storage.SignedURLSigner
	queue    *jobs.Queue
	csv      csvRenderer
	pdf      pdfRenderer
	logger   *zap.Logger

	apiPrefix string
}

// NewExportService constructs the service and its queue. Call Start before
// accepting export requests.
func NewExportService(jobsRepo exportJobStore, source exportListSource, fileStorage exportFileStorage,
	signer *storage.SignedURLSigner, apiPrefix string, workers, retries int, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ExportService{
		jobsRepo:  jobsRepo,
		source:    source,
		storage:   fileStorage,
		signer:    signer,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		logger:    logger,
		apiPrefix: apiPrefix,
	}
	s.queue = jobs.NewQueue("exports", s.handleJob, jobs.QueueConfig{
		Workers:    workers,
		MaxRetries: retries,
		Logger:     logger,
	})
	return s
}

// Start launches the export workers.
func (s *ExportService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the export workers.
func (s *ExportService) Stop() {
	s.queue.Stop()
}

// Request creates a new export job and schedules it.
func (s *ExportService) Request(ctx context.Context, req dto.ExportRequest) (*dto.ExportStatus, error) {
	filterJSON, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal export filter: %w", err)
	}

	job := models.ExportJob{
		ID:         uuid.NewString(),
		Formato:    req.Formato,
		Status:     models.ExportStatusPending,
		FilterJSON: string(filterJSON),
	}
	if err := s.jobsRepo.Create(ctx, job); err != nil {
		return nil, err
	}

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: jobTypeHistoricoExport, Payload: job.ID}); err != nil {
		s.logger.Error("export enqueue failed", zap.String("job_id", job.ID), zap.Error(err))
		_ = s.jobsRepo.MarkFailed(ctx, job.ID, "fila de exportação indisponível")
		return nil, appErrors.ErrInternal.WithMessage("Não foi possível agendar a exportação")
	}

	status := s.toStatus(&job)
	return &status, nil
}

// Status returns the current state of a job, including the download URL
// once rendering finished.
func (s *ExportService) Status(ctx context.Context, id string) (*dto.ExportStatus, error) {
	job, err := s.jobsRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, appErrors.ErrNotFound.WithMessage("Exportação não encontrada")
	}
	status := s.toStatus(job)
	return &status, nil
}

// OpenDownload validates a signed token and opens the rendered file.
func (s *ExportService) OpenDownload(ctx context.Context, token string) (*os.File, *models.ExportJob, error) {
	jobID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, nil, appErrors.ErrForbidden.WithMessage("Link de download inválido ou expirado")
	}

	job, err := s.jobsRepo.FindByID(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	if job == nil || job.Status != models.ExportStatusDone || job.FilePath != relPath {
		return nil, nil, appErrors.ErrNotFound.WithMessage("Exportação não encontrada")
	}

	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, nil, appErrors.ErrNotFound.WithMessage("Arquivo de exportação não encontrado")
	}
	return file, job, nil
}

// CleanupExpired deletes expired jobs and their files. Meant to run on a
// ticker from main.
func (s *ExportService) CleanupExpired(ctx context.Context) {
	paths, err := s.jobsRepo.DeleteExpired(ctx, time.Now())
	if err != nil {
		s.logger.Warn("export cleanup failed", zap.Error(err))
		return
	}
	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := s.storage.Delete(path); err != nil {
			s.logger.Warn("export file cleanup failed", zap.String("path", path), zap.Error(err))
		}
	}
	if len(paths) > 0 {
		s.logger.Info("expired exports removed", zap.Int("count", len(paths)))
	}
}

func (s *ExportService) handleJob(ctx context.Context, job jobs.Job) error {
	jobID, ok := job.Payload.(string)
	if !ok || jobID == "" {
		return fmt.Errorf("export job without id")
	}

	record, err := s.jobsRepo.FindByID(ctx, jobID)
	if err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("export job %s vanished", jobID)
	}

	if err := s.jobsRepo.MarkProcessing(ctx, jobID); err != nil {
		return err
	}

	if err := s.render(ctx, record); err != nil {
		s.logger.Error("export rendering failed", zap.String("job_id", jobID), zap.Error(err))
		if markErr := s.jobsRepo.MarkFailed(ctx, jobID, err.Error()); markErr != nil {
			s.logger.Error("export failure not recorded", zap.String("job_id", jobID), zap.Error(markErr))
		}
		return nil
	}
	return nil
}

func (s *ExportService) render(ctx context.Context, job *models.ExportJob) error {
	var req dto.ExportRequest
	if err := json.Unmarshal([]byte(job.FilterJSON), &req); err != nil {
		return fmt.Errorf("unmarshal export filter: %w", err)
	}

	dataset, err := s.buildDataset(ctx, req)
	if err != nil {
		return err
	}

	var rendered []byte
	extension := models.ExportFormatCSV
	switch job.Formato {
	case models.ExportFormatPDF:
		extension = models.ExportFormatPDF
		rendered, err = s.pdf.Render(dataset, "Histórico de Solicitações de Materiais")
	default:
		rendered, err = s.csv.Render(dataset)
	}
	if err != nil {
		return fmt.Errorf("render export: %w", err)
	}

	relPath := fmt.Sprintf("historico-%s.%s", job.ID, extension)
	if _, err := s.storage.Save(relPath, rendered); err != nil {
		return fmt.Errorf("store export: %w", err)
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return fmt.Errorf("sign export url: %w", err)
	}
	return s.jobsRepo.MarkDone(ctx, job.ID, relPath, token, expiresAt)
}

// buildDataset pages through the filtered history so huge exports do not
// load everything in one query.
func (s *ExportService) buildDataset(ctx context.Context, req dto.ExportRequest) (export.Dataset, error) {
	headers := []string{"Request ID", "Data de Envio", "Loja", "Solicitante", "Tipo de Equipe",
		"Tipo de Serviço", "Sistema Afetado", "Status de Compra", "Total de Itens"}
	dataset := export.Dataset{Headers: headers}

	filter, err := buildFilter(dto.HistoricoQuery{
		DataInicio: req.DataInicio,
		DataFim:    req.DataFim,
		LojaID:     req.LojaID,
		RequestID:  req.RequestID,
		Limite:     100,
		OrdenarPor: "data_desc",
	})
	if err != nil {
		return dataset, err
	}

	for page := 1; ; page++ {
		filter.Pagina = page
		requests, total, err := s.source.List(ctx, filter)
		if err != nil {
			return dataset, err
		}
		if len(requests) == 0 {
			break
		}

		ids := make([]string, len(requests))
		for i, r := range requests {
			ids[i] = r.RequestID
		}
		counts, err := s.source.CountItemsByRequestIDs(ctx, ids)
		if err != nil {
			return dataset, err
		}

		for _, r := range requests {
			dataset.Rows = append(dataset.Rows, map[string]string{
				"Request ID":       r.RequestID,
				"Data de Envio":    r.TimestampEnvio.Format("02/01/2006 15:04"),
				"Loja":             r.LojaLabel,
				"Solicitante":      r.SolicitanteNome,
				"Tipo de Equipe":   r.TipoEquipe,
				"Tipo de Serviço":  r.TipoServico,
				"Sistema Afetado":  r.SistemaAfetado,
				"Status de Compra": r.StatusCompra,
				"Total de Itens":   strconv.Itoa(counts[r.RequestID]),
			})
		}

		if len(dataset.Rows) >= total {
			break
		}
	}
	return dataset, nil
}

func (s *ExportService) toStatus(job *models.ExportJob) dto.ExportStatus {
	status := dto.ExportStatus{
		ID:        job.ID,
		Formato:   job.Formato,
		Status:    job.Status,
		Error:     job.ErrorMessage,
		ExpiresAt: job.ExpiresAt,
		CreatedAt: job.CreatedAt,
	}
	if job.Status == models.ExportStatusDone && job.DownloadToken != "" {
		status.DownloadURL = s.apiPrefix + "/historico/exportacoes/download?token=" + job.DownloadToken
	}
	return status
}
