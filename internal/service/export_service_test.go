package service

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vanzer80/solicitacao-materiais-api/internal/dto"
	"github.com/vanzer80/solicitacao-materiais-api/internal/models"
	"github.com/vanzer80/solicitacao-materiais-api/pkg/storage"
)

type memoryJobStore struct {
	mu   sync.Mutex
	jobs map[string]models.ExportJob
}

func newMemoryJobStore() *memoryJobStore {
	return &memoryJobStore{jobs: map[string]models.ExportJob{}}
}

func (s *memoryJobStore) Create(_ context.Context, job models.ExportJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job.CreatedAt = time.Now()
	s.jobs[job.ID] = job
	return nil
}

func (s *memoryJobStore) FindByID(_ context.Context, id string) (*models.ExportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, nil
	}
	return &job, nil
}

func (s *memoryJobStore) MarkProcessing(_ context.Context, id string) error {
	return s.update(id, func(job *models.ExportJob) { job.Status = models.ExportStatusProcessing })
}

func (s *memoryJobStore) MarkDone(_ context.Context, id, filePath, token string, expiresAt time.Time) error {
	return s.update(id, func(job *models.ExportJob) {
		job.Status = models.ExportStatusDone
		job.FilePath = filePath
		job.DownloadToken = token
		job.ExpiresAt = &expiresAt
	})
}

func (s *memoryJobStore) MarkFailed(_ context.Context, id, message string) error {
	return s.update(id, func(job *models.ExportJob) {
		job.Status = models.ExportStatusFailed
		job.ErrorMessage = message
	})
}

func (s *memoryJobStore) DeleteExpired(_ context.Context, now time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var paths []string
	for id, job := range s.jobs {
		if job.ExpiresAt != nil && job.ExpiresAt.Before(now) {
			paths = append(paths, job.FilePath)
			delete(s.jobs, id)
		}
	}
	return paths, nil
}

func (s *memoryJobStore) update(id string, fn func(*models.ExportJob)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := s.jobs[id]
	fn(&job)
	s.jobs[id] = job
	return nil
}

type fixedListSource struct {
	requests []models.MaterialRequest
}

func (f *fixedListSource) List(_ context.Context, filter models.SolicitacaoFilter) ([]models.MaterialRequest, int, error) {
	if filter.Pagina > 1 {
		return nil, len(f.requests), nil
	}
	return f.requests, len(f.requests), nil
}

func (f *fixedListSource) CountItemsByRequestIDs(_ context.Context, ids []string) (map[string]int, error) {
	out := map[string]int{}
	for _, id := range ids {
		out[id] = 2
	}
	return out, nil
}

func newExportFixture(t *testing.T) (*ExportService, *memoryJobStore, context.CancelFunc) {
	t.Helper()
	fileStorage, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	source := &fixedListSource{requests: []models.MaterialRequest{
		{RequestID: "20260829-100000-AAAAAA", LojaLabel: "Loja 1", TimestampEnvio: time.Now(), StatusCompra: models.StatusCompraInicial},
	}}
	store := newMemoryJobStore()
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	svc := NewExportService(store, source, fileStorage, signer, "/api/v1", 1, 1, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	svc.Start(ctx)
	t.Cleanup(svc.Stop)
	return svc, store, cancel
}

func waitForStatus(t *testing.T, svc *ExportService, id, want string) dto.ExportStatus {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		status, err := svc.Status(context.Background(), id)
		require.NoError(t, err)
		if status.Status == want {
			return *status
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s never reached status %s", id, want)
	return dto.ExportStatus{}
}

func TestExportCSVEndToEnd(t *testing.T) {
	svc, _, cancel := newExportFixture(t)
	defer cancel()

	status, err := svc.Request(context.Background(), dto.ExportRequest{Formato: models.ExportFormatCSV})
	require.NoError(t, err)
	require.Equal(t, models.ExportStatusPending, status.Status)

	done := waitForStatus(t, svc, status.ID, models.ExportStatusDone)
	require.NotEmpty(t, done.DownloadURL)
	assert.Contains(t, done.DownloadURL, "/api/v1/historico/exportacoes/download?token=")

	job, err := svc.jobsRepo.FindByID(context.Background(), status.ID)
	require.NoError(t, err)

	file, meta, err := svc.OpenDownload(context.Background(), job.DownloadToken)
	require.NoError(t, err)
	defer file.Close()

	content, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Equal(t, models.ExportFormatCSV, meta.Formato)
	assert.Contains(t, string(content), "20260829-100000-AAAAAA")
	assert.Contains(t, string(content), "Request ID")
}

func TestExportPDFEndToEnd(t *testing.T) {
	svc, _, cancel := newExportFixture(t)
	defer cancel()

	status, err := svc.Request(context.Background(), dto.ExportRequest{Formato: models.ExportFormatPDF})
	require.NoError(t, err)

	done := waitForStatus(t, svc, status.ID, models.ExportStatusDone)
	assert.NotEmpty(t, done.DownloadURL)
}

func TestExportDownloadRejectsTamperedToken(t *testing.T) {
	svc, _, cancel := newExportFixture(t)
	defer cancel()

	status, err := svc.Request(context.Background(), dto.ExportRequest{Formato: models.ExportFormatCSV})
	require.NoError(t, err)
	waitForStatus(t, svc, status.ID, models.ExportStatusDone)

	job, err := svc.jobsRepo.FindByID(context.Background(), status.ID)
	require.NoError(t, err)

	_, _, err = svc.OpenDownload(context.Background(), job.DownloadToken+"x")
	assert.Error(t, err)
}

func TestExportStatusUnknownJob(t *testing.T) {
	svc, _, cancel := newExportFixture(t)
	defer cancel()

	_, err := svc.Status(context.Background(), "no-such-job")
	assert.Error(t, err)
}

func TestExportCleanupRemovesExpired(t *testing.T) {
	svc, store, cancel := newExportFixture(t)
	defer cancel()

	status, err := svc.Request(context.Background(), dto.ExportRequest{Formato: models.ExportFormatCSV})
	require.NoError(t, err)
	waitForStatus(t, svc, status.ID, models.ExportStatusDone)

	expired := time.Now().Add(-time.Minute)
	require.NoError(t, store.update(status.ID, func(job *models.ExportJob) { job.ExpiresAt = &expired }))

	svc.CleanupExpired(context.Background())

	job, err := store.FindByID(context.Background(), status.ID)
	require.NoError(t, err)
	assert.Nil(t, job)
}
