package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vanzer80/solicitacao-materiais-api/internal/dto"
	"github.com/vanzer80/solicitacao-materiais-api/pkg/config"
)

type uploadStorage interface {
	Save(filename string, data []byte) (string, error)
	Delete(filename string) error
}

type uploadRecorder interface {
	RecordUpload(success bool)
}

// UploadService stores validated photos and hands back public URLs. It
// never returns Go errors for per-photo problems: every outcome is a
// dto.UploadResult so the submission pipeline can treat photos as
// best-effort enrichment.
type UploadService struct {
	storage   uploadStorage
	cfg       config.UploadsConfig
	publicURL string
	logger    *zap.Logger
	metrics   uploadRecorder
}

// NewUploadService constructs the service. The metrics recorder may be nil.
func NewUploadService(storage uploadStorage, cfg config.UploadsConfig, publicBaseURL string, logger *zap.Logger, metrics uploadRecorder) *UploadService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UploadService{
		storage:   storage,
		cfg:       cfg,
		publicURL: strings.TrimRight(publicBaseURL, "/"),
		logger:    logger,
		metrics:   metrics,
	}
}

// Store validates and persists one photo, returning its public URL on
// success and a human-readable reason on failure.
func (s *UploadService) Store(ctx context.Context, name, mimeType string, data []byte) dto.UploadResult {
	result := s.store(ctx, name, mimeType, data)
	if s.metrics != nil {
		s.metrics.RecordUpload(result.Success)
	}
	return result
}

func (s *UploadService) store(_ context.Context, name, mimeType string, data []byte) dto.UploadResult {
	if len(data) == 0 {
		return dto.UploadResult{Error: "Arquivo vazio"}
	}
	if int64(len(data)) > s.maxFileSize() {
		return dto.UploadResult{Error: fmt.Sprintf("Arquivo excede o limite de %d bytes", s.maxFileSize())}
	}
	if !s.mimeAllowed(mimeType) {
		return dto.UploadResult{Error: "Tipo de arquivo não permitido: " + mimeType}
	}

	key := s.objectKey(mimeType)
	if _, err := s.storage.Save(key, data); err != nil {
		s.logger.Error("photo upload failed",
			zap.String("name", name), zap.String("key", key), zap.Error(err))
		return dto.UploadResult{Error: "Falha ao salvar arquivo"}
	}

	url := s.publicURL + "/uploads/" + key
	s.logger.Info("photo stored",
		zap.String("name", name), zap.String("key", key), zap.Int("size", len(data)))
	return dto.UploadResult{Success: true, URL: url}
}

// Remove deletes a stored photo given its public URL. Used to undo partial
// uploads, so failures are only logged.
func (s *UploadService) Remove(url string) {
	prefix := s.publicURL + "/uploads/"
	if !strings.HasPrefix(url, prefix) {
		return
	}
	key := strings.TrimPrefix(url, prefix)
	if err := s.storage.Delete(key); err != nil {
		s.logger.Warn("photo cleanup failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *UploadService) maxFileSize() int64 {
	if s.cfg.MaxFileSizeBytes > 0 {
		return s.cfg.MaxFileSizeBytes
	}
	return 5 * 1024 * 1024
}

func (s *UploadService) mimeAllowed(mimeType string) bool {
	allowed := s.cfg.AllowedMIMEs
	if len(allowed) == 0 {
		allowed = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}
	}
	normalized := strings.ToLower(strings.TrimSpace(mimeType))
	for _, m := range allowed {
		if normalized == strings.ToLower(m) {
			return true
		}
	}
	return false
}

// objectKey builds "solicitacoes/<unix-ms>-<rand6>.<ext>" so concurrent
// uploads never collide and listings sort chronologically.
func (s *UploadService) objectKey(mimeType string) string {
	const charset = "abcdefghijklmnopqrstuvwxyz0123456789"
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err == nil {
		for i := range buf {
			buf[i] = charset[int(buf[i])%len(charset)]
		}
	} else {
		copy(buf, "000000")
	}
	return fmt.Sprintf("solicitacoes/%d-%s.%s", time.Now().UnixMilli(), string(buf), extensionFor(mimeType))
}

func extensionFor(mimeType string) string {
	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case "image/png":
		return "png"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	default:
		return "jpg"
	}
}
