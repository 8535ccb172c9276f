package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vanzer80/solicitacao-materiais-api/pkg/config"
)

type stubUploadStorage struct {
	saved   map[string][]byte
	deleted []string
	failSave bool
}

func newStubUploadStorage() *stubUploadStorage {
	return &stubUploadStorage{saved: map[string][]byte{}}
}

func (s *stubUploadStorage) Save(filename string, data []byte) (string, error) {
	if s.failSave {
		return "", assert.AnError
	}
	s.saved[filename] = data
	return filename, nil
}

func (s *stubUploadStorage) Delete(filename string) error {
	s.deleted = append(s.deleted, filename)
	return nil
}

func newUploadFixture(storage *stubUploadStorage) *UploadService {
	cfg := config.UploadsConfig{
		MaxFileSizeBytes: 1024,
		AllowedMIMEs:     []string{"image/jpeg", "image/png"},
	}
	return NewUploadService(storage, cfg, "http://localhost:8080/", zap.NewNop(), nil)
}

func TestUploadStoreSuccess(t *testing.T) {
	storage := newStubUploadStorage()
	svc := newUploadFixture(storage)

	result := svc.Store(context.Background(), "foto1", "image/jpeg", []byte("jpeg-bytes"))
	require.True(t, result.Success)
	assert.True(t, strings.HasPrefix(result.URL, "http://localhost:8080/uploads/solicitacoes/"), result.URL)
	assert.True(t, strings.HasSuffix(result.URL, ".jpg"), result.URL)
	assert.Len(t, storage.saved, 1)
}

func TestUploadStoreRejectsOversize(t *testing.T) {
	svc := newUploadFixture(newStubUploadStorage())

	result := svc.Store(context.Background(), "foto1", "image/jpeg", make([]byte, 2048))
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "limite")
}

func TestUploadStoreRejectsDisallowedMIME(t *testing.T) {
	svc := newUploadFixture(newStubUploadStorage())

	result := svc.Store(context.Background(), "doc", "application/pdf", []byte("%PDF"))
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "não permitido")
}

func TestUploadStoreRejectsEmpty(t *testing.T) {
	svc := newUploadFixture(newStubUploadStorage())

	result := svc.Store(context.Background(), "foto1", "image/jpeg", nil)
	assert.False(t, result.Success)
}

func TestUploadStoreStorageFailureIsResultNotError(t *testing.T) {
	storage := newStubUploadStorage()
	storage.failSave = true
	svc := newUploadFixture(storage)

	result := svc.Store(context.Background(), "foto1", "image/jpeg", []byte("jpeg-bytes"))
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
}

func TestUploadRemoveOnlyTouchesOwnURLs(t *testing.T) {
	storage := newStubUploadStorage()
	svc := newUploadFixture(storage)

	svc.Remove("http://localhost:8080/uploads/solicitacoes/123-abc.jpg")
	require.Equal(t, []string{"solicitacoes/123-abc.jpg"}, storage.deleted)

	svc.Remove("https://elsewhere.example/file.jpg")
	assert.Len(t, storage.deleted, 1)
}

func TestUploadKeyExtensionFollowsMIME(t *testing.T) {
	storage := newStubUploadStorage()
	svc := newUploadFixture(storage)

	result := svc.Store(context.Background(), "foto", "image/png", []byte("png-bytes"))
	require.True(t, result.Success)
	assert.True(t, strings.HasSuffix(result.URL, ".png"), result.URL)
}
