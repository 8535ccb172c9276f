package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vanzer80/solicitacao-materiais-api/internal/service"
	appErrors "github.com/vanzer80/solicitacao-materiais-api/pkg/errors"
	"github.com/vanzer80/solicitacao-materiais-api/pkg/response"
)

// UploadHandler accepts standalone photo uploads (multipart), used by
// clients that upload photos ahead of submitting the form.
type UploadHandler struct {
	uploads *service.UploadService
	maxSize int64
}

// NewUploadHandler constructs UploadHandler.
func NewUploadHandler(uploads *service.UploadService, maxSize int64) *UploadHandler {
	if maxSize <= 0 {
		maxSize = 5 * 1024 * 1024
	}
	return &UploadHandler{uploads: uploads, maxSize: maxSize}
}

// Upload godoc
// @Summary Upload one photo
// @Tags Uploads
// @Accept multipart/form-data
// @Produce json
// @Param foto formData file true "Photo file"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /uploads [post]
func (h *UploadHandler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxSize+4096)

	fileHeader, err := c.FormFile("foto")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "campo foto é obrigatório"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.ErrInternal.Wrap(err))
		return
	}
	defer file.Close() //nolint:errcheck

	data, err := io.ReadAll(io.LimitReader(file, h.maxSize+1))
	if err != nil {
		response.Error(c, appErrors.ErrInternal.Wrap(err))
		return
	}

	result := h.uploads.Store(c.Request.Context(), fileHeader.Filename, fileHeader.Header.Get("Content-Type"), data)
	if !result.Success {
		response.Error(c, appErrors.ErrValidation.WithMessage(result.Error))
		return
	}
	response.Created(c, result)
}
