package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/that-cod/reepost-ai-sub001/internal/media"
	"github.com/that-cod/reepost-ai-sub001/pkg/api/common"
	"github.com/that-cod/reepost-ai-sub001/pkg/auth"
	"github.com/that-cod/reepost-ai-sub001/pkg/logging"
)

// multipartOverhead leaves room for boundaries and headers around the file.
const multipartOverhead = 1 << 20

type MediaHandler struct {
	uploader MediaUploader
	logger   logging.Logger
}

func NewMediaHandler(uploader MediaUploader, logger logging.Logger) *MediaHandler {
	return &MediaHandler{uploader: uploader, logger: logger}
}

// Upload serves POST /api/media with a multipart "file" field.
func (h *MediaHandler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, media.MaxUploadSize+multipartOverhead)

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, h.logger, media.ErrTooLarge)
			return
		}
		common.Abort(c, http.StatusBadRequest, common.CodeValidation, "Missing file")
		return
	}
	if fh.Size > media.MaxUploadSize {
		respondError(c, h.logger, media.ErrTooLarge)
		return
	}

	f, err := fh.Open()
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	defer f.Close()

	upload, err := h.uploader.Upload(c.Request.Context(), auth.CurrentUserID(c), f, fh.Header.Get("Content-Type"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, upload)
}
