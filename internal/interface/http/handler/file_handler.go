package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/gateway"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/interface/http/dto"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/interface/http/response"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/logger"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/pkg/apperror"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/storage"
)

// FileHandler принимает файлы сдачи этапов и доказательства по спорам.
type FileHandler struct {
	store    gateway.FileStore
	maxBytes int64
}

func NewFileHandler(store gateway.FileStore, maxUploadMB int64) *FileHandler {
	return &FileHandler{store: store, maxBytes: maxUploadMB * 1024 * 1024}
}

// Upload обрабатывает POST /api/files (multipart, поле file).
func (h *FileHandler) Upload(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	// запас на multipart заголовки
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+1024*1024)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, apperror.New(apperror.ErrCodeValidation, "файл слишком большой"))
			return
		}
		response.BadRequest(c, "файл не передан")
		return
	}
	if fileHeader.Size > h.maxBytes {
		response.Error(c, apperror.New(apperror.ErrCodeValidation, "файл слишком большой"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.BadRequest(c, "не удалось открыть файл")
		return
	}
	defer file.Close()

	sniffed, err := storage.Sniff(file)
	if err != nil {
		response.Error(c, err)
		return
	}

	url, err := h.store.Store(c.Request.Context(), sniffed.Reader, gateway.FileMeta{
		OwnerID:     actor.UserID,
		Name:        fileHeader.Filename,
		ContentType: sniffed.ContentType,
		Size:        fileHeader.Size,
	})
	if err != nil {
		logger.Log.WithError(err).WithField("user_id", actor.UserID).Error("не удалось сохранить файл")
		response.Error(c, err)
		return
	}

	response.Created(c, dto.UploadResponse{
		URL:         url,
		ContentType: sniffed.ContentType,
		Size:        fileHeader.Size,
	})
}
