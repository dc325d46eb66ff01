package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/JaymarM28/kari-transcriptor/domain"
	"github.com/JaymarM28/kari-transcriptor/domain/entities"
	"github.com/JaymarM28/kari-transcriptor/domain/repositories"
	"github.com/JaymarM28/kari-transcriptor/internal/stream"
)

// Room left for multipart framing on top of the file size limit.
const multipartOverhead = 1 << 20

// Transcriber starts a transcription job and streams its progress
type Transcriber interface {
	Stream(ctx context.Context, job *entities.Job) <-chan domain.ProgressEvent
}

// Handler serves the upload and transcription endpoints
type Handler struct {
	storage     repositories.UploadStorage
	transcriber Transcriber
	hub         *stream.Hub
	maxBytes    int64
	extensions  string
	validate    *validator.Validate
	logger      *zap.Logger
}

// NewHandler creates a new API handler. Uploads larger than maxBytes or
// whose extension is not in allowedExtensions are rejected.
func NewHandler(
	storage repositories.UploadStorage,
	transcriber Transcriber,
	hub *stream.Hub,
	maxBytes int64,
	allowedExtensions []string,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		storage:     storage,
		transcriber: transcriber,
		hub:         hub,
		maxBytes:    maxBytes,
		extensions:  strings.Join(allowedExtensions, " "),
		validate:    validator.New(),
		logger:      logger,
	}
}

// Upload stores a multipart "file" field and returns the job filename
func (h *Handler) Upload(c echo.Context) error {
	req := c.Request()
	req.Body = http.MaxBytesReader(c.Response(), req.Body, h.maxBytes+multipartOverhead)

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return h.reject(c, &domain.ValidationError{Field: "file", Message: "File too large"})
		case errors.Is(err, http.ErrMissingFile):
			return h.reject(c, &domain.ValidationError{Field: "file", Message: "No file was sent"})
		default:
			h.logger.Warn("Failed to parse upload form", zap.Error(err))
			return h.reject(c, &domain.ValidationError{Field: "file", Message: "No file was sent"})
		}
	}

	if err := h.validateUpload(header.Filename, header.Size); err != nil {
		return h.reject(c, err)
	}

	src, err := header.Open()
	if err != nil {
		h.logger.Error("Failed to open uploaded file", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, errorResponse("Failed to read uploaded file"))
	}
	defer src.Close()

	job, err := h.storage.Save(req.Context(), header.Filename, src)
	if err != nil {
		h.logger.Error("Failed to store upload",
			zap.String("filename", header.Filename),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, errorResponse("Failed to store uploaded file"))
	}

	return c.JSON(http.StatusOK, UploadResponse{
		Success:  true,
		Filename: job.ID,
	})
}

func (h *Handler) validateUpload(filename string, size int64) error {
	if filename == "" {
		return &domain.ValidationError{Field: "file", Message: "No file was selected"}
	}
	ext := entities.ExtensionOf(filename)
	if err := h.validate.Var(ext, "required,oneof="+h.extensions); err != nil {
		return &domain.ValidationError{Field: "file", Message: "File type not allowed"}
	}
	if size > h.maxBytes {
		return &domain.ValidationError{Field: "file", Message: "File too large"}
	}
	return nil
}

func (h *Handler) reject(c echo.Context, err error) error {
	var validationErr *domain.ValidationError
	if !errors.As(err, &validationErr) {
		return c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	}
	h.logger.Info("Upload rejected", zap.String("reason", validationErr.Message))
	return c.JSON(http.StatusBadRequest, errorResponse(validationErr.Message))
}

// TranscribeSSE streams the progress of a stored upload as server-sent events
func (h *Handler) TranscribeSSE(c echo.Context) error {
	job, err := h.acquire(c)
	if job == nil {
		return err
	}
	defer h.hub.Release(job.ID)

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	events := h.transcriber.Stream(ctx, job)
	err = stream.ServeSSE(c.Response(), c.Request(), events, h.logger.With(zap.String("jobID", job.ID)))
	cancel()
	stream.Drain(events)

	if err != nil {
		h.logger.Info("SSE stream ended early", zap.String("jobID", job.ID), zap.Error(err))
	}
	return nil
}

// TranscribeWebSocket streams the progress of a stored upload over a websocket
func (h *Handler) TranscribeWebSocket(c echo.Context) error {
	job, err := h.acquire(c)
	if job == nil {
		return err
	}
	defer h.hub.Release(job.ID)

	source := func(ctx context.Context) <-chan domain.ProgressEvent {
		return h.transcriber.Stream(ctx, job)
	}
	_ = stream.ServeWebSocket(c.Response(), c.Request(), source, h.logger.With(zap.String("jobID", job.ID)))
	return nil
}

// acquire resolves the requested upload and claims its stream slot. A nil
// job means the response has already been written.
func (h *Handler) acquire(c echo.Context) (*entities.Job, error) {
	name := c.Param("filename")

	job, err := h.storage.Resolve(c.Request().Context(), name)
	if errors.Is(err, domain.ErrUploadNotFound) {
		return nil, c.JSON(http.StatusNotFound, errorResponse("File not found"))
	}
	if err != nil {
		h.logger.Error("Failed to resolve upload", zap.String("filename", name), zap.Error(err))
		return nil, c.JSON(http.StatusInternalServerError, errorResponse("Failed to read uploaded file"))
	}

	if err := h.hub.Acquire(job.ID); err != nil {
		return nil, c.JSON(http.StatusConflict, errorResponse("File is already being transcribed"))
	}
	return job, nil
}
