package interfaces

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"interview-evaluator/application"
	"interview-evaluator/domain"
)

// InterviewService is what the HTTP layer needs from the application.
type InterviewService interface {
	Start(ctx context.Context, subjectID string) (*domain.InterviewSession, error)
	Complete(ctx context.Context, id string) (domain.Status, error)
	Status(ctx context.Context, id string) (domain.StatusView, error)
	EvaluateUpload(ctx context.Context, req application.UploadRequest) (*domain.EvaluationResult, error)
}

type HTTPHandler struct {
	Service        InterviewService
	Logger         *zap.Logger
	MaxUploadBytes int64
}

// NewHTTPHandler registers the interview routes on router.
func NewHTTPHandler(router *gin.Engine, service InterviewService, maxUploadBytes int64, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &HTTPHandler{Service: service, Logger: logger, MaxUploadBytes: maxUploadBytes}

	router.GET("/healthz", h.Health)

	interviews := router.Group("/interviews")
	interviews.POST("/start", h.Start)
	interviews.POST("/:id/complete", h.Complete)
	interviews.GET("/:id/status", h.Status)

	router.POST("/interview/upload", h.Upload)
}

type startRequest struct {
	SubjectID string `json:"subject_id" binding:"required"`
}

// Start opens a new interview and returns its fixed question set.
func (h *HTTPHandler) Start(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "subject_id is required"})
		return
	}

	session, err := h.Service.Start(c.Request.Context(), req.SubjectID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"interview_id": session.ID,
		"questions":    session.Questions,
	})
}

// Complete flips the interview to processing and returns without waiting for the evaluation.
func (h *HTTPHandler) Complete(c *gin.Context) {
	status, err := h.Service.Complete(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": status})
}

// Status returns the polling projection.
func (h *HTTPHandler) Status(c *gin.Context) {
	view, err := h.Service.Status(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// Upload stores the recording against the interview (when given) and evaluates it synchronously.
func (h *HTTPHandler) Upload(c *gin.Context) {
	header, err := c.FormFile("video")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "video file is required"})
		return
	}

	data, mediaType, err := h.readVideo(header)
	if err != nil {
		h.writeError(c, err)
		return
	}

	result, err := h.Service.EvaluateUpload(c.Request.Context(), application.UploadRequest{
		SubjectID:   c.PostForm("tenant_id"),
		InterviewID: c.PostForm("interview_id"),
		FileName:    header.Filename,
		MediaType:   mediaType,
		Data:        data,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transcript":        result.Transcript,
		"score":             result.Score,
		"score_explanation": result.ScoreExplanation,
		"breakdown":         result.Breakdown,
		"suggestions":       result.Suggestions,
	})
}

func (h *HTTPHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HTTPHandler) readVideo(header *multipart.FileHeader) ([]byte, string, error) {
	if header.Size == 0 {
		return nil, "", fmt.Errorf("%w: video file is empty", domain.ErrValidation)
	}
	if h.MaxUploadBytes > 0 && header.Size > h.MaxUploadBytes {
		return nil, "", fmt.Errorf("%w: %d bytes exceeds the %d byte limit", domain.ErrPayloadTooLarge, header.Size, h.MaxUploadBytes)
	}

	file, err := header.Open()
	if err != nil {
		return nil, "", fmt.Errorf("%w: failed to open video file: %v", domain.ErrInternal, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", fmt.Errorf("%w: failed to read video file: %v", domain.ErrInternal, err)
	}

	mediaType := strings.TrimSpace(header.Header.Get("Content-Type"))
	if mediaType == "" || mediaType == "application/octet-stream" {
		mediaType = http.DetectContentType(data)
	}
	return data, mediaType, nil
}

func (h *HTTPHandler) writeError(c *gin.Context, err error) {
	status := StatusCode(err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.Error(err),
		)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// StatusCode maps the error taxonomy onto HTTP statuses. Evaluation failures
// reaching a synchronous caller are server errors.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidState):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
