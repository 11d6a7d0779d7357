package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"interview-evaluator/domain"
	"interview-evaluator/logger"
)

const (
	defaultGeminiModel = "gemini-2.5-flash"

	// Inline request payloads are limited to 20 MB by the Gemini API.
	DefaultMaxRecordingBytes = 20 << 20
)

var defaultGeminiFallbackModels = []string{
	"gemini-2.0-flash",
	"gemini-flash-latest",
}

// GeminiConfig configures the Gemini evaluator.
type GeminiConfig struct {
	APIKey         string
	Backend        string // "gemini" or "vertex"
	Project        string
	Location       string
	Model          string
	FallbackModels []string
	MaxBytes       int64
	MaxLogLength   int
}

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiEvaluator scores interview recordings with a multimodal Gemini model.
type GeminiEvaluator struct {
	generator contentGenerator
	models    []string
	maxBytes  int64
	maxLogLen int
	logger    *zap.Logger
}

// NewGeminiEvaluator creates a Gemini client for the configured backend.
func NewGeminiEvaluator(ctx context.Context, cfg GeminiConfig, log *zap.Logger) (*GeminiEvaluator, error) {
	clientCfg := &genai.ClientConfig{Backend: genai.BackendGeminiAPI}

	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "gemini":
		apiKey := strings.TrimSpace(cfg.APIKey)
		if apiKey == "" {
			return nil, errors.New("GEMINI_API_KEY environment variable not set")
		}
		clientCfg.APIKey = apiKey
	case "vertex":
		if strings.TrimSpace(cfg.Project) == "" || strings.TrimSpace(cfg.Location) == "" {
			return nil, errors.New("vertex backend requires GOOGLE_CLOUD_PROJECT and GOOGLE_CLOUD_LOCATION")
		}
		clientCfg.Backend = genai.BackendVertexAI
		clientCfg.Project = cfg.Project
		clientCfg.Location = cfg.Location
	default:
		return nil, fmt.Errorf("unknown gemini backend %q", cfg.Backend)
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return newGeminiEvaluator(client.Models, cfg, log), nil
}

func newGeminiEvaluator(generator contentGenerator, cfg GeminiConfig, log *zap.Logger) *GeminiEvaluator {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultGeminiModel
	}

	fallbacks := cfg.FallbackModels
	if fallbacks == nil {
		fallbacks = defaultGeminiFallbackModels
	}

	models := []string{model}
	for _, m := range fallbacks {
		m = strings.TrimSpace(m)
		if m != "" && m != model {
			models = append(models, m)
		}
	}

	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxRecordingBytes
	}

	maxLogLen := cfg.MaxLogLength
	if maxLogLen <= 0 {
		maxLogLen = 200
	}

	return &GeminiEvaluator{
		generator: generator,
		models:    models,
		maxBytes:  maxBytes,
		maxLogLen: maxLogLen,
		logger:    logger.WithCommonFields(log, "gemini", model),
	}
}

// Evaluate sends the recording with the rubric prompt, trying the configured
// model first and the fallback models after it.
func (g *GeminiEvaluator) Evaluate(ctx context.Context, req domain.EvaluationRequest) (*domain.EvaluationResult, error) {
	if err := checkRecording(req, g.maxBytes); err != nil {
		return nil, err
	}

	prompt := buildEvaluationPrompt(req.Questions)
	contents := []*genai.Content{{
		Role: genai.RoleUser,
		Parts: []*genai.Part{
			{Text: prompt},
			{InlineData: &genai.Blob{MIMEType: req.MediaType, Data: req.Data}},
		},
	}}
	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0.1),
		ResponseMIMEType: "application/json",
	}

	var lastErr error
	for _, model := range g.models {
		log := g.logger.With(zap.String(logger.FieldModel, model), zap.String("interview_id", req.InterviewID))
		log.Debug("gemini generate content request",
			zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
			zap.String("media_type", req.MediaType),
			zap.Int("recording_bytes", len(req.Data)),
		)

		resp, err := g.generator.GenerateContent(ctx, model, contents, config)
		if err != nil {
			lastErr = classifyGeminiError(err)
			log.Warn("gemini model failed", zap.Error(err))
			if errors.Is(lastErr, domain.ErrPayloadTooLarge) || ctx.Err() != nil {
				return nil, lastErr
			}
			continue
		}

		raw := responseText(resp)
		log.Debug("gemini generate content response",
			zap.Int("response_length", utf8.RuneCountInString(raw)),
			zap.String("response_preview", logger.TruncateForLog(raw, g.maxLogLen)),
		)

		result, err := parseEvaluation(raw, "")
		if err != nil {
			lastErr = err
			log.Warn("gemini response rejected", zap.Error(err))
			continue
		}
		return result, nil
	}

	return nil, fmt.Errorf("all gemini models failed: %w", lastErr)
}

func checkRecording(req domain.EvaluationRequest, maxBytes int64) error {
	if len(req.Data) == 0 {
		return fmt.Errorf("%w: recording is empty", domain.ErrValidation)
	}
	if int64(len(req.Data)) > maxBytes {
		return fmt.Errorf("%w: %d bytes exceeds the %d byte limit", domain.ErrPayloadTooLarge, len(req.Data), maxBytes)
	}
	if strings.TrimSpace(req.MediaType) == "" {
		return fmt.Errorf("%w: media type is required", domain.ErrValidation)
	}
	return nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || strings.TrimSpace(part.Text) == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(strings.TrimSpace(part.Text))
		}
	}
	return strings.TrimSpace(builder.String())
}

func classifyGeminiError(err error) error {
	code, message := 0, ""

	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		code, message = apiErr.Code, apiErr.Message
	case errors.As(err, &apiErrPtr) && apiErrPtr != nil:
		code, message = apiErrPtr.Code, apiErrPtr.Message
	}

	if code == http.StatusRequestEntityTooLarge || (code == http.StatusBadRequest && mentionsSizeLimit(message)) {
		return fmt.Errorf("%w: %v", domain.ErrPayloadTooLarge, err)
	}
	if isClientRejection(code) {
		return fmt.Errorf("%w: %v", domain.ErrProviderRejected, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
}

// isClientRejection reports 4xx statuses that will fail the same way on retry.
// Request timeout and rate limiting are transient.
func isClientRejection(code int) bool {
	if code < 400 || code >= 500 {
		return false
	}
	return code != http.StatusRequestTimeout && code != http.StatusTooManyRequests
}

func mentionsSizeLimit(message string) bool {
	message = strings.ToLower(message)
	return strings.Contains(message, "too large") ||
		strings.Contains(message, "exceeds") ||
		strings.Contains(message, "payload size")
}
