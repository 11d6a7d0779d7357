package infrastructure

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"interview-evaluator/domain"
	"interview-evaluator/logger"
)

const (
	defaultOpenAIModel              = "gpt-4o-mini"
	defaultOpenAITranscriptionModel = openai.Whisper1

	// The transcription endpoint rejects uploads above 25 MB.
	openAIMaxRecordingBytes = 25 << 20
)

// OpenAIConfig configures the OpenAI evaluator.
type OpenAIConfig struct {
	APIKey             string
	BaseURL            string
	Model              string
	TranscriptionModel string
	MaxBytes           int64
	MaxLogLength       int
}

type openAIClient interface {
	CreateTranscription(ctx context.Context, request openai.AudioRequest) (openai.AudioResponse, error)
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIEvaluator transcribes the recording with Whisper and scores the
// transcript with a chat model in JSON mode.
type OpenAIEvaluator struct {
	client             openAIClient
	model              string
	transcriptionModel string
	maxBytes           int64
	maxLogLen          int
	logger             *zap.Logger
}

func NewOpenAIEvaluator(cfg OpenAIConfig, log *zap.Logger) (*OpenAIEvaluator, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY environment variable not set")
	}

	clientCfg := openai.DefaultConfig(apiKey)
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		clientCfg.BaseURL = baseURL
	}

	return newOpenAIEvaluator(openai.NewClientWithConfig(clientCfg), cfg, log), nil
}

func newOpenAIEvaluator(client openAIClient, cfg OpenAIConfig, log *zap.Logger) *OpenAIEvaluator {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultOpenAIModel
	}
	transcriptionModel := strings.TrimSpace(cfg.TranscriptionModel)
	if transcriptionModel == "" {
		transcriptionModel = defaultOpenAITranscriptionModel
	}
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 || maxBytes > openAIMaxRecordingBytes {
		maxBytes = openAIMaxRecordingBytes
	}
	maxLogLen := cfg.MaxLogLength
	if maxLogLen <= 0 {
		maxLogLen = 200
	}

	return &OpenAIEvaluator{
		client:             client,
		model:              model,
		transcriptionModel: transcriptionModel,
		maxBytes:           maxBytes,
		maxLogLen:          maxLogLen,
		logger:             logger.WithCommonFields(log, "openai", model),
	}
}

func (o *OpenAIEvaluator) Evaluate(ctx context.Context, req domain.EvaluationRequest) (*domain.EvaluationResult, error) {
	if err := checkRecording(req, o.maxBytes); err != nil {
		return nil, err
	}
	log := o.logger.With(zap.String("interview_id", req.InterviewID))

	transcription, err := o.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    o.transcriptionModel,
		FilePath: recordingFileName(req.MediaType),
		Reader:   bytes.NewReader(req.Data),
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return nil, classifyOpenAIError(err)
	}

	transcript := strings.TrimSpace(transcription.Text)
	if transcript == "" {
		return nil, fmt.Errorf("%w: transcription is empty", domain.ErrEvaluationParse)
	}
	log.Debug("openai transcription finished", zap.Int("transcript_length", utf8.RuneCountInString(transcript)))

	prompt := buildEvaluationPrompt(req.Questions)
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: 0.1,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt},
			{Role: openai.ChatMessageRoleUser, Content: "Transcript of the recording:\n\n" + transcript},
		},
	})
	if err != nil {
		return nil, classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices in response", domain.ErrEvaluationParse)
	}

	raw := resp.Choices[0].Message.Content
	log.Debug("openai chat completion response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", logger.TruncateForLog(raw, o.maxLogLen)),
	)

	return parseEvaluation(raw, transcript)
}

func classifyOpenAIError(err error) error {
	status := 0

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	if status == http.StatusRequestEntityTooLarge {
		return fmt.Errorf("%w: %v", domain.ErrPayloadTooLarge, err)
	}
	if isClientRejection(status) {
		return fmt.Errorf("%w: %v", domain.ErrProviderRejected, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
}

// recordingFileName picks a file name whose extension the transcription API accepts.
func recordingFileName(mediaType string) string {
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	if i := strings.Index(mediaType, ";"); i >= 0 {
		mediaType = strings.TrimSpace(mediaType[:i])
	}

	switch mediaType {
	case "video/webm", "audio/webm":
		return "recording.webm"
	case "audio/mpeg", "audio/mp3":
		return "recording.mp3"
	case "audio/wav", "audio/x-wav", "audio/wave":
		return "recording.wav"
	case "audio/ogg", "video/ogg":
		return "recording.ogg"
	case "audio/m4a", "audio/x-m4a", "audio/mp4":
		return "recording.m4a"
	case "video/mpeg":
		return "recording.mpeg"
	default:
		return "recording.mp4"
	}
}
