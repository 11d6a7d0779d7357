package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"interview-evaluator/domain"
)

type generatorCall struct {
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

type fakeGenerator struct {
	calls   []generatorCall
	replies map[string]generatorReply
}

type generatorReply struct {
	text string
	err  error
}

func (f *fakeGenerator) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.calls = append(f.calls, generatorCall{model: model, contents: contents, config: config})
	reply, ok := f.replies[model]
	if !ok {
		return nil, errors.New("unexpected model " + model)
	}
	if reply.err != nil {
		return nil, reply.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: reply.text}}},
		}},
	}, nil
}

func (f *fakeGenerator) models() []string {
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.model)
	}
	return out
}

func geminiRequest() domain.EvaluationRequest {
	return domain.EvaluationRequest{
		Data:        []byte("webm-bytes"),
		MediaType:   "video/webm",
		Questions:   domain.DefaultQuestions(),
		InterviewID: "user-1_1",
	}
}

func TestGeminiEvaluateSendsRecordingInline(t *testing.T) {
	gen := &fakeGenerator{replies: map[string]generatorReply{
		"primary": {text: validEvaluationJSON},
	}}
	eval := newGeminiEvaluator(gen, GeminiConfig{Model: "primary", FallbackModels: []string{}}, zap.NewNop())

	result, err := eval.Evaluate(context.Background(), geminiRequest())
	require.NoError(t, err)
	assert.Equal(t, 83, result.Score)

	require.Len(t, gen.calls, 1)
	call := gen.calls[0]
	assert.Equal(t, "application/json", call.config.ResponseMIMEType)
	require.Len(t, call.contents, 1)
	parts := call.contents[0].Parts
	require.Len(t, parts, 2)
	assert.Contains(t, parts[0].Text, domain.DefaultQuestions()[0].Text)
	require.NotNil(t, parts[1].InlineData)
	assert.Equal(t, "video/webm", parts[1].InlineData.MIMEType)
	assert.Equal(t, []byte("webm-bytes"), parts[1].InlineData.Data)
}

func TestGeminiEvaluateFallsBackToNextModel(t *testing.T) {
	gen := &fakeGenerator{replies: map[string]generatorReply{
		"primary":  {err: genai.APIError{Code: http.StatusServiceUnavailable, Message: "overloaded"}},
		"backup":   {text: "not json at all"},
		"backup-2": {text: validEvaluationJSON},
	}}
	eval := newGeminiEvaluator(gen, GeminiConfig{Model: "primary", FallbackModels: []string{"backup", "primary", "backup-2"}}, zap.NewNop())

	result, err := eval.Evaluate(context.Background(), geminiRequest())
	require.NoError(t, err)
	assert.Equal(t, 83, result.Score)
	assert.Equal(t, []string{"primary", "backup", "backup-2"}, gen.models())
}

func TestGeminiEvaluateAllModelsFail(t *testing.T) {
	gen := &fakeGenerator{replies: map[string]generatorReply{
		"primary": {err: errors.New("dial tcp: i/o timeout")},
		"backup":  {err: genai.APIError{Code: http.StatusInternalServerError, Message: "internal"}},
	}}
	eval := newGeminiEvaluator(gen, GeminiConfig{Model: "primary", FallbackModels: []string{"backup"}}, zap.NewNop())

	_, err := eval.Evaluate(context.Background(), geminiRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
	assert.True(t, domain.IsRetryable(err))
}

func TestGeminiEvaluateRejectedIsNotRetryable(t *testing.T) {
	gen := &fakeGenerator{replies: map[string]generatorReply{
		"primary": {err: genai.APIError{Code: http.StatusUnauthorized, Message: "API key not valid"}},
	}}
	eval := newGeminiEvaluator(gen, GeminiConfig{Model: "primary"}, zap.NewNop())

	_, err := eval.Evaluate(context.Background(), geminiRequest())
	assert.ErrorIs(t, err, domain.ErrProviderRejected)
	assert.False(t, domain.IsRetryable(err))
}

func TestGeminiEvaluatePayloadTooLargeStopsFallback(t *testing.T) {
	gen := &fakeGenerator{replies: map[string]generatorReply{
		"primary": {err: genai.APIError{Code: http.StatusBadRequest, Message: "Request payload size exceeds the limit"}},
		"backup":  {text: validEvaluationJSON},
	}}
	eval := newGeminiEvaluator(gen, GeminiConfig{Model: "primary", FallbackModels: []string{"backup"}}, zap.NewNop())

	_, err := eval.Evaluate(context.Background(), geminiRequest())
	assert.ErrorIs(t, err, domain.ErrPayloadTooLarge)
	assert.Equal(t, []string{"primary"}, gen.models())
}

func TestGeminiEvaluateChecksRecording(t *testing.T) {
	gen := &fakeGenerator{}
	eval := newGeminiEvaluator(gen, GeminiConfig{Model: "primary", MaxBytes: 4}, zap.NewNop())

	req := geminiRequest()
	req.Data = nil
	_, err := eval.Evaluate(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrValidation)

	req = geminiRequest()
	_, err = eval.Evaluate(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrPayloadTooLarge)

	req = geminiRequest()
	req.Data = []byte("ok")
	req.MediaType = ""
	_, err = eval.Evaluate(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrValidation)

	assert.Empty(t, gen.calls)
}

func TestGeminiDefaultModels(t *testing.T) {
	eval := newGeminiEvaluator(&fakeGenerator{}, GeminiConfig{}, nil)
	assert.Equal(t, append([]string{defaultGeminiModel}, defaultGeminiFallbackModels...), eval.models)
	assert.Equal(t, int64(DefaultMaxRecordingBytes), eval.maxBytes)
}

func TestClassifyGeminiError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "413", err: genai.APIError{Code: http.StatusRequestEntityTooLarge}, want: domain.ErrPayloadTooLarge},
		{name: "400 size", err: &genai.APIError{Code: http.StatusBadRequest, Message: "Inline data is too large"}, want: domain.ErrPayloadTooLarge},
		{name: "400 other", err: genai.APIError{Code: http.StatusBadRequest, Message: "invalid argument"}, want: domain.ErrProviderRejected},
		{name: "401", err: genai.APIError{Code: http.StatusUnauthorized, Message: "API key not valid"}, want: domain.ErrProviderRejected},
		{name: "403", err: &genai.APIError{Code: http.StatusForbidden}, want: domain.ErrProviderRejected},
		{name: "408", err: genai.APIError{Code: http.StatusRequestTimeout}, want: domain.ErrProviderUnavailable},
		{name: "429", err: genai.APIError{Code: http.StatusTooManyRequests, Message: "quota"}, want: domain.ErrProviderUnavailable},
		{name: "wrapped 503", err: fmt.Errorf("call: %w", genai.APIError{Code: http.StatusServiceUnavailable}), want: domain.ErrProviderUnavailable},
		{name: "network", err: errors.New("connection reset"), want: domain.ErrProviderUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, classifyGeminiError(tt.err), tt.want)
		})
	}
}

func TestResponseText(t *testing.T) {
	assert.Empty(t, responseText(nil))

	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{
		nil,
		{Content: &genai.Content{Parts: []*genai.Part{{Text: " {\"a\": "}, nil, {Text: "1} "}}}},
	}}
	assert.Equal(t, "{\"a\":\n1}", responseText(resp))
}
