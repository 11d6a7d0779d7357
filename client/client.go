// Package client talks to the interview evaluator HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"interview-evaluator/domain"
)

const DefaultBaseURL = "http://localhost:8080"

// APIError is returned for every non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for baseURL. A nil httpClient gets a 30s timeout.
func New(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

type StartResponse struct {
	InterviewID string            `json:"interview_id"`
	Questions   []domain.Question `json:"questions"`
}

type CompleteResponse struct {
	Status domain.Status `json:"status"`
}

type Upload struct {
	SubjectID   string
	InterviewID string
	FileName    string
	Data        io.Reader
}

func (c *Client) Start(ctx context.Context, subjectID string) (*StartResponse, error) {
	body, err := json.Marshal(map[string]string{"subject_id": subjectID})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var out StartResponse
	if err := c.do(ctx, http.MethodPost, "/interviews/start", "application/json", bytes.NewReader(body), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Complete(ctx context.Context, interviewID string) (domain.Status, error) {
	var out CompleteResponse
	path := "/interviews/" + url.PathEscape(interviewID) + "/complete"
	if err := c.do(ctx, http.MethodPost, path, "", nil, &out); err != nil {
		return "", err
	}
	return out.Status, nil
}

func (c *Client) Status(ctx context.Context, interviewID string) (domain.StatusView, error) {
	var out domain.StatusView
	path := "/interviews/" + url.PathEscape(interviewID) + "/status"
	if err := c.do(ctx, http.MethodGet, path, "", nil, &out); err != nil {
		return domain.StatusView{}, err
	}
	return out, nil
}

// Upload sends a recording for synchronous evaluation.
func (c *Client) Upload(ctx context.Context, upload Upload) (*domain.EvaluationResult, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)

	if upload.SubjectID != "" {
		if err := form.WriteField("tenant_id", upload.SubjectID); err != nil {
			return nil, fmt.Errorf("write form: %w", err)
		}
	}
	if upload.InterviewID != "" {
		if err := form.WriteField("interview_id", upload.InterviewID); err != nil {
			return nil, fmt.Errorf("write form: %w", err)
		}
	}

	name := upload.FileName
	if name == "" {
		name = "recording.webm"
	}
	part, err := form.CreateFormFile("video", name)
	if err != nil {
		return nil, fmt.Errorf("write form: %w", err)
	}
	if _, err := io.Copy(part, upload.Data); err != nil {
		return nil, fmt.Errorf("copy recording: %w", err)
	}
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("write form: %w", err)
	}

	var out domain.EvaluationResult
	if err := c.do(ctx, http.MethodPost, "/interview/upload", form.FormDataContentType(), &buf, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, result any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(data, resp.Status)}
	}

	if result != nil && len(data) > 0 {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

func errorMessage(body []byte, fallback string) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	if msg := strings.TrimSpace(string(body)); msg != "" {
		return msg
	}
	return fallback
}
