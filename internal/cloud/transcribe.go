package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// transcriptionEndpoints maps hosted provider ids to their upload URLs.
// Custom endpoints come from descriptor metadata instead.
var transcriptionEndpoints = map[string]string{
	"openai":     "https://api.openai.com/v1/audio/transcriptions",
	"groq":       "https://api.groq.com/openai/v1/audio/transcriptions",
	"mistral":    "https://api.mistral.ai/v1/audio/transcriptions",
	"elevenlabs": "https://api.elevenlabs.io/v1/speech-to-text",
	"deepgram":   "https://api.deepgram.com/v1/listen",
}

// TranscribeRequest carries everything one cloud transcription call needs.
type TranscribeRequest struct {
	AudioPath string
	Provider  string
	ModelID   string
	Language  string
	APIKey    string
	// Endpoint overrides the provider table for custom backends.
	Endpoint string
}

// TranscriptionClient uploads captured audio to a hosted provider over HTTPS.
type TranscriptionClient struct {
	httpClient *http.Client
	retry      RetryConfig
}

// Option configures a cloud client.
type Option func(*TranscriptionClient)

// WithHTTPClient overrides the underlying HTTP client, mainly for tests.
func WithHTTPClient(client *http.Client) Option {
	return func(c *TranscriptionClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the per-call network timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *TranscriptionClient) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// NewTranscriptionClient builds a transcription client with defaults.
func NewTranscriptionClient(opts ...Option) *TranscriptionClient {
	c := &TranscriptionClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		retry:      DefaultRetryConfig(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

// Transcribe uploads the audio file and returns the recognized text.
func (c *TranscriptionClient) Transcribe(ctx context.Context, req TranscribeRequest) (string, error) {
	endpoint := strings.TrimSpace(req.Endpoint)
	if endpoint == "" {
		var ok bool
		endpoint, ok = transcriptionEndpoints[strings.ToLower(req.Provider)]
		if !ok {
			return "", fmt.Errorf("unknown transcription provider %q", req.Provider)
		}
	}
	if strings.TrimSpace(req.APIKey) == "" {
		return "", fmt.Errorf("no API key for provider %q", req.Provider)
	}

	var result transcriptionResponse
	retryErr := withRetry(ctx, c.retry, func() error {
		body, contentType, err := buildMultipartBody(req)
		if err != nil {
			return err
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
		if err != nil {
			return fmt.Errorf("build transcription request: %w", err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+req.APIKey)
		httpReq.Header.Set("Content-Type", contentType)

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return &NetworkError{Op: "transcribe", Message: "request failed", Retryable: true, Err: err}
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return &NetworkError{
				Op:        "transcribe",
				Message:   fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail))),
				Retryable: isRetryableHTTPStatus(resp.StatusCode),
			}
		}

		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return &NetworkError{Op: "transcribe", Message: "decode response", Err: err}
		}
		return nil
	})
	if retryErr != nil {
		return "", retryErr
	}

	return result.Text, nil
}

// buildMultipartBody assembles the upload form from the audio file on disk.
func buildMultipartBody(req TranscribeRequest) (*bytes.Buffer, string, error) {
	audio, err := os.Open(req.AudioPath)
	if err != nil {
		return nil, "", fmt.Errorf("open audio %q: %w", req.AudioPath, err)
	}
	defer audio.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filepath.Base(req.AudioPath))
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, audio); err != nil {
		return nil, "", fmt.Errorf("copy audio: %w", err)
	}

	if err := writer.WriteField("model", req.ModelID); err != nil {
		return nil, "", fmt.Errorf("write model field: %w", err)
	}
	if lang := strings.TrimSpace(req.Language); lang != "" {
		if err := writer.WriteField("language", lang); err != nil {
			return nil, "", fmt.Errorf("write language field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}

	return body, writer.FormDataContentType(), nil
}
