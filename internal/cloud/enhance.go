package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// enhancementEndpoints maps provider ids to chat-completion URLs.
var enhancementEndpoints = map[string]string{
	"openai":    "https://api.openai.com/v1/chat/completions",
	"groq":      "https://api.groq.com/openai/v1/chat/completions",
	"mistral":   "https://api.mistral.ai/v1/chat/completions",
	"anthropic": "https://api.anthropic.com/v1/messages",
}

// EnhanceRequest carries the transcript and its contextual metadata.
type EnhanceRequest struct {
	Text         string
	Provider     string
	Model        string
	APIKey       string
	SystemPrompt string
	// Endpoint overrides the provider table for custom backends.
	Endpoint string
}

// EnhancementClient rewrites transcripts through a chat-completion provider.
type EnhancementClient struct {
	httpClient *http.Client
	retry      RetryConfig
}

// EnhanceOption configures an enhancement client.
type EnhanceOption func(*EnhancementClient)

// WithEnhanceHTTPClient overrides the underlying HTTP client.
func WithEnhanceHTTPClient(client *http.Client) EnhanceOption {
	return func(c *EnhancementClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithEnhanceTimeout sets the per-call network timeout.
func WithEnhanceTimeout(timeout time.Duration) EnhanceOption {
	return func(c *EnhancementClient) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// NewEnhancementClient builds an enhancement client with defaults.
func NewEnhancementClient(opts ...EnhanceOption) *EnhancementClient {
	c := &EnhancementClient{
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

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

const defaultSystemPrompt = "Clean up the following dictated text. Fix punctuation, casing, and obvious " +
	"speech artifacts without changing the meaning. Return only the corrected text."

// Enhance sends the transcript for rewriting and returns the enhanced text.
func (c *EnhancementClient) Enhance(ctx context.Context, req EnhanceRequest) (string, error) {
	endpoint := strings.TrimSpace(req.Endpoint)
	if endpoint == "" {
		var ok bool
		endpoint, ok = enhancementEndpoints[strings.ToLower(req.Provider)]
		if !ok {
			return "", fmt.Errorf("unknown enhancement provider %q", req.Provider)
		}
	}
	if strings.TrimSpace(req.APIKey) == "" {
		return "", fmt.Errorf("no API key for provider %q", req.Provider)
	}

	prompt := req.SystemPrompt
	if strings.TrimSpace(prompt) == "" {
		prompt = defaultSystemPrompt
	}

	payload, err := json.Marshal(chatRequest{
		Model: req.Model,
		Messages: []chatMessage{
			{Role: "system", Content: prompt},
			{Role: "user", Content: req.Text},
		},
	})
	if err != nil {
		return "", fmt.Errorf("encode enhancement request: %w", err)
	}

	var result chatResponse
	retryErr := withRetry(ctx, c.retry, func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("build enhancement request: %w", err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+req.APIKey)
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return &NetworkError{Op: "enhance", Message: "request failed", Retryable: true, Err: err}
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return &NetworkError{
				Op:        "enhance",
				Message:   fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail))),
				Retryable: isRetryableHTTPStatus(resp.StatusCode),
			}
		}

		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return &NetworkError{Op: "enhance", Message: "decode response", Err: err}
		}
		return nil
	})
	if retryErr != nil {
		return "", retryErr
	}

	if len(result.Choices) == 0 {
		return "", &NetworkError{Op: "enhance", Message: "empty completion response"}
	}
	return strings.TrimSpace(result.Choices[0].Message.Content), nil
}
