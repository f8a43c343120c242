// internal/llmclient/openai_client.go
package llmclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/clickpilot/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// OpenAIClient talks to any OpenAI-compatible /chat/completions endpoint.
type OpenAIClient struct {
	common
	apiKey     string
	endpoint   string
	model      string
	maxRetries int
	httpClient *http.Client
}

// -- Chat Completions request/response structures --

type chatRequest struct {
	Model          string         `json:"model"`
	Temperature    float64        `json:"temperature"`
	ResponseFormat responseFormat `json:"response_format"`
	Messages       []chatMessage  `json:"messages"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatMessage struct {
	Role string `json:"role"`
	// Content is a plain string for the system message and a parts array
	// for the user message.
	Content interface{} `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// NewOpenAIClient builds a client from a model tier configuration.
func NewOpenAIClient(cfg config.ModelConfig, logger *zap.Logger, opts ...Option) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("OpenAI model is required")
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cm := newCommon(logger.Named("llm_client.openai"), opts)

	return &OpenAIClient{
		common:     cm,
		apiKey:     cfg.APIKey,
		endpoint:   baseURL + "/chat/completions",
		model:      cfg.Model,
		maxRetries: cfg.MaxRetries,
		httpClient: cm.httpClient(timeout),
	}, nil
}

// Complete sends req with retries and returns choices[0].message.content.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(c.buildRequestPayload(req))
	if err != nil {
		return "", fmt.Errorf("failed to marshal request payload: %w", err)
	}

	return c.retry(ctx, req, c.maxRetries, func(ctx context.Context, attempt int) (string, error) {
		return c.send(ctx, body, attempt)
	})
}

func (c *OpenAIClient) buildRequestPayload(req Request) chatRequest {
	parts := []contentPart{{Type: "text", Text: req.Prompt}}
	if len(req.Image) > 0 {
		parts = append(parts, contentPart{
			Type:     "image_url",
			ImageURL: &imageURL{URL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(req.Image)},
		})
	}

	return chatRequest{
		Model:          c.model,
		Temperature:    0,
		ResponseFormat: responseFormat{Type: "json_object"},
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: parts},
		},
	}
}

func (c *OpenAIClient) send(ctx context.Context, body []byte, attempt int) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to execute HTTP request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		wait := rateLimitWait(resp.Header, string(respBody), attempt)
		c.logger.Warn("Rate limited by model API.", zap.Int("attempt", attempt+1), zap.Duration("wait", wait))
		return "", &RateLimitError{Status: resp.StatusCode, Wait: wait, Body: string(respBody)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{Status: resp.StatusCode, Body: string(respBody)}
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode response payload: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("model API returned no choices")
	}

	c.logger.Debug("Model completion received.",
		zap.Int("prompt_tokens", parsed.Usage.PromptTokens),
		zap.Int("completion_tokens", parsed.Usage.CompletionTokens))
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}
