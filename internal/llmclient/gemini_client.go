// internal/llmclient/gemini_client.go
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

	"go.uber.org/zap"

	"github.com/xkilldash9x/clickpilot/internal/config"
)

const geminiDefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiClient talks to the Google Gemini generateContent API.
type GeminiClient struct {
	common
	apiKey     string
	endpoint   string
	maxRetries int
	httpClient *http.Client
}

// -- Gemini API Request/Response Structures (Internal to this file) --
type geminiContent struct {
	Parts []geminiPart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiSystemInstruction struct {
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	ResponseMimeType string  `json:"response_mime_type,omitempty"`
}

type geminiRequestPayload struct {
	Contents          []geminiContent          `json:"contents"`
	SystemInstruction *geminiSystemInstruction `json:"system_instruction,omitempty"`
	GenerationConfig  geminiGenerationConfig   `json:"generationConfig"`
}

type geminiResponsePayload struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

// NewGeminiClient initializes the client.
func NewGeminiClient(cfg config.ModelConfig, logger *zap.Logger, opts ...Option) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Gemini API Key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("Gemini model is required")
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = geminiDefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cm := newCommon(logger.Named("llm_client.gemini"), opts)

	return &GeminiClient{
		common:     cm,
		apiKey:     cfg.APIKey,
		endpoint:   fmt.Sprintf("%s/models/%s:generateContent", baseURL, cfg.Model),
		maxRetries: cfg.MaxRetries,
		httpClient: cm.httpClient(timeout),
	}, nil
}

// Complete sends req with retries and returns the first candidate's text.
func (c *GeminiClient) Complete(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(c.buildRequestPayload(req))
	if err != nil {
		return "", fmt.Errorf("failed to marshal request payload: %w", err)
	}

	return c.retry(ctx, req, c.maxRetries, func(ctx context.Context, attempt int) (string, error) {
		return c.send(ctx, body, attempt)
	})
}

func (c *GeminiClient) buildRequestPayload(req Request) geminiRequestPayload {
	parts := []geminiPart{{Text: req.Prompt}}
	if len(req.Image) > 0 {
		parts = append(parts, geminiPart{InlineData: &geminiInlineData{
			MimeType: "image/png",
			Data:     base64.StdEncoding.EncodeToString(req.Image),
		}})
	}

	payload := geminiRequestPayload{
		Contents: []geminiContent{{Role: "user", Parts: parts}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:      0,
			ResponseMimeType: "application/json",
		},
	}
	if req.System != "" {
		payload.SystemInstruction = &geminiSystemInstruction{Parts: []geminiPart{{Text: req.System}}}
	}
	return payload
}

func (c *GeminiClient) send(ctx context.Context, body []byte, attempt int) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	startTime := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	duration := time.Since(startTime)
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
		c.logger.Warn("Rate limited by Gemini API.", zap.Int("attempt", attempt+1), zap.Duration("wait", wait))
		return "", &RateLimitError{Status: resp.StatusCode, Wait: wait, Body: string(respBody)}
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Error("Gemini API returned error status", zap.Int("status", resp.StatusCode), zap.String("response", string(respBody)))
		return "", &StatusError{Status: resp.StatusCode, Body: string(respBody)}
	}

	var responsePayload geminiResponsePayload
	if err := json.Unmarshal(respBody, &responsePayload); err != nil {
		return "", fmt.Errorf("failed to decode response payload: %w", err)
	}
	if len(responsePayload.Candidates) == 0 {
		return "", fmt.Errorf("gemini API returned no candidates")
	}

	candidate := responsePayload.Candidates[0]
	if len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("gemini API returned empty content parts (Reason: %s)", candidate.FinishReason)
	}

	c.logger.Debug("LLM generation complete (Gemini)",
		zap.Duration("duration", duration),
		zap.Int("prompt_tokens", responsePayload.UsageMetadata.PromptTokenCount),
		zap.Int("completion_tokens", responsePayload.UsageMetadata.CandidatesTokenCount),
		zap.Int("total_tokens", responsePayload.UsageMetadata.TotalTokenCount),
	)

	var sb strings.Builder
	for _, p := range candidate.Content.Parts {
		sb.WriteString(p.Text)
	}
	return strings.TrimSpace(sb.String()), nil
}
