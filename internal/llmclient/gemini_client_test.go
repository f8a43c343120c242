// internal/llmclient/gemini_client_test.go
package llmclient

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/clickpilot/internal/config"
)

func geminiReply(texts ...string) func(http.ResponseWriter, *http.Request) {
	parts := make([]map[string]string, 0, len(texts))
	for _, t := range texts {
		parts = append(parts, map[string]string{"text": t})
	}
	body, _ := json.Marshal(map[string]interface{}{
		"candidates": []map[string]interface{}{
			{"content": map[string]interface{}{"role": "model", "parts": parts}, "finishReason": "STOP"},
		},
	})
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}
}

func TestGeminiClient_RequestShape(t *testing.T) {
	var captured geminiRequestPayload
	var apiKey, path string
	srv, _ := scriptedServer(t, []func(http.ResponseWriter, *http.Request){
		func(w http.ResponseWriter, r *http.Request) {
			apiKey = r.Header.Get("x-goog-api-key")
			path = r.URL.Path
			body, _ := io.ReadAll(r.Body)
			require.NoError(t, json.Unmarshal(body, &captured))
			geminiReply(`{"answer":`, `true}`)(w, r)
		},
	})

	client, err := NewGeminiClient(testModelConfig(config.ProviderGemini, srv.URL+"/v1beta"), zaptest.NewLogger(t))
	require.NoError(t, err)

	img := []byte("png-bytes")
	out, err := client.Complete(context.Background(), Request{
		Tier:   TierReasoning,
		System: "be terse",
		Prompt: "is the dialog open?",
		Image:  img,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"answer":true}`, out, "parts are concatenated")

	assert.Equal(t, "test-key", apiKey)
	assert.Equal(t, "/v1beta/models/test-model:generateContent", path)
	require.NotNil(t, captured.SystemInstruction)
	assert.Equal(t, "be terse", captured.SystemInstruction.Parts[0].Text)
	assert.Equal(t, "application/json", captured.GenerationConfig.ResponseMimeType)

	require.Len(t, captured.Contents, 1)
	parts := captured.Contents[0].Parts
	require.Len(t, parts, 2)
	assert.Equal(t, "is the dialog open?", parts[0].Text)
	require.NotNil(t, parts[1].InlineData)
	assert.Equal(t, "image/png", parts[1].InlineData.MimeType)
	assert.Equal(t, base64.StdEncoding.EncodeToString(img), parts[1].InlineData.Data)
}

func TestGeminiClient_RateLimitUsesFallback(t *testing.T) {
	srv, calls := scriptedServer(t, []func(http.ResponseWriter, *http.Request){
		statusReply(http.StatusTooManyRequests, nil, `{"error":{"status":"RESOURCE_EXHAUSTED"}}`),
		statusReply(http.StatusTooManyRequests, nil, `{"error":{"status":"RESOURCE_EXHAUSTED"}}`),
		geminiReply("ok"),
	})

	timer := &instantTimer{}
	gov := &fakeGovernor{}
	client, err := NewGeminiClient(testModelConfig(config.ProviderGemini, srv.URL), zaptest.NewLogger(t),
		WithGovernor(gov), withTimer(timer))
	require.NoError(t, err)

	out, err := client.Complete(context.Background(), Request{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.EqualValues(t, 3, atomic.LoadInt32(calls))
	assert.Equal(t, []time.Duration{600 * time.Millisecond, 1200 * time.Millisecond}, timer.Waits())
	assert.Equal(t, 2, gov.failures)
	assert.Equal(t, 1, gov.successes)
}

func TestGeminiClient_NoCandidates(t *testing.T) {
	srv, _ := scriptedServer(t, []func(http.ResponseWriter, *http.Request){
		func(w http.ResponseWriter, _ *http.Request) { _, _ = io.WriteString(w, `{"candidates":[]}`) },
	})

	client, err := NewGeminiClient(testModelConfig(config.ProviderGemini, srv.URL), zaptest.NewLogger(t), withTimer(&instantTimer{}))
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), Request{Prompt: "p"})
	assert.ErrorContains(t, err, "no candidates")
}

func TestNewGeminiClient_DefaultEndpoint(t *testing.T) {
	c, err := NewGeminiClient(config.ModelConfig{APIKey: "k", Model: "gemini-2.0-flash"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.0-flash:generateContent", c.endpoint)

	_, err = NewGeminiClient(config.ModelConfig{Model: "m"}, nil)
	assert.Error(t, err)
}
