// internal/llmclient/router_test.go
package llmclient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/clickpilot/internal/config"
)

func TestRouter(t *testing.T) {
	point := &stubClient{reply: "point"}
	reasoning := &stubClient{reply: "reasoning"}
	router, err := NewRouter(zaptest.NewLogger(t), point, reasoning)
	require.NoError(t, err)

	t.Run("dispatches on tier", func(t *testing.T) {
		out, err := router.Complete(context.Background(), Request{Tier: TierReasoning})
		require.NoError(t, err)
		assert.Equal(t, "reasoning", out)

		out, err = router.Complete(context.Background(), Request{Tier: TierPoint})
		require.NoError(t, err)
		assert.Equal(t, "point", out)
	})

	t.Run("empty tier defaults to point", func(t *testing.T) {
		before := len(point.reqs)
		out, err := router.Complete(context.Background(), Request{})
		require.NoError(t, err)
		assert.Equal(t, "point", out)
		require.Len(t, point.reqs, before+1)
		assert.Equal(t, TierPoint, point.reqs[before].Tier)
	})

	t.Run("unknown tier", func(t *testing.T) {
		_, err := router.Complete(context.Background(), Request{Tier: "vibes"})
		assert.ErrorContains(t, err, "no model client configured")
	})
}

func TestNewRouter_RequiresBothTiers(t *testing.T) {
	_, err := NewRouter(nil, &stubClient{}, nil)
	assert.Error(t, err)
}

func TestCompleteJSON(t *testing.T) {
	client := &stubClient{reply: `{"x":3,"y":4,"double":false}`}
	got, err := CompleteJSON[clickReply](context.Background(), client, Request{})
	require.NoError(t, err)
	assert.Equal(t, clickReply{X: 3, Y: 4}, *got)
}

func TestNewModelClient(t *testing.T) {
	c, err := NewModelClient(config.ModelConfig{Provider: config.ProviderOpenAI, APIKey: "k", Model: "m"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, c)

	c, err = NewModelClient(config.ModelConfig{Provider: config.ProviderGemini, APIKey: "k", Model: "m"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &GeminiClient{}, c)

	_, err = NewModelClient(config.ModelConfig{Provider: "anthropic", APIKey: "k", Model: "m"}, nil)
	assert.ErrorContains(t, err, "unsupported model provider")
}

func TestNewClient(t *testing.T) {
	cfg := config.NewDefaultConfig().Vision
	cfg.Point.APIKey = "k"
	cfg.Reasoning.APIKey = "k"
	cfg.RequestsPerSecond = 2

	router, err := NewClient(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.Len(t, router.clients, 2)
	openai := router.clients[TierPoint].(*OpenAIClient)
	assert.NotNil(t, openai.limiter)

	cfg.Reasoning.APIKey = ""
	_, err = NewClient(cfg, zaptest.NewLogger(t))
	assert.ErrorContains(t, err, "reasoning tier")
}
