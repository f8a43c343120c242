// internal/llmclient/factory.go
package llmclient

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/clickpilot/internal/config"
)

// NewModelClient creates a single-tier client for the configured provider.
func NewModelClient(cfg config.ModelConfig, logger *zap.Logger, opts ...Option) (VisionClient, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI, "":
		return NewOpenAIClient(cfg, logger, opts...)
	case config.ProviderGemini:
		return NewGeminiClient(cfg, logger, opts...)
	default:
		return nil, fmt.Errorf("unknown or unsupported model provider configured: '%s'. Supported: [%s %s]",
			cfg.Provider, config.ProviderOpenAI, config.ProviderGemini)
	}
}

// NewClient builds both tiers from the vision configuration and returns a
// Router over them. Both tiers share the governor and observer in opts.
func NewClient(cfg config.VisionConfig, logger *zap.Logger, opts ...Option) (*Router, error) {
	if cfg.RequestsPerSecond > 0 {
		opts = append(opts, WithRateLimit(cfg.RequestsPerSecond))
	}
	opts = append(opts, WithConnections(cfg.MaxConcurrency))

	point, err := NewModelClient(cfg.Point, logger, opts...)
	if err != nil {
		return nil, fmt.Errorf("point tier: %w", err)
	}
	reasoning, err := NewModelClient(cfg.Reasoning, logger, opts...)
	if err != nil {
		return nil, fmt.Errorf("reasoning tier: %w", err)
	}
	return NewRouter(logger, point, reasoning)
}
