// internal/llmclient/router.go
package llmclient

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Router implements VisionClient and dispatches on Request.Tier.
type Router struct {
	logger  *zap.Logger
	clients map[Tier]VisionClient
}

// NewRouter creates a router with one client per tier.
func NewRouter(logger *zap.Logger, pointClient, reasoningClient VisionClient) (*Router, error) {
	if pointClient == nil || reasoningClient == nil {
		return nil, fmt.Errorf("both point and reasoning tier clients must be provided")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Router{
		logger: logger.Named("llm_router"),
		clients: map[Tier]VisionClient{
			TierPoint:     pointClient,
			TierReasoning: reasoningClient,
		},
	}, nil
}

// Complete selects the client for req.Tier. An empty tier means point.
func (r *Router) Complete(ctx context.Context, req Request) (string, error) {
	tier := req.Tier
	if tier == "" {
		tier = TierPoint
		req.Tier = tier
	}

	client, ok := r.clients[tier]
	if !ok {
		return "", fmt.Errorf("no model client configured for tier: %s", tier)
	}

	r.logger.Debug("Routing model request", zap.String("tier", string(tier)))
	return client.Complete(ctx, req)
}
