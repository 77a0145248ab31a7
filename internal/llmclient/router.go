package llmclient

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/scanforge/scanforge/api/schemas"
)

// Router implements schemas.LLMClient and routes requests by tier.
type Router struct {
	logger  *zap.Logger
	clients map[schemas.ModelTier]schemas.LLMClient
}

// NewRouter creates a router with the specified clients for each tier.
func NewRouter(logger *zap.Logger, fastClient, powerfulClient schemas.LLMClient) (*Router, error) {
	if fastClient == nil || powerfulClient == nil {
		return nil, fmt.Errorf("both fast and powerful tier clients must be provided")
	}

	return &Router{
		logger: logger.Named("llm_router"),
		clients: map[schemas.ModelTier]schemas.LLMClient{
			schemas.TierFast:     fastClient,
			schemas.TierPowerful: powerfulClient,
		},
	}, nil
}

// Generate selects the appropriate client based on the request's tier.
func (r *Router) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	tier := req.Tier
	if tier == "" {
		tier = schemas.TierPowerful // Default to the powerful tier if unspecified.
	}

	client, ok := r.clients[tier]
	if !ok {
		return "", fmt.Errorf("no LLM client configured for tier: %s", tier)
	}

	r.logger.Debug("Routing generation request", zap.String("tier", string(tier)))
	return client.Generate(ctx, req)
}

// Close closes every underlying client, returning the first error seen.
func (r *Router) Close() error {
	var firstErr error
	closed := make(map[schemas.LLMClient]bool)
	for _, client := range r.clients {
		if closed[client] {
			continue
		}
		closed[client] = true
		if err := client.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
